package config

import (
	"fmt"
	"time"
)

// TwoFAConfig configures TOTP enrollment, backup codes and the attempt limiter.
type TwoFAConfig struct {
	Issuer          string `env:"TWOFA_ISSUER" env-default:"ProxyAdmin"`
	EncryptionKey   string `env:"TWOFA_ENCRYPTION_KEY" env-default:""`
	BackupCodeCount int    `env:"TWOFA_BACKUP_CODE_COUNT" env-default:"10"`
	MaxAttempts     int    `env:"TWOFA_MAX_ATTEMPTS" env-default:"5"`
	AttemptWindow   string `env:"TWOFA_ATTEMPT_WINDOW" env-default:"5m"`
}

// SecretKey returns the material the TOTP secret cipher is keyed with.
// Without an explicit key the JWT secret is used.
func (c TwoFAConfig) SecretKey(jwtSecret string) string {
	if c.EncryptionKey != "" {
		return c.EncryptionKey
	}
	return jwtSecret
}

func (c TwoFAConfig) ParseAttemptWindow() (time.Duration, error) {
	return ParseDuration(c.AttemptWindow)
}

func (c TwoFAConfig) Validate() error {
	if c.BackupCodeCount < 8 || c.BackupCodeCount > 10 {
		return fmt.Errorf("TWOFA_BACKUP_CODE_COUNT must be between 8 and 10, got %d", c.BackupCodeCount)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("TWOFA_MAX_ATTEMPTS must be at least 1")
	}
	window, err := c.ParseAttemptWindow()
	if err != nil {
		return fmt.Errorf("invalid TWOFA_ATTEMPT_WINDOW: %w", err)
	}
	if window <= 0 {
		return fmt.Errorf("TWOFA_ATTEMPT_WINDOW must be positive")
	}
	return nil
}
