package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/sosodev/duration"
)

const defaultJWTSecret = "very-secure-jwt-secret"

// JWTConfig configures the pending and session token issuer.
type JWTConfig struct {
	Secret             string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	Issuer             string `env:"JWT_ISSUER" env-default:"proxy-admin"`
	PendingTokenExpiry string `env:"PENDING_TOKEN_EXPIRY" env-default:"5m"`
	SessionTokenExpiry string `env:"SESSION_TOKEN_EXPIRY" env-default:"24h"`
}

func (j JWTConfig) ParsePendingTokenExpiry() (time.Duration, error) {
	return ParseDuration(j.PendingTokenExpiry)
}

func (j JWTConfig) ParseSessionTokenExpiry() (time.Duration, error) {
	return ParseDuration(j.SessionTokenExpiry)
}

// Validate rejects configurations the issuer cannot work with and warns
// when the built-in secret is still in use.
func (j JWTConfig) Validate() error {
	if j.Secret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if j.Secret == defaultJWTSecret {
		slog.Warn("JWT_SECRET is using the default value; set a unique secret in production")
	}
	pending, err := j.ParsePendingTokenExpiry()
	if err != nil {
		return fmt.Errorf("invalid PENDING_TOKEN_EXPIRY: %w", err)
	}
	session, err := j.ParseSessionTokenExpiry()
	if err != nil {
		return fmt.Errorf("invalid SESSION_TOKEN_EXPIRY: %w", err)
	}
	if pending <= 0 || session <= 0 {
		return fmt.Errorf("token expiries must be positive")
	}
	if pending >= session {
		return fmt.Errorf("pending token expiry (%s) must be shorter than session expiry (%s)", pending, session)
	}
	return nil
}

// ParseDuration parses an ISO8601 duration first and falls back to Go syntax.
func ParseDuration(s string) (time.Duration, error) {
	if d, err := duration.Parse(s); err == nil {
		return d.ToTimeDuration(), nil
	}
	return time.ParseDuration(s)
}
