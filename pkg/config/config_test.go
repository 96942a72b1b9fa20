package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"PT5M", 5 * time.Minute},
		{"P1D", 24 * time.Hour},
		{"5m", 5 * time.Minute},
		{"24h", 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseDuration("soon")
	assert.Error(t, err)
}

func TestDefaults(t *testing.T) {
	var cfg struct {
		JWT   JWTConfig
		TwoFA TwoFAConfig
	}
	require.NoError(t, cleanenv.ReadEnv(&cfg))

	pending, err := cfg.JWT.ParsePendingTokenExpiry()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, pending)

	session, err := cfg.JWT.ParseSessionTokenExpiry()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, session)

	window, err := cfg.TwoFA.ParseAttemptWindow()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, window)
	assert.Equal(t, 5, cfg.TwoFA.MaxAttempts)
	assert.Equal(t, 10, cfg.TwoFA.BackupCodeCount)

	assert.NoError(t, cfg.JWT.Validate())
	assert.NoError(t, cfg.TwoFA.Validate())
}

func TestValidate(t *testing.T) {
	t.Run("pending must be shorter than session", func(t *testing.T) {
		cfg := JWTConfig{Secret: "s", PendingTokenExpiry: "48h", SessionTokenExpiry: "24h"}
		assert.Error(t, cfg.Validate())
	})

	t.Run("backup code count bounds", func(t *testing.T) {
		cfg := TwoFAConfig{BackupCodeCount: 4, MaxAttempts: 5, AttemptWindow: "5m"}
		assert.Error(t, cfg.Validate())
	})

	t.Run("secret key falls back to jwt secret", func(t *testing.T) {
		assert.Equal(t, "jwt", TwoFAConfig{}.SecretKey("jwt"))
		assert.Equal(t, "own", TwoFAConfig{EncryptionKey: "own"}.SecretKey("jwt"))
	})
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TWOFA_ISSUER=FromDotEnv\n"), 0600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		os.Chdir(wd)
		os.Unsetenv("TWOFA_ISSUER")
	})

	LoadEnvFile()
	assert.Equal(t, "FromDotEnv", os.Getenv("TWOFA_ISSUER"))
}

func TestAdminBootstrapFromEnv(t *testing.T) {
	t.Setenv("ADMIN_USERNAME", "root")
	t.Setenv("ADMIN_EMAIL", "root@example.com")

	var cfg AdminBootstrapConfig
	require.NoError(t, cleanenv.ReadEnv(&cfg))
	assert.Equal(t, "root", cfg.Username)
	assert.Equal(t, "root@example.com", cfg.Email)
	assert.Empty(t, cfg.Password)
}

func TestTrustedProxiesFromEnv(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8,192.0.2.10")

	var cfg ProxyConfig
	require.NoError(t, cleanenv.ReadEnv(&cfg))
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.10"}, cfg.TrustedProxies)
}
