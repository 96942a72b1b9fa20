package bootstrap

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/proxy-admin-auth/pkg/login"
)

// AdminBootstrapConfig seeds the first administrator from the environment
// so a fresh deployment does not need the web setup screen.
type AdminBootstrapConfig struct {
	// From ADMIN_USERNAME, ADMIN_EMAIL, ADMIN_PASSWORD. An empty username
	// disables bootstrap.
	AdminUsername string
	AdminEmail    string
	AdminPassword string

	Setup *login.SetupService
}

// AdminBootstrapResult describes what BootstrapAdmin did.
type AdminBootstrapResult struct {
	AccountID uuid.UUID
	Username  string
	Email     string
	// Password is only populated when it was generated.
	Password        string
	UserCreated     bool
	PasswordFromEnv bool
}

// BootstrapAdmin creates the configured administrator if none exists yet.
func BootstrapAdmin(ctx context.Context, cfg AdminBootstrapConfig) (*AdminBootstrapResult, error) {
	if strings.TrimSpace(cfg.AdminUsername) == "" {
		return &AdminBootstrapResult{}, nil
	}
	if cfg.Setup == nil {
		return nil, fmt.Errorf("invalid bootstrap configuration: SetupService is required")
	}

	initialized, err := cfg.Setup.IsInitialized(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check for administrators: %w", err)
	}
	if initialized {
		slog.Info("Administrator already exists - skipping admin bootstrap")
		return &AdminBootstrapResult{}, nil
	}

	password := cfg.AdminPassword
	fromEnv := password != ""
	if !fromEnv {
		password, err = generatePassword()
		if err != nil {
			return nil, err
		}
	}

	account, err := cfg.Setup.CreateFirstAdmin(ctx, login.SetupParams{
		Username: cfg.AdminUsername,
		Password: password,
		Email:    cfg.AdminEmail,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create admin user: %w", err)
	}
	slog.Info("Admin user created", "username", account.Username, "account_id", account.ID)

	result := &AdminBootstrapResult{
		AccountID:       account.ID,
		Username:        account.Username,
		Email:           account.Email,
		UserCreated:     true,
		PasswordFromEnv: fromEnv,
	}
	if !fromEnv {
		result.Password = password
	}
	return result, nil
}

// generatePassword returns 20 random base32 characters.
func generatePassword() (string, error) {
	buf := make([]byte, 13)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate password: %w", err)
	}
	return strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf))[:20], nil
}
