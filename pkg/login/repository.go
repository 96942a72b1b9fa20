package login

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProxyType is an account's proxy access-list mode.
type ProxyType string

const (
	ProxyTypeDefault   ProxyType = "default"
	ProxyTypeWhitelist ProxyType = "whitelist"
	ProxyTypeBlacklist ProxyType = "blacklist"
)

func (p ProxyType) Valid() bool {
	switch p {
	case ProxyTypeDefault, ProxyTypeWhitelist, ProxyTypeBlacklist:
		return true
	}
	return false
}

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrAlreadyInitialized = errors.New("an administrator already exists")
)

// Account is an operator or proxy user. PasswordHash is never serialized
// to clients; use Summary for responses.
type Account struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	Email        string    `json:"email"`
	Comment      string    `json:"comment"`
	IsAdmin      bool      `json:"is_admin"`
	IsActive     bool      `json:"is_active"`
	ProxyType    ProxyType `json:"proxy_type"`
	Whitelist    []string  `json:"whitelist"`
	Blacklist    []string  `json:"blacklist"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AccountRepository persists accounts.
type AccountRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Account, error)
	GetByUsername(ctx context.Context, username string) (Account, error)
	Create(ctx context.Context, account Account) (Account, error)
	HasAdmin(ctx context.Context) (bool, error)
	// CreateFirstAdmin creates account only if no administrator exists,
	// checking and inserting as one step. It returns ErrAlreadyInitialized
	// otherwise.
	CreateFirstAdmin(ctx context.Context, account Account) (Account, error)
}

// prepare fills the defaults every repository applies on insert.
func prepare(account Account, now time.Time) Account {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	account.Username = strings.TrimSpace(account.Username)
	if account.ProxyType == "" {
		account.ProxyType = ProxyTypeDefault
	}
	if account.Whitelist == nil {
		account.Whitelist = []string{}
	}
	if account.Blacklist == nil {
		account.Blacklist = []string{}
	}
	account.CreatedAt = now
	account.UpdatedAt = now
	return account
}
