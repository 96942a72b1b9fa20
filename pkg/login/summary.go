package login

import (
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

// AccountSummary is the client-facing view of an account.
type AccountSummary struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Comment      string    `json:"comment"`
	IsAdmin      bool      `json:"is_admin"`
	IsActive     bool      `json:"is_active"`
	ProxyType    ProxyType `json:"proxy_type"`
	TwoFAEnabled bool      `json:"twofa_enabled"`
	Whitelist    []string  `json:"whitelist,omitempty"`
	Blacklist    []string  `json:"blacklist,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Summarize copies the public fields of account.
func Summarize(account Account, twoFAEnabled bool) AccountSummary {
	var summary AccountSummary
	copier.Copy(&summary, &account)
	summary.TwoFAEnabled = twoFAEnabled
	return summary
}
