package login

import (
	"context"
	"errors"
	"log/slog"

	apperrors "github.com/tendant/proxy-admin-auth/pkg/errors"
)

// Failure reasons wrapped inside ErrInvalidCredentials. Only audit records
// see them; clients get the same message for all.
var (
	ErrUnknownUser   = errors.New("user_not_found")
	ErrWrongPassword = errors.New("invalid_password")
	ErrInactive      = errors.New("inactive")
	ErrNotAdmin      = errors.New("not_admin")
)

// Authenticator checks a username and password for console access.
type Authenticator struct {
	accounts AccountRepository
	hasher   PasswordHasher
	// dummyHash is compared for unknown usernames so the response time
	// does not reveal whether an account exists.
	dummyHash string
}

func NewAuthenticator(accounts AccountRepository, hasher PasswordHasher) *Authenticator {
	if hasher == nil {
		hasher = NewBcryptHasher(0)
	}
	dummy, err := hasher.Hash("proxy-admin-dummy-password")
	if err != nil {
		slog.Error("Failed to prepare dummy password hash", "err", err)
	}
	return &Authenticator{accounts: accounts, hasher: hasher, dummyHash: dummy}
}

// Authenticate returns the account when the password matches and the
// account is an active administrator. Every rejection is
// ErrInvalidCredentials; FailureReason recovers the cause for auditing.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (Account, error) {
	account, err := a.accounts.GetByUsername(ctx, username)
	if errors.Is(err, ErrAccountNotFound) {
		a.hasher.Verify(password, a.dummyHash)
		return Account{}, apperrors.Because(apperrors.ErrInvalidCredentials, ErrUnknownUser)
	}
	if err != nil {
		return Account{}, apperrors.InternalWrap(err, "failed to load account")
	}

	ok, err := a.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		slog.Error("Stored password hash is unusable", "account_id", account.ID, "err", err)
		ok = false
	}
	if !ok {
		return account, apperrors.Because(apperrors.ErrInvalidCredentials, ErrWrongPassword)
	}
	if !account.IsActive {
		return account, apperrors.Because(apperrors.ErrInvalidCredentials, ErrInactive)
	}
	if !account.IsAdmin {
		return account, apperrors.Because(apperrors.ErrInvalidCredentials, ErrNotAdmin)
	}
	return account, nil
}

// FailureReason names why Authenticate rejected a login, or "" if err is
// not a credential failure.
func FailureReason(err error) string {
	for _, reason := range []error{ErrUnknownUser, ErrWrongPassword, ErrInactive, ErrNotAdmin} {
		if errors.Is(err, reason) {
			return reason.Error()
		}
	}
	return ""
}
