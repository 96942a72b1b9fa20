package login

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/tendant/proxy-admin-auth/pkg/errors"
)

const initialAdminComment = "Initial admin user"

// SetupParams is the first administrator's details.
type SetupParams struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// SetupService bootstraps the console with its first administrator.
type SetupService struct {
	accounts AccountRepository
	hasher   PasswordHasher
	policy   PasswordPolicyChecker
}

func NewSetupService(accounts AccountRepository, hasher PasswordHasher, policy PasswordPolicyChecker) *SetupService {
	if hasher == nil {
		hasher = NewBcryptHasher(0)
	}
	if policy == nil {
		policy = NewDefaultPasswordPolicyChecker(nil)
	}
	return &SetupService{accounts: accounts, hasher: hasher, policy: policy}
}

// IsInitialized reports whether any administrator exists.
func (s *SetupService) IsInitialized(ctx context.Context) (bool, error) {
	ok, err := s.accounts.HasAdmin(ctx)
	if err != nil {
		return false, apperrors.InternalWrap(err, "failed to check initialization")
	}
	return ok, nil
}

// CreateFirstAdmin creates an active administrator while none exists.
func (s *SetupService) CreateFirstAdmin(ctx context.Context, params SetupParams) (Account, error) {
	username := strings.TrimSpace(params.Username)
	if username == "" || params.Password == "" {
		return Account{}, apperrors.InvalidInput("Username and password are required")
	}
	if err := s.policy.CheckPasswordComplexity(params.Password); err != nil {
		return Account{}, apperrors.InvalidInput(err.Error())
	}
	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return Account{}, apperrors.InternalWrap(err, "failed to hash password")
	}

	account, err := s.accounts.CreateFirstAdmin(ctx, Account{
		Username:     username,
		PasswordHash: hash,
		Email:        strings.TrimSpace(params.Email),
		Comment:      initialAdminComment,
		IsAdmin:      true,
		IsActive:     true,
		ProxyType:    ProxyTypeDefault,
	})
	switch {
	case errors.Is(err, ErrAlreadyInitialized):
		return Account{}, apperrors.StateConflict("System already initialized")
	case errors.Is(err, ErrUsernameTaken):
		return Account{}, apperrors.StateConflict("Username already exists")
	case err != nil:
		return Account{}, apperrors.InternalWrap(err, "failed to create administrator")
	}
	return account, nil
}
