package twofa

import (
	"context"

	"github.com/google/uuid"
	apperrors "github.com/tendant/proxy-admin-auth/pkg/errors"
)

// NoOpChecker stands in for Service where second factors are switched off.
// No account is ever enrolled, so login always completes with the password.
type NoOpChecker struct{}

func (NoOpChecker) IsEnabled(ctx context.Context, accountID uuid.UUID) (bool, error) {
	return false, nil
}

func (NoOpChecker) VerifyCredential(ctx context.Context, accountID uuid.UUID, limiterKey string, cred Credential) error {
	return apperrors.StateConflict("Two-factor authentication is not enabled")
}
