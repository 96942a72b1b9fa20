package twofa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/proxy-admin-auth/internal/keylock"
	"github.com/tendant/proxy-admin-auth/pkg/audit"
	"github.com/tendant/proxy-admin-auth/pkg/backupcode"
	apperrors "github.com/tendant/proxy-admin-auth/pkg/errors"
	"github.com/tendant/proxy-admin-auth/pkg/metrics"
	"github.com/tendant/proxy-admin-auth/pkg/ratelimit"
)

// AttemptLimiter is the part of ratelimit.AttemptLimiter the service needs.
type AttemptLimiter interface {
	Allow(key string) (bool, time.Duration)
	RecordFailure(key string)
	Reset(key string)
}

// Status describes an account's second factor without exposing secrets.
type Status struct {
	State                State `json:"state"`
	Enabled              bool  `json:"enabled"`
	Pending              bool  `json:"pending"`
	BackupCodesRemaining int   `json:"backup_codes_remaining"`
}

// Service drives the enrollment state machine:
// DISABLED -> PENDING_CONFIRMATION -> ENABLED -> DISABLED, with
// regeneration looping on ENABLED. Mutations for one account are
// serialized in process, and the repository rejects stale transitions.
type Service struct {
	states    StateRepository
	codes     *backupcode.Service
	cipher    *SecretCipher
	generator *Generator
	verifier  *Verifier
	limiter   AttemptLimiter
	recorder  audit.Recorder
	locks     *keylock.Locker
}

type Option func(*Service)

func WithGenerator(g *Generator) Option {
	return func(s *Service) {
		s.generator = g
	}
}

func WithVerifier(v *Verifier) Option {
	return func(s *Service) {
		s.verifier = v
	}
}

func WithAttemptLimiter(l AttemptLimiter) Option {
	return func(s *Service) {
		s.limiter = l
	}
}

func WithRecorder(r audit.Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

func NewService(states StateRepository, codes *backupcode.Service, cipher *SecretCipher, opts ...Option) *Service {
	s := &Service{
		states:    states,
		codes:     codes,
		cipher:    cipher,
		generator: NewGenerator(DefaultIssuer),
		verifier:  NewVerifier(),
		recorder:  audit.NoOpRecorder{},
		locks:     keylock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil {
		s.limiter = ratelimit.NewAttemptLimiter(ratelimit.DefaultMaxAttempts, ratelimit.DefaultWindow)
	}
	return s
}

// AccountLimiterKey is the attempt-limiter key for operations an account
// performs on its own factor with a full session.
func AccountLimiterKey(accountID uuid.UUID) string {
	return "account:" + accountID.String()
}

func (s *Service) Status(ctx context.Context, accountID uuid.UUID) (Status, error) {
	state, err := s.states.Get(ctx, accountID)
	if err != nil {
		return Status{}, apperrors.InternalWrap(err, "failed to load second factor state")
	}
	st := Status{
		State:   state.State(),
		Enabled: state.Enabled,
		Pending: state.State() == StatePendingConfirmation,
	}
	if state.Enabled {
		remaining, err := s.codes.Remaining(ctx, accountID)
		if err != nil {
			return Status{}, apperrors.InternalWrap(err, "failed to count backup codes")
		}
		st.BackupCodesRemaining = remaining
	}
	return st, nil
}

// IsEnabled reports whether login must stop at the second-factor step.
func (s *Service) IsEnabled(ctx context.Context, accountID uuid.UUID) (bool, error) {
	state, err := s.states.Get(ctx, accountID)
	if err != nil {
		return false, fmt.Errorf("failed to load second factor state: %w", err)
	}
	return state.Enabled, nil
}

// Setup starts enrollment. A second call before confirmation replaces the
// pending secret, so only the newest QR code can be confirmed.
func (s *Service) Setup(ctx context.Context, accountID uuid.UUID, accountName string) (Enrollment, error) {
	unlock := s.locks.Lock(accountID.String())
	defer unlock()

	state, err := s.states.Get(ctx, accountID)
	if err != nil {
		return Enrollment{}, apperrors.InternalWrap(err, "failed to load second factor state")
	}
	if state.Enabled {
		return Enrollment{}, apperrors.StateConflict("Two-factor authentication is already enabled")
	}

	enrollment, err := s.generator.GenerateSecret(accountName)
	if err != nil {
		return Enrollment{}, apperrors.InternalWrap(err, "failed to generate secret")
	}
	sealed, err := s.cipher.Encrypt(enrollment.Secret)
	if err != nil {
		return Enrollment{}, apperrors.InternalWrap(err, "failed to encrypt secret")
	}
	if err := s.states.SetPending(ctx, accountID, sealed); err != nil {
		if errors.Is(err, ErrStateChanged) {
			return Enrollment{}, apperrors.StateConflict("Two-factor authentication is already enabled")
		}
		return Enrollment{}, apperrors.InternalWrap(err, "failed to store pending secret")
	}

	slog.Info("Two-factor setup started", "account_id", accountID)
	s.record(ctx, accountID, audit.TwoFASetup, MethodTOTP, true)
	return enrollment, nil
}

// ConfirmSetup checks code against the pending secret. On success the
// factor is enabled and a fresh backup code set is returned once. On a
// wrong code nothing changes and the same secret may be tried again.
func (s *Service) ConfirmSetup(ctx context.Context, accountID uuid.UUID, code string) ([]string, error) {
	unlock := s.locks.Lock(accountID.String())
	defer unlock()

	key := AccountLimiterKey(accountID)
	if err := s.allow(key); err != nil {
		return nil, err
	}

	state, err := s.states.Get(ctx, accountID)
	if err != nil {
		return nil, apperrors.InternalWrap(err, "failed to load second factor state")
	}
	switch state.State() {
	case StateEnabled:
		return nil, apperrors.StateConflict("Two-factor authentication is already enabled")
	case StateDisabled:
		return nil, apperrors.StateConflict("No pending two-factor setup")
	}

	secret, err := s.cipher.Decrypt(state.PendingSecret)
	if err != nil {
		return nil, apperrors.InternalWrap(err, "failed to decrypt pending secret")
	}
	if !s.verifier.Validate(secret, code) {
		s.limiter.RecordFailure(key)
		metrics.TwoFAVerificationsTotal.WithLabelValues("confirm", string(MethodTOTP), "failure").Inc()
		s.record(ctx, accountID, audit.TwoFAEnable, MethodTOTP, false)
		return nil, apperrors.ErrInvalidCode
	}

	if err := s.states.Activate(ctx, accountID, state.PendingSecret); err != nil {
		if errors.Is(err, ErrStateChanged) {
			return nil, apperrors.StateConflict("Two-factor setup changed, start again")
		}
		return nil, apperrors.InternalWrap(err, "failed to enable second factor")
	}
	codes, err := s.codes.Issue(ctx, accountID)
	if err != nil {
		// Never leave the factor enabled without a recovery path.
		if rbErr := s.states.Deactivate(ctx, accountID); rbErr != nil {
			slog.Error("Failed to roll back second factor activation", "account_id", accountID, "err", rbErr)
		}
		return nil, apperrors.InternalWrap(err, "failed to issue backup codes")
	}

	s.limiter.Reset(key)
	metrics.TwoFAVerificationsTotal.WithLabelValues("confirm", string(MethodTOTP), "success").Inc()
	slog.Info("Two-factor authentication enabled", "account_id", accountID)
	s.record(ctx, accountID, audit.TwoFAEnable, MethodTOTP, true)
	return codes, nil
}

// Disable turns the factor off after one successful credential check and
// drops the secret together with every backup code.
func (s *Service) Disable(ctx context.Context, accountID uuid.UUID, cred Credential) error {
	unlock := s.locks.Lock(accountID.String())
	defer unlock()

	if err := s.checkCredential(ctx, "disable", accountID, AccountLimiterKey(accountID), cred); err != nil {
		if apperrors.IsCode(err, apperrors.ErrCode2FAInvalid) {
			s.record(ctx, accountID, audit.TwoFADisable, cred.Method, false)
		}
		return err
	}

	// Codes go first: a failure here leaves the factor enabled with its
	// set intact, and a disabled factor never keeps stored codes.
	if err := s.codes.Clear(ctx, accountID); err != nil {
		slog.Error("Failed to clear backup codes", "account_id", accountID, "err", err)
		return apperrors.InternalWrap(err, "failed to clear backup codes")
	}
	if err := s.states.Deactivate(ctx, accountID); err != nil {
		if errors.Is(err, ErrStateChanged) {
			return apperrors.StateConflict("Two-factor authentication is not enabled")
		}
		return apperrors.InternalWrap(err, "failed to disable second factor")
	}

	slog.Info("Two-factor authentication disabled", "account_id", accountID, "method", cred.Method)
	s.record(ctx, accountID, audit.TwoFADisable, cred.Method, true)
	return nil
}

// RegenerateBackupCodes replaces the whole backup set after one successful
// credential check. Every code of the old set stops working.
func (s *Service) RegenerateBackupCodes(ctx context.Context, accountID uuid.UUID, cred Credential) ([]string, error) {
	unlock := s.locks.Lock(accountID.String())
	defer unlock()

	if err := s.checkCredential(ctx, "regenerate", accountID, AccountLimiterKey(accountID), cred); err != nil {
		if apperrors.IsCode(err, apperrors.ErrCode2FAInvalid) {
			s.record(ctx, accountID, audit.TwoFARegenerate, cred.Method, false)
		}
		return nil, err
	}

	codes, err := s.codes.Regenerate(ctx, accountID)
	if err != nil {
		return nil, apperrors.InternalWrap(err, "failed to regenerate backup codes")
	}
	s.record(ctx, accountID, audit.TwoFARegenerate, cred.Method, true)
	return codes, nil
}

// VerifyCredential checks a login-time credential for an enabled account.
// limiterKey scopes the attempt counter, normally to the pending session.
func (s *Service) VerifyCredential(ctx context.Context, accountID uuid.UUID, limiterKey string, cred Credential) error {
	unlock := s.locks.Lock(accountID.String())
	defer unlock()

	err := s.checkCredential(ctx, "login", accountID, limiterKey, cred)
	switch {
	case err == nil:
		s.record(ctx, accountID, audit.TwoFAVerify, cred.Method, true)
	case apperrors.IsCode(err, apperrors.ErrCode2FAInvalid):
		s.record(ctx, accountID, audit.TwoFAVerify, cred.Method, false)
	}
	return err
}

// checkCredential runs the limiter and then exactly one verification path
// chosen by cred.Method. Caller holds the account lock.
func (s *Service) checkCredential(ctx context.Context, operation string, accountID uuid.UUID, limiterKey string, cred Credential) error {
	if err := s.allow(limiterKey); err != nil {
		return err
	}

	state, err := s.states.Get(ctx, accountID)
	if err != nil {
		return apperrors.InternalWrap(err, "failed to load second factor state")
	}
	if !state.Enabled {
		return apperrors.StateConflict("Two-factor authentication is not enabled")
	}

	var ok bool
	switch cred.Method {
	case MethodBackupCode:
		ok, err = s.codes.Consume(ctx, accountID, cred.Value)
		if err != nil {
			return apperrors.InternalWrap(err, "failed to check backup code")
		}
	case MethodTOTP:
		secret, err := s.cipher.Decrypt(state.Secret)
		if err != nil {
			return apperrors.InternalWrap(err, "failed to decrypt secret")
		}
		ok = s.verifier.Validate(secret, cred.Value)
	}

	if !ok {
		s.limiter.RecordFailure(limiterKey)
		metrics.TwoFAVerificationsTotal.WithLabelValues(operation, string(cred.Method), "failure").Inc()
		slog.Warn("Second factor check failed", "operation", operation, "account_id", accountID, "method", cred.Method)
		return apperrors.ErrInvalidCode
	}

	s.limiter.Reset(limiterKey)
	metrics.TwoFAVerificationsTotal.WithLabelValues(operation, string(cred.Method), "success").Inc()
	return nil
}

func (s *Service) allow(key string) error {
	ok, retryAfter := s.limiter.Allow(key)
	if ok {
		return nil
	}
	metrics.RateLimitedTotal.WithLabelValues("twofa").Inc()
	return apperrors.RateLimited(ratelimit.RetryAfterSeconds(retryAfter))
}

func (s *Service) record(ctx context.Context, accountID uuid.UUID, typ audit.EventType, method Method, success bool) {
	s.recorder.Record(ctx, audit.Event{
		AccountID: accountID,
		Type:      typ,
		Method:    string(method),
		Success:   success,
	})
}
