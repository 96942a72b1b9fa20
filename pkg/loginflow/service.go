package loginflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/proxy-admin-auth/internal/keylock"
	"github.com/tendant/proxy-admin-auth/pkg/audit"
	apperrors "github.com/tendant/proxy-admin-auth/pkg/errors"
	"github.com/tendant/proxy-admin-auth/pkg/login"
	"github.com/tendant/proxy-admin-auth/pkg/metrics"
	"github.com/tendant/proxy-admin-auth/pkg/sessions"
	tg "github.com/tendant/proxy-admin-auth/pkg/tokengenerator"
	"github.com/tendant/proxy-admin-auth/pkg/twofa"
)

// Request is a password login.
type Request struct {
	Username string
	Password string
}

// Result is either a session (Token) or, when RequiresSecondFactor is set,
// a pending token (TempToken) that only the verification step accepts.
type Result struct {
	Token                string
	TempToken            string
	RequiresSecondFactor bool
	ExpiresAt            time.Time
	Account              login.AccountSummary
}

// SecondFactorChecker is the part of twofa.Service the login flow needs.
type SecondFactorChecker interface {
	IsEnabled(ctx context.Context, accountID uuid.UUID) (bool, error)
	VerifyCredential(ctx context.Context, accountID uuid.UUID, limiterKey string, cred twofa.Credential) error
}

// Dependencies are the services the flow steps call.
type Dependencies struct {
	Authenticator *login.Authenticator
	Accounts      login.AccountRepository
	SecondFactor  SecondFactorChecker
	Tokens        *tg.Issuer
	Pending       sessions.PendingStore
	Recorder      audit.Recorder
	Now           func() time.Time
}

func (d *Dependencies) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Service runs password login and the second-factor completion step.
type Service struct {
	deps     *Dependencies
	executor *FlowExecutor
	// pendingLocks serializes verification per pending session.
	pendingLocks *keylock.Locker
}

func NewService(deps Dependencies) *Service {
	if deps.SecondFactor == nil {
		deps.SecondFactor = twofa.NoOpChecker{}
	}
	if deps.Recorder == nil {
		deps.Recorder = audit.NoOpRecorder{}
	}
	d := &deps
	return &Service{deps: d, executor: DefaultPasswordLoginFlow().Build(d), pendingLocks: keylock.New()}
}

// PendingLimiterKey scopes verification attempts to one pending session.
func PendingLimiterKey(jti string) string {
	return "pending:" + jti
}

// Login checks the password. Accounts without a second factor get a
// session; enrolled accounts get a pending token and nothing else.
func (s *Service) Login(ctx context.Context, req Request) (Result, error) {
	return s.executor.Execute(ctx, req)
}

// VerifyLogin completes a pending login. A failed check leaves the pending
// session in place until it expires or the limiter blocks it; success
// consumes it so the pending token cannot be used twice. Submissions for
// the same pending session run one at a time from lookup to consume, so a
// submission that arrives after the winner is refused before its credential
// is checked and a backup code is never spent on a lost race.
func (s *Service) VerifyLogin(ctx context.Context, pendingToken string, cred twofa.Credential) (Result, error) {
	claims, err := s.deps.Tokens.Parse(pendingToken, tg.KindPending)
	if err != nil {
		slog.Debug("Rejected pending token", "err", err)
		return Result{}, apperrors.ErrTokenInvalid
	}
	accountID, _ := claims.AccountID()

	unlock := s.pendingLocks.Lock(claims.ID)
	defer unlock()

	pending, err := s.deps.Pending.Get(ctx, claims.ID)
	if errors.Is(err, sessions.ErrNotFound) {
		return Result{}, apperrors.ErrTokenInvalid
	}
	if err != nil {
		return Result{}, apperrors.InternalWrap(err, "failed to load pending session")
	}
	if pending.AccountID != accountID || pending.Expired(s.deps.now()) {
		return Result{}, apperrors.ErrTokenInvalid
	}

	account, err := s.deps.Accounts.GetByID(ctx, accountID)
	if errors.Is(err, login.ErrAccountNotFound) {
		return Result{}, apperrors.ErrTokenInvalid
	}
	if err != nil {
		return Result{}, apperrors.InternalWrap(err, "failed to load account")
	}
	if !account.IsActive || !account.IsAdmin {
		slog.Warn("Pending login for account that lost access", "account_id", accountID)
		return Result{}, apperrors.ErrTokenInvalid
	}

	if err := s.deps.SecondFactor.VerifyCredential(ctx, accountID, PendingLimiterKey(claims.ID), cred); err != nil {
		return Result{}, err
	}

	if _, err := s.deps.Pending.Consume(ctx, claims.ID); err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			return Result{}, apperrors.ErrTokenInvalid
		}
		return Result{}, apperrors.InternalWrap(err, "failed to consume pending session")
	}

	issued, err := s.deps.Tokens.IssueSession(subjectOf(account))
	if err != nil {
		return Result{}, apperrors.InternalWrap(err, "failed to issue session token")
	}
	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	s.deps.Recorder.Record(ctx, audit.Event{
		AccountID: account.ID,
		Username:  account.Username,
		Type:      audit.LoginSuccess,
		Method:    string(cred.Method),
		Success:   true,
	})
	return Result{
		Token:     issued.Token,
		ExpiresAt: issued.ExpiresAt,
		Account:   login.Summarize(account, true),
	}, nil
}
