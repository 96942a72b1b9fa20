package loginflow

import (
	"context"
	"log/slog"

	"github.com/tendant/proxy-admin-auth/pkg/audit"
	apperrors "github.com/tendant/proxy-admin-auth/pkg/errors"
	"github.com/tendant/proxy-admin-auth/pkg/login"
	"github.com/tendant/proxy-admin-auth/pkg/metrics"
	"github.com/tendant/proxy-admin-auth/pkg/sessions"
	tg "github.com/tendant/proxy-admin-auth/pkg/tokengenerator"
)

// CredentialAuthenticationStep checks username and password.
type CredentialAuthenticationStep struct{}

func (s *CredentialAuthenticationStep) Name() string { return "credential_authentication" }

func (s *CredentialAuthenticationStep) Order() int { return OrderCredentialAuthentication }

func (s *CredentialAuthenticationStep) Execute(ctx context.Context, fc *FlowContext) (StepResult, error) {
	account, err := fc.Services.Authenticator.Authenticate(ctx, fc.Request.Username, fc.Request.Password)
	if err != nil {
		if !apperrors.IsCode(err, apperrors.ErrCodeInvalidCredentials) {
			slog.Error("Login failed", "username", fc.Request.Username, "err", err)
			metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
			return StepResult{}, err
		}
		reason := login.FailureReason(err)
		slog.Warn("Login rejected", "username", fc.Request.Username, "reason", reason)
		metrics.LoginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
		fc.Services.Recorder.Record(ctx, audit.Event{
			AccountID: account.ID,
			Username:  fc.Request.Username,
			Type:      audit.LoginFail,
			Details:   reason,
		})
		return StepResult{}, err
	}
	fc.Account = account
	return StepResult{Continue: true}, nil
}

// SecondFactorRequirementStep stops the flow with a pending token when the
// account has an enabled second factor.
type SecondFactorRequirementStep struct{}

func (s *SecondFactorRequirementStep) Name() string { return "second_factor_requirement" }

func (s *SecondFactorRequirementStep) Order() int { return OrderSecondFactorRequirement }

func (s *SecondFactorRequirementStep) Execute(ctx context.Context, fc *FlowContext) (StepResult, error) {
	enabled, err := fc.Services.SecondFactor.IsEnabled(ctx, fc.Account.ID)
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return StepResult{}, err
	}
	fc.TwoFAEnabled = enabled
	if !enabled {
		return StepResult{Continue: true}, nil
	}

	issued, err := fc.Services.Tokens.IssuePending(subjectOf(fc.Account))
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return StepResult{}, apperrors.InternalWrap(err, "failed to issue pending token")
	}
	pending := sessions.PendingSession{
		JTI:       issued.ID,
		AccountID: fc.Account.ID,
		CreatedAt: fc.Services.now().UTC(),
		ExpiresAt: issued.ExpiresAt,
	}
	if err := fc.Services.Pending.Create(ctx, pending); err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return StepResult{}, apperrors.InternalWrap(err, "failed to store pending session")
	}

	*fc.Result = Result{
		RequiresSecondFactor: true,
		TempToken:            issued.Token,
		ExpiresAt:            issued.ExpiresAt,
		Account:              login.Summarize(fc.Account, true),
	}
	metrics.LoginAttemptsTotal.WithLabelValues("pending_2fa").Inc()
	fc.Services.Recorder.Record(ctx, audit.Event{
		AccountID: fc.Account.ID,
		Username:  fc.Account.Username,
		Type:      audit.LoginPending2FA,
		Success:   true,
	})
	return StepResult{Continue: false}, nil
}

// SessionIssuanceStep mints the full session token.
type SessionIssuanceStep struct{}

func (s *SessionIssuanceStep) Name() string { return "session_issuance" }

func (s *SessionIssuanceStep) Order() int { return OrderSessionIssuance }

func (s *SessionIssuanceStep) Execute(ctx context.Context, fc *FlowContext) (StepResult, error) {
	issued, err := fc.Services.Tokens.IssueSession(subjectOf(fc.Account))
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return StepResult{}, apperrors.InternalWrap(err, "failed to issue session token")
	}
	*fc.Result = Result{
		Token:     issued.Token,
		ExpiresAt: issued.ExpiresAt,
		Account:   login.Summarize(fc.Account, fc.TwoFAEnabled),
	}
	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	fc.Services.Recorder.Record(ctx, audit.Event{
		AccountID: fc.Account.ID,
		Username:  fc.Account.Username,
		Type:      audit.LoginSuccess,
		Method:    "password",
		Success:   true,
	})
	return StepResult{Continue: true}, nil
}

func subjectOf(account login.Account) tg.Subject {
	return tg.Subject{AccountID: account.ID, Username: account.Username, IsAdmin: account.IsAdmin}
}
