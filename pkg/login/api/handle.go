package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/proxy-admin-auth/pkg/audit"
	"github.com/tendant/proxy-admin-auth/pkg/client"
	apperrors "github.com/tendant/proxy-admin-auth/pkg/errors"
	"github.com/tendant/proxy-admin-auth/pkg/login"
	"github.com/tendant/proxy-admin-auth/pkg/loginflow"
	tg "github.com/tendant/proxy-admin-auth/pkg/tokengenerator"
	"github.com/tendant/proxy-admin-auth/pkg/twofa"
)

// Handle serves initial setup, login and the current-account endpoint.
type Handle struct {
	setup        *login.SetupService
	flow         *loginflow.Service
	accounts     login.AccountRepository
	secondFactor loginflow.SecondFactorChecker
	tokens       *tg.Issuer
	recorder     audit.Recorder
}

type HandleConfig struct {
	Setup        *login.SetupService
	Flow         *loginflow.Service
	Accounts     login.AccountRepository
	SecondFactor loginflow.SecondFactorChecker
	Tokens       *tg.Issuer
	Recorder     audit.Recorder
}

func NewHandle(cfg HandleConfig) *Handle {
	if cfg.SecondFactor == nil {
		cfg.SecondFactor = twofa.NoOpChecker{}
	}
	if cfg.Recorder == nil {
		cfg.Recorder = audit.NoOpRecorder{}
	}
	return &Handle{
		setup:        cfg.Setup,
		flow:         cfg.Flow,
		accounts:     cfg.Accounts,
		secondFactor: cfg.SecondFactor,
		tokens:       cfg.Tokens,
		recorder:     cfg.Recorder,
	}
}

// CheckInit reports whether an administrator exists.
// (GET /init/check)
func (h *Handle) CheckInit(w http.ResponseWriter, r *http.Request) {
	initialized, err := h.setup.IsInitialized(r.Context())
	if err != nil {
		apperrors.Render(w, r, err)
		return
	}
	render.JSON(w, r, InitCheckResponse{Initialized: initialized})
}

// InitSetup creates the first administrator and signs them in.
// (POST /init/setup)
func (h *Handle) InitSetup(w http.ResponseWriter, r *http.Request) {
	var params login.SetupParams
	if err := render.DecodeJSON(r.Body, &params); err != nil {
		apperrors.Render(w, r, apperrors.InvalidInput("Invalid request body"))
		return
	}

	account, err := h.setup.CreateFirstAdmin(r.Context(), params)
	if err != nil {
		apperrors.Render(w, r, err)
		return
	}
	slog.Info("Initial administrator created", "account_id", account.ID, "username", account.Username)
	h.recorder.Record(r.Context(), audit.Event{
		AccountID: account.ID,
		Username:  account.Username,
		Type:      audit.InitialSetup,
		Success:   true,
	})

	issued, err := h.tokens.IssueSession(tg.Subject{AccountID: account.ID, Username: account.Username, IsAdmin: true})
	if err != nil {
		apperrors.Render(w, r, apperrors.InternalWrap(err, "failed to issue session token"))
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, LoginResponse{
		Token:   issued.Token,
		User:    login.Summarize(account, false),
		Message: "Admin user created successfully",
	})
}

// Login checks the password and returns a session or a pending token.
// (POST /auth/login)
func (h *Handle) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		apperrors.Render(w, r, apperrors.InvalidInput("Invalid request body"))
		return
	}
	if req.Username == "" || req.Password == "" {
		apperrors.Render(w, r, apperrors.InvalidInput("Username and password are required"))
		return
	}

	res, err := h.flow.Login(r.Context(), loginflow.Request{Username: req.Username, Password: req.Password})
	if err != nil {
		apperrors.Render(w, r, err)
		return
	}
	if res.RequiresSecondFactor {
		render.JSON(w, r, LoginResponse{
			User:        res.Account,
			Requires2FA: true,
			TempToken:   res.TempToken,
			Message:     "Two-factor authentication required",
		})
		return
	}
	render.JSON(w, r, LoginResponse{Token: res.Token, User: res.Account})
}

// Verify2FA completes a pending login with a code or backup code.
// (POST /auth/2fa/verify)
func (h *Handle) Verify2FA(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		apperrors.Render(w, r, apperrors.InvalidInput("Invalid request body"))
		return
	}
	pendingToken := client.PendingTokenFromRequest(r, req.TempToken)
	if pendingToken == "" {
		apperrors.Render(w, r, apperrors.ErrTokenInvalid)
		return
	}
	cred, ok := twofa.ChooseCredential(req.Code, req.BackupCode)
	if !ok {
		apperrors.Render(w, r, apperrors.InvalidInput("Verification or backup code is required"))
		return
	}

	res, err := h.flow.VerifyLogin(r.Context(), pendingToken, cred)
	if err != nil {
		apperrors.Render(w, r, err)
		return
	}
	render.JSON(w, r, LoginResponse{
		Token:   res.Token,
		User:    res.Account,
		Message: "Two-factor verification successful",
	})
}

// Me returns the signed-in account.
// (GET /auth/me)
func (h *Handle) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := client.GetAuthUser(r)
	if !ok {
		apperrors.Render(w, r, apperrors.ErrTokenInvalid)
		return
	}
	account, err := h.accounts.GetByID(r.Context(), user.AccountID)
	if errors.Is(err, login.ErrAccountNotFound) {
		apperrors.Render(w, r, apperrors.ErrTokenInvalid)
		return
	}
	if err != nil {
		apperrors.Render(w, r, apperrors.InternalWrap(err, "failed to load account"))
		return
	}
	enabled, err := h.secondFactor.IsEnabled(r.Context(), account.ID)
	if err != nil {
		apperrors.Render(w, r, err)
		return
	}
	render.JSON(w, r, login.Summarize(account, enabled))
}
