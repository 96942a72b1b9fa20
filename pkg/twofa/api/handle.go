package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/tendant/proxy-admin-auth/pkg/client"
	apperrors "github.com/tendant/proxy-admin-auth/pkg/errors"
	"github.com/tendant/proxy-admin-auth/pkg/twofa"
)

// Handle serves second-factor management for the signed-in administrator.
// Every route expects client.RequireSession to have run.
type Handle struct {
	service *twofa.Service
}

func NewHandle(service *twofa.Service) *Handle {
	return &Handle{service: service}
}

// Setup starts enrollment and returns the secret, URL and QR code.
// (POST /2fa/setup)
func (h *Handle) Setup(w http.ResponseWriter, r *http.Request) {
	user, ok := client.GetAuthUser(r)
	if !ok {
		apperrors.Render(w, r, apperrors.ErrTokenInvalid)
		return
	}
	enrollment, err := h.service.Setup(r.Context(), user.AccountID, user.Username)
	if err != nil {
		apperrors.Render(w, r, err)
		return
	}
	render.JSON(w, r, enrollment)
}

// VerifySetup confirms enrollment with a one-time code.
// (POST /2fa/verify-setup)
func (h *Handle) VerifySetup(w http.ResponseWriter, r *http.Request) {
	user, ok := client.GetAuthUser(r)
	if !ok {
		apperrors.Render(w, r, apperrors.ErrTokenInvalid)
		return
	}
	var req CodeRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		apperrors.Render(w, r, apperrors.InvalidInput("Invalid request body"))
		return
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		apperrors.Render(w, r, apperrors.InvalidInput("Verification code is required"))
		return
	}

	codes, err := h.service.ConfirmSetup(r.Context(), user.AccountID, code)
	if err != nil {
		apperrors.Render(w, r, err)
		return
	}
	render.JSON(w, r, VerifySetupResponse{
		Message:     "Two-factor authentication activated",
		BackupCodes: codes,
	})
}

// Disable turns the second factor off after a code or backup code check.
// (POST /2fa/disable)
func (h *Handle) Disable(w http.ResponseWriter, r *http.Request) {
	user, cred, ok := h.credential(w, r)
	if !ok {
		return
	}
	if err := h.service.Disable(r.Context(), user.AccountID, cred); err != nil {
		apperrors.Render(w, r, err)
		return
	}
	render.JSON(w, r, MessageResponse{Message: "Two-factor authentication disabled"})
}

// RegenerateBackupCodes replaces the backup code set.
// (POST /2fa/backup-codes)
func (h *Handle) RegenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	user, cred, ok := h.credential(w, r)
	if !ok {
		return
	}
	codes, err := h.service.RegenerateBackupCodes(r.Context(), user.AccountID, cred)
	if err != nil {
		apperrors.Render(w, r, err)
		return
	}
	render.JSON(w, r, BackupCodesResponse{Codes: codes})
}

// Status reports enrollment state and remaining backup codes.
// (GET /2fa/status)
func (h *Handle) Status(w http.ResponseWriter, r *http.Request) {
	user, ok := client.GetAuthUser(r)
	if !ok {
		apperrors.Render(w, r, apperrors.ErrTokenInvalid)
		return
	}
	status, err := h.service.Status(r.Context(), user.AccountID)
	if err != nil {
		apperrors.Render(w, r, err)
		return
	}
	render.JSON(w, r, status)
}

// credential decodes a CodeRequest and writes the error response itself
// when it returns false.
func (h *Handle) credential(w http.ResponseWriter, r *http.Request) (client.AuthUser, twofa.Credential, bool) {
	user, ok := client.GetAuthUser(r)
	if !ok {
		apperrors.Render(w, r, apperrors.ErrTokenInvalid)
		return client.AuthUser{}, twofa.Credential{}, false
	}
	var req CodeRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		apperrors.Render(w, r, apperrors.InvalidInput("Invalid request body"))
		return client.AuthUser{}, twofa.Credential{}, false
	}
	cred, ok := twofa.ChooseCredential(req.Code, req.BackupCode)
	if !ok {
		apperrors.Render(w, r, apperrors.InvalidInput("Verification or backup code is required"))
		return client.AuthUser{}, twofa.Credential{}, false
	}
	return user, cred, true
}
