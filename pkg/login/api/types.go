package api

import "github.com/tendant/proxy-admin-auth/pkg/login"

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is both the session response and, with Requires2FA set,
// the pending response.
type LoginResponse struct {
	Token       string               `json:"token,omitempty"`
	User        login.AccountSummary `json:"user"`
	Message     string               `json:"message,omitempty"`
	Requires2FA bool                 `json:"requires_2fa,omitempty"`
	TempToken   string               `json:"temp_token,omitempty"`
}

type VerifyRequest struct {
	Code       string `json:"code"`
	BackupCode string `json:"backup_code"`
	TempToken  string `json:"temp_token,omitempty"`
}

type InitCheckResponse struct {
	Initialized bool `json:"initialized"`
}
