package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/proxy-admin-auth/pkg/client"
	loginapi "github.com/tendant/proxy-admin-auth/pkg/login/api"
	tg "github.com/tendant/proxy-admin-auth/pkg/tokengenerator"
	twofaapi "github.com/tendant/proxy-admin-auth/pkg/twofa/api"
)

const (
	DefaultInitPrefix = "/api/init"
	DefaultAuthPrefix = "/api/auth"
)

// Config holds the handlers and middleware the console routes need.
type Config struct {
	InitPrefix string
	AuthPrefix string

	LoginHandle *loginapi.Handle
	TwoFAHandle *twofaapi.Handle
	Tokens      *tg.Issuer

	// LoginLimiter throttles unauthenticated endpoints per client IP.
	// Optional.
	LoginLimiter func(http.Handler) http.Handler
}

// SetupRoutes mounts the init, login and second-factor routes.
//
// Public routes accept no token, the verify route accepts only a pending
// token (checked by the handler), and everything else requires an admin
// session.
func SetupRoutes(router chi.Router, cfg Config) {
	if cfg.InitPrefix == "" {
		cfg.InitPrefix = DefaultInitPrefix
	}
	if cfg.AuthPrefix == "" {
		cfg.AuthPrefix = DefaultAuthPrefix
	}
	limit := cfg.LoginLimiter
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}

	router.Route(cfg.InitPrefix, func(r chi.Router) {
		r.Get("/check", cfg.LoginHandle.CheckInit)
		r.With(limit).Post("/setup", cfg.LoginHandle.InitSetup)
	})

	router.Route(cfg.AuthPrefix, func(r chi.Router) {
		r.With(limit).Post("/login", cfg.LoginHandle.Login)
		r.With(limit).Post("/2fa/verify", cfg.LoginHandle.Verify2FA)

		r.Group(func(r chi.Router) {
			r.Use(client.RequireSession(cfg.Tokens))
			r.Use(client.RequireAdmin)

			r.Get("/me", cfg.LoginHandle.Me)
			r.Post("/2fa/setup", cfg.TwoFAHandle.Setup)
			r.Post("/2fa/verify-setup", cfg.TwoFAHandle.VerifySetup)
			r.Post("/2fa/disable", cfg.TwoFAHandle.Disable)
			r.Post("/2fa/backup-codes", cfg.TwoFAHandle.RegenerateBackupCodes)
			r.Get("/2fa/status", cfg.TwoFAHandle.Status)
		})
	})
}
