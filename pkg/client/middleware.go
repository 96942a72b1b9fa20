package client

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	apperrors "github.com/tendant/proxy-admin-auth/pkg/errors"
	tg "github.com/tendant/proxy-admin-auth/pkg/tokengenerator"
)

// RequireSession admits requests bearing a valid session token and puts
// the AuthUser in the context. Pending tokens are refused with 401.
func RequireSession(tokens *tg.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := jwtauth.TokenFromHeader(r)
			if raw == "" {
				apperrors.Render(w, r, apperrors.New(apperrors.ErrCodeUnauthorized, "Authentication required"))
				return
			}
			claims, err := tokens.Parse(raw, tg.KindSession)
			if err != nil {
				slog.Debug("Rejected session token", "path", r.URL.Path, "err", err)
				apperrors.Render(w, r, apperrors.ErrTokenInvalid)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAuthUser(r.Context(), FromClaims(claims))))
		})
	}
}

// RequireAdmin returns 403 unless the session belongs to an administrator.
// Must be used after RequireSession.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := GetAuthUser(r)
		if !ok {
			apperrors.Render(w, r, apperrors.New(apperrors.ErrCodeUnauthorized, "Authentication required"))
			return
		}
		if !u.IsAdmin {
			slog.Warn("Non-admin session on admin route", "user", u, "path", r.URL.Path)
			apperrors.Render(w, r, apperrors.New(apperrors.ErrCodeForbidden, "Admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
