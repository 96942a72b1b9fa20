package client

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	tg "github.com/tendant/proxy-admin-auth/pkg/tokengenerator"
)

// AuthUser is the caller identity derived from a verified token.
type AuthUser struct {
	AccountID uuid.UUID
	Username  string
	IsAdmin   bool
	Kind      tg.Kind
	TokenID   string
	ExpiresAt time.Time
}

func (u AuthUser) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("account_id", u.AccountID.String()),
		slog.String("username", u.Username),
		slog.String("kind", string(u.Kind)),
	)
}

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation.
type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "proxy-admin context value " + k.name
}

const (
	// TEMP_TOKEN_NAME is the body field that may carry a pending token.
	TEMP_TOKEN_NAME = "temp_token"
	// PendingTokenHeader may carry a pending token.
	PendingTokenHeader = "X-2FA-Token"
)

var AuthUserKey = &contextKey{"AuthUser"}

func FromClaims(claims *tg.Claims) AuthUser {
	id, _ := claims.AccountID()
	u := AuthUser{
		AccountID: id,
		Username:  claims.Username,
		IsAdmin:   claims.IsAdmin,
		Kind:      claims.Kind,
		TokenID:   claims.ID,
	}
	if claims.ExpiresAt != nil {
		u.ExpiresAt = claims.ExpiresAt.Time
	}
	return u
}

func WithAuthUser(ctx context.Context, u AuthUser) context.Context {
	return context.WithValue(ctx, AuthUserKey, u)
}

// GetAuthUser returns the identity placed by RequireSession.
func GetAuthUser(r *http.Request) (AuthUser, bool) {
	u, ok := r.Context().Value(AuthUserKey).(AuthUser)
	return u, ok
}

// PendingTokenFromRequest finds a pending token in the X-2FA-Token header,
// then the Authorization bearer, then bodyToken.
func PendingTokenFromRequest(r *http.Request, bodyToken string) string {
	if tok := strings.TrimSpace(r.Header.Get(PendingTokenHeader)); tok != "" {
		return tok
	}
	if tok := jwtauth.TokenFromHeader(r); tok != "" {
		return tok
	}
	return strings.TrimSpace(bodyToken)
}
