package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tg "github.com/tendant/proxy-admin-auth/pkg/tokengenerator"
)

func newRouter(t *testing.T, tokens *tg.Issuer) http.Handler {
	t.Helper()
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(RequireSession(tokens))
		r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
			u, ok := GetAuthUser(r)
			require.True(t, ok)
			w.Write([]byte(u.Username))
		})
		r.With(RequireAdmin).Get("/admin", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	})
	return r
}

func TestRequireSession(t *testing.T) {
	tokens, err := tg.NewIssuer("client-test-secret")
	require.NoError(t, err)
	router := newRouter(t, tokens)
	subject := tg.Subject{AccountID: uuid.New(), Username: "admin", IsAdmin: true}

	do := func(path, bearer string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("session token passes", func(t *testing.T) {
		session, err := tokens.IssueSession(subject)
		require.NoError(t, err)
		w := do("/me", session.Token)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "admin", w.Body.String())
		assert.Equal(t, http.StatusNoContent, do("/admin", session.Token).Code)
	})

	t.Run("pending token is refused", func(t *testing.T) {
		pending, err := tokens.IssuePending(subject)
		require.NoError(t, err)
		w := do("/me", pending.Token)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "TOKEN_INVALID", body["code"])
	})

	t.Run("missing token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do("/me", "").Code)
	})

	t.Run("expired session", func(t *testing.T) {
		old, err := tg.NewIssuer("client-test-secret", tg.WithClock(func() time.Time {
			return time.Now().Add(-48 * time.Hour)
		}))
		require.NoError(t, err)
		session, err := old.IssueSession(subject)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, do("/me", session.Token).Code)
	})

	t.Run("non-admin session is forbidden on admin routes", func(t *testing.T) {
		session, err := tokens.IssueSession(tg.Subject{AccountID: uuid.New(), Username: "viewer"})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, do("/me", session.Token).Code)
		assert.Equal(t, http.StatusForbidden, do("/admin", session.Token).Code)
	})
}

func TestPendingTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	assert.Equal(t, "body", PendingTokenFromRequest(req, " body "))

	req.Header.Set("Authorization", "Bearer bearer")
	assert.Equal(t, "bearer", PendingTokenFromRequest(req, "body"))

	req.Header.Set(PendingTokenHeader, "header")
	assert.Equal(t, "header", PendingTokenFromRequest(req, "body"))
}
