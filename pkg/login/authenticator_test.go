package login

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/tendant/proxy-admin-auth/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

func newTestAuthenticator(t *testing.T) (*Authenticator, AccountRepository) {
	t.Helper()
	hasher := NewBcryptHasher(bcrypt.MinCost)
	repo := NewInMemoryAccountRepository()
	ctx := context.Background()

	add := func(username string, admin, active bool) {
		hash, err := hasher.Hash("correct horse")
		require.NoError(t, err)
		_, err = repo.Create(ctx, Account{Username: username, PasswordHash: hash, IsAdmin: admin, IsActive: active})
		require.NoError(t, err)
	}
	add("admin", true, true)
	add("viewer", false, true)
	add("retired", true, false)

	return NewAuthenticator(repo, hasher), repo
}

func TestAuthenticate(t *testing.T) {
	auth, _ := newTestAuthenticator(t)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		account, err := auth.Authenticate(ctx, "admin", "correct horse")
		require.NoError(t, err)
		assert.Equal(t, "admin", account.Username)
	})

	failures := []struct {
		name     string
		username string
		password string
		reason   error
	}{
		{"unknown user", "ghost", "correct horse", ErrUnknownUser},
		{"wrong password", "admin", "wrong", ErrWrongPassword},
		{"inactive", "retired", "correct horse", ErrInactive},
		{"not admin", "viewer", "correct horse", ErrNotAdmin},
	}
	for _, tc := range failures {
		t.Run(tc.name, func(t *testing.T) {
			_, err := auth.Authenticate(ctx, tc.username, tc.password)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
			assert.ErrorIs(t, err, tc.reason)
			assert.Equal(t, tc.reason.Error(), FailureReason(err))
			assert.Equal(t, "Invalid credentials", apperrors.PublicMessage(err), "clients see one message")
		})
	}

	t.Run("wrong password is checked before account flags", func(t *testing.T) {
		_, err := auth.Authenticate(ctx, "viewer", "wrong")
		assert.ErrorIs(t, err, ErrWrongPassword)
	})

	assert.Empty(t, FailureReason(nil))
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	hash, err := h.Hash("secret-pass")
	require.NoError(t, err)

	ok, err := h.Verify("secret-pass", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("other", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.Verify("x", "not-a-hash")
	assert.Error(t, err)

	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(0).cost)
}

func TestSummarize(t *testing.T) {
	_, repo := newTestAuthenticator(t)
	account, err := repo.GetByUsername(context.Background(), "admin")
	require.NoError(t, err)

	summary := Summarize(account, true)
	assert.Equal(t, account.ID, summary.ID)
	assert.Equal(t, "admin", summary.Username)
	assert.True(t, summary.IsAdmin)
	assert.True(t, summary.TwoFAEnabled)
	assert.Equal(t, ProxyTypeDefault, summary.ProxyType)
}
