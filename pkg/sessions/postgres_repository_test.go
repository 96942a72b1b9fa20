package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/proxy-admin-auth/internal/pgtest"
)

func TestPostgresPendingStore(t *testing.T) {
	pool, cleanup := pgtest.Start(t)
	defer cleanup()

	store := NewPostgresPendingStore(pool)
	newAccount := func(t *testing.T) uuid.UUID {
		id := uuid.New()
		_, err := pool.Exec(context.Background(),
			`INSERT INTO accounts (id, username, password_hash) VALUES ($1, $2, 'x')`, id, id.String())
		require.NoError(t, err)
		return id
	}
	runPendingStoreTests(t, store, newAccount)

	t.Run("delete expired", func(t *testing.T) {
		ctx := context.Background()
		past := time.Now().Add(-time.Hour)
		require.NoError(t, store.Create(ctx, PendingSession{
			JTI: uuid.NewString(), AccountID: newAccount(t), CreatedAt: past, ExpiresAt: past.Add(time.Minute),
		}))
		n, err := store.DeleteExpired(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(1))
	})
}
