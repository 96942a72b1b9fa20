package sessions

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runPendingStoreTests(t *testing.T, store PendingStore, newAccount func(t *testing.T) uuid.UUID) {
	ctx := context.Background()

	newSession := func(t *testing.T, ttl time.Duration) PendingSession {
		now := time.Now().UTC().Truncate(time.Microsecond)
		return PendingSession{
			JTI:       uuid.NewString(),
			AccountID: newAccount(t),
			CreatedAt: now,
			ExpiresAt: now.Add(ttl),
		}
	}

	t.Run("create get consume", func(t *testing.T) {
		s := newSession(t, time.Minute)
		require.NoError(t, store.Create(ctx, s))

		got, err := store.Get(ctx, s.JTI)
		require.NoError(t, err)
		assert.Equal(t, s.AccountID, got.AccountID)

		got, err = store.Consume(ctx, s.JTI)
		require.NoError(t, err)
		assert.Equal(t, s.JTI, got.JTI)

		_, err = store.Get(ctx, s.JTI)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = store.Consume(ctx, s.JTI)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unknown jti", func(t *testing.T) {
		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("expired session is rejected", func(t *testing.T) {
		s := newSession(t, -time.Second)
		require.NoError(t, store.Create(ctx, s))

		_, err := store.Get(ctx, s.JTI)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = store.Consume(ctx, s.JTI)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("concurrent consume has one winner", func(t *testing.T) {
		s := newSession(t, time.Minute)
		require.NoError(t, store.Create(ctx, s))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := store.Consume(ctx, s.JTI); err == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})
}

func TestInMemoryPendingStore(t *testing.T) {
	store := NewInMemoryPendingStore(100, time.Minute)
	runPendingStoreTests(t, store, func(t *testing.T) uuid.UUID { return uuid.New() })

	t.Run("size bound evicts oldest", func(t *testing.T) {
		small := NewInMemoryPendingStore(2, time.Minute)
		ctx := context.Background()
		exp := time.Now().Add(time.Minute)
		for _, jti := range []string{"a", "b", "c"} {
			require.NoError(t, small.Create(ctx, PendingSession{JTI: jti, AccountID: uuid.New(), ExpiresAt: exp}))
		}
		assert.Equal(t, 2, small.Len())
		_, err := small.Get(ctx, "a")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("clock controls expiry", func(t *testing.T) {
		now := time.Now()
		clocked := NewInMemoryPendingStore(10, time.Hour, WithStoreClock(func() time.Time { return now }))
		ctx := context.Background()
		require.NoError(t, clocked.Create(ctx, PendingSession{JTI: "x", AccountID: uuid.New(), ExpiresAt: now.Add(5 * time.Minute)}))

		_, err := clocked.Get(ctx, "x")
		require.NoError(t, err)

		now = now.Add(5 * time.Minute)
		_, err = clocked.Get(ctx, "x")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestNewPendingStore(t *testing.T) {
	store, err := NewPendingStore("file", StoreConfig{TTL: time.Minute})
	require.NoError(t, err)
	assert.IsType(t, &InMemoryPendingStore{}, store)

	_, err = NewPendingStore("postgres", StoreConfig{})
	assert.Error(t, err)

	_, err = NewPendingStore("redis", StoreConfig{})
	assert.Error(t, err)
}
