package login

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runAccountRepositoryTests(t *testing.T, repo AccountRepository) {
	ctx := context.Background()

	t.Run("create and look up", func(t *testing.T) {
		created, err := repo.Create(ctx, Account{Username: " alice ", PasswordHash: "h", IsActive: true})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, created.ID)
		assert.Equal(t, "alice", created.Username)
		assert.Equal(t, ProxyTypeDefault, created.ProxyType)
		assert.False(t, created.CreatedAt.IsZero())

		byName, err := repo.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byName.ID)

		byID, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", byID.Username)
		assert.Empty(t, byID.Whitelist)
	})

	t.Run("duplicate username", func(t *testing.T) {
		_, err := repo.Create(ctx, Account{Username: "bob", PasswordHash: "h"})
		require.NoError(t, err)
		_, err = repo.Create(ctx, Account{Username: "bob", PasswordHash: "h"})
		assert.ErrorIs(t, err, ErrUsernameTaken)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.GetByUsername(ctx, "nobody")
		assert.ErrorIs(t, err, ErrAccountNotFound)
		_, err = repo.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})

	t.Run("first admin is created once", func(t *testing.T) {
		has, err := repo.HasAdmin(ctx)
		require.NoError(t, err)
		require.False(t, has, "non-admin accounts do not count")

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := repo.CreateFirstAdmin(ctx, Account{
					Username:     "admin" + uuid.NewString()[:8],
					PasswordHash: "h",
					IsAdmin:      true,
					IsActive:     true,
				})
				if err == nil {
					wins.Add(1)
				} else {
					assert.ErrorIs(t, err, ErrAlreadyInitialized)
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())

		has, err = repo.HasAdmin(ctx)
		require.NoError(t, err)
		assert.True(t, has)
	})
}

func TestInMemoryAccountRepository(t *testing.T) {
	runAccountRepositoryTests(t, NewInMemoryAccountRepository())
}

func TestFileAccountRepository(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewFileAccountRepository(dir)
	require.NoError(t, err)
	runAccountRepositoryTests(t, repo)

	t.Run("reload from disk", func(t *testing.T) {
		reloaded, err := NewFileAccountRepository(dir)
		require.NoError(t, err)

		account, err := reloaded.GetByUsername(context.Background(), "alice")
		require.NoError(t, err)
		assert.Equal(t, "alice", account.Username)

		has, err := reloaded.HasAdmin(context.Background())
		require.NoError(t, err)
		assert.True(t, has)
	})
}

func TestNewAccountRepository(t *testing.T) {
	repo, err := NewAccountRepository("memory", RepositoryConfig{})
	require.NoError(t, err)
	assert.IsType(t, &InMemoryAccountRepository{}, repo)

	repo, err = NewAccountRepository("file", RepositoryConfig{DataDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileAccountRepository{}, repo)

	_, err = NewAccountRepository("postgres", RepositoryConfig{})
	assert.Error(t, err)
	_, err = NewAccountRepository("file", RepositoryConfig{})
	assert.Error(t, err)
	_, err = NewAccountRepository("mongo", RepositoryConfig{})
	assert.Error(t, err)
}
