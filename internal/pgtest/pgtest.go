// Package pgtest starts a throwaway PostgreSQL container migrated to the
// service schema for repository tests.
package pgtest

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/tendant/proxy-admin-auth/migrations"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Start returns a pool connected to a fresh database. Tests calling it are
// skipped with -short.
func Start(t *testing.T) (*pgxpool.Pool, func()) {
	t.Helper()
	connString, terminate := startContainer(t)

	pool, err := pgxpool.New(context.Background(), connString)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		terminate()
	}
	return pool, cleanup
}

// ConnString is Start for callers that need a DSN instead of a pool.
func ConnString(t *testing.T) (string, func()) {
	t.Helper()
	return startContainer(t)
}

func startContainer(t *testing.T) (string, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("proxy_admin"),
		postgres.WithUsername("proxy_admin"),
		postgres.WithPassword("pwd"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)

	terminate := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	connString, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		terminate()
		require.NoError(t, err)
	}
	if err := migrations.Up(connString); err != nil {
		terminate()
		require.NoError(t, err)
	}
	return connString, terminate
}
