package sessions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPendingStore implements PendingStore on the pending_sessions table.
type PostgresPendingStore struct {
	pool *pgxpool.Pool
}

func NewPostgresPendingStore(pool *pgxpool.Pool) *PostgresPendingStore {
	return &PostgresPendingStore{pool: pool}
}

func (s *PostgresPendingStore) Create(ctx context.Context, session PendingSession) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pending_sessions (jti, account_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
	`, session.JTI, session.AccountID, session.CreatedAt, session.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to create pending session: %w", err)
	}
	return nil
}

func (s *PostgresPendingStore) Get(ctx context.Context, jti string) (PendingSession, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT jti, account_id, created_at, expires_at
		FROM pending_sessions
		WHERE jti = $1 AND expires_at > NOW()
	`, jti)
	return scanPending(row)
}

// Consume deletes and returns the row in one statement, so concurrent
// callers race on the row lock and only one sees it.
func (s *PostgresPendingStore) Consume(ctx context.Context, jti string) (PendingSession, error) {
	row := s.pool.QueryRow(ctx, `
		DELETE FROM pending_sessions
		WHERE jti = $1 AND expires_at > NOW()
		RETURNING jti, account_id, created_at, expires_at
	`, jti)
	return scanPending(row)
}

// DeleteExpired removes expired rows. Expired rows are already rejected on
// read; this only keeps the table small.
func (s *PostgresPendingStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM pending_sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired pending sessions: %w", err)
	}
	if n := tag.RowsAffected(); n > 0 {
		slog.Info("Deleted expired pending sessions", "count", n)
	}
	return tag.RowsAffected(), nil
}

func scanPending(row pgx.Row) (PendingSession, error) {
	var session PendingSession
	err := row.Scan(&session.JTI, &session.AccountID, &session.CreatedAt, &session.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PendingSession{}, ErrNotFound
	}
	if err != nil {
		return PendingSession{}, fmt.Errorf("failed to read pending session: %w", err)
	}
	return session, nil
}
