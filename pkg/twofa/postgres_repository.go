package twofa

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStateRepository implements StateRepository on account_second_factor.
// Each transition is a single conditional statement; zero affected rows
// means the precondition no longer holds.
type PostgresStateRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresStateRepository(pool *pgxpool.Pool) *PostgresStateRepository {
	return &PostgresStateRepository{pool: pool}
}

func (r *PostgresStateRepository) Get(ctx context.Context, accountID uuid.UUID) (FactorState, error) {
	state := FactorState{AccountID: accountID}
	err := r.pool.QueryRow(ctx, `
		SELECT enabled, COALESCE(secret, ''), COALESCE(pending_secret, ''), updated_at
		FROM account_second_factor
		WHERE account_id = $1
	`, accountID).Scan(&state.Enabled, &state.Secret, &state.PendingSecret, &state.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return FactorState{AccountID: accountID}, nil
	}
	if err != nil {
		return FactorState{}, fmt.Errorf("failed to get second factor state: %w", err)
	}
	return state, nil
}

func (r *PostgresStateRepository) SetPending(ctx context.Context, accountID uuid.UUID, pendingSecret string) error {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO account_second_factor (account_id, enabled, pending_secret, updated_at)
		VALUES ($1, false, $2, NOW())
		ON CONFLICT (account_id) DO UPDATE
		SET pending_secret = EXCLUDED.pending_secret, updated_at = NOW()
		WHERE account_second_factor.enabled = false
	`, accountID, pendingSecret)
	if err != nil {
		return fmt.Errorf("failed to store pending secret: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStateChanged
	}
	return nil
}

func (r *PostgresStateRepository) Activate(ctx context.Context, accountID uuid.UUID, expectedPending string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE account_second_factor
		SET enabled = true, secret = pending_secret, pending_secret = NULL, updated_at = NOW()
		WHERE account_id = $1 AND enabled = false AND pending_secret = $2
	`, accountID, expectedPending)
	if err != nil {
		return fmt.Errorf("failed to activate second factor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStateChanged
	}
	return nil
}

func (r *PostgresStateRepository) Deactivate(ctx context.Context, accountID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE account_second_factor
		SET enabled = false, secret = NULL, pending_secret = NULL, updated_at = NOW()
		WHERE account_id = $1 AND enabled = true
	`, accountID)
	if err != nil {
		return fmt.Errorf("failed to deactivate second factor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStateChanged
	}
	return nil
}
