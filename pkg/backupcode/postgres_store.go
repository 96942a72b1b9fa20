package backupcode

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps backup codes in the account_backup_codes table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Replace deletes the previous set and inserts the new one in a single transaction.
func (s *PostgresStore) Replace(ctx context.Context, accountID uuid.UUID, hashes []string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM account_backup_codes WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("failed to delete backup codes: %w", err)
	}
	for _, h := range hashes {
		_, err := tx.Exec(ctx, `
			INSERT INTO account_backup_codes (id, account_id, code_hash, used, created_at)
			VALUES ($1, $2, $3, false, NOW())
		`, uuid.New(), accountID, h)
		if err != nil {
			return fmt.Errorf("failed to insert backup code: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit backup codes: %w", err)
	}
	return nil
}

// ConsumeMatching runs the bcrypt comparisons without holding row locks and
// claims the matching row with a conditional update, so a concurrent
// consumer of the same code affects zero rows.
func (s *PostgresStore) ConsumeMatching(ctx context.Context, accountID uuid.UUID, match MatchFunc) (bool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, code_hash FROM account_backup_codes
		WHERE account_id = $1 AND used = false
	`, accountID)
	if err != nil {
		return false, fmt.Errorf("failed to query backup codes: %w", err)
	}

	type candidate struct {
		id   uuid.UUID
		hash string
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.id, &c.hash); err != nil {
			rows.Close()
			return false, fmt.Errorf("failed to scan backup code: %w", err)
		}
		candidates = append(candidates, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("failed to read backup codes: %w", err)
	}

	for _, c := range candidates {
		if !match(c.hash) {
			continue
		}
		tag, err := s.pool.Exec(ctx, `
			UPDATE account_backup_codes SET used = true, used_at = NOW()
			WHERE id = $1 AND account_id = $2 AND used = false
		`, c.id, accountID)
		if err != nil {
			return false, fmt.Errorf("failed to mark backup code used: %w", err)
		}
		return tag.RowsAffected() == 1, nil
	}
	return false, nil
}

func (s *PostgresStore) Clear(ctx context.Context, accountID uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM account_backup_codes WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("failed to clear backup codes: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountUnused(ctx context.Context, accountID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM account_backup_codes WHERE account_id = $1 AND used = false
	`, accountID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count backup codes: %w", err)
	}
	return n, nil
}
