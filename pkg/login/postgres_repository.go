package login

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	accountColumns = `id, username, password_hash, email, comment, is_admin, is_active,
		proxy_type, whitelist, blacklist, created_at, updated_at`

	uniqueViolation = "23505"

	// firstAdminLockKey serializes CreateFirstAdmin across instances.
	firstAdminLockKey = 7_100_001
)

// PostgresAccountRepository implements AccountRepository on the accounts table.
type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

func (r *PostgresAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

func (r *PostgresAccountRepository) GetByUsername(ctx context.Context, username string) (Account, error) {
	return scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE username = $1`, strings.TrimSpace(username)))
}

func (r *PostgresAccountRepository) Create(ctx context.Context, account Account) (Account, error) {
	return insertAccount(ctx, r.pool, account)
}

func (r *PostgresAccountRepository) HasAdmin(ctx context.Context) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE is_admin)`).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check for administrators: %w", err)
	}
	return exists, nil
}

func (r *PostgresAccountRepository) CreateFirstAdmin(ctx context.Context, account Account) (Account, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Account{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, firstAdminLockKey); err != nil {
		return Account{}, fmt.Errorf("failed to lock initial setup: %w", err)
	}
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE is_admin)`).Scan(&exists); err != nil {
		return Account{}, fmt.Errorf("failed to check for administrators: %w", err)
	}
	if exists {
		return Account{}, ErrAlreadyInitialized
	}

	created, err := insertAccount(ctx, tx, account)
	if err != nil {
		return Account{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Account{}, fmt.Errorf("failed to commit initial setup: %w", err)
	}
	return created, nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertAccount(ctx context.Context, q queryRower, account Account) (Account, error) {
	account = prepare(account, time.Now().UTC())
	created, err := scanAccount(q.QueryRow(ctx, `
		INSERT INTO accounts (id, username, password_hash, email, comment, is_admin, is_active,
			proxy_type, whitelist, blacklist, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+accountColumns,
		account.ID, account.Username, account.PasswordHash, account.Email, account.Comment,
		account.IsAdmin, account.IsActive, string(account.ProxyType), account.Whitelist, account.Blacklist,
		account.CreatedAt, account.UpdatedAt,
	))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return Account{}, ErrUsernameTaken
	}
	return created, err
}

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	var proxyType string
	err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Email, &a.Comment, &a.IsAdmin, &a.IsActive,
		&proxyType, &a.Whitelist, &a.Blacklist, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("failed to read account: %w", err)
	}
	a.ProxyType = ProxyType(proxyType)
	return a, nil
}
