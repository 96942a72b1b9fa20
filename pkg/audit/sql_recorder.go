package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS auth_events (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    account_id  TEXT,
    username    TEXT NOT NULL DEFAULT '',
    event       TEXT NOT NULL,
    method      TEXT NOT NULL DEFAULT '',
    success     BOOLEAN NOT NULL,
    details     TEXT NOT NULL DEFAULT '',
    ip_address  TEXT NOT NULL DEFAULT '',
    user_agent  TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_auth_events_account ON auth_events(account_id, created_at);
`

// SQLRecorder writes events to the auth_events table through sqlx.
// Supported drivers are "sqlite" (modernc) and "postgres" (lib/pq).
type SQLRecorder struct {
	db *sqlx.DB
}

// OpenSQLRecorder connects to dsn. For sqlite the table is created on open;
// postgres deployments get it from migrations.
func OpenSQLRecorder(ctx context.Context, driver, dsn string) (*SQLRecorder, error) {
	switch driver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported audit driver: %s", driver)
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect audit store: %w", err)
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create audit schema: %w", err)
		}
	}
	return &SQLRecorder{db: db}, nil
}

func (r *SQLRecorder) Record(ctx context.Context, event Event) {
	event = fill(ctx, event)
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO auth_events (account_id, username, event, method, success, details, ip_address, user_agent, created_at)
		VALUES (:account_id, :username, :event, :method, :success, :details, :ip_address, :user_agent, :created_at)
	`, event)
	if err != nil {
		slog.Error("Failed to record audit event", "event", event.Type, "account_id", event.AccountID, "err", err)
	}
}

// Recent returns the newest events for an account, newest first.
func (r *SQLRecorder) Recent(ctx context.Context, accountID uuid.UUID, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	events := []Event{}
	query := r.db.Rebind(`
		SELECT id, account_id, username, event, method, success, details, ip_address, user_agent, created_at
		FROM auth_events
		WHERE account_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`)
	if err := r.db.SelectContext(ctx, &events, query, accountID, limit); err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	return events, nil
}

func (r *SQLRecorder) Close() error {
	return r.db.Close()
}
