// Package audit records authentication and second-factor events.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// EventType names a recorded authentication event.
type EventType string

const (
	LoginSuccess    EventType = "LOGIN_SUCCESS"
	LoginFail       EventType = "LOGIN_FAIL"
	LoginPending2FA EventType = "LOGIN_2FA_PENDING"
	TwoFASetup      EventType = "TWOFA_SETUP"
	TwoFAEnable     EventType = "TWOFA_ENABLE"
	TwoFAVerify     EventType = "TWOFA_VERIFY"
	TwoFADisable    EventType = "TWOFA_DISABLE"
	TwoFARegenerate EventType = "TWOFA_BACKUP_REGENERATE"
	InitialSetup    EventType = "INITIAL_SETUP"
)

// Event is one audit record. Codes, secrets and passwords never appear here.
type Event struct {
	ID        int64     `json:"id" db:"id"`
	AccountID uuid.UUID `json:"account_id" db:"account_id"`
	Username  string    `json:"username" db:"username"`
	Type      EventType `json:"event" db:"event"`
	Method    string    `json:"method,omitempty" db:"method"`
	Success   bool      `json:"success" db:"success"`
	Details   string    `json:"details,omitempty" db:"details"`
	IPAddress string    `json:"ip_address" db:"ip_address"`
	UserAgent string    `json:"user_agent" db:"user_agent"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Recorder stores events. Implementations log their own failures; auditing
// never fails the request that triggered it.
type Recorder interface {
	Record(ctx context.Context, event Event)
}

// Lister is implemented by recorders that can read events back.
type Lister interface {
	Recent(ctx context.Context, accountID uuid.UUID, limit int) ([]Event, error)
}

// NoOpRecorder drops every event.
type NoOpRecorder struct{}

func (NoOpRecorder) Record(ctx context.Context, event Event) {}

// LogRecorder writes events to a slog logger.
type LogRecorder struct {
	logger *slog.Logger
}

func NewLogRecorder(logger *slog.Logger) *LogRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogRecorder{logger: logger}
}

func (r *LogRecorder) Record(ctx context.Context, event Event) {
	event = fill(ctx, event)
	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	r.logger.LogAttrs(ctx, level, "auth event",
		slog.String("event", string(event.Type)),
		slog.String("account_id", event.AccountID.String()),
		slog.String("username", event.Username),
		slog.String("method", event.Method),
		slog.Bool("success", event.Success),
		slog.String("details", event.Details),
		slog.String("ip", event.IPAddress),
	)
}

// fill copies request metadata from ctx and stamps the time.
func fill(ctx context.Context, event Event) Event {
	client := ClientFrom(ctx)
	if event.IPAddress == "" {
		event.IPAddress = client.IPAddress
	}
	if event.UserAgent == "" {
		event.UserAgent = client.UserAgent
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	return event
}
