package sessions

import (
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StoreConfig contains what each persistence type needs.
type StoreConfig struct {
	// Pool is required for PostgreSQL stores
	Pool *pgxpool.Pool
	// Redis, when set, takes precedence over the persistence type
	Redis *redis.Client
	// TTL bounds in-memory entries, normally the pending token expiry
	TTL time.Duration
	// MaxPending caps the in-memory store
	MaxPending int
}

// NewPendingStore creates a PendingStore for the given persistence type.
// Pending sessions are short-lived, so the file type keeps them in memory.
func NewPendingStore(persistenceType string, config StoreConfig) (PendingStore, error) {
	if config.Redis != nil {
		return NewRedisPendingStore(config.Redis), nil
	}
	switch persistenceType {
	case "postgres", "postgresql":
		if config.Pool == nil {
			return nil, fmt.Errorf("pool required for postgres pending store")
		}
		return NewPostgresPendingStore(config.Pool), nil
	case "memory", "inmem", "file", "":
		return NewInMemoryPendingStore(config.MaxPending, config.TTL), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: postgres, file, memory)", persistenceType)
	}
}
