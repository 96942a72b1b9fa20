package backupcode

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// StoreConfig carries what each persistence type needs.
type StoreConfig struct {
	Pool    *pgxpool.Pool
	DataDir string
}

// NewStore creates a Store for the given persistence type.
func NewStore(persistenceType string, config StoreConfig) (Store, error) {
	switch persistenceType {
	case "postgres", "postgresql":
		if config.Pool == nil {
			return nil, fmt.Errorf("pool required for postgres backup code store")
		}
		return NewPostgresStore(config.Pool), nil
	case "file":
		if config.DataDir == "" {
			return nil, fmt.Errorf("dataDir required for file backup code store")
		}
		return NewFileStore(config.DataDir)
	case "memory", "inmem", "":
		return NewInMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: postgres, file, memory)", persistenceType)
	}
}
