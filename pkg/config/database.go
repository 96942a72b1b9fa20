package config

import (
	"fmt"

	dbutils "github.com/tendant/db-utils/db"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `env:"ADMIN_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"ADMIN_PG_PORT" env-default:"5432"`
	Database string `env:"ADMIN_PG_DATABASE" env-default:"proxy_admin"`
	User     string `env:"ADMIN_PG_USER" env-default:"proxy_admin"`
	Password string `env:"ADMIN_PG_PASSWORD" env-default:"pwd"`
}

// ToDatabaseURL renders a libpq-style URL, accepted by both pgx and lib/pq.
func (d DatabaseConfig) ToDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Database)
}

func (d DatabaseConfig) ToDbConfig() dbutils.DbConfig {
	return dbutils.DbConfig{
		Host:     d.Host,
		Port:     d.Port,
		Database: d.Database,
		User:     d.User,
		Password: d.Password,
	}
}

// PersistenceConfig selects where accounts and second-factor state live.
type PersistenceConfig struct {
	Type    string `env:"PERSISTENCE_TYPE" env-default:"memory"`
	DataDir string `env:"DATA_DIR" env-default:"./data"`
}

// AuditConfig selects the audit event sink.
// Driver is one of "sqlite", "postgres", "log" or "none".
type AuditConfig struct {
	Driver string `env:"AUDIT_DRIVER" env-default:"log"`
	DSN    string `env:"AUDIT_DSN" env-default:"file:audit.db?cache=shared"`
}

// RedisConfig points pending sessions at a shared redis. Empty Addr keeps
// them in the persistence backend.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" env-default:""`
	Password string `env:"REDIS_PASSWORD" env-default:""`
	DB       int    `env:"REDIS_DB" env-default:"0"`
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}
