package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"
	"github.com/tendant/proxy-admin-auth/migrations"
	"github.com/tendant/proxy-admin-auth/pkg/audit"
	"github.com/tendant/proxy-admin-auth/pkg/bootstrap"
	"github.com/tendant/proxy-admin-auth/pkg/config"
	"github.com/tendant/proxy-admin-auth/pkg/ratelimit"
	"github.com/tendant/proxy-admin-auth/pkg/sessions"
)

type Config struct {
	LogFormat string `env:"LOG_FORMAT" env-default:"text"`

	JWT            config.JWTConfig
	TwoFA          config.TwoFAConfig
	Persistence    config.PersistenceConfig
	Database       config.DatabaseConfig
	Audit          config.AuditConfig
	Redis          config.RedisConfig
	LoginRateLimit config.LoginRateLimitConfig
	Proxy          config.ProxyConfig
	AdminBootstrap config.AdminBootstrapConfig

	AppConfig app.AppConfig
}

func main() {
	config.LoadEnvFile()

	cfg := Config{}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(-1)
	}
	setupLogger(cfg.LogFormat)

	if err := audit.SetTrustedProxies(cfg.Proxy.TrustedProxies); err != nil {
		slog.Error("Invalid TRUSTED_PROXIES", "err", err)
		os.Exit(-1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var pool *pgxpool.Pool
	if isPostgres(cfg.Persistence.Type) {
		if err := migrations.Up(cfg.Database.ToDatabaseURL()); err != nil {
			slog.Error("Failed to apply migrations", "err", err)
			os.Exit(-1)
		}
		var err error
		pool, err = dbutils.NewDbPool(ctx, cfg.Database.ToDbConfig())
		if err != nil {
			slog.Error("Failed creating dbpool", "db", cfg.Database.Database, "host", cfg.Database.Host, "port", cfg.Database.Port, "user", cfg.Database.User)
			os.Exit(-1)
		}
		defer pool.Close()
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Error("Failed to connect to redis", "addr", cfg.Redis.Addr, "err", err)
			os.Exit(-1)
		}
		defer rdb.Close()
	}

	recorder, closeRecorder, err := newRecorder(ctx, cfg.Audit)
	if err != nil {
		slog.Error("Failed to open audit recorder", "driver", cfg.Audit.Driver, "err", err)
		os.Exit(-1)
	}
	defer closeRecorder()

	services, err := bootstrap.NewServices(bootstrap.ServicesConfig{
		Persistence: cfg.Persistence,
		JWT:         cfg.JWT,
		TwoFA:       cfg.TwoFA,
		Pool:        pool,
		Redis:       rdb,
		Recorder:    recorder,
	})
	if err != nil {
		slog.Error("Failed to initialize services", "err", err)
		os.Exit(-1)
	}
	defer services.Close()

	result, err := bootstrap.BootstrapAdmin(ctx, bootstrap.AdminBootstrapConfig{
		AdminUsername: cfg.AdminBootstrap.Username,
		AdminEmail:    cfg.AdminBootstrap.Email,
		AdminPassword: cfg.AdminBootstrap.Password,
		Setup:         services.Setup,
	})
	if err != nil {
		slog.Error("Admin bootstrap failed", "err", err)
		os.Exit(-1)
	}
	bootstrap.PrintBootstrapResult(os.Stdout, result)
	bootstrap.LogBootstrapSummary(result)

	if store, ok := services.Pending.(*sessions.PostgresPendingStore); ok {
		go purgeExpiredSessions(ctx, store, 10*time.Minute)
	}

	var loginLimiter func(http.Handler) http.Handler
	if cfg.LoginRateLimit.Enabled {
		idleTTL, err := config.ParseDuration(cfg.LoginRateLimit.IdleTTL)
		if err != nil {
			slog.Error("Invalid LOGIN_RATE_IDLE_TTL", "value", cfg.LoginRateLimit.IdleTTL, "err", err)
			os.Exit(-1)
		}
		loginLimiter = ratelimit.NewIPLimiter(cfg.LoginRateLimit.PerMinute, cfg.LoginRateLimit.Burst, idleTTL).Handler
		slog.Info("Login rate limiting configured", "per_minute", cfg.LoginRateLimit.PerMinute, "burst", cfg.LoginRateLimit.Burst)
	}

	server := app.DefaultApp()
	setupServer(server.R, services, loginLimiter)

	slog.Info("Admin authentication service ready",
		"persistence", cfg.Persistence.Type,
		"audit", cfg.Audit.Driver,
		"redis", cfg.Redis.Enabled())
	server.Run()
}

func setupLogger(format string) {
	opts := &slog.HandlerOptions{AddSource: true}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func isPostgres(kind string) bool {
	return kind == "postgres" || kind == "postgresql"
}

func newRecorder(ctx context.Context, cfg config.AuditConfig) (audit.Recorder, func(), error) {
	switch cfg.Driver {
	case "none", "":
		return audit.NoOpRecorder{}, func() {}, nil
	case "log":
		return audit.NewLogRecorder(slog.Default()), func() {}, nil
	default:
		rec, err := audit.OpenSQLRecorder(ctx, cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return rec, func() {
			if err := rec.Close(); err != nil {
				slog.Error("Failed to close audit recorder", "err", err)
			}
		}, nil
	}
}

func purgeExpiredSessions(ctx context.Context, store *sessions.PostgresPendingStore, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := store.DeleteExpired(ctx); err != nil {
				slog.Warn("Pending session cleanup failed", "err", err)
			}
		}
	}
}
