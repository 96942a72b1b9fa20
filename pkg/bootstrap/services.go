package bootstrap

import (
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/proxy-admin-auth/pkg/audit"
	"github.com/tendant/proxy-admin-auth/pkg/backupcode"
	"github.com/tendant/proxy-admin-auth/pkg/config"
	"github.com/tendant/proxy-admin-auth/pkg/login"
	loginapi "github.com/tendant/proxy-admin-auth/pkg/login/api"
	"github.com/tendant/proxy-admin-auth/pkg/loginflow"
	"github.com/tendant/proxy-admin-auth/pkg/ratelimit"
	"github.com/tendant/proxy-admin-auth/pkg/sessions"
	tg "github.com/tendant/proxy-admin-auth/pkg/tokengenerator"
	"github.com/tendant/proxy-admin-auth/pkg/twofa"
	twofaapi "github.com/tendant/proxy-admin-auth/pkg/twofa/api"
)

// ServicesConfig selects storage and tuning for NewServices.
type ServicesConfig struct {
	Persistence config.PersistenceConfig
	JWT         config.JWTConfig
	TwoFA       config.TwoFAConfig

	// Pool is required for postgres persistence.
	Pool *pgxpool.Pool
	// Redis, when set, holds pending sessions.
	Redis    *redis.Client
	Recorder audit.Recorder

	// BcryptCost applies to passwords and backup codes; zero means default.
	BcryptCost int
}

// Services is the wired authentication stack.
type Services struct {
	Accounts    login.AccountRepository
	Setup       *login.SetupService
	TwoFA       *twofa.Service
	Flow        *loginflow.Service
	Tokens      *tg.Issuer
	Pending     sessions.PendingStore
	Limiter     *ratelimit.AttemptLimiter
	LoginHandle *loginapi.Handle
	TwoFAHandle *twofaapi.Handle
}

// NewServices builds every repository and service from cfg.
func NewServices(cfg ServicesConfig) (*Services, error) {
	if err := cfg.JWT.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.TwoFA.Validate(); err != nil {
		return nil, err
	}
	if cfg.Recorder == nil {
		cfg.Recorder = audit.NoOpRecorder{}
	}
	pendingExpiry, _ := cfg.JWT.ParsePendingTokenExpiry()
	sessionExpiry, _ := cfg.JWT.ParseSessionTokenExpiry()
	window, _ := cfg.TwoFA.ParseAttemptWindow()
	kind := cfg.Persistence.Type

	accounts, err := login.NewAccountRepository(kind, login.RepositoryConfig{Pool: cfg.Pool, DataDir: cfg.Persistence.DataDir})
	if err != nil {
		return nil, fmt.Errorf("failed to create account repository: %w", err)
	}
	states, err := twofa.NewStateRepository(kind, twofa.RepositoryConfig{Pool: cfg.Pool, DataDir: cfg.Persistence.DataDir})
	if err != nil {
		return nil, fmt.Errorf("failed to create second factor repository: %w", err)
	}
	codeStore, err := backupcode.NewStore(kind, backupcode.StoreConfig{Pool: cfg.Pool, DataDir: cfg.Persistence.DataDir})
	if err != nil {
		return nil, fmt.Errorf("failed to create backup code store: %w", err)
	}
	pending, err := sessions.NewPendingStore(kind, sessions.StoreConfig{
		Pool:       cfg.Pool,
		Redis:      cfg.Redis,
		TTL:        pendingExpiry,
		MaxPending: sessions.DefaultMaxPending,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pending session store: %w", err)
	}

	tokens, err := tg.NewIssuer(cfg.JWT.Secret,
		tg.WithIssuerName(cfg.JWT.Issuer),
		tg.WithPendingExpiry(pendingExpiry),
		tg.WithSessionExpiry(sessionExpiry),
	)
	if err != nil {
		return nil, err
	}
	cipher, err := twofa.NewSecretCipher(cfg.TwoFA.SecretKey(cfg.JWT.Secret))
	if err != nil {
		return nil, err
	}

	codeOpts := []backupcode.Option{backupcode.WithCount(cfg.TwoFA.BackupCodeCount)}
	if cfg.BcryptCost > 0 {
		codeOpts = append(codeOpts, backupcode.WithHashCost(cfg.BcryptCost))
	}
	codes := backupcode.NewService(codeStore, codeOpts...)

	limiter := ratelimit.NewAttemptLimiter(cfg.TwoFA.MaxAttempts, window, ratelimit.WithCleanupInterval(time.Minute))
	tf := twofa.NewService(states, codes, cipher,
		twofa.WithGenerator(twofa.NewGenerator(cfg.TwoFA.Issuer)),
		twofa.WithAttemptLimiter(limiter),
		twofa.WithRecorder(cfg.Recorder),
	)

	hasher := login.NewBcryptHasher(cfg.BcryptCost)
	setup := login.NewSetupService(accounts, hasher, nil)
	flow := loginflow.NewService(loginflow.Dependencies{
		Authenticator: login.NewAuthenticator(accounts, hasher),
		Accounts:      accounts,
		SecondFactor:  tf,
		Tokens:        tokens,
		Pending:       pending,
		Recorder:      cfg.Recorder,
	})

	return &Services{
		Accounts: accounts,
		Setup:    setup,
		TwoFA:    tf,
		Flow:     flow,
		Tokens:   tokens,
		Pending:  pending,
		Limiter:  limiter,
		LoginHandle: loginapi.NewHandle(loginapi.HandleConfig{
			Setup:        setup,
			Flow:         flow,
			Accounts:     accounts,
			SecondFactor: tf,
			Tokens:       tokens,
			Recorder:     cfg.Recorder,
		}),
		TwoFAHandle: twofaapi.NewHandle(tf),
	}, nil
}

// Close stops background work started by NewServices.
func (s *Services) Close() {
	s.Limiter.Close()
}
