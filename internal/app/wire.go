package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/predictarena/ledger/internal/blob/s3"
	"github.com/predictarena/ledger/internal/cache/redis"
	"github.com/predictarena/ledger/internal/config"
	"github.com/predictarena/ledger/internal/domain"
	"github.com/predictarena/ledger/internal/notify"
	"github.com/predictarena/ledger/internal/server/handler"
	"github.com/predictarena/ledger/internal/service"
	"github.com/predictarena/ledger/internal/store/postgres"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Ledger and read stores
	Ledger       domain.Ledger
	Markets      domain.MarketStore
	Accounts     domain.AccountStore
	Transactions domain.TransactionStore
	Bets         domain.BetStore
	Settings     domain.SettingsStore

	// Redis collaborators
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage; nil when no bucket is configured.
	Archiver *s3blob.Archiver

	// Notifications
	Dispatcher *notify.Dispatcher

	// Services
	BetService        *service.BetService
	MarketService     *service.MarketService
	AccountService    *service.AccountService
	SettlementService *service.SettlementService
	TransferService   *service.TransferService
	ResetService      *service.ResetService

	// Health probes keyed by component name.
	HealthProbes map[string]handler.Pinger
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		HealthProbes: make(map[string]handler.Pinger),
	}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)
	deps.HealthProbes["postgres"] = pgClient

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Ledger = postgres.NewLedger(pool)
	deps.Markets = postgres.NewMarketStore(pool)
	deps.Accounts = postgres.NewAccountStore(pool)
	deps.Transactions = postgres.NewTransactionStore(pool)
	deps.Bets = postgres.NewBetStore(pool)
	deps.Settings = postgres.NewSettingsStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })
	deps.HealthProbes["redis"] = redisClient

	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- S3 blob storage (optional) ---
	if cfg.S3.Bucket != "" {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), deps.Transactions, logger)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Dispatcher = notify.NewDispatcher(senders, deps.SignalBus, logger)

	// --- Services ---
	deps.BetService = service.NewBetService(deps.Ledger, deps.Settings, deps.RateLimiter, deps.Dispatcher, logger)
	deps.MarketService = service.NewMarketService(deps.Markets, deps.Settings, logger)
	deps.AccountService = service.NewAccountService(deps.Accounts, deps.Transactions, deps.Bets)
	deps.SettlementService = service.NewSettlementService(deps.Ledger, deps.Settings, deps.Dispatcher, logger)
	deps.TransferService = service.NewTransferService(deps.Ledger, deps.Settings, logger)

	if cfg.Reset.Enabled {
		retention := time.Duration(cfg.Reset.RetentionDays) * 24 * time.Hour
		var archiver service.CycleArchiver
		if deps.Archiver != nil {
			archiver = deps.Archiver
		}
		deps.ResetService = service.NewResetService(
			deps.Ledger,
			deps.Settings,
			deps.LockManager,
			archiver,
			deps.Dispatcher,
			logger,
			cfg.Reset.CheckInterval.Duration,
			retention,
		)
	}

	return deps, cleanup, nil
}
