package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/papertrader/internal/blob/s3"
	cachemem "github.com/alanyoungcy/papertrader/internal/cache/memory"
	"github.com/alanyoungcy/papertrader/internal/cache/redis"
	"github.com/alanyoungcy/papertrader/internal/config"
	"github.com/alanyoungcy/papertrader/internal/cycle"
	"github.com/alanyoungcy/papertrader/internal/domain"
	"github.com/alanyoungcy/papertrader/internal/executor"
	"github.com/alanyoungcy/papertrader/internal/marketdata"
	"github.com/alanyoungcy/papertrader/internal/notify"
	"github.com/alanyoungcy/papertrader/internal/pipeline"
	"github.com/alanyoungcy/papertrader/internal/portfolio"
	"github.com/alanyoungcy/papertrader/internal/store/memory"
	"github.com/alanyoungcy/papertrader/internal/store/postgres"
	"github.com/alanyoungcy/papertrader/internal/textgen"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	AccountStore  domain.AccountStore
	PositionStore domain.PositionStore
	OrderStore    domain.OrderStore
	SnapshotStore domain.SnapshotStore
	TraceStore    domain.TraceStore

	// Cycle lock
	LockManager domain.LockManager

	// Market data
	Observations *marketdata.SnapshotCache
	Stream       *marketdata.TickStream // nil unless a stream URL is configured

	// Core collaborators
	Manager     *portfolio.Manager
	Executor    *executor.Executor
	Coordinator *cycle.Coordinator
	Reasoner    domain.ReasoningWriter

	// Trace archival, nil without object storage.
	Archiver *s3blob.Archiver

	// Notifications
	Notifier *notify.Notifier

	// AccountID is the pilot account, created on first start.
	AccountID string
}

// usePostgres reports whether a database connection is configured. Without
// one the pilot runs entirely in memory and state does not survive restarts.
func usePostgres(cfg *config.Config) bool {
	return cfg.Postgres.DSN != "" || cfg.Postgres.Host != ""
}

// useS3 reports whether object storage is configured for trace documents.
func useS3(cfg *config.Config) bool {
	return cfg.S3.Bucket != ""
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Stores: PostgreSQL when configured, in-memory otherwise ---
	if usePostgres(cfg) {
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

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.AccountStore = postgres.NewAccountStore(pool)
		deps.PositionStore = postgres.NewPositionStore(pool)
		deps.OrderStore = postgres.NewOrderStore(pool)
		deps.SnapshotStore = postgres.NewSnapshotStore(pool)
	} else {
		logger.Warn("wire: postgres not configured, using in-memory stores")
		db := memory.NewDB()
		deps.AccountStore = memory.NewAccountStore(db)
		deps.PositionStore = memory.NewPositionStore(db)
		deps.OrderStore = memory.NewOrderStore(db)
		deps.SnapshotStore = memory.NewSnapshotStore(db)
		deps.TraceStore = memory.NewTraceStore(db)
	}

	// --- Cycle lock: Redis when enabled, in-process otherwise ---
	if cfg.Redis.Enabled {
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
		deps.LockManager = redis.NewLockManager(redisClient)
	} else {
		deps.LockManager = cachemem.NewLockManager()
	}

	// --- Trace documents: S3 when configured ---
	if useS3(cfg) {
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
		traces := s3blob.NewTraceStore(s3Client)
		deps.TraceStore = traces
		deps.Archiver = s3blob.NewArchiver(s3Client, traces, logger)
	} else if deps.TraceStore == nil {
		// Postgres without S3 still needs somewhere to keep traces.
		logger.Warn("wire: s3 not configured, keeping traces in memory")
		deps.TraceStore = memory.NewTraceStore(memory.NewDB())
	}

	// --- Market data ---
	yahoo := marketdata.NewYahooClient(logger, cfg.MarketData.HistoryDays)
	deps.Observations = marketdata.NewSnapshotCache(logger, yahoo, cfg.MarketData.CacheTTL.Duration)
	if cfg.MarketData.StreamURL != "" {
		deps.Stream = marketdata.NewTickStream(
			cfg.MarketData.StreamURL,
			cfg.NormalizedWatchlist(),
			deps.Observations.UpdateQuote,
			logger,
		)
	}

	// --- Reasoning: remote text generation when an API key is set ---
	if cfg.TextGen.APIKey != "" {
		deps.Reasoner = textgen.NewClient(
			logger,
			cfg.TextGen.BaseURL,
			cfg.TextGen.APIKey,
			cfg.TextGen.Model,
			cfg.TextGen.Timeout.Duration,
		)
	} else {
		logger.Info("wire: textgen not configured, using template reasoning")
		deps.Reasoner = textgen.NewTemplateWriter()
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
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Pilot account ---
	account, err := deps.AccountStore.GetOrCreateByOwner(ctx, cfg.Account.OwnerID, cfg.StartingCashTicks())
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: bootstrap account: %w", err)
	}
	deps.AccountID = account.ID

	// --- Portfolio, executor, coordinator ---
	limits := portfolio.Limits{
		MaxPositions:             cfg.Risk.MaxPositions,
		MaxPositionNotionalTicks: cfg.Risk.MaxPositionNotionalTicks(),
		CashBufferFrac:           cfg.Risk.CashBufferFrac,
	}
	deps.Manager = portfolio.NewManager(
		logger,
		deps.AccountStore,
		deps.PositionStore,
		deps.SnapshotStore,
		limits,
	)
	deps.Executor = executor.New(
		logger,
		deps.OrderStore,
		deps.Manager,
		deps.Observations,
		cfg.Pilot.AutoExecute,
	)

	mode := "autonomous"
	if !cfg.Pilot.AutoExecute {
		mode = "manual"
	}
	deps.Coordinator = cycle.NewCoordinator(
		logger,
		cycle.Params{
			Watchlist:   cfg.NormalizedWatchlist(),
			Concurrency: cfg.Pilot.Concurrency,
			Mode:        mode,
			LockTTL:     cfg.Pilot.CycleTimeout.Duration,
			Risk: pipeline.RiskParams{
				MaxRiskPerTrade:          cfg.Risk.MaxRiskPerTrade,
				MinRewardRisk:            cfg.Risk.MinRewardRisk,
				MaxPositionNotionalTicks: cfg.Risk.MaxPositionNotionalTicks(),
				CashBufferFrac:           cfg.Risk.CashBufferFrac,
				ConfidenceFloor:          cfg.Pilot.ConfidenceFloor,
			},
			Decision: pipeline.DecisionParams{
				ConfidenceFloor: cfg.Pilot.ConfidenceFloor,
				MaxPositions:    cfg.Risk.MaxPositions,
				MaxNotionalT:    cfg.Risk.MaxPositionNotionalTicks(),
			},
		},
		deps.LockManager,
		deps.Observations,
		deps.Manager,
		deps.Executor,
		deps.TraceStore,
		deps.Reasoner,
		deps.Notifier,
	)

	return deps, cleanup, nil
}
