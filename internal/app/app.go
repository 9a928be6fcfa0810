package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"

	"github.com/oneOoneData/TaxProExchange-sub003/internal/config"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/connect"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/domain"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/fetcher"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/httpserver"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/httpserver/deps"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/logger"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/metrics"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/policy"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/redis"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/scheduler"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/store/postgres"
	redisstore "github.com/oneOoneData/TaxProExchange-sub003/internal/store/redis"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/validation"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	db          *sqlx.DB
	redisClient *goredis.Client
	batches     *scheduler.BatchScheduler
	collector   *scheduler.TombstoneCollector // nil when tombstones are permanent
}

func New() (*App, error) {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)
	ctx := context.Background()

	pol, err := policy.NewLoader(cfg.PolicyFile).Load()
	if err != nil {
		return nil, err
	}
	if cfg.PolicyFile != "" {
		loggerClient.Info("link policy loaded",
			logger.String("file", cfg.PolicyFile),
			logger.Int("tracking_params", len(pol.TrackingParams)),
			logger.Int("headers", len(pol.Headers)))
	}

	retry := connect.Options{
		RetryInterval: cfg.ConnectRetryInterval,
		MaxWait:       cfg.ConnectMaxWait,
		PingTimeout:   cfg.ConnectPingTimeout,
		WarnThreshold: cfg.ConnectWarnThreshold,
	}

	// Postgres first: nothing works without the events table.
	pgRetry := retry
	pgRetry.Timeout = cfg.DBConnectTimeout
	db, err := postgres.Connect(ctx, postgres.Options{
		DSN:          cfg.DatabaseURL,
		MaxOpenConns: cfg.DBMaxOpenConns,
		Retry:        pgRetry,
	}, loggerClient)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := postgres.Migrate(ctx, db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	loggerClient.Info("Postgres initialized successfully")

	loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
	redisRetry := retry
	redisRetry.Timeout = cfg.RedisConnectTimeout
	redisClient, err := redis.New(ctx, redis.ConnectOptions{
		Addr:         cfg.RedisAddr,
		User:         cfg.RedisUser,
		Password:     cfg.RedisPassword,
		RedisDB:      cfg.RedisDB,
		DialTimeout:  cfg.RedisDT,
		ReadTimeout:  cfg.RedisRT,
		WriteTimeout: cfg.RedisWT,
		PoolSize:     cfg.RedisPoolSize,
		Retry:        redisRetry,
	}, loggerClient)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	loggerClient.Info("Redis initialized successfully")

	m := metrics.New(nil)
	store := redisstore.NewStore(redisClient)
	events := postgres.NewEventRepository(db)
	tombstones := postgres.NewTombstoneRepository(db)

	userAgent := cfg.UserAgent
	if pol.UserAgent != "" {
		userAgent = pol.UserAgent
	}
	checker := fetcher.New(fetcher.Config{
		Timeout:      cfg.FetchTimeout,
		UserAgent:    userAgent,
		MaxRedirects: cfg.MaxRedirects,
		MaxBodyBytes: cfg.MaxBodyBytes,
		Headers:      pol.Headers,
	}, nil, m)

	validator := validation.New(events, tombstones, checker, loggerClient,
		validation.Options{
			ScoreMin:        cfg.ScoreMin,
			RecheckAfter:    cfg.RecheckAfter,
			PolitenessDelay: cfg.PolitenessDelay,
			Workers:         cfg.Workers,
		},
		validation.WithLocker(store.EventLocker(cfg.LockTTL)),
		validation.WithRecorder(m),
		validation.WithHealer(domain.NewHealer(pol.TrackingParams...)),
	)

	batches := scheduler.NewBatchScheduler(validator, store, m, loggerClient, scheduler.BatchOptions{
		Schedule:  cfg.BatchSchedule,
		BatchSize: cfg.BatchSize,
		LockTTL:   cfg.BatchLockTTL,
	})

	var collector *scheduler.TombstoneCollector
	if cfg.TombstoneTTL > 0 {
		collector = scheduler.NewTombstoneCollector(tombstones, m, loggerClient, cfg.GCInterval, cfg.TombstoneTTL)
	} else {
		loggerClient.Info("tombstone expiry disabled, tombstones are permanent")
	}

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:          loggerClient,
		StartTime:       time.Now(),
		Build:           version.Get(),
		TimeNow:         time.Now,
		AllowedCIDRS:    cfg.AllowedCIDRS,
		TrustProxy:      cfg.TrustProxy,
		RateLimiter:     store,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Validator:       validator,
		Batches:         batches,
		BatchStatus:     store,
		TombstoneTTL:    cfg.TombstoneTTL,
		Tombstones:      tombstones,
		Readiness: []deps.ReadinessCheck{
			{Name: "postgres", Check: db.PingContext},
			{Name: "redis", Check: store.Ping},
		},
		MetricsHandler: m.Handler(),
	}

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      httpserver.New(cfg.ListenPort, d),
		db:          db,
		redisClient: redisClient,
		batches:     batches,
		collector:   collector,
	}, nil
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting linkcheck %s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.Get().String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.batches.Start(ctx); err != nil {
		return fmt.Errorf("failed to start batch scheduler: %w", err)
	}

	if a.collector != nil {
		if err := a.collector.Start(ctx); err != nil {
			return fmt.Errorf("failed to start tombstone collector: %w", err)
		}
		a.logger.Info("tombstone collector started",
			logger.Duration("interval", a.cfg.GCInterval),
			logger.Duration("ttl", a.cfg.TombstoneTTL))
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
		stop()
	}

	// In-flight batches observe the cancelled context and stop starting events.
	a.batches.Stop()
	if a.collector != nil {
		a.collector.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}

	if err := a.redisClient.Close(); err != nil {
		a.logger.Warnf("failed to close redis: %v", err)
	} else {
		a.logger.Info("✅ Redis closed cleanly")
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warnf("failed to close postgres: %v", err)
	} else {
		a.logger.Info("✅ Postgres closed cleanly")
	}

	if runErr != nil {
		return runErr
	}
	a.logger.Info("✅ linkcheck stopped cleanly")
	return nil
}
