package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/shopstr-eng/shopstr-cache/internal/adapter"
	"github.com/shopstr-eng/shopstr-cache/internal/cache"
	"github.com/shopstr-eng/shopstr-cache/internal/config"
	"github.com/shopstr-eng/shopstr-cache/internal/domain"
	"github.com/shopstr-eng/shopstr-cache/internal/ingest"
	"github.com/shopstr-eng/shopstr-cache/internal/logger"
	"github.com/shopstr-eng/shopstr-cache/internal/mapper"
	"github.com/shopstr-eng/shopstr-cache/internal/messaging"
	"github.com/shopstr-eng/shopstr-cache/internal/providers/jetstream"
	"github.com/shopstr-eng/shopstr-cache/internal/providers/relay"
	"github.com/shopstr-eng/shopstr-cache/internal/ratelimit"
	"github.com/shopstr-eng/shopstr-cache/internal/registry"
	"github.com/shopstr-eng/shopstr-cache/internal/source"
	"github.com/shopstr-eng/shopstr-cache/internal/store"
	"github.com/shopstr-eng/shopstr-cache/internal/upsert"
	"github.com/shopstr-eng/shopstr-cache/internal/validator"
)

// Options holds the configuration sections the ingestion stack is built from
type Options struct {
	Database  config.DatabaseConfig
	NATS      config.NATSConfig
	Redis     config.RedisConfig
	Relay     config.RelayConfig
	Validator config.ValidatorConfig
	Ingest    config.IngestConfig
	Cache     config.CacheConfig
}

// App is the wired ingestion and cache stack shared by the binaries
type App struct {
	DB          *gorm.DB
	Store       store.Store
	Sources     []source.Source
	Coordinator ingest.Coordinator
	Cache       cache.Cache
	Clock       adapter.Clock
	RetryPolicy ingest.RetryPolicy

	closers []func() error
}

// New connects to the database, Redis and NATS and builds the stack.
// Redis and NATS are optional and skipped when their address is empty.
func New(ctx context.Context, opts Options) (*App, error) {
	a := &App{Clock: adapter.NewClock()}

	db, err := openDatabase(ctx, opts.Database)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	a.Store = store.NewPGStore(db)

	var redisClient adapter.RedisClient
	if opts.Redis.Addr != "" {
		redisClient = adapter.NewRedisClient(opts.Redis.Addr, opts.Redis.Password, opts.Redis.DB)
		a.closers = append(a.closers, redisClient.Close)
		logger.InfoCtx(ctx, "Using Redis for shared relay pacing", zap.String("addr", opts.Redis.Addr))
	}

	proxy, err := ratelimit.NewProxy(opts.Relay.RateLimit, redisClient, a.Clock)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to create relay rate limit proxy: %w", err)
	}
	a.closers = append(a.closers, proxy.Close)

	a.Sources = relay.NewSources(opts.Relay.URLs, relay.Config{
		FetchLimit:   opts.Relay.FetchLimit,
		DialTimeout:  opts.Relay.DialTimeout,
		MaxFrameSize: opts.Relay.MaxFrameSize,
	}, proxy)
	if len(a.Sources) == 0 {
		logger.WarnCtx(ctx, "No relays configured, ingestion passes will fetch nothing")
	}

	blocklist, err := loadBlocklist(ctx, opts.Validator.BlocklistPath)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	publisher, err := connectPublisher(ctx, opts.NATS)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if publisher != nil {
		a.closers = append(a.closers, func() error {
			publisher.Close()
			return nil
		})
	}

	v := validator.New(validator.Config{
		MaxFutureSkew: opts.Validator.MaxFutureSkew,
		MaxPastAge:    opts.Validator.MaxPastAge,
	}, blocklist, a.Clock)

	a.Coordinator = ingest.NewCoordinator(ingest.Config{
		SourceTimeout: opts.Ingest.SourceTimeout,
		SinceOverlap:  opts.Ingest.SinceOverlap,
		Workers:       opts.Ingest.Workers,
		FetchLimit:    opts.Relay.FetchLimit,
	}, a.Store, v, mapper.New(), upsert.NewEngine(a.Store), publisher, a.Clock)

	a.RetryPolicy = ingest.RetryPolicy{
		MaxAttempts: opts.Ingest.MaxAttempts,
		BackoffBase: opts.Ingest.BackoffBase,
	}

	a.Cache = cache.NewCache(cache.Config{
		DefaultFreshness: opts.Cache.DefaultFreshness,
		RefreshWait:      opts.Cache.RefreshWait,
		PassTimeout:      opts.Ingest.PassTimeout,
		Retry:            a.RetryPolicy,
	}, a.Store, a.Coordinator, a.Sources, a.Clock)

	return a, nil
}

// Close releases every connection in reverse order of creation
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// openGorm opens a handle without connecting; openDatabase pings it once the
// pool is configured
var openGorm = func(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{DisableAutomaticPing: true})
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (_ *gorm.DB, err error) {
	db, err := openGorm(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err != nil {
			closeDatabase(db)
		}
	}()

	if err := store.ConfigureConnectionPool(db, cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime, cfg.ConnMaxIdleTime); err != nil {
		return nil, fmt.Errorf("failed to configure connection pool: %w", err)
	}

	if cfg.ReadHost != "" {
		if err := store.UseReadReplica(db, cfg.ReadDSN()); err != nil {
			return nil, fmt.Errorf("failed to register read replica: %w", err)
		}
		logger.InfoCtx(ctx, "Routing reads to replica", zap.String("read_host", cfg.ReadHost))
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.InfoCtx(ctx, "Connected to database",
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
	)
	return db, nil
}

func closeDatabase(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Warn("Failed to close database", zap.Error(err))
	}
}

func loadBlocklist(ctx context.Context, path string) (registry.AuthorBlocklist, error) {
	if path == "" {
		logger.WarnCtx(ctx, "Author blocklist path not configured, all authors will be accepted")
		return nil, nil
	}

	loader := registry.NewBlocklistLoader(adapter.NewFileSystem(), adapter.NewJSON())
	blocklist, err := loader.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load author blocklist: %w", err)
	}
	logger.InfoCtx(ctx, "Loaded author blocklist", zap.String("path", path))
	return blocklist, nil
}

func connectPublisher(ctx context.Context, cfg config.NATSConfig) (messaging.Publisher, error) {
	if cfg.URL == "" {
		logger.InfoCtx(ctx, "NATS not configured, update notifications disabled")
		return nil, nil
	}

	publisher, err := jetstream.NewPublisher(ctx, jetstream.Config{
		URL:            cfg.URL,
		StreamName:     cfg.StreamName,
		MaxReconnects:  cfg.MaxReconnects,
		ReconnectWait:  cfg.ReconnectWait,
		ConnectionName: cfg.ConnectionName,
	}, adapter.NewNatsJetStream(), adapter.NewJSON())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	logger.InfoCtx(ctx, "Publishing update notifications", zap.String("stream", cfg.StreamName))
	return publisher, nil
}

// ParseClasses parses configured class names, rejecting unknown ones
func ParseClasses(names []string) ([]domain.EntityClass, error) {
	classes := make([]domain.EntityClass, 0, len(names))
	seen := make(map[domain.EntityClass]bool, len(names))
	for _, name := range names {
		class, err := domain.ParseClass(name)
		if err != nil {
			return nil, err
		}
		if seen[class] {
			continue
		}
		seen[class] = true
		classes = append(classes, class)
	}
	return classes, nil
}
