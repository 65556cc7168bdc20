package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/shopstr-eng/shopstr-cache/internal/adapter"
	"github.com/shopstr-eng/shopstr-cache/internal/domain"
	"github.com/shopstr-eng/shopstr-cache/internal/ingest"
	"github.com/shopstr-eng/shopstr-cache/internal/logger"
	"github.com/shopstr-eng/shopstr-cache/internal/metrics"
	"github.com/shopstr-eng/shopstr-cache/internal/source"
	"github.com/shopstr-eng/shopstr-cache/internal/store"
)

const (
	defaultFreshness   = 5 * time.Minute
	defaultRefreshWait = 3 * time.Second
	defaultPassTimeout = time.Minute
)

// Cache answers entity reads from the store and refreshes a class through
// the ingestion coordinator when its data is older than the caller allows
//
//go:generate mockgen -source=cache.go -destination=../mocks/cache.go -package=mocks -mock_names=Cache=MockCache
type Cache interface {
	// FetchAll returns the latest row of every entity of the class, newest first
	FetchAll(ctx context.Context, class domain.EntityClass) ([]domain.Entity, error)

	// FetchCached returns the same rows as FetchAll after refreshing the class
	// when it is older than freshness. A zero freshness uses the configured default.
	// When the refresh does not finish within the wait budget the current rows are served.
	FetchCached(ctx context.Context, class domain.EntityClass, freshness time.Duration) ([]domain.Entity, error)

	// FetchFiltered returns the rows matching filter without refreshing
	FetchFiltered(ctx context.Context, filter store.EntityFilter) ([]domain.Entity, error)

	// FetchLatest returns the newest row of one entity, or nil if it is unknown
	FetchLatest(ctx context.Context, class domain.EntityClass, id string) (domain.Entity, error)

	// Refresh runs an ingestion pass for the class, joining one already in flight.
	// The report is nil when the joined pass found the class fresh and skipped.
	Refresh(ctx context.Context, class domain.EntityClass) (*domain.IngestionReport, error)
}

// Config holds cache configuration
type Config struct {
	DefaultFreshness time.Duration      // Budget used when a caller passes none
	RefreshWait      time.Duration      // How long a reader waits on a refresh before serving what is stored
	PassTimeout      time.Duration      // Upper bound of a refresh, independent of any caller
	Retry            ingest.RetryPolicy // Applied to unreachable sources during a refresh
}

type cache struct {
	config      Config
	store       store.Store
	coordinator ingest.Coordinator
	sources     []source.Source
	clock       adapter.Clock

	flights singleflight.Group

	mu          sync.RWMutex
	lastRefresh map[domain.EntityClass]time.Time
}

// NewCache creates a new read-through cache over st
func NewCache(config Config, st store.Store, coordinator ingest.Coordinator, sources []source.Source, clock adapter.Clock) Cache {
	if config.DefaultFreshness <= 0 {
		config.DefaultFreshness = defaultFreshness
	}
	if config.RefreshWait <= 0 {
		config.RefreshWait = defaultRefreshWait
	}
	if config.PassTimeout <= 0 {
		config.PassTimeout = defaultPassTimeout
	}
	return &cache{
		config:      config,
		store:       st,
		coordinator: coordinator,
		sources:     sources,
		clock:       clock,
		lastRefresh: make(map[domain.EntityClass]time.Time),
	}
}

func (c *cache) FetchAll(ctx context.Context, class domain.EntityClass) ([]domain.Entity, error) {
	if !domain.IsValidClass(class) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownClass, class)
	}

	entities, err := c.store.ListEntities(ctx, store.EntityFilter{
		Class:      class,
		LatestOnly: true,
	})
	if err != nil {
		return nil, domain.NewStoreError("list entities", err)
	}
	return entities, nil
}

func (c *cache) FetchCached(ctx context.Context, class domain.EntityClass, freshness time.Duration) ([]domain.Entity, error) {
	if !domain.IsValidClass(class) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownClass, class)
	}
	if freshness <= 0 {
		freshness = c.config.DefaultFreshness
	}

	fresh, err := c.isFresh(ctx, class, freshness)
	if err != nil {
		return nil, err
	}
	if fresh {
		logger.DebugCtx(ctx, "Serving fresh rows", zap.String("class", string(class)))
		return c.FetchAll(ctx, class)
	}

	ch := c.flights.DoChan(string(class), func() (interface{}, error) {
		return c.refresh(class, freshness)
	})

	select {
	case res := <-ch:
		report, _ := res.Val.(*domain.IngestionReport)
		switch {
		case res.Err != nil:
			logger.WarnCtx(ctx, "Refresh failed, serving stored rows",
				zap.String("class", string(class)),
				zap.Error(res.Err),
			)
			metrics.StaleServe(class)
		case !c.anySourceAnswered(report):
			metrics.StaleServe(class)
		}
	case <-c.clock.After(c.config.RefreshWait):
		logger.InfoCtx(ctx, "Refresh still running, serving stored rows",
			zap.String("class", string(class)),
			zap.Duration("wait", c.config.RefreshWait),
		)
		metrics.StaleServe(class)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return c.FetchAll(ctx, class)
}

func (c *cache) FetchFiltered(ctx context.Context, filter store.EntityFilter) ([]domain.Entity, error) {
	if !domain.IsValidClass(filter.Class) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownClass, filter.Class)
	}

	entities, err := c.store.ListEntities(ctx, filter)
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedFilter) {
			return nil, err
		}
		return nil, domain.NewStoreError("list entities", err)
	}
	return entities, nil
}

func (c *cache) FetchLatest(ctx context.Context, class domain.EntityClass, id string) (domain.Entity, error) {
	if !domain.IsValidClass(class) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownClass, class)
	}

	entity, err := c.store.GetLatestEntity(ctx, class, id)
	if err != nil {
		return nil, domain.NewStoreError("get latest entity", err)
	}
	return entity, nil
}

func (c *cache) Refresh(ctx context.Context, class domain.EntityClass) (*domain.IngestionReport, error) {
	if !domain.IsValidClass(class) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownClass, class)
	}

	ch := c.flights.DoChan(string(class), func() (interface{}, error) {
		return c.refresh(class, 0)
	})

	select {
	case res := <-ch:
		report, _ := res.Val.(*domain.IngestionReport)
		return report, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// refresh runs inside a flight. It is detached from the callers that share it
// and bounded by PassTimeout. A positive freshness skips the pass when a
// refresh that finished meanwhile already satisfies it.
func (c *cache) refresh(class domain.EntityClass, freshness time.Duration) (*domain.IngestionReport, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.PassTimeout)
	defer cancel()

	if freshness > 0 {
		fresh, err := c.isFresh(ctx, class, freshness)
		if err != nil {
			metrics.Refreshed(class, metrics.RefreshFailed)
			return nil, err
		}
		if fresh {
			metrics.Refreshed(class, metrics.RefreshSkipped)
			return nil, nil
		}
	}

	logger.InfoCtx(ctx, "Refreshing class", zap.String("class", string(class)), zap.Int("sources", len(c.sources)))

	report, err := c.coordinator.IngestWithRetry(ctx, class, c.sources, c.config.Retry)
	if err != nil {
		metrics.Refreshed(class, metrics.RefreshFailed)
		return report, fmt.Errorf("failed to refresh %s: %w", class, err)
	}

	if !c.anySourceAnswered(report) {
		logger.WarnCtx(ctx, "No source answered, class stays stale",
			zap.String("class", string(class)),
			zap.Strings("unreachable_sources", report.UnreachableSources),
		)
		metrics.Refreshed(class, metrics.RefreshFailed)
		return report, nil
	}

	c.mu.Lock()
	c.lastRefresh[class] = c.clock.Now()
	c.mu.Unlock()
	metrics.Refreshed(class, metrics.RefreshOK)

	return report, nil
}

// anySourceAnswered reports whether a finished pass heard from at least one
// source. A nil report is a skipped pass.
func (c *cache) anySourceAnswered(report *domain.IngestionReport) bool {
	if report == nil || len(c.sources) == 0 {
		return true
	}
	return len(report.UnreachableSources) < len(c.sources)
}

// isFresh reports whether the class was refreshed, or received a row, within budget
func (c *cache) isFresh(ctx context.Context, class domain.EntityClass, budget time.Duration) (bool, error) {
	c.mu.RLock()
	last, ok := c.lastRefresh[class]
	c.mu.RUnlock()
	if ok && c.clock.Since(last) <= budget {
		return true, nil
	}

	newest, err := c.store.GetNewestTime(ctx, class)
	if err != nil {
		return false, domain.NewStoreError("get newest time", err)
	}
	return newest != nil && c.clock.Since(*newest) <= budget, nil
}
