package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/shopstr-eng/shopstr-cache/internal/adapter"
	"github.com/shopstr-eng/shopstr-cache/internal/cache"
	"github.com/shopstr-eng/shopstr-cache/internal/domain"
	"github.com/shopstr-eng/shopstr-cache/internal/logger"
)

// RefresherConfig holds configuration for the cache refresher
type RefresherConfig struct {
	Interval       time.Duration        // Time to sleep between refresh cycles
	Classes        []domain.EntityClass // Classes refreshed every cycle
	WorkerPoolSize int                  // Classes refreshed concurrently
}

// cacheRefresher implements the Sweeper interface by refreshing the cache
// for a fixed set of classes on an interval
type cacheRefresher struct {
	config    *RefresherConfig
	cache     cache.Cache
	clock     adapter.Clock
	running   atomic.Bool
	stopChan  chan struct{}
	stoppedCh chan struct{}
}

// NewCacheRefresher creates a new cache refresher
func NewCacheRefresher(config *RefresherConfig, c cache.Cache, clock adapter.Clock) Sweeper {
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = 1
	}
	return &cacheRefresher{
		config:    config,
		cache:     c,
		clock:     clock,
		stopChan:  make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Name returns the sweeper's name
func (s *cacheRefresher) Name() string {
	return "cache-refresher"
}

// Start runs refresh cycles until the context is canceled or Stop is called
func (s *cacheRefresher) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("sweeper already running")
	}
	defer func() {
		s.running.Store(false)
		close(s.stoppedCh)
	}()

	logger.InfoCtx(ctx, "Starting cache refresher",
		zap.Duration("interval", s.config.Interval),
		zap.Int("classes", len(s.config.Classes)),
		zap.Int("worker_pool_size", s.config.WorkerPoolSize),
	)

	for {
		s.runRefreshCycle(ctx)

		if !s.sleep(ctx, s.config.Interval) {
			logger.InfoCtx(ctx, "Cache refresher stopping", zap.NamedError("reason", ctx.Err()))
			return nil
		}
	}
}

// Stop gracefully stops the sweeper with timeout support
func (s *cacheRefresher) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil // Already stopped
	}

	logger.InfoCtx(ctx, "Stopping cache refresher")

	close(s.stopChan)

	select {
	case <-s.stoppedCh:
		logger.InfoCtx(ctx, "Cache refresher stopped gracefully")
		return nil
	case <-ctx.Done():
		logger.WarnCtx(ctx, "Cache refresher stop interrupted by context timeout")
		return ctx.Err()
	}
}

// runRefreshCycle refreshes every configured class once
func (s *cacheRefresher) runRefreshCycle(ctx context.Context) {
	startTime := s.clock.Now()

	var refreshed, skipped, failed atomic.Int32

	pool := pond.NewPool(s.config.WorkerPoolSize, pond.WithContext(ctx))
	for _, class := range s.config.Classes {
		pool.Submit(func() {
			report, err := s.cache.Refresh(ctx, class)
			switch {
			case err != nil:
				failed.Add(1)
				if !errors.Is(err, context.Canceled) {
					logger.ErrorCtx(ctx, err, zap.String("class", string(class)))
				}
			case report == nil:
				skipped.Add(1)
			default:
				refreshed.Add(1)
				logger.DebugCtx(ctx, "Class refreshed",
					zap.String("class", string(class)),
					zap.Int64("accepted", report.Accepted),
					zap.Strings("unreachable_sources", report.UnreachableSources),
				)
			}
		})
	}
	pool.StopAndWait()

	logger.InfoCtx(ctx, "Refresh cycle completed",
		zap.Duration("duration", s.clock.Since(startTime)),
		zap.Int32("refreshed", refreshed.Load()),
		zap.Int32("skipped", skipped.Load()),
		zap.Int32("failed", failed.Load()),
	)
}

// sleep sleeps for the given duration but can be interrupted by context cancellation
// Returns true if sleep completed normally, false if interrupted
func (s *cacheRefresher) sleep(ctx context.Context, duration time.Duration) bool {
	select {
	case <-s.clock.After(duration):
		return true
	case <-ctx.Done():
		return false
	case <-s.stopChan:
		return false
	}
}
