package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/go-redis/redis_rate/v10"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/shopstr-eng/shopstr-cache/internal/adapter"
	"github.com/shopstr-eng/shopstr-cache/internal/config"
	"github.com/shopstr-eng/shopstr-cache/internal/logger"
	"github.com/shopstr-eng/shopstr-cache/internal/metrics"
)

// ErrProxyClosed is returned for requests submitted after Close
var ErrProxyClosed = errors.New("rate limit proxy is closed")

// RequestFunc is a function that performs the actual relay request
type RequestFunc func(ctx context.Context) (interface{}, error)

// requestResult wraps the result and error of a request
type requestResult struct {
	value interface{}
	err   error
}

// Proxy paces requests per relay. When Redis is configured the pace is shared
// by every process using the same key prefix; otherwise each process paces alone.
//
//go:generate mockgen -source=proxy.go -destination=../mocks/ratelimit_proxy.go -package=mocks -mock_names=Proxy=MockRateLimitProxy
type Proxy interface {
	// Request waits for a token for relay and then runs fn
	Request(ctx context.Context, relay string, fn RequestFunc) (interface{}, error)

	// Close gracefully shuts down the proxy
	Close() error
}

type proxy struct {
	config      config.RateLimiterConfig
	pool        pond.ResultPool[*requestResult]
	redis       adapter.RedisClient
	distributed adapter.RedisRateLimiter
	clock       adapter.Clock
	closed      atomic.Bool
	closeOnce   sync.Once

	mu       sync.Mutex
	limiters map[string]*relayLimiter

	redisAvailable atomic.Bool
	// redisDownAt is the unix nano time Redis was last seen failing
	redisDownAt atomic.Int64
}

// relayLimiter holds the rate limiting state for a single relay
type relayLimiter struct {
	relay            string
	config           config.RateLimitConfig
	localLimiter     *rate.Limiter
	preFilterLimiter *rate.Limiter
}

// NewProxy creates a new rate-limiting proxy. rc may be nil, in which case
// every relay is paced by a process-local limiter.
func NewProxy(cfg config.RateLimiterConfig, rc adapter.RedisClient, clock adapter.Clock) (Proxy, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	p := &proxy{
		config:   cfg,
		redis:    rc,
		clock:    clock,
		limiters: make(map[string]*relayLimiter),
		pool: pond.NewResultPool[*requestResult](
			cfg.MaxWorkers,
			pond.WithQueueSize(cfg.MaxQueueSize),
		),
	}

	if rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		p.distributed = rc.RateLimiter()
		if err := rc.Ping(ctx); err != nil {
			if !cfg.EnableLocalFallback {
				p.pool.StopAndWait()
				return nil, fmt.Errorf("redis unavailable and fallback disabled: %w", err)
			}
			logger.Warn("Redis unavailable, will use local fallback", zap.Error(err))
			p.markRedisDown()
		} else {
			p.redisAvailable.Store(true)
		}
	}

	logger.Info("Relay rate limit proxy initialized",
		zap.Int("max_workers", cfg.MaxWorkers),
		zap.Int("max_queue_size", cfg.MaxQueueSize),
		zap.Bool("shared", rc != nil),
		zap.Bool("local_fallback", cfg.EnableLocalFallback),
	)

	return p, nil
}

// Request submits a rate-limited request for execution and returns the result with type safety
func Request[T any](ctx context.Context, p Proxy, relay string, fn func(ctx context.Context) (T, error)) (T, error) {
	// If proxy is nil, execute the function directly
	if p == nil {
		return fn(ctx)
	}

	var zero T
	result, err := p.Request(ctx, relay, func(ctx context.Context) (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	return result.(T), nil
}

// Request blocks until a token for relay is acquired and fn completes, the
// context is canceled, or the relay's MaxQueueTime passes without a token.
func (p *proxy) Request(ctx context.Context, relay string, fn RequestFunc) (interface{}, error) {
	if p.closed.Load() {
		return nil, ErrProxyClosed
	}

	limiter := p.limiterFor(relay)

	task := p.pool.Submit(func() *requestResult {
		queueCtx, cancel := context.WithTimeout(ctx, limiter.config.MaxQueueTime)
		err := p.acquireToken(queueCtx, limiter)
		cancel()
		if err != nil {
			if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
				err = fmt.Errorf("relay %s: no token within %s: %w", relay, limiter.config.MaxQueueTime, err)
			}
			return &requestResult{err: err}
		}

		value, err := fn(ctx)
		return &requestResult{value: value, err: err}
	})

	result, err := task.Wait()
	if err != nil {
		return nil, err
	}
	return result.value, result.err
}

// limiterFor returns the limiter of relay, creating it on first use
func (p *proxy) limiterFor(relay string) *relayLimiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if l, ok := p.limiters[relay]; ok {
		return l
	}

	cfg := applyLimitDefaults(p.config.Limit(relay))

	// A process falling back from the shared limiter only takes its share of the rate
	localRate := float64(cfg.RequestsPerSecond)
	if p.redis != nil {
		localRate = max(localRate*p.config.LocalFallbackMultiplier, 1.0)
	}

	l := &relayLimiter{
		relay:            relay,
		config:           cfg,
		localLimiter:     rate.NewLimiter(rate.Limit(localRate), cfg.Burst),
		preFilterLimiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}
	p.limiters[relay] = l
	return l
}

// acquireToken acquires a rate limit token, blocking until one is available
func (p *proxy) acquireToken(ctx context.Context, limiter *relayLimiter) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !p.redisAvailable.Load() {
			p.recheckRedis(ctx)
		}

		if !p.redisAvailable.Load() {
			if p.redis != nil && !p.config.EnableLocalFallback {
				return fmt.Errorf("redis rate limiter unavailable for relay %s", limiter.relay)
			}
			return limiter.localLimiter.Wait(ctx)
		}

		allowed, retryAfter, err := p.tryDistributedLimit(ctx, limiter)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			p.markRedisDown()
			metrics.RateLimitFallback()
			logger.Warn("Redis rate limiter error, falling back to local",
				zap.String("relay", limiter.relay),
				zap.Error(err),
			)
			continue
		}
		if allowed {
			return nil
		}

		// Rate limited - sleep with 50-150% jitter to spread retries
		jitter := time.Duration(float64(retryAfter) * (0.5 + rand.Float64())) //nolint:gosec,G404
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.clock.After(jitter):
		}
	}
}

// tryDistributedLimit attempts to acquire a token from the shared limiter
// Returns: (allowed bool, retryAfter duration, error)
func (p *proxy) tryDistributedLimit(ctx context.Context, limiter *relayLimiter) (bool, time.Duration, error) {
	// Pre-filter requests to reduce Redis pressure
	if err := limiter.preFilterLimiter.Wait(ctx); err != nil {
		return false, 0, err
	}

	key := p.config.RedisKeyPrefix + limiter.relay
	res, err := p.distributed.Allow(ctx, key, redis_rate.PerSecond(limiter.config.RequestsPerSecond))
	if err != nil {
		return false, 0, err
	}

	if res.Allowed == 0 {
		logger.Debug("Relay token unavailable, waiting",
			zap.String("relay", limiter.relay),
			zap.Duration("retry_after", res.RetryAfter),
			zap.Int("remaining", res.Remaining),
		)
		retryAfter := res.RetryAfter
		if retryAfter <= 0 {
			retryAfter = 100 * time.Millisecond
		}
		return false, retryAfter, nil
	}

	return true, 0, nil
}

func (p *proxy) markRedisDown() {
	p.redisAvailable.Store(false)
	p.redisDownAt.Store(p.clock.Now().UnixNano())
}

// recheckRedis pings Redis once RedisRecheckInterval has passed since the last failure
func (p *proxy) recheckRedis(ctx context.Context) {
	if p.redis == nil {
		return
	}

	downAt := time.Unix(0, p.redisDownAt.Load())
	if p.clock.Since(downAt) < p.config.RedisRecheckInterval {
		return
	}
	// claim the recheck so concurrent requests keep using the local limiter
	if !p.redisDownAt.CompareAndSwap(downAt.UnixNano(), p.clock.Now().UnixNano()) {
		return
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := p.redis.Ping(pingCtx); err != nil {
		return
	}

	p.redisAvailable.Store(true)
	logger.Info("Redis connection restored")
}

// Close gracefully shuts down the proxy
// It waits for in-flight requests to complete
func (p *proxy) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.closed.Store(true)

		logger.Info("Shutting down relay rate limit proxy")

		if errTasks := p.pool.Stop().Wait(); errTasks != nil {
			logger.Warn("Error waiting for pool tasks to complete", zap.Error(errTasks))
			err = errTasks
		}

		if p.redis != nil {
			if closeErr := p.redis.Close(); closeErr != nil {
				logger.Warn("Error closing Redis connection", zap.Error(closeErr))
				err = closeErr
			}
		}

		logger.Info("Relay rate limit proxy shutdown complete")
	})
	return err
}

// applyLimitDefaults fills the zero fields of a relay limit
func applyLimitDefaults(cfg config.RateLimitConfig) config.RateLimitConfig {
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RequestsPerSecond
	}
	if cfg.MaxQueueTime <= 0 {
		cfg.MaxQueueTime = time.Minute
	}
	return cfg
}

// validateConfig validates and sets defaults for the configuration
func validateConfig(cfg *config.RateLimiterConfig) error {
	if cfg.Default.RequestsPerSecond <= 0 {
		return fmt.Errorf("default requests_per_second must be positive")
	}

	for _, o := range cfg.Overrides {
		if o.URL == "" {
			return fmt.Errorf("relay override without url")
		}
		if o.RequestsPerSecond <= 0 {
			return fmt.Errorf("relay %s: requests_per_second must be positive", o.URL)
		}
	}

	if cfg.RedisKeyPrefix == "" {
		cfg.RedisKeyPrefix = "shopstr:cache:relay:"
	}

	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU() * 4
	}

	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 1024
	}

	if cfg.LocalFallbackMultiplier <= 0 {
		cfg.LocalFallbackMultiplier = 0.5
	}

	if cfg.RedisRecheckInterval <= 0 {
		cfg.RedisRecheckInterval = 10 * time.Second
	}

	return nil
}
