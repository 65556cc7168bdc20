package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/shopstr-eng/shopstr-cache/internal/adapter"
	"github.com/shopstr-eng/shopstr-cache/internal/domain"
	"github.com/shopstr-eng/shopstr-cache/internal/logger"
	"github.com/shopstr-eng/shopstr-cache/internal/mapper"
	"github.com/shopstr-eng/shopstr-cache/internal/messaging"
	"github.com/shopstr-eng/shopstr-cache/internal/metrics"
	"github.com/shopstr-eng/shopstr-cache/internal/source"
	"github.com/shopstr-eng/shopstr-cache/internal/store"
	"github.com/shopstr-eng/shopstr-cache/internal/upsert"
	"github.com/shopstr-eng/shopstr-cache/internal/validator"
)

const (
	defaultSourceTimeout = 15 * time.Second
	defaultWorkers       = 8
)

// Config holds the ingestion coordinator configuration
type Config struct {
	SourceTimeout time.Duration // Per-source fetch timeout
	SinceOverlap  time.Duration // Re-fetch window behind the newest stored row
	Workers       int           // Concurrent source fetches per pass
	FetchLimit    int           // Max records requested per source, 0 leaves it to the source
}

// Coordinator runs ingestion passes for one entity class at a time
//
//go:generate mockgen -source=coordinator.go -destination=../mocks/ingest.go -package=mocks -mock_names=Coordinator=MockCoordinator
type Coordinator interface {
	// Ingest fetches the class from every source and writes the accepted entities.
	// Unreachable sources do not fail the pass; a store failure does and is
	// returned with the partial report.
	Ingest(ctx context.Context, class domain.EntityClass, sources []source.Source) (*domain.IngestionReport, error)

	// IngestWithRetry runs Ingest and re-runs it against the unreachable sources
	// until they answer or the policy gives up
	IngestWithRetry(ctx context.Context, class domain.EntityClass, sources []source.Source, policy RetryPolicy) (*domain.IngestionReport, error)
}

type coordinator struct {
	cfg       Config
	store     store.Store
	validator *validator.Validator
	mapper    *mapper.Mapper
	engine    upsert.Engine
	publisher messaging.Publisher
	clock     adapter.Clock
}

// NewCoordinator creates a new ingestion coordinator. publisher may be nil.
func NewCoordinator(
	cfg Config,
	st store.Store,
	v *validator.Validator,
	m *mapper.Mapper,
	engine upsert.Engine,
	publisher messaging.Publisher,
	clock adapter.Clock,
) Coordinator {
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = defaultSourceTimeout
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	return &coordinator{
		cfg:       cfg,
		store:     st,
		validator: v,
		mapper:    m,
		engine:    engine,
		publisher: publisher,
		clock:     clock,
	}
}

// pass holds the state shared by the source tasks of one ingestion pass
type pass struct {
	class  domain.EntityClass
	cancel context.CancelFunc

	mu       sync.Mutex
	report   *domain.IngestionReport
	seen     map[string]struct{}
	storeErr error
}

func (c *coordinator) Ingest(ctx context.Context, class domain.EntityClass, sources []source.Source) (*domain.IngestionReport, error) {
	if !domain.IsValidClass(class) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownClass, class)
	}

	startedAt := c.clock.Now()
	report := &domain.IngestionReport{
		PassID:             strings.ToLower(ulid.Make().String()),
		Class:              class,
		RejectReasons:      make(map[string]int64),
		UnreachableSources: []string{},
		SourceErrors:       make(map[string]string),
		StartedAt:          startedAt,
	}

	ctx = logger.With(ctx, zap.String("pass_id", report.PassID), zap.String("class", string(class)))

	filter, err := c.buildFilter(ctx, class)
	if err != nil {
		report.Duration = c.clock.Since(startedAt)
		return report, err
	}

	logger.InfoCtx(ctx, "Starting ingestion pass",
		zap.Int("sources", len(sources)),
		zap.Timep("since", filter.Since),
	)

	passCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := &pass{
		class:  class,
		cancel: cancel,
		report: report,
		seen:   make(map[string]struct{}),
	}

	pool := pond.NewPool(c.cfg.Workers, pond.WithContext(passCtx))
	for _, src := range sources {
		pool.Submit(func() {
			c.runSource(passCtx, p, src, filter)
		})
	}
	pool.StopAndWait()

	report.Duration = c.clock.Since(startedAt)
	metrics.ObserveReport(report)

	logger.InfoCtx(ctx, "Ingestion pass finished",
		zap.Int64("accepted", report.Accepted),
		zap.Int64("duplicate", report.Duplicate),
		zap.Int64("rejected", report.Rejected),
		zap.Int64("unknown_kind", report.UnknownKind),
		zap.Int64("schema_violations", report.SchemaViolations),
		zap.Int64("anomalies", report.Anomalies),
		zap.Strings("unreachable_sources", report.UnreachableSources),
		zap.Duration("duration", report.Duration),
	)

	if p.storeErr != nil {
		return report, p.storeErr
	}

	c.notify(ctx, report)

	return report, nil
}

// buildFilter asks the sources for the class kinds newer than the newest
// stored row, minus the overlap window
func (c *coordinator) buildFilter(ctx context.Context, class domain.EntityClass) (source.Filter, error) {
	filter := source.Filter{
		Kinds: c.mapper.KindsFor(class),
		Limit: c.cfg.FetchLimit,
	}

	newest, err := c.store.GetNewestTime(ctx, class)
	if err != nil {
		return filter, domain.NewStoreError("get newest time", err)
	}
	if newest != nil {
		since := newest.Add(-c.cfg.SinceOverlap)
		filter.Since = &since
	}

	return filter, nil
}

// runSource fetches one source under its own timeout then processes what it returned
func (c *coordinator) runSource(ctx context.Context, p *pass, src source.Source, filter source.Filter) {
	name := src.Name()

	fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.SourceTimeout)
	records, err := src.Fetch(fetchCtx, filter)
	cancel()
	if err != nil {
		// a pass aborted by the store is not the source's fault
		if ctx.Err() != nil && p.aborted() {
			return
		}
		logger.WarnCtx(ctx, "Source unreachable", zap.String("source", name), zap.Error(err))
		metrics.SourceFetched(name, metrics.SourceUnreachable)
		p.markUnreachable(name, err)
		return
	}
	metrics.SourceFetched(name, metrics.SourceOK)

	logger.DebugCtx(ctx, "Fetched records from source",
		zap.String("source", name),
		zap.Int("count", len(records)),
	)

	for i := range records {
		if ctx.Err() != nil {
			return
		}
		c.processRecord(ctx, p, &records[i])
	}
}

// processRecord pushes one record through validation, mapping and upsert
func (c *coordinator) processRecord(ctx context.Context, p *pass, rec *domain.Record) {
	if _, err := c.validator.Validate(rec); err != nil {
		reason := string(domain.RejectMalformed)
		var rejectErr *domain.RejectError
		if errors.As(err, &rejectErr) {
			reason = string(rejectErr.Reason)
		}
		logger.DebugCtx(ctx, "Record rejected", zap.String("record_id", rec.ID), zap.Error(err))
		p.count(func(r *domain.IngestionReport) {
			r.Rejected++
			r.RejectReasons[reason]++
		})
		return
	}

	// only a verified record claims its id for the pass
	if !p.firstSight(rec.ID) {
		p.count(func(r *domain.IngestionReport) { r.Duplicate++ })
		return
	}

	entity, err := c.mapper.Map(rec)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownKind) {
			p.count(func(r *domain.IngestionReport) { r.UnknownKind++ })
			return
		}
		logger.DebugCtx(ctx, "Record does not fit its schema", zap.String("record_id", rec.ID), zap.Error(err))
		p.count(func(r *domain.IngestionReport) { r.SchemaViolations++ })
		return
	}

	// a source may answer with kinds of other classes
	if entity.Class() != p.class {
		p.count(func(r *domain.IngestionReport) { r.UnknownKind++ })
		return
	}

	result, err := c.engine.Upsert(ctx, entity)
	if err != nil {
		if errors.Is(err, domain.ErrStore) {
			p.abort(ctx, err)
			return
		}
		logger.WarnCtx(ctx, "Failed to upsert entity", zap.String("record_id", rec.ID), zap.Error(err))
		p.count(func(r *domain.IngestionReport) { r.SchemaViolations++ })
		return
	}

	p.count(func(r *domain.IngestionReport) {
		if result.Outcome == domain.UpsertInserted {
			r.Accepted++
		} else {
			r.Duplicate++
		}
		if result.Divergent {
			r.Anomalies++
		}
	})
}

// notify publishes an update notification when the pass stored new rows
func (c *coordinator) notify(ctx context.Context, report *domain.IngestionReport) {
	if c.publisher == nil || report.Accepted == 0 {
		return
	}

	err := c.publisher.PublishEntitiesUpdated(ctx, &messaging.EntitiesUpdated{
		Class:    report.Class,
		PassID:   report.PassID,
		Accepted: report.Accepted,
		At:       c.clock.Now(),
	})
	if err != nil {
		logger.WarnCtx(ctx, "Failed to publish entities updated", zap.Error(err))
	}
}

func (p *pass) count(fn func(r *domain.IngestionReport)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.report)
}

// firstSight reports whether the record id has not been seen earlier in this pass
func (p *pass) firstSight(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.seen[id]; ok {
		return false
	}
	p.seen[id] = struct{}{}
	return true
}

func (p *pass) markUnreachable(name string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.report.UnreachableSources = append(p.report.UnreachableSources, name)
	p.report.SourceErrors[name] = err.Error()
}

// abort records the first store failure and cancels the remaining work
func (p *pass) abort(ctx context.Context, err error) {
	p.mu.Lock()
	first := p.storeErr == nil
	if first {
		p.storeErr = err
	}
	p.mu.Unlock()

	if first {
		logger.ErrorCtx(ctx, fmt.Errorf("aborting ingestion pass: %w", err))
		p.cancel()
	}
}

func (p *pass) aborted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.storeErr != nil
}
