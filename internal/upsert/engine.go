package upsert

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/shopstr-eng/shopstr-cache/internal/domain"
	"github.com/shopstr-eng/shopstr-cache/internal/logger"
	"github.com/shopstr-eng/shopstr-cache/internal/metrics"
	"github.com/shopstr-eng/shopstr-cache/internal/store"
)

// Result is the outcome of a single write
type Result struct {
	Outcome domain.UpsertOutcome
	// Divergent is set when the key already existed with a different content hash
	Divergent bool
}

// Engine writes entities idempotently on their (entity_id, time) key
//
//go:generate mockgen -source=engine.go -destination=../mocks/upsert.go -package=mocks -mock_names=Engine=MockUpsertEngine
type Engine interface {
	// Upsert inserts the entity unless its key is already stored
	Upsert(ctx context.Context, e domain.Entity) (Result, error)
}

type engine struct {
	store store.Store
}

// NewEngine creates a new upsert engine backed by s
func NewEngine(s store.Store) Engine {
	return &engine{store: s}
}

// Upsert ensures the time partition exists then inserts the row with
// ON CONFLICT DO NOTHING. The first write of a key wins; a later write with
// different content is reported as an anomaly and dropped.
func (e *engine) Upsert(ctx context.Context, entity domain.Entity) (Result, error) {
	if entity == nil {
		return Result{}, fmt.Errorf("%w: nil entity", domain.ErrSchemaViolation)
	}
	h := entity.Header()
	class := entity.Class()

	if err := e.store.EnsurePartition(ctx, class, h.Time); err != nil {
		return Result{}, domain.NewStoreError("ensure partition", err)
	}

	outcome, err := e.store.InsertEntity(ctx, entity)
	if err != nil {
		return Result{}, domain.NewStoreError("insert entity", err)
	}
	if outcome == domain.UpsertInserted {
		return Result{Outcome: outcome}, nil
	}

	stored, err := e.store.GetContentHash(ctx, class, h.ID, h.Time)
	if err != nil {
		// the duplicate is already counted; a failed comparison only loses the anomaly signal
		logger.WarnCtx(ctx, "Failed to compare content hash of duplicate",
			zap.String("class", string(class)),
			zap.String("entity_id", h.ID),
			zap.Error(err),
		)
		return Result{Outcome: outcome}, nil
	}

	if stored != "" && stored != h.ContentHash {
		logger.WarnCtx(ctx, "Duplicate key with different content",
			zap.String("class", string(class)),
			zap.String("entity_id", h.ID),
			zap.Time("time", h.Time),
			zap.String("record_id", h.RecordID),
			zap.String("stored_hash", stored),
			zap.String("incoming_hash", h.ContentHash),
		)
		metrics.Anomaly(class)
		return Result{Outcome: outcome, Divergent: true}, nil
	}

	return Result{Outcome: outcome}, nil
}
