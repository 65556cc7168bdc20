package store

import (
	"context"
	"time"

	"github.com/paulmach/orb"

	"github.com/shopstr-eng/shopstr-cache/internal/domain"
)

// MaxListLimit caps the number of rows a single list query returns
const MaxListLimit = 500

// EntityFilter selects entity rows of one class
type EntityFilter struct {
	Class domain.EntityClass
	// Since and Until bound the row time, both inclusive
	Since *time.Time
	Until *time.Time
	// MerchantID restricts rows to one merchant; only some classes carry a merchant
	MerchantID string
	// BBox keeps rows whose location lies inside the box
	BBox *orb.Bound
	// Near and RadiusMeters keep rows within RadiusMeters of Near
	Near         *orb.Point
	RadiusMeters float64
	// LatestOnly keeps only the newest row per entity id before other filters apply
	LatestOnly bool
	// Limit of 0 means no limit
	Limit  int
	Offset int
}

// Store defines the interface for entity persistence
//
//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=Store=MockStore
type Store interface {
	// InsertEntity inserts the row if its (entity_id, time) key is absent
	InsertEntity(ctx context.Context, e domain.Entity) (domain.UpsertOutcome, error)
	// GetContentHash returns the content hash stored for a key, or "" if absent
	GetContentHash(ctx context.Context, class domain.EntityClass, id string, t time.Time) (string, error)
	// EnsurePartition creates the monthly partition holding t if it does not exist
	EnsurePartition(ctx context.Context, class domain.EntityClass, t time.Time) error
	// ListEntities returns rows matching filter, newest first
	ListEntities(ctx context.Context, filter EntityFilter) ([]domain.Entity, error)
	// GetLatestEntity returns the newest row for an entity id, or nil if absent
	GetLatestEntity(ctx context.Context, class domain.EntityClass, id string) (domain.Entity, error)
	// GetNewestTime returns the newest row time of a class, or nil if the class is empty
	GetNewestTime(ctx context.Context, class domain.EntityClass) (*time.Time, error)
	// Ping checks that the database is reachable
	Ping(ctx context.Context) error
}
