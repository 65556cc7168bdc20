package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/paulmach/orb/geo"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/dbresolver"

	"github.com/shopstr-eng/shopstr-cache/internal/domain"
	"github.com/shopstr-eng/shopstr-cache/internal/logger"
	"github.com/shopstr-eng/shopstr-cache/internal/store/schema"
)

const (
	pgDuplicateTable  = "42P07"
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

type pgStore struct {
	db *gorm.DB
	// partitions caches the names of partitions known to exist
	partitions sync.Map
}

func hasDBResolver(db *gorm.DB) bool {
	return db != nil && db.Callback().Query().Get("gorm:db_resolver") != nil
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// UseReadReplica routes read queries to the replica at readDSN.
// Writes and read-after-write lookups stay on the primary.
func UseReadReplica(db *gorm.DB, readDSN string) error {
	return db.Use(dbresolver.Register(dbresolver.Config{
		Replicas: []gorm.Dialector{postgres.Open(readDSN)},
		Policy:   dbresolver.RandomPolicy{},
	}))
}

// ConfigureConnectionPool configures the connection pool settings for a GORM database connection.
// If any of the pool settings are 0, defaults from NormalizeConnectionPoolSettings are used.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime =
		NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// NormalizeConnectionPoolSettings applies defaults and clamps pool settings into safe values.
//
// Defaults (when zero):
//   - MaxOpenConns: 20
//   - MaxIdleConns: 5
//   - ConnMaxLifetime: 5 minutes
//   - ConnMaxIdleTime: 10 minutes
func NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (int, int, time.Duration, time.Duration) {
	if maxOpenConns <= 0 {
		maxOpenConns = 20
	}
	if maxIdleConns <= 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime <= 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime <= 0 {
		connMaxIdleTime = 10 * time.Minute
	}

	// Ensure MaxIdleConns doesn't exceed MaxOpenConns
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	return maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime
}

// InsertEntity inserts the row with ON CONFLICT DO NOTHING on (entity_id, time).
// Zero affected rows means the key was already present.
func (s *pgStore) InsertEntity(ctx context.Context, e domain.Entity) (domain.UpsertOutcome, error) {
	row, err := toRow(e)
	if err != nil {
		return "", err
	}

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "entity_id"}, {Name: "time"}},
			DoNothing: true,
		}).
		Create(row)
	if res.Error != nil {
		return "", domain.NewStoreError("insert entity", res.Error)
	}

	if res.RowsAffected == 0 {
		return domain.UpsertAlreadyPresent, nil
	}
	return domain.UpsertInserted, nil
}

// GetContentHash returns the content hash stored for a key, or "" if absent
func (s *pgStore) GetContentHash(ctx context.Context, class domain.EntityClass, id string, t time.Time) (string, error) {
	table, err := schema.TableFor(class)
	if err != nil {
		return "", err
	}

	q := s.db.WithContext(ctx)
	if hasDBResolver(q) {
		// the row was just written by a concurrent insert; replicas may lag
		q = q.Clauses(dbresolver.Write)
	}

	var hash string
	err = q.Table(table).
		Select("content_hash").
		Where("entity_id = ? AND time = ?", id, t.UTC()).
		Limit(1).
		Scan(&hash).Error
	if err != nil {
		return "", domain.NewStoreError("get content hash", err)
	}

	return hash, nil
}

// EnsurePartition creates the monthly partition holding t if it does not exist
func (s *pgStore) EnsurePartition(ctx context.Context, class domain.EntityClass, t time.Time) error {
	table, err := schema.TableFor(class)
	if err != nil {
		return err
	}

	name := schema.PartitionName(table, t)
	if _, ok := s.partitions.Load(name); ok {
		return nil
	}

	from, to := schema.PartitionBounds(t)
	ddl := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s PARTITION OF %s FOR VALUES FROM ('%s') TO ('%s')`,
		name, table, from.Format(time.RFC3339), to.Format(time.RFC3339),
	)

	if err := s.db.WithContext(ctx).Exec(ddl).Error; err != nil {
		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) {
			return domain.NewStoreError("ensure partition", err)
		}

		switch pgErr.Code {
		case pgDuplicateTable, pgUniqueViolation:
			// created concurrently by another writer
		case pgCheckViolation:
			// rows for this month already sit in the default partition; keep writing there
			logger.WarnCtx(ctx, "Partition overlaps rows in default partition",
				zap.String("partition", name),
				zap.Error(err),
			)
		default:
			return domain.NewStoreError("ensure partition", err)
		}
	}

	s.partitions.Store(name, struct{}{})
	return nil
}

// merchantColumn returns the column that identifies the merchant of a class
func merchantColumn(class domain.EntityClass) (string, error) {
	switch class {
	case domain.ClassProduct:
		return "author", nil
	case domain.ClassListing, domain.ClassInquiry, domain.ClassCustomer:
		return "merchant_id", nil
	default:
		return "", fmt.Errorf("%w: class %s has no merchant", domain.ErrUnsupportedFilter, class)
	}
}

// ListEntities returns rows matching filter ordered by time descending.
// With LatestOnly the newest row per entity_id is picked with DISTINCT ON
// before the remaining predicates are applied, so an entity whose current
// row falls outside the window is absent rather than shown by an older row.
// Since is also pushed into the DISTINCT ON scan, where it prunes partitions
// without changing the result: an entity has rows at or after Since exactly
// when its newest row does. Until cannot be pushed down, so a latest-only
// read bounded only above scans every partition.
func (s *pgStore) ListEntities(ctx context.Context, filter EntityFilter) ([]domain.Entity, error) {
	table, err := schema.TableFor(filter.Class)
	if err != nil {
		return nil, err
	}

	var merchantCol string
	if filter.MerchantID != "" {
		if merchantCol, err = merchantColumn(filter.Class); err != nil {
			return nil, err
		}
	}
	if filter.Near != nil && filter.RadiusMeters <= 0 {
		return nil, fmt.Errorf("%w: proximity search needs a positive radius", domain.ErrUnsupportedFilter)
	}

	db := s.db.WithContext(ctx)

	var q *gorm.DB
	if filter.LatestOnly {
		latest := db.Table(table).
			Select("DISTINCT ON (entity_id) *").
			Order("entity_id, time DESC")
		if filter.Since != nil {
			latest = latest.Where("time >= ?", filter.Since.UTC())
		}
		q = db.Table("(?) AS latest", latest)
	} else {
		q = db.Table(table)
	}

	if filter.Since != nil {
		q = q.Where("time >= ?", filter.Since.UTC())
	}
	if filter.Until != nil {
		q = q.Where("time <= ?", filter.Until.UTC())
	}
	if merchantCol != "" {
		q = q.Where(fmt.Sprintf("%s = ?", merchantCol), filter.MerchantID)
	}
	if filter.BBox != nil {
		b := filter.BBox
		q = q.Where("location && ST_MakeEnvelope(?, ?, ?, ?, 4326)", b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat())
	}
	if filter.Near != nil {
		// index-assisted envelope prefilter, then the exact spheroid distance
		b := geo.NewBoundAroundPoint(*filter.Near, filter.RadiusMeters)
		q = q.Where("location && ST_MakeEnvelope(?, ?, ?, ?, 4326)", b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()).
			Where("ST_DWithin(location::geography, ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography, ?)",
				filter.Near.Lon(), filter.Near.Lat(), filter.RadiusMeters)
	}

	q = q.Order("time DESC").Order("entity_id")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	entities, err := findEntities(q, filter.Class)
	if err != nil {
		return nil, domain.NewStoreError("list entities", err)
	}
	return entities, nil
}

// GetLatestEntity returns the newest row for an entity id, or nil if absent
func (s *pgStore) GetLatestEntity(ctx context.Context, class domain.EntityClass, id string) (domain.Entity, error) {
	table, err := schema.TableFor(class)
	if err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx).
		Table(table).
		Where("entity_id = ?", id).
		Order("time DESC").
		Limit(1)

	entities, err := findEntities(q, class)
	if err != nil {
		return nil, domain.NewStoreError("get latest entity", err)
	}
	if len(entities) == 0 {
		return nil, nil
	}
	return entities[0], nil
}

// GetNewestTime returns the newest row time of a class, or nil if the class is empty
func (s *pgStore) GetNewestTime(ctx context.Context, class domain.EntityClass) (*time.Time, error) {
	table, err := schema.TableFor(class)
	if err != nil {
		return nil, err
	}

	var newest sql.NullTime
	row := s.db.WithContext(ctx).Table(table).Select("MAX(time)").Row()
	if err := row.Scan(&newest); err != nil {
		return nil, domain.NewStoreError("get newest time", err)
	}

	if !newest.Valid {
		return nil, nil
	}
	t := newest.Time.UTC()
	return &t, nil
}

// Ping checks that the database is reachable
func (s *pgStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return domain.NewStoreError("ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return domain.NewStoreError("ping", err)
	}
	return nil
}
