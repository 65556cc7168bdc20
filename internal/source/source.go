package source

import (
	"context"
	"time"

	"github.com/shopstr-eng/shopstr-cache/internal/domain"
)

// Filter selects the records a source returns
type Filter struct {
	// Kinds restricts records to these kinds; empty means all kinds
	Kinds []domain.Kind
	// Since restricts records to created_at >= Since; nil means no lower bound
	Since *time.Time
	// Limit caps the number of records; 0 means no limit
	Limit int
}

// Source is an upstream that returns raw records matching a filter
//
//go:generate mockgen -source=source.go -destination=../mocks/source.go -package=mocks -mock_names=Source=MockSource
type Source interface {
	// Name identifies the source in reports and logs
	Name() string
	// Fetch returns the records matching filter. Records are unvalidated.
	Fetch(ctx context.Context, filter Filter) ([]domain.Record, error)
}

// Static is a Source serving a fixed record set, used for replay and tests
type Static struct {
	SourceName string
	Records    []domain.Record
	Err        error
}

// Name returns the configured name
func (s *Static) Name() string {
	return s.SourceName
}

// Fetch returns the records matching filter, or Err when set
func (s *Static) Fetch(ctx context.Context, filter Filter) ([]domain.Record, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []domain.Record
	for _, rec := range s.Records {
		if !filter.Matches(&rec) {
			continue
		}
		out = append(out, rec)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// Matches reports whether rec satisfies the kind and since constraints
func (f Filter) Matches(rec *domain.Record) bool {
	if f.Since != nil && rec.CreatedAt < f.Since.Unix() {
		return false
	}
	if len(f.Kinds) == 0 {
		return true
	}
	for _, k := range f.Kinds {
		if rec.Kind == k {
			return true
		}
	}
	return false
}
