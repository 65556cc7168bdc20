package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// EntityClass identifies one of the fixed entity schemas stored by the cache
type EntityClass string

const (
	ClassUser        EntityClass = "user"
	ClassProduct     EntityClass = "product"
	ClassListing     EntityClass = "listing"
	ClassMessage     EntityClass = "message"
	ClassInquiry     EntityClass = "inquiry"
	ClassCustomer    EntityClass = "customer"
	ClassShopper     EntityClass = "shopper"
	ClassTransaction EntityClass = "transaction"
	ClassReview      EntityClass = "review"
)

// AllClasses lists every entity class in a stable order
var AllClasses = []EntityClass{
	ClassUser,
	ClassProduct,
	ClassListing,
	ClassMessage,
	ClassInquiry,
	ClassCustomer,
	ClassShopper,
	ClassTransaction,
	ClassReview,
}

// IsValidClass checks if a class is one of the known entity classes
func IsValidClass(class EntityClass) bool {
	for _, c := range AllClasses {
		if c == class {
			return true
		}
	}
	return false
}

// ParseClass parses a class name case-insensitively, accepting plural forms
func ParseClass(s string) (EntityClass, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "inquiries" {
		name = "inquiry"
	} else {
		name = strings.TrimSuffix(name, "s")
	}

	class := EntityClass(name)
	if !IsValidClass(class) {
		return "", fmt.Errorf("%w: %q", ErrUnknownClass, s)
	}
	return class, nil
}

// Kind is the integer discriminator carried by a record
type Kind int

const (
	KindUserMetadata Kind = 0
	KindDirectMsg    Kind = 4
	KindChatMsg      Kind = 14
	KindProduct      Kind = 30402
	KindListing      Kind = 30019
	KindCustomer     Kind = 30405
	KindShopper      Kind = 30406
	KindInquiry      Kind = 30407
	KindTransaction  Kind = 30408
	KindReview       Kind = 31555
)

// IsAddressable reports whether records of this kind are re-announced under a
// stable "kind:author:d" address
func (k Kind) IsAddressable() bool {
	return k >= 30000 && k < 40000
}

// Record is a raw signed datum received from a source, before validation
type Record struct {
	ID        string     `json:"id"`
	Author    string     `json:"pubkey"`
	Kind      Kind       `json:"kind"`
	CreatedAt int64      `json:"created_at"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`

	// Location is set by sources whose wire format carries coordinates; it is not signed
	Location *orb.Point `json:"-"`
	// SeenOn lists the sources that delivered this record
	SeenOn []string `json:"-"`
}

// Time returns the source-asserted creation time
func (r *Record) Time() time.Time {
	return time.Unix(r.CreatedAt, 0).UTC()
}

// TagValue returns the first value of the first tag with the given name
func (r *Record) TagValue(name string) (string, bool) {
	for _, tag := range r.Tags {
		if len(tag) >= 2 && tag[0] == name {
			return tag[1], true
		}
	}
	return "", false
}

// TagValues returns the first value of every tag with the given name
func (r *Record) TagValues(name string) []string {
	var values []string
	for _, tag := range r.Tags {
		if len(tag) >= 2 && tag[0] == name {
			values = append(values, tag[1])
		}
	}
	return values
}

// FindTag returns the first full tag with the given name
func (r *Record) FindTag(name string) ([]string, bool) {
	for _, tag := range r.Tags {
		if len(tag) >= 1 && tag[0] == name {
			return tag, true
		}
	}
	return nil, false
}

// Address returns the "kind:author:d" address of an addressable record
func (r *Record) Address(d string) string {
	return fmt.Sprintf("%d:%s:%s", r.Kind, r.Author, d)
}

// ValidLocation checks that a point is a real WGS84 coordinate pair
func ValidLocation(p orb.Point) bool {
	lon, lat := p.Lon(), p.Lat()
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// UpsertOutcome reports the result of an idempotent write
type UpsertOutcome string

const (
	UpsertInserted       UpsertOutcome = "inserted"
	UpsertAlreadyPresent UpsertOutcome = "already_present"
)

// IngestionReport summarizes a single ingestion pass
type IngestionReport struct {
	PassID             string            `json:"pass_id"`
	Class              EntityClass       `json:"class"`
	Accepted           int64             `json:"accepted"`
	Duplicate          int64             `json:"duplicate"`
	Rejected           int64             `json:"rejected"`
	UnknownKind        int64             `json:"unknown_kind"`
	SchemaViolations   int64             `json:"schema_violations"`
	Anomalies          int64             `json:"anomalies"`
	RejectReasons      map[string]int64  `json:"reject_reasons,omitempty"`
	UnreachableSources []string          `json:"unreachable_sources"`
	SourceErrors       map[string]string `json:"source_errors,omitempty"`
	StartedAt          time.Time         `json:"started_at"`
	Duration           time.Duration     `json:"duration"`
}

// Merge folds the counters of a retry pass into this report. Sources that
// were unreachable in r but answered in other are removed from the list.
func (r *IngestionReport) Merge(other *IngestionReport) {
	if other == nil {
		return
	}

	r.Accepted += other.Accepted
	r.Duplicate += other.Duplicate
	r.Rejected += other.Rejected
	r.UnknownKind += other.UnknownKind
	r.SchemaViolations += other.SchemaViolations
	r.Anomalies += other.Anomalies
	for reason, n := range other.RejectReasons {
		if r.RejectReasons == nil {
			r.RejectReasons = make(map[string]int64)
		}
		r.RejectReasons[reason] += n
	}

	stillDown := make(map[string]bool, len(other.UnreachableSources))
	for _, name := range other.UnreachableSources {
		stillDown[name] = true
	}
	remaining := r.UnreachableSources[:0]
	for _, name := range r.UnreachableSources {
		if stillDown[name] {
			remaining = append(remaining, name)
		} else {
			delete(r.SourceErrors, name)
		}
	}
	r.UnreachableSources = remaining
	for name, msg := range other.SourceErrors {
		if r.SourceErrors == nil {
			r.SourceErrors = make(map[string]string)
		}
		r.SourceErrors[name] = msg
	}
	r.Duration += other.Duration
}
