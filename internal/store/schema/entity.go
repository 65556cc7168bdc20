package schema

import (
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/shopstr-eng/shopstr-cache/internal/domain"
)

// EntityRow holds the columns shared by every entity table.
// The generated "location" geometry column is derived from Lat/Lon by the database
// and is only ever read through SQL predicates.
type EntityRow struct {
	// EntityID is the logical entity identifier
	EntityID string `gorm:"column:entity_id;primaryKey;type:text"`
	// Time is the source-asserted creation time; it is also the partition key
	Time time.Time `gorm:"column:time;primaryKey;type:timestamptz"`
	// RecordID is the identifier of the record the row was mapped from
	RecordID string `gorm:"column:record_id;not null;type:text"`
	// Author is the public key that signed the record
	Author string `gorm:"column:author;not null;type:text"`
	// Kind is the record kind
	Kind int `gorm:"column:kind;not null"`
	// Lat is nil when the entity has no location
	Lat *float64 `gorm:"column:lat"`
	// Lon is nil when the entity has no location
	Lon *float64 `gorm:"column:lon"`
	// Payload holds the record content and tags
	Payload datatypes.JSON `gorm:"column:payload;not null;type:jsonb"`
	// ContentHash is the sha256 of the canonical payload
	ContentHash string `gorm:"column:content_hash;not null;type:text"`
	// IngestedAt is set by the database on insert
	IngestedAt time.Time `gorm:"column:ingested_at;->"`
}

var tables = map[domain.EntityClass]string{
	domain.ClassUser:        "users",
	domain.ClassProduct:     "products",
	domain.ClassListing:     "listings",
	domain.ClassMessage:     "messages",
	domain.ClassInquiry:     "inquiries",
	domain.ClassCustomer:    "customers",
	domain.ClassShopper:     "shoppers",
	domain.ClassTransaction: "transactions",
	domain.ClassReview:      "reviews",
}

// TableFor returns the table holding rows of an entity class
func TableFor(class domain.EntityClass) (string, error) {
	table, ok := tables[class]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownClass, class)
	}
	return table, nil
}

// PartitionName returns the monthly partition of table that holds t
func PartitionName(table string, t time.Time) string {
	return fmt.Sprintf("%s_p%s", table, t.UTC().Format("200601"))
}

// PartitionBounds returns the [from, to) range of the month containing t
func PartitionBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	from := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}
