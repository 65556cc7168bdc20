package mapper

import (
	"github.com/mmcloughlin/geohash"
	"github.com/paulmach/orb"

	"github.com/shopstr-eng/shopstr-cache/internal/domain"
)

// resolveLocation prefers coordinates delivered alongside the record and falls
// back to the first "g" tag. No location yields nil, never the zero point.
func resolveLocation(rec *domain.Record) (*orb.Point, error) {
	if rec.Location != nil {
		if !domain.ValidLocation(*rec.Location) {
			return nil, violation(rec, "location", "coordinate out of range")
		}
		p := *rec.Location
		return &p, nil
	}

	hash, ok := rec.TagValue("g")
	if !ok || hash == "" {
		return nil, nil
	}

	if err := geohash.Validate(hash); err != nil {
		return nil, violation(rec, "location", "invalid geohash %q: %v", hash, err)
	}

	lat, lon := geohash.Decode(hash)
	p := orb.Point{lon, lat}
	if !domain.ValidLocation(p) {
		return nil, violation(rec, "location", "geohash %q decodes out of range", hash)
	}
	return &p, nil
}
