package rest

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"

	"github.com/shopstr-eng/shopstr-cache/internal/domain"
	"github.com/shopstr-eng/shopstr-cache/internal/store"
)

const (
	DEFAULT_PAGE_SIZE = 100
	MAX_PAGE_SIZE     = store.MaxListLimit
	MAX_RADIUS_METERS = 500_000
)

// ListEntitiesQueryParams holds query parameters for GET /entities/:class
type ListEntitiesQueryParams struct {
	// Time window in unix seconds, both inclusive
	Since *int64 `form:"since"`
	Until *int64 `form:"until"`

	Merchant string `form:"merchant"`

	// BBox is minLon,minLat,maxLon,maxLat
	BBox string `form:"bbox"`

	// Near is lat,lon and Radius is in meters
	Near   string  `form:"near"`
	Radius float64 `form:"radius"`

	Latest bool `form:"latest,default=true"`

	// Pagination
	Limit  int `form:"limit,default=100"`
	Offset int `form:"offset,default=0"`
}

// ParseListEntitiesQuery parses query parameters for GET /entities/:class
func ParseListEntitiesQuery(c *gin.Context) (*ListEntitiesQueryParams, error) {
	var params ListEntitiesQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		return nil, err
	}

	// Cap limits
	if params.Limit <= 0 {
		params.Limit = DEFAULT_PAGE_SIZE
	}
	if params.Limit > MAX_PAGE_SIZE {
		params.Limit = MAX_PAGE_SIZE
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	return &params, nil
}

// Filter converts the parameters into a store filter for class
func (p *ListEntitiesQueryParams) Filter(class domain.EntityClass) (store.EntityFilter, error) {
	filter := store.EntityFilter{
		Class:      class,
		MerchantID: strings.TrimSpace(p.Merchant),
		LatestOnly: p.Latest,
		Limit:      p.Limit,
		Offset:     p.Offset,
	}

	if p.Since != nil {
		t := time.Unix(*p.Since, 0).UTC()
		filter.Since = &t
	}
	if p.Until != nil {
		t := time.Unix(*p.Until, 0).UTC()
		filter.Until = &t
	}
	if filter.Since != nil && filter.Until != nil && filter.Until.Before(*filter.Since) {
		return filter, fmt.Errorf("until must not be before since")
	}

	if p.BBox != "" {
		bound, err := parseBBox(p.BBox)
		if err != nil {
			return filter, err
		}
		filter.BBox = &bound
	}

	if p.Near != "" {
		point, err := parseLatLon(p.Near)
		if err != nil {
			return filter, err
		}
		if p.Radius <= 0 || p.Radius > MAX_RADIUS_METERS {
			return filter, fmt.Errorf("radius must be in (0, %d] meters", MAX_RADIUS_METERS)
		}
		filter.Near = &point
		filter.RadiusMeters = p.Radius
	} else if p.Radius != 0 {
		return filter, fmt.Errorf("radius requires near")
	}

	return filter, nil
}

// parseBBox parses minLon,minLat,maxLon,maxLat
func parseBBox(s string) (orb.Bound, error) {
	values, err := parseFloats(s, 4)
	if err != nil {
		return orb.Bound{}, fmt.Errorf("invalid bbox: %w", err)
	}

	bound := orb.Bound{
		Min: orb.Point{values[0], values[1]},
		Max: orb.Point{values[2], values[3]},
	}
	if !domain.ValidLocation(bound.Min) || !domain.ValidLocation(bound.Max) {
		return orb.Bound{}, fmt.Errorf("invalid bbox: coordinates out of range")
	}
	if bound.Min.Lon() > bound.Max.Lon() || bound.Min.Lat() > bound.Max.Lat() {
		return orb.Bound{}, fmt.Errorf("invalid bbox: min must not exceed max")
	}
	return bound, nil
}

// parseLatLon parses lat,lon into an orb point (lon, lat)
func parseLatLon(s string) (orb.Point, error) {
	values, err := parseFloats(s, 2)
	if err != nil {
		return orb.Point{}, fmt.Errorf("invalid near: %w", err)
	}

	point := orb.Point{values[1], values[0]}
	if !domain.ValidLocation(point) {
		return orb.Point{}, fmt.Errorf("invalid near: coordinates out of range")
	}
	return point, nil
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma separated numbers", n)
	}

	values := make([]float64, n)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", part)
		}
		values[i] = v
	}
	return values, nil
}

// maxAgeSeconds is the largest max_age a time.Duration can hold
const maxAgeSeconds = math.MaxInt64 / int64(time.Second)

// ParseMaxAge parses the max_age parameter of GET /entities/:class/cached.
// It accepts a duration ("90s", "5m") or a bare number of seconds. Empty means
// the server default.
func ParseMaxAge(c *gin.Context) (time.Duration, error) {
	raw := strings.TrimSpace(c.Query("max_age"))
	if raw == "" {
		return 0, nil
	}

	if seconds, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if seconds <= 0 {
			return 0, fmt.Errorf("max_age must be positive")
		}
		if seconds > maxAgeSeconds {
			return 0, fmt.Errorf("max_age must be at most %d seconds", maxAgeSeconds)
		}
		return time.Duration(seconds) * time.Second, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid max_age %q", raw)
	}
	if d <= 0 {
		return 0, fmt.Errorf("max_age must be positive")
	}
	return d, nil
}
