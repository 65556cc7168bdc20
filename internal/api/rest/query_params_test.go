package rest

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopstr-eng/shopstr-cache/internal/domain"
)

func testContext(query string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	return c
}

func TestParseListEntitiesQuery(t *testing.T) {
	params, err := ParseListEntitiesQuery(testContext("limit=-1&offset=-4"))
	require.NoError(t, err)
	assert.Equal(t, DEFAULT_PAGE_SIZE, params.Limit)
	assert.Equal(t, 0, params.Offset)
	assert.True(t, params.Latest)

	params, err = ParseListEntitiesQuery(testContext("limit=9999&latest=false"))
	require.NoError(t, err)
	assert.Equal(t, MAX_PAGE_SIZE, params.Limit)
	assert.False(t, params.Latest)

	_, err = ParseListEntitiesQuery(testContext("limit=many"))
	assert.Error(t, err)
}

func TestFilter(t *testing.T) {
	since, until := int64(1_700_000_000), int64(1_700_000_600)
	params := &ListEntitiesQueryParams{
		Since:    &since,
		Until:    &until,
		Merchant: "  m1 ",
		Latest:   true,
		Limit:    10,
	}

	filter, err := params.Filter(domain.ClassProduct)
	require.NoError(t, err)
	assert.Equal(t, domain.ClassProduct, filter.Class)
	assert.Equal(t, "m1", filter.MerchantID)
	assert.True(t, filter.Since.Equal(time.Unix(since, 0)))
	assert.True(t, filter.Until.Equal(time.Unix(until, 0)))
	assert.Nil(t, filter.BBox)

	// a zero width window is allowed
	params.Until = &since
	_, err = params.Filter(domain.ClassProduct)
	assert.NoError(t, err)
}

func TestParseBBox(t *testing.T) {
	bound, err := parseBBox(" -122.5, 37.7 ,-122.3,37.8")
	require.NoError(t, err)
	assert.Equal(t, orb.Bound{Min: orb.Point{-122.5, 37.7}, Max: orb.Point{-122.3, 37.8}}, bound)

	for _, s := range []string{"", "1,2,3,x", "1,2,3,4,5", "0,-91,1,1", "5,0,1,1"} {
		_, err := parseBBox(s)
		assert.Error(t, err, s)
	}
}

func TestParseLatLon(t *testing.T) {
	point, err := parseLatLon("37.7,-122.4")
	require.NoError(t, err)
	assert.Equal(t, -122.4, point.Lon())
	assert.Equal(t, 37.7, point.Lat())

	// latitude comes first, so 120 is out of range
	_, err = parseLatLon("120,10")
	assert.Error(t, err)

	_, err = parseLatLon("10")
	assert.Error(t, err)
}

func TestParseMaxAge(t *testing.T) {
	tests := []struct {
		query    string
		expected time.Duration
		wantErr  bool
	}{
		{query: "", expected: 0},
		{query: "max_age=30", expected: 30 * time.Second},
		{query: "max_age=1h30m", expected: 90 * time.Minute},
		{query: "max_age=0", wantErr: true},
		{query: "max_age=-1m", wantErr: true},
		{query: "max_age=later", wantErr: true},
		{query: "max_age=9223372036", expected: 9223372036 * time.Second},
		{query: "max_age=9223372037", wantErr: true},
		{query: "max_age=9223372036854775807", wantErr: true},
		{query: "max_age=99999999999999999999", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			d, err := ParseMaxAge(testContext(tt.query))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, d)
		})
	}
}
