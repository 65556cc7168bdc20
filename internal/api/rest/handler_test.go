package rest_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopstr-eng/shopstr-cache/internal/api/middleware"
	"github.com/shopstr-eng/shopstr-cache/internal/api/rest"
	apierrors "github.com/shopstr-eng/shopstr-cache/internal/api/shared/errors"
	"github.com/shopstr-eng/shopstr-cache/internal/domain"
	"github.com/shopstr-eng/shopstr-cache/internal/mocks"
	"github.com/shopstr-eng/shopstr-cache/internal/store"
)

const testAPIKey = "operator-key"

type testServer struct {
	router *gin.Engine
	cache  *mocks.MockCache
	db     *mocks.MockPinger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctrl := gomock.NewController(t)
	s := &testServer{
		router: gin.New(),
		cache:  mocks.NewMockCache(ctrl),
		db:     mocks.NewMockPinger(ctrl),
	}
	s.router.Use(middleware.RequestID())
	rest.SetupRoutes(s.router, rest.NewHandler(s.cache, s.db), middleware.AuthConfig{APIKeys: []string{testAPIKey}})
	return s
}

func (s *testServer) do(method, target string, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	s.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) apierrors.APIError {
	t.Helper()
	var apiErr apierrors.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
	return apiErr
}

func sampleProduct(id string) *domain.Product {
	return &domain.Product{
		EntityHeader: domain.EntityHeader{
			ID:       id,
			Time:     time.Unix(1_700_000_000, 0).UTC(),
			RecordID: strings.Repeat("a", 64),
			Author:   strings.Repeat("b", 64),
			Kind:     domain.KindProduct,
			Payload:  json.RawMessage(`{"content":"{}","tags":[]}`),
		},
		Title:    "Widget",
		Price:    12.5,
		Currency: "USD",
	}
}

type listBody struct {
	Class    string                   `json:"class"`
	Count    int                      `json:"count"`
	Entities []map[string]interface{} `json:"entities"`
}

func TestListEntities(t *testing.T) {
	t.Run("passes filters through", func(t *testing.T) {
		s := newTestServer(t)

		var got store.EntityFilter
		s.cache.EXPECT().FetchFiltered(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, filter store.EntityFilter) ([]domain.Entity, error) {
				got = filter
				return []domain.Entity{sampleProduct("30402:b:widget")}, nil
			})

		w := s.do(http.MethodGet, "/api/v1/entities/products?since=100&until=200&merchant=m1&bbox=-10,-5,10,5&latest=false&limit=1000&offset=3", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		assert.Equal(t, domain.ClassProduct, got.Class)
		require.NotNil(t, got.Since)
		require.NotNil(t, got.Until)
		assert.Equal(t, int64(100), got.Since.Unix())
		assert.Equal(t, int64(200), got.Until.Unix())
		assert.Equal(t, "m1", got.MerchantID)
		require.NotNil(t, got.BBox)
		assert.Equal(t, orb.Bound{Min: orb.Point{-10, -5}, Max: orb.Point{10, 5}}, *got.BBox)
		assert.False(t, got.LatestOnly)
		assert.Equal(t, store.MaxListLimit, got.Limit)
		assert.Equal(t, 3, got.Offset)

		var body listBody
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "product", body.Class)
		assert.Equal(t, 1, body.Count)
		assert.Equal(t, "Widget", body.Entities[0]["title"])
	})

	t.Run("defaults", func(t *testing.T) {
		s := newTestServer(t)

		var got store.EntityFilter
		s.cache.EXPECT().FetchFiltered(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, filter store.EntityFilter) ([]domain.Entity, error) {
				got = filter
				return nil, nil
			})

		w := s.do(http.MethodGet, "/api/v1/entities/listing", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, got.LatestOnly)
		assert.Equal(t, rest.DEFAULT_PAGE_SIZE, got.Limit)
		assert.Nil(t, got.Near)
		assert.JSONEq(t, `{"class":"listing","count":0,"entities":[]}`, w.Body.String())
	})

	t.Run("near and radius", func(t *testing.T) {
		s := newTestServer(t)

		var got store.EntityFilter
		s.cache.EXPECT().FetchFiltered(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, filter store.EntityFilter) ([]domain.Entity, error) {
				got = filter
				return nil, nil
			})

		w := s.do(http.MethodGet, "/api/v1/entities/shoppers?near=37.7,-122.4&radius=2500", nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, got.Near)
		assert.Equal(t, orb.Point{-122.4, 37.7}, *got.Near)
		assert.Equal(t, 2500.0, got.RadiusMeters)
	})

	invalid := []struct {
		name  string
		query string
	}{
		{name: "bbox with three numbers", query: "bbox=1,2,3"},
		{name: "bbox out of range", query: "bbox=-200,0,10,10"},
		{name: "bbox min above max", query: "bbox=10,10,0,0"},
		{name: "near without radius", query: "near=10,10"},
		{name: "radius too large", query: "near=10,10&radius=900000"},
		{name: "radius without near", query: "radius=100"},
		{name: "until before since", query: "since=200&until=100"},
		{name: "since not a number", query: "since=yesterday"},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)

			w := s.do(http.MethodGet, "/api/v1/entities/products?"+tt.query, nil)
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, apierrors.ErrCodeValidationFailed, decodeError(t, w).Code)
		})
	}

	t.Run("unknown class", func(t *testing.T) {
		s := newTestServer(t)

		w := s.do(http.MethodGet, "/api/v1/entities/stalls", nil)
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, apierrors.ErrCodeNotFound, decodeError(t, w).Code)
	})

	t.Run("filter the class does not carry", func(t *testing.T) {
		s := newTestServer(t)
		s.cache.EXPECT().FetchFiltered(gomock.Any(), gomock.Any()).
			Return(nil, domain.ErrUnsupportedFilter)

		w := s.do(http.MethodGet, "/api/v1/entities/users?merchant=m1", nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apierrors.ErrCodeValidationFailed, decodeError(t, w).Code)
	})

	t.Run("store unavailable", func(t *testing.T) {
		s := newTestServer(t)
		s.cache.EXPECT().FetchFiltered(gomock.Any(), gomock.Any()).
			Return(nil, domain.NewStoreError("list", errors.New("connection refused")))

		w := s.do(http.MethodGet, "/api/v1/entities/products", nil)
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		apiErr := decodeError(t, w)
		assert.Equal(t, apierrors.ErrCodeStoreError, apiErr.Code)
		assert.NotContains(t, apiErr.Details, "connection refused")
	})
}

func TestGetCachedEntities(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected time.Duration
	}{
		{name: "server default", query: "", expected: 0},
		{name: "seconds", query: "?max_age=90", expected: 90 * time.Second},
		{name: "duration", query: "?max_age=5m", expected: 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			s.cache.EXPECT().FetchCached(gomock.Any(), domain.ClassProduct, tt.expected).
				Return([]domain.Entity{sampleProduct("p1"), sampleProduct("p2")}, nil)

			w := s.do(http.MethodGet, "/api/v1/entities/product/cached"+tt.query, nil)
			require.Equal(t, http.StatusOK, w.Code)

			var body listBody
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, 2, body.Count)
		})
	}

	for _, query := range []string{"?max_age=soon", "?max_age=-5", "?max_age=0s"} {
		t.Run("invalid "+query, func(t *testing.T) {
			s := newTestServer(t)

			w := s.do(http.MethodGet, "/api/v1/entities/product/cached"+query, nil)
			require.Equal(t, http.StatusBadRequest, w.Code)
		})
	}

	t.Run("store unavailable", func(t *testing.T) {
		s := newTestServer(t)
		s.cache.EXPECT().FetchCached(gomock.Any(), domain.ClassReview, time.Duration(0)).
			Return(nil, domain.NewStoreError("list", errors.New("down")))

		w := s.do(http.MethodGet, "/api/v1/entities/reviews/cached", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestGetEntity(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		s := newTestServer(t)
		s.cache.EXPECT().FetchLatest(gomock.Any(), domain.ClassProduct, "p1").
			Return(sampleProduct("p1"), nil)

		w := s.do(http.MethodGet, "/api/v1/entities/products/p1", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Class  string                 `json:"class"`
			Entity map[string]interface{} `json:"entity"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "product", body.Class)
		assert.Equal(t, "p1", body.Entity["id"])
		assert.Equal(t, 12.5, body.Entity["price"])
	})

	t.Run("not found", func(t *testing.T) {
		s := newTestServer(t)
		s.cache.EXPECT().FetchLatest(gomock.Any(), domain.ClassProduct, "missing").
			Return(nil, nil)

		w := s.do(http.MethodGet, "/api/v1/entities/products/missing", nil)
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, apierrors.ErrCodeNotFound, decodeError(t, w).Code)
	})

	t.Run("store error wrapping a deadline", func(t *testing.T) {
		s := newTestServer(t)
		s.cache.EXPECT().FetchLatest(gomock.Any(), domain.ClassProduct, "slow").
			Return(nil, domain.NewStoreError("latest", context.DeadlineExceeded))

		w := s.do(http.MethodGet, "/api/v1/entities/products/slow", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestTriggerIngest(t *testing.T) {
	auth := map[string]string{"Authorization": "ApiKey " + testAPIKey}

	t.Run("requires authentication", func(t *testing.T) {
		s := newTestServer(t)

		w := s.do(http.MethodPost, "/api/v1/ingest/products", nil)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, apierrors.ErrCodeUnauthorized, decodeError(t, w).Code)

		w = s.do(http.MethodPost, "/api/v1/ingest/products", map[string]string{"Authorization": "ApiKey wrong"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("returns the report", func(t *testing.T) {
		s := newTestServer(t)
		s.cache.EXPECT().Refresh(gomock.Any(), domain.ClassProduct).
			Return(&domain.IngestionReport{Accepted: 3, Duplicate: 1, PassID: "pass-1"}, nil)

		w := s.do(http.MethodPost, "/api/v1/ingest/products", auth)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var body struct {
			Skipped bool                   `json:"skipped"`
			Report  domain.IngestionReport `json:"report"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.False(t, body.Skipped)
		assert.Equal(t, int64(3), body.Report.Accepted)
		assert.Equal(t, int64(1), body.Report.Duplicate)
	})

	t.Run("skipped pass", func(t *testing.T) {
		s := newTestServer(t)
		s.cache.EXPECT().Refresh(gomock.Any(), domain.ClassListing).Return(nil, nil)

		w := s.do(http.MethodPost, "/api/v1/ingest/listing", auth)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"skipped":true}`, w.Body.String())
	})

	t.Run("aborted pass", func(t *testing.T) {
		s := newTestServer(t)
		s.cache.EXPECT().Refresh(gomock.Any(), domain.ClassProduct).
			Return(&domain.IngestionReport{Accepted: 1}, domain.NewStoreError("insert", errors.New("disk full")))

		w := s.do(http.MethodPost, "/api/v1/ingest/products", auth)
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("unknown class", func(t *testing.T) {
		s := newTestServer(t)

		w := s.do(http.MethodPost, "/api/v1/ingest/stalls", auth)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHealthCheck(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		s := newTestServer(t)
		s.db.EXPECT().Ping(gomock.Any()).Return(nil)

		w := s.do(http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok","service":"shopstr-cache-api"}`, w.Body.String())
	})

	t.Run("database down", func(t *testing.T) {
		s := newTestServer(t)
		s.db.EXPECT().Ping(gomock.Any()).Return(errors.New("dial tcp: refused"))

		w := s.do(http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestSetupRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctrl := gomock.NewController(t)
	handler := mocks.NewMockAPIHandler(ctrl)

	router := gin.New()
	rest.SetupRoutes(router, handler, middleware.AuthConfig{APIKeys: []string{testAPIKey}})

	respond := func(c *gin.Context) { c.Status(http.StatusNoContent) }
	handler.EXPECT().ListEntities(gomock.Any()).Do(respond)
	handler.EXPECT().GetCachedEntities(gomock.Any()).Do(respond)
	handler.EXPECT().GetEntity(gomock.Any()).Do(func(c *gin.Context) {
		assert.Equal(t, "abc", c.Param("id"))
		respond(c)
	})
	handler.EXPECT().HealthCheck(gomock.Any()).Do(respond)

	for _, target := range []string{
		"/api/v1/entities/product",
		"/api/v1/entities/product/cached",
		"/api/v1/entities/product/abc",
		"/health",
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusNoContent, w.Code, target)
	}

	// the ingest route rejects before reaching the handler
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/ingest/product", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
