package server_test

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopstr-eng/shopstr-cache/internal/api/middleware"
	"github.com/shopstr-eng/shopstr-cache/internal/api/server"
	"github.com/shopstr-eng/shopstr-cache/internal/domain"
	"github.com/shopstr-eng/shopstr-cache/internal/mocks"
)

func TestRouter(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache := mocks.NewMockCache(ctrl)
	db := mocks.NewMockPinger(ctrl)

	srv := server.New(server.Config{
		RateLimitRPS:   0.001,
		RateLimitBurst: 2,
		Auth:           middleware.AuthConfig{APIKeys: []string{"k"}},
	}, cache, db)
	router := srv.Router()

	get := func(target string, headers map[string]string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.RemoteAddr = "198.51.100.7:40000"
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("health carries a request id", func(t *testing.T) {
		db.EXPECT().Ping(gomock.Any()).Return(nil)

		w := get("/health", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	})

	t.Run("responses are compressed on request", func(t *testing.T) {
		cache.EXPECT().FetchCached(gomock.Any(), domain.ClassProduct, gomock.Any()).Return(nil, nil)

		w := get("/api/v1/entities/product/cached", map[string]string{"Accept-Encoding": "gzip"})
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

		zr, err := gzip.NewReader(w.Body)
		require.NoError(t, err)
		body, err := io.ReadAll(zr)
		require.NoError(t, err)
		assert.JSONEq(t, `{"class":"product","count":0,"entities":[]}`, string(body))
	})

	t.Run("rate limited after the burst", func(t *testing.T) {
		w := get("/api/v1/entities/stalls", nil)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "1", w.Header().Get("Retry-After"))
	})
}

func TestShutdownWithoutStart(t *testing.T) {
	srv := server.New(server.Config{}, nil, nil)
	assert.NoError(t, srv.Shutdown(context.Background()))
}
