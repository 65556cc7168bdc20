package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/shopstr-eng/shopstr-cache/internal/api/middleware"
	"github.com/shopstr-eng/shopstr-cache/internal/api/rest"
	"github.com/shopstr-eng/shopstr-cache/internal/cache"
	"github.com/shopstr-eng/shopstr-cache/internal/logger"
)

// Config holds the server configuration
type Config struct {
	Debug          bool
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RateLimitRPS   float64 // per client, 0 disables
	RateLimitBurst int
	Auth           middleware.AuthConfig
}

// Server wraps the HTTP server
type Server struct {
	config     Config
	cache      cache.Cache
	db         rest.Pinger
	httpServer *http.Server
}

// New creates a new API server
func New(cfg Config, c cache.Cache, db rest.Pinger) *Server {
	return &Server{
		config: cfg,
		cache:  c,
		db:     db,
	}
}

// Router builds the gin engine with middleware and routes
func (s *Server) Router() *gin.Engine {
	// Set Gin mode based on debug flag
	if s.config.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Metrics())
	router.Use(middleware.SetupCORS())
	router.Use(gzip.Gzip(gzip.DefaultCompression))
	if s.config.RateLimitRPS > 0 {
		router.Use(middleware.NewRateLimiter(s.config.RateLimitRPS, s.config.RateLimitBurst).Handler())
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	restHandler := rest.NewHandler(s.cache, s.db)
	rest.SetupRoutes(router, restHandler, s.config.Auth)

	return router
}

// Start initializes and starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	logger.Info("Starting API server",
		zap.String("address", addr),
		zap.Bool("auth_enabled", s.config.Auth.Enabled()),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Shutting down API server")

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}

	return nil
}
