package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/shopstr-eng/shopstr-cache/internal/api/middleware"
	"github.com/shopstr-eng/shopstr-cache/internal/api/server"
	"github.com/shopstr-eng/shopstr-cache/internal/app"
	"github.com/shopstr-eng/shopstr-cache/internal/config"
	"github.com/shopstr-eng/shopstr-cache/internal/logger"
	"github.com/shopstr-eng/shopstr-cache/internal/sweeper"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadAPIConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		Level:           cfg.LogLevel,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Service:         "api-server",
		Tags: map[string]string{
			"service": "api-server",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Shopstr cache API")

	refresherClasses, err := app.ParseClasses(cfg.Refresher.Classes)
	if err != nil {
		logger.FatalCtx(ctx, "Invalid refresher classes", zap.Error(err))
	}

	// Build the ingestion and cache stack
	stack, err := app.New(ctx, app.Options{
		Database:  cfg.Database,
		NATS:      cfg.NATS,
		Redis:     cfg.Redis,
		Relay:     cfg.Relay,
		Validator: cfg.Validator,
		Ingest:    cfg.Ingest,
		Cache:     cfg.Cache,
	})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to initialize", zap.Error(err))
	}
	defer func() {
		if err := stack.Close(); err != nil {
			logger.Error(err, zap.String("component", "shutdown"))
		}
	}()

	// Create server config
	serverConfig := server.Config{
		Debug:          cfg.Debug,
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    time.Duration(cfg.Server.IdleTimeout) * time.Second,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
		Auth: middleware.AuthConfig{
			JWTPublicKey: cfg.Auth.JWTPublicKey,
			APIKeys:      cfg.Auth.APIKeys,
		},
	}
	srv := server.New(serverConfig, stack.Cache, stack.Store)

	errCh := make(chan error, 2)

	// Start server in a goroutine
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	// Keep the configured classes warm in the background
	var refresher sweeper.Sweeper
	if cfg.Refresher.Enabled && len(refresherClasses) > 0 {
		refresher = sweeper.NewCacheRefresher(&sweeper.RefresherConfig{
			Interval:       cfg.Refresher.Interval,
			Classes:        refresherClasses,
			WorkerPoolSize: cfg.Refresher.Workers,
		}, stack.Cache, stack.Clock)

		go func() {
			if err := refresher.Start(ctx); err != nil {
				errCh <- fmt.Errorf("%s: %w", refresher.Name(), err)
			}
		}()
		logger.InfoCtx(ctx, "Started cache refresher",
			zap.Duration("interval", cfg.Refresher.Interval),
			zap.Strings("classes", cfg.Refresher.Classes),
		)
	}

	// Wait for interrupt signal to gracefully shutdown the server
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "server"))
	}
	cancel()

	// Create shutdown context with timeout (don't use canceled ctx)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.InfoCtx(shutdownCtx, "Shutting down server...")

	if refresher != nil {
		if err := refresher.Stop(shutdownCtx); err != nil {
			logger.ErrorCtx(shutdownCtx, err, zap.String("component", refresher.Name()))
		}
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorCtx(shutdownCtx, err, zap.String("component", "server"))
	}

	// Use non-context logger for final message since original ctx is canceled
	logger.Info("API server stopped")
}
