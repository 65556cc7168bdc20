// Package main provides cachectl, an operator CLI for the marketplace cache.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/shopstr-eng/shopstr-cache/internal/app"
	"github.com/shopstr-eng/shopstr-cache/internal/config"
	"github.com/shopstr-eng/shopstr-cache/internal/logger"
)

func main() {
	code := 0
	if err := newRootCmd(openApp).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		code = 1
	}
	logger.Flush(2 * time.Second)
	os.Exit(code)
}

// openApp loads configuration and builds the ingestion stack
func openApp(ctx context.Context, configFile, envPath string) (*app.App, error) {
	config.ChdirRepoRoot()
	cfg, err := config.LoadCLIConfig(configFile, envPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		Level:           cfg.LogLevel,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Service:         "cachectl",
	})
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	return app.New(ctx, app.Options{
		Database:  cfg.Database,
		NATS:      cfg.NATS,
		Redis:     cfg.Redis,
		Relay:     cfg.Relay,
		Validator: cfg.Validator,
		Ingest:    cfg.Ingest,
		Cache:     cfg.Cache,
	})
}
