package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/quarry0/quarry/internal/api"
	"github.com/quarry0/quarry/internal/app"
	"github.com/quarry0/quarry/internal/config"
)

// runServe initializes the application and serves the HTTP API until
// SIGINT or SIGTERM.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()
	logger.Info("starting HTTP API server", "version", Version)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	srv := api.NewServer(api.Config{
		Addr:        cfg.ServerAddr,
		Version:     Version,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
		Engine:      api.NewChatHandler(a.Engine, a.Store, logger),
		Health:      api.NewHealthHandler(a.DBPool, Version, logger),
		Pres:        api.NewPresentationHandler(logger),
	})
	return srv.Run(ctx)
}
