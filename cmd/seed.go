package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quarry0/quarry/db"
	"github.com/quarry0/quarry/internal/config"
)

// runSeed migrates the schema and loads deterministic sample analytics data.
func runSeed() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresURL())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	slog.Info("seeding analytics data", "database", cfg.PostgresDBName)
	if err := db.Seed(ctx, pool); err != nil {
		return fmt.Errorf("seeding data: %w", err)
	}
	slog.Info("seed complete")
	return nil
}
