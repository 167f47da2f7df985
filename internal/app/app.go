// Package app wires the application together: configuration, database,
// Genkit, tools, the model decider, and the turn engine.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quarry0/quarry/internal/agent"
	"github.com/quarry0/quarry/internal/config"
	"github.com/quarry0/quarry/internal/conversation"
	"github.com/quarry0/quarry/internal/tools"
)

// App is the application container. Build it with Setup and release it with
// Close.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Genkit   *genkit.Genkit
	DBPool   *pgxpool.Pool
	Registry *tools.Registry
	Engine   *agent.Engine
	Store    *conversation.Store

	otelCleanup func()
}

// Close releases resources in reverse setup order.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")
	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Debug("database pool closed")
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
