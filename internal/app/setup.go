package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quarry0/quarry/db"
	"github.com/quarry0/quarry/internal/agent"
	"github.com/quarry0/quarry/internal/config"
	"github.com/quarry0/quarry/internal/conversation"
	"github.com/quarry0/quarry/internal/model"
	"github.com/quarry0/quarry/internal/observability"
	"github.com/quarry0/quarry/internal/tools"
)

// Setup initializes all components. On failure everything already
// initialized is released before returning.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing must be registered before Genkit initializes so its spans
	// reach the exporter.
	a.otelCleanup = provideTracing(ctx, cfg, logger)

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	registry, toolRefs, err := provideTools(g, pool)
	if err != nil {
		return nil, err
	}
	a.Registry = registry

	decider, err := provideDecider(g, cfg, toolRefs, pool, logger)
	if err != nil {
		return nil, err
	}

	engine, err := agent.New(agent.Config{
		Decider:   decider,
		Tools:     registry,
		Logger:    logger,
		MaxCycles: cfg.MaxLoopTurns,
	})
	if err != nil {
		return nil, fmt.Errorf("creating turn engine: %w", err)
	}
	a.Engine = engine
	a.Store = conversation.NewStore()

	return a, nil
}

func provideTracing(ctx context.Context, cfg *config.Config, logger *slog.Logger) func() {
	shutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.OTLPEndpoint,
		Environment: cfg.Environment,
		ServiceName: cfg.ServiceName,
	}, logger)
	if err != nil {
		logger.Warn("tracing setup failed, continuing without it", "error", err)
		return func() {}
	}
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool migrates the schema and opens the connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresURL())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// provideGenkit initializes Genkit with the configured provider plugin.
func provideGenkit(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama has no model auto-discovery.
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		logger.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized Genkit with openai provider", "model", cfg.ModelName)

	default: // gemini
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
	}
	return g, nil
}

// provideTools builds the tool registry and exposes it to the model.
func provideTools(g *genkit.Genkit, pool *pgxpool.Pool) (*tools.Registry, []ai.ToolRef, error) {
	registry := tools.NewRegistry()

	groups := []func() ([]*tools.Tool, error){
		func() ([]*tools.Tool, error) { return tools.NewSQL(pool) },
		tools.NewChart,
		tools.NewPresentation,
	}
	for _, build := range groups {
		ts, err := build()
		if err != nil {
			return nil, nil, fmt.Errorf("building tools: %w", err)
		}
		for _, tool := range ts {
			if err := registry.Register(tool); err != nil {
				return nil, nil, fmt.Errorf("registering tool: %w", err)
			}
		}
	}
	return registry, tools.RegisterGenkit(g, registry), nil
}

// provideDecider builds the model decider, cached when configured.
func provideDecider(g *genkit.Genkit, cfg *config.Config, toolRefs []ai.ToolRef, pool *pgxpool.Pool, logger *slog.Logger) (agent.Decider, error) {
	decider, err := model.NewGenkitDecider(model.Config{
		Genkit:    g,
		ModelName: cfg.FullModelName(),
		System:    agent.SystemPrompt,
		Tools:     toolRefs,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating decider: %w", err)
	}

	if !cfg.CacheResponses {
		return decider, nil
	}
	cache := model.NewPgCache(pool)
	return model.NewCachedDecider(decider, cache, cfg.FullModelName(), logger), nil
}
