package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/shopmate-ai/shopmate/internal/agent"
	"github.com/shopmate-ai/shopmate/internal/api"
	"github.com/shopmate-ai/shopmate/internal/assistant"
	"github.com/shopmate-ai/shopmate/internal/catalog"
	"github.com/shopmate-ai/shopmate/internal/config"
	"github.com/shopmate-ai/shopmate/internal/events"
	"github.com/shopmate-ai/shopmate/internal/guardrail"
	"github.com/shopmate-ai/shopmate/internal/llm"
	"github.com/shopmate-ai/shopmate/internal/memory"
	"github.com/shopmate-ai/shopmate/internal/orchestrator"
	iredis "github.com/shopmate-ai/shopmate/internal/redis"
	"github.com/shopmate-ai/shopmate/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg.Log)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	logger := slog.Default()

	// Redis session store
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	store := memory.NewRedisStore(redisClient, cfg.Memory.SessionTTL)

	// NATS audit events (optional)
	publisher, err := events.Connect(ctx, cfg.NATS)
	if err != nil {
		slog.Error("connecting to nats", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	// Model client and agents
	model := llm.NewOpenAIClient(cfg.LLM)
	catalogClient := catalog.NewClient(cfg.Catalog)
	gate := guardrail.NewGate(cfg.Guardrail)

	orch := orchestrator.New(orchestrator.Deps{
		Planner:    agent.NewPlanner(model, logger),
		Retriever:  agent.NewRetriever(model, catalogClient, cfg.Catalog.Categories, cfg.Catalog.TopK, logger),
		Cart:       agent.NewCartAgent(store, logger),
		Chatter:    agent.NewChatter(model),
		Summarizer: agent.NewSummarizer(model, cfg.Memory.ContextBudget, logger),
		Gate:       gate,
		Store:      store,
		Events:     publisher,
		Logger:     logger,

		UnsafeMessage: cfg.Guardrail.UnsafeMessage,
	})

	handler := assistant.NewHandler(orch, store, logger)

	router := api.NewAssistantRouter(
		api.RouterConfig{CORSAllowedOrigins: cfg.CORS.AllowedOrigins},
		api.AssistantDeps{
			MemoryHealthy:    store.Healthy,
			CatalogHealthy:   catalogClient.Healthy,
			GuardrailHealthy: gate.Healthy,
		},
		api.AssistantHandlers{
			Query:        handler.Query,
			QueryStream:  handler.QueryStream,
			ResetSession: handler.ResetSession,
		},
	)

	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
