package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/shopmate-ai/shopmate/internal/api"
	"github.com/shopmate-ai/shopmate/internal/catalog"
	"github.com/shopmate-ai/shopmate/internal/config"
	"github.com/shopmate-ai/shopmate/internal/database"
	"github.com/shopmate-ai/shopmate/internal/llm"
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

	if err := database.RunMigrations(cfg.DB.DSN(), cfg.Catalog.MigrationsDir); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	embedder := llm.NewOpenAIClient(cfg.LLM)
	repo := catalog.NewPostgresRepository(pool)

	if cfg.Catalog.SeedCSV != "" {
		if err := catalog.SeedFromCSV(ctx, repo, embedder, cfg.Catalog.SeedCSV); err != nil {
			slog.Error("seeding catalog", "error", err)
			os.Exit(1)
		}
	}

	svc := catalog.NewService(repo, embedder, cfg.Catalog.TopK, cfg.Catalog.SimThreshold)
	handler := catalog.NewHandler(svc)

	router := api.NewCatalogRouter(pool,
		api.RouterConfig{CORSAllowedOrigins: cfg.CORS.AllowedOrigins},
		api.CatalogHandlers{
			QueryText:  handler.QueryText,
			QueryImage: handler.QueryImage,
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
