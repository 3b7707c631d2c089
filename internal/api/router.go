package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shopmate-ai/shopmate/internal/database"
	mw "github.com/shopmate-ai/shopmate/internal/middleware"
)

// AssistantHandlers holds the handler functions injected from main.go to
// avoid import cycles.
type AssistantHandlers struct {
	Query        http.HandlerFunc
	QueryStream  http.HandlerFunc
	ResetSession http.HandlerFunc
}

// AssistantDeps are the dependency probes of the assistant readiness check.
type AssistantDeps struct {
	MemoryHealthy    func(ctx context.Context) bool
	CatalogHealthy   func(ctx context.Context) bool
	GuardrailHealthy func(ctx context.Context) bool
}

// RouterConfig holds router-level configuration.
type RouterConfig struct {
	CORSAllowedOrigins []string
}

// NewAssistantRouter builds the HTTP surface of the assistant service.
func NewAssistantRouter(cfg RouterConfig, deps AssistantDeps, h AssistantHandlers) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe — always 200, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness probe — checks session store, catalog and rails
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":    "healthy",
			"memory":    "healthy",
			"catalog":   "healthy",
			"guardrail": "healthy",
		}
		status := http.StatusOK

		if deps.MemoryHealthy != nil && !deps.MemoryHealthy(r.Context()) {
			health["memory"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}
		if deps.CatalogHealthy != nil && !deps.CatalogHealthy(r.Context()) {
			health["catalog"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}
		// The gate has its own fail-closed behavior, so a down rails service
		// degrades readiness without flipping it to unavailable.
		if deps.GuardrailHealthy != nil && !deps.GuardrailHealthy(r.Context()) {
			health["guardrail"] = "unhealthy"
			health["status"] = "degraded"
		}

		JSON(w, status, health)
	}
	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	r.Handle("/metrics", promhttp.Handler())

	r.Post("/query", h.Query)
	r.Post("/query/stream", h.QueryStream)
	r.Post("/session/{user_id}/reset", h.ResetSession)

	return r
}

// CatalogHandlers holds the catalog service handler functions.
type CatalogHandlers struct {
	QueryText  http.HandlerFunc
	QueryImage http.HandlerFunc
}

// NewCatalogRouter builds the HTTP surface of the catalog retriever service.
func NewCatalogRouter(pool *pgxpool.Pool, cfg RouterConfig, h CatalogHandlers) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{"status": "healthy", "database": "healthy"}
		status := http.StatusOK
		if err := database.HealthCheck(r.Context(), pool); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}
		JSON(w, status, health)
	}
	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	r.Handle("/metrics", promhttp.Handler())

	r.Post("/query/text", h.QueryText)
	r.Post("/query/image", h.QueryImage)

	return r
}
