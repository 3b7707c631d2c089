package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1–65535, got %d", c.Server.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1–65535, got %d", c.Redis.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1–65535, got %d", c.DB.Port))
	}

	for name, u := range map[string]string{
		"CATALOG_URL":   c.Catalog.URL,
		"GUARDRAIL_URL": c.Guardrail.URL,
	} {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			errs = append(errs, fmt.Sprintf("%s must start with http:// or https://, got %q", name, u))
		}
	}
	if c.LLM.BaseURL != "" && !strings.HasPrefix(c.LLM.BaseURL, "http") {
		errs = append(errs, fmt.Sprintf("LLM_BASE_URL must start with http:// or https://, got %q", c.LLM.BaseURL))
	}

	if c.Memory.ContextBudget <= 0 {
		errs = append(errs, "MEMORY_CONTEXT_BUDGET must be positive")
	}
	if c.Catalog.TopK <= 0 {
		errs = append(errs, "CATALOG_TOP_K must be positive")
	}
	if c.Catalog.SimThreshold < 0 || c.Catalog.SimThreshold > 1 {
		errs = append(errs, "CATALOG_SIM_THRESHOLD must be between 0 and 1")
	}

	// API key: warn only, local inference endpoints may not require one
	if c.LLM.APIKey == "" {
		slog.Warn("LLM_API_KEY is empty — inference endpoint must accept unauthenticated requests")
	}

	if c.Guardrail.FailOpen {
		slog.Warn("GUARDRAIL_FAILOPEN is set — unreachable guardrails will let queries through unchecked")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  - " + strings.Join(errs, "\n  - "))
	}
	return nil
}
