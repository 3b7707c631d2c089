package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Redis.Host)
	assert.Equal(t, 4, cfg.Catalog.TopK)
	assert.InDelta(t, 0.45, cfg.Catalog.SimThreshold, 0.0001)
	assert.Equal(t, 1024, cfg.Catalog.EmbeddingDim)
	assert.Equal(t, 4000, cfg.Memory.ContextBudget)
	assert.Equal(t, 24*time.Hour, cfg.Memory.SessionTTL)
	assert.False(t, cfg.Guardrail.FailOpen)
	assert.NotEmpty(t, cfg.Guardrail.UnsafeMessage)
	assert.NotEmpty(t, cfg.Catalog.Categories)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("CATALOG_TOP_K", "8")
	t.Setenv("CATALOG_CATEGORIES", "Dresses, Shoes")
	t.Setenv("GUARDRAIL_FAILOPEN", "true")
	t.Setenv("MEMORY_SESSION_TTL", "2h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Catalog.TopK)
	assert.Equal(t, []string{"Dresses", "Shoes"}, cfg.Catalog.Categories)
	assert.True(t, cfg.Guardrail.FailOpen)
	assert.Equal(t, 2*time.Hour, cfg.Memory.SessionTTL)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("LLM_TIMEOUT", "soon")
	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load()
		require.NoError(t, err)
		return cfg
	}

	t.Run("defaults pass", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("bad port", func(t *testing.T) {
		cfg := valid()
		cfg.Server.Port = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad catalog url", func(t *testing.T) {
		cfg := valid()
		cfg.Catalog.URL = "localhost:8081"
		assert.Error(t, cfg.Validate())
	})

	t.Run("collects multiple errors", func(t *testing.T) {
		cfg := valid()
		cfg.Server.Port = -1
		cfg.Catalog.TopK = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SERVER_PORT")
		assert.Contains(t, err.Error(), "CATALOG_TOP_K")
	})
}
