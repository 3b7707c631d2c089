package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Redis     RedisConfig
	LLM       LLMConfig
	Catalog   CatalogConfig
	Guardrail GuardrailConfig
	Memory    MemoryConfig
	NATS      NATSConfig
	CORS      CORSConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LLMConfig points at an OpenAI-compatible inference endpoint used by the
// planner, retriever, chatter and summary agents.
type LLMConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	EmbedModel string
	Timeout    time.Duration
}

// CatalogConfig covers both sides of the catalog retriever: the URL the
// assistant queries, and the search parameters of the catalog service itself.
type CatalogConfig struct {
	URL           string
	TopK          int
	Categories    []string
	SimThreshold  float64
	EmbeddingDim  int
	SeedCSV       string
	Timeout       time.Duration
	MigrationsDir string
}

type GuardrailConfig struct {
	URL           string
	Timeout       time.Duration
	FailOpen      bool
	UnsafeMessage string
}

type MemoryConfig struct {
	// ContextBudget is the maximum context length in characters; longer
	// contexts are condensed by the summary agent before persisting.
	ContextBudget int
	SessionTTL    time.Duration
}

type NATSConfig struct {
	URL string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		DB: DBConfig{
			Host:     k.String("db.host"),
			Port:     k.Int("db.port"),
			User:     k.String("db.user"),
			Password: k.String("db.password"),
			Name:     k.String("db.name"),
			SSLMode:  k.String("db.sslmode"),
			MaxConns: int32(k.Int("db.max.conns")),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		LLM: LLMConfig{
			BaseURL:    k.String("llm.base.url"),
			APIKey:     k.String("llm.api.key"),
			Model:      k.String("llm.model"),
			EmbedModel: k.String("llm.embed.model"),
		},
		Catalog: CatalogConfig{
			URL:           k.String("catalog.url"),
			TopK:          k.Int("catalog.top.k"),
			Categories:    splitList(k.String("catalog.categories")),
			SimThreshold:  k.Float64("catalog.sim.threshold"),
			EmbeddingDim:  k.Int("catalog.embedding.dim"),
			SeedCSV:       k.String("catalog.seed.csv"),
			MigrationsDir: k.String("catalog.migrations.dir"),
		},
		Guardrail: GuardrailConfig{
			URL:           k.String("guardrail.url"),
			FailOpen:      k.Bool("guardrail.failopen"),
			UnsafeMessage: k.String("guardrail.unsafe.message"),
		},
		Memory: MemoryConfig{
			ContextBudget: k.Int("memory.context.budget"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(k.String("cors.allowed.origins")),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "shopmate"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "shopmate"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "meta/llama-3.1-70b-instruct"
	}
	if cfg.LLM.EmbedModel == "" {
		cfg.LLM.EmbedModel = "nvidia/nv-embedqa-e5-v5"
	}
	if cfg.Catalog.URL == "" {
		cfg.Catalog.URL = "http://localhost:8081"
	}
	if cfg.Catalog.TopK == 0 {
		cfg.Catalog.TopK = 4
	}
	if len(cfg.Catalog.Categories) == 0 {
		cfg.Catalog.Categories = []string{
			"Dresses", "Tops", "Bottoms", "Shoes", "Accessories", "Outerwear",
		}
	}
	if cfg.Catalog.SimThreshold == 0 {
		cfg.Catalog.SimThreshold = 0.45
	}
	if cfg.Catalog.EmbeddingDim == 0 {
		cfg.Catalog.EmbeddingDim = 1024
	}
	if cfg.Catalog.MigrationsDir == "" {
		cfg.Catalog.MigrationsDir = "migrations"
	}
	if cfg.Guardrail.URL == "" {
		cfg.Guardrail.URL = "http://localhost:8082"
	}
	if cfg.Guardrail.UnsafeMessage == "" {
		cfg.Guardrail.UnsafeMessage = "I'm sorry, I can't help with that request. Is there something else I can help you shop for?"
	}
	if cfg.Memory.ContextBudget == 0 {
		cfg.Memory.ContextBudget = 4000
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	cfg.LLM.Timeout, err = parseDuration(k.String("llm.timeout"), 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("parsing llm timeout: %w", err)
	}
	cfg.Catalog.Timeout, err = parseDuration(k.String("catalog.timeout"), 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("parsing catalog timeout: %w", err)
	}
	cfg.Guardrail.Timeout, err = parseDuration(k.String("guardrail.timeout"), 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("parsing guardrail timeout: %w", err)
	}
	cfg.Memory.SessionTTL, err = parseDuration(k.String("memory.session.ttl"), 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("parsing memory session ttl: %w", err)
	}

	return cfg, nil
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
