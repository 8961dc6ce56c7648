package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIPort  string `yaml:"api_port"`
	LogLevel string `yaml:"log_level"`

	GeminiAPIKey      string `yaml:"gemini_api_key"`
	GeminiBaseURL     string `yaml:"gemini_base_url"`
	GeminiGenModel    string `yaml:"gemini_gen_model"`
	GeminiEmbedModel  string `yaml:"gemini_embed_model"`
	GeminiVisionModel string `yaml:"gemini_vision_model"`
	EmbeddingDim      int    `yaml:"embedding_dim"`

	QdrantURL        string `yaml:"qdrant_url"`
	QdrantCollection string `yaml:"qdrant_collection"`

	StoragePath string `yaml:"storage_path"`

	// Optional: empty disables the ingest audit log.
	PostgresDSN string `yaml:"postgres_dsn"`
	// Optional: empty disables event publishing.
	NATSURL string `yaml:"nats_url"`

	ChunkSize          int `yaml:"chunk_size"`
	ChunkOverlap       int `yaml:"chunk_overlap"`
	DefaultK           int `yaml:"default_k"`
	SummaryK           int `yaml:"summary_k"`
	ContextBudgetChars int `yaml:"context_budget_chars"`
	MaxUploadMB        int `yaml:"max_upload_mb"`

	APIRateLimitRPS   float64 `yaml:"api_rate_limit_rps"`
	APIRateLimitBurst int     `yaml:"api_rate_limit_burst"`
	APIMaxConcurrent  int     `yaml:"api_max_concurrent"`
	APIMaxQueueWaitMS int     `yaml:"api_max_queue_wait_ms"`
}

// Load reads the environment, then overlays the YAML file named by
// CONFIG_FILE when one is set. File values win over env values.
func Load() (Config, error) {
	cfg := Config{
		APIPort:  env("API_PORT", "8080"),
		LogLevel: env("LOG_LEVEL", "info"),

		GeminiAPIKey:      env("GEMINI_API_KEY", ""),
		GeminiBaseURL:     env("GEMINI_BASE_URL", ""),
		GeminiGenModel:    env("GEMINI_GEN_MODEL", "gemini-2.0-flash"),
		GeminiEmbedModel:  env("GEMINI_EMBED_MODEL", "text-embedding-004"),
		GeminiVisionModel: env("GEMINI_VISION_MODEL", "gemini-2.0-flash"),
		EmbeddingDim:      envInt("EMBEDDING_DIM", 768),

		QdrantURL:        env("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection: env("QDRANT_COLLECTION", "multimodal_rag"),

		StoragePath: env("STORAGE_PATH", "./data/uploads"),

		PostgresDSN: env("POSTGRES_DSN", ""),
		NATSURL:     env("NATS_URL", ""),

		ChunkSize:          envInt("CHUNK_SIZE", 1000),
		ChunkOverlap:       envInt("CHUNK_OVERLAP", 200),
		DefaultK:           envInt("DEFAULT_K", 5),
		SummaryK:           envInt("SUMMARY_K", 10),
		ContextBudgetChars: envInt("CONTEXT_BUDGET_CHARS", 12000),
		MaxUploadMB:        envInt("MAX_UPLOAD_MB", 50),

		APIRateLimitRPS:   envFloat("API_RATE_LIMIT_RPS", 0),
		APIRateLimitBurst: envInt("API_RATE_LIMIT_BURST", 0),
		APIMaxConcurrent:  envInt("API_MAX_CONCURRENT", 0),
		APIMaxQueueWaitMS: envInt("API_MAX_QUEUE_WAIT_MS", 2000),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk_overlap must be in [0, chunk_size), got %d with chunk_size %d", c.ChunkOverlap, c.ChunkSize)
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("embedding_dim must be positive, got %d", c.EmbeddingDim)
	}
	if c.DefaultK <= 0 || c.SummaryK <= 0 {
		return fmt.Errorf("default_k and summary_k must be positive, got %d and %d", c.DefaultK, c.SummaryK)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb must be positive, got %d", c.MaxUploadMB)
	}
	return nil
}

func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func env(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
