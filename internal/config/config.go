package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// Server
	Host        string `mapstructure:"HOST"`
	Port        string `mapstructure:"PORT"`
	Environment string `mapstructure:"ENVIRONMENT"`
	GinMode     string `mapstructure:"GIN_MODE"`

	// Database
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// Embedding provider (OpenAI compatible)
	EmbeddingAPIKey     string `mapstructure:"EMBEDDING_API_KEY"`
	EmbeddingBaseURL    string `mapstructure:"EMBEDDING_BASE_URL"`
	EmbeddingModel      string `mapstructure:"EMBEDDING_MODEL"`
	EmbeddingDimensions int    `mapstructure:"EMBEDDING_DIMENSIONS"`
	EmbeddingBatchSize  int    `mapstructure:"EMBEDDING_BATCH_SIZE"`
	EmbeddingWorkers    int    `mapstructure:"EMBEDDING_WORKERS"`
	EmbeddingMaxRetries int    `mapstructure:"EMBEDDING_MAX_RETRIES"`

	// Generator (OpenAI compatible chat API)
	GeneratorAPIKey  string `mapstructure:"GENERATOR_API_KEY"`
	GeneratorBaseURL string `mapstructure:"GENERATOR_BASE_URL"`
	GeneratorModel   string `mapstructure:"GENERATOR_MODEL"`

	// Ingestion
	ChunkSize        int `mapstructure:"CHUNK_SIZE"`
	ChunkOverlap     int `mapstructure:"CHUNK_OVERLAP"`
	MaxDocumentBytes int `mapstructure:"MAX_DOCUMENT_BYTES"`

	// Retrieval defaults. Single source of truth for every call site.
	DefaultTopK         int     `mapstructure:"DEFAULT_TOP_K"`
	SimilarityFloor     float64 `mapstructure:"SIMILARITY_FLOOR"`
	TierSearchTimeoutMS int     `mapstructure:"TIER_SEARCH_TIMEOUT_MS"`
}

func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("HOST", "0.0.0.0")
	viper.SetDefault("PORT", "8090")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("GIN_MODE", "debug")
	viper.SetDefault("DATABASE_URL", "postgres://localhost:5432/knowledge?sslmode=disable")
	viper.SetDefault("EMBEDDING_BASE_URL", "https://api.openai.com/v1")
	viper.SetDefault("EMBEDDING_MODEL", "text-embedding-3-small")
	viper.SetDefault("EMBEDDING_DIMENSIONS", 1024)
	viper.SetDefault("EMBEDDING_BATCH_SIZE", 16)
	viper.SetDefault("EMBEDDING_WORKERS", 4)
	viper.SetDefault("EMBEDDING_MAX_RETRIES", 3)
	viper.SetDefault("GENERATOR_BASE_URL", "https://api.openai.com/v1")
	viper.SetDefault("GENERATOR_MODEL", "gpt-4o-mini")
	viper.SetDefault("CHUNK_SIZE", 512)
	viper.SetDefault("CHUNK_OVERLAP", 50)
	viper.SetDefault("MAX_DOCUMENT_BYTES", 1<<20)
	viper.SetDefault("DEFAULT_TOP_K", 5)
	viper.SetDefault("SIMILARITY_FLOOR", 0.35)
	viper.SetDefault("TIER_SEARCH_TIMEOUT_MS", 800)

	_ = viper.ReadInConfig()

	for _, key := range []string{
		"HOST", "PORT", "ENVIRONMENT", "GIN_MODE", "DATABASE_URL",
		"EMBEDDING_API_KEY", "EMBEDDING_BASE_URL", "EMBEDDING_MODEL",
		"EMBEDDING_DIMENSIONS", "EMBEDDING_BATCH_SIZE", "EMBEDDING_WORKERS",
		"EMBEDDING_MAX_RETRIES", "GENERATOR_API_KEY", "GENERATOR_BASE_URL",
		"GENERATOR_MODEL", "CHUNK_SIZE", "CHUNK_OVERLAP", "MAX_DOCUMENT_BYTES",
		"DEFAULT_TOP_K", "SIMILARITY_FLOOR", "TIER_SEARCH_TIMEOUT_MS",
	} {
		if val := os.Getenv(key); val != "" {
			viper.Set(key, val)
		}
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) TierSearchTimeout() time.Duration {
	return time.Duration(c.TierSearchTimeoutMS) * time.Millisecond
}
