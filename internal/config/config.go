package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Debug       bool   `envconfig:"DEBUG" default:"false"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`

	// Empty keeps the index in memory for the life of the process.
	DatabaseURL string `envconfig:"DATABASE_URL"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"10"`

	S3Endpoint       string `envconfig:"S3_ENDPOINT"`
	S3AccessKey      string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey      string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket         string `envconfig:"S3_BUCKET" default:"tutorai-index"`
	S3Region         string `envconfig:"S3_REGION" default:"us-east-1"`
	S3SnapshotPrefix string `envconfig:"S3_SNAPSHOT_PREFIX" default:"snapshots"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL       string `envconfig:"OPENAI_BASE_URL"`
	ChatModel           string `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`

	WikiAPIURL            string  `envconfig:"WIKI_API_URL" default:"https://es.wikipedia.org/w/api.php"`
	WikiRequestsPerSecond float64 `envconfig:"WIKI_REQUESTS_PER_SECOND" default:"2"`

	MaxChunkTokens   int      `envconfig:"MAX_CHUNK_TOKENS" default:"500"`
	MinChunkTokens   int      `envconfig:"MIN_CHUNK_TOKENS" default:"400"`
	AnnealIterations int      `envconfig:"ANNEAL_ITERATIONS" default:"5000"`
	CoolingRate      float64  `envconfig:"COOLING_RATE" default:"0.0002"`
	ExcludedSections []string `envconfig:"EXCLUDED_SECTIONS"`

	TopK           int     `envconfig:"TOP_K" default:"5"`
	CategoryWeight float64 `envconfig:"CATEGORY_WEIGHT" default:"0.3"`
	MaxEnrichments int     `envconfig:"MAX_ENRICHMENTS" default:"1"`
	LadderFile     string  `envconfig:"LADDER_FILE"`

	// MaxRetrievalAttempts of zero means the ladder length plus one.
	MaxRetrievalAttempts int `envconfig:"MAX_RETRIEVAL_ATTEMPTS" default:"0"`

	// Static bearer token for the HTTP API. Empty disables auth.
	APIToken           string        `envconfig:"API_TOKEN"`
	WorkerPollInterval time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"10s"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("TUTOR", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	switch {
	case c.MaxChunkTokens <= 0:
		return fmt.Errorf("invalid config: MAX_CHUNK_TOKENS must be positive, got %d", c.MaxChunkTokens)
	case c.MinChunkTokens < 0 || c.MinChunkTokens > c.MaxChunkTokens:
		return fmt.Errorf("invalid config: MIN_CHUNK_TOKENS must be within [0, %d], got %d", c.MaxChunkTokens, c.MinChunkTokens)
	case c.TopK <= 0:
		return fmt.Errorf("invalid config: TOP_K must be positive, got %d", c.TopK)
	case c.CategoryWeight < 0 || c.CategoryWeight > 1:
		return fmt.Errorf("invalid config: CATEGORY_WEIGHT must be within [0, 1], got %g", c.CategoryWeight)
	case c.MaxEnrichments < 0:
		return fmt.Errorf("invalid config: MAX_ENRICHMENTS cannot be negative, got %d", c.MaxEnrichments)
	case c.MaxRetrievalAttempts < 0:
		return fmt.Errorf("invalid config: MAX_RETRIEVAL_ATTEMPTS cannot be negative, got %d", c.MaxRetrievalAttempts)
	case c.CoolingRate <= 0 || c.CoolingRate >= 1:
		return fmt.Errorf("invalid config: COOLING_RATE must be within (0, 1), got %g", c.CoolingRate)
	case c.WikiRequestsPerSecond <= 0:
		return fmt.Errorf("invalid config: WIKI_REQUESTS_PER_SECOND must be positive, got %g", c.WikiRequestsPerSecond)
	case c.WorkerPollInterval <= 0:
		return fmt.Errorf("invalid config: WORKER_POLL_INTERVAL must be positive, got %s", c.WorkerPollInterval)
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}
