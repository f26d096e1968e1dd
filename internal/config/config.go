package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalid         = errors.New("invalid configuration")
)

const (
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
)

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"specwise"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"specwise"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	NSQLookupd    string        `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost      string        `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP      string        `envconfig:"NSQD_HTTP" default:"nsqd:4151"`
	NSQMsgTimeout time.Duration `envconfig:"NSQ_MSG_TIMEOUT" default:"10m"`

	EnableAPI           bool   `envconfig:"ENABLE_API" default:"true"`
	EnableProcessWorker bool   `envconfig:"ENABLE_PROCESS_WORKER" default:"true"`
	EnableIndexWorker   bool   `envconfig:"ENABLE_INDEX_WORKER" default:"false"`
	WorkerConcurrency   int    `envconfig:"WORKER_CONCURRENCY" default:"4"`
	MigrationPath       string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Completion
	CompletionProvider   string  `envconfig:"COMPLETION_PROVIDER" default:"gemini"`
	CompletionRPM        int     `envconfig:"COMPLETION_RPM" default:"60"`
	GeminiAPIKey         string  `envconfig:"GEMINI_API_KEY"`
	GeminiModel          string  `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`
	GeminiEmbeddingModel string  `envconfig:"GEMINI_EMBEDDING_MODEL" default:"gemini-embedding-001"`
	OpenRouterAPIKey     string  `envconfig:"OPENROUTER_API_KEY"`
	OpenRouterBaseURL    string  `envconfig:"OPENROUTER_BASE_URL" default:"https://openrouter.ai/api/v1"`
	OpenRouterModel      string  `envconfig:"OPENROUTER_MODEL" default:"openai/gpt-4o-mini"`
	Temperature          float64 `envconfig:"COMPLETION_TEMPERATURE" default:"0"`

	// Pipeline
	WindowSize          int     `envconfig:"WINDOW_SIZE" default:"2"`
	ExtractMaxRetries   int     `envconfig:"EXTRACT_MAX_RETRIES" default:"3"`
	ExtractConcurrency  int     `envconfig:"EXTRACT_CONCURRENCY" default:"4"`
	ConfidenceThreshold float64 `envconfig:"CONFIDENCE_THRESHOLD" default:"0.5"`
	ReferencePolicy     string  `envconfig:"REFERENCE_POLICY" default:"same_parent_first"`
	CatalogPath         string  `envconfig:"CATALOG_PATH"`

	// Search
	SearchAlpha  float32 `envconfig:"SEARCH_ALPHA" default:"0.5"`
	SearchTopK   int     `envconfig:"SEARCH_TOP_K" default:"10"`
	QueryLogPath string  `envconfig:"QUERY_LOG_PATH"`

	RerankProvider string `envconfig:"RERANK_PROVIDER"`
	RerankAPIKey   string `envconfig:"RERANK_API_KEY"`
	RerankModel    string `envconfig:"RERANK_MODEL"`

	// Maintenance
	StuckJobSweep   string        `envconfig:"STUCK_JOB_SWEEP" default:"@every 5m"`
	StuckJobTimeout time.Duration `envconfig:"STUCK_JOB_TIMEOUT" default:"2h"`

	// Server
	ServerPort int    `envconfig:"SERVER_PORT" default:"8081"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Ignore errors, as env vars might be set in the shell
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	_ = godotenv.Load(filepath.Join(cwd, "../../.env"))

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	switch c.CompletionProvider {
	case ProviderGemini, ProviderOpenRouter, "":
	default:
		return fmt.Errorf("%w: COMPLETION_PROVIDER %q", ErrInvalid, c.CompletionProvider)
	}
	if c.WindowSize < 1 {
		return fmt.Errorf("%w: WINDOW_SIZE must be positive", ErrInvalid)
	}
	if c.ExtractMaxRetries < 0 {
		return fmt.Errorf("%w: EXTRACT_MAX_RETRIES must not be negative", ErrInvalid)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: CONFIDENCE_THRESHOLD must be within [0,1]", ErrInvalid)
	}
	switch c.RerankProvider {
	case "", "jina", "cohere":
	default:
		return fmt.Errorf("%w: RERANK_PROVIDER %q", ErrInvalid, c.RerankProvider)
	}
	if c.SearchAlpha < 0 || c.SearchAlpha > 1 {
		return fmt.Errorf("%w: SEARCH_ALPHA must be within [0,1]", ErrInvalid)
	}
	return nil
}
