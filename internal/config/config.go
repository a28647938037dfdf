package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Indexer kinds.
const (
	IndexerMemory   = "memory"
	IndexerHTTP     = "http"
	IndexerWeaviate = "weaviate"
)

type Config struct {
	Port string `mapstructure:"port"`

	// Auth
	APIKey string `mapstructure:"regingest_api_key"`

	// Storage
	DataDir   string `mapstructure:"data_dir"`
	ReportDir string `mapstructure:"report_dir"`

	// Worker pool
	WorkerCount  int `mapstructure:"worker_count"`
	MaxQueueSize int `mapstructure:"max_queue_size"`

	// Run behaviour
	UseCache               bool    `mapstructure:"use_cache"`
	Recursive              bool    `mapstructure:"recursive"`
	IngestObsolete         bool    `mapstructure:"ingest_obsolete"`
	LowConfidenceThreshold float64 `mapstructure:"low_confidence_threshold"`

	// Chunking
	ChunkTargetSize int `mapstructure:"chunk_target_size"`
	ChunkOverlap    int `mapstructure:"chunk_overlap"`
	ChunkMaxSize    int `mapstructure:"chunk_max_size"`
	ChunkMinSize    int `mapstructure:"chunk_min_size"`

	// Indexer sink
	Indexer           string  `mapstructure:"indexer"`
	IndexerURL        string  `mapstructure:"indexer_url"`
	IndexerAPIKey     string  `mapstructure:"indexer_api_key"`
	IndexerBatchSize  int     `mapstructure:"indexer_batch_size"`
	IndexerMaxTokens  int     `mapstructure:"indexer_max_tokens"`
	IndexerRatePerSec float64 `mapstructure:"indexer_rate_per_sec"`

	// Weaviate
	WeaviateHost   string `mapstructure:"weaviate_host"`
	WeaviateAPIKey string `mapstructure:"weaviate_api_key"`
	WeaviateClass  string `mapstructure:"weaviate_class"`

	// Versioning
	StaleAfter time.Duration `mapstructure:"stale_after"`

	// Run state
	RunTTL time.Duration `mapstructure:"run_ttl"`

	// PDF
	PDFFallbackPdftotext bool `mapstructure:"pdf_fallback_pdftotext"`

	// Watch mode
	WatchDebounce time.Duration `mapstructure:"watch_debounce"`
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("REGINGEST_API_KEY"),

		DataDir:   envOr("DATA_DIR", "./data"),
		ReportDir: os.Getenv("REPORT_DIR"),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 16),

		UseCache:               envBool("USE_CACHE", true),
		Recursive:              envBool("RECURSIVE", false),
		IngestObsolete:         envBool("INGEST_OBSOLETE", false),
		LowConfidenceThreshold: envFloat("LOW_CONFIDENCE_THRESHOLD", 0.3),

		ChunkTargetSize: envInt("CHUNK_TARGET_SIZE", 1000),
		ChunkOverlap:    envInt("CHUNK_OVERLAP", 200),
		ChunkMaxSize:    envInt("CHUNK_MAX_SIZE", 3000),
		ChunkMinSize:    envInt("CHUNK_MIN_SIZE", 100),

		Indexer:           envOr("INDEXER", IndexerMemory),
		IndexerURL:        os.Getenv("INDEXER_URL"),
		IndexerAPIKey:     os.Getenv("INDEXER_API_KEY"),
		IndexerBatchSize:  envInt("INDEXER_BATCH_SIZE", 10),
		IndexerMaxTokens:  envInt("INDEXER_MAX_TOKENS", 8000),
		IndexerRatePerSec: envFloat("INDEXER_RATE_PER_SEC", 0),

		WeaviateHost:   envOr("WEAVIATE_HOST", "localhost:8080"),
		WeaviateAPIKey: os.Getenv("WEAVIATE_API_KEY"),
		WeaviateClass:  envOr("WEAVIATE_CLASS", "RegulatoryChunk"),

		StaleAfter: envDuration("STALE_AFTER", 365*24*time.Hour),

		RunTTL: envDuration("RUN_TTL", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),

		WatchDebounce: envDuration("WATCH_DEBOUNCE", 2*time.Second),
	}
	cfg.applyDefaults()
	return cfg
}

// LoadFile loads the environment and then overlays any keys set in the
// YAML, TOML or JSON file at path. Keys use the snake_case names of the
// environment variables.
func LoadFile(path string) (Config, error) {
	cfg := Load()
	if path == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	// Unmarshal only touches fields present in the file.
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.Indexer = strings.ToLower(c.Indexer)
	if c.WorkerCount <= 0 {
		c.WorkerCount = 4
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = 16
	}
	if c.LowConfidenceThreshold <= 0 || c.LowConfidenceThreshold > 1 {
		c.LowConfidenceThreshold = 0.3
	}
	if c.ChunkTargetSize <= 0 {
		c.ChunkTargetSize = 1000
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = 200
	}
	if c.ChunkMaxSize <= 0 {
		c.ChunkMaxSize = 3000
	}
	if c.ChunkMinSize < 0 {
		c.ChunkMinSize = 100
	}
	if c.IndexerBatchSize <= 0 {
		c.IndexerBatchSize = 10
	}
	if c.IndexerMaxTokens < 0 {
		c.IndexerMaxTokens = 0
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 365 * 24 * time.Hour
	}
	if c.RunTTL <= 0 {
		c.RunTTL = 1 * time.Hour
	}
	if c.WatchDebounce <= 0 {
		c.WatchDebounce = 2 * time.Second
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
}

// Validate checks the settings the selected indexer needs. requireAPIKey is
// set by the HTTP server.
func (c Config) Validate(requireAPIKey bool) error {
	if requireAPIKey && c.APIKey == "" {
		return fmt.Errorf("REGINGEST_API_KEY is required")
	}
	switch c.Indexer {
	case IndexerMemory:
	case IndexerHTTP:
		if c.IndexerURL == "" {
			return fmt.Errorf("INDEXER_URL is required for the http indexer")
		}
	case IndexerWeaviate:
		if c.WeaviateHost == "" {
			return fmt.Errorf("WEAVIATE_HOST is required for the weaviate indexer")
		}
	default:
		return fmt.Errorf("unknown INDEXER %q (want memory, http or weaviate)", c.Indexer)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
