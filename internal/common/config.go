package common

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Log      LogConfig
	Database DatabaseConfig
	Server   ServerConfig
	Raster   RasterConfig
	OCR      OCRConfig
	LLM      LLMConfig
	Pipeline PipelineConfig
	Merge    MergeConfig
	Queue    QueueConfig
	Ingest   IngestConfig
}

type LogConfig struct {
	Format string // json | text
	Level  string // debug | info | warn | error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // postgres | sqlite
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string
}

type RasterConfig struct {
	Pdftoppm string
	Scale    float64
	MaxPages int
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Engine           string // tesseract | gosseract | documentai
	Tesseract        string
	Lang             string
	FallbackLangs    []string
	TessdataDir      string
	PSM              int
	OEM              int
	AcceptConfidence float64

	DocAIProjectID   string
	DocAILocation    string
	DocAIProcessorID string
	DocAICredentials string
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider     string // openai | ollama
	Model        string
	APIKey       string
	BaseURL      string
	OllamaURL    string
	OllamaModel  string
	Timeout      time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
}

type PipelineConfig struct {
	Concurrency        int
	RecognitionTimeout time.Duration
	ParseTimeout       time.Duration
	MinTextLength      int
}

type MergeConfig struct {
	PriceWeight       int
	DescriptionWeight int
}

type QueueConfig struct {
	RedisURL   string
	Name       string
	Workers    int
	Size       int
	JobTimeout time.Duration
	MaxRetry   int
}

type IngestConfig struct {
	WatchDirs      []string
	WatchDebounce  time.Duration
	SkipHidden     bool
	ProviderPrefix string
	ExportDir      string
}

// LoadConfig loads configuration from environment variables. A .env file
// (or TARIFF_ENV_FILE) is read first when present; real env vars win.
func LoadConfig() *Config {
	loadDotEnv()
	return &Config{
		Log: LogConfig{
			Format: getEnv("LOG_FORMAT", "json"),
			Level:  getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", "postgres"),
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":8080"),
		},
		Raster: RasterConfig{
			Pdftoppm: getEnv("PDFTOPPM", "pdftoppm"),
			Scale:    getEnvAsFloat64("RASTER_SCALE", 3.0),
			MaxPages: getEnvAsInt("RASTER_MAX_PAGES", 0),
		},
		OCR: OCRConfig{
			Engine:           getEnv("OCR_ENGINE", "tesseract"),
			Tesseract:        getEnv("TESSERACT", "tesseract"),
			Lang:             getEnv("OCR_LANG", "por"),
			FallbackLangs:    getEnvAsList("OCR_FALLBACK_LANGS", []string{"eng"}),
			TessdataDir:      getEnv("TESSDATA_PREFIX", ""),
			PSM:              getEnvAsInt("OCR_PSM", 6),
			OEM:              getEnvAsInt("OCR_OEM", 0),
			AcceptConfidence: getEnvAsFloat64("OCR_ACCEPT_CONFIDENCE", 85),
			DocAIProjectID:   getEnv("DOCAI_PROJECT_ID", ""),
			DocAILocation:    getEnv("DOCAI_LOCATION", "us"),
			DocAIProcessorID: getEnv("DOCAI_PROCESSOR_ID", ""),
			DocAICredentials: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		},
		LLM: LLMConfig{
			Provider:     getEnv("LLM_PROVIDER", "openai"),
			Model:        getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:       getEnv("OPENAI_API_KEY", ""),
			BaseURL:      getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			OllamaURL:    getEnv("OLLAMA_URL", "http://localhost:11434"),
			OllamaModel:  getEnv("OLLAMA_MODEL", "llama3.1"),
			Timeout:      getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
			MaxAttempts:  getEnvAsInt("LLM_MAX_ATTEMPTS", 3),
			RetryBackoff: getEnvAsDuration("LLM_RETRY_BACKOFF", 500*time.Millisecond),
		},
		Pipeline: PipelineConfig{
			Concurrency:        getEnvAsInt("PIPELINE_CONCURRENCY", 4),
			RecognitionTimeout: getEnvAsDuration("PIPELINE_RECOGNITION_TIMEOUT", 2*time.Minute),
			ParseTimeout:       getEnvAsDuration("PIPELINE_PARSE_TIMEOUT", 90*time.Second),
			MinTextLength:      getEnvAsInt("MIN_TEXT_LENGTH", 20),
		},
		Merge: MergeConfig{
			PriceWeight:       getEnvAsInt("MERGE_PRICE_WEIGHT", 1000),
			DescriptionWeight: getEnvAsInt("MERGE_DESCRIPTION_WEIGHT", 1),
		},
		Queue: QueueConfig{
			RedisURL:   getEnv("REDIS_URL", ""),
			Name:       getEnv("QUEUE_NAME", "catalog"),
			Workers:    getEnvAsInt("QUEUE_WORKERS", 2),
			Size:       getEnvAsInt("QUEUE_SIZE", 64),
			JobTimeout: getEnvAsDuration("QUEUE_JOB_TIMEOUT", 30*time.Minute),
			MaxRetry:   getEnvAsInt("QUEUE_MAX_RETRY", 3),
		},
		Ingest: IngestConfig{
			WatchDirs:      getEnvAsList("WATCH_DIRS", nil),
			WatchDebounce:  getEnvAsDuration("WATCH_DEBOUNCE", 2*time.Second),
			SkipHidden:     getEnvAsBool("SKIP_HIDDEN", true),
			ProviderPrefix: getEnv("PROVIDER_PREFIX", ""),
			ExportDir:      getEnv("EXPORT_DIR", ""),
		},
	}
}

func loadDotEnv() {
	path := getEnv("TARIFF_ENV_FILE", ".env")
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("config.dotenv_load_failed", "path", path, "error", err)
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated value; an explicit empty list is
// written as "-".
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if value == "-" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the settings every binary needs. Storage and queue
// settings are checked by the binaries that use them.
func (c *Config) Validate() error {
	switch c.OCR.Engine {
	case "tesseract", "gosseract":
	case "documentai":
		if c.OCR.DocAIProjectID == "" || c.OCR.DocAIProcessorID == "" {
			return NewAppError("CONFIG_ERROR", "DOCAI_PROJECT_ID and DOCAI_PROCESSOR_ID are required for OCR_ENGINE=documentai", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", "OCR_ENGINE must be one of tesseract|gosseract|documentai", ErrInvalidInput)
	}
	switch c.LLM.Provider {
	case "openai":
		if c.LLM.APIKey == "" {
			return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
		}
	case "ollama":
	default:
		return NewAppError("CONFIG_ERROR", "LLM_PROVIDER must be one of openai|ollama", ErrInvalidInput)
	}
	if c.Raster.Scale <= 0 {
		return NewAppError("CONFIG_ERROR", "RASTER_SCALE must be positive", ErrInvalidInput)
	}
	if c.Pipeline.Concurrency <= 0 {
		return NewAppError("CONFIG_ERROR", "PIPELINE_CONCURRENCY must be positive", ErrInvalidInput)
	}
	if c.Merge.PriceWeight < 0 || c.Merge.DescriptionWeight < 0 {
		return NewAppError("CONFIG_ERROR", "merge weights must not be negative", ErrInvalidInput)
	}
	return nil
}

// ValidateDatabase checks the storage settings.
func (c *Config) ValidateDatabase() error {
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return NewAppError("CONFIG_ERROR", "DB_DRIVER must be postgres or sqlite", ErrInvalidInput)
	}
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	return nil
}

// ValidateQueue checks the durable queue settings.
func (c *Config) ValidateQueue() error {
	if c.Queue.RedisURL == "" {
		return NewAppError("CONFIG_ERROR", "REDIS_URL is required", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrInvalidInput)
	}
	return nil
}
