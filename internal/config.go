package internal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	LogLevel    string
	Port        uint16
	DatabaseUrl string
	HTTP        HTTPConfig
	Dataset     DatasetConfig
	Storage     StorageConfig
	Sentry      SentryConfig
	NATS        NATSConfig
}

// HTTPConfig tunes the API server's request handling.
type HTTPConfig struct {
	// CORSOrigins lists browser origins allowed to call the API. "*" allows any.
	CORSOrigins []string

	// RateLimitRPS is the per-client request rate. Zero disables rate limiting.
	RateLimitRPS   float64
	RateLimitBurst int

	// MaxBodyBytes caps POST bodies.
	MaxBodyBytes int64

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// DatasetConfig controls where address schemas come from and how the local
// copy is refreshed.
type DatasetConfig struct {
	// Source selects the store backing the formatter: "storage" or "postgres".
	Source string

	// URL is the remote dataset endpoint. The index lives at URL and each
	// country record at URL/<CODE>.
	URL string

	// Fallback is the code of the universal default record.
	Fallback string

	// Prefix is the object key prefix used by the storage store.
	Prefix string

	// CacheTTL bounds how long a loaded schema is served from memory.
	CacheTTL time.Duration

	// RefreshInterval runs the fetcher periodically. Zero disables it.
	RefreshInterval time.Duration

	// FetchConcurrency is the maximum number of parallel downloads.
	FetchConcurrency int

	// FetchTimeout bounds each HTTP request made by the fetcher.
	FetchTimeout time.Duration
}

// SentryConfig holds configuration for Sentry error tracking
type SentryConfig struct {
	DSN              string
	Enabled          bool
	Environment      string
	Release          string
	SampleRate       float64
	TracesSampleRate float64
	Debug            bool
}

// NATSConfig configures dataset refresh notifications. An empty URL
// disables publishing and subscribing.
type NATSConfig struct {
	URL     string
	Subject string
}

type StorageConfig struct {
	Provider      string // "local" or "r2"
	LocalPath     string
	LocalURL      string
	R2AccountID   string
	R2AccessKeyID string
	R2SecretKey   string
	R2BucketName  string
	R2PublicURL   string
	R2Endpoint    string
}

func NewConfig() (*Config, error) {
	// Try to load .env from current directory, then walk up to find it (max 2 levels)
	err := godotenv.Load()
	if err != nil {
		dir, _ := os.Getwd()
		found := false
		for i := 0; i < 2; i++ {
			dir = filepath.Join(dir, "..")
			if err := godotenv.Load(filepath.Join(dir, ".env")); err == nil {
				found = true
				break
			}
		}
		if !found {
			slog.Default().Warn("Warning: .env file not found, using environment variables and defaults")
		}
	}

	cfg := &Config{
		Env:         getEnv("ENV", "dev"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Port:        getEnvInt("PORT", 3000),
		DatabaseUrl: getEnv("DATABASE_URL", ""),
		HTTP: HTTPConfig{
			CORSOrigins:     getEnvList("CORS_ALLOWED_ORIGINS"),
			RateLimitRPS:    getEnvFloat("RATE_LIMIT_RPS", 20),
			RateLimitBurst:  int(getEnvInt("RATE_LIMIT_BURST", 40)),
			MaxBodyBytes:    getEnvInt64("MAX_BODY_BYTES", 64*1024),
			RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Dataset: DatasetConfig{
			Source:           getEnv("DATASET_SOURCE", "storage"),
			URL:              getEnv("DATASET_URL", "https://chromium-i18n.appspot.com/ssl-address/data"),
			Fallback:         getEnv("DATASET_FALLBACK", "ZZ"),
			Prefix:           getEnv("DATASET_PREFIX", "i18n"),
			CacheTTL:         getEnvDuration("DATASET_CACHE_TTL", 10*time.Minute),
			RefreshInterval:  getEnvDuration("DATASET_REFRESH_INTERVAL", 0),
			FetchConcurrency: int(getEnvInt("DATASET_FETCH_CONCURRENCY", 8)),
			FetchTimeout:     getEnvDuration("DATASET_FETCH_TIMEOUT", 30*time.Second),
		},
		Storage: StorageConfig{
			Provider:      getEnv("STORAGE_PROVIDER", "local"),
			LocalPath:     getEnv("LOCAL_STORAGE_PATH", "./data"),
			LocalURL:      getEnv("LOCAL_STORAGE_URL", ""),
			R2AccountID:   getEnv("R2_ACCOUNT_ID", ""),
			R2AccessKeyID: getEnv("R2_ACCESS_KEY_ID", ""),
			R2SecretKey:   getEnv("R2_SECRET_ACCESS_KEY", ""),
			R2BucketName:  getEnv("R2_BUCKET_NAME", ""),
			R2PublicURL:   getEnv("R2_PUBLIC_URL", ""),
			R2Endpoint:    getEnv("R2_ENDPOINT", ""),
		},
		Sentry: SentryConfig{
			DSN:              getEnv("SENTRY_DSN", ""),
			Enabled:          getEnvBool("SENTRY_ENABLED", false), // Disabled by default for development
			Environment:      getEnv("SENTRY_ENVIRONMENT", "development"),
			Release:          getEnv("SENTRY_RELEASE", ""),
			SampleRate:       getEnvFloat("SENTRY_SAMPLE_RATE", 1.0),
			TracesSampleRate: getEnvFloat("SENTRY_TRACES_SAMPLE_RATE", 0.0), // Disabled by default
			Debug:            getEnvBool("SENTRY_DEBUG", false),
		},
		NATS: NATSConfig{
			URL:     getEnv("NATS_URL", ""),
			Subject: getEnv("NATS_SUBJECT", "addrfmt.dataset.refreshed"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *Config) validate() error {
	// Validate env
	validEnv := cfg.Env == "dev" || cfg.Env == "prod"
	if !validEnv {
		slog.Default().Warn("Invalid environment. Using default: prod", slog.String("env", cfg.Env))
		cfg.Env = "prod"
	}

	// Validate log level
	validLevel := cfg.LogLevel == "info" || cfg.LogLevel == "debug" || cfg.LogLevel == "warn" || cfg.LogLevel == "error"
	if !validLevel {
		slog.Default().Warn("Invalid log level. Using default: info", slog.String("value", cfg.LogLevel))
		cfg.LogLevel = "info"
	}

	switch cfg.Dataset.Source {
	case "storage":
	case "postgres":
		if cfg.DatabaseUrl == "" {
			return fmt.Errorf("DATABASE_URL required when DATASET_SOURCE is postgres")
		}
	default:
		return fmt.Errorf("DATASET_SOURCE must be storage or postgres, got %q", cfg.Dataset.Source)
	}

	if cfg.HTTP.RateLimitRPS < 0 {
		cfg.HTTP.RateLimitRPS = 0
	}

	if cfg.Dataset.FetchConcurrency < 1 {
		cfg.Dataset.FetchConcurrency = 1
	}

	// Validate R2 configuration in production
	if cfg.Env == "prod" && cfg.Storage.Provider == "r2" {
		if cfg.Storage.R2AccountID == "" && cfg.Storage.R2Endpoint == "" {
			return fmt.Errorf("R2_ACCOUNT_ID required when using R2 storage in production")
		}
		if cfg.Storage.R2AccessKeyID == "" || cfg.Storage.R2SecretKey == "" {
			return fmt.Errorf("R2 credentials required when using R2 storage in production")
		}
		if cfg.Storage.R2BucketName == "" {
			return fmt.Errorf("R2_BUCKET_NAME required when using R2 storage in production")
		}
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue uint16) uint16 {
	if value := os.Getenv(key); value != "" {
		var intValue uint16
		if _, err := fmt.Sscanf(value, "%d", &intValue); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		var intValue int64
		if _, err := fmt.Sscanf(value, "%d", &intValue); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var floatValue float64
		if _, err := fmt.Sscanf(value, "%f", &floatValue); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		slog.Default().Warn("Invalid duration. Using default", slog.String("key", key), slog.String("value", value))
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
