package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	t.Setenv("DATASET_SOURCE", "")
	t.Setenv("DATASET_URL", "")
	t.Setenv("DATASET_CACHE_TTL", "")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "storage", cfg.Dataset.Source)
	assert.Equal(t, "https://chromium-i18n.appspot.com/ssl-address/data", cfg.Dataset.URL)
	assert.Equal(t, "ZZ", cfg.Dataset.Fallback)
	assert.Equal(t, 10*time.Minute, cfg.Dataset.CacheTTL)
}

func TestNewConfig_Overrides(t *testing.T) {
	t.Setenv("ENV", "prod")
	t.Setenv("LOG_LEVEL", "verbose")
	t.Setenv("DATASET_CACHE_TTL", "90s")
	t.Setenv("DATASET_REFRESH_INTERVAL", "not-a-duration")
	t.Setenv("DATASET_FETCH_CONCURRENCY", "0")
	t.Setenv("NATS_URL", "nats://localhost:4222")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, "info", cfg.LogLevel, "invalid level falls back")
	assert.Equal(t, 90*time.Second, cfg.Dataset.CacheTTL)
	assert.Equal(t, time.Duration(0), cfg.Dataset.RefreshInterval, "invalid duration falls back")
	assert.Equal(t, 1, cfg.Dataset.FetchConcurrency)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
}

func TestNewConfig_PostgresRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATASET_SOURCE", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := NewConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestNewConfig_UnknownSource(t *testing.T) {
	t.Setenv("DATASET_SOURCE", "redis")

	_, err := NewConfig()
	require.Error(t, err)
}

func TestNewConfig_R2InProduction(t *testing.T) {
	t.Setenv("ENV", "prod")
	t.Setenv("STORAGE_PROVIDER", "r2")
	t.Setenv("R2_ACCOUNT_ID", "acct")
	t.Setenv("R2_ACCESS_KEY_ID", "")
	t.Setenv("R2_SECRET_ACCESS_KEY", "")

	_, err := NewConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials")
}

func TestNewConfig_HTTP(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("RATE_LIMIT_RPS", "-3")
	t.Setenv("MAX_BODY_BYTES", "131072")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.CORSOrigins)
	assert.Equal(t, 0.0, cfg.HTTP.RateLimitRPS, "negative rate disables limiting")
	assert.Equal(t, int64(131072), cfg.HTTP.MaxBodyBytes)
	assert.Equal(t, 15*time.Second, cfg.HTTP.RequestTimeout)
}
