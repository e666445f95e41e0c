package bootstrap_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/addrfmt/internal"
	"github.com/dukerupert/addrfmt/internal/bootstrap"
	"github.com/dukerupert/addrfmt/internal/dataset"
	"github.com/dukerupert/addrfmt/internal/events"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func localConfig(t *testing.T) *internal.Config {
	return &internal.Config{
		Dataset: internal.DatasetConfig{
			Source:           "storage",
			URL:              "http://127.0.0.1:1/data",
			Fallback:         "ZZ",
			Prefix:           "i18n",
			CacheTTL:         time.Minute,
			FetchConcurrency: 2,
			FetchTimeout:     time.Second,
		},
		Storage: internal.StorageConfig{
			Provider:  "local",
			LocalPath: t.TempDir(),
		},
	}
}

func TestOpenDataset_LocalStorage(t *testing.T) {
	ctx := context.Background()
	d, err := bootstrap.OpenDataset(ctx, localConfig(t), nil, quietLogger())
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, "storage", d.Source)

	_, err = d.Store.PutSchema(ctx, "US", []byte(`{"key":"US","fmt":"%N%n%A"}`))
	require.NoError(t, err)

	schema, err := d.Provider.LoadSchema(ctx, "US")
	require.NoError(t, err)
	assert.Equal(t, "%N%n%A", schema["fmt"])

	_, err = d.Provider.LoadFallbackSchema(ctx)
	assert.ErrorIs(t, err, dataset.ErrNotFound)
}

func TestOpenDataset_UnknownSource(t *testing.T) {
	cfg := localConfig(t)
	cfg.Dataset.Source = "redis"

	_, err := bootstrap.OpenDataset(context.Background(), cfg, nil, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis")
}

func TestDataset_NewFetcher(t *testing.T) {
	cfg := localConfig(t)
	d, err := bootstrap.OpenDataset(context.Background(), cfg, nil, quietLogger())
	require.NoError(t, err)

	f, err := d.NewFetcher(cfg.Dataset, nil, quietLogger())
	require.NoError(t, err)
	assert.NotNil(t, f)

	cfg.Dataset.URL = ""
	_, err = d.NewFetcher(cfg.Dataset, nil, quietLogger())
	assert.ErrorIs(t, err, dataset.ErrNoBaseURL)
}

func TestConnectEvents_Disabled(t *testing.T) {
	bus, pub, err := bootstrap.ConnectEvents(internal.NATSConfig{}, quietLogger())
	require.NoError(t, err)
	assert.Nil(t, bus)
	assert.IsType(t, events.NopPublisher{}, pub)
}
