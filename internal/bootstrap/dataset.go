// Package bootstrap wires the dataset stack from configuration.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dukerupert/addrfmt/internal"
	"github.com/dukerupert/addrfmt/internal/dataset"
	"github.com/dukerupert/addrfmt/internal/events"
	"github.com/dukerupert/addrfmt/internal/storage"
	"github.com/dukerupert/addrfmt/internal/telemetry"
)

// Dataset is the configured dataset stack: the backing store that refreshes
// write to, and the cached provider that formatters read through.
type Dataset struct {
	Store    dataset.Store
	Provider *dataset.CachedProvider
	Source   string

	db *sql.DB
}

// OpenDataset opens the store selected by DATASET_SOURCE. For postgres it
// also runs pending migrations. metrics may be nil.
func OpenDataset(ctx context.Context, cfg *internal.Config, metrics *telemetry.BusinessMetrics, logger *slog.Logger) (*Dataset, error) {
	d := &Dataset{Source: cfg.Dataset.Source}

	switch cfg.Dataset.Source {
	case "storage":
		s, err := storage.NewStorage(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("storage initialization failed: %w", err)
		}
		d.Store = dataset.NewStorageStore(s, cfg.Dataset.Prefix, cfg.Dataset.Fallback)
		logger.Info("Dataset store ready", "source", "storage", "provider", cfg.Storage.Provider, "prefix", cfg.Dataset.Prefix)

	case "postgres":
		db, err := sql.Open("pgx", cfg.DatabaseUrl)
		if err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("database ping failed: %w", err)
		}

		logger.Info("Running database migrations...")
		if err := internal.RunMigrations(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migration failed: %w", err)
		}

		d.db = db
		d.Store = dataset.NewPostgresStore(db, cfg.Dataset.Fallback)
		logger.Info("Dataset store ready", "source", "postgres")

	default:
		return nil, dataset.ErrUnknownSource(cfg.Dataset.Source)
	}

	d.Provider = dataset.NewCachedProvider(d.Store, cfg.Dataset.CacheTTL, metrics)
	return d, nil
}

// NewFetcher builds a fetcher that refreshes this dataset's store.
func (d *Dataset) NewFetcher(cfg internal.DatasetConfig, metrics *telemetry.BusinessMetrics, logger *slog.Logger) (*dataset.Fetcher, error) {
	return dataset.NewFetcher(dataset.FetcherConfig{
		BaseURL:     cfg.URL,
		Fallback:    cfg.Fallback,
		Concurrency: cfg.FetchConcurrency,
		Client:      telemetry.NewHTTPClient(cfg.FetchTimeout),
		Logger:      logger,
		Metrics:     metrics,
	}, d.Store)
}

// Close releases the database connection, if any.
func (d *Dataset) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

// ConnectEvents connects to NATS when a URL is configured. It returns a nil
// bus and a no-op publisher otherwise.
func ConnectEvents(cfg internal.NATSConfig, logger *slog.Logger) (*events.Bus, events.Publisher, error) {
	if cfg.URL == "" {
		logger.Info("NATS disabled (NATS_URL not set)")
		return nil, events.NopPublisher{}, nil
	}

	bus, err := events.Connect(cfg.URL, cfg.Subject, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connection failed: %w", err)
	}
	return bus, bus, nil
}
