package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/addrfmt/internal/dataset"
	"github.com/dukerupert/addrfmt/internal/events"
	"github.com/dukerupert/addrfmt/internal/telemetry"
)

// Refresher runs one dataset refresh. *dataset.Fetcher satisfies it.
type Refresher interface {
	Fetch(ctx context.Context, progress func(dataset.Progress)) (*dataset.FetchResult, error)
}

// Invalidator drops cached schemas. *dataset.CachedProvider satisfies it.
type Invalidator interface {
	Invalidate()
}

// Config holds worker configuration
type Config struct {
	// WorkerID uniquely identifies this worker instance
	WorkerID string

	// Interval is how often the dataset is refreshed
	Interval time.Duration

	// Timeout bounds a single refresh run
	Timeout time.Duration

	// Source names the store being refreshed in published events
	Source string
}

// RefreshWorker refreshes the dataset on a fixed interval. A tick that
// arrives while a run is still in flight is skipped.
type RefreshWorker struct {
	config    Config
	refresher Refresher
	cache     Invalidator
	publisher events.Publisher
	logger    *slog.Logger

	wg sync.WaitGroup
}

// NewRefreshWorker creates a refresh worker. cache and publisher may be nil.
func NewRefreshWorker(
	refresher Refresher,
	cache Invalidator,
	publisher events.Publisher,
	config Config,
	logger *slog.Logger,
) *RefreshWorker {
	// Set defaults
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("refresh-%s", uuid.New().String()[:8])
	}
	if config.Interval == 0 {
		config.Interval = 24 * time.Hour
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Minute
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	return &RefreshWorker{
		config:    config,
		refresher: refresher,
		cache:     cache,
		publisher: publisher,
		logger:    logger.With(slog.String("worker_id", config.WorkerID)),
	}
}

// Start refreshes on every tick until the context is cancelled, then waits
// for an in-flight run to finish.
func (w *RefreshWorker) Start(ctx context.Context) error {
	w.logger.Info("refresh worker starting", "interval", w.config.Interval)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	// Semaphore: at most one run at a time
	sem := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("refresh worker shutting down")
			w.wg.Wait()
			return ctx.Err()

		case <-ticker.C:
			select {
			case sem <- struct{}{}:
				w.wg.Add(1)
				go func() {
					defer w.wg.Done()
					defer func() { <-sem }()
					if err := w.RunOnce(ctx); err != nil {
						telemetry.CaptureError(err, map[string]interface{}{"worker_id": w.config.WorkerID})
					}
				}()
			default:
				w.logger.Warn("previous refresh still running, skipping tick")
			}
		}
	}
}

// RunOnce performs a single refresh: fetch, invalidate the cache, publish.
func (w *RefreshWorker) RunOnce(ctx context.Context) error {
	runCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	result, err := w.refresher.Fetch(runCtx, nil)
	if err != nil {
		w.logger.Error("dataset refresh failed", "error", err)
		return fmt.Errorf("dataset refresh failed: %w", err)
	}

	if w.cache != nil {
		w.cache.Invalidate()
	}

	ev := events.RefreshEvent{
		Source:    w.config.Source,
		Countries: len(result.Countries),
		FetchedAt: time.Now().UTC(),
	}
	if err := w.publisher.PublishRefresh(ctx, ev); err != nil {
		// The store is already refreshed; other instances catch up on their TTL.
		w.logger.Warn("failed to publish refresh event", "error", err)
	}

	w.logger.Info("dataset refreshed",
		"countries", len(result.Countries),
		"files", result.Files,
		"duration", result.Duration,
	)
	return nil
}
