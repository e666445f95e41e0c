package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/addrfmt/internal"
	"github.com/dukerupert/addrfmt/internal/bootstrap"
	"github.com/dukerupert/addrfmt/internal/events"
	"github.com/dukerupert/addrfmt/internal/handler/api"
	"github.com/dukerupert/addrfmt/internal/middleware"
	"github.com/dukerupert/addrfmt/internal/router"
	"github.com/dukerupert/addrfmt/internal/telemetry"
	"github.com/dukerupert/addrfmt/internal/worker"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize Sentry
	flushSentry, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:              cfg.Sentry.DSN,
		Enabled:          cfg.Sentry.Enabled,
		Environment:      cfg.Sentry.Environment,
		Release:          cfg.Sentry.Release,
		SampleRate:       cfg.Sentry.SampleRate,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
		Debug:            cfg.Sentry.Debug,
	}, logger)
	if err != nil {
		return err
	}
	defer flushSentry()

	business := telemetry.InitBusinessMetrics("addrfmt")

	// ==========================================================================
	// Dataset
	// ==========================================================================

	ds, err := bootstrap.OpenDataset(ctx, cfg, business, logger)
	if err != nil {
		return err
	}
	defer ds.Close()

	bus, publisher, err := bootstrap.ConnectEvents(cfg.NATS, logger)
	if err != nil {
		return err
	}
	if bus != nil {
		defer bus.Close()

		// Another instance refreshed the shared store; drop our cached copies.
		if _, err := bus.SubscribeRefresh(func(ev events.RefreshEvent) {
			ds.Provider.Invalidate()
			business.RecordRefreshEvent("received")
			logger.Info("dataset cache invalidated", "source", ev.Source, "countries", ev.Countries)
		}); err != nil {
			return fmt.Errorf("nats subscribe failed: %w", err)
		}
	}

	if cfg.Dataset.RefreshInterval > 0 {
		fetcher, err := ds.NewFetcher(cfg.Dataset, business, logger)
		if err != nil {
			return fmt.Errorf("fetcher initialization failed: %w", err)
		}
		w := worker.NewRefreshWorker(fetcher, ds.Provider, publisher, worker.Config{
			Interval: cfg.Dataset.RefreshInterval,
			Source:   ds.Source,
		}, logger)

		// Registered after ds.Close so the worker is gone before the store closes.
		defer runInBackground(ctx, w, logger)()
	}

	// ==========================================================================
	// Initialize middleware
	// ==========================================================================

	metrics := middleware.NewMetrics("addrfmt")

	securityConfig := middleware.DefaultSecurityHeadersConfig()
	if cfg.Env == "dev" {
		securityConfig.HSTSMaxAge = 0
	}

	chain := []router.Middleware{
		router.Recovery(logger),
		telemetry.SentryMiddleware(),
		middleware.RequestID,
		middleware.WithClientIP(),
		middleware.WithRequestLogger(logger),
		metrics.Middleware,
		middleware.SecurityHeaders(securityConfig),
		middleware.Timeout(cfg.HTTP.RequestTimeout),
	}
	if cfg.HTTP.RateLimitRPS > 0 {
		limiterConfig := middleware.DefaultRateLimiterConfig()
		limiterConfig.RequestsPerSecond = cfg.HTTP.RateLimitRPS
		limiterConfig.BurstSize = cfg.HTTP.RateLimitBurst
		limiter := middleware.NewRateLimiter(limiterConfig)
		defer limiter.Stop()
		chain = append(chain, limiter.Middleware)
	}
	chain = append(chain, router.Logger(logger))

	// ==========================================================================
	// Routes
	// ==========================================================================

	r := router.New(chain...)

	// Metrics endpoint (should be protected in production via firewall)
	r.Get("/metrics", metrics.Handler().ServeHTTP)

	api.NewAddressHandler(ds.Provider, business, logger).RegisterRoutes(r, cfg.HTTP.MaxBodyBytes)

	var root http.Handler = r
	if len(cfg.HTTP.CORSOrigins) > 0 {
		// Outside the mux so preflight requests never hit method matching.
		root = router.CORS(cfg.HTTP.CORSOrigins)(r)
	}

	// ==========================================================================
	// Start server
	// ==========================================================================

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           root,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting address server", "address", srv.Addr, "source", ds.Source)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
