package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/addrfmt/internal/telemetry"
)

// maxRecordSize bounds a single downloaded document.
const maxRecordSize = 4 << 20

// FetchMetrics receives refresh counters. *telemetry.BusinessMetrics satisfies it.
type FetchMetrics interface {
	RecordFetchFile()
	RecordFetchRun(success bool, d time.Duration)
}

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	// BaseURL serves the index at BaseURL and each record at BaseURL/<CODE>.
	BaseURL string

	// Fallback is the universal record fetched in addition to the index. Defaults to ZZ.
	Fallback string

	// Concurrency caps parallel downloads. Defaults to 4.
	Concurrency int

	// Client performs the requests. Defaults to a traced client with a 30s timeout.
	Client *http.Client

	Logger  *slog.Logger
	Metrics FetchMetrics
}

// Progress is reported once per stored record. Current is 1-based and Total
// includes the fallback record.
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	File    string `json:"file"`
}

// FetchResult summarizes a completed refresh.
type FetchResult struct {
	Countries []Country     `json:"countries"`
	Files     int           `json:"files"`
	Duration  time.Duration `json:"duration"`
}

// Fetcher downloads the remote dataset into a Sink. Runs overwrite earlier
// records, so a failed or repeated run can simply be re-run.
type Fetcher struct {
	cfg  FetcherConfig
	sink Sink
}

// NewFetcher validates cfg and applies defaults.
func NewFetcher(cfg FetcherConfig, sink Sink) (*Fetcher, error) {
	cfg.BaseURL = strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, ErrNoBaseURL
	}
	if cfg.Fallback == "" {
		cfg.Fallback = DefaultFallback
	}
	cfg.Fallback = NormalizeCode(cfg.Fallback)
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 4
	}
	if cfg.Client == nil {
		cfg.Client = telemetry.NewHTTPClient(30 * time.Second)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Fetcher{cfg: cfg, sink: sink}, nil
}

// Fetch downloads the index, every listed country and the fallback record,
// stores them, then stores the aggregate country list. The first failure
// cancels the remaining downloads. progress may be nil and is never called
// concurrently.
func (f *Fetcher) Fetch(ctx context.Context, progress func(Progress)) (result *FetchResult, err error) {
	start := time.Now()
	logger := f.cfg.Logger.With(slog.String("component", "dataset.fetcher"))

	ctx, finish := telemetry.StartSpan(ctx, "dataset.fetch", f.cfg.BaseURL)
	defer finish()

	defer func() {
		if f.cfg.Metrics != nil {
			f.cfg.Metrics.RecordFetchRun(err == nil, time.Since(start))
		}
	}()

	codes, err := f.index(ctx)
	if err != nil {
		return nil, err
	}
	total := len(codes)
	logger.Info("fetching address dataset", slog.Int("total", total), slog.String("url", f.cfg.BaseURL))

	names := make([]string, total)
	var (
		mu      sync.Mutex
		current int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Concurrency)
	for i, code := range codes {
		g.Go(func() error {
			data, err := f.get(gctx, f.cfg.BaseURL+"/"+code)
			if err != nil {
				return err
			}
			if !gjson.ValidBytes(data) || !gjson.ParseBytes(data).IsObject() {
				return fmt.Errorf("%w: %s: response is not a JSON object", ErrFetchFailed, code)
			}
			names[i] = gjson.GetBytes(data, "name").String()

			loc, err := f.sink.PutSchema(gctx, code, data)
			if err != nil {
				return fmt.Errorf("%w: %s: %w", ErrFetchFailed, code, err)
			}

			if f.cfg.Metrics != nil {
				f.cfg.Metrics.RecordFetchFile()
			}

			mu.Lock()
			defer mu.Unlock()
			current++
			logger.Debug("stored dataset record",
				slog.String("code", code),
				slog.String("file", loc),
				slog.Int("current", current),
				slog.Int("total", total),
			)
			if progress != nil {
				progress(Progress{Current: current, Total: total, File: loc})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("dataset fetch failed", slog.String("error", err.Error()))
		return nil, err
	}

	countries := make([]Country, 0, total)
	for i, code := range codes {
		if code == f.cfg.Fallback {
			continue
		}
		countries = append(countries, Country{Code: code, Name: DisplayName(code, names[i])})
	}
	slices.SortFunc(countries, func(a, b Country) int { return strings.Compare(a.Code, b.Code) })

	if err := f.sink.PutMeta(ctx, countries); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	telemetry.AddBreadcrumb("dataset", "dataset refreshed", map[string]interface{}{
		"countries": len(countries),
	})

	result = &FetchResult{
		Countries: countries,
		Files:     total,
		Duration:  time.Since(start),
	}
	logger.Info("address dataset fetched",
		slog.Int("countries", len(countries)),
		slog.Duration("duration", result.Duration),
	)
	return result, nil
}

// index reads the "~"-separated code list and appends the fallback code.
func (f *Fetcher) index(ctx context.Context) ([]string, error) {
	body, err := f.get(ctx, f.cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	list := gjson.GetBytes(body, "countries")
	if !list.Exists() || list.String() == "" {
		return nil, fmt.Errorf("%w: index has no countries", ErrFetchFailed)
	}

	var codes []string
	for _, raw := range strings.Split(list.String(), "~") {
		code := NormalizeCode(raw)
		if !ValidCode(code) || slices.Contains(codes, code) {
			continue
		}
		codes = append(codes, code)
	}
	if !slices.Contains(codes, f.cfg.Fallback) {
		codes = append(codes, f.cfg.Fallback)
	}
	return codes, nil
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.cfg.Client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrFetchFailed, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: status %d", ErrFetchFailed, url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRecordSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetchFailed, url, err)
	}
	return body, nil
}
