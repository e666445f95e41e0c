package worker_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/addrfmt/internal/dataset"
	"github.com/dukerupert/addrfmt/internal/events"
	"github.com/dukerupert/addrfmt/internal/worker"
)

type fakeRefresher struct {
	calls atomic.Int32
	err   error
	block chan struct{}
}

func (f *fakeRefresher) Fetch(ctx context.Context, progress func(dataset.Progress)) (*dataset.FetchResult, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &dataset.FetchResult{Countries: []dataset.Country{{Code: "US", Name: "United States"}}, Files: 2}, nil
}

type fakeCache struct{ invalidations atomic.Int32 }

func (c *fakeCache) Invalidate() { c.invalidations.Add(1) }

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.RefreshEvent
	err    error
}

func (p *recordingPublisher) PublishRefresh(ctx context.Context, ev events.RefreshEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() {}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOnce_Success(t *testing.T) {
	refresher := &fakeRefresher{}
	cache := &fakeCache{}
	pub := &recordingPublisher{}
	w := worker.NewRefreshWorker(refresher, cache, pub, worker.Config{Source: "storage"}, quietLogger())

	require.NoError(t, w.RunOnce(context.Background()))

	assert.Equal(t, int32(1), cache.invalidations.Load())
	require.Len(t, pub.events, 1)
	assert.Equal(t, "storage", pub.events[0].Source)
	assert.Equal(t, 1, pub.events[0].Countries)
	assert.False(t, pub.events[0].FetchedAt.IsZero())
}

func TestRunOnce_FetchFailure(t *testing.T) {
	refresher := &fakeRefresher{err: dataset.ErrFetchFailed}
	cache := &fakeCache{}
	pub := &recordingPublisher{}
	w := worker.NewRefreshWorker(refresher, cache, pub, worker.Config{}, quietLogger())

	err := w.RunOnce(context.Background())
	assert.ErrorIs(t, err, dataset.ErrFetchFailed)
	assert.Equal(t, int32(0), cache.invalidations.Load())
	assert.Empty(t, pub.events)
}

func TestRunOnce_PublishFailureIsNotFatal(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("nats down")}
	w := worker.NewRefreshWorker(&fakeRefresher{}, nil, pub, worker.Config{}, quietLogger())

	assert.NoError(t, w.RunOnce(context.Background()))
}

func TestStart_SkipsOverlappingTicks(t *testing.T) {
	refresher := &fakeRefresher{block: make(chan struct{})}
	w := worker.NewRefreshWorker(refresher, nil, nil, worker.Config{Interval: 5 * time.Millisecond}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), refresher.calls.Load(), "only one run may be in flight")

	close(refresher.block)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
