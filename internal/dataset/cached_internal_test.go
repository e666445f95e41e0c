package dataset

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	*MemoryStore
	loads atomic.Int32
	gate  chan struct{}
}

func (p *countingProvider) LoadSchema(ctx context.Context, code string) (RawSchema, error) {
	p.loads.Add(1)
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return p.MemoryStore.LoadSchema(ctx, code)
}

// readThenWaitProvider reads the store first and then blocks, so the value it
// returns can be older than the store by the time it is released.
type readThenWaitProvider struct {
	*MemoryStore
	once    sync.Once
	started chan struct{}
	gate    chan struct{}
}

func (p *readThenWaitProvider) LoadSchema(ctx context.Context, code string) (RawSchema, error) {
	schema, err := p.MemoryStore.LoadSchema(ctx, code)
	p.once.Do(func() { close(p.started) })
	<-p.gate
	return schema, err
}

type countingMetrics struct {
	hits, misses atomic.Int32
}

func (m *countingMetrics) RecordCacheHit()  { m.hits.Add(1) }
func (m *countingMetrics) RecordCacheMiss() { m.misses.Add(1) }

func newCountingProvider() *countingProvider {
	store := NewMemoryStore("")
	store.Set("US", RawSchema{"fmt": "%N%n%A", "name": "UNITED STATES"})
	return &countingProvider{MemoryStore: store}
}

func TestCachedProvider_HitsWithinTTL(t *testing.T) {
	next := newCountingProvider()
	metrics := &countingMetrics{}
	c := NewCachedProvider(next, time.Minute, metrics)

	for i := 0; i < 3; i++ {
		schema, err := c.LoadSchema(context.Background(), "US")
		require.NoError(t, err)
		assert.Equal(t, "%N%n%A", schema["fmt"])
	}

	assert.Equal(t, int32(1), next.loads.Load())
	assert.Equal(t, int32(2), metrics.hits.Load())
	assert.Equal(t, int32(1), metrics.misses.Load())
}

func TestCachedProvider_Expires(t *testing.T) {
	next := newCountingProvider()
	c := NewCachedProvider(next, time.Minute, nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, err := c.LoadSchema(context.Background(), "US")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = c.LoadSchema(context.Background(), "US")
	require.NoError(t, err)

	assert.Equal(t, int32(2), next.loads.Load())
}

func TestCachedProvider_Invalidate(t *testing.T) {
	next := newCountingProvider()
	c := NewCachedProvider(next, time.Hour, nil)

	_, _ = c.LoadSchema(context.Background(), "US")
	c.Invalidate()
	_, _ = c.LoadSchema(context.Background(), "US")

	assert.Equal(t, int32(2), next.loads.Load())
}

func TestCachedProvider_ReturnsCopies(t *testing.T) {
	c := NewCachedProvider(newCountingProvider(), time.Hour, nil)

	first, err := c.LoadSchema(context.Background(), "US")
	require.NoError(t, err)
	first["fmt"] = "mutated"

	second, err := c.LoadSchema(context.Background(), "US")
	require.NoError(t, err)
	assert.Equal(t, "%N%n%A", second["fmt"])
}

func TestCachedProvider_ErrorsAreNotCached(t *testing.T) {
	next := newCountingProvider()
	c := NewCachedProvider(next, time.Hour, nil)

	_, err := c.LoadSchema(context.Background(), "CA")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.LoadSchema(context.Background(), "CA")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, int32(2), next.loads.Load())
}

func TestCachedProvider_CollapsesConcurrentLoads(t *testing.T) {
	next := newCountingProvider()
	next.gate = make(chan struct{})
	c := NewCachedProvider(next, time.Hour, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.LoadSchema(context.Background(), "US")
			assert.NoError(t, err)
		}()
	}

	// Let the goroutines pile up on the in-flight load before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(next.gate)
	wg.Wait()

	assert.LessOrEqual(t, next.loads.Load(), int32(2))
}

func TestCachedProvider_InvalidateDuringLoad(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("")
	store.Set("US", RawSchema{"fmt": "OLD"})
	next := &readThenWaitProvider{MemoryStore: store, started: make(chan struct{}), gate: make(chan struct{})}
	c := NewCachedProvider(next, time.Hour, nil)

	inflight := make(chan RawSchema, 1)
	go func() {
		schema, err := c.LoadSchema(ctx, "US")
		assert.NoError(t, err)
		inflight <- schema
	}()

	<-next.started
	store.Set("US", RawSchema{"fmt": "NEW"})
	c.Invalidate()
	close(next.gate)

	assert.Equal(t, "OLD", (<-inflight)["fmt"])

	schema, err := c.LoadSchema(ctx, "US")
	require.NoError(t, err)
	assert.Equal(t, "NEW", schema["fmt"])
}

func TestCachedProvider_CancelledCallerDoesNotFailOthers(t *testing.T) {
	next := newCountingProvider()
	next.gate = make(chan struct{})
	c := NewCachedProvider(next, time.Hour, nil)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.LoadSchema(ctxA, "US")
		errA <- err
	}()
	require.Eventually(t, func() bool { return next.loads.Load() == 1 }, time.Second, 5*time.Millisecond)

	errB := make(chan error, 1)
	go func() {
		_, err := c.LoadSchema(context.Background(), "US")
		errB <- err
	}()

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(next.gate)
	assert.NoError(t, <-errB)
}

func TestCachedProvider_CancelledContext(t *testing.T) {
	next := newCountingProvider()
	next.gate = make(chan struct{})
	defer close(next.gate)
	c := NewCachedProvider(next, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.LoadSchema(ctx, "US")
	assert.ErrorIs(t, err, context.Canceled)
}
