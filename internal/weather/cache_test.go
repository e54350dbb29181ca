package weather_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/beach-weather-recommender/internal/logger"
	"github.com/i474232898/beach-weather-recommender/internal/store"
	"github.com/i474232898/beach-weather-recommender/internal/weather"
)

var binz = weather.Location{ID: "Binz", Name: "Binz", Latitude: 54.40, Longitude: 13.61}

func newTestCache(p weather.Provider, s weather.Store, clk *clock) *weather.Cache {
	return weather.NewCache(s, p,
		weather.WithClock(clk.Now),
		weather.WithCacheLogger(logger.Discard()),
	)
}

func TestCache_FreshnessWindow(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)}
	p := newFakeProvider()
	p.set(binz.ID, sunnyDay)
	s := store.NewMemoryStore(0, 0)
	c := newTestCache(p, s, clk)

	first, cached, err := c.GetOrFetch(ctx, binz)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, binz.ID, first.LocationID)
	assert.InDelta(t, 95.0, first.Score, 0.001)

	clk.Advance(10 * time.Minute)
	second, cached, err := c.GetOrFetch(ctx, binz)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, p.callsFor(binz.ID))

	clk.Advance(21 * time.Minute)
	third, cached, err := c.GetOrFetch(ctx, binz)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.NotEqual(t, first.ID, third.ID)
	assert.Equal(t, 2, p.callsFor(binz.ID))

	history, err := s.Range(ctx, binz.ID, clk.Now().Add(-time.Hour), clk.Now())
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestCache_ExactlyAtWindowIsStale(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)}
	p := newFakeProvider()
	p.set(binz.ID, sunnyDay)
	c := newTestCache(p, store.NewMemoryStore(0, 0), clk)

	_, _, err := c.GetOrFetch(ctx, binz)
	require.NoError(t, err)

	clk.Advance(weather.FreshnessWindow)
	_, cached, err := c.GetOrFetch(ctx, binz)
	require.NoError(t, err)
	assert.False(t, cached)
}

func TestCache_FailedFetchLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)}
	p := newFakeProvider()
	p.fail(binz.ID, &weather.UpstreamError{ForecastStatus: 500, MarineStatus: 200})
	s := store.NewMemoryStore(0, 0)
	c := newTestCache(p, s, clk)

	_, _, err := c.GetOrFetch(ctx, binz)

	var upstream *weather.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, 500, upstream.ForecastStatus)

	_, err = s.Latest(ctx, binz.ID)
	assert.ErrorIs(t, err, weather.ErrNotCached)
}

func TestCache_StaleEntrySurvivesFailedRefetch(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)}
	p := newFakeProvider()
	p.set(binz.ID, sunnyDay)
	s := store.NewMemoryStore(0, 0)
	c := newTestCache(p, s, clk)

	first, _, err := c.GetOrFetch(ctx, binz)
	require.NoError(t, err)

	clk.Advance(time.Hour)
	p.fail(binz.ID, &weather.TransportError{Feed: weather.FeedMarine, Err: errors.New("connection refused")})

	_, _, err = c.GetOrFetch(ctx, binz)
	require.Error(t, err)

	entry, err := c.Latest(ctx, binz)
	require.NoError(t, err)
	assert.Equal(t, first.ID, entry.Snapshot.ID)
}

type failingStore struct{}

func (failingStore) Append(context.Context, weather.CacheEntry) error {
	return errors.New("disk full")
}

func (failingStore) Latest(context.Context, string) (weather.CacheEntry, error) {
	return weather.CacheEntry{}, errors.New("connection reset")
}

func (failingStore) Range(context.Context, string, time.Time, time.Time) ([]weather.CacheEntry, error) {
	return nil, errors.New("connection reset")
}

func TestCache_StoreFailuresDegradeToMiss(t *testing.T) {
	clk := &clock{now: time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)}
	p := newFakeProvider()
	p.set(binz.ID, cloudyDay)
	c := newTestCache(p, failingStore{}, clk)

	snap, cached, err := c.GetOrFetch(context.Background(), binz)

	require.NoError(t, err)
	assert.False(t, cached)
	assert.InDelta(t, 80.0, snap.Score, 0.001)
}

func TestCache_ConcurrentMissesFetchOnce(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)}
	p := newFakeProvider()
	p.set(binz.ID, sunnyDay)
	p.gate = make(chan struct{})
	c := newTestCache(p, store.NewMemoryStore(0, 0), clk)

	const callers = 8
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[string]struct{})
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, _, err := c.GetOrFetch(ctx, binz)
			if assert.NoError(t, err) {
				mu.Lock()
				ids[snap.ID] = struct{}{}
				mu.Unlock()
			}
		}()
	}

	require.Eventually(t, func() bool { return p.calls.Load() >= 1 }, time.Second, time.Millisecond)
	// Give the remaining callers time to join the in-flight fetch.
	time.Sleep(50 * time.Millisecond)
	close(p.gate)
	wg.Wait()

	assert.Equal(t, int32(1), p.calls.Load())
	assert.Len(t, ids, 1)
}

func TestCache_CancelledCallerDoesNotFailJoinedCallers(t *testing.T) {
	clk := &clock{now: time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)}
	p := newFakeProvider()
	p.set(binz.ID, sunnyDay)
	p.gate = make(chan struct{})
	s := store.NewMemoryStore(0, 0)
	c := newTestCache(p, s, clk)

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrFetch(firstCtx, binz)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return p.calls.Load() >= 1 }, time.Second, time.Millisecond)

	type result struct {
		snap weather.Snapshot
		err  error
	}
	joined := make(chan result, 1)
	go func() {
		snap, _, err := c.GetOrFetch(context.Background(), binz)
		joined <- result{snap, err}
	}()
	// Give the second caller time to join the in-flight fetch.
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(p.gate)
	res := <-joined
	require.NoError(t, res.err)
	assert.NotEmpty(t, res.snap.ID)
	assert.InDelta(t, 95.0, res.snap.Score, 0.001)
	assert.Equal(t, int32(1), p.calls.Load())

	latest, err := s.Latest(context.Background(), binz.ID)
	require.NoError(t, err)
	assert.Equal(t, res.snap.ID, latest.Snapshot.ID)
}

func TestCache_RefreshBypassesFreshness(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)}
	p := newFakeProvider()
	p.set(binz.ID, sunnyDay)
	c := newTestCache(p, store.NewMemoryStore(0, 0), clk)

	first, _, err := c.GetOrFetch(ctx, binz)
	require.NoError(t, err)

	p.set(binz.ID, cloudyDay)
	refreshed, err := c.Refresh(ctx, binz)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, refreshed.ID)
	assert.InDelta(t, 80.0, refreshed.Score, 0.001)

	snap, cached, err := c.GetOrFetch(ctx, binz)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, refreshed.ID, snap.ID)
}
