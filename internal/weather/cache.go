package weather

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/i474232898/beach-weather-recommender/internal/metrics"
)

// Cache serves the most recent snapshot per location while it is younger
// than the freshness window and fetches, scores and appends a new one otherwise.
type Cache struct {
	store    Store
	provider Provider
	window   time.Duration
	now      func() time.Time
	log      logrus.FieldLogger
	metrics  *metrics.Metrics

	// coalesces concurrent misses for the same location
	inflight singleflight.Group
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// WithCacheLogger sets the logger.
func WithCacheLogger(log logrus.FieldLogger) CacheOption {
	return func(c *Cache) { c.log = log }
}

// WithCacheMetrics sets the metrics sink.
func WithCacheMetrics(m *metrics.Metrics) CacheOption {
	return func(c *Cache) { c.metrics = m }
}

// NewCache creates a Cache using FreshnessWindow.
func NewCache(store Store, provider Provider, opts ...CacheOption) *Cache {
	c := &Cache{
		store:    store,
		provider: provider,
		window:   FreshnessWindow,
		now:      time.Now,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrFetch returns the cached snapshot for loc when it is fresh (cached=true),
// otherwise fetches a new one (cached=false). A failed fetch returns the error
// and leaves the store untouched.
func (c *Cache) GetOrFetch(ctx context.Context, loc Location) (Snapshot, bool, error) {
	log := c.log.WithField("location", loc.ID)

	entry, err := c.store.Latest(ctx, loc.Key())
	switch {
	case err == nil:
		age := c.now().Sub(entry.StoredAt)
		if age < c.window {
			log.WithField("age", age.Round(time.Second)).Debug("cache hit")
			c.metrics.ObserveCacheLookup(true)
			return entry.Snapshot, true, nil
		}
		log.WithField("age", age.Round(time.Second)).Debug("cache entry stale")
	case errors.Is(err, ErrNotCached):
		log.Debug("cache empty")
	default:
		log.WithError(err).Warn("cache read failed; fetching fresh data")
	}

	c.metrics.ObserveCacheLookup(false)
	snap, err := c.Refresh(ctx, loc)
	if err != nil {
		return Snapshot{}, false, err
	}
	return snap, false, nil
}

// Refresh fetches, scores and stores a new snapshot regardless of freshness.
// The shared fetch ignores the caller's cancellation and is bounded by the
// provider's timeout. A caller whose ctx ends returns ctx.Err() early.
func (c *Cache) Refresh(ctx context.Context, loc Location) (Snapshot, error) {
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.inflight.DoChan(loc.Key(), func() (interface{}, error) {
		return c.fetch(fetchCtx, loc)
	})

	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Snapshot{}, res.Err
		}
		if res.Shared {
			c.log.WithField("location", loc.ID).Debug("joined in-flight fetch")
		}
		return res.Val.(Snapshot), nil
	}
}

// Latest returns the most recent stored entry regardless of its age.
func (c *Cache) Latest(ctx context.Context, loc Location) (CacheEntry, error) {
	return c.store.Latest(ctx, loc.Key())
}

// Range returns the stored entries for loc between from and to.
func (c *Cache) Range(ctx context.Context, loc Location, from, to time.Time) ([]CacheEntry, error) {
	return c.store.Range(ctx, loc.Key(), from, to)
}

func (c *Cache) fetch(ctx context.Context, loc Location) (Snapshot, error) {
	feeds, err := c.provider.Fetch(ctx, loc)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch %s: %w", loc.ID, err)
	}

	bestHour, score := Score(feeds.Forecast.Hourly, feeds.Marine.Hourly)
	now := c.now()

	snap := Snapshot{
		ID:         uuid.NewString(),
		LocationID: loc.ID,
		FetchedAt:  now,
		Forecast:   feeds.Forecast,
		Marine:     feeds.Marine,
		BestHour:   bestHour,
		Score:      score,
	}

	entry := CacheEntry{
		LocationID: loc.Key(),
		StoredAt:   now,
		Snapshot:   snap,
	}
	if err := c.store.Append(ctx, entry); err != nil {
		c.log.WithField("location", loc.ID).WithError(err).Warn("cache write failed")
	}

	c.metrics.ObserveScore(loc.ID, score)
	c.log.WithFields(logrus.Fields{
		"location":  loc.ID,
		"score":     score,
		"best_time": snap.BestTime(),
	}).Info("snapshot refreshed")

	return snap, nil
}
