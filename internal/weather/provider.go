package weather

import (
	"context"
	"time"
)

// Provider abstracts the upstream feeds for a location (e.g. Open-Meteo forecast + marine).
type Provider interface {
	Name() string
	Fetch(ctx context.Context, loc Location) (Feeds, error)
}

// Store is the contract the in-memory store and the MongoDB store must satisfy.
// Append never overwrites: every fetch event is a new entry.
type Store interface {
	Append(ctx context.Context, entry CacheEntry) error
	Latest(ctx context.Context, locationID string) (CacheEntry, error)
	Range(ctx context.Context, locationID string, from, to time.Time) ([]CacheEntry, error)
}
