package store

import (
	"context"
	"sync"
	"time"

	"github.com/i474232898/beach-weather-recommender/internal/weather"
)

// ErrNotFound is returned when no entry is available for a given location.
var ErrNotFound = weather.ErrNotCached

// EntryHistory holds a time-ordered list of cache entries for a location.
type EntryHistory struct {
	Entries []weather.CacheEntry
}

// MemoryStore is a concurrency-safe in-memory implementation of weather.Store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: location id, value: history
	data map[string]*EntryHistory

	// retention configuration
	maxHistory int           // max number of entries per location
	maxAge     time.Duration // optional max age for entries
	now        func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory or maxAge is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*EntryHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// Append adds a new entry for a location and enforces retention.
// The newest entry is never dropped.
func (s *MemoryStore) Append(_ context.Context, entry weather.CacheEntry) error {
	key := entry.LocationID

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[key]
	if !ok {
		history = &EntryHistory{}
		s.data[key] = history
	}

	history.Entries = append(history.Entries, entry)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.Entries) > s.maxHistory {
		over := len(history.Entries) - s.maxHistory
		history.Entries = append([]weather.CacheEntry(nil), history.Entries[over:]...)
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Entries)-1; i++ {
			if !history.Entries[i].StoredAt.Before(cutoff) {
				break
			}
		}
		if i > 0 {
			history.Entries = append([]weather.CacheEntry(nil), history.Entries[i:]...)
		}
	}

	return nil
}

// Latest returns the most recent entry for a location.
func (s *MemoryStore) Latest(_ context.Context, locationID string) (weather.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[locationID]
	if !ok || len(history.Entries) == 0 {
		return weather.CacheEntry{}, ErrNotFound
	}
	return history.Entries[len(history.Entries)-1], nil
}

// Range returns all retained entries for a location stored between from and
// to (inclusive), oldest first.
func (s *MemoryStore) Range(_ context.Context, locationID string, from, to time.Time) ([]weather.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[locationID]
	if !ok || len(history.Entries) == 0 {
		return nil, ErrNotFound
	}

	var result []weather.CacheEntry
	for _, e := range history.Entries {
		if !e.StoredAt.Before(from) && !e.StoredAt.After(to) {
			result = append(result, e)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}
