package weather

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/umahmood/haversine"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/beach-weather-recommender/internal/metrics"
)

const defaultMaxConcurrency = 4

// LocationResult is the outcome of one location's pipeline. Exactly one of
// Snapshot (with Err == nil) or Err is meaningful.
type LocationResult struct {
	Location Location
	Snapshot Snapshot
	Cached   bool
	Err      error
}

// Service runs the cache-aware pipeline per location and fans out across the
// configured location set.
type Service struct {
	locations      []Location
	index          map[string]Location
	cache          *Cache
	log            logrus.FieldLogger
	metrics        *metrics.Metrics
	maxConcurrency int
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) ServiceOption {
	return func(s *Service) { s.log = log }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithMaxConcurrency bounds how many location pipelines run at once.
func WithMaxConcurrency(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxConcurrency = n
		}
	}
}

// NewService creates a new Service over an immutable location set.
func NewService(locations []Location, cache *Cache, opts ...ServiceOption) *Service {
	locs := make([]Location, len(locations))
	copy(locs, locations)

	index := make(map[string]Location, len(locs))
	for _, l := range locs {
		index[l.Key()] = l
	}

	s := &Service{
		locations:      locs,
		index:          index,
		cache:          cache,
		log:            logrus.StandardLogger(),
		maxConcurrency: defaultMaxConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Locations returns the configured locations in registry order.
func (s *Service) Locations() []Location {
	out := make([]Location, len(s.locations))
	copy(out, s.locations)
	return out
}

// Location looks up a configured location by id.
func (s *Service) Location(id string) (Location, error) {
	loc, ok := s.index[id]
	if !ok {
		return Location{}, &NotFoundError{LocationID: id}
	}
	return loc, nil
}

// Weather returns the cache-aware snapshot for one location.
func (s *Service) Weather(ctx context.Context, id string) (Snapshot, bool, error) {
	loc, err := s.Location(id)
	if err != nil {
		return Snapshot{}, false, err
	}

	snap, cached, err := s.cache.GetOrFetch(ctx, loc)
	if err != nil {
		s.metrics.ObserveFailure(ErrorKind(err))
		s.log.WithField("location", id).WithError(err).Error("weather pipeline failed")
		return Snapshot{}, false, err
	}
	return snap, cached, nil
}

// Stale returns the most recent stored entry for a location regardless of age.
func (s *Service) Stale(ctx context.Context, id string) (CacheEntry, error) {
	loc, err := s.Location(id)
	if err != nil {
		return CacheEntry{}, err
	}
	return s.cache.Latest(ctx, loc)
}

// History returns the retained snapshots of a location stored between from and to.
func (s *Service) History(ctx context.Context, id string, from, to time.Time) ([]CacheEntry, error) {
	loc, err := s.Location(id)
	if err != nil {
		return nil, err
	}
	return s.cache.Range(ctx, loc, from, to)
}

// AllWeather runs the pipeline for every location. Failures are embedded in
// the per-location results and never affect sibling locations.
func (s *Service) AllWeather(ctx context.Context) []LocationResult {
	return s.fanOut(ctx, func(ctx context.Context, loc Location) LocationResult {
		snap, cached, err := s.cache.GetOrFetch(ctx, loc)
		return LocationResult{Location: loc, Snapshot: snap, Cached: cached, Err: err}
	})
}

// Recommend returns one recommendation per location, ranked by score.
func (s *Service) Recommend(ctx context.Context) []Recommendation {
	results := s.AllWeather(ctx)

	recs := make([]Recommendation, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			recs = append(recs, FailedRecommendation(r.Location, r.Err))
			continue
		}
		recs = append(recs, NewRecommendation(r.Location, r.Snapshot))
	}
	return Rank(recs)
}

// RefreshAll fetches a new snapshot for every location, bypassing freshness.
// It returns the joined errors of the locations that failed.
func (s *Service) RefreshAll(ctx context.Context) error {
	results := s.fanOut(ctx, func(ctx context.Context, loc Location) LocationResult {
		snap, err := s.cache.Refresh(ctx, loc)
		return LocationResult{Location: loc, Snapshot: snap, Err: err}
	})

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}

// Nearest returns the configured location closest to the given coordinates
// and its great-circle distance in kilometres.
func (s *Service) Nearest(lat, lon float64) (Location, float64, error) {
	if len(s.locations) == 0 {
		return Location{}, 0, errors.New("no locations configured")
	}

	origin := haversine.Coord{Lat: lat, Lon: lon}
	best := s.locations[0]
	bestKm := math.Inf(1)
	for _, loc := range s.locations {
		_, km := haversine.Distance(origin, haversine.Coord{Lat: loc.Latitude, Lon: loc.Longitude})
		if km < bestKm {
			best, bestKm = loc, km
		}
	}
	return best, bestKm, nil
}

// fanOut runs fn for every location concurrently and joins all outcomes.
// Results keep registry order.
func (s *Service) fanOut(ctx context.Context, fn func(context.Context, Location) LocationResult) []LocationResult {
	results := make([]LocationResult, len(s.locations))

	var g errgroup.Group
	g.SetLimit(s.maxConcurrency)

	start := time.Now()
	for i, loc := range s.locations {
		i, loc := i, loc
		g.Go(func() error {
			r := fn(ctx, loc)
			if r.Err != nil {
				s.metrics.ObserveFailure(ErrorKind(r.Err))
				s.log.WithField("location", loc.ID).WithError(r.Err).Error("weather pipeline failed")
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()

	s.log.WithFields(logrus.Fields{
		"locations": len(results),
		"elapsed":   time.Since(start).Round(time.Millisecond),
	}).Debug("fan-out completed")

	return results
}

// ErrorKind classifies a pipeline error for metrics and HTTP mapping.
func ErrorKind(err error) string {
	var (
		transportErr *TransportError
		upstreamErr  *UpstreamError
		parseErr     *ParseError
		notFoundErr  *NotFoundError
	)
	switch {
	case errors.As(err, &transportErr):
		return "transport"
	case errors.As(err, &upstreamErr):
		return "upstream"
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &notFoundErr):
		return "not_found"
	default:
		return "internal"
	}
}
