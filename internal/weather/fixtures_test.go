package weather_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/i474232898/beach-weather-recommender/internal/weather"
)

var berlin = time.FixedZone("CEST", 2*60*60)

func f(v float64) *float64 { return &v }

// conditions builds a forecast day whose every hour has the given values.
func conditions(temp, precip, uv, clouds, wind float64) weather.Feeds {
	start := time.Date(2025, 7, 1, 0, 0, 0, 0, berlin)
	hourly := make([]weather.HourlySample, 24)
	for i := range hourly {
		hourly[i] = weather.HourlySample{
			Time:                     start.Add(time.Duration(i) * time.Hour),
			TemperatureC:             f(temp),
			PrecipitationProbability: f(precip),
			UVIndex:                  f(uv),
			CloudCoverPct:            f(clouds),
			WindSpeedKmh:             f(wind),
		}
	}
	return weather.Feeds{Forecast: weather.Forecast{Timezone: "Europe/Berlin", Hourly: hourly}}
}

// Scores 95 and 80 respectively.
var (
	sunnyDay  = conditions(24, 5, 4, 10, 20)
	cloudyDay = conditions(24, 20, 4, 50, 20)
)

type fakeProvider struct {
	mu     sync.Mutex
	feeds  map[string]weather.Feeds
	errs   map[string]error
	calls  atomic.Int32
	gate   chan struct{}
	called map[string]int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		feeds:  make(map[string]weather.Feeds),
		errs:   make(map[string]error),
		called: make(map[string]int),
	}
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Fetch(ctx context.Context, loc weather.Location) (weather.Feeds, error) {
	p.calls.Add(1)

	p.mu.Lock()
	p.called[loc.ID]++
	feeds, err, gate := p.feeds[loc.ID], p.errs[loc.ID], p.gate
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return weather.Feeds{}, &weather.TransportError{Feed: weather.FeedForecast, Err: ctx.Err()}
		}
	}
	if err != nil {
		return weather.Feeds{}, err
	}
	return feeds, nil
}

func (p *fakeProvider) set(id string, feeds weather.Feeds) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.feeds[id] = feeds
	delete(p.errs, id)
}

func (p *fakeProvider) fail(id string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs[id] = err
}

func (p *fakeProvider) callsFor(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.called[id]
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
