package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/beach-weather-recommender/internal/logger"
	"github.com/i474232898/beach-weather-recommender/internal/store"
	"github.com/i474232898/beach-weather-recommender/internal/weather"
)

var testLocations = []weather.Location{
	{ID: "Binz", Name: "Binz", Latitude: 54.40, Longitude: 13.61},
	{ID: "Sellin", Name: "Sellin", Latitude: 54.38, Longitude: 13.69},
}

// stubProvider returns canned feeds or errors per location.
type stubProvider struct {
	mu    sync.Mutex
	feeds map[string]weather.Feeds
	errs  map[string]error
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Fetch(_ context.Context, loc weather.Location) (weather.Feeds, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.errs[loc.ID]; err != nil {
		return weather.Feeds{}, err
	}
	return p.feeds[loc.ID], nil
}

func (p *stubProvider) fail(id string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs[id] = err
}

func feedsWithTemp(temp float64) weather.Feeds {
	start := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	hourly := make([]weather.HourlySample, 24)
	for i := range hourly {
		t, precip, uv, clouds, wind := temp, 5.0, 4.0, 10.0, 10.0
		hourly[i] = weather.HourlySample{
			Time:                     start.Add(time.Duration(i) * time.Hour),
			TemperatureC:             &t,
			PrecipitationProbability: &precip,
			UVIndex:                  &uv,
			CloudCoverPct:            &clouds,
			WindSpeedKmh:             &wind,
		}
	}
	return weather.Feeds{Forecast: weather.Forecast{Timezone: "UTC", Hourly: hourly}}
}

type testEnv struct {
	app      *fiber.App
	provider *stubProvider
	now      time.Time
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()

	provider := &stubProvider{
		feeds: map[string]weather.Feeds{
			"Binz":   feedsWithTemp(24), // 100
			"Sellin": feedsWithTemp(16), // 80
		},
		errs: map[string]error{},
	}
	env := &testEnv{
		app:      fiber.New(),
		provider: provider,
		now:      time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC),
	}

	cache := weather.NewCache(store.NewMemoryStore(10, 0), env.provider,
		weather.WithClock(func() time.Time { return env.now }),
		weather.WithCacheLogger(logger.Discard()),
	)
	svc := weather.NewService(testLocations, cache, weather.WithLogger(logger.Discard()))
	RegisterRoutes(env.app, svc, opts)
	return env
}

func (e *testEnv) get(t *testing.T, target string, wantStatus int) map[string]any {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	resp, err := e.app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s: expected status %d, got %d", target, wantStatus, resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil && wantStatus < 400 {
		t.Fatalf("GET %s: invalid JSON body: %v", target, err)
	}
	return body
}

func TestBeachesEndpoint(t *testing.T) {
	env := newTestEnv(t, Options{})

	body := env.get(t, "/api/beaches", http.StatusOK)

	beaches, ok := body["beaches"].([]any)
	if !ok || len(beaches) != len(testLocations) {
		t.Fatalf("expected %d beaches, got %v", len(testLocations), body["beaches"])
	}
	first := beaches[0].(map[string]any)
	if first["id"] != "Binz" {
		t.Fatalf("expected registry order, got %v first", first["id"])
	}
}

func TestNearestBeachEndpoint(t *testing.T) {
	env := newTestEnv(t, Options{})

	body := env.get(t, "/api/beaches/nearest?lat=54.38&lon=13.70", http.StatusOK)
	beach := body["beach"].(map[string]any)
	if beach["id"] != "Sellin" {
		t.Fatalf("expected Sellin, got %v", beach["id"])
	}

	env.get(t, "/api/beaches/nearest?lat=54.38", http.StatusBadRequest)
	env.get(t, "/api/beaches/nearest?lat=north&lon=13.7", http.StatusBadRequest)
	env.get(t, "/api/beaches/nearest?lat=91&lon=13.7", http.StatusBadRequest)
}

func TestWeatherEndpoint_CachedOnSecondRequest(t *testing.T) {
	env := newTestEnv(t, Options{})

	body := env.get(t, "/api/weather/Binz", http.StatusOK)
	if body["cached"] != false {
		t.Fatalf("expected first request to miss the cache, got cached=%v", body["cached"])
	}
	firstID := body["data"].(map[string]any)["id"]

	env.now = env.now.Add(10 * time.Minute)
	body = env.get(t, "/api/weather/Binz", http.StatusOK)
	if body["cached"] != true {
		t.Fatalf("expected second request to hit the cache, got cached=%v", body["cached"])
	}
	if id := body["data"].(map[string]any)["id"]; id != firstID {
		t.Fatalf("expected cached snapshot %v, got %v", firstID, id)
	}
}

func TestWeatherEndpoint_UnknownBeach(t *testing.T) {
	env := newTestEnv(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/weather/Zingst", nil)
	resp, err := env.app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}
}

func TestWeatherEndpoint_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"upstream status", &weather.UpstreamError{ForecastStatus: 500, MarineStatus: 200}, http.StatusBadGateway},
		{"bad payload", &weather.ParseError{Feed: weather.FeedForecast}, http.StatusBadGateway},
		{"timeout", &weather.TransportError{Feed: weather.FeedMarine, Err: context.DeadlineExceeded}, http.StatusGatewayTimeout},
		{"connection refused", &weather.TransportError{Feed: weather.FeedMarine, Err: http.ErrServerClosed}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Options{})
			env.provider.fail("Binz", tt.err)
			env.get(t, "/api/weather/Binz", tt.want)
		})
	}
}

func TestWeatherEndpoint_StaleOnError(t *testing.T) {
	env := newTestEnv(t, Options{StaleOnError: true})

	env.get(t, "/api/weather/Binz", http.StatusOK)

	env.now = env.now.Add(time.Hour)
	env.provider.fail("Binz", &weather.UpstreamError{ForecastStatus: 503, MarineStatus: 503})

	body := env.get(t, "/api/weather/Binz", http.StatusOK)
	if body["stale"] != true || body["cached"] != true {
		t.Fatalf("expected stale cached response, got %v", body)
	}
	if body["error"] == nil {
		t.Fatalf("expected the fetch error to be reported")
	}

	// Without a stored entry there is nothing to fall back to.
	env.provider.fail("Sellin", &weather.UpstreamError{ForecastStatus: 503, MarineStatus: 503})
	env.get(t, "/api/weather/Sellin", http.StatusBadGateway)
}

func TestAllWeatherEndpoint(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.provider.fail("Sellin", &weather.UpstreamError{ForecastStatus: 500, MarineStatus: 500})

	body := env.get(t, "/api/weather", http.StatusOK)

	binz := body["Binz"].(map[string]any)
	if _, ok := binz["data"]; !ok {
		t.Fatalf("expected data for Binz, got %v", binz)
	}
	sellin := body["Sellin"].(map[string]any)
	if _, ok := sellin["error"]; !ok {
		t.Fatalf("expected error for Sellin, got %v", sellin)
	}
}

func TestRecommendationsEndpoint(t *testing.T) {
	env := newTestEnv(t, Options{})

	body := env.get(t, "/api/recommendations", http.StatusOK)

	recs := body["recommendations"].([]any)
	if len(recs) != 2 {
		t.Fatalf("expected 2 recommendations, got %d", len(recs))
	}
	first := recs[0].(map[string]any)
	second := recs[1].(map[string]any)
	if first["beach"] != "Binz" || first["score"] != 100.0 {
		t.Fatalf("expected Binz with 100 first, got %v", first)
	}
	if second["beach"] != "Sellin" || second["score"] != 80.0 {
		t.Fatalf("expected Sellin with 80 second, got %v", second)
	}
	if first["best_time"] != "06:00" {
		t.Fatalf("expected best_time 06:00, got %v", first["best_time"])
	}
}

func TestHistoryEndpoint(t *testing.T) {
	env := newTestEnv(t, Options{})

	env.get(t, "/api/weather/Binz", http.StatusOK)
	env.now = env.now.Add(time.Hour)
	env.get(t, "/api/weather/Binz", http.StatusOK)

	body := env.get(t, "/api/weather/Binz/history?from=2025-07-01T00:00:00Z&to=2025-07-01T23:00:00Z", http.StatusOK)
	entries := body["entries"].([]any)
	if len(entries) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(entries))
	}

	env.get(t, "/api/weather/Binz/history?from=2025-07-02T00:00:00Z&to=2025-07-02T23:00:00Z", http.StatusNotFound)
	env.get(t, "/api/weather/Binz/history?from=2025-07-01T23:00:00Z&to=2025-07-01T00:00:00Z", http.StatusBadRequest)
	env.get(t, "/api/weather/Binz/history?from=yesterday&to=today", http.StatusBadRequest)
	env.get(t, "/api/weather/Binz/history", http.StatusBadRequest)
	env.get(t, "/api/weather/Zingst/history?from=1751328000&to=1751414400", http.StatusNotFound)
}
