package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/beach-weather-recommender/internal/weather"
)

// Default Open-Meteo endpoints and request horizon.
const (
	DefaultForecastURL  = "https://api.open-meteo.com/v1/forecast"
	DefaultMarineURL    = "https://marine-api.open-meteo.com/v1/marine"
	DefaultTimezone     = "Europe/Berlin"
	DefaultForecastDays = 3
)

var (
	forecastHourlyFields = []string{
		"temperature_2m", "relative_humidity_2m", "apparent_temperature",
		"precipitation_probability", "precipitation", "weather_code",
		"cloud_cover", "wind_speed_10m", "wind_direction_10m", "uv_index", "is_day",
	}
	forecastDailyFields = []string{
		"weather_code", "temperature_2m_max", "temperature_2m_min",
		"apparent_temperature_max", "apparent_temperature_min", "sunrise", "sunset",
		"uv_index_max", "precipitation_sum", "rain_sum",
		"wind_speed_10m_max", "wind_direction_10m_dominant",
	}
	marineHourlyFields = []string{
		"wave_height", "wave_direction", "wave_period", "sea_surface_temperature",
	}
)

// OpenMeteoConfig holds the endpoint and horizon settings for OpenMeteoProvider.
type OpenMeteoConfig struct {
	ForecastURL  string
	MarineURL    string
	Timezone     string
	ForecastDays int
}

// OpenMeteoProvider implements the weather.Provider interface for the
// Open-Meteo forecast and marine APIs.
type OpenMeteoProvider struct {
	name            string
	cfg             OpenMeteoConfig
	httpCfg         HTTPClientConfig
	forecastCircuit *gobreaker.CircuitBreaker
	marineCircuit   *gobreaker.CircuitBreaker
}

// NewOpenMeteoProvider creates a provider. Zero fields in cfg fall back to the defaults.
func NewOpenMeteoProvider(httpCfg HTTPClientConfig, cfg OpenMeteoConfig) *OpenMeteoProvider {
	if cfg.ForecastURL == "" {
		cfg.ForecastURL = DefaultForecastURL
	}
	if cfg.MarineURL == "" {
		cfg.MarineURL = DefaultMarineURL
	}
	if cfg.Timezone == "" {
		cfg.Timezone = DefaultTimezone
	}
	if cfg.ForecastDays <= 0 {
		cfg.ForecastDays = DefaultForecastDays
	}

	return &OpenMeteoProvider{
		name:            "openmeteo",
		cfg:             cfg,
		httpCfg:         httpCfg,
		forecastCircuit: newCircuitBreaker("openmeteo-forecast"),
		marineCircuit:   newCircuitBreaker("openmeteo-marine"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

// Fetch issues the forecast and marine requests concurrently and waits for
// both. It succeeds only if both feeds answer with a 2xx status.
func (p *OpenMeteoProvider) Fetch(ctx context.Context, loc weather.Location) (weather.Feeds, error) {
	var (
		wg                     sync.WaitGroup
		forecastRes, marineRes feedResponse
		forecastErr, marineErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		forecastRes, forecastErr = doFeedRequest(ctx, p.httpCfg, p.forecastCircuit, weather.FeedForecast,
			p.buildRequest(p.cfg.ForecastURL, loc, url.Values{
				"hourly": {strings.Join(forecastHourlyFields, ",")},
				"daily":  {strings.Join(forecastDailyFields, ",")},
			}))
	}()
	go func() {
		defer wg.Done()
		marineRes, marineErr = doFeedRequest(ctx, p.httpCfg, p.marineCircuit, weather.FeedMarine,
			p.buildRequest(p.cfg.MarineURL, loc, url.Values{
				"hourly": {strings.Join(marineHourlyFields, ",")},
			}))
	}()
	wg.Wait()

	if forecastErr != nil {
		return weather.Feeds{}, forecastErr
	}
	if marineErr != nil {
		return weather.Feeds{}, marineErr
	}
	if !forecastRes.ok() || !marineRes.ok() {
		return weather.Feeds{}, &weather.UpstreamError{
			ForecastStatus: forecastRes.Status,
			MarineStatus:   marineRes.Status,
		}
	}

	forecast, err := parseForecast(forecastRes.Body)
	if err != nil {
		return weather.Feeds{}, &weather.ParseError{Feed: weather.FeedForecast, Err: err}
	}
	marine, err := parseMarine(marineRes.Body)
	if err != nil {
		return weather.Feeds{}, &weather.ParseError{Feed: weather.FeedMarine, Err: err}
	}

	return weather.Feeds{Forecast: forecast, Marine: marine}, nil
}

func (p *OpenMeteoProvider) buildRequest(base string, loc weather.Location, values url.Values) func(context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		values.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', -1, 64))
		values.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', -1, 64))
		values.Set("timezone", p.cfg.Timezone)
		values.Set("forecast_days", strconv.Itoa(p.cfg.ForecastDays))

		u := fmt.Sprintf("%s?%s", base, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}
}

// Open-Meteo payloads. Series are parallel arrays indexed like hourly.time;
// pointers keep nulls distinguishable from zero.
type openMeteoHeader struct {
	Timezone             string `json:"timezone"`
	TimezoneAbbreviation string `json:"timezone_abbreviation"`
	UTCOffsetSeconds     int    `json:"utc_offset_seconds"`
}

type forecastPayload struct {
	openMeteoHeader
	Hourly *struct {
		Time                     []string   `json:"time"`
		Temperature              []*float64 `json:"temperature_2m"`
		RelativeHumidity         []*float64 `json:"relative_humidity_2m"`
		ApparentTemperature      []*float64 `json:"apparent_temperature"`
		PrecipitationProbability []*float64 `json:"precipitation_probability"`
		Precipitation            []*float64 `json:"precipitation"`
		WeatherCode              []*int     `json:"weather_code"`
		CloudCover               []*float64 `json:"cloud_cover"`
		WindSpeed                []*float64 `json:"wind_speed_10m"`
		WindDirection            []*float64 `json:"wind_direction_10m"`
		UVIndex                  []*float64 `json:"uv_index"`
		IsDay                    []*int     `json:"is_day"`
	} `json:"hourly"`
	Daily *struct {
		Time                   []string   `json:"time"`
		WeatherCode            []*int     `json:"weather_code"`
		TemperatureMax         []*float64 `json:"temperature_2m_max"`
		TemperatureMin         []*float64 `json:"temperature_2m_min"`
		ApparentTemperatureMax []*float64 `json:"apparent_temperature_max"`
		ApparentTemperatureMin []*float64 `json:"apparent_temperature_min"`
		Sunrise                []string   `json:"sunrise"`
		Sunset                 []string   `json:"sunset"`
		UVIndexMax             []*float64 `json:"uv_index_max"`
		PrecipitationSum       []*float64 `json:"precipitation_sum"`
		RainSum                []*float64 `json:"rain_sum"`
		WindSpeedMax           []*float64 `json:"wind_speed_10m_max"`
		WindDirectionDominant  []*float64 `json:"wind_direction_10m_dominant"`
	} `json:"daily"`
}

type marinePayload struct {
	openMeteoHeader
	Hourly *struct {
		Time                  []string   `json:"time"`
		WaveHeight            []*float64 `json:"wave_height"`
		WaveDirection         []*float64 `json:"wave_direction"`
		WavePeriod            []*float64 `json:"wave_period"`
		SeaSurfaceTemperature []*float64 `json:"sea_surface_temperature"`
	} `json:"hourly"`
}

var (
	errMissingHourly = errors.New(`missing "hourly" section`)
	errMissingDaily  = errors.New(`missing "daily" section`)
)

func parseForecast(body []byte) (weather.Forecast, error) {
	var payload forecastPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return weather.Forecast{}, err
	}
	if payload.Hourly == nil {
		return weather.Forecast{}, errMissingHourly
	}
	if payload.Daily == nil {
		return weather.Forecast{}, errMissingDaily
	}

	tz := payload.location()
	h := payload.Hourly

	hourly := make([]weather.HourlySample, 0, len(h.Time))
	for i, raw := range h.Time {
		ts, err := parseLocalTime(raw, tz)
		if err != nil {
			return weather.Forecast{}, fmt.Errorf("hourly.time[%d]: %w", i, err)
		}
		hourly = append(hourly, weather.HourlySample{
			Time:                     ts,
			TemperatureC:             at(h.Temperature, i),
			ApparentTemperatureC:     at(h.ApparentTemperature, i),
			RelativeHumidityPct:      at(h.RelativeHumidity, i),
			PrecipitationProbability: at(h.PrecipitationProbability, i),
			PrecipitationMm:          at(h.Precipitation, i),
			UVIndex:                  at(h.UVIndex, i),
			CloudCoverPct:            at(h.CloudCover, i),
			WindSpeedKmh:             at(h.WindSpeed, i),
			WindDirectionDeg:         at(h.WindDirection, i),
			WeatherCode:              at(h.WeatherCode, i),
			IsDay:                    flag(at(h.IsDay, i)),
		})
	}

	d := payload.Daily
	daily := make([]weather.DailySample, 0, len(d.Time))
	for i, date := range d.Time {
		daily = append(daily, weather.DailySample{
			Date:                   date,
			WeatherCode:            at(d.WeatherCode, i),
			TemperatureMaxC:        at(d.TemperatureMax, i),
			TemperatureMinC:        at(d.TemperatureMin, i),
			ApparentTemperatureMax: at(d.ApparentTemperatureMax, i),
			ApparentTemperatureMin: at(d.ApparentTemperatureMin, i),
			Sunrise:                stringAt(d.Sunrise, i),
			Sunset:                 stringAt(d.Sunset, i),
			UVIndexMax:             at(d.UVIndexMax, i),
			PrecipitationSumMm:     at(d.PrecipitationSum, i),
			RainSumMm:              at(d.RainSum, i),
			WindSpeedMaxKmh:        at(d.WindSpeedMax, i),
			WindDirectionDominant:  at(d.WindDirectionDominant, i),
		})
	}

	return weather.Forecast{
		Timezone: payload.Timezone,
		Hourly:   hourly,
		Daily:    daily,
	}, nil
}

func parseMarine(body []byte) (weather.Marine, error) {
	var payload marinePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return weather.Marine{}, err
	}
	if payload.Hourly == nil {
		return weather.Marine{}, errMissingHourly
	}

	tz := payload.location()
	h := payload.Hourly

	hourly := make([]weather.MarineSample, 0, len(h.Time))
	for i, raw := range h.Time {
		ts, err := parseLocalTime(raw, tz)
		if err != nil {
			return weather.Marine{}, fmt.Errorf("hourly.time[%d]: %w", i, err)
		}
		hourly = append(hourly, weather.MarineSample{
			Time:             ts,
			WaveHeightM:      at(h.WaveHeight, i),
			WaveDirectionDeg: at(h.WaveDirection, i),
			WavePeriodS:      at(h.WavePeriod, i),
			SeaSurfaceTempC:  at(h.SeaSurfaceTemperature, i),
		})
	}

	return weather.Marine{Hourly: hourly}, nil
}

// location resolves the payload's timezone, falling back to its fixed UTC offset.
func (h openMeteoHeader) location() *time.Location {
	if h.Timezone != "" {
		if tz, err := time.LoadLocation(h.Timezone); err == nil {
			return tz
		}
	}
	name := h.TimezoneAbbreviation
	if name == "" {
		name = "UTC"
	}
	return time.FixedZone(name, h.UTCOffsetSeconds)
}

var localTimeLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
}

// parseLocalTime parses Open-Meteo's local ISO-8601 timestamps. Timestamps
// carrying their own offset keep it.
func parseLocalTime(s string, tz *time.Location) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	for _, layout := range localTimeLayouts {
		if ts, err := time.ParseInLocation(layout, s, tz); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// at returns the i-th element of a series, or nil when the series is shorter.
func at[T any](series []*T, i int) *T {
	if i < 0 || i >= len(series) {
		return nil
	}
	return series[i]
}

func stringAt(series []string, i int) string {
	if i < 0 || i >= len(series) {
		return ""
	}
	return series[i]
}

func flag(v *int) *bool {
	if v == nil {
		return nil
	}
	b := *v != 0
	return &b
}
