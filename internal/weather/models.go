package weather

import (
	"time"
)

// FreshnessWindow is the maximum age of a cached snapshot before it is refetched.
const FreshnessWindow = 30 * time.Minute

// Location represents a fixed beach for which we compute recommendations.
type Location struct {
	ID        string  `json:"id" bson:"id" validate:"required"`
	Name      string  `json:"name" bson:"name" validate:"required"`
	Latitude  float64 `json:"latitude" bson:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" bson:"longitude" validate:"gte=-180,lte=180"`
}

// Key returns a canonical string key for indexing this location in stores.
func (l Location) Key() string {
	return l.ID
}

// HourlySample is one hour of the atmospheric forecast feed.
// Nil fields were absent (or null) in the upstream payload.
type HourlySample struct {
	Time                     time.Time `json:"time" bson:"time"`
	TemperatureC             *float64  `json:"temperatureC" bson:"temperature_c"`
	ApparentTemperatureC     *float64  `json:"apparentTemperatureC,omitempty" bson:"apparent_temperature_c,omitempty"`
	RelativeHumidityPct      *float64  `json:"relativeHumidityPct,omitempty" bson:"relative_humidity_pct,omitempty"`
	PrecipitationProbability *float64  `json:"precipitationProbabilityPct" bson:"precipitation_probability_pct"`
	PrecipitationMm          *float64  `json:"precipitationMm,omitempty" bson:"precipitation_mm,omitempty"`
	UVIndex                  *float64  `json:"uvIndex" bson:"uv_index"`
	CloudCoverPct            *float64  `json:"cloudCoverPct" bson:"cloud_cover_pct"`
	WindSpeedKmh             *float64  `json:"windSpeedKmh" bson:"wind_speed_kmh"`
	WindDirectionDeg         *float64  `json:"windDirectionDeg,omitempty" bson:"wind_direction_deg,omitempty"`
	WeatherCode              *int      `json:"weatherCode,omitempty" bson:"weather_code,omitempty"`
	IsDay                    *bool     `json:"isDay,omitempty" bson:"is_day,omitempty"`
}

// DailySample is one day of the forecast feed's daily summaries.
type DailySample struct {
	Date                   string   `json:"date" bson:"date"`
	WeatherCode            *int     `json:"weatherCode,omitempty" bson:"weather_code,omitempty"`
	TemperatureMaxC        *float64 `json:"temperatureMaxC,omitempty" bson:"temperature_max_c,omitempty"`
	TemperatureMinC        *float64 `json:"temperatureMinC,omitempty" bson:"temperature_min_c,omitempty"`
	ApparentTemperatureMax *float64 `json:"apparentTemperatureMaxC,omitempty" bson:"apparent_temperature_max_c,omitempty"`
	ApparentTemperatureMin *float64 `json:"apparentTemperatureMinC,omitempty" bson:"apparent_temperature_min_c,omitempty"`
	Sunrise                string   `json:"sunrise,omitempty" bson:"sunrise,omitempty"`
	Sunset                 string   `json:"sunset,omitempty" bson:"sunset,omitempty"`
	UVIndexMax             *float64 `json:"uvIndexMax,omitempty" bson:"uv_index_max,omitempty"`
	PrecipitationSumMm     *float64 `json:"precipitationSumMm,omitempty" bson:"precipitation_sum_mm,omitempty"`
	RainSumMm              *float64 `json:"rainSumMm,omitempty" bson:"rain_sum_mm,omitempty"`
	WindSpeedMaxKmh        *float64 `json:"windSpeedMaxKmh,omitempty" bson:"wind_speed_max_kmh,omitempty"`
	WindDirectionDominant  *float64 `json:"windDirectionDominantDeg,omitempty" bson:"wind_direction_dominant_deg,omitempty"`
}

// MarineSample is one hour of the marine feed.
type MarineSample struct {
	Time             time.Time `json:"time" bson:"time"`
	WaveHeightM      *float64  `json:"waveHeightM" bson:"wave_height_m"`
	WaveDirectionDeg *float64  `json:"waveDirectionDeg" bson:"wave_direction_deg"`
	WavePeriodS      *float64  `json:"wavePeriodS" bson:"wave_period_s"`
	SeaSurfaceTempC  *float64  `json:"seaSurfaceTempC" bson:"sea_surface_temp_c"`
}

// Forecast is the parsed atmospheric feed for one location.
// Hourly entries are ordered by Time ascending.
type Forecast struct {
	Timezone string         `json:"timezone" bson:"timezone"`
	Hourly   []HourlySample `json:"hourly" bson:"hourly"`
	Daily    []DailySample  `json:"daily" bson:"daily"`
}

// Marine is the parsed marine feed for one location.
type Marine struct {
	Hourly []MarineSample `json:"hourly" bson:"hourly"`
}

// Feeds bundles both upstream feeds fetched for one location.
type Feeds struct {
	Forecast Forecast
	Marine   Marine
}

// Snapshot is the immutable result of one successful fetch and score cycle.
type Snapshot struct {
	ID         string     `json:"id" bson:"id"`
	LocationID string     `json:"locationId" bson:"location_id"`
	FetchedAt  time.Time  `json:"fetchedAt" bson:"fetched_at"`
	Forecast   Forecast   `json:"forecast" bson:"forecast"`
	Marine     Marine     `json:"marine" bson:"marine"`
	BestHour   *time.Time `json:"bestHour" bson:"best_hour"`
	Score      float64    `json:"score" bson:"score"`
}

// BestTime formats the best hour as local "15:04", or "" when there is none.
func (s Snapshot) BestTime() string {
	if s.BestHour == nil {
		return ""
	}
	return s.BestHour.Format("15:04")
}

// CacheEntry is one stored fetch event.
type CacheEntry struct {
	LocationID string    `json:"locationId" bson:"location_id"`
	StoredAt   time.Time `json:"storedAt" bson:"stored_at"`
	Snapshot   Snapshot  `json:"snapshot" bson:"snapshot"`
}

// Recommendation is the ranked view of one location. It is derived on each
// request and never stored.
type Recommendation struct {
	LocationID     string     `json:"beach"`
	Name           string     `json:"name"`
	Score          float64    `json:"score"`
	BestHour       *time.Time `json:"bestHour,omitempty"`
	BestTime       string     `json:"best_time,omitempty"`
	CurrentTemp    *float64   `json:"current_temp,omitempty"`
	CurrentWeather string     `json:"current_weather,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// Failed reports whether the recommendation carries an error instead of a score.
func (r Recommendation) Failed() bool {
	return r.Error != ""
}
