package weather

import (
	"math"
	"time"
)

// Daytime window (local hour of day, inclusive) and scoring horizon.
const (
	DaytimeStartHour = 6
	DaytimeEndHour   = 20
	scoringHorizon   = 24
)

// Sentinel values used when a sample field is missing or out of range.
const (
	sentinelTemperatureC = 15.0
	sentinelPrecipPct    = 100.0
	sentinelUVIndex      = 10.0
	sentinelCloudPct     = 100.0
	sentinelWindKmh      = 30.0
)

// HourBreakdown holds the five capped sub-scores for one hour.
type HourBreakdown struct {
	Temperature   float64 `json:"temperature"`
	Precipitation float64 `json:"precipitation"`
	UV            float64 `json:"uv"`
	CloudCover    float64 `json:"cloudCover"`
	Wind          float64 `json:"wind"`
}

// Total returns the sum of all sub-scores.
func (b HourBreakdown) Total() float64 {
	return b.Temperature + b.Precipitation + b.UV + b.CloudCover + b.Wind
}

// Score selects the best daytime hour of the first forecast day and returns it
// together with its score rounded to one decimal. Ties keep the earliest hour.
// It returns (nil, 0) when no daytime hour scores above zero.
// Marine samples are accepted for completeness but do not contribute.
func Score(forecast []HourlySample, _ []MarineSample) (*time.Time, float64) {
	var (
		bestScore float64
		bestHour  *time.Time
	)

	n := len(forecast)
	if n > scoringHorizon {
		n = scoringHorizon
	}

	for i := 0; i < n; i++ {
		sample := forecast[i]
		if sample.Time.IsZero() {
			continue
		}
		hour := sample.Time.Hour()
		if hour < DaytimeStartHour || hour > DaytimeEndHour {
			continue
		}

		score := ScoreHour(sample).Total()
		if score > bestScore {
			bestScore = score
			t := sample.Time
			bestHour = &t
		}
	}

	return bestHour, math.Round(bestScore*10) / 10
}

// ScoreHour computes the sub-scores for a single sample, substituting
// sentinel values for missing or out-of-range fields.
func ScoreHour(s HourlySample) HourBreakdown {
	temp := valueOr(s.TemperatureC, sentinelTemperatureC, -90, 60)
	precip := valueOr(s.PrecipitationProbability, sentinelPrecipPct, 0, 100)
	uv := valueOr(s.UVIndex, sentinelUVIndex, 0, math.MaxFloat64)
	clouds := valueOr(s.CloudCoverPct, sentinelCloudPct, 0, 100)
	wind := valueOr(s.WindSpeedKmh, sentinelWindKmh, 0, math.MaxFloat64)

	return HourBreakdown{
		Temperature:   temperatureScore(temp),
		Precipitation: precipitationScore(precip),
		UV:            uvScore(uv),
		CloudCover:    cloudScore(clouds),
		Wind:          windScore(wind),
	}
}

func valueOr(v *float64, sentinel, lo, hi float64) float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) || *v < lo || *v > hi {
		return sentinel
	}
	return *v
}

func temperatureScore(t float64) float64 {
	switch {
	case t >= 20 && t <= 28:
		return 30
	case t >= 18 && t <= 32:
		return 20
	case t >= 15 && t <= 35:
		return 10
	default:
		return 0
	}
}

func precipitationScore(p float64) float64 {
	switch {
	case p <= 10:
		return 25
	case p <= 30:
		return 15
	case p <= 50:
		return 5
	default:
		return 0
	}
}

// uvScore prefers moderate UV; anything above 8 scores nothing.
func uvScore(uv float64) float64 {
	switch {
	case uv >= 3 && uv <= 6:
		return 20
	case uv >= 1 && uv <= 8:
		return 15
	case uv < 1:
		return 5
	default:
		return 0
	}
}

func cloudScore(c float64) float64 {
	switch {
	case c <= 30:
		return 15
	case c <= 60:
		return 10
	case c <= 80:
		return 5
	default:
		return 0
	}
}

func windScore(w float64) float64 {
	switch {
	case w >= 5 && w <= 15:
		return 10
	case w <= 25:
		return 5
	default:
		return 0
	}
}
