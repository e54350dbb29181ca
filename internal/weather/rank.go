package weather

import "sort"

// NewRecommendation builds the ranked view of a successful snapshot.
func NewRecommendation(loc Location, snap Snapshot) Recommendation {
	rec := Recommendation{
		LocationID: loc.ID,
		Name:       loc.Name,
		Score:      snap.Score,
		BestHour:   snap.BestHour,
		BestTime:   snap.BestTime(),
	}

	if len(snap.Forecast.Hourly) > 0 {
		first := snap.Forecast.Hourly[0]
		rec.CurrentTemp = first.TemperatureC
		if first.WeatherCode != nil {
			rec.CurrentWeather = DescribeCode(*first.WeatherCode)
		}
	}

	return rec
}

// FailedRecommendation builds the ranked view of a location whose pipeline failed.
func FailedRecommendation(loc Location, err error) Recommendation {
	return Recommendation{
		LocationID: loc.ID,
		Name:       loc.Name,
		Score:      0,
		Error:      err.Error(),
	}
}

// Rank orders recommendations by score descending. Equal scores keep input
// order, except that failures sort after successes. When every score is zero
// the input order is returned unchanged.
func Rank(recs []Recommendation) []Recommendation {
	out := make([]Recommendation, len(recs))
	copy(out, recs)

	allZero := true
	for _, r := range out {
		if r.Score != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return out
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return !out[i].Failed() && out[j].Failed()
	})
	return out
}
