package weather

var weatherCodes = map[int]string{
	0:  "Sunny",
	1:  "Mostly sunny",
	2:  "Partly cloudy",
	3:  "Cloudy",
	45: "Fog",
	48: "Freezing fog",
	51: "Light drizzle",
	53: "Drizzle",
	55: "Dense drizzle",
	61: "Light rain",
	63: "Rain",
	65: "Heavy rain",
	71: "Light snowfall",
	73: "Snowfall",
	75: "Heavy snowfall",
	77: "Snow grains",
	80: "Light rain showers",
	81: "Rain showers",
	82: "Heavy rain showers",
	95: "Thunderstorm",
	96: "Thunderstorm with hail",
	99: "Severe thunderstorm with hail",
}

// DescribeCode maps a WMO weather code to a short description.
func DescribeCode(code int) string {
	if d, ok := weatherCodes[code]; ok {
		return d
	}
	return "Unknown"
}
