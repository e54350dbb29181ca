package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/beach-weather-recommender/internal/weather"
	"github.com/i474232898/beach-weather-recommender/internal/weather/providers"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"
)

// DefaultLocations is the fixed beach registry (Rügen, Baltic Sea).
var DefaultLocations = []weather.Location{
	{ID: "Binz", Name: "Binz", Latitude: 54.40, Longitude: 13.61},
	{ID: "Sellin", Name: "Sellin", Latitude: 54.38, Longitude: 13.69},
	{ID: "Göhren", Name: "Göhren", Latitude: 54.34, Longitude: 13.74},
	{ID: "Baabe", Name: "Baabe", Latitude: 54.36, Longitude: 13.71},
}

type AppConfig struct {
	Port string

	// Upstream feeds.
	ForecastURL   string
	MarineURL     string
	Timezone      string
	ForecastDays  int
	HTTPTimeout   time.Duration // per upstream call
	UpstreamRPS   float64
	UpstreamBurst int

	// Locations to track. Immutable after Load.
	Locations []weather.Location

	// Cache persistence.
	StoreBackend    string
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	StoreMaxHistory int           // max number of entries per location (0 = unlimited)
	StoreMaxAge     time.Duration // max age of entries (0 = unlimited)

	// RefreshInterval controls the background warm-up; 0 disables it.
	RefreshInterval time.Duration

	// StaleOnError lets the single-location endpoint serve stale data when a fetch fails.
	StaleOnError bool

	MaxConcurrency int

	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := &AppConfig{
		Port:            getenvDefault("PORT", "8080"),
		ForecastURL:     getenvDefault("FORECAST_URL", providers.DefaultForecastURL),
		MarineURL:       getenvDefault("MARINE_URL", providers.DefaultMarineURL),
		Timezone:        getenvDefault("TIMEZONE", providers.DefaultTimezone),
		StoreBackend:    strings.ToLower(getenvDefault("STORE_BACKEND", StoreMemory)),
		MongoURI:        getenvDefault("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:   getenvDefault("MONGO_DATABASE", "strandwetter"),
		MongoCollection: getenvDefault("MONGO_COLLECTION", "weather_data"),
		LogLevel:        getenvDefault("LOG_LEVEL", "info"),
		LogFormat:       getenvDefault("LOG_FORMAT", "json"),
		Locations:       append([]weather.Location(nil), DefaultLocations...),
	}

	var err error
	if cfg.ForecastDays, err = getenvInt("FORECAST_DAYS", providers.DefaultForecastDays); err != nil {
		return nil, err
	}
	if cfg.UpstreamBurst, err = getenvInt("UPSTREAM_BURST", 4); err != nil {
		return nil, err
	}
	// 24h at the 30-minute freshness window
	if cfg.StoreMaxHistory, err = getenvInt("STORE_MAX_HISTORY", 48); err != nil {
		return nil, err
	}
	if cfg.MaxConcurrency, err = getenvInt("MAX_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if cfg.StaleOnError, err = getenvBool("STALE_ON_ERROR", false); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", "24h"); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = getenvDuration("REFRESH_INTERVAL", "0"); err != nil {
		return nil, err
	}

	rps, err := strconv.ParseFloat(getenvDefault("UPSTREAM_RPS", "5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid UPSTREAM_RPS: %w", err)
	}
	cfg.UpstreamRPS = rps

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the backend choice, the upstream limits and the location registry.
func (c *AppConfig) Validate() error {
	switch c.StoreBackend {
	case StoreMemory, StoreMongo:
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q: must be %q or %q", c.StoreBackend, StoreMemory, StoreMongo)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if c.UpstreamRPS <= 0 {
		return fmt.Errorf("UPSTREAM_RPS must be positive")
	}
	if c.UpstreamBurst <= 0 {
		return fmt.Errorf("UPSTREAM_BURST must be positive")
	}
	return ValidateLocations(c.Locations)
}

var validate = validator.New()

// ValidateLocations ensures every location is well-formed and ids are unique.
func ValidateLocations(locs []weather.Location) error {
	if len(locs) == 0 {
		return fmt.Errorf("no locations configured")
	}
	if err := validate.Var(locs, "unique=ID"); err != nil {
		return fmt.Errorf("location ids must be unique: %w", err)
	}
	for _, l := range locs {
		if err := validate.Struct(l); err != nil {
			return fmt.Errorf("invalid location %q: %w", l.ID, err)
		}
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
