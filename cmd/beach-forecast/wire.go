package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/i474232898/beach-weather-recommender/internal/config"
	"github.com/i474232898/beach-weather-recommender/internal/logger"
	"github.com/i474232898/beach-weather-recommender/internal/metrics"
	"github.com/i474232898/beach-weather-recommender/internal/store"
	"github.com/i474232898/beach-weather-recommender/internal/weather"
	"github.com/i474232898/beach-weather-recommender/internal/weather/providers"
)

// components is everything a command needs, built from one AppConfig.
type components struct {
	cfg      *config.AppConfig
	log      *logrus.Logger
	registry *prometheus.Registry
	service  *weather.Service
	close    func(context.Context) error
}

func build(ctx context.Context) (*components, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	// Cache persistence.
	var (
		st      weather.Store
		closeFn = func(context.Context) error { return nil }
	)
	switch cfg.StoreBackend {
	case config.StoreMongo:
		mongoStore, err := store.NewMongoStore(ctx, store.MongoConfig{
			URI:        cfg.MongoURI,
			Database:   cfg.MongoDatabase,
			Collection: cfg.MongoCollection,
			MaxHistory: cfg.StoreMaxHistory,
			MaxAge:     cfg.StoreMaxAge,
		})
		if err != nil {
			return nil, err
		}
		st, closeFn = mongoStore, mongoStore.Close
	default:
		st = store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)
	}
	log.WithField("backend", cfg.StoreBackend).Info("cache store ready")

	// Shared HTTP client for outbound feed calls; the deadline is applied per call.
	provider := providers.NewOpenMeteoProvider(
		providers.HTTPClientConfig{
			Client:  &http.Client{},
			Timeout: cfg.HTTPTimeout,
			Limiter: rate.NewLimiter(rate.Limit(cfg.UpstreamRPS), cfg.UpstreamBurst),
			Metrics: m,
		},
		providers.OpenMeteoConfig{
			ForecastURL:  cfg.ForecastURL,
			MarineURL:    cfg.MarineURL,
			Timezone:     cfg.Timezone,
			ForecastDays: cfg.ForecastDays,
		},
	)

	cache := weather.NewCache(st, provider,
		weather.WithCacheLogger(log.WithField("component", "cache")),
		weather.WithCacheMetrics(m),
	)

	service := weather.NewService(cfg.Locations, cache,
		weather.WithLogger(log.WithField("component", "service")),
		weather.WithMetrics(m),
		weather.WithMaxConcurrency(cfg.MaxConcurrency),
	)

	return &components{
		cfg:      cfg,
		log:      log,
		registry: registry,
		service:  service,
		close:    closeFn,
	}, nil
}
