// Package metrics provides Prometheus metrics for the fetch, score and cache pipeline.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the pipeline's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	upstreamRequestsTotal *prometheus.CounterVec
	upstreamDuration      *prometheus.HistogramVec
	cacheLookupsTotal     *prometheus.CounterVec
	pipelineFailuresTotal *prometheus.CounterVec
	locationScore         *prometheus.GaugeVec
}

// New creates the collectors and registers them with registry.
func New(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		upstreamRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beach_upstream_requests_total",
				Help: "Total number of upstream feed requests",
			},
			[]string{"feed", "status_code"},
		),
		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "beach_upstream_request_duration_seconds",
				Help:    "Time taken by upstream feed requests",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"feed"},
		),
		cacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beach_cache_lookups_total",
				Help: "Total number of cache lookups by result",
			},
			[]string{"result"},
		),
		pipelineFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beach_pipeline_failures_total",
				Help: "Total number of failed location pipelines by error kind",
			},
			[]string{"kind"},
		),
		locationScore: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "beach_location_score",
				Help: "Most recently computed suitability score per location",
			},
			[]string{"location"},
		),
	}

	for _, c := range []prometheus.Collector{
		m.upstreamRequestsTotal,
		m.upstreamDuration,
		m.cacheLookupsTotal,
		m.pipelineFailuresTotal,
		m.locationScore,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveUpstream records one upstream request. status is 0 on transport failure.
func (m *Metrics) ObserveUpstream(feed string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.upstreamRequestsTotal.WithLabelValues(feed, strconv.Itoa(status)).Inc()
	m.upstreamDuration.WithLabelValues(feed).Observe(elapsed.Seconds())
}

// ObserveCacheLookup records a cache hit or miss.
func (m *Metrics) ObserveCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveFailure records a failed location pipeline.
func (m *Metrics) ObserveFailure(kind string) {
	if m == nil {
		return
	}
	m.pipelineFailuresTotal.WithLabelValues(kind).Inc()
}

// ObserveScore records the latest score of a location.
func (m *Metrics) ObserveScore(locationID string, score float64) {
	if m == nil {
		return
	}
	m.locationScore.WithLabelValues(locationID).Set(score)
}
