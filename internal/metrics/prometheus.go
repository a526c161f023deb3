// Package metrics provides Prometheus metrics for the anomaly service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "weather_anomaly"

// Manager owns the collectors registered on one registry.
type Manager struct {
	registry *prometheus.Registry

	batchReadings  prometheus.Counter
	batchAnomalies prometheus.Counter
	batchDuration  prometheus.Histogram

	liveOutcomes  *prometheus.CounterVec
	liveAnomalies prometheus.Counter
	liveDuration  prometheus.Histogram

	providerRequests *prometheus.CounterVec
	breakerTrips     *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
}

// Custom registry to avoid default Go metrics.
var global = NewManager(prometheus.NewRegistry()) //nolint:gochecknoglobals // singleton metrics manager

// NewManager registers all collectors on registry.
func NewManager(registry *prometheus.Registry) *Manager {
	auto := promauto.With(registry)
	m := &Manager{registry: registry}

	m.batchReadings = auto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "batch",
		Name:      "readings_scored_total",
		Help:      "Historical readings classified by batch scoring",
	})
	m.batchAnomalies = auto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "batch",
		Name:      "anomalies_total",
		Help:      "Historical readings flagged as anomalous",
	})
	m.batchDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "batch",
		Name:      "duration_seconds",
		Help:      "Duration of a batch scoring pass",
		Buckets:   prometheus.DefBuckets,
	})

	m.liveOutcomes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "live",
		Name:      "outcomes_total",
		Help:      "Per-city live check outcomes by final state and error kind",
	}, []string{"state", "error_kind"})
	m.liveAnomalies = auto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "live",
		Name:      "anomalies_total",
		Help:      "Live readings flagged as anomalous",
	})
	m.liveDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "live",
		Name:      "run_duration_seconds",
		Help:      "Duration of a live check run",
		Buckets:   prometheus.DefBuckets,
	})

	m.providerRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "requests_total",
		Help:      "Outbound provider requests by operation and result",
	}, []string{"op", "result"})
	m.breakerTrips = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "circuit_trips_total",
		Help:      "Per-city circuit breakers opened, by endpoint",
	}, []string{"endpoint"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "API requests by route, method and status code",
	}, []string{"route", "method", "status_code"})

	return m
}

// Handler exposes the global registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(global.registry, promhttp.HandlerOpts{})
}

// RecordBatch records one batch scoring pass.
func RecordBatch(readings, anomalies int, seconds float64) {
	global.batchReadings.Add(float64(readings))
	global.batchAnomalies.Add(float64(anomalies))
	global.batchDuration.Observe(seconds)
}

// RecordLiveOutcome records the final state of one city in a live run.
func RecordLiveOutcome(state, errorKind string, anomalous bool) {
	global.liveOutcomes.WithLabelValues(state, errorKind).Inc()
	if anomalous {
		global.liveAnomalies.Inc()
	}
}

// RecordLiveRun records the duration of a live check run.
func RecordLiveRun(seconds float64) {
	global.liveDuration.Observe(seconds)
}

// RecordProviderRequest counts one outbound provider request.
func RecordProviderRequest(op, result string) {
	global.providerRequests.WithLabelValues(op, result).Inc()
}

// RecordBreakerTrip counts a circuit breaker of endpoint opening.
func RecordBreakerTrip(endpoint string) {
	global.breakerTrips.WithLabelValues(endpoint).Inc()
}

// RecordHTTPRequest counts one API request.
func RecordHTTPRequest(route, method, statusCode string) {
	global.httpRequests.WithLabelValues(route, method, statusCode).Inc()
}
