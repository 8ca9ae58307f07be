// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeCommitted  = "committed"
	OutcomeRolledBack = "rolled_back"
	OutcomeFailed     = "failed"
	OutcomeRejected   = "rejected"

	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "users_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "users_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	UnitOfWorkTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "users_unit_of_work_total",
			Help: "Total number of storage units of work by outcome",
		},
		[]string{"operation", "outcome"},
	)

	UnitOfWorkDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "users_unit_of_work_duration_seconds",
			Help:    "Time from worker start to session release",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	UnitOfWorkWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "users_unit_of_work_wait_seconds",
			Help:    "Time a unit of work waited for a free worker",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	UnitOfWorkInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "users_unit_of_work_in_flight",
			Help: "Units of work currently holding a worker",
		},
	)

	RateLimitHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "users_rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"path"},
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "users_cache_lookups_total",
			Help: "User cache lookups by result",
		},
		[]string{"result"},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordUnitOfWork(operation, outcome string, duration float64) {
	UnitOfWorkTotal.WithLabelValues(operation, outcome).Inc()
	UnitOfWorkDuration.WithLabelValues(operation).Observe(duration)
}

func RecordUnitOfWorkWait(operation string, wait float64) {
	UnitOfWorkWait.WithLabelValues(operation).Observe(wait)
}

func RecordRejectedUnitOfWork(operation string) {
	UnitOfWorkTotal.WithLabelValues(operation, OutcomeRejected).Inc()
}

func RecordCacheLookup(result string) {
	CacheLookupsTotal.WithLabelValues(result).Inc()
}

func RecordRateLimitHit(path string) {
	RateLimitHitsTotal.WithLabelValues(path).Inc()
}
