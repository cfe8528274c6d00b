// Package metrics provides Prometheus metrics for the optimizer worker.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// JobsTotal counts handled optimization requests by final status.
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "optimizer",
			Name:      "jobs_total",
			Help:      "Total number of optimization jobs",
		},
		[]string{"status"},
	)

	// OutcomesTotal counts optimizer outcomes (resized, converted, fallback, ...).
	OutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "optimizer",
			Name:      "outcomes_total",
			Help:      "Total number of optimization results by outcome",
		},
		[]string{"outcome"},
	)

	// Duration measures the optimize call.
	Duration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "optimizer",
			Name:      "duration_seconds",
			Help:      "Duration of image optimization in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	// BytesSaved accumulates original minus optimized size.
	BytesSaved = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "optimizer",
			Name:      "bytes_saved_total",
			Help:      "Total bytes saved by optimization",
		},
	)

	// CacheLookups counts result cache lookups by result (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "optimizer",
			Name:      "cache_lookups_total",
			Help:      "Total number of result cache lookups",
		},
		[]string{"result"},
	)

	// ErrorsTotal counts errors by stage and failure type.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "optimizer",
			Name:      "errors_total",
			Help:      "Total number of errors",
		},
		[]string{"stage", "failure_type"},
	)
)

// RecordOptimization records one optimize call.
func RecordOptimization(outcome string, originalSize, finalSize int64, seconds float64) {
	OutcomesTotal.WithLabelValues(outcome).Inc()
	Duration.WithLabelValues(outcome).Observe(seconds)
	if saved := originalSize - finalSize; saved > 0 {
		BytesSaved.Add(float64(saved))
	}
}

// RecordJob records a finished job.
func RecordJob(status string) {
	JobsTotal.WithLabelValues(status).Inc()
}

// RecordCacheLookup records a cache lookup result.
func RecordCacheLookup(result string) {
	CacheLookups.WithLabelValues(result).Inc()
}

// RecordError records an error.
func RecordError(stage, failureType string) {
	ErrorsTotal.WithLabelValues(stage, failureType).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
