package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Cache metrics, labelled by key kind (status, attributes, monitor, ...)
	CacheRequests *prometheus.CounterVec
	CacheStores   *prometheus.CounterVec
	CacheErrors   *prometheus.CounterVec

	// Backend metrics
	BackendRequests *prometheus.CounterVec
	BackendDuration *prometheus.HistogramVec
	BackendRetries  *prometheus.CounterVec

	// View metrics
	ViewDuration *prometheus.HistogramVec
	ViewFailures *prometheus.CounterVec
	ViewPackages *prometheus.GaugeVec

	// Divergence metrics
	DivergenceClassifications *prometheus.CounterVec

	// Records skipped because they could not be parsed
	MalformedRecords *prometheus.CounterVec

	// Warmer metrics
	WarmCycles prometheus.Counter
	WarmErrors prometheus.Counter
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// GetMetrics returns the singleton metrics instance
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			CacheRequests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pkgstatus_cache_requests_total",
					Help: "Total number of cache lookups by key kind and result",
				},
				[]string{"kind", "result"}, // hit, miss, discard
			),
			CacheStores: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pkgstatus_cache_stores_total",
					Help: "Total number of values written to the cache",
				},
				[]string{"kind"},
			),
			CacheErrors: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pkgstatus_cache_errors_total",
					Help: "Total number of cache store failures",
				},
				[]string{"kind", "op"},
			),

			BackendRequests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pkgstatus_backend_requests_total",
					Help: "Total number of build backend requests by endpoint and outcome",
				},
				[]string{"endpoint", "outcome"},
			),
			BackendDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "pkgstatus_backend_request_duration_seconds",
					Help:    "Duration of build backend requests in seconds",
					Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
				},
				[]string{"endpoint"},
			),
			BackendRetries: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pkgstatus_backend_retries_total",
					Help: "Total number of retried build backend requests",
				},
				[]string{"endpoint"},
			),

			ViewDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "pkgstatus_view_duration_seconds",
					Help:    "Duration of view computations in seconds",
					Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
				},
				[]string{"view"}, // status, monitor, summary, package
			),
			ViewFailures: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pkgstatus_view_failures_total",
					Help: "Total number of view computations that failed",
				},
				[]string{"view"},
			),
			ViewPackages: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "pkgstatus_view_packages",
					Help: "Number of packages in the most recent view per project",
				},
				[]string{"view", "project"},
			),

			DivergenceClassifications: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pkgstatus_divergence_classifications_total",
					Help: "Total number of devel divergence classifications computed",
				},
				[]string{"result"}, // none, different_changes, different_sources, ambiguous
			),

			MalformedRecords: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pkgstatus_malformed_records_total",
					Help: "Total number of backend records skipped because they could not be parsed",
				},
				[]string{"record"},
			),

			WarmCycles: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pkgstatus_warm_cycles_total",
				Help: "Total number of cache warming cycles",
			}),
			WarmErrors: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pkgstatus_warm_errors_total",
				Help: "Total number of projects that failed to warm",
			}),
		}
	})
	return metricsInstance
}
