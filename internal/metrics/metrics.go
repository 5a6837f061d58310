// Package metrics provides Prometheus metrics for the unidrive indexer.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unidrive_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "unidrive_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Index metrics
	rebuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "unidrive_index_rebuild_duration_seconds",
			Help:    "Index rebuild duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"result"},
	)

	snapshotEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "unidrive_snapshot_entries",
			Help: "Number of entries in the published index snapshot",
		},
	)

	snapshotAge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "unidrive_snapshot_age_seconds",
			Help: "Age of the published index snapshot",
		},
	)

	// Remote client metrics
	remoteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unidrive_remote_requests_total",
			Help: "Total remote drive API requests",
		},
		[]string{"operation", "status"},
	)

	remoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "unidrive_remote_request_duration_seconds",
			Help:    "Remote drive API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Search metrics
	searchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "unidrive_searches_total",
			Help: "Total search queries served",
		},
	)

	searchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "unidrive_search_duration_seconds",
			Help:    "Search duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Store metrics
	storeOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unidrive_store_operations_total",
			Help: "Total persistence store operations",
		},
		[]string{"backend", "operation", "status"},
	)

	// Token codec metrics
	tokenTableSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "unidrive_token_table_size",
			Help: "Number of live token mappings",
		},
	)

	tokenCollisionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "unidrive_token_collisions_total",
			Help: "Total token digest collisions resolved by salting",
		},
	)

	tokenMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "unidrive_token_misses_total",
			Help: "Total decode lookups for unknown tokens",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordRebuild records an index rebuild.
func RecordRebuild(duration time.Duration, success bool) {
	result := "success"
	if !success {
		result = "error"
	}
	rebuildDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// SetSnapshotEntries sets the published snapshot entry count.
func SetSnapshotEntries(count int) {
	snapshotEntries.Set(float64(count))
}

// SetSnapshotAge sets the published snapshot age.
func SetSnapshotAge(age time.Duration) {
	snapshotAge.Set(age.Seconds())
}

// RecordRemoteRequest records a remote drive API request.
func RecordRemoteRequest(operation string, status int, duration time.Duration) {
	remoteRequestsTotal.WithLabelValues(operation, strconv.Itoa(status)).Inc()
	remoteRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSearch records a search query.
func RecordSearch(duration time.Duration) {
	searchesTotal.Inc()
	searchDuration.Observe(duration.Seconds())
}

// RecordStoreOperation records a persistence store operation.
func RecordStoreOperation(backend, operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	storeOperationsTotal.WithLabelValues(backend, operation, status).Inc()
}

// SetTokenTableSize sets the live token mapping count.
func SetTokenTableSize(count int) {
	tokenTableSize.Set(float64(count))
}

// RecordTokenCollision records a resolved digest collision.
func RecordTokenCollision() {
	tokenCollisionsTotal.Inc()
}

// RecordTokenMiss records a decode miss.
func RecordTokenMiss() {
	tokenMissesTotal.Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		RecordHTTPRequest(r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}
