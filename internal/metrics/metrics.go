// Package metrics provides Prometheus metrics for the IDE server.
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
			Name: "ide_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ide_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// File store metrics
	storeOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ide_store_operations_total",
			Help: "Total file store operations",
		},
		[]string{"operation", "backend", "status"},
	)

	storeOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ide_store_operation_duration_seconds",
			Help:    "File store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "backend"},
	)

	storeRecordCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ide_store_records",
			Help: "Number of records in the file store",
		},
	)

	storageFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ide_storage_fallbacks_total",
			Help: "Times the store fell back to the in-memory backend",
		},
	)

	activeBackend = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ide_storage_backend_active",
			Help: "Active storage backend (1 for the backend in use)",
		},
		[]string{"backend"},
	)

	// Database metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ide_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	dbConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ide_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	// Shell metrics
	shellCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ide_shell_commands_total",
			Help: "Total shell commands executed",
		},
		[]string{"command", "status"},
	)

	terminalSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ide_terminal_sessions_active",
			Help: "Number of terminal sessions",
		},
	)

	// SSE metrics
	sseConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ide_sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	sseEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ide_sse_events_total",
			Help: "Total SSE events published",
		},
		[]string{"type"},
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

// RecordStoreOp records a file store operation.
func RecordStoreOp(operation, backend string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	storeOpsTotal.WithLabelValues(operation, backend, status).Inc()
	storeOpDuration.WithLabelValues(operation, backend).Observe(duration.Seconds())
}

// SetStoreRecordCount sets the stored record count gauge.
func SetStoreRecordCount(count int64) {
	storeRecordCount.Set(float64(count))
}

// RecordStorageFallback records a fallback to the in-memory backend.
func RecordStorageFallback() {
	storageFallbacksTotal.Inc()
}

// SetActiveBackend marks which storage backend is in use.
func SetActiveBackend(backend string) {
	activeBackend.Reset()
	activeBackend.WithLabelValues(backend).Set(1)
}

// RecordDBQuery records a database query duration.
func RecordDBQuery(query string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(query).Observe(duration.Seconds())
}

// SetDBConnectionsOpen sets the number of open database connections.
func SetDBConnectionsOpen(count int) {
	dbConnectionsOpen.Set(float64(count))
}

// RecordShellCommand records a shell command execution.
func RecordShellCommand(command string, exitCode int) {
	status := "success"
	if exitCode != 0 {
		status = "error"
	}
	shellCommandsTotal.WithLabelValues(command, status).Inc()
}

// SetTerminalSessions sets the terminal session gauge.
func SetTerminalSessions(count int64) {
	terminalSessionsActive.Set(float64(count))
}

// SetSSEConnectionsActive sets the number of active SSE connections.
func SetSSEConnectionsActive(count int64) {
	sseConnectionsActive.Set(float64(count))
}

// RecordSSEEvent records an SSE event publication.
func RecordSSEEvent(eventType string) {
	sseEventsTotal.WithLabelValues(eventType).Inc()
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

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
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
