// Package metrics provides Prometheus metrics for the FileSurf server.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filesurf_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filesurf_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Index metrics
	indexMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filesurf_index_mutations_total",
			Help: "Index mutations by operation and result",
		},
		[]string{"op", "result"},
	)

	indexSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "filesurf_index_entries",
			Help: "Number of files and folders in the path index",
		},
	)

	// Watcher metrics
	watcherTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filesurf_watcher_ticks_total",
			Help: "Total change watcher scans",
		},
	)

	watcherChangesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filesurf_watcher_changes_total",
			Help: "Content changes detected by change watchers",
		},
	)

	// Session metrics
	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "filesurf_sessions_active",
			Help: "Number of mounted explorer sessions",
		},
	)

	// Push channel metrics
	sseConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "filesurf_sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	wsConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "filesurf_ws_connections_active",
			Help: "Number of active session websockets",
		},
	)

	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filesurf_events_total",
			Help: "Index events published",
		},
		[]string{"type"},
	)
)

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordMutation records an index mutation attempt.
func RecordMutation(op string, success bool) {
	result := "success"
	if !success {
		result = "error"
	}
	indexMutationsTotal.WithLabelValues(op, result).Inc()
}

// SetIndexSize sets the number of index entries.
func SetIndexSize(count int) {
	indexSize.Set(float64(count))
}

// RecordWatcherTick records one watcher scan and whether it found a change.
func RecordWatcherTick(changed bool) {
	watcherTicksTotal.Inc()
	if changed {
		watcherChangesTotal.Inc()
	}
}

// SetSessionsActive sets the number of mounted sessions.
func SetSessionsActive(count int) {
	sessionsActive.Set(float64(count))
}

// SetSSEConnectionsActive sets the number of active SSE connections.
func SetSSEConnectionsActive(count int64) {
	sseConnectionsActive.Set(float64(count))
}

// AddWSConnections adjusts the websocket connection gauge.
func AddWSConnections(delta int) {
	wsConnectionsActive.Add(float64(delta))
}

// RecordEvent records an event publication.
func RecordEvent(eventType string) {
	eventsTotal.WithLabelValues(eventType).Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
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

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijacking not supported")
	}
	return h.Hijack()
}

// RouteLabel trims a request path to its first three segments so file paths
// and session IDs do not explode label cardinality.
func RouteLabel(path string) string {
	segs := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 4)
	if len(segs) > 3 {
		segs = segs[:3]
	}
	return "/" + strings.Join(segs, "/")
}

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		RecordHTTPRequest(r.Method, RouteLabel(r.URL.Path), rw.statusCode, time.Since(start))
	})
}
