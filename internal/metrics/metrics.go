// Package metrics provides Prometheus instrumentation for the price feed.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RecordsServed counts price records handed to clients, by channel
	// (latest, bulk, ws, kafka).
	RecordsServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricefeed_records_served_total",
		Help: "Total price records served",
	}, []string{"channel"})

	// RecordsCorrupted counts served records that carry a corruption.
	RecordsCorrupted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricefeed_records_corrupted_total",
		Help: "Served price records with injected corruption",
	}, []string{"kind"})

	// ActiveEpisodes tracks manipulation episodes held by the price model.
	ActiveEpisodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pricefeed_active_manipulation_episodes",
		Help: "Number of manipulation episodes currently tracked",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pricefeed_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// BulkStreamDuration tracks how long a bulk stream takes end to end.
	BulkStreamDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pricefeed_bulk_stream_duration_seconds",
		Help:    "Bulk feed stream duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	// ChaosEvents counts simulated upstream misbehaviour by kind
	// (rate_limited, outage).
	ChaosEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricefeed_chaos_events_total",
		Help: "Simulated rate limits and outages",
	}, []string{"kind"})

	// SeededRecords counts records written by the seeding job.
	SeededRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricefeed_seeded_records_total",
		Help: "Price records inserted by the seeding job",
	})

	// PublishedMessages counts Kafka publishes by result (ok, error).
	PublishedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricefeed_published_messages_total",
		Help: "Price records published to Kafka",
	}, []string{"result"})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricefeed_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pricefeed_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.15, 0.25, 0.5, 1.0, 5, 30},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := routePattern(r)
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// routePattern uses the matched chi route to keep label cardinality bounded.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// statusWriter wraps http.ResponseWriter to capture the status code. It
// passes through Flush and Hijack for streaming and WebSocket handlers.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: underlying writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
