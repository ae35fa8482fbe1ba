// Package metrics provides Prometheus instrumentation for the invest engine.
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
	// TradesTotal counts ledger operations, partitioned by kind.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finquest_trades_total",
		Help: "Total ledger operations executed",
	}, []string{"kind"})

	// TradesRejected counts declined ledger operations by reason.
	TradesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finquest_trades_rejected_total",
		Help: "Ledger operations declined by validation",
	}, []string{"reason"})

	// MonthsAdvanced counts market repricing steps by regime.
	MonthsAdvanced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finquest_months_advanced_total",
		Help: "Simulated months advanced",
	}, []string{"regime"})

	// XPGranted counts experience adjustments by reward name.
	XPGranted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finquest_xp_granted_total",
		Help: "Experience rewards granted",
	}, []string{"reward"})

	// SavesTotal counts successful debounced state saves.
	SavesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finquest_state_saves_total",
		Help: "Successful state saves",
	})

	// SaveFailures counts swallowed save failures.
	SaveFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finquest_state_save_failures_total",
		Help: "State saves that failed and were retried later",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "finquest_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finquest_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "finquest_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
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
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; user ids are the only dynamic
		// segment and cardinality stays bounded per deployment.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
