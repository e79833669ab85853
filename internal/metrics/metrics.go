// Package metrics provides Prometheus instrumentation for the stake
// ledger and match engine.
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
	// RoundsTotal counts resolved rounds, partitioned by outcome.
	RoundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rps_rounds_total",
		Help: "Total number of resolved rounds",
	}, []string{"outcome"})

	// StakeVolume accumulates credits wagered across all rounds.
	StakeVolume = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rps_stake_volume_credits_total",
		Help: "Cumulative credits wagered",
	})

	// RejectionsTotal counts rejected mutating operations by reason.
	RejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rps_rejections_total",
		Help: "Rejected operations by reason",
	}, []string{"reason"})

	// StoreFailures counts persistence failures by operation. Nonzero
	// values mean durable records have diverged from the in-memory state.
	StoreFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rps_store_failures_total",
		Help: "Persistence failures by operation",
	}, []string{"op"})

	// OracleFailures counts price oracle failures by kind.
	OracleFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rps_oracle_failures_total",
		Help: "Price oracle failures",
	}, []string{"kind"})

	// OpponentWinRate tracks the platform-wide realized opponent win
	// rate over decided rounds.
	OpponentWinRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rps_opponent_win_rate",
		Help: "Realized opponent win rate over decided rounds",
	})

	// HouseEarnings tracks cumulative net house earnings in credits.
	HouseEarnings = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rps_house_earnings_credits",
		Help: "Cumulative net house earnings in credits",
	})

	// WebSocketClients tracks connected event-stream clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rps_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// RoundLatency tracks round settlement latency.
	RoundLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rps_round_latency_seconds",
		Help:    "Round settlement latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rps_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rps_http_request_duration_seconds",
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
