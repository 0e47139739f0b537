package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPActiveConnections prometheus.Gauge

	httpOnce sync.Once
)

func initializeHTTPMetrics() {
	httpOnce.Do(func() {
		HTTPRequestsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		)

		HTTPRequestDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint", "status"},
		)

		HTTPActiveConnections = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_active_connections",
				Help: "Number of active HTTP connections",
			},
		)

		GetInstance().registry.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			HTTPActiveConnections,
		)
	})
}

// RecordHTTPRequest records metrics for an HTTP request
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if !businessEnabled() {
		return
	}
	initializeHTTPMetrics()

	status := strconv.Itoa(statusCode)
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

// IncActiveConnections increments active connections
func IncActiveConnections() {
	if !businessEnabled() {
		return
	}
	initializeHTTPMetrics()
	HTTPActiveConnections.Inc()
}

// DecActiveConnections decrements active connections
func DecActiveConnections() {
	if !businessEnabled() {
		return
	}
	initializeHTTPMetrics()
	HTTPActiveConnections.Dec()
}
