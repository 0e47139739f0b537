package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	priaidHTTPRequestsTotal   *prometheus.CounterVec
	priaidHTTPRequestDuration *prometheus.HistogramVec

	priaidOnce sync.Once
)

func initializePriaidMetrics() {
	priaidOnce.Do(func() {
		priaidHTTPRequestsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "priaid_http_requests_total",
				Help: "Total number of HTTP requests to the diagnosis provider",
			},
			[]string{"endpoint", "status_code"},
		)

		priaidHTTPRequestDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "priaid_http_request_duration_seconds",
				Help:    "Time spent making HTTP requests to the diagnosis provider",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		)

		GetInstance().registry.MustRegister(priaidHTTPRequestsTotal, priaidHTTPRequestDuration)
	})
}

// RecordProviderRequest records one call to the provider. statusCode 0 means a transport error.
func RecordProviderRequest(endpoint string, startTime time.Time, statusCode int) {
	if !businessEnabled() {
		return
	}
	initializePriaidMetrics()

	priaidHTTPRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
	priaidHTTPRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
}
