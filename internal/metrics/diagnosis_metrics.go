package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Resolution outcomes
const (
	ResultCacheHit  = "cache_hit"
	ResultCacheMiss = "cache_miss"
	ResultInvalid   = "invalid"
	ResultError     = "error"
)

var (
	diagnosisResolutionsTotal *prometheus.CounterVec
	persistJobsTotal          *prometheus.CounterVec
	persistJobDuration        prometheus.Histogram
	persistQueueDepth         prometheus.Gauge

	diagnosisOnce sync.Once
)

func initializeDiagnosisMetrics() {
	diagnosisOnce.Do(func() {
		diagnosisResolutionsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diagnosis_resolutions_total",
				Help: "Total number of diagnosis resolutions by outcome",
			},
			[]string{"result"},
		)

		persistJobsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diagnosis_persist_jobs_total",
				Help: "Total number of background persistence jobs by status",
			},
			[]string{"status"}, // "committed", "failed", "dropped"
		)

		persistJobDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "diagnosis_persist_job_duration_seconds",
			Help:    "Time spent committing one resolution batch",
			Buckets: prometheus.DefBuckets,
		})

		persistQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "diagnosis_persist_queue_depth",
			Help: "Number of batches waiting to be persisted",
		})

		GetInstance().registry.MustRegister(
			diagnosisResolutionsTotal,
			persistJobsTotal,
			persistJobDuration,
			persistQueueDepth,
		)
	})
}

// RecordResolution counts one POST /diagnose outcome
func RecordResolution(result string) {
	if !businessEnabled() {
		return
	}
	initializeDiagnosisMetrics()
	diagnosisResolutionsTotal.WithLabelValues(result).Inc()
}

// RecordPersistJob counts a finished persistence job
func RecordPersistJob(status string, startTime time.Time) {
	if !businessEnabled() {
		return
	}
	initializeDiagnosisMetrics()
	persistJobsTotal.WithLabelValues(status).Inc()
	if !startTime.IsZero() {
		persistJobDuration.Observe(time.Since(startTime).Seconds())
	}
}

// SetPersistQueueDepth reports the current number of queued batches
func SetPersistQueueDepth(n int) {
	if !businessEnabled() {
		return
	}
	initializeDiagnosisMetrics()
	persistQueueDepth.Set(float64(n))
}
