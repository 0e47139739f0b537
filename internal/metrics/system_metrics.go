package metrics

import (
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// MetricsManager owns the private registry every collector in this package registers with
type MetricsManager struct {
	systemCPUUsage    *prometheus.GaugeVec
	systemMemoryUsage *prometheus.GaugeVec

	goGoroutines    prometheus.Gauge
	goHeapAlloc     prometheus.Gauge
	goHeapSys       prometheus.Gauge
	goGCPauseNs     prometheus.Histogram
	goGCCPUFraction prometheus.Gauge

	registry *prometheus.Registry

	businessEnabled atomic.Bool
	systemEnabled   atomic.Bool

	systemOnce sync.Once
}

var (
	instance *MetricsManager
	once     sync.Once
)

// GetInstance returns the singleton instance of MetricsManager
func GetInstance() *MetricsManager {
	once.Do(func() {
		instance = &MetricsManager{
			registry: prometheus.NewRegistry(),
		}
	})
	return instance
}

// Configure switches the business (request, provider, resolution) and system collectors on or off.
func Configure(business, system bool) {
	mm := GetInstance()
	mm.businessEnabled.Store(business)
	mm.systemEnabled.Store(system)
}

func businessEnabled() bool {
	return GetInstance().businessEnabled.Load()
}

// Registry exposes the private registry, mostly for tests.
func Registry() *prometheus.Registry {
	return GetInstance().registry
}

// Handler serves the private registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.HandlerFor(GetInstance().registry, promhttp.HandlerOpts{})
}

func (mm *MetricsManager) initializeSystemMetrics() {
	mm.systemOnce.Do(func() {
		mm.systemCPUUsage = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "system_cpu_usage_percent",
				Help: "Current CPU usage percentage",
			},
			[]string{"core"},
		)

		mm.systemMemoryUsage = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "system_memory_usage_bytes",
				Help: "Current memory usage in bytes",
			},
			[]string{"type"},
		)

		mm.goGoroutines = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "symptomcheck_goroutines",
			Help: "Number of goroutines that currently exist",
		})
		mm.goHeapAlloc = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "symptomcheck_heap_alloc_bytes",
			Help: "Heap memory usage in bytes",
		})
		mm.goHeapSys = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "symptomcheck_heap_sys_bytes",
			Help: "Heap memory reserved in bytes",
		})
		mm.goGCPauseNs = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "symptomcheck_gc_pause_nanoseconds",
			Help:    "GC pause time in nanoseconds",
			Buckets: prometheus.ExponentialBuckets(1000, 2, 20),
		})
		mm.goGCCPUFraction = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "symptomcheck_gc_cpu_fraction",
			Help: "Fraction of CPU time used by GC",
		})

		mm.registry.MustRegister(
			mm.systemCPUUsage,
			mm.systemMemoryUsage,
			mm.goGoroutines,
			mm.goHeapAlloc,
			mm.goHeapSys,
			mm.goGCPauseNs,
			mm.goGCCPUFraction,
		)
	})
}

// StartSystemMetrics samples host and runtime stats every interval until stop is closed.
// It is a no-op when system metrics are disabled.
func StartSystemMetrics(interval time.Duration, stop <-chan struct{}) {
	mm := GetInstance()
	if !mm.systemEnabled.Load() {
		return
	}
	mm.initializeSystemMetrics()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				mm.collectSystemMetrics()
				mm.collectGoRuntimeMetrics()
			}
		}
	}()
}

func (mm *MetricsManager) collectSystemMetrics() {
	if cpuPercentages, err := cpu.Percent(0, true); err == nil {
		for i, percentage := range cpuPercentages {
			mm.systemCPUUsage.WithLabelValues(fmt.Sprintf("cpu%d", i)).Set(percentage)
		}
	}

	if vmstat, err := mem.VirtualMemory(); err == nil {
		mm.systemMemoryUsage.WithLabelValues("total").Set(float64(vmstat.Total))
		mm.systemMemoryUsage.WithLabelValues("available").Set(float64(vmstat.Available))
		mm.systemMemoryUsage.WithLabelValues("used").Set(float64(vmstat.Used))
	}
}

func (mm *MetricsManager) collectGoRuntimeMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	mm.goGoroutines.Set(float64(runtime.NumGoroutine()))
	mm.goHeapAlloc.Set(float64(m.HeapAlloc))
	mm.goHeapSys.Set(float64(m.HeapSys))
	mm.goGCPauseNs.Observe(float64(m.PauseNs[(m.NumGC+255)%256]))
	mm.goGCCPUFraction.Set(m.GCCPUFraction)
}
