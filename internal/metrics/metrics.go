package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Export results used as the result label of ExportsTotal.
const (
	ResultCompleted = "completed"
	ResultFailed    = "failed"
	ResultCancelled = "cancelled"
)

var (
	ExportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blindtest",
		Name:      "exports_total",
		Help:      "Total finished exports by result.",
	}, []string{"result"})

	ExportFrames = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "blindtest",
		Name:      "export_frames",
		Help:      "Last frame reported by the running export.",
	})

	ActiveExports = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "blindtest",
		Name:      "active_exports",
		Help:      "Number of exports currently running.",
	})

	ExportDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "blindtest",
		Name:      "export_duration_seconds",
		Help:      "Wall-clock duration of finished exports in seconds.",
		Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1800},
	})

	ProbeFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "blindtest",
		Name:      "probe_failures_total",
		Help:      "Total ffprobe duration lookups that failed.",
	})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blindtest",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})
)

var registry = newRegistry()

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	Register(reg)
	return reg
}

// Register adds every blindtest collector to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		ExportsTotal,
		ExportFrames,
		ActiveExports,
		ExportDuration,
		ProbeFailuresTotal,
		HTTPRequestsTotal,
	)
}

// Gatherer exposes the package registry.
func Gatherer() prometheus.Gatherer {
	return registry
}

// Handler serves the package registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ExportStarted marks an export as running.
func ExportStarted() {
	ActiveExports.Inc()
	ExportFrames.Set(0)
}

// ExportFinished records the outcome and duration of an export.
func ExportFinished(result string, elapsed time.Duration) {
	ActiveExports.Dec()
	ExportsTotal.WithLabelValues(result).Inc()
	ExportDuration.Observe(elapsed.Seconds())
}

// WriteTextfile writes the registry to path in the node-exporter textfile format.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
