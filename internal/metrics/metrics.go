// Package metrics exposes Prometheus metrics for views and exports.
//
// A Collector implements both core.Observer and export.Observer, so it can be
// attached to every mounted TableView and to the export Engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "datagrid"

// Collector owns a dedicated registry and the metrics recorded into it.
type Collector struct {
	registry *prometheus.Registry

	exports        *prometheus.CounterVec
	exportDuration *prometheus.HistogramVec
	exportBytes    *prometheus.HistogramVec
	filterChanges  *prometheus.CounterVec
	facetComputes  *prometheus.CounterVec
}

// New creates a collector on a fresh registry. When withRuntime is set the
// Go runtime and process collectors are registered too.
func New(withRuntime bool) *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "total",
			Help:      "Exports attempted, by format and outcome.",
		}, []string{"format", "outcome"}),
		exportDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "duration_seconds",
			Help:      "Time from validation to delivery of successful exports.",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"format"}),
		exportBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "payload_bytes",
			Help:      "Size of delivered export payloads.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		}, []string{"format"}),
		filterChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "view",
			Name:      "filter_changes_total",
			Help:      "Filter state mutations, by table and operation.",
		}, []string{"table", "op"}),
		facetComputes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "view",
			Name:      "facet_computations_total",
			Help:      "Facet count recomputations, by table and column.",
		}, []string{"table", "column"}),
	}

	reg.MustRegister(c.exports, c.exportDuration, c.exportBytes, c.filterChanges, c.facetComputes)
	if withRuntime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// FilterChanged counts a filter mutation.
func (c *Collector) FilterChanged(table, op string) {
	c.filterChanges.WithLabelValues(table, op).Inc()
}

// FacetsComputed counts a facet recomputation.
func (c *Collector) FacetsComputed(table, column string) {
	c.facetComputes.WithLabelValues(table, column).Inc()
}

// ExportFinished records the outcome of one export. Duration and size are
// observed for successful exports only.
func (c *Collector) ExportFinished(format, outcome string, bytes int, elapsed time.Duration) {
	c.exports.WithLabelValues(format, outcome).Inc()
	if outcome != "success" {
		return
	}
	c.exportDuration.WithLabelValues(format).Observe(elapsed.Seconds())
	c.exportBytes.WithLabelValues(format).Observe(float64(bytes))
}

// Gauge registers a gauge read from fn on every scrape, such as the number
// of mounted views or running export jobs.
func (c *Collector) Gauge(subsystem, name, help string, fn func() int) error {
	return c.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, func() float64 { return float64(fn()) }))
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
