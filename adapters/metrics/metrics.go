// Package metrics provides Prometheus metrics collection for cmscore.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/artpar/cmscore/ports"
)

const namespace = "cmscore"

// Collector holds all Prometheus metrics for cmscore.
type Collector struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Content metrics
	SchemaOps        *prometheus.CounterVec
	ItemOps          *prometheus.CounterVec
	VersionConflicts prometheus.Counter
	SearchDuration   *prometheus.HistogramVec

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
	ConfigLastReload   prometheus.Gauge
}

// New creates a collector registered with the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a collector registered with reg.
// Tests pass a fresh registry to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),

		SchemaOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "schema_operations_total",
				Help:      "Total number of schema, model and group operations",
			},
			[]string{"op", "outcome"},
		),
		ItemOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "item_operations_total",
				Help:      "Total number of item operations by action",
			},
			[]string{"action", "outcome"},
		),
		VersionConflicts: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "version_conflicts_total",
				Help:      "Total number of writes rejected for a stale expected version",
			},
		),
		SearchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_duration_seconds",
				Help:      "Item search duration in seconds",
				Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"ref"},
		),

		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
		ConfigLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "config_last_reload_timestamp",
				Help:      "Unix timestamp of last successful config reload",
			},
		),
	}
}

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeConflict = "conflict"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// SchemaOp records one schema operation.
func (c *Collector) SchemaOp(op, outcome string) {
	c.SchemaOps.WithLabelValues(op, outcome).Inc()
}

// ItemOp records one item operation. Conflicts are also counted on their own.
func (c *Collector) ItemOp(action, outcome string) {
	c.ItemOps.WithLabelValues(action, outcome).Inc()
	if outcome == OutcomeConflict {
		c.VersionConflicts.Inc()
	}
}

// Search records the duration of one search.
func (c *Collector) Search(ref string, d time.Duration) {
	c.SearchDuration.WithLabelValues(ref).Observe(d.Seconds())
}

// ConfigReloaded records a config reload attempt.
func (c *Collector) ConfigReloaded(err error, at time.Time) {
	if err != nil {
		c.ConfigReloadErrors.Inc()
		return
	}
	c.ConfigReloads.Inc()
	c.ConfigLastReload.Set(float64(at.Unix()))
}

// RouteLabel keeps the route label bounded: unmatched requests share one
// label and long patterns are truncated.
func RouteLabel(pattern string) string {
	if pattern == "" {
		return "unmatched"
	}
	if len(pattern) > 80 {
		return pattern[:80] + "..."
	}
	return pattern
}

// Ensure interface compliance.
var _ ports.Recorder = (*Collector)(nil)
