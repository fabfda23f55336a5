// Package metrics exposes pipeline runs as Prometheus metrics.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vk/assetgrid/internal/check"
	"github.com/vk/assetgrid/internal/nodestore"
	"github.com/vk/assetgrid/internal/report"
)

const namespace = "assetgrid"

// Run outcomes used as the "outcome" label of the runs counter.
const (
	OutcomeOK        = "ok"
	OutcomeDegraded  = "degraded"
	OutcomeAborted   = "aborted"
	OutcomeCancelled = "cancelled"
)

// Collectors holds the pipeline metrics. It implements executor.Observer so
// per-asset and per-check metrics are recorded as the run progresses.
type Collectors struct {
	Runs             *prometheus.CounterVec
	Materializations *prometheus.CounterVec
	AssetDuration    *prometheus.HistogramVec
	Checks           *prometheus.CounterVec
	Exports          *prometheus.CounterVec
	LastRun          prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		Materializations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "materializations_total",
			Help:      "Terminal asset states by asset and status.",
		}, []string{"asset", "status"}),
		AssetDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "asset_duration_seconds",
			Help:      "Time from dispatch to terminal state of computed assets.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"asset"}),
		Checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_total",
			Help:      "Check outcomes by check and status.",
		}, []string{"check", "status"}),
		Exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Report exports by result.",
		}, []string{"result"}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Finish time of the most recent run.",
		}),
	}
	for _, col := range []prometheus.Collector{c.Runs, c.Materializations, c.AssetDuration, c.Checks, c.Exports, c.LastRun} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}
	return c, nil
}

// AssetFinished records a terminal asset state. Skipped assets never ran and
// have no duration.
func (c *Collectors) AssetFinished(name string, status nodestore.Status, elapsed time.Duration) {
	c.Materializations.WithLabelValues(name, status.String()).Inc()
	if status != nodestore.StatusSkipped {
		c.AssetDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	}
}

// CheckFinished records a check outcome.
func (c *Collectors) CheckFinished(name string, status check.Status) {
	c.Checks.WithLabelValues(name, string(status)).Inc()
}

// Observe records the outcome of a finished run.
func (c *Collectors) Observe(run *report.PipelineRun) {
	c.Runs.WithLabelValues(Outcome(run)).Inc()
	switch {
	case run.Export != nil:
		c.Exports.WithLabelValues("ok").Inc()
	case run.ExportError != "":
		c.Exports.WithLabelValues("error").Inc()
	}
	if !run.FinishedAt.IsZero() {
		c.LastRun.Set(float64(run.FinishedAt.Unix()))
	}
}

// Outcome classifies a run.
func Outcome(run *report.PipelineRun) string {
	switch {
	case run.Aborted != "":
		return OutcomeAborted
	case run.Cancelled:
		return OutcomeCancelled
	case run.Degraded():
		return OutcomeDegraded
	default:
		return OutcomeOK
	}
}
