package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/assetgrid/internal/check"
	"github.com/vk/assetgrid/internal/executor"
	"github.com/vk/assetgrid/internal/nodestore"
	"github.com/vk/assetgrid/internal/report"
)

var _ executor.Observer = (*Collectors)(nil)

func TestNew_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err, "registering the same collectors twice must fail")
}

func TestObserverCallbacks(t *testing.T) {
	c, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	c.AssetFinished("raw", nodestore.StatusMaterialized, 20*time.Millisecond)
	c.AssetFinished("processed", nodestore.StatusFailed, time.Millisecond)
	c.AssetFinished("incidence_7d", nodestore.StatusSkipped, 0)
	c.CheckFinished("unique_entity_date", check.StatusPassed)
	c.CheckFinished("incidence_7d_range", check.StatusSkipped)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Materializations.WithLabelValues("raw", "materialized")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Materializations.WithLabelValues("processed", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Materializations.WithLabelValues("incidence_7d", "skipped")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.AssetDuration), "skipped assets record no duration")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Checks.WithLabelValues("unique_entity_date", "passed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Checks.WithLabelValues("incidence_7d_range", "skipped")))
}

func TestObserve(t *testing.T) {
	c, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	finished := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	ok := &report.PipelineRun{
		FinishedAt:       finished,
		Materializations: []report.MaterializationResult{{Asset: "raw", Status: nodestore.StatusMaterialized}},
		Export:           &report.Export{Location: "out"},
	}
	degraded := &report.PipelineRun{
		Materializations: []report.MaterializationResult{{Asset: "raw", Status: nodestore.StatusFailed}},
		ExportError:      "disk full",
	}
	aborted := &report.PipelineRun{Aborted: "source unavailable"}

	c.Observe(ok)
	c.Observe(degraded)
	c.Observe(aborted)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Runs.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Runs.WithLabelValues(OutcomeDegraded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Runs.WithLabelValues(OutcomeAborted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Exports.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Exports.WithLabelValues("error")))
	assert.Equal(t, float64(finished.Unix()), testutil.ToFloat64(c.LastRun))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeCancelled, Outcome(&report.PipelineRun{Cancelled: true}))
	assert.Equal(t, OutcomeOK, Outcome(&report.PipelineRun{}))
}
