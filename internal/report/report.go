// Package report holds the record of one pipeline run: the materialization of
// every declared asset, the outcome of every declared check and the export of
// the final tables.
package report

import (
	"time"

	"github.com/google/uuid"
	"github.com/vk/assetgrid/internal/check"
	"github.com/vk/assetgrid/internal/nodestore"
	"github.com/vk/assetgrid/internal/table"
)

// PipelineRun is the aggregate of one execution. The executor fills in the
// materializations and checks; pipeline.Run then records the abort reason or
// the export and stamps FinishedAt. The record must not be modified once
// pipeline.Run returns it.
type PipelineRun struct {
	ID         string    `json:"id" yaml:"id"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
	// Cancelled is set when the caller cancelled the run before every asset
	// could be attempted.
	Cancelled bool `json:"cancelled" yaml:"cancelled"`
	// Aborted holds the reason the run stopped before materializing anything.
	Aborted string `json:"aborted,omitempty" yaml:"aborted,omitempty"`

	// Materializations lists every declared asset in the canonical
	// materialization order: dependencies first, ties broken by declaration
	// order. With several workers assets may complete in another order; the
	// record does not reflect it.
	Materializations []MaterializationResult `json:"materializations" yaml:"materializations"`
	// Checks lists every declared check in declaration order.
	Checks []CheckOutcome `json:"checks" yaml:"checks"`

	Export      *Export `json:"export,omitempty" yaml:"export,omitempty"`
	ExportError string  `json:"export_error,omitempty" yaml:"export_error,omitempty"`
}

// MaterializationResult is the outcome of one asset in one run.
type MaterializationResult struct {
	Asset    string           `json:"asset" yaml:"asset"`
	Status   nodestore.Status `json:"status" yaml:"status"`
	Rows     int              `json:"rows" yaml:"rows"`
	Log      string           `json:"log,omitempty" yaml:"log,omitempty"`
	Error    string           `json:"error,omitempty" yaml:"error,omitempty"`
	Duration time.Duration    `json:"duration_ns" yaml:"duration"`
	// CacheHits counts how often the cached output was served downstream.
	CacheHits int64 `json:"cache_hits" yaml:"cache_hits"`

	// Dataset is the produced table. It is owned by the run and never
	// serialized.
	Dataset *table.Dataset `json:"-" yaml:"-"`
	// Err is the failure behind a Failed status.
	Err error `json:"-" yaml:"-"`
}

// CheckOutcome is the terminal state of one check in one run. Skipped checks
// carry no metadata.
type CheckOutcome struct {
	Name        string         `json:"name" yaml:"name"`
	Asset       string         `json:"asset" yaml:"asset"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Status      check.Status   `json:"status" yaml:"status"`
	Passed      bool           `json:"passed" yaml:"passed"`
	Metadata    check.Metadata `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Export records where the report tables were written.
type Export struct {
	Location string   `json:"location" yaml:"location"`
	Tables   []string `json:"tables" yaml:"tables"`
}

// New starts a run record with a fresh ID.
func New(startedAt time.Time) *PipelineRun {
	return &PipelineRun{
		ID:        uuid.NewString(),
		StartedAt: startedAt,
	}
}

// Materialization returns the result of the named asset.
func (r *PipelineRun) Materialization(asset string) (MaterializationResult, bool) {
	for _, m := range r.Materializations {
		if m.Asset == asset {
			return m, true
		}
	}
	return MaterializationResult{}, false
}

// Check returns the outcome of the named check.
func (r *PipelineRun) Check(name string) (CheckOutcome, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return CheckOutcome{}, false
}

// Tables returns the datasets of the named assets. It reports false unless
// every one of them was materialized.
func (r *PipelineRun) Tables(assets ...string) (map[string]*table.Dataset, bool) {
	out := make(map[string]*table.Dataset, len(assets))
	for _, name := range assets {
		m, ok := r.Materialization(name)
		if !ok || m.Status != nodestore.StatusMaterialized || m.Dataset == nil {
			return nil, false
		}
		out[name] = m.Dataset
	}
	return out, true
}

// Degraded reports whether any asset did not materialize.
func (r *PipelineRun) Degraded() bool {
	if r.Aborted != "" {
		return true
	}
	for _, m := range r.Materializations {
		if m.Status != nodestore.StatusMaterialized {
			return true
		}
	}
	return false
}
