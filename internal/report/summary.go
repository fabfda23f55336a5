package report

import (
	"github.com/vk/assetgrid/internal/check"
	"github.com/vk/assetgrid/internal/nodestore"
)

// Summary counts terminal states across a run.
type Summary struct {
	RunID         string `json:"run_id" yaml:"run_id"`
	Materialized  int    `json:"materialized" yaml:"materialized"`
	Failed        int    `json:"failed" yaml:"failed"`
	Skipped       int    `json:"skipped" yaml:"skipped"`
	ChecksPassed  int    `json:"checks_passed" yaml:"checks_passed"`
	ChecksFailed  int    `json:"checks_failed" yaml:"checks_failed"`
	ChecksSkipped int    `json:"checks_skipped" yaml:"checks_skipped"`
	Cancelled     bool   `json:"cancelled" yaml:"cancelled"`
	Aborted       bool   `json:"aborted" yaml:"aborted"`
	Exported      bool   `json:"exported" yaml:"exported"`
}

// Summary tallies the run.
func (r *PipelineRun) Summary() Summary {
	s := Summary{
		RunID:     r.ID,
		Cancelled: r.Cancelled,
		Aborted:   r.Aborted != "",
		Exported:  r.Export != nil,
	}
	for _, m := range r.Materializations {
		switch m.Status {
		case nodestore.StatusMaterialized:
			s.Materialized++
		case nodestore.StatusFailed:
			s.Failed++
		case nodestore.StatusSkipped:
			s.Skipped++
		}
	}
	for _, c := range r.Checks {
		switch c.Status {
		case check.StatusPassed:
			s.ChecksPassed++
		case check.StatusFailed:
			s.ChecksFailed++
		case check.StatusSkipped:
			s.ChecksSkipped++
		}
	}
	return s
}
