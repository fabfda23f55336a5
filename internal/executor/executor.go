// Package executor materializes a pipeline declaration.
//
// A single dispatcher goroutine owns all run state. It hands ready assets,
// earliest-declared first, to a bounded pool of workers, and hands each
// check to the pool once its asset has materialized. Workers only compute and
// report back, so state transitions never race. Every asset is computed at
// most once per run; its output is cached in the run's store and served from
// there to downstream assets and checks.
package executor

import (
	"context"
	"time"

	"github.com/vk/assetgrid/internal/asset"
	"github.com/vk/assetgrid/internal/check"
	"github.com/vk/assetgrid/internal/inmemorystore"
	"github.com/vk/assetgrid/internal/nodestore"
	"github.com/vk/assetgrid/internal/report"
)

// Observer is notified of terminal states as they happen. Calls come from
// the dispatcher goroutine.
type Observer interface {
	AssetFinished(name string, status nodestore.Status, elapsed time.Duration)
	CheckFinished(name string, status check.Status)
}

// Options tunes a run.
type Options struct {
	// Workers bounds concurrent computations. Values below 1 mean 1, which
	// runs the pipeline sequentially in canonical order.
	Workers int
	// NodeTimeout bounds each compute call. Zero disables the timeout.
	NodeTimeout time.Duration
	// NewStore creates the per-run store. Defaults to an in-memory store.
	NewStore func() nodestore.Store
	// Now is the clock used for run timestamps. Defaults to time.Now.
	Now func() time.Time
	// Observer, if set, receives terminal-state notifications.
	Observer Observer
}

// Executor runs a pipeline declaration. It holds no per-run state and may be
// reused.
type Executor struct {
	defs *asset.Definitions
	opts Options
}

// New creates an Executor for defs.
func New(defs *asset.Definitions, opts Options) *Executor {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.NewStore == nil {
		opts.NewStore = func() nodestore.Store { return inmemorystore.New() }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Executor{defs: defs, opts: opts}
}

// Run executes the pipeline to completion and returns its record. It never
// fails: asset errors are recorded as Failed with their dependents Skipped,
// and check errors as failed checks. Cancelling ctx stops new work from
// starting; computations already running are allowed to finish.
func (e *Executor) Run(ctx context.Context) *report.PipelineRun {
	r := newRun(ctx, e)
	r.dispatch()
	return r.finish()
}
