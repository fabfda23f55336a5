package executor

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vk/assetgrid/internal/asset"
	"github.com/vk/assetgrid/internal/check"
	"github.com/vk/assetgrid/internal/ctxlog"
	"github.com/vk/assetgrid/internal/dag"
	"github.com/vk/assetgrid/internal/nodestore"
	"github.com/vk/assetgrid/internal/report"
	"github.com/vk/assetgrid/internal/table"
)

// job is one unit of work for a worker: an asset to compute or a check to
// evaluate.
type job struct {
	node     *asset.Node
	check    *check.Definition
	checkIdx int
}

type result struct {
	job     job
	output  *table.Dataset
	err     error
	elapsed time.Duration
	verdict check.Result
}

// run is the state of one execution. Apart from the store, it is only
// touched by the dispatcher goroutine.
type run struct {
	ctx    context.Context
	e      *Executor
	logger *slog.Logger
	store  nodestore.Store
	record *report.PipelineRun

	nodes   []asset.Node
	checks  []check.Definition
	pending map[string]int
	ready   dag.IndexHeap
	queued  []int

	mats     map[string]report.MaterializationResult
	outcomes map[int]report.CheckOutcome

	inflight  int
	cancelled bool

	jobs    chan job
	results chan result
	wg      sync.WaitGroup
}

func newRun(ctx context.Context, e *Executor) *run {
	r := &run{
		ctx:      ctx,
		e:        e,
		logger:   ctxlog.FromContext(ctx),
		store:    e.opts.NewStore(),
		nodes:    e.defs.Nodes(),
		checks:   e.defs.Checks(),
		pending:  make(map[string]int),
		mats:     make(map[string]report.MaterializationResult),
		outcomes: make(map[int]report.CheckOutcome),
		jobs:     make(chan job),
	}
	r.record = report.New(e.opts.Now())
	// Results are unbuffered: a worker is handed new work only after its
	// previous result was handled, which keeps a single worker in canonical
	// order.
	r.results = make(chan result)
	r.logger = r.logger.With("runID", r.record.ID)

	for _, n := range r.nodes {
		r.pending[n.Name] = len(unique(n.Upstream))
		if r.pending[n.Name] == 0 {
			heap.Push(&r.ready, e.defs.Index(n.Name))
		}
	}
	return r
}

// dispatch runs the scheduling loop until no work is ready or in flight.
func (r *run) dispatch() {
	workerCtx := ctxlog.WithLogger(context.WithoutCancel(r.ctx), r.logger)
	r.logger.Debug("Starting worker pool.", "workers", r.e.opts.Workers)
	for i := 0; i < r.e.opts.Workers; i++ {
		r.wg.Add(1)
		go r.worker(workerCtx, i)
	}

	done := r.ctx.Done()
	for {
		if !r.cancelled && r.ctx.Err() != nil {
			done = nil
			r.cancel()
		}
		next, ok := r.peek()
		if !ok && r.inflight == 0 {
			break
		}
		var jobs chan<- job
		if ok {
			jobs = r.jobs
		}
		select {
		case jobs <- next:
			r.started(next)
		case res := <-r.results:
			r.inflight--
			r.handle(res)
		case <-done:
			done = nil
			r.cancel()
		}
	}

	close(r.jobs)
	r.wg.Wait()
}

// peek returns the next job without removing it. Ready assets go before
// queued checks.
func (r *run) peek() (job, bool) {
	if r.ready.Len() > 0 {
		return job{node: &r.nodes[r.ready[0]]}, true
	}
	if len(r.queued) > 0 {
		i := r.queued[0]
		return job{check: &r.checks[i], checkIdx: i}, true
	}
	return job{}, false
}

func (r *run) started(j job) {
	r.inflight++
	if j.node == nil {
		r.queued = r.queued[1:]
		return
	}
	heap.Pop(&r.ready)
	if err := r.store.SetStatus(r.ctx, j.node.Name, nodestore.StatusRunning); err != nil {
		r.logger.Error("Unexpected state transition.", "asset", j.node.Name, "error", err)
	}
	r.logger.Debug("Asset started.", "asset", j.node.Name)
}

func (r *run) handle(res result) {
	if res.job.node == nil {
		r.checkDone(res)
		return
	}
	name := res.job.node.Name
	if res.err != nil {
		r.assetFailed(name, res)
		return
	}
	r.assetMaterialized(name, res)
}

func (r *run) assetMaterialized(name string, res result) {
	_ = r.store.SetOutput(r.ctx, name, res.output)
	r.setStatus(name, nodestore.StatusMaterialized)
	rows := res.output.NumRows()
	r.mats[name] = report.MaterializationResult{
		Asset:    name,
		Status:   nodestore.StatusMaterialized,
		Rows:     rows,
		Log:      fmt.Sprintf("materialized %d rows x %d columns", rows, res.output.NumColumns()),
		Duration: res.elapsed,
		Dataset:  res.output,
	}
	r.logger.Info("Asset materialized.", "asset", name, "rows", rows, "duration", res.elapsed)
	r.observeAsset(name, nodestore.StatusMaterialized, res.elapsed)

	for _, dep := range r.e.defs.Dependents(name) {
		r.pending[dep]--
		if r.pending[dep] > 0 || r.cancelled {
			continue
		}
		if st, _ := r.store.GetStatus(r.ctx, dep); st == nodestore.StatusPending {
			heap.Push(&r.ready, r.e.defs.Index(dep))
		}
	}

	for i, c := range r.checks {
		if c.Asset != name {
			continue
		}
		if r.cancelled {
			r.skipCheck(i)
			continue
		}
		r.queued = append(r.queued, i)
	}
}

func (r *run) assetFailed(name string, res result) {
	_ = r.store.SetError(r.ctx, name, res.err)
	r.setStatus(name, nodestore.StatusFailed)
	r.mats[name] = report.MaterializationResult{
		Asset:    name,
		Status:   nodestore.StatusFailed,
		Error:    res.err.Error(),
		Duration: res.elapsed,
		Err:      res.err,
	}
	r.logger.Error("Asset failed.", "asset", name, "error", res.err)
	r.observeAsset(name, nodestore.StatusFailed, res.elapsed)
	r.skipChecksFor(name)

	for _, d := range r.e.defs.Descendants(name) {
		r.skipAsset(d, fmt.Sprintf("skipped due to upstream failure of '%s'", name))
	}
}

// skipAsset marks a pending asset and its checks as skipped.
func (r *run) skipAsset(name, reason string) {
	if st, _ := r.store.GetStatus(r.ctx, name); st != nodestore.StatusPending {
		return
	}
	r.setStatus(name, nodestore.StatusSkipped)
	r.mats[name] = report.MaterializationResult{
		Asset:  name,
		Status: nodestore.StatusSkipped,
		Error:  reason,
	}
	r.logger.Warn("Asset skipped.", "asset", name, "reason", reason)
	r.observeAsset(name, nodestore.StatusSkipped, 0)
	r.skipChecksFor(name)
}

func (r *run) skipChecksFor(name string) {
	for i, c := range r.checks {
		if c.Asset == name {
			r.skipCheck(i)
		}
	}
}

func (r *run) skipCheck(i int) {
	if _, done := r.outcomes[i]; done {
		return
	}
	c := r.checks[i]
	r.outcomes[i] = report.CheckOutcome{
		Name:        c.Name,
		Asset:       c.Asset,
		Description: c.Description,
		Status:      check.StatusSkipped,
	}
	r.observeCheck(c.Name, check.StatusSkipped)
}

func (r *run) checkDone(res result) {
	c := r.checks[res.job.checkIdx]
	status := res.verdict.Status()
	r.outcomes[res.job.checkIdx] = report.CheckOutcome{
		Name:        c.Name,
		Asset:       c.Asset,
		Description: c.Description,
		Status:      status,
		Passed:      res.verdict.Passed,
		Metadata:    res.verdict.Metadata,
	}
	logger := r.logger.With("check", c.Name, "asset", c.Asset)
	if res.err != nil {
		logger.Warn("Check could not be evaluated.", "error", res.err)
	} else if res.verdict.Passed {
		logger.Info("Check passed.")
	} else {
		logger.Warn("Check failed.")
	}
	r.observeCheck(c.Name, status)
}

// cancel stops all work that has not started. Running assets finish.
func (r *run) cancel() {
	r.cancelled = true
	r.record.Cancelled = true
	r.logger.Warn("Run cancelled, skipping pending work.", "error", r.ctx.Err())

	r.ready = r.ready[:0]
	for _, i := range r.queued {
		r.skipCheck(i)
	}
	r.queued = nil
	for _, n := range r.nodes {
		r.skipAsset(n.Name, "run cancelled")
	}
}

func (r *run) setStatus(name string, st nodestore.Status) {
	if err := r.store.SetStatus(r.ctx, name, st); err != nil {
		r.logger.Error("Unexpected state transition.", "asset", name, "error", err)
	}
}

func (r *run) observeAsset(name string, st nodestore.Status, elapsed time.Duration) {
	if r.e.opts.Observer != nil {
		r.e.opts.Observer.AssetFinished(name, st, elapsed)
	}
}

func (r *run) observeCheck(name string, st check.Status) {
	if r.e.opts.Observer != nil {
		r.e.opts.Observer.CheckFinished(name, st)
	}
}

// finish assembles the record: assets in the canonical order of
// Definitions.Order whatever order they completed in, checks in declaration
// order.
func (r *run) finish() *report.PipelineRun {
	for _, name := range r.e.defs.Order() {
		m, ok := r.mats[name]
		if !ok {
			m = report.MaterializationResult{Asset: name, Status: nodestore.StatusSkipped, Error: "not scheduled"}
		}
		m.CacheHits = r.store.Stats(r.ctx, name).Hits
		r.record.Materializations = append(r.record.Materializations, m)
	}
	for i, c := range r.checks {
		o, ok := r.outcomes[i]
		if !ok {
			o = report.CheckOutcome{Name: c.Name, Asset: c.Asset, Description: c.Description, Status: check.StatusSkipped}
		}
		r.record.Checks = append(r.record.Checks, o)
	}
	r.record.FinishedAt = r.e.opts.Now()

	s := r.record.Summary()
	r.logger.Info("Run finished.",
		"materialized", s.Materialized, "failed", s.Failed, "skipped", s.Skipped,
		"checks_passed", s.ChecksPassed, "checks_failed", s.ChecksFailed, "checks_skipped", s.ChecksSkipped,
		"cancelled", s.Cancelled)
	return r.record
}

func unique(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := names[:0:0]
	for _, n := range names {
		if _, ok := seen[n]; !ok {
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	return out
}
