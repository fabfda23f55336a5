package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vk/assetgrid/internal/asset"
	"github.com/vk/assetgrid/internal/check"
	"github.com/vk/assetgrid/internal/ctxlog"
	"github.com/vk/assetgrid/internal/table"
)

// worker is the processing loop for a single concurrent worker. Its context
// is detached from the run's cancellation so started work always completes.
func (r *run) worker(ctx context.Context, workerID int) {
	defer r.wg.Done()
	logger := ctxlog.FromContext(ctx).With("workerID", workerID)
	logger.Debug("Worker started.")

	for j := range r.jobs {
		start := time.Now()
		var res result
		if j.node != nil {
			workerLogger := logger.With("asset", j.node.Name)
			workerLogger.Debug("Worker picked up asset.")
			res = r.runAsset(ctxlog.WithLogger(ctx, workerLogger), j)
		} else {
			res = r.runCheck(ctx, j)
		}
		res.elapsed = time.Since(start)
		r.results <- res
	}
	logger.Debug("Worker finished.")
}

// runAsset gathers the asset's upstream outputs from the cache and computes it.
func (r *run) runAsset(ctx context.Context, j job) result {
	n := j.node
	outputs := make(map[string]*table.Dataset, len(n.Upstream))
	for _, up := range n.Upstream {
		if _, ok := outputs[up]; ok {
			continue
		}
		d, ok, err := r.store.GetOutput(ctx, up)
		if err != nil {
			return result{job: j, err: &ComputeError{Asset: n.Name, Err: fmt.Errorf("reading upstream '%s': %w", up, err)}}
		}
		if !ok {
			return result{job: j, err: &ComputeError{Asset: n.Name, Err: fmt.Errorf("upstream '%s' has no output", up)}}
		}
		outputs[up] = d
	}

	out, err := r.compute(ctx, *n, asset.NewInputs(*n, outputs))
	if err != nil {
		return result{job: j, err: &ComputeError{Asset: n.Name, Err: err}}
	}
	return result{job: j, output: out}
}

// compute invokes the compute function under the per-asset timeout,
// converting panics into errors. A compute that outlives its timeout keeps
// running in the background and its result is discarded.
func (r *run) compute(ctx context.Context, n asset.Node, in asset.Inputs) (*table.Dataset, error) {
	if r.e.opts.NodeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.e.opts.NodeTimeout)
		defer cancel()
	}

	type outcome struct {
		out *table.Dataset
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- outcome{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		out, err := n.Compute(ctx, in)
		ch <- outcome{out: out, err: err}
	}()

	select {
	case o := <-ch:
		if o.err != nil {
			if errors.Is(o.err, context.DeadlineExceeded) && ctx.Err() != nil {
				return nil, fmt.Errorf("%w after %s: %w", ErrNodeTimeout, r.e.opts.NodeTimeout, o.err)
			}
			return nil, o.err
		}
		if o.out == nil {
			return nil, errors.New("compute returned no dataset")
		}
		return o.out, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w after %s", ErrNodeTimeout, r.e.opts.NodeTimeout)
	}
}

// runCheck evaluates a check against the cached output of its asset.
func (r *run) runCheck(ctx context.Context, j job) result {
	d, ok, err := r.store.GetOutput(ctx, j.check.Asset)
	if err == nil && !ok {
		err = fmt.Errorf("asset '%s' has no output", j.check.Asset)
	}
	if err != nil {
		// Evaluate turns a missing dataset into a failed verdict.
		d = nil
	}
	verdict, evalErr := check.Evaluate(*j.check, d)
	return result{job: j, verdict: verdict, err: evalErr}
}
