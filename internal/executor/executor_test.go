package executor

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/assetgrid/internal/asset"
	"github.com/vk/assetgrid/internal/check"
	"github.com/vk/assetgrid/internal/inmemorystore"
	"github.com/vk/assetgrid/internal/nodestore"
	"github.com/vk/assetgrid/internal/report"
	"github.com/vk/assetgrid/internal/table"
)

func one(v float64) *table.Dataset {
	return table.MustNew(table.NewFloatColumn("v", []float64{v}))
}

// value returns the single value of a dataset built by one.
func value(d *table.Dataset) float64 {
	c, err := d.Column("v")
	if err != nil {
		return math.NaN()
	}
	return c.Float(0)
}

func constant(v float64) asset.ComputeFunc {
	return func(context.Context, asset.Inputs) (*table.Dataset, error) { return one(v), nil }
}

// sumOf adds the single values of the given upstream assets.
func sumOf(names ...string) asset.ComputeFunc {
	return func(_ context.Context, in asset.Inputs) (*table.Dataset, error) {
		total := 0.0
		for _, n := range names {
			d, err := in.Get(n)
			if err != nil {
				return nil, err
			}
			total += value(d)
		}
		return one(total), nil
	}
}

func failing(err error) asset.ComputeFunc {
	return func(context.Context, asset.Inputs) (*table.Dataset, error) { return nil, err }
}

func verdict(passed bool) check.Definition {
	return check.Definition{Evaluate: func(d *table.Dataset) (check.Result, error) {
		return check.Result{Passed: passed, Metadata: check.Metadata{"rows": check.Int(d.NumRows())}}, nil
	}}
}

func bound(def check.Definition, name, assetName string) check.Definition {
	def.Name, def.Asset = name, assetName
	return def
}

func build(t *testing.T, b *asset.Builder) *asset.Definitions {
	t.Helper()
	defs, err := b.Build()
	require.NoError(t, err)
	return defs
}

func statuses(r *report.PipelineRun) map[string]nodestore.Status {
	out := map[string]nodestore.Status{}
	for _, m := range r.Materializations {
		out[m.Asset] = m.Status
	}
	return out
}

func TestRun_ComputesOnceAndServesFromCache(t *testing.T) {
	var calls atomic.Int32
	raw := func(context.Context, asset.Inputs) (*table.Dataset, error) {
		calls.Add(1)
		return one(2), nil
	}
	defs := build(t, asset.NewBuilder().
		Asset(asset.Node{Name: "raw", Compute: raw}).
		Asset(asset.Node{Name: "a", Upstream: []string{"raw"}, Compute: sumOf("raw")}).
		Asset(asset.Node{Name: "b", Upstream: []string{"raw"}, Compute: sumOf("raw")}).
		Asset(asset.Node{Name: "c", Upstream: []string{"raw", "a"}, Compute: sumOf("raw", "a")}))

	for _, workers := range []int{1, 4} {
		calls.Store(0)
		run := New(defs, Options{Workers: workers}).Run(context.Background())

		assert.Equal(t, int32(1), calls.Load(), "raw computed once with %d workers", workers)
		m, ok := run.Materialization("raw")
		require.True(t, ok)
		assert.Equal(t, int64(3), m.CacheHits)

		c, _ := run.Materialization("c")
		assert.Equal(t, 4.0, value(c.Dataset))
		assert.False(t, run.Degraded())
	}
}

func TestRun_CacheWrittenOnce(t *testing.T) {
	var store nodestore.Store
	defs := build(t, asset.NewBuilder().
		Asset(asset.Node{Name: "raw", Compute: constant(1)}).
		Asset(asset.Node{Name: "a", Upstream: []string{"raw"}, Compute: sumOf("raw")}).
		Asset(asset.Node{Name: "b", Upstream: []string{"raw"}, Compute: sumOf("raw")}).
		Asset(asset.Node{Name: "c", Upstream: []string{"raw"}, Compute: sumOf("raw")}).
		Check(bound(verdict(true), "raw_ok", "raw")))

	New(defs, Options{NewStore: func() nodestore.Store {
		store = inmemorystore.New()
		return store
	}}).Run(context.Background())

	stats := store.Stats(context.Background(), "raw")
	assert.Equal(t, int64(1), stats.Writes)
	assert.Equal(t, int64(4), stats.Hits, "three dependents and one check")
}

func TestRun_CanonicalOrderWhenSequential(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
	)
	track := func(name string) asset.ComputeFunc {
		return func(context.Context, asset.Inputs) (*table.Dataset, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return one(0), nil
		}
	}
	defs := build(t, asset.NewBuilder().
		Asset(asset.Node{Name: "report", Upstream: []string{"y", "x"}, Compute: track("report")}).
		Asset(asset.Node{Name: "raw", Compute: track("raw")}).
		Asset(asset.Node{Name: "y", Upstream: []string{"raw"}, Compute: track("y")}).
		Asset(asset.Node{Name: "x", Upstream: []string{"raw"}, Compute: track("x")}))

	run := New(defs, Options{}).Run(context.Background())

	assert.Equal(t, []string{"raw", "y", "x", "report"}, order)
	var listed []string
	for _, m := range run.Materializations {
		listed = append(listed, m.Asset)
	}
	assert.Equal(t, order, listed)
}

func TestRun_CanonicalOrderWithWorkers(t *testing.T) {
	fastDone := make(chan struct{})
	var (
		mu        sync.Mutex
		completed []string
	)
	done := func(name string) {
		mu.Lock()
		completed = append(completed, name)
		mu.Unlock()
	}
	defs := build(t, asset.NewBuilder().
		Asset(asset.Node{Name: "slow", Compute: func(context.Context, asset.Inputs) (*table.Dataset, error) {
			select {
			case <-fastDone:
			case <-time.After(5 * time.Second):
			}
			done("slow")
			return one(1), nil
		}}).
		Asset(asset.Node{Name: "fast", Compute: func(context.Context, asset.Inputs) (*table.Dataset, error) {
			done("fast")
			close(fastDone)
			return one(2), nil
		}}))

	run := New(defs, Options{Workers: 2}).Run(context.Background())

	assert.Equal(t, []string{"fast", "slow"}, completed)
	var listed []string
	for _, m := range run.Materializations {
		listed = append(listed, m.Asset)
	}
	assert.Equal(t, []string{"slow", "fast"}, listed)
}

func TestRun_FailureSkipsDependents(t *testing.T) {
	boom := errors.New("boom")
	defs := build(t, asset.NewBuilder().
		Asset(asset.Node{Name: "raw", Compute: constant(1)}).
		Asset(asset.Node{Name: "processed", Upstream: []string{"raw"}, Compute: failing(boom)}).
		Asset(asset.Node{Name: "metric", Upstream: []string{"processed"}, Compute: sumOf("processed")}).
		Asset(asset.Node{Name: "final", Upstream: []string{"metric", "raw"}, Compute: sumOf("metric")}).
		Asset(asset.Node{Name: "side", Upstream: []string{"raw"}, Compute: sumOf("raw")}).
		Check(bound(verdict(false), "raw_check", "raw")).
		Check(bound(verdict(true), "processed_check", "processed")).
		Check(bound(verdict(true), "metric_check", "metric")))

	run := New(defs, Options{Workers: 2}).Run(context.Background())

	assert.Equal(t, map[string]nodestore.Status{
		"raw":       nodestore.StatusMaterialized,
		"processed": nodestore.StatusFailed,
		"metric":    nodestore.StatusSkipped,
		"final":     nodestore.StatusSkipped,
		"side":      nodestore.StatusMaterialized,
	}, statuses(run))

	failed, _ := run.Materialization("processed")
	assert.ErrorIs(t, failed.Err, boom)
	assert.ErrorIs(t, failed.Err, ErrCompute)
	var ce *ComputeError
	require.ErrorAs(t, failed.Err, &ce)
	assert.Equal(t, "processed", ce.Asset)

	skipped, _ := run.Materialization("final")
	assert.Contains(t, skipped.Error, "upstream failure of 'processed'")

	require.Len(t, run.Checks, 3)
	assert.Equal(t, check.StatusFailed, run.Checks[0].Status)
	assert.Equal(t, 1.0, mustNumber(t, run.Checks[0].Metadata, "rows"))
	for _, c := range run.Checks[1:] {
		assert.Equal(t, check.StatusSkipped, c.Status, c.Name)
		assert.Empty(t, c.Metadata)
	}
	assert.True(t, run.Degraded())
	assert.False(t, run.Cancelled)
}

func TestRun_SchemaErrorIsComputeError(t *testing.T) {
	defs := build(t, asset.NewBuilder().
		Asset(asset.Node{Name: "raw", Compute: constant(1)}).
		Asset(asset.Node{Name: "p", Upstream: []string{"raw"}, Compute: func(_ context.Context, in asset.Inputs) (*table.Dataset, error) {
			d, _ := in.Get("raw")
			_, err := d.Column("missing")
			return nil, err
		}}))

	run := New(defs, Options{}).Run(context.Background())
	m, _ := run.Materialization("p")
	assert.Equal(t, nodestore.StatusFailed, m.Status)
	assert.ErrorIs(t, m.Err, table.ErrSchema)
	assert.ErrorIs(t, m.Err, ErrCompute)
}

func TestRun_InputsAreRestrictedToUpstream(t *testing.T) {
	defs := build(t, asset.NewBuilder().
		Asset(asset.Node{Name: "a", Compute: constant(1)}).
		Asset(asset.Node{Name: "b", Compute: constant(2)}).
		Asset(asset.Node{Name: "c", Upstream: []string{"a"}, Compute: sumOf("a", "b")}))

	run := New(defs, Options{}).Run(context.Background())
	m, _ := run.Materialization("c")
	assert.Equal(t, nodestore.StatusFailed, m.Status)
	assert.ErrorIs(t, m.Err, asset.ErrNotUpstream)
}

func TestRun_PanicIsRecovered(t *testing.T) {
	defs := build(t, asset.NewBuilder().
		Asset(asset.Node{Name: "raw", Compute: func(context.Context, asset.Inputs) (*table.Dataset, error) {
			panic("kaboom")
		}}).
		Asset(asset.Node{Name: "next", Upstream: []string{"raw"}, Compute: sumOf("raw")}))

	run := New(defs, Options{}).Run(context.Background())
	m, _ := run.Materialization("raw")
	assert.Equal(t, nodestore.StatusFailed, m.Status)
	assert.Contains(t, m.Error, "panic: kaboom")
	assert.Equal(t, nodestore.StatusSkipped, statuses(run)["next"])
}

func TestRun_NilOutputFails(t *testing.T) {
	defs := build(t, asset.NewBuilder().
		Asset(asset.Node{Name: "raw", Compute: func(context.Context, asset.Inputs) (*table.Dataset, error) {
			return nil, nil
		}}))
	run := New(defs, Options{}).Run(context.Background())
	m, _ := run.Materialization("raw")
	assert.Equal(t, nodestore.StatusFailed, m.Status)
}

func TestRun_NodeTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	defs := build(t, asset.NewBuilder().
		Asset(asset.Node{Name: "slow", Compute: func(ctx context.Context, _ asset.Inputs) (*table.Dataset, error) {
			<-release
			return one(1), nil
		}}).
		Asset(asset.Node{Name: "fast", Compute: constant(1)}))

	run := New(defs, Options{Workers: 2, NodeTimeout: 20 * time.Millisecond}).Run(context.Background())

	m, _ := run.Materialization("slow")
	assert.Equal(t, nodestore.StatusFailed, m.Status)
	assert.ErrorIs(t, m.Err, ErrNodeTimeout)
	assert.Equal(t, nodestore.StatusMaterialized, statuses(run)["fast"])
}

func TestRun_Cancellation(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var observedCancel atomic.Bool

	defs := build(t, asset.NewBuilder().
		Asset(asset.Node{Name: "raw", Compute: func(ctx context.Context, _ asset.Inputs) (*table.Dataset, error) {
			close(started)
			<-release
			observedCancel.Store(ctx.Err() != nil)
			return one(1), nil
		}}).
		Asset(asset.Node{Name: "next", Upstream: []string{"raw"}, Compute: sumOf("raw")}).
		Asset(asset.Node{Name: "other", Compute: constant(3)}).
		Check(bound(verdict(true), "raw_check", "raw")))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan *report.PipelineRun)
	go func() { done <- New(defs, Options{Workers: 1}).Run(ctx) }()

	<-started
	cancel()
	// Give the dispatcher time to observe the cancellation before the
	// running asset completes.
	time.Sleep(20 * time.Millisecond)
	close(release)
	run := <-done

	assert.True(t, run.Cancelled)
	assert.False(t, observedCancel.Load(), "running compute is not cancelled")
	assert.Equal(t, map[string]nodestore.Status{
		"raw":   nodestore.StatusMaterialized,
		"next":  nodestore.StatusSkipped,
		"other": nodestore.StatusSkipped,
	}, statuses(run))
	assert.Equal(t, check.StatusSkipped, run.Checks[0].Status)
}

func TestRun_AlreadyCancelled(t *testing.T) {
	var calls atomic.Int32
	defs := build(t, asset.NewBuilder().
		Asset(asset.Node{Name: "raw", Compute: func(context.Context, asset.Inputs) (*table.Dataset, error) {
			calls.Add(1)
			return one(1), nil
		}}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	run := New(defs, Options{}).Run(ctx)

	assert.Zero(t, calls.Load())
	assert.True(t, run.Cancelled)
	assert.Equal(t, nodestore.StatusSkipped, statuses(run)["raw"])
}

type fakeObserver struct {
	mu     sync.Mutex
	assets map[string]nodestore.Status
	checks map[string]check.Status
}

func (o *fakeObserver) AssetFinished(name string, st nodestore.Status, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.assets[name] = st
}

func (o *fakeObserver) CheckFinished(name string, st check.Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.checks[name] = st
}

func TestRun_Observer(t *testing.T) {
	obs := &fakeObserver{assets: map[string]nodestore.Status{}, checks: map[string]check.Status{}}
	defs := build(t, asset.NewBuilder().
		Asset(asset.Node{Name: "raw", Compute: constant(1)}).
		Asset(asset.Node{Name: "bad", Upstream: []string{"raw"}, Compute: failing(errors.New("x"))}).
		Check(bound(verdict(true), "ok", "raw")).
		Check(bound(verdict(true), "never", "bad")))

	New(defs, Options{Observer: obs}).Run(context.Background())

	assert.Equal(t, map[string]nodestore.Status{"raw": nodestore.StatusMaterialized, "bad": nodestore.StatusFailed}, obs.assets)
	assert.Equal(t, map[string]check.Status{"ok": check.StatusPassed, "never": check.StatusSkipped}, obs.checks)
}

func mustNumber(t *testing.T, m check.Metadata, key string) float64 {
	t.Helper()
	v, ok := m.Number(key)
	require.True(t, ok)
	return v
}
