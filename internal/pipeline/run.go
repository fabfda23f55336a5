package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/vk/assetgrid/internal/ctxlog"
	"github.com/vk/assetgrid/internal/executor"
	"github.com/vk/assetgrid/internal/nodestore"
	"github.com/vk/assetgrid/internal/report"
	"github.com/vk/assetgrid/internal/sink"
	"github.com/vk/assetgrid/internal/source"
)

// RunOptions extends Options with hooks that do not affect results.
type RunOptions struct {
	Options
	// Observer receives terminal states as the run progresses.
	Observer executor.Observer
}

// RunPipeline runs the pipeline for two entities with default execution
// settings.
func RunPipeline(ctx context.Context, src source.DataSource, snk sink.Sink, entityA, entityB string, allowNegative bool) (*report.PipelineRun, error) {
	return Run(ctx, src, snk, RunOptions{Options: Options{
		EntityA:       entityA,
		EntityB:       entityB,
		AllowNegative: allowNegative,
	}})
}

// Run materializes the pipeline and exports the report tables through snk.
//
// The returned run lists every asset and every check. An error is returned
// only when the pipeline could not be declared or when the source was
// unavailable; the run is still returned in the latter case, marked aborted.
// Asset failures, failed checks and export failures are recorded in the run.
// A nil snk disables the export.
//
// Run finalizes the record: it sets Aborted or the export outcome and stamps
// FinishedAt last, so the duration covers the export.
func Run(ctx context.Context, src source.DataSource, snk sink.Sink, opts RunOptions) (*report.PipelineRun, error) {
	logger := ctxlog.FromContext(ctx)

	defs, err := Define(src, opts.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to define pipeline: %w", err)
	}

	now := opts.now()
	run := executor.New(defs, executor.Options{
		Workers:     opts.Workers,
		NodeTimeout: opts.NodeTimeout,
		Now:         now,
		Observer:    opts.Observer,
	}).Run(ctx)

	if m, ok := run.Materialization(AssetRaw); ok && m.Status == nodestore.StatusFailed && errors.Is(m.Err, source.ErrSourceUnavailable) {
		run.Aborted = m.Error
		run.FinishedAt = now()
		logger.Error("Pipeline aborted, source unavailable.", "runID", run.ID, "error", m.Err)
		return run, fmt.Errorf("pipeline aborted: %w", m.Err)
	}

	export(ctx, run, snk)
	run.FinishedAt = now()
	return run, nil
}

// export writes the report tables when every one of them materialized. The
// profile is included whenever it materialized too.
func export(ctx context.Context, run *report.PipelineRun, snk sink.Sink) {
	logger := ctxlog.FromContext(ctx)
	if snk == nil {
		logger.Debug("No sink configured, skipping export.")
		return
	}
	tables, ok := run.Tables(ReportAssets...)
	if !ok {
		logger.Warn("Skipping export, not every report table materialized.", "runID", run.ID, "tables", ReportAssets)
		return
	}
	if extra, ok := run.Tables(AssetProfile); ok {
		tables[AssetProfile] = extra[AssetProfile]
	}

	location, err := snk.Write(ctx, tables)
	if err != nil {
		run.ExportError = err.Error()
		logger.Error("Export failed.", "runID", run.ID, "error", err)
		return
	}
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	run.Export = &report.Export{Location: location, Tables: names}
}
