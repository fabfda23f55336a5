package app

import (
	"context"
	"fmt"
	"os"

	"github.com/vk/assetgrid/internal/ctxlog"
	"github.com/vk/assetgrid/internal/pipeline"
	"github.com/vk/assetgrid/internal/report"
	"github.com/vk/assetgrid/internal/sink"
)

// Run executes one pipeline run and hands the result to the configured
// collaborators. The error is that of pipeline.Run; failures of the report
// file, the ledger or the notifier are logged and never change the outcome.
func (a *App) Run(ctx context.Context) (*report.PipelineRun, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.HealthcheckPort > 0 {
		a.startHealthCheckServer(a.config.HealthcheckPort)
		defer func() { _ = a.closeHealthCheckServer(ctx) }()
	}

	if a.bucket != nil {
		store := a.config.ObjectStore
		if err := sink.EnsureBucket(ctx, a.bucket, store.Bucket, store.Region); err != nil {
			a.logger.Warn("Could not ensure bucket exists.", "bucket", store.Bucket, "error", err)
		}
	}

	cfg := a.config
	a.logger.Info("🚀 Starting pipeline run...", "source", a.source.Location(), "entity_a", cfg.Entities.A, "entity_b", cfg.Entities.B, "workers", cfg.Execution.Workers)
	run, err := pipeline.Run(ctx, a.source, a.sink, pipeline.RunOptions{
		Options: pipeline.Options{
			EntityA:       cfg.Entities.A,
			EntityB:       cfg.Entities.B,
			AllowNegative: cfg.Checks.AllowNegativeNewCases,
			Workers:       cfg.Execution.Workers,
			NodeTimeout:   cfg.Execution.NodeTimeout,
		},
		Observer: a.metrics,
	})
	if run == nil {
		return nil, err
	}
	a.metrics.Observe(run)
	ctx = ctxlog.With(ctx, "runID", run.ID)

	if werr := a.writeReport(run); werr != nil {
		a.logger.Error("Failed to write run report.", "path", cfg.ReportOut, "error", werr)
	}
	a.recordRun(ctx, run)
	a.publishRun(ctx, run)

	s := run.Summary()
	a.logger.Info("🏁 Pipeline run finished.",
		"runID", run.ID,
		"materialized", s.Materialized,
		"failed", s.Failed,
		"skipped", s.Skipped,
		"checks_passed", s.ChecksPassed,
		"checks_failed", s.ChecksFailed,
		"degraded", run.Degraded(),
	)
	a.logger.Debug("App.Run method finished.")
	return run, err
}

// writeReport encodes the run to cfg.ReportOut.
func (a *App) writeReport(run *report.PipelineRun) error {
	path := a.config.ReportOut
	switch path {
	case "":
		return nil
	case "-":
		return report.EncodeJSON(a.outW, run)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if err := report.Encode(f, path, run); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close report file: %w", err)
	}
	a.logger.Info("Run report written.", "path", path)
	return nil
}

func (a *App) recordRun(ctx context.Context, run *report.PipelineRun) {
	if a.openLedger == nil {
		return
	}
	l, err := a.openLedger(ctx)
	if err != nil {
		a.logger.Warn("Run ledger unavailable.", "error", err)
		return
	}
	defer func() { _ = l.Close() }()
	if err := l.Record(ctx, run); err != nil {
		a.logger.Warn("Failed to record run.", "runID", run.ID, "error", err)
		return
	}
	a.logger.Debug("Run recorded in ledger.", "runID", run.ID)
}

func (a *App) publishRun(ctx context.Context, run *report.PipelineRun) {
	if a.publisher == nil {
		return
	}
	if err := a.publisher.Publish(ctx, run); err != nil {
		a.logger.Warn("Failed to publish run summary.", "runID", run.ID, "error", err)
	}
}
