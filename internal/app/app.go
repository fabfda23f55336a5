package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/vk/assetgrid/internal/config"
	"github.com/vk/assetgrid/internal/ledger"
	"github.com/vk/assetgrid/internal/metrics"
	"github.com/vk/assetgrid/internal/notify"
	"github.com/vk/assetgrid/internal/report"
	"github.com/vk/assetgrid/internal/sink"
	"github.com/vk/assetgrid/internal/source"
)

// recorder persists a finished run.
type recorder interface {
	Record(ctx context.Context, run *report.PipelineRun) error
	Close() error
}

// publisher announces a finished run.
type publisher interface {
	Publish(ctx context.Context, run *report.PipelineRun) error
}

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	source   source.DataSource
	sink     sink.Sink
	bucket   *minio.Client
	registry *prometheus.Registry
	metrics  *metrics.Collectors

	// openLedger is nil when no database is configured.
	openLedger func(ctx context.Context) (recorder, error)
	// publisher is nil when no notify endpoint is configured.
	publisher publisher

	httpServer *http.Server
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger and metrics registry.
func NewApp(outW io.Writer, cfg *Config) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	app := &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		source:   newSource(cfg.Source),
		registry: prometheus.NewRegistry(),
	}
	logger.Debug("Data source configured.", "location", app.source.Location(), "cache_ttl", cfg.Source.CacheTTL)

	if err := app.registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register go collector: %w", err)
	}
	m, err := metrics.New(app.registry)
	if err != nil {
		return nil, err
	}
	app.metrics = m

	if err := app.configureSink(); err != nil {
		return nil, err
	}

	if cfg.Ledger.DatabaseURL != "" {
		lcfg := ledger.Config{URL: cfg.Ledger.DatabaseURL, PingTimeout: cfg.Ledger.PingTimeout}
		app.openLedger = func(ctx context.Context) (recorder, error) {
			l, err := ledger.Open(ctx, lcfg)
			if err != nil {
				return nil, err
			}
			if err := l.EnsureSchema(ctx); err != nil {
				_ = l.Close()
				return nil, err
			}
			return l, nil
		}
		logger.Debug("Run ledger enabled.")
	}
	if cfg.Notify.URL != "" {
		app.publisher = notify.NewSocketIO(notify.Config{
			URL:       cfg.Notify.URL,
			Namespace: cfg.Notify.Namespace,
			Event:     cfg.Notify.Event,
		})
		logger.Debug("Run notifications enabled.", "url", cfg.Notify.URL)
	}

	return app, nil
}

func newSource(cfg config.Source) source.DataSource {
	var src source.DataSource = source.Auto{
		LocalPath: cfg.LocalPath,
		Remote:    source.HTTP{URL: cfg.URL, Timeout: cfg.Timeout},
	}
	if cfg.CacheTTL > 0 {
		src = source.NewCached(src, cfg.CacheTTL)
	}
	return src
}

func (a *App) configureSink() error {
	out := a.config.Output
	format, err := sink.ParseFormat(out.Format)
	if err != nil {
		return err
	}

	store := a.config.ObjectStore
	if !store.Enabled() {
		a.sink = sink.Dir{Root: out.Dir, Name: out.ReportName, Format: format}
		a.logger.Debug("Directory sink configured.", "dir", out.Dir, "format", format)
		return nil
	}

	client, err := sink.NewMinIOClient(sink.ClientConfig{
		Endpoint:  store.Endpoint,
		AccessKey: store.AccessKey,
		SecretKey: store.SecretKey,
		Region:    store.Region,
		UseSSL:    store.UseSSL,
	})
	if err != nil {
		return err
	}
	a.bucket = client
	a.sink = sink.ObjectStore{
		Client: client,
		Bucket: store.Bucket,
		Prefix: store.Prefix,
		Name:   out.ReportName,
		Format: format,
	}
	a.logger.Debug("Object store sink configured.", "endpoint", store.Endpoint, "bucket", store.Bucket, "format", format)
	return nil
}

// Registry returns the application's metrics registry.
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}
