package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vk/assetgrid/internal/pipeline"
	"github.com/vk/assetgrid/internal/sink"
	"github.com/vk/assetgrid/internal/source"
)

// Config is the complete set of pipeline options.
type Config struct {
	Source      Source
	Entities    Entities
	Checks      Checks
	Output      Output
	ObjectStore ObjectStore
	Ledger      Ledger
	Notify      Notify
	Execution   Execution
}

// Source selects where the raw extract comes from.
type Source struct {
	URL       string
	LocalPath string
	Timeout   time.Duration
	// CacheTTL keeps fetched extracts in memory. Zero disables the cache.
	CacheTTL time.Duration
}

// Entities are the two entities the metrics are computed for.
type Entities struct {
	A string
	B string
}

type Checks struct {
	AllowNegativeNewCases bool
}

// Output controls the exported report.
type Output struct {
	Dir        string
	Format     string
	ReportName string
}

// ObjectStore, when Endpoint is set, publishes the report to an
// S3-compatible bucket instead of Output.Dir.
type ObjectStore struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Prefix    string
	UseSSL    bool
}

// Enabled reports whether an object store is configured.
func (o ObjectStore) Enabled() bool { return o.Endpoint != "" }

// Ledger, when DatabaseURL is set, records every run in PostgreSQL.
type Ledger struct {
	DatabaseURL string
	PingTimeout time.Duration
}

// Notify, when URL is set, publishes run summaries over socket.io.
type Notify struct {
	URL       string
	Namespace string
	Event     string
}

type Execution struct {
	Workers int
	// NodeTimeout bounds each asset computation. Zero disables it.
	NodeTimeout time.Duration
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Source: Source{
			URL:     source.DefaultURL,
			Timeout: source.DefaultTimeout,
		},
		Entities: Entities{A: pipeline.DefaultEntityA, B: pipeline.DefaultEntityB},
		Output: Output{
			Dir:        "output",
			Format:     string(sink.FormatCSV),
			ReportName: "covid_report",
		},
		ObjectStore: ObjectStore{Region: "us-east-1"},
		Ledger:      Ledger{PingTimeout: 2 * time.Second},
		Notify:      Notify{Event: "pipeline_run"},
		Execution:   Execution{Workers: 1},
	}
}

// Validate enumerates every invalid option.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Source.URL) == "" && strings.TrimSpace(c.Source.LocalPath) == "" {
		errs = append(errs, errors.New("source: a URL or a local path is required"))
	}
	if c.Source.Timeout < 0 {
		errs = append(errs, errors.New("source: timeout must be >= 0"))
	}
	if c.Source.CacheTTL < 0 {
		errs = append(errs, errors.New("source: cache_ttl must be >= 0"))
	}
	if strings.TrimSpace(c.Entities.A) == "" || strings.TrimSpace(c.Entities.B) == "" {
		errs = append(errs, errors.New("entities: both entity names are required"))
	} else if c.Entities.A == c.Entities.B {
		errs = append(errs, fmt.Errorf("entities: entity_a and entity_b must differ, both are %q", c.Entities.A))
	}
	if _, err := sink.ParseFormat(c.Output.Format); err != nil {
		errs = append(errs, fmt.Errorf("output: %w", err))
	}
	if strings.TrimSpace(c.Output.ReportName) == "" || strings.ContainsAny(c.Output.ReportName, `/\`) {
		errs = append(errs, fmt.Errorf("output: invalid report name %q", c.Output.ReportName))
	}
	if !c.ObjectStore.Enabled() && strings.TrimSpace(c.Output.Dir) == "" {
		errs = append(errs, errors.New("output: dir is required without an object store"))
	}
	if c.ObjectStore.Enabled() {
		if strings.Contains(c.ObjectStore.Endpoint, "://") {
			errs = append(errs, fmt.Errorf("object_store: endpoint must not include scheme: %q", c.ObjectStore.Endpoint))
		}
		if c.ObjectStore.Bucket == "" {
			errs = append(errs, errors.New("object_store: bucket is required"))
		}
		if c.ObjectStore.AccessKey == "" || c.ObjectStore.SecretKey == "" {
			errs = append(errs, errors.New("object_store: access and secret keys are required"))
		}
	}
	if c.Ledger.DatabaseURL != "" && c.Ledger.PingTimeout <= 0 {
		errs = append(errs, errors.New("ledger: ping_timeout must be positive"))
	}
	if c.Execution.Workers < 1 {
		errs = append(errs, fmt.Errorf("execution: workers must be >= 1, got %d", c.Execution.Workers))
	}
	if c.Execution.NodeTimeout < 0 {
		errs = append(errs, errors.New("execution: node_timeout must be >= 0"))
	}
	return errors.Join(errs...)
}
