package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/assetgrid/internal/app"
	"github.com/vk/assetgrid/internal/config"
	"github.com/vk/assetgrid/internal/env"
	"github.com/vk/assetgrid/internal/report"
	"github.com/vk/assetgrid/internal/source"
)

// Exit codes.
const (
	ExitFailure = 1
	ExitUsage   = 2
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(format string, args ...any) *ExitError {
	return &ExitError{Code: ExitUsage, Message: fmt.Sprintf(format, args...)}
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
//
// Options are layered, later wins: built-in defaults, the HCL config file or
// directory, environment variables, then flags given on the command line.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("assetgrid", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
AssetGrid - A dependency-aware asset pipeline for epidemiological metrics.

Usage:
  assetgrid [options] [CONFIG_PATH]

Arguments:
  CONFIG_PATH
    Optional path to a .hcl file or a directory containing .hcl files.

Options:
`)
		flagSet.PrintDefaults()
	}

	defaults := config.Default()
	configFlag := flagSet.String("config", "", "Path to the config file or directory.")
	cFlag := flagSet.String("c", "", "Path to the config file or directory (shorthand).")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check and metrics server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	reportOutFlag := flagSet.String("report-out", "", "Write the run report to this path (.json, .yaml or .yml). '-' writes JSON to stdout.")

	workersFlag := flagSet.Int("workers", defaults.Execution.Workers, "Number of concurrent workers for the executor.")
	nodeTimeoutFlag := flagSet.String("node-timeout", "0", "Per-asset computation timeout, e.g. '30s'. 0 disables it.")
	entityAFlag := flagSet.String("entity-a", defaults.Entities.A, "Primary entity.")
	entityBFlag := flagSet.String("entity-b", defaults.Entities.B, "Comparison entity.")
	allowNegFlag := flagSet.Bool("allow-negative", false, "Accept negative new_cases values.")
	sourceURLFlag := flagSet.String("source-url", defaults.Source.URL, "URL of the raw extract.")
	localPathFlag := flagSet.String("local-path", "", "Local copy of the raw extract, used when the file exists.")
	outputDirFlag := flagSet.String("output-dir", defaults.Output.Dir, "Directory the report is published to.")
	formatFlag := flagSet.String("format", defaults.Output.Format, "Report table format. Options: 'csv' or 'parquet'.")
	reportNameFlag := flagSet.String("report-name", defaults.Output.ReportName, "Name of the published report.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: ExitUsage, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *configFlag != "" {
		path = *configFlag
	} else if *cFlag != "" {
		path = *cFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	if flagSet.NArg() > 1 {
		return nil, false, usageError("too many arguments: %s", strings.Join(flagSet.Args(), " "))
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, usageError("invalid log-format: must be 'text' or 'json'")
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, usageError("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
	}

	cfg := defaults
	if path != "" {
		slog.Debug("Loading config files.", "path", path)
		if err := config.LoadFiles(&cfg, path); err != nil {
			return nil, false, usageError("%v", err)
		}
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		return nil, false, usageError("invalid environment: %v", err)
	}

	var flagErr error
	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "workers":
			cfg.Execution.Workers = *workersFlag
		case "node-timeout":
			d, err := env.ParseDuration(*nodeTimeoutFlag)
			if err != nil {
				flagErr = fmt.Errorf("invalid node-timeout %q: %w", *nodeTimeoutFlag, err)
				return
			}
			cfg.Execution.NodeTimeout = d
		case "entity-a":
			cfg.Entities.A = *entityAFlag
		case "entity-b":
			cfg.Entities.B = *entityBFlag
		case "allow-negative":
			cfg.Checks.AllowNegativeNewCases = *allowNegFlag
		case "source-url":
			cfg.Source.URL = *sourceURLFlag
		case "local-path":
			cfg.Source.LocalPath = *localPathFlag
		case "output-dir":
			cfg.Output.Dir = *outputDirFlag
		case "format":
			cfg.Output.Format = *formatFlag
		case "report-name":
			cfg.Output.ReportName = *reportNameFlag
		}
	})
	if flagErr != nil {
		return nil, false, usageError("%v", flagErr)
	}
	slog.Debug("CLI parameter validation complete.")

	appConfig, err := app.NewConfig(app.Config{
		Config:          cfg,
		ConfigPath:      path,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		HealthcheckPort: *healthPortFlag,
		ReportOut:       *reportOutFlag,
	})
	if err != nil {
		return nil, false, usageError("invalid configuration: %v", err)
	}

	slog.Debug("CLI parser finished successfully.", "config_path", path)
	return appConfig, false, nil
}

// Result maps the outcome of a run to the process exit status. A nil return
// means success.
func Result(run *report.PipelineRun, err error) error {
	switch {
	case err != nil && errors.Is(err, source.ErrSourceUnavailable):
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("source unavailable: %v", err)}
	case err != nil:
		return &ExitError{Code: ExitFailure, Message: err.Error()}
	case run == nil:
		return &ExitError{Code: ExitFailure, Message: "no run was produced"}
	case run.Cancelled:
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("run %s was cancelled", run.ID)}
	case run.Degraded():
		s := run.Summary()
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("run %s degraded: %d failed, %d skipped", run.ID, s.Failed, s.Skipped)}
	}
	return nil
}
