package app

import (
	"errors"
	"fmt"

	"github.com/vk/assetgrid/internal/config"
)

// Config holds everything an App instance needs to run: the pipeline options
// plus process-level settings that never reach the pipeline.
type Config struct {
	config.Config

	// ConfigPath is the HCL file or directory the pipeline options came from.
	ConfigPath string

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	// ReportOut receives the run report. "-" means the app's output writer,
	// empty disables it.
	ReportOut string
}

// NewConfig validates cfg and returns it.
func NewConfig(cfg Config) (*Config, error) {
	var errs []error
	if err := cfg.Config.Validate(); err != nil {
		errs = append(errs, err)
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		errs = append(errs, fmt.Errorf("healthcheck port out of range: %d", cfg.HealthcheckPort))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &cfg, nil
}
