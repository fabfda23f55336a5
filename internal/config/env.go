package config

import (
	"errors"
	"time"

	"github.com/vk/assetgrid/internal/env"
)

// ApplyEnv overrides cfg with the environment variables that are set.
func ApplyEnv(cfg *Config) error {
	var errs []error
	duration := func(dst *time.Duration, key string) {
		d, err := env.Duration(key, *dst)
		if err != nil {
			errs = append(errs, err)
			return
		}
		*dst = d
	}
	boolean := func(dst *bool, key string) {
		b, err := env.Bool(key, *dst)
		if err != nil {
			errs = append(errs, err)
			return
		}
		*dst = b
	}

	cfg.Source.URL = env.String("OWID_URL", cfg.Source.URL)
	cfg.Source.LocalPath = env.String("OWID_LOCAL_PATH", cfg.Source.LocalPath)
	duration(&cfg.Source.Timeout, "SOURCE_TIMEOUT")
	duration(&cfg.Source.CacheTTL, "SOURCE_CACHE_TTL")

	cfg.Entities.A = env.String("PRIMARY_COUNTRY", cfg.Entities.A)
	cfg.Entities.B = env.String("COMPARISON_COUNTRY", cfg.Entities.B)
	cfg.Checks.AllowNegativeNewCases = env.Flag("ALLOW_NEGATIVE_NEW_CASES", cfg.Checks.AllowNegativeNewCases)

	cfg.Output.Dir = env.String("OUTPUT_DIR", cfg.Output.Dir)
	cfg.Output.Format = env.String("OUTPUT_FORMAT", cfg.Output.Format)
	cfg.Output.ReportName = env.String("REPORT_NAME", cfg.Output.ReportName)

	cfg.ObjectStore.Endpoint = env.String("OBJECT_STORE_ENDPOINT", cfg.ObjectStore.Endpoint)
	cfg.ObjectStore.AccessKey = env.String("OBJECT_STORE_ACCESS_KEY", cfg.ObjectStore.AccessKey)
	cfg.ObjectStore.SecretKey = env.String("OBJECT_STORE_SECRET_KEY", cfg.ObjectStore.SecretKey)
	cfg.ObjectStore.Bucket = env.String("OBJECT_STORE_BUCKET", cfg.ObjectStore.Bucket)
	cfg.ObjectStore.Region = env.String("OBJECT_STORE_REGION", cfg.ObjectStore.Region)
	cfg.ObjectStore.Prefix = env.String("OBJECT_STORE_PREFIX", cfg.ObjectStore.Prefix)
	boolean(&cfg.ObjectStore.UseSSL, "OBJECT_STORE_USE_SSL")

	cfg.Ledger.DatabaseURL = env.String("DATABASE_URL", cfg.Ledger.DatabaseURL)
	duration(&cfg.Ledger.PingTimeout, "DATABASE_PING_TIMEOUT")

	cfg.Notify.URL = env.String("NOTIFY_URL", cfg.Notify.URL)
	cfg.Notify.Namespace = env.String("NOTIFY_NAMESPACE", cfg.Notify.Namespace)
	cfg.Notify.Event = env.String("NOTIFY_EVENT", cfg.Notify.Event)

	workers, err := env.Int("PIPELINE_WORKERS", cfg.Execution.Workers)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.Execution.Workers = workers
	}
	duration(&cfg.Execution.NodeTimeout, "NODE_TIMEOUT")

	return errors.Join(errs...)
}
