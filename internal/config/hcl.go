package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/assetgrid/internal/env"
	"github.com/vk/assetgrid/internal/fsutil"
)

// fileRoot lists the blocks accepted at the top level of a config file.
// Attributes are pointers so that an absent attribute leaves the value of an
// earlier layer untouched.
type fileRoot struct {
	Source      *sourceBlock      `hcl:"source,block"`
	Entities    *entitiesBlock    `hcl:"entities,block"`
	Checks      *checksBlock      `hcl:"checks,block"`
	Output      *outputBlock      `hcl:"output,block"`
	ObjectStore *objectStoreBlock `hcl:"object_store,block"`
	Ledger      *ledgerBlock      `hcl:"ledger,block"`
	Notify      *notifyBlock      `hcl:"notify,block"`
	Execution   *executionBlock   `hcl:"execution,block"`
	Remain      hcl.Body          `hcl:",remain"`
}

type sourceBlock struct {
	URL       *string `hcl:"url,optional"`
	LocalPath *string `hcl:"local_path,optional"`
	Timeout   *string `hcl:"timeout,optional"`
	CacheTTL  *string `hcl:"cache_ttl,optional"`
}

type entitiesBlock struct {
	A *string `hcl:"entity_a,optional"`
	B *string `hcl:"entity_b,optional"`
}

type checksBlock struct {
	AllowNegativeNewCases *bool `hcl:"allow_negative_new_cases,optional"`
}

type outputBlock struct {
	Dir        *string `hcl:"dir,optional"`
	Format     *string `hcl:"format,optional"`
	ReportName *string `hcl:"report_name,optional"`
}

type objectStoreBlock struct {
	Endpoint  *string `hcl:"endpoint,optional"`
	AccessKey *string `hcl:"access_key,optional"`
	SecretKey *string `hcl:"secret_key,optional"`
	Bucket    *string `hcl:"bucket,optional"`
	Region    *string `hcl:"region,optional"`
	Prefix    *string `hcl:"prefix,optional"`
	UseSSL    *bool   `hcl:"use_ssl,optional"`
}

type ledgerBlock struct {
	DatabaseURL *string `hcl:"database_url,optional"`
	PingTimeout *string `hcl:"ping_timeout,optional"`
}

type notifyBlock struct {
	URL       *string `hcl:"url,optional"`
	Namespace *string `hcl:"namespace,optional"`
	Event     *string `hcl:"event,optional"`
}

type executionBlock struct {
	Workers     *int    `hcl:"workers,optional"`
	NodeTimeout *string `hcl:"node_timeout,optional"`
}

// LoadFiles applies the HCL file at path, or every .hcl file below the
// directory at path in lexical order, on top of cfg.
func LoadFiles(cfg *Config, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("error accessing config path %s: %w", path, err)
	}
	files := []string{path}
	if info.IsDir() {
		files, err = fsutil.FindFilesByExtension(path, ".hcl")
		if err != nil {
			return fmt.Errorf("failed to list config files in %s: %w", path, err)
		}
	}

	parser := hclparse.NewParser()
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}
		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}
		if err := root.apply(cfg); err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
	}
	return nil
}

func (r *fileRoot) apply(cfg *Config) error {
	if b := r.Source; b != nil {
		setString(&cfg.Source.URL, b.URL)
		setString(&cfg.Source.LocalPath, b.LocalPath)
		if err := setDuration(&cfg.Source.Timeout, b.Timeout, "source.timeout"); err != nil {
			return err
		}
		if err := setDuration(&cfg.Source.CacheTTL, b.CacheTTL, "source.cache_ttl"); err != nil {
			return err
		}
	}
	if b := r.Entities; b != nil {
		setString(&cfg.Entities.A, b.A)
		setString(&cfg.Entities.B, b.B)
	}
	if b := r.Checks; b != nil && b.AllowNegativeNewCases != nil {
		cfg.Checks.AllowNegativeNewCases = *b.AllowNegativeNewCases
	}
	if b := r.Output; b != nil {
		setString(&cfg.Output.Dir, b.Dir)
		setString(&cfg.Output.Format, b.Format)
		setString(&cfg.Output.ReportName, b.ReportName)
	}
	if b := r.ObjectStore; b != nil {
		setString(&cfg.ObjectStore.Endpoint, b.Endpoint)
		setString(&cfg.ObjectStore.AccessKey, b.AccessKey)
		setString(&cfg.ObjectStore.SecretKey, b.SecretKey)
		setString(&cfg.ObjectStore.Bucket, b.Bucket)
		setString(&cfg.ObjectStore.Region, b.Region)
		setString(&cfg.ObjectStore.Prefix, b.Prefix)
		if b.UseSSL != nil {
			cfg.ObjectStore.UseSSL = *b.UseSSL
		}
	}
	if b := r.Ledger; b != nil {
		setString(&cfg.Ledger.DatabaseURL, b.DatabaseURL)
		if err := setDuration(&cfg.Ledger.PingTimeout, b.PingTimeout, "ledger.ping_timeout"); err != nil {
			return err
		}
	}
	if b := r.Notify; b != nil {
		setString(&cfg.Notify.URL, b.URL)
		setString(&cfg.Notify.Namespace, b.Namespace)
		setString(&cfg.Notify.Event, b.Event)
	}
	if b := r.Execution; b != nil {
		if b.Workers != nil {
			cfg.Execution.Workers = *b.Workers
		}
		if err := setDuration(&cfg.Execution.NodeTimeout, b.NodeTimeout, "execution.node_timeout"); err != nil {
			return err
		}
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string, name string) error {
	if v == nil {
		return nil
	}
	d, err := env.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, *v, err)
	}
	*dst = d
	return nil
}
