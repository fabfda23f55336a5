package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/vk/assetgrid/internal/ctxlog"
	"github.com/vk/assetgrid/internal/table"
)

// Dir publishes a report as a directory Root/Name holding one file per table.
// Tables are written to a sibling staging directory that replaces the
// published one only after every table was written.
type Dir struct {
	Root   string
	Name   string
	Format Format
}

// Write stages every table and then publishes the staging directory. On any
// failure the staging directory is removed and a previously published report
// stays untouched.
func (d Dir) Write(ctx context.Context, tables map[string]*table.Dataset) (string, error) {
	logger := ctxlog.FromContext(ctx)
	if err := os.MkdirAll(d.Root, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output root %s: %w", d.Root, err)
	}

	staging, err := os.MkdirTemp(d.Root, "."+d.Name+"-staging-")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	published := false
	defer func() {
		if !published {
			_ = os.RemoveAll(staging)
		}
	}()

	for _, name := range sortedNames(tables) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		path := filepath.Join(staging, fileName(name, d.Format))
		if err := writeTable(path, d.Format, tables[name]); err != nil {
			return "", fmt.Errorf("table %q: %w", name, err)
		}
		logger.Debug("Staged report table.", "table", name, "rows", tables[name].NumRows(), "path", path)
	}

	final := filepath.Join(d.Root, d.Name)
	if err := publishDir(staging, final); err != nil {
		return "", err
	}
	published = true
	logger.Info("Published report.", "location", final, "tables", len(tables))
	return final, nil
}

func writeTable(path string, f Format, d *table.Dataset) error {
	var buf bytes.Buffer
	if err := Encode(&buf, f, d); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// publishDir moves staging to final. An existing final directory is moved
// aside first and restored if the swap fails.
func publishDir(staging, final string) error {
	var backup string
	if _, err := os.Stat(final); err == nil {
		backup = filepath.Join(filepath.Dir(final), "."+filepath.Base(final)+"-old-"+uuid.NewString())
		if err := os.Rename(final, backup); err != nil {
			return fmt.Errorf("failed to move previous report aside: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat %s: %w", final, err)
	}

	if err := os.Rename(staging, final); err != nil {
		if backup != "" {
			_ = os.Rename(backup, final)
		}
		return fmt.Errorf("failed to publish report: %w", err)
	}
	if backup != "" {
		_ = os.RemoveAll(backup)
	}
	return nil
}
