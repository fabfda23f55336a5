// Package sink persists the report tables of a pipeline run. Each table is
// encoded through Apache Arrow as CSV or Parquet, and a report is published
// only once every table has been written in full, so a failed write never
// replaces the report of an earlier successful run.
package sink

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vk/assetgrid/internal/table"
)

// Sink persists a set of named tables as one report and returns where the
// report was published.
type Sink interface {
	Write(ctx context.Context, tables map[string]*table.Dataset) (string, error)
}

// Format is the file encoding of the report tables.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// ParseFormat accepts "csv" or "parquet", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatParquet:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want csv or parquet)", s)
	}
}

// Ext returns the file extension for f, including the dot.
func (f Format) Ext() string { return "." + string(f) }

// fileName is the name a table is stored under within a report.
func fileName(name string, f Format) string { return name + f.Ext() }

// sortedNames returns the table names in a stable order.
func sortedNames(tables map[string]*table.Dataset) []string {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
