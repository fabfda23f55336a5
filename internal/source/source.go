// Package source provides the DataSource implementations that produce the
// raw extract: local CSV files, HTTP downloads, a local-first selector and a
// TTL cache around any of them.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/assetgrid/internal/table"
)

// DefaultURL is the published compact COVID-19 extract.
const DefaultURL = "https://catalog.ourworldindata.org/garden/covid/latest/compact/compact.csv"

// ErrSourceUnavailable matches any *UnavailableError.
var ErrSourceUnavailable = errors.New("source unavailable")

// UnavailableError reports that the raw extract could not be retrieved at
// all, as opposed to being retrieved and found malformed.
type UnavailableError struct {
	Location string
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Location, e.Err)
}

func (e *UnavailableError) Unwrap() []error { return []error{ErrSourceUnavailable, e.Err} }

// DataSource produces the raw tabular extract.
type DataSource interface {
	Fetch(ctx context.Context) (*table.Dataset, error)
	// Location describes where the data comes from, for logs and cache keys.
	Location() string
}

// Func adapts a function to a DataSource.
type Func func(ctx context.Context) (*table.Dataset, error)

func (f Func) Fetch(ctx context.Context) (*table.Dataset, error) { return f(ctx) }
func (f Func) Location() string                                  { return "func" }
