package table

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSchema matches any *SchemaError.
	ErrSchema = errors.New("schema error")
	// ErrShape is returned when columns of unequal length are combined.
	ErrShape = errors.New("column length mismatch")
	// ErrDuplicateColumn is returned when two columns share a name.
	ErrDuplicateColumn = errors.New("duplicate column name")
)

// SchemaError reports a column lookup that found none of the requested names.
type SchemaError struct {
	// Missing lists the names that were tried, in priority order.
	Missing []string
	// Available lists the columns that the dataset actually holds.
	Available []string
}

func (e *SchemaError) Error() string {
	avail := strings.Join(e.Available, ", ")
	if len(e.Missing) == 1 {
		return fmt.Sprintf("missing column %q (available: %s)", e.Missing[0], avail)
	}
	return fmt.Sprintf("none of the columns %q are present (available: %s)", e.Missing, avail)
}

func (e *SchemaError) Unwrap() error { return ErrSchema }
