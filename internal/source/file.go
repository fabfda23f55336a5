package source

import (
	"context"
	"fmt"
	"os"

	"github.com/vk/assetgrid/internal/ctxlog"
	"github.com/vk/assetgrid/internal/table"
)

// File reads the extract from a local CSV file.
type File struct {
	Path string
}

func (f File) Location() string { return f.Path }

// Fetch reads and decodes the file. A file that cannot be opened is
// unavailable.
func (f File) Fetch(ctx context.Context) (*table.Dataset, error) {
	ctxlog.FromContext(ctx).Info("Reading local CSV.", "path", f.Path)
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, &UnavailableError{Location: f.Path, Err: err}
	}
	defer fh.Close()

	d, err := ReadCSV(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}
	ctxlog.FromContext(ctx).Info("Read raw extract.", "rows", d.NumRows(), "columns", d.NumColumns())
	return d, nil
}
