package source

import (
	"context"
	"os"

	"github.com/vk/assetgrid/internal/table"
)

// Auto prefers a local copy of the extract and falls back to downloading it.
type Auto struct {
	LocalPath string
	Remote    HTTP
}

// selected returns the source Fetch would use right now.
func (a Auto) selected() DataSource {
	if a.LocalPath != "" {
		if fi, err := os.Stat(a.LocalPath); err == nil && !fi.IsDir() {
			return File{Path: a.LocalPath}
		}
	}
	return a.Remote
}

func (a Auto) Location() string { return a.selected().Location() }

// Fetch reads LocalPath if it names an existing file, otherwise downloads the
// remote extract.
func (a Auto) Fetch(ctx context.Context) (*table.Dataset, error) {
	return a.selected().Fetch(ctx)
}
