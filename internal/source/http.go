package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/vk/assetgrid/internal/ctxlog"
	"github.com/vk/assetgrid/internal/table"
)

// DefaultTimeout bounds a download when HTTP.Timeout is zero.
const DefaultTimeout = 60 * time.Second

// HTTP downloads the extract.
type HTTP struct {
	URL string
	// Client defaults to a client with Timeout.
	Client  *http.Client
	Timeout time.Duration
}

func (h HTTP) Location() string { return h.URL }

// Fetch downloads and decodes the extract. Transport failures and non-2xx
// responses are unavailable.
func (h HTTP) Fetch(ctx context.Context) (*table.Dataset, error) {
	logger := ctxlog.FromContext(ctx)
	client := h.Client
	if client == nil {
		timeout := h.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	logger.Info("Downloading CSV.", "url", h.URL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return nil, &UnavailableError{Location: h.URL, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &UnavailableError{Location: h.URL, Err: err}
	}
	defer resp.Body.Close()

	logger.Debug("Received HTTP response.", "status", resp.Status)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UnavailableError{Location: h.URL, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	d, err := ReadCSV(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", h.URL, err)
	}
	logger.Info("Read raw extract.", "rows", d.NumRows(), "columns", d.NumColumns())
	return d, nil
}
