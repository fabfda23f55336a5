// Package notify publishes run summaries to a socket.io endpoint.
package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/vk/assetgrid/internal/check"
	"github.com/vk/assetgrid/internal/ctxlog"
	"github.com/vk/assetgrid/internal/nodestore"
	"github.com/vk/assetgrid/internal/report"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// DefaultEvent is emitted when Config.Event is empty.
const DefaultEvent = "pipeline_run"

// Config locates the socket.io endpoint.
type Config struct {
	URL                string
	Namespace          string
	Event              string
	InsecureSkipVerify bool
	// ConnectTimeout bounds the handshake. Zero means 15s.
	ConnectTimeout time.Duration
}

// Message is the payload emitted for a run.
type Message struct {
	Summary        report.Summary `json:"summary"`
	FailedAssets   []string       `json:"failed_assets,omitempty"`
	FailedChecks   []string       `json:"failed_checks,omitempty"`
	ExportLocation string         `json:"export_location,omitempty"`
	Aborted        string         `json:"aborted,omitempty"`
}

// NewMessage condenses run into a Message.
func NewMessage(run *report.PipelineRun) Message {
	msg := Message{Summary: run.Summary(), Aborted: run.Aborted}
	for _, m := range run.Materializations {
		if m.Status == nodestore.StatusFailed {
			msg.FailedAssets = append(msg.FailedAssets, m.Asset)
		}
	}
	for _, c := range run.Checks {
		if c.Status == check.StatusFailed {
			msg.FailedChecks = append(msg.FailedChecks, c.Name)
		}
	}
	if run.Export != nil {
		msg.ExportLocation = run.Export.Location
	}
	return msg
}

// conn is an established connection.
type conn interface {
	Emit(event string, args ...any) error
	Close()
}

// SocketIO connects once per Publish, emits one event and disconnects.
type SocketIO struct {
	cfg  Config
	dial func(ctx context.Context, cfg Config) (conn, error)
}

// NewSocketIO creates a publisher for cfg.
func NewSocketIO(cfg Config) *SocketIO {
	if cfg.Event == "" {
		cfg.Event = DefaultEvent
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 15 * time.Second
	}
	return &SocketIO{cfg: cfg, dial: dial}
}

// Publish emits the summary of run.
func (p *SocketIO) Publish(ctx context.Context, run *report.PipelineRun) error {
	if run == nil {
		return errors.New("run is required")
	}
	c, err := p.dial(ctx, p.cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Emit(p.cfg.Event, NewMessage(run)); err != nil {
		return fmt.Errorf("failed to emit '%s': %w", p.cfg.Event, err)
	}
	ctxlog.FromContext(ctx).Info("Published run summary.", "event", p.cfg.Event, "url", p.cfg.URL, "runID", run.ID)
	return nil
}

type socketConn struct {
	io *socket.Socket
}

func (s socketConn) Emit(event string, args ...any) error { return s.io.Emit(event, args...) }
func (s socketConn) Close()                               { s.io.Disconnect() }

// dial opens a websocket-only socket.io connection and waits for the
// handshake.
func dial(ctx context.Context, cfg Config) (conn, error) {
	logger := ctxlog.FromContext(ctx).With("url", cfg.URL)

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid socket.io URL %q", cfg.URL)
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	opts.SetReconnection(false)
	opts.SetTimeout(cfg.ConnectTimeout)
	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "/"
	}
	io := manager.Socket(namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Debug("Connected.", "sid", io.Id())
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err, ok := errs[0].(error)
		if !ok {
			err = fmt.Errorf("%v", errs[0])
		}
		connectChan <- err
	})

	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return socketConn{io: io}, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection: %w", ctx.Err())
	case <-time.After(cfg.ConnectTimeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", cfg.ConnectTimeout)
	}
}
