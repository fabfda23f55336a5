package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/assetgrid/internal/check"
	"github.com/vk/assetgrid/internal/nodestore"
	"github.com/vk/assetgrid/internal/report"
)

type fakeConn struct {
	events []string
	args   [][]any
	closed bool
	err    error
}

func (f *fakeConn) Emit(event string, args ...any) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	f.args = append(f.args, args)
	return nil
}

func (f *fakeConn) Close() { f.closed = true }

func sampleRun() *report.PipelineRun {
	return &report.PipelineRun{
		ID: "run-1",
		Materializations: []report.MaterializationResult{
			{Asset: "raw", Status: nodestore.StatusMaterialized},
			{Asset: "processed", Status: nodestore.StatusFailed, Error: "missing column"},
			{Asset: "incidence_7d", Status: nodestore.StatusSkipped},
		},
		Checks: []report.CheckOutcome{
			{Name: "unique_entity_date", Status: check.StatusPassed, Passed: true},
			{Name: "population_positive", Status: check.StatusFailed},
		},
	}
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage(sampleRun())
	assert.Equal(t, "run-1", msg.Summary.RunID)
	assert.Equal(t, []string{"processed"}, msg.FailedAssets)
	assert.Equal(t, []string{"population_positive"}, msg.FailedChecks)
	assert.Empty(t, msg.ExportLocation)
}

func TestSocketIO_Publish(t *testing.T) {
	t.Run("emits one message and disconnects", func(t *testing.T) {
		fake := &fakeConn{}
		p := NewSocketIO(Config{URL: "http://localhost:3000"})
		p.dial = func(ctx context.Context, cfg Config) (conn, error) {
			assert.Equal(t, DefaultEvent, cfg.Event)
			return fake, nil
		}

		require.NoError(t, p.Publish(context.Background(), sampleRun()))
		assert.Equal(t, []string{DefaultEvent}, fake.events)
		require.Len(t, fake.args[0], 1)
		assert.IsType(t, Message{}, fake.args[0][0])
		assert.True(t, fake.closed)
	})

	t.Run("emit failure is returned", func(t *testing.T) {
		fake := &fakeConn{err: errors.New("socket closed")}
		p := NewSocketIO(Config{URL: "http://localhost:3000", Event: "runs"})
		p.dial = func(context.Context, Config) (conn, error) { return fake, nil }

		err := p.Publish(context.Background(), sampleRun())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "runs")
		assert.True(t, fake.closed)
	})

	t.Run("dial failure is returned", func(t *testing.T) {
		p := NewSocketIO(Config{URL: "http://localhost:3000"})
		p.dial = func(context.Context, Config) (conn, error) { return nil, errors.New("refused") }
		assert.EqualError(t, p.Publish(context.Background(), sampleRun()), "refused")
	})

	t.Run("nil run", func(t *testing.T) {
		assert.Error(t, NewSocketIO(Config{}).Publish(context.Background(), nil))
	})
}

func TestDial_InvalidURL(t *testing.T) {
	_, err := dial(context.Background(), Config{URL: "not a url"})
	assert.Error(t, err)
}
