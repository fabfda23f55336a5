package inmemorystore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/vk/assetgrid/internal/nodestore"
	"github.com/vk/assetgrid/internal/table"
)

// Store is an in-memory implementation of nodestore.Store using sync.Map
// for fine-grained concurrent access without global lock contention.
//
// Each asset's state lives under its name in independent maps, so workers
// touching different assets never contend.
type Store struct {
	states  sync.Map // Key: asset name, Value: nodestore.Status
	outputs sync.Map // Key: asset name, Value: *table.Dataset
	errors  sync.Map // Key: asset name, Value: error
	writes  sync.Map // Key: asset name, Value: *atomic.Int64
	hits    sync.Map // Key: asset name, Value: *atomic.Int64
}

// New creates a new, empty in-memory store.
func New() *Store {
	return &Store{}
}

var _ nodestore.Store = (*Store)(nil)

// SetStatus validates and applies a status transition.
func (s *Store) SetStatus(ctx context.Context, name string, status nodestore.Status) error {
	for {
		cur, loaded := s.states.Load(name)
		from := nodestore.StatusPending
		if loaded {
			from = cur.(nodestore.Status)
		}
		if !nodestore.CanTransition(from, status) {
			return fmt.Errorf("%w for '%s': %s -> %s", nodestore.ErrInvalidTransition, name, from, status)
		}
		if !loaded {
			if _, raced := s.states.LoadOrStore(name, status); !raced {
				return nil
			}
			continue
		}
		if s.states.CompareAndSwap(name, cur, status) {
			return nil
		}
	}
}

// GetStatus retrieves the status of an asset. If a status has not been set,
// it returns StatusPending.
func (s *Store) GetStatus(ctx context.Context, name string) (nodestore.Status, error) {
	status, ok := s.states.Load(name)
	if !ok {
		return nodestore.StatusPending, nil
	}
	return status.(nodestore.Status), nil
}

// SetOutput records the materialized output of an asset.
func (s *Store) SetOutput(ctx context.Context, name string, output *table.Dataset) error {
	s.outputs.Store(name, output)
	counter(&s.writes, name).Add(1)
	return nil
}

// GetOutput serves a cached output and counts the hit.
func (s *Store) GetOutput(ctx context.Context, name string) (*table.Dataset, bool, error) {
	output, ok := s.outputs.Load(name)
	if !ok {
		return nil, false, nil
	}
	counter(&s.hits, name).Add(1)
	return output.(*table.Dataset), true, nil
}

// SetError records the failure error of an asset.
func (s *Store) SetError(ctx context.Context, name string, nodeErr error) error {
	s.errors.Store(name, nodeErr)
	return nil
}

// GetError retrieves the recorded error of a failed asset.
func (s *Store) GetError(ctx context.Context, name string) (error, error) {
	err, ok := s.errors.Load(name)
	if !ok {
		return nil, nil // If not found, there is no error.
	}
	return err.(error), nil
}

// Stats returns the cache counters of an asset.
func (s *Store) Stats(ctx context.Context, name string) nodestore.CacheStats {
	return nodestore.CacheStats{
		Writes: counter(&s.writes, name).Load(),
		Hits:   counter(&s.hits, name).Load(),
	}
}

func counter(m *sync.Map, name string) *atomic.Int64 {
	if c, ok := m.Load(name); ok {
		return c.(*atomic.Int64)
	}
	c, _ := m.LoadOrStore(name, new(atomic.Int64))
	return c.(*atomic.Int64)
}
