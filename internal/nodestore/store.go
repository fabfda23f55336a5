// Package nodestore defines the interface for storing and retrieving the
// mutable execution state of assets during one pipeline run.
//
// The store isolates per-run state (status, outputs, errors) from the
// immutable asset declarations, so a declaration can be shared by many runs
// while each run owns a fresh store.
//
// The store is:
//  1. Created once per run
//  2. Mutated by the executor as assets move through their states
//  3. Read by the executor to feed downstream assets and checks from cache
//  4. Discarded when the run ends
//
// Assets follow this lifecycle:
//
//	Pending → Running → Materialized (with output) OR Failed (with error)
//	Pending → Skipped
package nodestore

import (
	"context"
	"errors"

	"github.com/vk/assetgrid/internal/table"
)

// ErrInvalidTransition is returned for a status change the lifecycle does not
// allow.
var ErrInvalidTransition = errors.New("invalid status transition")

// CacheStats counts cache traffic for one asset.
type CacheStats struct {
	// Writes is the number of times an output was stored.
	Writes int64
	// Hits is the number of times a stored output was served.
	Hits int64
}

// Store is the interface for managing the mutable execution state of assets
// during a run.
//
// Implementations MUST be safe for concurrent use: workers materialize
// independent assets in parallel while checks read cached outputs.
type Store interface {
	// SetStatus moves an asset to a new status. Transitions outside the
	// lifecycle fail with ErrInvalidTransition.
	SetStatus(ctx context.Context, name string, status Status) error

	// GetStatus returns the current status, StatusPending if none was set.
	GetStatus(ctx context.Context, name string) (Status, error)

	// SetOutput caches the materialized output of an asset.
	SetOutput(ctx context.Context, name string, output *table.Dataset) error

	// GetOutput serves a cached output. It reports false when no output has
	// been stored. Every successful lookup counts as a cache hit.
	GetOutput(ctx context.Context, name string) (*table.Dataset, bool, error)

	// SetError records why an asset failed.
	SetError(ctx context.Context, name string, nodeErr error) error

	// GetError returns the recorded failure, or nil.
	GetError(ctx context.Context, name string) (error, error)

	// Stats returns the cache counters of an asset.
	Stats(ctx context.Context, name string) CacheStats
}
