// Package asset declares the nodes of a pipeline and the checks bound to
// them. A Builder collects declarations and validates them into an immutable
// Definitions value; there is no process-wide registry.
package asset

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/assetgrid/internal/table"
)

var (
	ErrDuplicateAsset  = errors.New("duplicate asset")
	ErrUnknownUpstream = errors.New("unknown upstream asset")
	ErrDuplicateCheck  = errors.New("duplicate check")
	ErrUnknownAsset    = errors.New("check bound to unknown asset")
	// ErrNotUpstream is returned when a compute function asks for an asset it
	// did not declare as upstream.
	ErrNotUpstream = errors.New("asset is not a declared upstream")
)

// ComputeFunc derives a dataset from the outputs of the declared upstream
// assets. It must not modify its inputs.
type ComputeFunc func(ctx context.Context, in Inputs) (*table.Dataset, error)

// Node is one named pipeline step.
type Node struct {
	Name        string
	Description string
	// Upstream lists the assets whose outputs are passed to Compute.
	Upstream []string
	Compute  ComputeFunc
}

// Inputs is the read-only view of upstream outputs handed to a compute
// function. It only exposes the node's declared upstream assets.
type Inputs struct {
	node   string
	tables map[string]*table.Dataset
}

// NewInputs restricts outputs to the upstream assets of node. Outputs of any
// other asset are not reachable through the returned value.
func NewInputs(node Node, outputs map[string]*table.Dataset) Inputs {
	tables := make(map[string]*table.Dataset, len(node.Upstream))
	for _, name := range node.Upstream {
		if d, ok := outputs[name]; ok {
			tables[name] = d
		}
	}
	return Inputs{node: node.Name, tables: tables}
}

// Get returns the output of a declared upstream asset.
func (in Inputs) Get(name string) (*table.Dataset, error) {
	d, ok := in.tables[name]
	if !ok {
		return nil, fmt.Errorf("asset '%s' reading '%s': %w", in.node, name, ErrNotUpstream)
	}
	return d, nil
}
