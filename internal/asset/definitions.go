package asset

import (
	"github.com/vk/assetgrid/internal/check"
	"github.com/vk/assetgrid/internal/dag"
)

// Definitions is a validated, immutable pipeline declaration. It may be
// shared by any number of runs.
type Definitions struct {
	nodes  []Node
	checks []check.Definition
	index  map[string]int
	graph  *dag.Graph
	order  []string
}

// Nodes returns the assets in declaration order.
func (d *Definitions) Nodes() []Node {
	return append([]Node(nil), d.nodes...)
}

// Index returns the declaration position of the named asset, or -1.
func (d *Definitions) Index(name string) int {
	if i, ok := d.index[name]; ok {
		return i
	}
	return -1
}

// Order returns the canonical materialization order: dependencies first,
// ties broken by declaration order.
func (d *Definitions) Order() []string {
	return append([]string(nil), d.order...)
}

// Dependents returns the assets that list name as upstream, in declaration
// order.
func (d *Definitions) Dependents(name string) []string {
	out, _ := d.graph.Dependents(name)
	return out
}

// Descendants returns every asset transitively downstream of name, in
// declaration order.
func (d *Definitions) Descendants(name string) []string {
	out, _ := d.graph.Descendants(name)
	return out
}

// Checks returns all checks in declaration order.
func (d *Definitions) Checks() []check.Definition {
	return append([]check.Definition(nil), d.checks...)
}
