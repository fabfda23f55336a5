package asset

import (
	"errors"
	"fmt"

	"github.com/vk/assetgrid/internal/check"
	"github.com/vk/assetgrid/internal/dag"
)

// Builder collects asset and check declarations. Declaration order is
// significant: it breaks ties in the materialization order and orders the
// checks in run reports.
type Builder struct {
	nodes  []Node
	checks []check.Definition
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Asset declares a node.
func (b *Builder) Asset(n Node) *Builder {
	n.Upstream = append([]string(nil), n.Upstream...)
	b.nodes = append(b.nodes, n)
	return b
}

// Check declares a check bound to def.Asset.
func (b *Builder) Check(def check.Definition) *Builder {
	b.checks = append(b.checks, def)
	return b
}

// Build validates the declarations and returns them as Definitions. All
// problems found are reported together.
func (b *Builder) Build() (*Definitions, error) {
	var errs []error

	g := dag.New()
	byName := make(map[string]int, len(b.nodes))
	for i, n := range b.nodes {
		switch {
		case n.Name == "":
			errs = append(errs, fmt.Errorf("asset #%d has no name", i))
			continue
		case n.Compute == nil:
			errs = append(errs, fmt.Errorf("asset '%s' has no compute function", n.Name))
		}
		if _, dup := byName[n.Name]; dup {
			errs = append(errs, fmt.Errorf("%w: '%s'", ErrDuplicateAsset, n.Name))
			continue
		}
		byName[n.Name] = i
		g.AddNode(n.Name)
	}

	for _, n := range b.nodes {
		for _, up := range n.Upstream {
			if _, ok := byName[up]; !ok {
				errs = append(errs, fmt.Errorf("%w: asset '%s' depends on '%s'", ErrUnknownUpstream, n.Name, up))
				continue
			}
			if err := g.AddEdge(up, n.Name); err != nil {
				errs = append(errs, fmt.Errorf("asset '%s': %w", n.Name, err))
			}
		}
	}

	checkNames := make(map[string]struct{}, len(b.checks))
	for _, c := range b.checks {
		if _, dup := checkNames[c.Name]; dup {
			errs = append(errs, fmt.Errorf("%w: '%s'", ErrDuplicateCheck, c.Name))
		}
		checkNames[c.Name] = struct{}{}
		if _, ok := byName[c.Asset]; !ok {
			errs = append(errs, fmt.Errorf("%w: check '%s' on '%s'", ErrUnknownAsset, c.Name, c.Asset))
		}
		if c.Evaluate == nil {
			errs = append(errs, fmt.Errorf("check '%s' has no evaluate function", c.Name))
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid pipeline definition: %w", errors.Join(errs...))
	}

	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, fmt.Errorf("invalid pipeline definition: %w", err)
	}

	d := &Definitions{
		nodes:  append([]Node(nil), b.nodes...),
		checks: append([]check.Definition(nil), b.checks...),
		index:  byName,
		graph:  g,
		order:  order,
	}
	return d, nil
}
