package dag

import (
	"container/heap"
	"fmt"
	"sort"
)

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*node),
	}
}

// AddNode adds a new node with the given ID to the graph. If a node with
// the same ID already exists, the function does nothing and the node keeps
// its original declaration position.
func (g *Graph) AddNode(id string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.nodes[id]; ok {
		return
	}

	n := &node{
		id:         id,
		index:      len(g.order),
		deps:       make(map[string]*node),
		dependents: make(map[string]*node),
	}
	g.nodes[id] = n
	g.order = append(g.order, n)
}

// AddEdge creates a directed edge from the `fromID` node to the `toID` node.
// This signifies that `toID` has a dependency on `fromID`. An error is returned
// if either node does not exist or if the edge would create a self-reference.
func (g *Graph) AddEdge(fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("%w: %s -> %s", ErrSelfEdge, fromID, fromID)
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	fromNode, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("source %w: %s", ErrUnknownNode, fromID)
	}

	toNode, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination %w: %s", ErrUnknownNode, toID)
	}

	toNode.deps[fromID] = fromNode
	fromNode.dependents[toID] = toNode

	return nil
}

// Dependents returns the IDs of the nodes that depend on the given node, in
// declaration order.
func (g *Graph) Dependents(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	return sortedIDs(n.dependents), nil
}

// Descendants returns every node reachable from the given node through
// dependent edges, in declaration order. The node itself is not included.
func (g *Graph) Descendants(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	start, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	seen := make(map[string]*node)
	stack := []*node{start}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for depID, d := range n.dependents {
			if _, ok := seen[depID]; !ok {
				seen[depID] = d
				stack = append(stack, d)
			}
		}
	}
	return sortedIDs(seen), nil
}

// TopologicalOrder returns the node IDs ordered so that every node follows
// all of its dependencies. Among the nodes that are ready at any point, the
// earliest declared comes first.
func (g *Graph) TopologicalOrder() ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	pending := make(map[string]int, len(g.order))
	ready := &IndexHeap{}
	for _, n := range g.order {
		pending[n.id] = len(n.deps)
		if len(n.deps) == 0 {
			heap.Push(ready, n.index)
		}
	}

	out := make([]string, 0, len(g.order))
	for ready.Len() > 0 {
		n := g.order[heap.Pop(ready).(int)]
		out = append(out, n.id)
		for _, d := range n.dependents {
			pending[d.id]--
			if pending[d.id] == 0 {
				heap.Push(ready, d.index)
			}
		}
	}
	if len(out) != len(g.order) {
		return nil, g.findCycle()
	}
	return out, nil
}

// findCycle returns an error wrapping ErrCycle naming a node on a cycle, or
// nil for an acyclic graph. Nodes are visited in declaration order, so the
// reported node is stable across runs. The caller holds the lock.
func (g *Graph) findCycle() error {
	// permanent: fully visited and not on a cycle.
	// temporary: on the current traversal path.
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)

	var visit func(n *node) error
	visit = func(n *node) error {
		if permanent[n.id] {
			return nil
		}
		if temporary[n.id] {
			return fmt.Errorf("%w involving node '%s'", ErrCycle, n.id)
		}

		temporary[n.id] = true
		for _, dependent := range sortedNodes(n.dependents) {
			if err := visit(dependent); err != nil {
				return err
			}
		}
		delete(temporary, n.id)
		permanent[n.id] = true

		return nil
	}

	for _, n := range g.order {
		if err := visit(n); err != nil {
			return err
		}
	}
	return nil
}

func sortedNodes(set map[string]*node) []*node {
	out := make([]*node, 0, len(set))
	for _, n := range set {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].index < out[j].index })
	return out
}

func sortedIDs(set map[string]*node) []string {
	return ids(sortedNodes(set))
}

func ids(nodes []*node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.id
	}
	return out
}
