package dag

import (
	"errors"
	"sync"
)

var (
	// ErrCycle is returned when the graph contains a dependency cycle.
	ErrCycle = errors.New("cycle detected")
	// ErrUnknownNode is returned when an operation names a node not in the graph.
	ErrUnknownNode = errors.New("node not found")
	// ErrSelfEdge is returned for an edge from a node to itself.
	ErrSelfEdge = errors.New("self-referential edge not allowed")
)

// Graph is a collection of nodes and their dependencies, representing a DAG.
// All operations on the graph are concurrency-safe.
type Graph struct {
	// mutex protects the nodes map during concurrent access.
	mutex sync.RWMutex
	// nodes stores all nodes in the graph, keyed by their unique ID.
	nodes map[string]*node
	// order lists the nodes in declaration order.
	order []*node
}

// node represents a single vertex in the graph. It is un-exported to
// enforce interaction with the graph via the public API (using string IDs),
// not by direct struct manipulation.
type node struct {
	// id is the unique identifier for the node.
	id string
	// index is the declaration position of the node.
	index int
	// deps holds the set of nodes that this node depends on (predecessors).
	deps map[string]*node
	// dependents holds the set of nodes that depend on this node (successors).
	dependents map[string]*node
}
