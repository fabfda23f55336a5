// Package dag holds the dependency graph of a pipeline. Nodes remember the
// order in which they were declared, and that order breaks every tie when the
// graph is walked, so the materialization order of a pipeline is fully
// determined by its declaration.
package dag
