// Package transform holds the pure dataset transformations of the pipeline:
// cleaning and scoping the raw extract, the per-entity 7-day metrics and the
// profile of the raw table.
//
// Every function reads its input without modifying it and returns a new
// dataset, so results are deterministic and safe to recompute.
package transform
