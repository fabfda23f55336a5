// Package table provides the in-memory tabular dataset that flows between
// pipeline assets.
//
// A Dataset is an ordered set of named, typed columns of equal length. Values
// are immutable once a Dataset is returned: every operation in this package
// returns a new Dataset and never mutates its receiver. Columns may be shared
// between datasets because they are never written after construction.
package table
