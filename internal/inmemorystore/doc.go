// Package inmemorystore provides a thread-safe, in-memory implementation
// of the nodestore.Store interface. It backs the per-run asset cache: every
// run gets a fresh store, which is dropped with the run.
package inmemorystore
