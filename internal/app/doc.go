// Package app contains the core application logic. It builds the data
// source, sink and optional collaborators from a Config and drives one
// pipeline run, decoupled from any specific entrypoint like a CLI.
package app
