// Package config assembles the application configuration from layered
// sources. Built-in defaults come first, then HCL files, then environment
// variables; the CLI applies its flags last. Validate reports every invalid
// option at once.
package config
