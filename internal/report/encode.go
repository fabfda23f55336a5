package report

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// EncodeJSON writes the run as indented JSON.
func EncodeJSON(w io.Writer, r *PipelineRun) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding run report as json: %w", err)
	}
	return nil
}

// EncodeYAML writes the run as YAML.
func EncodeYAML(w io.Writer, r *PipelineRun) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding run report as yaml: %w", err)
	}
	return enc.Close()
}

// Encode picks the encoding from the extension of path: .yaml and .yml give
// YAML, anything else JSON.
func Encode(w io.Writer, path string, r *PipelineRun) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return EncodeYAML(w, r)
	default:
		return EncodeJSON(w, r)
	}
}
