// Package check evaluates data-quality checks over materialized datasets.
//
// A check never interrupts the pipeline: Evaluate turns errors and panics
// raised while evaluating into a failed Result that carries the message under
// the "error" metadata key.
package check

import (
	"fmt"

	"github.com/vk/assetgrid/internal/table"
)

// Status is the terminal state of a check within a run.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// MetaError is the metadata key holding the reason a check could not be
// evaluated.
const MetaError = "error"

// Result is the verdict of one check evaluation.
type Result struct {
	Passed   bool
	Metadata Metadata
}

// Status maps the verdict to a terminal status.
func (r Result) Status() Status {
	if r.Passed {
		return StatusPassed
	}
	return StatusFailed
}

// EvaluateFunc computes a verdict over a dataset. It must not modify the
// dataset. Returning an error marks the input as malformed.
type EvaluateFunc func(d *table.Dataset) (Result, error)

// Definition is a check bound to exactly one asset.
type Definition struct {
	Name        string
	Asset       string
	Description string
	Evaluate    EvaluateFunc
}

// Evaluate runs def against d and always returns a verdict. When the check
// could not be evaluated the verdict is failed, its metadata carries the
// reason under MetaError, and the *EvaluationError is returned alongside for
// logging. The error is informational only.
func Evaluate(def Definition, d *table.Dataset) (res Result, evalErr error) {
	defer func() {
		if r := recover(); r != nil {
			res, evalErr = failed(def.Name, fmt.Errorf("panic: %v", r))
		}
	}()

	if def.Evaluate == nil {
		return failed(def.Name, fmt.Errorf("no evaluate function"))
	}
	if d == nil {
		return failed(def.Name, fmt.Errorf("no dataset"))
	}
	res, err := def.Evaluate(d)
	if err != nil {
		return failed(def.Name, err)
	}
	if res.Metadata == nil {
		res.Metadata = Metadata{}
	}
	if err := res.Metadata.validate(); err != nil {
		return failed(def.Name, err)
	}
	return res, nil
}

func failed(name string, err error) (Result, error) {
	return Result{Passed: false, Metadata: Metadata{MetaError: Str(err.Error())}},
		&EvaluationError{Check: name, Err: err}
}
