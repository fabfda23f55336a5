package check

import (
	"errors"
	"fmt"
)

// ErrCheckEvaluation matches any *EvaluationError.
var ErrCheckEvaluation = errors.New("check evaluation failed")

// EvaluationError reports a check that could not reach a verdict, typically
// because its input lacks an expected column. It is converted into a failed
// Result by Evaluate and never escapes it.
type EvaluationError struct {
	Check string
	Err   error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("check '%s': %v", e.Check, e.Err)
}

func (e *EvaluationError) Unwrap() []error { return []error{ErrCheckEvaluation, e.Err} }
