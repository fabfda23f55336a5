package executor

import (
	"errors"
	"fmt"
)

var (
	// ErrCompute matches any *ComputeError.
	ErrCompute = errors.New("compute failed")
	// ErrNodeTimeout is wrapped by ComputeErrors caused by the per-asset
	// timeout.
	ErrNodeTimeout = errors.New("asset timed out")
)

// ComputeError reports the failure of one asset's compute function, whether
// it returned an error, panicked or timed out.
type ComputeError struct {
	Asset string
	Err   error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("asset '%s': %v", e.Asset, e.Err)
}

func (e *ComputeError) Unwrap() []error { return []error{ErrCompute, e.Err} }
