package recourse

import (
	"errors"
	"fmt"

	"github.com/GoSim-25-26J-441/warehouse-sim/internal/lp"
)

var (
	// ErrOptimizationFailed is wrapped by every OptimizationFailedError
	ErrOptimizationFailed = errors.New("optimization failed")
	// ErrInvalidInput is returned when the input does not match the network
	ErrInvalidInput = errors.New("invalid optimizer input")
)

// OptimizationFailedError reports a solve that did not reach optimality
type OptimizationFailedError struct {
	Period  int
	Status  lp.Status
	Message string
	Err     error
}

func (e *OptimizationFailedError) Error() string {
	msg := fmt.Sprintf("period %d: solver status %s", e.Period, e.Status)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes ErrOptimizationFailed and the underlying cause
func (e *OptimizationFailedError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrOptimizationFailed, e.Err}
	}
	return []error{ErrOptimizationFailed}
}
