package lp

import (
	"context"
	"fmt"
)

// Status is the termination state reported by a solver
type Status int

const (
	StatusOptimal Status = iota
	StatusInfeasible
	StatusUnbounded
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusInfeasible:
		return "infeasible"
	case StatusUnbounded:
		return "unbounded"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Solution is the result of a solve. Values and Objective are only
// meaningful when Status is StatusOptimal.
type Solution struct {
	Status    Status
	Objective float64
	Values    []float64
	Message   string
}

// Value returns the value of variable i
func (s *Solution) Value(i int) float64 {
	return s.Values[i]
}

// Solver solves a model. Non-optimal outcomes are reported through the
// Solution status; the error is reserved for cancellation.
type Solver interface {
	Solve(ctx context.Context, m *Model) (*Solution, error)
}

// SolverFunc adapts a function to the Solver interface
type SolverFunc func(ctx context.Context, m *Model) (*Solution, error)

// Solve calls f
func (f SolverFunc) Solve(ctx context.Context, m *Model) (*Solution, error) {
	return f(ctx, m)
}
