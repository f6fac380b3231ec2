package lp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
	golp "gonum.org/v1/gonum/optimize/convex/lp"
)

// DefaultTolerance is the reduced-cost tolerance passed to the simplex
const DefaultTolerance = 1e-10

// Simplex solves models with gonum's dense simplex implementation
type Simplex struct {
	Tolerance float64

	// slots bounds the solves running at once, counting solves whose caller
	// already gave up; nil means no bound
	slots chan struct{}
}

// NewSimplex creates a simplex solver with the default tolerance
func NewSimplex() *Simplex {
	return &Simplex{Tolerance: DefaultTolerance}
}

// NewBoundedSimplex creates a simplex solver that runs at most n solves at
// once. A solve abandoned on timeout keeps its slot until it finishes, so
// timed-out work cannot pile up behind new callers.
func NewBoundedSimplex(n int) *Simplex {
	s := NewSimplex()
	if n > 0 {
		s.slots = make(chan struct{}, n)
	}
	return s
}

type simplexResult struct {
	sol *Solution
}

// Solve runs the simplex in a separate goroutine so a cancelled context
// returns promptly; the abandoned solve finishes in the background.
func (s *Simplex) Solve(ctx context.Context, m *Model) (*Solution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.slots != nil {
		select {
		case s.slots <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	done := make(chan simplexResult, 1)
	go func() {
		if s.slots != nil {
			defer func() { <-s.slots }()
		}
		done <- simplexResult{sol: s.solve(m)}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.sol, nil
	}
}

func (s *Simplex) solve(m *Model) (sol *Solution) {
	defer func() {
		if r := recover(); r != nil {
			sol = &Solution{Status: StatusError, Message: fmt.Sprint(r)}
		}
	}()

	if len(m.infeasible) > 0 {
		return &Solution{
			Status:  StatusInfeasible,
			Message: "trivially violated rows: " + strings.Join(m.infeasible, ", "),
		}
	}

	for i, cost := range m.objective {
		if cost < 0 && !m.constrained(i) {
			return &Solution{Status: StatusUnbounded, Message: "negative cost on unconstrained variable " + m.names[i]}
		}
	}

	c, A, b, columns, err := m.standardForm()
	if err != nil {
		return &Solution{Status: StatusInfeasible, Message: err.Error()}
	}
	values := make([]float64, m.NumVariables())
	if len(b) == 0 {
		return &Solution{Status: StatusOptimal, Objective: m.Evaluate(values), Values: values}
	}

	tol := s.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}
	_, x, err := golp.Simplex(c, A, b, tol, nil)
	switch {
	case err == nil:
	case errors.Is(err, golp.ErrInfeasible):
		return &Solution{Status: StatusInfeasible, Message: err.Error()}
	case errors.Is(err, golp.ErrUnbounded):
		return &Solution{Status: StatusUnbounded, Message: err.Error()}
	default:
		return &Solution{Status: StatusError, Message: err.Error()}
	}

	for i, col := range columns {
		if col >= 0 {
			// clip simplex round-off below zero
			values[i] = math.Max(x[col], 0)
		}
	}
	return &Solution{
		Status:    StatusOptimal,
		Objective: m.Evaluate(values),
		Values:    values,
	}
}

// constrained reports whether variable i has a non-zero coefficient in any row
func (m *Model) constrained(i int) bool {
	for _, row := range m.constraints {
		for _, t := range row.Terms {
			if t.Var == i && t.Coef != 0 {
				return true
			}
		}
	}
	return false
}

// standardForm returns c, A, b with A·x = b, x ≥ 0, and the column of each
// structural variable (-1 when the variable appears in no row and is fixed
// at zero). Every inequality gets its own slack column and rows with a
// negative right-hand side are negated so the simplex starts from b ≥ 0.
func (m *Model) standardForm() (c []float64, A *mat.Dense, b []float64, columns []int, err error) {
	n := m.NumVariables()

	used := make([]bool, n)
	var rows []Constraint
	for _, row := range m.constraints {
		nonzero := false
		for _, t := range row.Terms {
			if t.Coef != 0 {
				used[t.Var] = true
				nonzero = true
			}
		}
		if !nonzero {
			if !emptyRowHolds(row.Sense, row.RHS) {
				return nil, nil, nil, nil, fmt.Errorf("row %s has no coefficients and cannot hold", row.Name)
			}
			continue
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		// no variable is constrained; with non-negative costs all sit at zero
		return nil, nil, nil, nil, nil
	}

	columns = make([]int, n)
	structural := 0
	for i := range columns {
		columns[i] = -1
		if used[i] {
			columns[i] = structural
			structural++
		}
	}

	slacks := 0
	for _, row := range rows {
		if row.Sense != Equal {
			slacks++
		}
	}

	cols := structural + slacks
	A = mat.NewDense(len(rows), cols, nil)
	b = make([]float64, len(rows))
	c = make([]float64, cols)
	for i, col := range columns {
		if col >= 0 {
			c[col] = m.objective[i]
		}
	}

	slack := structural
	for i, row := range rows {
		for _, t := range row.Terms {
			if col := columns[t.Var]; col >= 0 {
				A.Set(i, col, A.At(i, col)+t.Coef)
			}
		}
		switch row.Sense {
		case LessEqual:
			A.Set(i, slack, 1)
			slack++
		case GreaterEqual:
			A.Set(i, slack, -1)
			slack++
		}
		b[i] = row.RHS
		if b[i] < 0 {
			b[i] = -b[i]
			for j := 0; j < cols; j++ {
				if v := A.At(i, j); v != 0 {
					A.Set(i, j, -v)
				}
			}
		}
	}
	return c, A, b, columns, nil
}
