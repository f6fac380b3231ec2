// Package lp builds linear programs and solves them through a Solver.
//
// Models are written in the natural form "minimize c·x subject to rows of
// (≤, =, ≥) constraints, x ≥ 0". The shipped Simplex solver converts them to
// the standard form expected by gonum's simplex implementation.
package lp

import (
	"fmt"
	"math"
)

// Sense is the relation of a constraint row
type Sense int

const (
	LessEqual Sense = iota
	Equal
	GreaterEqual
)

func (s Sense) String() string {
	switch s {
	case LessEqual:
		return "<="
	case Equal:
		return "="
	case GreaterEqual:
		return ">="
	default:
		return fmt.Sprintf("Sense(%d)", int(s))
	}
}

// Term is a coefficient applied to a variable
type Term struct {
	Var  int
	Coef float64
}

// Constraint is one row of the model
type Constraint struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

// Model is a minimization LP over non-negative variables
type Model struct {
	names       []string
	objective   []float64
	constraints []Constraint

	// trivially violated rows detected while building
	infeasible []string
}

// NewModel creates an empty model
func NewModel() *Model {
	return &Model{}
}

// AddVariable adds a non-negative variable with the given objective
// coefficient and returns its index
func (m *Model) AddVariable(name string, cost float64) int {
	m.names = append(m.names, name)
	m.objective = append(m.objective, cost)
	return len(m.names) - 1
}

// AddConstraint adds a row. Rows with an unlimited bound on the open side
// (≤ +Inf, ≥ -Inf) are dropped and false is returned. Rows without terms are
// checked immediately and never reach the solver.
func (m *Model) AddConstraint(name string, terms []Term, sense Sense, rhs float64) bool {
	if (sense == LessEqual && math.IsInf(rhs, 1)) || (sense == GreaterEqual && math.IsInf(rhs, -1)) {
		return false
	}
	for _, t := range terms {
		if t.Var < 0 || t.Var >= len(m.names) {
			panic(fmt.Sprintf("lp: constraint %s references unknown variable %d", name, t.Var))
		}
	}
	if len(terms) == 0 {
		if !emptyRowHolds(sense, rhs) {
			m.infeasible = append(m.infeasible, name)
		}
		return false
	}
	m.constraints = append(m.constraints, Constraint{
		Name:  name,
		Terms: append([]Term(nil), terms...),
		Sense: sense,
		RHS:   rhs,
	})
	return true
}

func emptyRowHolds(sense Sense, rhs float64) bool {
	switch sense {
	case LessEqual:
		return rhs >= 0
	case GreaterEqual:
		return rhs <= 0
	default:
		return rhs == 0
	}
}

// NumVariables returns the number of structural variables
func (m *Model) NumVariables() int {
	return len(m.names)
}

// NumConstraints returns the number of rows passed to the solver
func (m *Model) NumConstraints() int {
	return len(m.constraints)
}

// VariableName returns the name given to variable i
func (m *Model) VariableName(i int) string {
	return m.names[i]
}

// Constraints returns the rows of the model
func (m *Model) Constraints() []Constraint {
	return m.constraints
}

// Cost returns the objective coefficient of variable i
func (m *Model) Cost(i int) float64 {
	return m.objective[i]
}

// Evaluate returns the objective value of x
func (m *Model) Evaluate(x []float64) float64 {
	total := 0.0
	for i, c := range m.objective {
		total += c * x[i]
	}
	return total
}
