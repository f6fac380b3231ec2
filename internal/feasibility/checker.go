package feasibility

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/GoSim-25-26J-441/warehouse-sim/internal/decision"
	"github.com/GoSim-25-26J-441/warehouse-sim/internal/network"
	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/utils"
)

// Constraint names a physical rule a decision must satisfy
type Constraint string

const (
	ConstraintDimension         Constraint = "dimension"
	ConstraintNonNegative       Constraint = "non_negative"
	ConstraintFlowConservation  Constraint = "flow_conservation"
	ConstraintTransportCapacity Constraint = "transport_capacity"
	ConstraintStorageCapacity   Constraint = "storage_capacity"
	ConstraintShipmentStock     Constraint = "shipment_stock"
	ConstraintMissedDemand      Constraint = "missed_demand"
	ConstraintDemandBalance     Constraint = "demand_balance"
)

// ErrInfeasible is wrapped by Result.Err when a check fails
var ErrInfeasible = errors.New("decision is infeasible")

// Violation describes one broken constraint
type Violation struct {
	Constraint Constraint `json:"constraint"`
	Warehouse  string     `json:"warehouse,omitempty"`
	Peer       string     `json:"peer,omitempty"`
	Value      float64    `json:"value"`
	Limit      float64    `json:"limit"`
	Detail     string     `json:"detail,omitempty"`
}

func (v Violation) String() string {
	var b strings.Builder
	b.WriteString(string(v.Constraint))
	if v.Warehouse != "" {
		b.WriteString(" at ")
		b.WriteString(v.Warehouse)
		if v.Peer != "" {
			b.WriteString("->")
			b.WriteString(v.Peer)
		}
	}
	if v.Detail != "" {
		b.WriteString(": ")
		b.WriteString(v.Detail)
	}
	fmt.Fprintf(&b, " (value %g, limit %g)", v.Value, v.Limit)
	return b.String()
}

// Result is the outcome of a feasibility check
type Result struct {
	Violations []Violation `json:"violations,omitempty"`
}

// Feasible reports whether no constraint was violated
func (r Result) Feasible() bool {
	return len(r.Violations) == 0
}

// Has reports whether constraint c was violated at least once
func (r Result) Has(c Constraint) bool {
	for _, v := range r.Violations {
		if v.Constraint == c {
			return true
		}
	}
	return false
}

// Err returns nil for a feasible result, otherwise an error wrapping
// ErrInfeasible that lists every violation
func (r Result) Err() error {
	if r.Feasible() {
		return nil
	}
	parts := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		parts[i] = v.String()
	}
	return fmt.Errorf("%w: %s", ErrInfeasible, strings.Join(parts, "; "))
}

// Checker validates decisions against the realized state of a network.
// It never modifies its inputs.
type Checker struct {
	problem   *network.Problem
	tolerance float64
}

// NewChecker creates a checker. A non-positive tolerance selects
// utils.DefaultTolerance.
func NewChecker(p *network.Problem, tolerance float64) *Checker {
	if tolerance <= 0 {
		tolerance = utils.DefaultTolerance
	}
	return &Checker{problem: p, tolerance: tolerance}
}

// Tolerance returns the absolute tolerance used for comparisons
func (c *Checker) Tolerance() float64 {
	return c.tolerance
}

// Feasible is Check reduced to a predicate
func (c *Checker) Feasible(d decision.Decision, stock, demand []float64) bool {
	return c.Check(d, stock, demand).Feasible()
}

// Check validates d given the stock carried into the period and the
// realized demand. Dimension errors are reported alone.
func (c *Checker) Check(d decision.Decision, stock, demand []float64) Result {
	if dims := c.checkDimensions(d, stock, demand); len(dims) > 0 {
		return Result{Violations: dims}
	}

	p := c.problem
	tol := c.tolerance
	n := p.Size()
	var out []Violation
	add := func(v Violation) { out = append(out, v) }

	// quantities
	vectors := []struct {
		name string
		v    []float64
	}{
		{"order", d.Order}, {"stock", d.Stock}, {"missed", d.Missed},
	}
	for _, vec := range vectors {
		for w, x := range vec.v {
			if negative(x, tol) {
				add(Violation{Constraint: ConstraintNonNegative, Warehouse: p.Warehouse(w), Detail: vec.name, Value: x})
			}
		}
	}
	matrices := []struct {
		name string
		m    [][]float64
	}{
		{"send", d.Send}, {"receive", d.Receive},
	}
	for _, mat := range matrices {
		for w, row := range mat.m {
			for q, x := range row {
				if negative(x, tol) {
					add(Violation{Constraint: ConstraintNonNegative, Warehouse: p.Warehouse(w), Peer: p.Warehouse(q), Detail: mat.name, Value: x})
				}
			}
		}
	}

	// links
	for w := 0; w < n; w++ {
		for q := 0; q < n; q++ {
			send := d.Send[w][q]
			if !utils.ApproxEqual(send, d.Receive[q][w], tol) {
				add(Violation{
					Constraint: ConstraintFlowConservation,
					Warehouse:  p.Warehouse(w),
					Peer:       p.Warehouse(q),
					Detail:     "send differs from the peer's receive",
					Value:      send,
					Limit:      d.Receive[q][w],
				})
			}
			if limit := p.TransportCapacity(w, q); !utils.LessOrEqual(send, limit, tol) {
				add(Violation{Constraint: ConstraintTransportCapacity, Warehouse: p.Warehouse(w), Peer: p.Warehouse(q), Value: send, Limit: limit})
			}
		}
	}

	// warehouses
	for w := 0; w < n; w++ {
		id := p.Warehouse(w)
		if limit := p.Capacity(w); !utils.LessOrEqual(d.Stock[w], limit, tol) {
			add(Violation{Constraint: ConstraintStorageCapacity, Warehouse: id, Value: d.Stock[w], Limit: limit})
		}

		sent := d.Sent(w)
		if !utils.LessOrEqual(sent, stock[w], tol) {
			add(Violation{Constraint: ConstraintShipmentStock, Warehouse: id, Detail: "sent more than the stock carried in", Value: sent, Limit: stock[w]})
		}

		if !utils.LessOrEqual(d.Missed[w], demand[w], tol) {
			add(Violation{Constraint: ConstraintMissedDemand, Warehouse: id, Value: d.Missed[w], Limit: demand[w]})
		}

		// order + missed + carried + received - ending - sent = demand
		served := d.Order[w] + d.Missed[w] + stock[w] + d.Received(w) - d.Stock[w] - sent
		if math.IsNaN(served) || !utils.ApproxEqual(served, demand[w], tol) {
			add(Violation{Constraint: ConstraintDemandBalance, Warehouse: id, Value: served, Limit: demand[w]})
		}
	}

	return Result{Violations: out}
}

// checkDimensions reports every vector or matrix whose length is not |W|
func (c *Checker) checkDimensions(d decision.Decision, stock, demand []float64) []Violation {
	n := c.problem.Size()
	var out []Violation
	bad := func(name string, got int) {
		out = append(out, Violation{
			Constraint: ConstraintDimension,
			Detail:     name,
			Value:      float64(got),
			Limit:      float64(n),
		})
	}

	vectors := []struct {
		name string
		v    []float64
	}{
		{"order", d.Order}, {"stock", d.Stock}, {"missed", d.Missed},
		{"current stock", stock}, {"demand", demand},
	}
	for _, vec := range vectors {
		if len(vec.v) != n {
			bad(vec.name, len(vec.v))
		}
	}
	matrices := []struct {
		name string
		m    [][]float64
	}{
		{"send", d.Send}, {"receive", d.Receive},
	}
	for _, mat := range matrices {
		if len(mat.m) != n {
			bad(mat.name, len(mat.m))
			continue
		}
		for _, row := range mat.m {
			if len(row) != n {
				bad(mat.name+" row", len(row))
				break
			}
		}
	}
	return out
}

// negative flags values below -tol and values that are not finite numbers
func negative(x, tol float64) bool {
	return math.IsNaN(x) || math.IsInf(x, 0) || x < -tol
}
