// Package recourse implements the two-stage stochastic recourse optimizer.
//
// Stage one holds the here-and-now decision for the current period under
// known prices, stock and demand. Stage two holds one copy of the decision
// variables per price scenario for the next period, weighted by the scenario
// probability and starting from the stage-one ending stock. Only the
// stage-one decision is returned. In the last period of the horizon the
// model has no second stage.
package recourse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/GoSim-25-26J-441/warehouse-sim/internal/decision"
	"github.com/GoSim-25-26J-441/warehouse-sim/internal/lp"
	"github.com/GoSim-25-26J-441/warehouse-sim/internal/network"
	"github.com/GoSim-25-26J-441/warehouse-sim/internal/scenario"
	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/logger"
)

// Input is what the optimizer observes at the start of a period
type Input struct {
	Period    int
	Stock     []float64
	Prices    []float64
	Demand    []float64
	Scenarios *scenario.Set
}

// Plan is an optimal stage-one decision
type Plan struct {
	Decision  decision.Decision
	Objective float64
	Scenarios int
	SolveTime time.Duration
}

// Optimizer builds and solves the recourse model for one network
type Optimizer struct {
	problem      *network.Problem
	solver       lp.Solver
	solveTimeout time.Duration
	logger       *slog.Logger
}

// NewOptimizer creates an optimizer; a nil solver uses lp.NewSimplex
func NewOptimizer(p *network.Problem, solver lp.Solver) *Optimizer {
	if solver == nil {
		solver = lp.NewSimplex()
	}
	return &Optimizer{
		problem: p,
		solver:  solver,
		logger:  logger.Default,
	}
}

// SetLogger sets the optimizer's logger
func (o *Optimizer) SetLogger(l *slog.Logger) {
	o.logger = l
}

// SetSolveTimeout bounds each solve; zero disables the limit
func (o *Optimizer) SetSolveTimeout(d time.Duration) {
	o.solveTimeout = d
}

// Problem returns the network the optimizer plans for
func (o *Optimizer) Problem() *network.Problem {
	return o.problem
}

// Decide solves the recourse model for in. Any non-optimal outcome,
// including an exceeded solve timeout, is an *OptimizationFailedError.
// Cancellation of ctx itself is returned as the context error.
func (o *Optimizer) Decide(ctx context.Context, in Input) (*Plan, error) {
	model, vars, err := o.build(in)
	if err != nil {
		return nil, err
	}

	solveCtx := ctx
	if o.solveTimeout > 0 {
		var cancel context.CancelFunc
		solveCtx, cancel = context.WithTimeout(ctx, o.solveTimeout)
		defer cancel()
	}

	start := time.Now()
	sol, err := o.solver.Solve(solveCtx, model)
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &OptimizationFailedError{Period: in.Period, Status: lp.StatusError, Err: err}
	}

	o.logger.Debug("Recourse model solved",
		"period", in.Period,
		"scenarios", vars.scenarios,
		"variables", model.NumVariables(),
		"constraints", model.NumConstraints(),
		"status", sol.Status.String(),
		"elapsed", elapsed)

	if sol.Status != lp.StatusOptimal {
		return nil, &OptimizationFailedError{Period: in.Period, Status: sol.Status, Message: sol.Message}
	}

	return &Plan{
		Decision:  vars.first.extract(sol, o.problem.Size()),
		Objective: sol.Objective,
		Scenarios: vars.scenarios,
		SolveTime: elapsed,
	}, nil
}

// IsOptimizationFailure reports whether err came from a failed solve
func IsOptimizationFailure(err error) bool {
	return errors.Is(err, ErrOptimizationFailed)
}

// build assembles the LP for in without solving it
func (o *Optimizer) build(in Input) (*lp.Model, *modelVars, error) {
	p := o.problem
	n := p.Size()
	if err := checkLen("stock", in.Stock, n); err != nil {
		return nil, nil, err
	}
	if err := checkLen("prices", in.Prices, n); err != nil {
		return nil, nil, err
	}
	if err := checkLen("demand", in.Demand, n); err != nil {
		return nil, nil, err
	}
	if in.Period < 0 || in.Period >= p.Horizon() {
		return nil, nil, fmt.Errorf("%w: period %d outside horizon %d", ErrInvalidInput, in.Period, p.Horizon())
	}

	last := in.Period == p.Horizon()-1
	if !last {
		if in.Scenarios == nil {
			return nil, nil, fmt.Errorf("%w: period %d needs scenarios", ErrInvalidInput, in.Period)
		}
		if in.Scenarios.Dim() != n {
			return nil, nil, fmt.Errorf("%w: scenarios carry %d prices, expected %d", ErrInvalidInput, in.Scenarios.Dim(), n)
		}
	}

	m := lp.NewModel()
	vars := &modelVars{}

	// Stage one: the prior stock is the constant current stock
	vars.first = addStage(m, p, "s1", in.Prices, 1)
	vars.first.constrain(m, p, in.Demand, constantPrior(in.Stock))

	if !last {
		next := p.DemandAt(in.Period + 1)
		vars.scenarios = in.Scenarios.Len()
		for s := 0; s < in.Scenarios.Len(); s++ {
			st := addStage(m, p, fmt.Sprintf("s2[%d]", s), in.Scenarios.Prices(s), in.Scenarios.Weight(s))
			st.constrain(m, p, next, variablePrior(vars.first.z, p))
		}
	}
	return m, vars, nil
}

func checkLen(name string, v []float64, n int) error {
	if len(v) != n {
		return fmt.Errorf("%w: %s has %d entries, expected %d", ErrInvalidInput, name, len(v), n)
	}
	return nil
}

type modelVars struct {
	first     *stage
	scenarios int
}

// stage holds the variable indices of one stage copy; -1 marks absent links.
// One flow variable per link serves as both send[w][q] and receive[q][w],
// so flow conservation holds by construction.
type stage struct {
	name string
	x    []int
	z    []int
	m    []int
	send [][]int
}

// addStage adds the variables of one stage with objective weight prob
func addStage(m *lp.Model, p *network.Problem, name string, prices []float64, prob float64) *stage {
	n := p.Size()
	st := &stage{
		name: name,
		x:    make([]int, n),
		z:    make([]int, n),
		m:    make([]int, n),
		send: make([][]int, n),
	}
	for w := 0; w < n; w++ {
		id := p.Warehouse(w)
		st.x[w] = m.AddVariable(fmt.Sprintf("%s.x[%s]", name, id), prob*prices[w])
		st.z[w] = m.AddVariable(fmt.Sprintf("%s.z[%s]", name, id), 0)
		st.m[w] = m.AddVariable(fmt.Sprintf("%s.m[%s]", name, id), prob*p.MissCost(w))
		st.send[w] = make([]int, n)
		for q := range st.send[w] {
			st.send[w][q] = -1
		}
	}
	for w := 0; w < n; w++ {
		for q := 0; q < n; q++ {
			if w == q || p.TransportCapacity(w, q) <= 0 {
				continue
			}
			st.send[w][q] = m.AddVariable(fmt.Sprintf("%s.send[%s,%s]", name, p.Warehouse(w), p.Warehouse(q)), prob*p.TransportCost(w, q))
		}
	}
	return st
}

// prior describes the stock carried into a stage: a constant in stage one,
// the stage-one ending stock variable in stage two. bound is the largest
// value the prior stock can take.
type prior func(w int) (term *lp.Term, constant, bound float64)

func constantPrior(stock []float64) prior {
	return func(w int) (*lp.Term, float64, float64) { return nil, stock[w], stock[w] }
}

func variablePrior(z []int, p *network.Problem) prior {
	return func(w int) (*lp.Term, float64, float64) {
		return &lp.Term{Var: z[w], Coef: 1}, 0, p.Capacity(w)
	}
}

// constrain adds the stage rows. A link capacity row is left out when the
// stock carried into the sender can never exceed it.
func (st *stage) constrain(m *lp.Model, p *network.Problem, demand []float64, carried prior) {
	n := p.Size()
	for w := 0; w < n; w++ {
		id := p.Warehouse(w)
		priorTerm, priorConst, priorBound := carried(w)

		var sent []lp.Term
		for q := 0; q < n; q++ {
			if v := st.send[w][q]; v >= 0 {
				if limit := p.TransportCapacity(w, q); limit < priorBound {
					m.AddConstraint(fmt.Sprintf("%s.trcap[%s,%s]", st.name, id, p.Warehouse(q)),
						[]lp.Term{{Var: v, Coef: 1}}, lp.LessEqual, limit)
				}
				sent = append(sent, lp.Term{Var: v, Coef: 1})
			}
		}

		m.AddConstraint(fmt.Sprintf("%s.stcap[%s]", st.name, id),
			[]lp.Term{{Var: st.z[w], Coef: 1}}, lp.LessEqual, p.Capacity(w))

		// x + m + prior + Σ recv - z - Σ send = demand
		balance := []lp.Term{
			{Var: st.x[w], Coef: 1},
			{Var: st.m[w], Coef: 1},
			{Var: st.z[w], Coef: -1},
		}
		if priorTerm != nil {
			balance = append(balance, *priorTerm)
		}
		for q := 0; q < n; q++ {
			if v := st.send[q][w]; v >= 0 {
				balance = append(balance, lp.Term{Var: v, Coef: 1})
			}
			if v := st.send[w][q]; v >= 0 {
				balance = append(balance, lp.Term{Var: v, Coef: -1})
			}
		}
		m.AddConstraint(fmt.Sprintf("%s.balance[%s]", st.name, id), balance, lp.Equal, demand[w]-priorConst)

		// Σ send ≤ prior
		if len(sent) > 0 {
			row := sent
			if priorTerm != nil {
				row = append(row, lp.Term{Var: priorTerm.Var, Coef: -1})
			}
			m.AddConstraint(fmt.Sprintf("%s.ship[%s]", st.name, id), row, lp.LessEqual, priorConst)
		}

		m.AddConstraint(fmt.Sprintf("%s.miss[%s]", st.name, id),
			[]lp.Term{{Var: st.m[w], Coef: 1}}, lp.LessEqual, demand[w])
	}
}

// extract reads the stage decision out of a solution
func (st *stage) extract(sol *lp.Solution, n int) decision.Decision {
	d := decision.New(n)
	for w := 0; w < n; w++ {
		d.Order[w] = sol.Value(st.x[w])
		d.Stock[w] = sol.Value(st.z[w])
		d.Missed[w] = sol.Value(st.m[w])
		for q := 0; q < n; q++ {
			if v := st.send[w][q]; v >= 0 {
				flow := sol.Value(v)
				d.Send[w][q] = flow
				d.Receive[q][w] = flow
			}
		}
	}
	return d
}
