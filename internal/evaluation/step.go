package evaluation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/GoSim-25-26J-441/warehouse-sim/internal/decision"
	"github.com/GoSim-25-26J-441/warehouse-sim/internal/feasibility"
	"github.com/GoSim-25-26J-441/warehouse-sim/internal/policy"
	"github.com/GoSim-25-26J-441/warehouse-sim/internal/process"
	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/utils"
)

// ErrHorizonExhausted is returned by Step once every period was evaluated
var ErrHorizonExhausted = errors.New("experiment horizon exhausted")

// Path is the realized exogenous data of one experiment, indexed [t][w]
type Path struct {
	Prices [][]float64
	States []process.State
	Demand [][]float64
}

// PeriodState is the state carried from one period to the next
type PeriodState struct {
	Experiment int
	Period     int
	Stock      []float64
	Cost       decimal.Decimal

	Path *Path
	// Rand is the experiment's scenario stream
	Rand *utils.RandSource
}

// Done reports whether every period of the experiment was evaluated
func (s PeriodState) Done() bool {
	return s.Path == nil || s.Period >= len(s.Path.Demand)
}

// StepResult describes one evaluated period
type StepResult struct {
	Experiment int
	Period     int
	Outcome    decision.Outcome
	// Decision is the decision that was applied
	Decision decision.Decision
	// Candidate is the rejected policy decision, nil when accepted or when
	// the policy produced none
	Candidate  *decision.Decision
	Violations []feasibility.Violation
	Reason     string
	Cost       decimal.Decimal
	Prices     []float64
	Demand     []float64
	Elapsed    time.Duration
}

// Begin returns the period-0 state of experiment e
func (e *Evaluator) Begin(experiment int) PeriodState {
	trajectory, scenarios := e.streams(experiment)
	return PeriodState{
		Experiment: experiment,
		Stock:      e.problem.InitialStock(),
		Cost:       decimal.Zero,
		Path:       e.samplePath(trajectory),
		Rand:       scenarios,
	}
}

// streams derives the trajectory and scenario streams of an experiment.
// They depend only on the run seed and the experiment index.
func (e *Evaluator) streams(experiment int) (trajectory, scenarios *utils.RandSource) {
	run := utils.NewRandSource(e.seed)
	return run.Derive(uint64(2 * experiment)), run.Derive(uint64(2*experiment + 1))
}

func (e *Evaluator) samplePath(rng *utils.RandSource) *Path {
	horizon := e.problem.Horizon()
	prices, states := e.market.Trajectory(rng, e.initial, horizon)
	demand := make([][]float64, horizon)
	for t := range demand {
		demand[t] = e.noise.Realize(rng, e.problem.DemandAt(t))
	}
	return &Path{Prices: prices, States: states, Demand: demand}
}

// Step evaluates one period: decide, validate, accept or fall back, cost,
// and advance the stock. Only cancellation of ctx is returned as an error;
// policy failures become rejected outcomes.
func (e *Evaluator) Step(ctx context.Context, s PeriodState) (StepResult, PeriodState, error) {
	if err := ctx.Err(); err != nil {
		return StepResult{}, s, err
	}
	if s.Done() {
		return StepResult{}, s, fmt.Errorf("%w: experiment %d", ErrHorizonExhausted, s.Experiment)
	}

	t := s.Period
	prices := s.Path.Prices[t]
	demand := s.Path.Demand[t]
	var next []float64
	if t+1 < len(s.Path.Prices) {
		next = s.Path.Prices[t+1]
	}

	start := time.Now()
	candidate, err := e.policy.Decide(ctx, policy.State{
		Experiment: s.Experiment,
		Period:     t,
		Stock:      utils.CloneFloat64s(s.Stock),
		Prices:     utils.CloneFloat64s(prices),
		Demand:     utils.CloneFloat64s(demand),
		Market:     s.Path.States[t].Clone(),
		NextPrices: utils.CloneFloat64s(next),
		Rand:       s.Rand,
	})
	elapsed := time.Since(start)
	if err != nil && ctx.Err() != nil {
		return StepResult{}, s, ctx.Err()
	}

	res := StepResult{
		Experiment: s.Experiment,
		Period:     t,
		Prices:     utils.CloneFloat64s(prices),
		Demand:     utils.CloneFloat64s(demand),
		Elapsed:    elapsed,
	}

	if err != nil {
		res.Outcome = decision.OutcomeRejectedOptimizationFailed
		res.Reason = err.Error()
		e.logger.Warn("Policy failed to decide, using fallback",
			"experiment", s.Experiment,
			"period", t,
			"policy", e.policy.Name(),
			"error", err)
	} else if check := e.checker.Check(candidate, s.Stock, demand); !check.Feasible() {
		res.Outcome = decision.OutcomeRejectedInfeasible
		res.Violations = check.Violations
		res.Reason = check.Err().Error()
		res.Candidate = &candidate
		e.logger.Warn("Decision does not meet the constraints, using fallback",
			"experiment", s.Experiment,
			"period", t,
			"policy", e.policy.Name(),
			"violations", len(check.Violations),
			"first", check.Violations[0].String())
	} else {
		res.Outcome = decision.OutcomeAccepted
		res.Decision = candidate
	}

	if res.Outcome.Rejected() {
		res.Decision = e.fallback.Compute(s.Stock, demand)
	}

	res.Cost = e.periodCost(res.Decision, prices)

	e.telemetry.ObserveDecision(e.policy.Name(), res.Outcome.String())
	if e.policy.Name() != e.fallback.Name() {
		e.telemetry.ObserveSolve(e.policy.Name(), elapsed)
	}

	e.logger.Debug("Period evaluated",
		"experiment", s.Experiment,
		"period", t,
		"outcome", res.Outcome.String(),
		"cost", res.Cost.StringFixed(4))

	return res, PeriodState{
		Experiment: s.Experiment,
		Period:     t + 1,
		Stock:      e.carry(res.Decision.Stock),
		Cost:       s.Cost.Add(res.Cost),
		Path:       s.Path,
		Rand:       s.Rand,
	}, nil
}

// periodCost is Σ_w price·order + miss cost·missed + Σ_q transport cost·sent
func (e *Evaluator) periodCost(d decision.Decision, prices []float64) decimal.Decimal {
	total := decimal.Zero
	for w := 0; w < e.problem.Size(); w++ {
		total = total.
			Add(decimal.NewFromFloat(prices[w]).Mul(decimal.NewFromFloat(d.Order[w]))).
			Add(decimal.NewFromFloat(e.problem.MissCost(w)).Mul(decimal.NewFromFloat(d.Missed[w])))
		for q, sent := range d.Send[w] {
			if sent == 0 {
				continue
			}
			total = total.Add(decimal.NewFromFloat(e.problem.TransportCost(w, q)).Mul(decimal.NewFromFloat(sent)))
		}
	}
	return total
}

// carry returns the next period's stock with solver rounding clipped to
// [0, capacity]
func (e *Evaluator) carry(stock []float64) []float64 {
	out := make([]float64, len(stock))
	for w, z := range stock {
		out[w] = utils.ClampFloat64(z, 0, e.problem.Capacity(w))
	}
	return out
}
