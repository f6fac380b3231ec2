// Package evaluation runs a replenishment policy over many random
// experiments. Every period's decision is validated against the realized
// state and replaced by the fallback policy when it is rejected, so one bad
// period never aborts a run.
package evaluation

import (
	"fmt"
	"log/slog"

	"github.com/GoSim-25-26J-441/warehouse-sim/internal/feasibility"
	"github.com/GoSim-25-26J-441/warehouse-sim/internal/lp"
	"github.com/GoSim-25-26J-441/warehouse-sim/internal/metrics"
	"github.com/GoSim-25-26J-441/warehouse-sim/internal/network"
	"github.com/GoSim-25-26J-441/warehouse-sim/internal/policy"
	"github.com/GoSim-25-26J-441/warehouse-sim/internal/process"
	"github.com/GoSim-25-26J-441/warehouse-sim/internal/recourse"
	"github.com/GoSim-25-26J-441/warehouse-sim/internal/scenario"
	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/config"
	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/logger"
	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/models"
	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/utils"
)

// Evaluator is the Monte-Carlo policy evaluation harness
type Evaluator struct {
	problem   *network.Problem
	market    *process.Market
	initial   process.State
	noise     process.DemandNoise
	optimizer *recourse.Optimizer
	policy    policy.ReplenishmentPolicy
	fallback  *policy.Fallback
	checker   *feasibility.Checker

	experiments int
	parallel    int
	seed        int64

	logger    *slog.Logger
	telemetry *metrics.Telemetry
	progress  *models.RunProgress
}

// New builds an evaluator from a validated configuration. A nil solver uses
// the simplex solver bounded to MaxParallel concurrent solves.
func New(cfg *config.Config, solver lp.Solver) (*Evaluator, error) {
	p, err := cfg.Problem()
	if err != nil {
		return nil, err
	}

	ev := cfg.Evaluation
	timeout, err := ev.GetSolveTimeout()
	if err != nil {
		return nil, fmt.Errorf("invalid solve_timeout: %w", err)
	}

	parallel := ev.MaxParallel
	if parallel < 1 {
		parallel = 1
	}
	if solver == nil {
		solver = lp.NewBoundedSimplex(parallel)
	}

	market := process.NewMarket(cfg.Prices)
	optimizer := recourse.NewOptimizer(p, solver)
	optimizer.SetSolveTimeout(timeout)

	generator := &scenario.Generator{
		Market:  market,
		Samples: ev.Samples,
		Reducer: scenario.Reducer{
			Clusters:   ev.Scenarios,
			Iterations: ev.KMeansIterations,
		},
	}

	pol, err := policy.New(ev.Policy, p, optimizer, generator)
	if err != nil {
		return nil, err
	}

	// a zero seed is drawn once so all experiments share it
	seed := ev.Seed
	if seed == 0 {
		seed = utils.NewRandSource(0).Seed()
	}

	return &Evaluator{
		problem:     p,
		market:      market,
		initial:     process.InitialState(cfg),
		noise:       process.NewDemandNoise(cfg.Demand),
		optimizer:   optimizer,
		policy:      pol,
		fallback:    policy.NewFallback(p),
		checker:     feasibility.NewChecker(p, ev.Tolerance),
		experiments: ev.Experiments,
		parallel:    parallel,
		seed:        seed,
		logger:      logger.Default,
	}, nil
}

// SetLogger sets the logger of the evaluator and its optimizer
func (e *Evaluator) SetLogger(l *slog.Logger) {
	e.logger = l
	e.optimizer.SetLogger(l)
}

// SetTelemetry enables Prometheus metrics; nil disables them
func (e *Evaluator) SetTelemetry(t *metrics.Telemetry) {
	e.telemetry = t
}

// SetProgress registers a tracker that is incremented per finished experiment
func (e *Evaluator) SetProgress(p *models.RunProgress) {
	e.progress = p
}

// Problem returns the evaluated network
func (e *Evaluator) Problem() *network.Problem {
	return e.problem
}

// Policy returns the evaluated policy's name
func (e *Evaluator) Policy() string {
	return e.policy.Name()
}

// Seed returns the run seed
func (e *Evaluator) Seed() int64 {
	return e.seed
}

// Experiments returns the number of experiments per run
func (e *Evaluator) Experiments() int {
	return e.experiments
}
