package evaluation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/GoSim-25-26J-441/warehouse-sim/internal/decision"
	"github.com/GoSim-25-26J-441/warehouse-sim/internal/metrics"
	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/models"
	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/utils"
)

// Report is the result of a complete evaluation run
type Report struct {
	Policy   string
	Seed     int64
	Summary  *models.RunSummary
	Ledger   *decision.Ledger
	Metrics  *metrics.Collector
	Duration time.Duration
}

// experimentResult holds what one experiment produced, in period order
type experimentResult struct {
	steps []StepResult
	cost  decimal.Decimal
}

// Run evaluates the policy over every experiment. Experiments run on up to
// MaxParallel workers; results are collected by experiment index so the
// report does not depend on scheduling.
func (e *Evaluator) Run(ctx context.Context) (*Report, error) {
	if e.experiments < 1 {
		return nil, fmt.Errorf("no experiments to run")
	}

	start := time.Now()
	e.logger.Info("Starting evaluation",
		"policy", e.policy.Name(),
		"experiments", e.experiments,
		"periods", e.problem.Horizon(),
		"seed", e.seed,
		"max_parallel", e.parallel)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Limit parallelism
	semaphore := make(chan struct{}, e.parallel)
	var wg sync.WaitGroup
	results := make([]*experimentResult, e.experiments)
	ledger := decision.NewLedger(e.experiments, e.problem.Horizon())
	var (
		once     sync.Once
		firstErr error
	)

	for i := 0; i < e.experiments; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			res, err := e.runExperiment(ctx, idx, ledger)
			if err != nil {
				once.Do(func() {
					firstErr = fmt.Errorf("experiment %d failed: %w", idx, err)
					cancel()
				})
				return
			}
			results[idx] = res
			if e.progress != nil {
				e.progress.Increment()
			}
		}(i)
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	report := e.report(results, ledger)
	report.Duration = time.Since(start)

	e.logger.Info("Evaluation completed",
		"policy", report.Policy,
		"expected_cost", report.Summary.ExpectedCost,
		"ci95", report.Summary.CI95,
		"fallback_rate", report.Summary.FallbackRate(),
		"duration", report.Duration)

	return report, nil
}

// RunExperiment evaluates a single experiment and returns its step results
// and total cost
func (e *Evaluator) RunExperiment(ctx context.Context, experiment int) ([]StepResult, decimal.Decimal, error) {
	res, err := e.runExperiment(ctx, experiment, nil)
	if err != nil {
		return nil, decimal.Zero, err
	}
	return res.steps, res.cost, nil
}

// runExperiment steps through every period; a non-nil ledger receives each
// applied decision as soon as its period is evaluated
func (e *Evaluator) runExperiment(ctx context.Context, experiment int, ledger *decision.Ledger) (*experimentResult, error) {
	state := e.Begin(experiment)
	steps := make([]StepResult, 0, e.problem.Horizon())
	for !state.Done() {
		var (
			res StepResult
			err error
		)
		res, state, err = e.Step(ctx, state)
		if err != nil {
			return nil, err
		}
		if ledger != nil {
			err = ledger.Record(decision.Key{Experiment: experiment, Period: res.Period}, decision.Record{
				Decision: res.Decision,
				Outcome:  res.Outcome,
				Cost:     res.Cost.InexactFloat64(),
				Prices:   res.Prices,
				Demand:   res.Demand,
			})
			if err != nil {
				return nil, err
			}
		}
		steps = append(steps, res)
	}

	e.telemetry.ObserveExperimentCost(e.policy.Name(), state.Cost.InexactFloat64())
	e.logger.Debug("Experiment finished",
		"experiment", experiment,
		"cost", state.Cost.StringFixed(4))

	return &experimentResult{steps: steps, cost: state.Cost}, nil
}

// report fills the collector in experiment order and aggregates it
func (e *Evaluator) report(results []*experimentResult, ledger *decision.Ledger) *Report {
	name := e.policy.Name()
	collector := metrics.NewCollector()
	collector.Start()

	total := decimal.Zero
	for _, res := range results {
		now := time.Now()
		for _, step := range res.steps {
			cost := step.Cost.InexactFloat64()
			metrics.RecordPeriodCost(collector, cost, now, metrics.CreateOutcomeLabels(name, step.Outcome))
			metrics.RecordMissedDemand(collector, utils.Sum(step.Decision.Missed), now, metrics.CreatePeriodLabels(name, step.Period))
			if step.Outcome != decision.OutcomeRejectedOptimizationFailed {
				metrics.RecordSolveTime(collector, step.Elapsed, now, metrics.CreatePeriodLabels(name, step.Period))
			}
		}
		metrics.RecordExperimentCost(collector, res.cost.InexactFloat64(), now, metrics.CreatePolicyLabels(name))
		total = total.Add(res.cost)
	}
	collector.Stop()

	summary := metrics.ConvertToRunSummary(collector, name, e.problem.Horizon())
	// exact mean of the decimal experiment costs
	summary.ExpectedCost = total.Div(decimal.NewFromInt(int64(len(results)))).InexactFloat64()

	return &Report{
		Policy:  name,
		Seed:    e.seed,
		Summary: summary,
		Ledger:  ledger,
		Metrics: collector,
	}
}
