package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/GoSim-25-26J-441/warehouse-sim/internal/decision"
	"github.com/GoSim-25-26J-441/warehouse-sim/internal/network"
	"github.com/GoSim-25-26J-441/warehouse-sim/internal/process"
	"github.com/GoSim-25-26J-441/warehouse-sim/internal/recourse"
	"github.com/GoSim-25-26J-441/warehouse-sim/internal/scenario"
	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/config"
	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/utils"
)

// ErrUnknownPolicy is returned by New for unsupported names
var ErrUnknownPolicy = errors.New("unknown policy")

// State is what a replenishment policy observes at the start of a period
type State struct {
	Experiment int
	Period     int
	Stock      []float64
	Prices     []float64
	Demand     []float64

	// Market is the price process state used to sample scenarios
	Market process.State
	// NextPrices are the realized prices of the next period; only the
	// oracle reads them and they are nil in the last period
	NextPrices []float64
	// Rand is the experiment's scenario stream
	Rand *utils.RandSource
}

// ReplenishmentPolicy decides orders, shipments and unmet demand for a period
type ReplenishmentPolicy interface {
	// Name returns the policy name for identification
	Name() string
	// Decide returns the here-and-now decision for s
	Decide(ctx context.Context, s State) (decision.Decision, error)
}

// New creates the named policy. The optimizer and generator are ignored by
// the fallback policy and may be nil for it.
func New(name string, p *network.Problem, opt *recourse.Optimizer, gen *scenario.Generator) (ReplenishmentPolicy, error) {
	switch name {
	case config.PolicyFallback:
		return NewFallback(p), nil
	case config.PolicyStochastic:
		if opt == nil || gen == nil {
			return nil, fmt.Errorf("%s policy needs an optimizer and a scenario generator", name)
		}
		return &stochasticPolicy{optimizer: opt, generator: gen}, nil
	case config.PolicyExpectedValue:
		if opt == nil || gen == nil {
			return nil, fmt.Errorf("%s policy needs an optimizer and a scenario generator", name)
		}
		return &expectedValuePolicy{optimizer: opt, generator: gen}, nil
	case config.PolicyOracle:
		if opt == nil {
			return nil, fmt.Errorf("%s policy needs an optimizer", name)
		}
		return &oraclePolicy{optimizer: opt}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownPolicy, name)
	}
}

func lastPeriod(p *network.Problem, s State) bool {
	return s.Period >= p.Horizon()-1
}

func decide(ctx context.Context, opt *recourse.Optimizer, s State, set *scenario.Set) (decision.Decision, error) {
	plan, err := opt.Decide(ctx, recourse.Input{
		Period:    s.Period,
		Stock:     s.Stock,
		Prices:    s.Prices,
		Demand:    s.Demand,
		Scenarios: set,
	})
	if err != nil {
		return decision.Decision{}, err
	}
	return plan.Decision, nil
}

// stochasticPolicy hedges over k-means reduced price scenarios
type stochasticPolicy struct {
	optimizer *recourse.Optimizer
	generator *scenario.Generator
}

func (p *stochasticPolicy) Name() string {
	return config.PolicyStochastic
}

func (p *stochasticPolicy) Decide(ctx context.Context, s State) (decision.Decision, error) {
	var set *scenario.Set
	if !lastPeriod(p.optimizer.Problem(), s) {
		var err error
		if set, err = p.generator.Generate(s.Rand, s.Market); err != nil {
			return decision.Decision{}, fmt.Errorf("failed to generate scenarios: %w", err)
		}
	}
	return decide(ctx, p.optimizer, s, set)
}

// expectedValuePolicy plans against the mean of the sampled prices
type expectedValuePolicy struct {
	optimizer *recourse.Optimizer
	generator *scenario.Generator
}

func (p *expectedValuePolicy) Name() string {
	return config.PolicyExpectedValue
}

func (p *expectedValuePolicy) Decide(ctx context.Context, s State) (decision.Decision, error) {
	var set *scenario.Set
	if !lastPeriod(p.optimizer.Problem(), s) {
		var err error
		if set, err = p.generator.SampleMean(s.Rand, s.Market); err != nil {
			return decision.Decision{}, fmt.Errorf("failed to sample mean prices: %w", err)
		}
	}
	return decide(ctx, p.optimizer, s, set)
}

// oraclePolicy knows the realized next-period prices
type oraclePolicy struct {
	optimizer *recourse.Optimizer
}

func (p *oraclePolicy) Name() string {
	return config.PolicyOracle
}

func (p *oraclePolicy) Decide(ctx context.Context, s State) (decision.Decision, error) {
	var set *scenario.Set
	if !lastPeriod(p.optimizer.Problem(), s) {
		if s.NextPrices == nil {
			return decision.Decision{}, fmt.Errorf("oracle policy: next prices missing for period %d", s.Period)
		}
		set = scenario.Deterministic(s.NextPrices)
	}
	return decide(ctx, p.optimizer, s, set)
}
