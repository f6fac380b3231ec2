package policy

import (
	"context"
	"math"

	"github.com/GoSim-25-26J-441/warehouse-sim/internal/decision"
	"github.com/GoSim-25-26J-441/warehouse-sim/internal/network"
	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/config"
)

// Fallback is the deterministic safe policy: no shipments, order up to the
// shortfall within the storage capacity, and miss whatever remains. For any
// stock within [0, capacity] its decision satisfies every feasibility rule.
type Fallback struct {
	problem *network.Problem
}

// NewFallback creates the fallback policy for a network
func NewFallback(p *network.Problem) *Fallback {
	return &Fallback{problem: p}
}

// Name returns the policy name
func (f *Fallback) Name() string {
	return config.PolicyFallback
}

// Decide never fails; the error is always nil
func (f *Fallback) Decide(_ context.Context, s State) (decision.Decision, error) {
	return f.Compute(s.Stock, s.Demand), nil
}

// Compute returns the fallback decision for the given stock and demand
func (f *Fallback) Compute(stock, demand []float64) decision.Decision {
	n := f.problem.Size()
	d := decision.New(n)
	for w := 0; w < n; w++ {
		shortfall := demand[w] - stock[w]
		if shortfall <= 0 {
			d.Stock[w] = stock[w] - demand[w]
			continue
		}
		d.Order[w] = math.Min(shortfall, f.problem.Capacity(w))
		d.Missed[w] = math.Max(shortfall-d.Order[w], 0)
	}
	return d
}
