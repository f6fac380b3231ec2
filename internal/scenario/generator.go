package scenario

import (
	"github.com/GoSim-25-26J-441/warehouse-sim/internal/process"
	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/utils"
)

// Generator samples next-period prices from the market and reduces them to
// a weighted scenario set
type Generator struct {
	Market  *process.Market
	Samples int
	Reducer Reducer
}

// Sample draws the raw next-period price vectors
func (g *Generator) Sample(rng *utils.RandSource, state process.State) [][]float64 {
	return g.Market.SampleNext(rng, state, g.Samples)
}

// Generate samples and reduces in one step
func (g *Generator) Generate(rng *utils.RandSource, state process.State) (*Set, error) {
	return g.Reducer.Reduce(rng, g.Sample(rng, state))
}

// SampleMean returns a single-scenario set at the mean of fresh samples
func (g *Generator) SampleMean(rng *utils.RandSource, state process.State) (*Set, error) {
	samples := g.Sample(rng, state)
	set, err := Uniform(samples)
	if err != nil {
		return nil, err
	}
	return Deterministic(set.Mean()), nil
}
