// Package process provides the stochastic samplers that drive prices, the
// exogenous wind signal and realized demand. All samplers draw from a
// caller-supplied utils.RandSource so trajectories are reproducible.
package process

import (
	"math"

	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/utils"
)

// Sampler advances a scalar process by one period
type Sampler interface {
	Next(rng *utils.RandSource, current, previous float64) float64
}

// PriceModel is a mean-reverting price process with momentum and an
// exogenous driver. Negative draws are replaced, with probability
// NegativeResampleProb, by a uniform draw in [0, NegativeResampleFraction*Mean).
type PriceModel struct {
	Mean                     float64
	Reversion                float64
	Momentum                 float64
	WindInfluence            float64
	NoiseStdDev              float64
	Cap                      float64
	Floor                    float64
	NegativeResampleProb     float64
	NegativeResampleFraction float64
}

// Next advances the price without an exogenous driver
func (m PriceModel) Next(rng *utils.RandSource, current, previous float64) float64 {
	return m.NextWithDriver(rng, current, previous, 0)
}

// NextWithDriver advances the price given the projected driver value
func (m PriceModel) NextWithDriver(rng *utils.RandSource, current, previous, driver float64) float64 {
	next := current +
		m.Momentum*(current-previous) +
		m.Reversion*(m.Mean-current) +
		m.WindInfluence*driver +
		rng.NormFloat64(0, m.NoiseStdDev)

	if next < 0 && rng.BernoulliBool(m.NegativeResampleProb) {
		next = rng.UniformFloat64(0, m.Mean*m.NegativeResampleFraction)
	}
	return utils.ClampFloat64(next, m.Floor, m.Cap)
}

// WindModel is a correlated mean-reverting process with rare extreme events
type WindModel struct {
	Target      float64
	Reversion   float64
	Momentum    float64
	NoiseStdDev float64
	ExtremeProb float64
	HighMin     float64
	HighMax     float64
	LowMin      float64
	LowMax      float64
}

// Next advances the wind signal; the result is floored at zero
func (m WindModel) Next(rng *utils.RandSource, current, previous float64) float64 {
	noise := rng.NormFloat64(0, m.NoiseStdDev) + m.Momentum*(current-previous)
	reversion := m.Reversion * (m.Target - current)

	extreme := 0.0
	if rng.BernoulliBool(m.ExtremeProb) {
		if rng.BernoulliBool(0.5) {
			extreme = rng.UniformFloat64(m.HighMin, m.HighMax)
		} else {
			extreme = rng.UniformFloat64(m.LowMin, m.LowMax)
		}
	}
	return math.Max(current+reversion+noise+extreme, 0)
}

// DemandNoise perturbs nominal demand by a multiplicative Gaussian factor
type DemandNoise struct {
	StdDev float64
}

// Realize returns the realized demand for one period. The factor is
// truncated at zero so demand stays non-negative.
func (d DemandNoise) Realize(rng *utils.RandSource, nominal []float64) []float64 {
	out := make([]float64, len(nominal))
	for w, v := range nominal {
		if d.StdDev == 0 {
			out[w] = v
			continue
		}
		out[w] = v * math.Max(0, 1+rng.NormFloat64(0, d.StdDev))
	}
	return out
}
