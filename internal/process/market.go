package process

import "github.com/GoSim-25-26J-441/warehouse-sim/pkg/utils"

// State is the observable market state at the start of a period
type State struct {
	Prices         []float64
	PreviousPrices []float64
	Wind           float64
	PreviousWind   float64
}

// Clone returns a deep copy of the state
func (s State) Clone() State {
	return State{
		Prices:         utils.CloneFloat64s(s.Prices),
		PreviousPrices: utils.CloneFloat64s(s.PreviousPrices),
		Wind:           s.Wind,
		PreviousWind:   s.PreviousWind,
	}
}

// Market couples per-warehouse price processes to one shared wind driver.
// A nil Wind disables the driver.
type Market struct {
	Price PriceModel
	Wind  *WindModel
}

// Step samples the next market state. The wind is advanced first and the
// projected value feeds every warehouse's price.
func (m *Market) Step(rng *utils.RandSource, s State) State {
	next := State{
		Prices:         make([]float64, len(s.Prices)),
		PreviousPrices: utils.CloneFloat64s(s.Prices),
	}

	driver := 0.0
	if m.Wind != nil {
		next.Wind = m.Wind.Next(rng, s.Wind, s.PreviousWind)
		next.PreviousWind = s.Wind
		driver = next.Wind
	}

	for w, p := range s.Prices {
		next.Prices[w] = m.Price.NextWithDriver(rng, p, s.PreviousPrices[w], driver)
	}
	return next
}

// Trajectory returns the prices of periods 0..horizon-1, indexed [t][w],
// starting from s at period 0
func (m *Market) Trajectory(rng *utils.RandSource, s State, horizon int) ([][]float64, []State) {
	prices := make([][]float64, horizon)
	states := make([]State, horizon)
	cur := s.Clone()
	for t := 0; t < horizon; t++ {
		prices[t] = utils.CloneFloat64s(cur.Prices)
		states[t] = cur
		if t+1 < horizon {
			cur = m.Step(rng, cur)
		}
	}
	return prices, states
}

// SampleNext draws n independent next-period price vectors from s
func (m *Market) SampleNext(rng *utils.RandSource, s State, n int) [][]float64 {
	samples := make([][]float64, n)
	for i := range samples {
		samples[i] = m.Step(rng, s).Prices
	}
	return samples
}
