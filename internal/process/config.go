package process

import "github.com/GoSim-25-26J-441/warehouse-sim/pkg/config"

// NewMarket builds a market from configuration
func NewMarket(prices config.Prices) *Market {
	pp := prices.Process
	if pp == nil {
		pp = config.DefaultPriceProcess()
	}
	m := &Market{
		Price: PriceModel{
			Mean:                     pp.Mean,
			Reversion:                pp.Reversion,
			Momentum:                 pp.Momentum,
			WindInfluence:            pp.WindInfluence,
			NoiseStdDev:              pp.NoiseStdDev,
			Cap:                      pp.Cap,
			Floor:                    pp.Floor,
			NegativeResampleProb:     pp.NegativeResampleProb,
			NegativeResampleFraction: pp.NegativeResampleFraction,
		},
	}
	if wp := prices.Wind; wp != nil {
		m.Wind = &WindModel{
			Target:      wp.Target,
			Reversion:   wp.Reversion,
			Momentum:    wp.Momentum,
			NoiseStdDev: wp.NoiseStdDev,
			ExtremeProb: wp.ExtremeProb,
			HighMin:     wp.HighMin,
			HighMax:     wp.HighMax,
			LowMin:      wp.LowMin,
			LowMax:      wp.LowMax,
		}
	}
	return m
}

// InitialState returns the market state of period 0
func InitialState(cfg *config.Config) State {
	s := State{
		Prices:         cfg.PriceVector(cfg.Prices.Initial),
		PreviousPrices: cfg.PriceVector(cfg.Prices.Previous),
	}
	if wp := cfg.Prices.Wind; wp != nil {
		s.Wind = wp.Initial
		s.PreviousWind = wp.Initial
	}
	return s
}

// NewDemandNoise builds the realized-demand perturbation; nil means none
func NewDemandNoise(d *config.DemandNoise) DemandNoise {
	if d == nil {
		return DemandNoise{}
	}
	return DemandNoise{StdDev: d.StdDev}
}
