package config

import "time"

// Config represents the main evaluation configuration
type Config struct {
	LogLevel   string       `yaml:"log_level"`
	Network    Network      `yaml:"network"`
	Prices     Prices       `yaml:"prices"`
	Demand     *DemandNoise `yaml:"realized_demand,omitempty"`
	Evaluation Evaluation   `yaml:"evaluation"`
	Server     *Server      `yaml:"server,omitempty"`
}

// Network describes the warehouses and their static data. Per-warehouse
// tables are keyed by warehouse id; transport tables are keyed [from][to].
// A missing transport pair means no link (zero capacity, zero cost).
// Capacities accept .inf for unlimited.
type Network struct {
	Warehouses        []string                      `yaml:"warehouses"`
	Horizon           int                           `yaml:"horizon,omitempty"`
	MissCost          map[string]float64            `yaml:"miss_cost"`
	Capacity          map[string]float64            `yaml:"warehouse_capacity"`
	InitialStock      map[string]float64            `yaml:"initial_stock"`
	TransportCost     map[string]map[string]float64 `yaml:"transport_cost"`
	TransportCapacity map[string]map[string]float64 `yaml:"transport_capacity"`
	Demand            map[string][]float64          `yaml:"demand"`
}

// Prices configures the per-warehouse price trajectories
type Prices struct {
	Initial  map[string]float64 `yaml:"initial,omitempty"`
	Previous map[string]float64 `yaml:"previous,omitempty"`
	Process  *PriceProcess      `yaml:"process,omitempty"`
	Wind     *WindProcess       `yaml:"wind,omitempty"`
}

// PriceProcess holds the parameters of the mean-reverting price model
type PriceProcess struct {
	Mean                     float64 `yaml:"mean"`
	Reversion                float64 `yaml:"reversion"`
	Momentum                 float64 `yaml:"momentum"`
	WindInfluence            float64 `yaml:"wind_influence"`
	NoiseStdDev              float64 `yaml:"noise_stddev"`
	Cap                      float64 `yaml:"cap"`
	Floor                    float64 `yaml:"floor"`
	NegativeResampleProb     float64 `yaml:"negative_resample_prob"`
	NegativeResampleFraction float64 `yaml:"negative_resample_fraction"`
}

// WindProcess holds the parameters of the exogenous wind driver
type WindProcess struct {
	Initial     float64 `yaml:"initial"`
	Target      float64 `yaml:"target"`
	Reversion   float64 `yaml:"reversion"`
	Momentum    float64 `yaml:"momentum"`
	NoiseStdDev float64 `yaml:"noise_stddev"`
	ExtremeProb float64 `yaml:"extreme_prob"`
	HighMin     float64 `yaml:"high_min"`
	HighMax     float64 `yaml:"high_max"`
	LowMin      float64 `yaml:"low_min"`
	LowMax      float64 `yaml:"low_max"`
}

// DemandNoise perturbs the nominal demand multiplicatively
type DemandNoise struct {
	StdDev float64 `yaml:"noise_stddev"`
}

// Evaluation configures the Monte-Carlo harness
type Evaluation struct {
	Experiments      int     `yaml:"experiments"`
	Seed             int64   `yaml:"seed"`
	Policy           string  `yaml:"policy"` // stochastic, expected_value, oracle, fallback
	Samples          int     `yaml:"samples"`
	Scenarios        int     `yaml:"scenarios"`
	KMeansIterations int     `yaml:"kmeans_iterations"`
	MaxParallel      int     `yaml:"max_parallel"`
	SolveTimeout     string  `yaml:"solve_timeout,omitempty"` // e.g., "5s"
	Tolerance        float64 `yaml:"tolerance"`
}

// Server configures the evaluation daemon
type Server struct {
	HTTPAddr        string `yaml:"http_addr"`
	GRPCAddr        string `yaml:"grpc_addr"`
	ArchivePath     string `yaml:"archive_path,omitempty"`
	CallbackTimeout string `yaml:"callback_timeout,omitempty"`
	CallbackRetries int    `yaml:"callback_retries"`
	CallbackBackoff string `yaml:"callback_backoff,omitempty"` // constant, exponential, exponential_jitter
}

// GetSolveTimeout parses the solve timeout; an empty value means no limit
func (e *Evaluation) GetSolveTimeout() (time.Duration, error) {
	if e.SolveTimeout == "" {
		return 0, nil
	}
	return time.ParseDuration(e.SolveTimeout)
}

// GetCallbackTimeout parses the webhook timeout; an empty value means 10s
func (s *Server) GetCallbackTimeout() (time.Duration, error) {
	if s.CallbackTimeout == "" {
		return 10 * time.Second, nil
	}
	return time.ParseDuration(s.CallbackTimeout)
}

// DefaultPriceProcess returns the calibrated price model parameters
func DefaultPriceProcess() *PriceProcess {
	return &PriceProcess{
		Mean:                     35,
		Reversion:                0.12,
		Momentum:                 0.6,
		WindInfluence:            -0.6,
		NoiseStdDev:              1,
		Cap:                      90,
		Floor:                    0,
		NegativeResampleProb:     0.8,
		NegativeResampleFraction: 0.3,
	}
}

// DefaultWindProcess returns the calibrated wind model parameters
func DefaultWindProcess() *WindProcess {
	return &WindProcess{
		Initial:     4.5,
		Target:      4.5,
		Reversion:   0.15,
		Momentum:    0.8,
		NoiseStdDev: 1,
		ExtremeProb: 0.03,
		HighMin:     10,
		HighMax:     15,
		LowMin:      0,
		LowMax:      2,
	}
}
