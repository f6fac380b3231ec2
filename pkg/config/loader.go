package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/GoSim-25-26J-441/warehouse-sim/internal/network"
)

// Supported evaluation policies
const (
	PolicyStochastic    = "stochastic"
	PolicyExpectedValue = "expected_value"
	PolicyOracle        = "oracle"
	PolicyFallback      = "fallback"
)

// LoadConfig loads and parses a configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := ParseConfigYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// applyDefaults fills optional fields before validation
func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	n := &cfg.Network
	if n.Horizon == 0 && len(n.Warehouses) > 0 {
		n.Horizon = len(n.Demand[n.Warehouses[0]])
	}

	p := &cfg.Prices
	if p.Process == nil {
		p.Process = DefaultPriceProcess()
	}
	if p.Initial == nil && len(n.Warehouses) > 0 {
		p.Initial = make(map[string]float64, len(n.Warehouses))
		for _, w := range n.Warehouses {
			p.Initial[w] = p.Process.Mean
		}
	}
	if p.Previous == nil && p.Initial != nil {
		p.Previous = make(map[string]float64, len(p.Initial))
		for w, v := range p.Initial {
			p.Previous[w] = v
		}
	}

	e := &cfg.Evaluation
	if e.Experiments == 0 {
		e.Experiments = 40
	}
	if e.Policy == "" {
		e.Policy = PolicyStochastic
	}
	if e.Samples == 0 {
		e.Samples = 100
	}
	if e.Scenarios == 0 {
		e.Scenarios = 5
	}
	if e.KMeansIterations == 0 {
		e.KMeansIterations = 50
	}
	if e.MaxParallel == 0 {
		e.MaxParallel = 1
	}
	if e.Tolerance == 0 {
		e.Tolerance = 1e-6
	}

	if s := cfg.Server; s != nil {
		if s.HTTPAddr == "" {
			s.HTTPAddr = ":8080"
		}
		if s.GRPCAddr == "" {
			s.GRPCAddr = ":9090"
		}
		if s.CallbackRetries == 0 {
			s.CallbackRetries = 3
		}
	}
}

// Validate re-checks a config after its fields were changed in code, e.g. by
// command-line overrides
func (c *Config) Validate() error {
	applyDefaults(c)
	if err := validateConfig(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// validateConfig performs validation on the configuration
func validateConfig(cfg *Config) error {
	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}

	if err := validateNetwork(&cfg.Network); err != nil {
		return fmt.Errorf("network validation failed: %w", err)
	}

	if err := validatePrices(&cfg.Prices, cfg.Network.Warehouses); err != nil {
		return fmt.Errorf("prices validation failed: %w", err)
	}

	if cfg.Demand != nil {
		if cfg.Demand.StdDev < 0 || math.IsNaN(cfg.Demand.StdDev) {
			return fmt.Errorf("realized_demand noise_stddev must be non-negative, got %f", cfg.Demand.StdDev)
		}
	}

	if err := validateEvaluation(&cfg.Evaluation); err != nil {
		return fmt.Errorf("evaluation validation failed: %w", err)
	}

	if cfg.Server != nil {
		if err := validateServer(cfg.Server); err != nil {
			return fmt.Errorf("server validation failed: %w", err)
		}
	}

	// Numeric checks on the assembled tables
	if _, err := cfg.Problem(); err != nil {
		return err
	}

	return nil
}

// validateNetwork checks that every table covers exactly the declared warehouses
func validateNetwork(n *Network) error {
	if len(n.Warehouses) == 0 {
		return errors.New("at least one warehouse must be defined")
	}

	names := make(map[string]bool, len(n.Warehouses))
	for _, w := range n.Warehouses {
		if w == "" {
			return errors.New("warehouse id cannot be empty")
		}
		if names[w] {
			return fmt.Errorf("duplicate warehouse id: %s", w)
		}
		names[w] = true
	}

	if err := checkKeys("miss_cost", keysOf(n.MissCost), names); err != nil {
		return err
	}
	if err := checkKeys("warehouse_capacity", keysOf(n.Capacity), names); err != nil {
		return err
	}
	if err := checkKeys("initial_stock", keysOf(n.InitialStock), names); err != nil {
		return err
	}
	demandKeys := make([]string, 0, len(n.Demand))
	for k := range n.Demand {
		demandKeys = append(demandKeys, k)
	}
	if err := checkKeys("demand", demandKeys, names); err != nil {
		return err
	}

	if err := checkPairs("transport_cost", n.TransportCost, names); err != nil {
		return err
	}
	if err := checkPairs("transport_capacity", n.TransportCapacity, names); err != nil {
		return err
	}

	if n.Horizon <= 0 {
		return fmt.Errorf("horizon must be positive, got %d", n.Horizon)
	}
	for _, w := range n.Warehouses {
		if got := len(n.Demand[w]); got != n.Horizon {
			return fmt.Errorf("warehouse %s: demand has %d periods, horizon is %d", w, got, n.Horizon)
		}
	}
	return nil
}

// validatePrices validates the price trajectories and process parameters
func validatePrices(p *Prices, warehouses []string) error {
	names := make(map[string]bool, len(warehouses))
	for _, w := range warehouses {
		names[w] = true
	}
	if err := checkKeys("initial", keysOf(p.Initial), names); err != nil {
		return err
	}
	if err := checkKeys("previous", keysOf(p.Previous), names); err != nil {
		return err
	}
	for _, table := range []map[string]float64{p.Initial, p.Previous} {
		for w, v := range table {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("warehouse %s: price must be finite, got %f", w, v)
			}
		}
	}

	pp := p.Process
	if pp.Cap < pp.Floor {
		return fmt.Errorf("process cap %f is below floor %f", pp.Cap, pp.Floor)
	}
	if pp.NoiseStdDev < 0 {
		return fmt.Errorf("process noise_stddev cannot be negative, got %f", pp.NoiseStdDev)
	}
	if pp.NegativeResampleProb < 0 || pp.NegativeResampleProb > 1 {
		return fmt.Errorf("process negative_resample_prob must be between 0 and 1, got %f", pp.NegativeResampleProb)
	}
	if pp.NegativeResampleFraction < 0 {
		return fmt.Errorf("process negative_resample_fraction cannot be negative, got %f", pp.NegativeResampleFraction)
	}

	if wp := p.Wind; wp != nil {
		if wp.NoiseStdDev < 0 {
			return fmt.Errorf("wind noise_stddev cannot be negative, got %f", wp.NoiseStdDev)
		}
		if wp.ExtremeProb < 0 || wp.ExtremeProb > 1 {
			return fmt.Errorf("wind extreme_prob must be between 0 and 1, got %f", wp.ExtremeProb)
		}
		if wp.HighMin > wp.HighMax || wp.LowMin > wp.LowMax {
			return errors.New("wind extreme ranges must have min <= max")
		}
	}
	return nil
}

// validateEvaluation validates the harness settings
func validateEvaluation(e *Evaluation) error {
	if e.Experiments <= 0 {
		return fmt.Errorf("experiments must be positive, got %d", e.Experiments)
	}

	validPolicies := map[string]bool{
		PolicyStochastic:    true,
		PolicyExpectedValue: true,
		PolicyOracle:        true,
		PolicyFallback:      true,
	}
	if !validPolicies[e.Policy] {
		return fmt.Errorf("invalid policy: %s (must be stochastic, expected_value, oracle, or fallback)", e.Policy)
	}

	if e.Samples <= 0 {
		return fmt.Errorf("samples must be positive, got %d", e.Samples)
	}
	if e.Scenarios <= 0 {
		return fmt.Errorf("scenarios must be positive, got %d", e.Scenarios)
	}
	if e.Scenarios > e.Samples {
		return fmt.Errorf("scenarios (%d) cannot exceed samples (%d)", e.Scenarios, e.Samples)
	}
	if e.KMeansIterations < 0 {
		return fmt.Errorf("kmeans_iterations cannot be negative, got %d", e.KMeansIterations)
	}
	if e.MaxParallel < 0 {
		return fmt.Errorf("max_parallel cannot be negative, got %d", e.MaxParallel)
	}
	if e.Tolerance <= 0 || math.IsNaN(e.Tolerance) {
		return fmt.Errorf("tolerance must be positive, got %g", e.Tolerance)
	}
	d, err := e.GetSolveTimeout()
	if err != nil {
		return fmt.Errorf("invalid solve_timeout %s: %w", e.SolveTimeout, err)
	}
	if d < 0 {
		return fmt.Errorf("solve_timeout cannot be negative, got %s", e.SolveTimeout)
	}
	return nil
}

// validateServer validates the daemon settings
func validateServer(s *Server) error {
	if s.CallbackRetries < 0 {
		return fmt.Errorf("callback_retries cannot be negative, got %d", s.CallbackRetries)
	}
	if _, err := s.GetCallbackTimeout(); err != nil {
		return fmt.Errorf("invalid callback_timeout %s: %w", s.CallbackTimeout, err)
	}
	switch s.CallbackBackoff {
	case "", "constant", "exponential", "exponential_jitter":
	default:
		return fmt.Errorf("invalid callback_backoff: %s (must be constant, exponential, or exponential_jitter)", s.CallbackBackoff)
	}
	return nil
}

func keysOf(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// checkKeys requires keys to be exactly the warehouse set
func checkKeys(table string, keys []string, names map[string]bool) error {
	var unknown []string
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if !names[k] {
			unknown = append(unknown, k)
		}
		seen[k] = true
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%s references unknown warehouses: %s", table, strings.Join(unknown, ", "))
	}
	var missing []string
	for name := range names {
		if !seen[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%s is missing warehouses: %s", table, strings.Join(missing, ", "))
	}
	return nil
}

// checkPairs allows sparse transport tables but rejects unknown ids
func checkPairs(table string, pairs map[string]map[string]float64, names map[string]bool) error {
	for from, row := range pairs {
		if !names[from] {
			return fmt.Errorf("%s references unknown warehouse: %s", table, from)
		}
		for to := range row {
			if !names[to] {
				return fmt.Errorf("%s[%s] references unknown warehouse: %s", table, from, to)
			}
		}
	}
	return nil
}

// Problem assembles the immutable network description from the config
func (c *Config) Problem() (*network.Problem, error) {
	n := c.Network
	size := len(n.Warehouses)
	spec := network.Spec{
		Warehouses:        append([]string(nil), n.Warehouses...),
		MissCost:          make([]float64, size),
		Capacity:          make([]float64, size),
		InitialStock:      make([]float64, size),
		TransportCost:     make([][]float64, size),
		TransportCapacity: make([][]float64, size),
		Demand:            make([][]float64, size),
	}
	for i, w := range n.Warehouses {
		spec.MissCost[i] = n.MissCost[w]
		spec.Capacity[i] = n.Capacity[w]
		spec.InitialStock[i] = n.InitialStock[w]
		spec.Demand[i] = append([]float64(nil), n.Demand[w]...)
		spec.TransportCost[i] = make([]float64, size)
		spec.TransportCapacity[i] = make([]float64, size)
		for j, q := range n.Warehouses {
			spec.TransportCost[i][j] = n.TransportCost[w][q]
			spec.TransportCapacity[i][j] = n.TransportCapacity[w][q]
		}
	}

	p, err := network.New(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to build network: %w", err)
	}
	return p, nil
}

// PriceVector returns a per-warehouse table in warehouse order
func (c *Config) PriceVector(table map[string]float64) []float64 {
	out := make([]float64, len(c.Network.Warehouses))
	for i, w := range c.Network.Warehouses {
		out[i] = table[w]
	}
	return out
}
