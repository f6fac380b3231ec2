package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("../../config/config.yaml")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected log_level 'info', got '%s'", cfg.LogLevel)
	}
	if len(cfg.Network.Warehouses) != 3 {
		t.Fatalf("Expected 3 warehouses, got %d", len(cfg.Network.Warehouses))
	}
	if cfg.Network.Horizon != 6 {
		t.Errorf("Expected horizon 6, got %d", cfg.Network.Horizon)
	}
	if !math.IsInf(cfg.Network.Capacity["south"], 1) {
		t.Errorf("Expected unlimited capacity for south, got %f", cfg.Network.Capacity["south"])
	}
	if cfg.Prices.Wind == nil {
		t.Fatal("Wind should not be nil")
	}
	if cfg.Evaluation.Policy != PolicyStochastic {
		t.Errorf("Expected policy stochastic, got %s", cfg.Evaluation.Policy)
	}
	if cfg.Evaluation.MaxParallel != 4 {
		t.Errorf("Expected max_parallel 4, got %d", cfg.Evaluation.MaxParallel)
	}

	timeout, err := cfg.Evaluation.GetSolveTimeout()
	if err != nil {
		t.Fatalf("Failed to parse solve timeout: %v", err)
	}
	if timeout != 5*time.Second {
		t.Errorf("Expected solve timeout 5s, got %v", timeout)
	}

	// Previous prices default to the initial ones
	if cfg.Prices.Previous["central"] != 32 {
		t.Errorf("Expected previous price 32 for central, got %f", cfg.Prices.Previous["central"])
	}
}

func TestLoadConfigProblem(t *testing.T) {
	cfg, err := LoadConfig("../../config/config.yaml")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	p, err := cfg.Problem()
	if err != nil {
		t.Fatalf("Problem() failed: %v", err)
	}
	if p.Size() != 3 || p.Horizon() != 6 {
		t.Fatalf("unexpected problem shape %dx%d", p.Size(), p.Horizon())
	}
	north, _ := p.Index("north")
	south, _ := p.Index("south")
	central, _ := p.Index("central")
	if p.TransportCapacity(north, south) != 3 {
		t.Errorf("Expected north->south capacity 3, got %f", p.TransportCapacity(north, south))
	}
	if !math.IsInf(p.TransportCapacity(central, south), 1) {
		t.Errorf("Expected unlimited central->south capacity")
	}
	if p.TransportCapacity(north, north) != 0 {
		t.Errorf("Expected zero self-shipment capacity")
	}
	if p.Demand(central, 3) != 8.7 {
		t.Errorf("Expected central demand 8.7 at period 3, got %f", p.Demand(central, 3))
	}

	prices := cfg.PriceVector(cfg.Prices.Initial)
	if prices[south] != 38 {
		t.Errorf("Expected south price 38, got %f", prices[south])
	}
}

func TestLoadConfigFileNotFound(t *testing.T) {
	if _, err := LoadConfig("nonexistent.yaml"); err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invalid.yaml")
	if err := os.WriteFile(path, []byte("network: [unclosed"), 0o644); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{
		Network: Network{
			Warehouses: []string{"A"},
			Demand:     map[string][]float64{"A": {1, 2}},
		},
		Server: &Server{},
	}
	applyDefaults(cfg)

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level info, got %s", cfg.LogLevel)
	}
	if cfg.Network.Horizon != 2 {
		t.Errorf("Expected horizon inferred from demand, got %d", cfg.Network.Horizon)
	}
	if cfg.Prices.Process == nil || cfg.Prices.Process.Mean != 35 {
		t.Fatal("Expected default price process")
	}
	if cfg.Prices.Initial["A"] != 35 || cfg.Prices.Previous["A"] != 35 {
		t.Error("Expected initial and previous prices at the process mean")
	}
	e := cfg.Evaluation
	if e.Experiments != 40 || e.Samples != 100 || e.Scenarios != 5 || e.MaxParallel != 1 {
		t.Errorf("unexpected evaluation defaults: %+v", e)
	}
	if e.Tolerance != 1e-6 {
		t.Errorf("Expected default tolerance 1e-6, got %g", e.Tolerance)
	}
	if cfg.Server.HTTPAddr != ":8080" || cfg.Server.GRPCAddr != ":9090" || cfg.Server.CallbackRetries != 3 {
		t.Errorf("unexpected server defaults: %+v", cfg.Server)
	}
	d, err := cfg.Server.GetCallbackTimeout()
	if err != nil || d != 10*time.Second {
		t.Errorf("Expected default callback timeout 10s, got %v (%v)", d, err)
	}
}

func TestCheckKeys(t *testing.T) {
	names := map[string]bool{"A": true, "B": true}

	if err := checkKeys("t", []string{"A", "B"}, names); err != nil {
		t.Errorf("Expected matching keys to pass, got %v", err)
	}
	if err := checkKeys("t", []string{"A"}, names); err == nil {
		t.Error("Expected missing warehouse to fail")
	}
	if err := checkKeys("t", []string{"A", "B", "C"}, names); err == nil {
		t.Error("Expected unknown warehouse to fail")
	}
}

func TestValidateServer(t *testing.T) {
	if err := validateServer(&Server{CallbackBackoff: "exponential_jitter"}); err != nil {
		t.Errorf("Expected jittered backoff to pass, got %v", err)
	}
	if err := validateServer(&Server{CallbackBackoff: "linear"}); err == nil {
		t.Error("Expected unknown backoff to fail")
	}
	if err := validateServer(&Server{CallbackRetries: -1}); err == nil {
		t.Error("Expected negative retries to fail")
	}
	if err := validateServer(&Server{CallbackTimeout: "soon"}); err == nil {
		t.Error("Expected unparsable timeout to fail")
	}
}
