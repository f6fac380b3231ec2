package models

import (
	"sync"
	"time"
)

// RunStatus represents the status of an evaluation run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// IsTerminal reports whether the run can no longer change state
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// Run represents a policy evaluation run
type Run struct {
	ID          string            `json:"id"`
	Status      RunStatus         `json:"status"`
	Policy      string            `json:"policy"`
	ConfigYAML  string            `json:"config_yaml,omitempty"`
	Experiments int               `json:"experiments"`
	Seed        int64             `json:"seed"`
	CreatedAt   time.Time         `json:"created_at"`
	StartTime   time.Time         `json:"start_time,omitempty"`
	EndTime     time.Time         `json:"end_time,omitempty"`
	Duration    time.Duration     `json:"duration,omitempty"`
	Summary     *RunSummary       `json:"summary,omitempty"`
	Error       string            `json:"error,omitempty"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// RunSummary contains the aggregated outcome of an evaluation run
type RunSummary struct {
	Experiments  int     `json:"experiments"`
	Periods      int     `json:"periods"`
	ExpectedCost float64 `json:"expected_cost"`
	StdDev       float64 `json:"std_dev"`
	CI95         float64 `json:"ci95_half_width"`
	MinCost      float64 `json:"min_cost"`
	MaxCost      float64 `json:"max_cost"`
	P50Cost      float64 `json:"p50_cost"`
	P95Cost      float64 `json:"p95_cost"`

	Accepted                   int64 `json:"accepted"`
	RejectedInfeasible         int64 `json:"rejected_infeasible"`
	RejectedOptimizationFailed int64 `json:"rejected_optimization_failed"`

	ExperimentCosts []float64     `json:"experiment_costs,omitempty"`
	PeriodStats     []PeriodStats `json:"period_stats,omitempty"`
}

// PeriodStats aggregates one period across all experiments of a run
type PeriodStats struct {
	Period       int          `json:"period"`
	MissedDemand *Aggregation `json:"missed_demand"`
	// nil when every solve of the period failed
	SolveSeconds *Aggregation `json:"solve_seconds,omitempty"`
}

// FallbackRate returns the share of periods decided by the fallback policy
func (s *RunSummary) FallbackRate() float64 {
	total := s.Accepted + s.RejectedInfeasible + s.RejectedOptimizationFailed
	if total == 0 {
		return 0
	}
	return float64(s.RejectedInfeasible+s.RejectedOptimizationFailed) / float64(total)
}

// RunProgress tracks completed experiments of a running evaluation
type RunProgress struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	mu        sync.RWMutex
}

// NewRunProgress creates a progress tracker for total experiments
func NewRunProgress(total int) *RunProgress {
	return &RunProgress{Total: total}
}

// Increment records one finished experiment (thread-safe)
func (p *RunProgress) Increment() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Completed < p.Total {
		p.Completed++
	}
}

// Snapshot returns completed and total experiments (thread-safe)
func (p *RunProgress) Snapshot() (completed, total int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Completed, p.Total
}

// Fraction returns the completed share in [0, 1] (thread-safe)
func (p *RunProgress) Fraction() float64 {
	completed, total := p.Snapshot()
	if total == 0 {
		return 0
	}
	return float64(completed) / float64(total)
}

// MetricPoint represents a single metric data point
type MetricPoint struct {
	Timestamp time.Time         `json:"timestamp"`
	Name      string            `json:"name"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
}

// MetricsSummary represents a summary of collected metrics
type MetricsSummary struct {
	StartTime    time.Time               `json:"start_time"`
	EndTime      time.Time               `json:"end_time"`
	Duration     time.Duration           `json:"duration"`
	Metrics      map[string][]float64    `json:"metrics"` // metric name -> values
	Aggregations map[string]*Aggregation `json:"aggregations,omitempty"`
}

// Aggregation represents aggregated statistics for a metric
type Aggregation struct {
	Count  int64   `json:"count"`
	Sum    float64 `json:"sum"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	P50    float64 `json:"p50"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`
}
