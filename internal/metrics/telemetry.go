package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Telemetry holds the Prometheus metrics exported by the evaluator and the
// daemon. A nil *Telemetry is valid and records nothing.
type Telemetry struct {
	Decisions      *prometheus.CounterVec
	SolveDuration  *prometheus.HistogramVec
	ExperimentCost *prometheus.HistogramVec
	ActiveRuns     prometheus.Gauge
	Runs           *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewTelemetry creates the evaluation metrics and registers them on reg
func NewTelemetry(reg *prometheus.Registry) *Telemetry {
	t := &Telemetry{
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whsim_decisions_total",
				Help: "Period decisions by policy and outcome",
			},
			[]string{"policy", "outcome"},
		),
		SolveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "whsim_solve_duration_seconds",
				Help:    "Recourse model solve time in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"policy"},
		),
		ExperimentCost: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "whsim_experiment_cost",
				Help:    "Total cost of a finished experiment",
				Buckets: prometheus.ExponentialBuckets(100, 2, 12),
			},
			[]string{"policy"},
		),
		ActiveRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "whsim_active_runs",
				Help: "Number of evaluation runs in progress",
			},
		),
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whsim_runs_total",
				Help: "Finished evaluation runs by final status",
			},
			[]string{"status"},
		),
	}

	if reg != nil {
		reg.MustRegister(t.Decisions, t.SolveDuration, t.ExperimentCost, t.ActiveRuns, t.Runs)
		t.gatherer = reg
	}
	return t
}

// ObserveDecision counts one period decision
func (t *Telemetry) ObserveDecision(policy, outcome string) {
	if t == nil {
		return
	}
	t.Decisions.WithLabelValues(policy, outcome).Inc()
}

// ObserveSolve records an optimizer solve time
func (t *Telemetry) ObserveSolve(policy string, d time.Duration) {
	if t == nil {
		return
	}
	t.SolveDuration.WithLabelValues(policy).Observe(d.Seconds())
}

// ObserveExperimentCost records the total cost of one experiment
func (t *Telemetry) ObserveExperimentCost(policy string, cost float64) {
	if t == nil {
		return
	}
	t.ExperimentCost.WithLabelValues(policy).Observe(cost)
}

// RunStarted marks a run as active
func (t *Telemetry) RunStarted() {
	if t == nil {
		return
	}
	t.ActiveRuns.Inc()
}

// RunFinished marks an active run as finished with the given status
func (t *Telemetry) RunFinished(status string) {
	if t == nil {
		return
	}
	t.ActiveRuns.Dec()
	t.CountRun(status)
}

// CountRun counts a run that ended with status without marking it active,
// e.g. a pending run that was cancelled
func (t *Telemetry) CountRun(status string) {
	if t == nil {
		return
	}
	t.Runs.WithLabelValues(status).Inc()
}

// Handler serves the registered metrics in the Prometheus text format
func (t *Telemetry) Handler() http.Handler {
	if t == nil || t.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(t.gatherer, promhttp.HandlerOpts{})
}
