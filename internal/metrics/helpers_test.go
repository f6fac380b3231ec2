package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/warehouse-sim/internal/decision"
)

func TestHelperFunctions(t *testing.T) {
	c := NewCollector()
	now := time.Now()

	RecordPeriodCost(c, 12.5, now, nil)
	values := c.Values(MetricPeriodCost, nil)
	if len(values) != 1 || values[0] != 12.5 {
		t.Fatalf("RecordPeriodCost failed")
	}

	RecordSolveTime(c, 250*time.Millisecond, now, nil)
	values = c.Values(MetricSolveSeconds, nil)
	if len(values) != 1 || values[0] != 0.25 {
		t.Fatalf("RecordSolveTime failed")
	}

	RecordMissedDemand(c, 3, now, nil)
	if c.Count(MetricMissedDemand, nil) != 1 {
		t.Fatalf("RecordMissedDemand failed")
	}

	labels := CreatePolicyLabels("stochastic")
	if labels["policy"] != "stochastic" {
		t.Fatalf("CreatePolicyLabels failed")
	}

	labels = CreateOutcomeLabels("oracle", decision.OutcomeRejectedInfeasible)
	if labels["policy"] != "oracle" || labels["outcome"] != "rejected_infeasible" {
		t.Fatalf("CreateOutcomeLabels failed")
	}

	labels = CreatePeriodLabels("fallback", 4)
	if labels["period"] != "4" {
		t.Fatalf("CreatePeriodLabels failed")
	}
}

func TestConvertToRunSummary(t *testing.T) {
	c := NewCollector()
	now := time.Now()

	policy := "stochastic"
	for _, cost := range []float64{100, 200, 300, 400} {
		RecordExperimentCost(c, cost, now, CreatePolicyLabels(policy))
	}
	// another policy must not leak into the report
	RecordExperimentCost(c, 1e6, now, CreatePolicyLabels("oracle"))

	for i := 0; i < 5; i++ {
		RecordPeriodCost(c, 10, now, CreateOutcomeLabels(policy, decision.OutcomeAccepted))
	}
	RecordPeriodCost(c, 10, now, CreateOutcomeLabels(policy, decision.OutcomeRejectedInfeasible))
	RecordPeriodCost(c, 10, now, CreateOutcomeLabels(policy, decision.OutcomeRejectedOptimizationFailed))
	RecordPeriodCost(c, 10, now, CreateOutcomeLabels(policy, decision.OutcomeRejectedOptimizationFailed))

	summary := ConvertToRunSummary(c, policy, 2)
	if summary.Experiments != 4 || summary.Periods != 2 {
		t.Fatalf("unexpected dimensions %d x %d", summary.Experiments, summary.Periods)
	}
	if summary.ExpectedCost != 250 {
		t.Fatalf("expected cost 250, got %f", summary.ExpectedCost)
	}
	if summary.MinCost != 100 || summary.MaxCost != 400 {
		t.Fatalf("unexpected range [%f, %f]", summary.MinCost, summary.MaxCost)
	}
	sd := math.Sqrt(50000.0 / 3.0)
	if math.Abs(summary.StdDev-sd) > 1e-9 {
		t.Fatalf("expected stddev %f, got %f", sd, summary.StdDev)
	}
	if math.Abs(summary.CI95-z95*sd/2) > 1e-9 {
		t.Fatalf("unexpected CI95 %f", summary.CI95)
	}
	if summary.Accepted != 5 || summary.RejectedInfeasible != 1 || summary.RejectedOptimizationFailed != 2 {
		t.Fatalf("unexpected outcome counts %+v", summary)
	}
	if len(summary.ExperimentCosts) != 4 || summary.ExperimentCosts[0] != 100 {
		t.Fatalf("unexpected experiment costs %v", summary.ExperimentCosts)
	}
}

func TestConvertToRunSummaryEmpty(t *testing.T) {
	summary := ConvertToRunSummary(NewCollector(), "stochastic", 3)
	if summary.Experiments != 0 || summary.ExpectedCost != 0 || summary.CI95 != 0 {
		t.Fatalf("expected zero summary, got %+v", summary)
	}
}

func TestPeriodBreakdown(t *testing.T) {
	c := NewCollector()
	now := time.Now()

	policy := "stochastic"
	// periods recorded out of order and past 9 to check numeric ordering
	for _, period := range []int{10, 2, 0} {
		for _, missed := range []float64{1, 3} {
			RecordMissedDemand(c, missed, now, CreatePeriodLabels(policy, period))
		}
	}
	RecordSolveTime(c, 100*time.Millisecond, now, CreatePeriodLabels(policy, 2))
	RecordSolveTime(c, 300*time.Millisecond, now, CreatePeriodLabels(policy, 2))
	RecordMissedDemand(c, 50, now, CreatePeriodLabels("oracle", 2))

	stats := PeriodBreakdown(c, policy)
	if len(stats) != 3 {
		t.Fatalf("expected 3 periods, got %d", len(stats))
	}
	if stats[0].Period != 0 || stats[1].Period != 2 || stats[2].Period != 10 {
		t.Fatalf("expected periods in order, got %+v", stats)
	}
	if stats[1].MissedDemand.Mean != 2 || stats[1].MissedDemand.Count != 2 {
		t.Fatalf("unexpected missed demand aggregation %+v", stats[1].MissedDemand)
	}
	if stats[1].SolveSeconds == nil || math.Abs(stats[1].SolveSeconds.Mean-0.2) > 1e-12 {
		t.Fatalf("unexpected solve aggregation %+v", stats[1].SolveSeconds)
	}
	if stats[0].SolveSeconds != nil {
		t.Fatalf("expected no solve aggregation without solves, got %+v", stats[0].SolveSeconds)
	}

	summary := ConvertToRunSummary(c, policy, 11)
	if len(summary.PeriodStats) != 3 {
		t.Fatalf("expected period stats in the summary, got %d", len(summary.PeriodStats))
	}
}
