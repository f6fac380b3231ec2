package metrics

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/GoSim-25-26J-441/warehouse-sim/internal/decision"
	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/models"
)

// Common metric names
const (
	MetricExperimentCost = "experiment_cost"
	MetricPeriodCost     = "period_cost"
	MetricSolveSeconds   = "solve_seconds"
	MetricMissedDemand   = "missed_demand"
)

// z-value of the two-sided 95% normal interval
const z95 = 1.959963984540054

// RecordExperimentCost records the total cost of one experiment
func RecordExperimentCost(collector *Collector, cost float64, timestamp time.Time, labels map[string]string) {
	collector.Record(MetricExperimentCost, cost, timestamp, labels)
}

// RecordPeriodCost records the cost of one period
func RecordPeriodCost(collector *Collector, cost float64, timestamp time.Time, labels map[string]string) {
	collector.Record(MetricPeriodCost, cost, timestamp, labels)
}

// RecordSolveTime records how long the optimizer took for one period
func RecordSolveTime(collector *Collector, d time.Duration, timestamp time.Time, labels map[string]string) {
	collector.Record(MetricSolveSeconds, d.Seconds(), timestamp, labels)
}

// RecordMissedDemand records the total missed demand of one period
func RecordMissedDemand(collector *Collector, missed float64, timestamp time.Time, labels map[string]string) {
	collector.Record(MetricMissedDemand, missed, timestamp, labels)
}

// CreatePolicyLabels creates a labels map for a policy
func CreatePolicyLabels(policy string) map[string]string {
	return map[string]string{
		"policy": policy,
	}
}

// CreateOutcomeLabels creates a labels map for a policy and decision outcome
func CreateOutcomeLabels(policy string, outcome decision.Outcome) map[string]string {
	return map[string]string{
		"policy":  policy,
		"outcome": outcome.String(),
	}
}

// CreatePeriodLabels creates a labels map for a policy and period index
func CreatePeriodLabels(policy string, period int) map[string]string {
	return map[string]string{
		"policy": policy,
		"period": strconv.Itoa(period),
	}
}

// ConvertToRunSummary builds the run report from the experiment costs and
// the per-outcome period counts recorded for policy.
func ConvertToRunSummary(collector *Collector, policy string, periods int) *models.RunSummary {
	labels := CreatePolicyLabels(policy)
	costs := collector.Values(MetricExperimentCost, labels)

	summary := &models.RunSummary{
		Experiments:     len(costs),
		Periods:         periods,
		ExperimentCosts: costs,
	}

	if agg := collector.GetOrComputeAggregation(MetricExperimentCost, labels); agg != nil {
		summary.ExpectedCost = agg.Mean
		summary.StdDev = agg.StdDev
		summary.MinCost = agg.Min
		summary.MaxCost = agg.Max
		summary.P50Cost = agg.P50
		summary.P95Cost = agg.P95
		if agg.Count > 1 {
			summary.CI95 = z95 * agg.StdDev / math.Sqrt(float64(agg.Count))
		}
	}

	summary.PeriodStats = PeriodBreakdown(collector, policy)

	summary.Accepted = collector.Count(MetricPeriodCost, CreateOutcomeLabels(policy, decision.OutcomeAccepted))
	summary.RejectedInfeasible = collector.Count(MetricPeriodCost, CreateOutcomeLabels(policy, decision.OutcomeRejectedInfeasible))
	summary.RejectedOptimizationFailed = collector.Count(MetricPeriodCost, CreateOutcomeLabels(policy, decision.OutcomeRejectedOptimizationFailed))

	return summary
}

// PeriodBreakdown aggregates missed demand and solve time per period for
// policy, ordered by period
func PeriodBreakdown(collector *Collector, policy string) []models.PeriodStats {
	var stats []models.PeriodStats
	for _, labels := range collector.GetLabelsForMetric(MetricMissedDemand) {
		if labels["policy"] != policy {
			continue
		}
		period, err := strconv.Atoi(labels["period"])
		if err != nil {
			continue
		}
		stats = append(stats, models.PeriodStats{
			Period:       period,
			MissedDemand: collector.GetAggregation(MetricMissedDemand, labels),
			SolveSeconds: collector.GetAggregation(MetricSolveSeconds, labels),
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Period < stats[j].Period })
	return stats
}
