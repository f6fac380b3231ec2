package metrics

import (
	"math"
	"testing"
	"time"
)

func TestNewCollector(t *testing.T) {
	c := NewCollector()
	if c == nil {
		t.Fatalf("expected non-nil collector")
	}
}

func TestCollectorRecordAndValues(t *testing.T) {
	c := NewCollector()
	c.Start()

	now := time.Now()
	c.Record("test_metric", 10.0, now, nil)
	c.Record("test_metric", 20.0, now.Add(time.Second), nil)
	c.Record("test_metric", 30.0, now.Add(2*time.Second), nil)

	values := c.Values("test_metric", nil)
	if len(values) != 3 {
		t.Fatalf("expected 3 values, got %d", len(values))
	}
	if values[0] != 10.0 || values[1] != 20.0 || values[2] != 30.0 {
		t.Fatalf("unexpected values %v", values)
	}
}

func TestCollectorRecordWithLabels(t *testing.T) {
	c := NewCollector()
	c.Start()

	labels := map[string]string{
		"policy":  "stochastic",
		"outcome": "accepted",
	}

	now := time.Now()
	c.Record("period_cost", 10.0, now, labels)

	if n := c.Count("period_cost", labels); n != 1 {
		t.Fatalf("expected 1 point, got %d", n)
	}
	if n := c.Count("period_cost", map[string]string{"policy": "stochastic"}); n != 0 {
		t.Fatalf("expected label sets to be distinct, got %d", n)
	}

	// stored labels are copies
	labels["policy"] = "oracle"
	got := c.GetLabelsForMetric("period_cost")
	if len(got) != 1 || got[0]["policy"] != "stochastic" {
		t.Fatalf("expected stored labels to be unaffected, got %v", got)
	}

	// returned labels are copies too
	got[0]["policy"] = "oracle"
	if c.GetLabelsForMetric("period_cost")[0]["policy"] != "stochastic" {
		t.Fatalf("expected returned labels to be copies")
	}
}

func TestCollectorGetAggregation(t *testing.T) {
	c := NewCollector()
	c.Start()

	values := []float64{10.0, 20.0, 30.0, 40.0, 50.0}
	now := time.Now()
	for i, v := range values {
		c.Record("test_metric", v, now.Add(time.Duration(i)*time.Second), nil)
	}

	agg := c.GetAggregation("test_metric", nil)
	if agg == nil {
		t.Fatalf("expected non-nil aggregation")
	}

	if agg.Count != 5 {
		t.Fatalf("expected count 5, got %d", agg.Count)
	}
	if agg.Min != 10.0 {
		t.Fatalf("expected min 10.0, got %f", agg.Min)
	}
	if agg.Max != 50.0 {
		t.Fatalf("expected max 50.0, got %f", agg.Max)
	}
	if agg.Mean != 30.0 {
		t.Fatalf("expected mean 30.0, got %f", agg.Mean)
	}
	if math.Abs(agg.StdDev-math.Sqrt(250)) > 1e-9 {
		t.Fatalf("expected sample stddev sqrt(250), got %f", agg.StdDev)
	}
}

func TestCollectorPercentiles(t *testing.T) {
	c := NewCollector()
	c.Start()

	// Create 100 values for better percentile accuracy
	now := time.Now()
	for i := 0; i < 100; i++ {
		c.Record("test_metric", float64(i+1), now.Add(time.Duration(i)*time.Millisecond), nil)
	}

	agg := c.GetAggregation("test_metric", nil)
	if agg == nil {
		t.Fatalf("expected non-nil aggregation")
	}

	// P50 should be around 50.5 (median of 1-100)
	if agg.P50 < 50.0 || agg.P50 > 51.0 {
		t.Fatalf("expected P50 around 50.5, got %f", agg.P50)
	}

	// P95 should be around 95.5
	if agg.P95 < 95.0 || agg.P95 > 96.0 {
		t.Fatalf("expected P95 around 95.5, got %f", agg.P95)
	}

	// P99 should be around 99.5
	if agg.P99 < 99.0 || agg.P99 > 100.0 {
		t.Fatalf("expected P99 around 99.5, got %f", agg.P99)
	}
}

func TestCollectorGetOrComputeAggregation(t *testing.T) {
	c := NewCollector()
	c.Start()

	now := time.Now()
	c.Record("test_metric", 10.0, now, nil)
	c.Record("test_metric", 20.0, now, nil)

	// First call computes
	agg1 := c.GetOrComputeAggregation("test_metric", nil)
	if agg1 == nil {
		t.Fatalf("expected non-nil aggregation")
	}

	// Second call should return cached
	agg2 := c.GetOrComputeAggregation("test_metric", nil)
	if agg2 == nil {
		t.Fatalf("expected non-nil aggregation")
	}

	if agg1.Count != agg2.Count {
		t.Fatalf("expected same count from cache")
	}
}

func TestCollectorGetSummary(t *testing.T) {
	c := NewCollector()
	c.Start()

	now := time.Now()
	c.Record("metric1", 10.0, now, nil)
	c.Record("metric1", 20.0, now, nil)
	c.Record("metric2", 30.0, now, nil)

	// Wait a bit to ensure duration is positive
	time.Sleep(10 * time.Millisecond)
	c.Stop()

	summary := c.GetSummary()
	if summary == nil {
		t.Fatalf("expected non-nil summary")
	}

	if len(summary.Metrics) == 0 {
		t.Fatalf("expected metrics in summary")
	}

	if summary.Metrics["metric1"] == nil {
		t.Fatalf("expected metric1 in summary")
	}

	if len(summary.Metrics["metric1"]) != 2 {
		t.Fatalf("expected 2 values for metric1, got %d", len(summary.Metrics["metric1"]))
	}

	if summary.Duration <= 0 {
		t.Fatalf("expected positive duration, got %v", summary.Duration)
	}
	if agg := summary.Aggregations["metric1"]; agg == nil || agg.Mean != 15.0 {
		t.Fatalf("expected metric1 aggregation with mean 15, got %+v", agg)
	}
}

func TestCollectorGetLabelsForMetric(t *testing.T) {
	c := NewCollector()
	c.Start()

	now := time.Now()
	c.Record("metric1", 10.0, now, map[string]string{"policy": "stochastic"})
	c.Record("metric1", 20.0, now, map[string]string{"policy": "oracle"})
	c.Record("metric1", 30.0, now, nil)

	labelsList := c.GetLabelsForMetric("metric1")
	if len(labelsList) != 3 {
		t.Fatalf("expected 3 label combinations, got %d", len(labelsList))
	}
}

func TestCollectorEmptyAggregation(t *testing.T) {
	c := NewCollector()
	c.Start()

	agg := c.GetAggregation("nonexistent", nil)
	if agg != nil {
		t.Fatalf("expected nil aggregation for non-existent metric")
	}
}

func TestCollectorRecordInvalidatesCachedAggregation(t *testing.T) {
	c := NewCollector()
	c.Record("metric1", 10.0, time.Now(), nil)

	if agg := c.GetOrComputeAggregation("metric1", nil); agg.Count != 1 {
		t.Fatalf("expected count 1, got %d", agg.Count)
	}

	c.Record("metric1", 30.0, time.Now(), nil)
	agg := c.GetOrComputeAggregation("metric1", nil)
	if agg.Count != 2 || agg.Mean != 20.0 {
		t.Fatalf("expected refreshed aggregation, got count %d mean %f", agg.Count, agg.Mean)
	}
}

func TestCollectorValuesKeepInsertionOrder(t *testing.T) {
	c := NewCollector()
	for _, v := range []float64{3, 1, 2} {
		c.Record("metric1", v, time.Now(), nil)
	}

	values := c.Values("metric1", nil)
	if len(values) != 3 || values[0] != 3 || values[1] != 1 || values[2] != 2 {
		t.Fatalf("unexpected values %v", values)
	}
	if c.Count("metric1", nil) != 3 {
		t.Fatalf("expected count 3, got %d", c.Count("metric1", nil))
	}
	if c.Values("missing", nil) != nil {
		t.Fatalf("expected nil values for missing metric")
	}
}
