package metrics

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/models"
	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/utils"
)

// Collector collects cost series during an evaluation run
type Collector struct {
	mu sync.RWMutex

	startTime time.Time
	endTime   time.Time

	// Series data: metric name -> labels -> []MetricPoint
	timeSeries map[string]map[string][]*models.MetricPoint

	// Cached aggregations: metric name -> labels -> Aggregation
	aggregations map[string]map[string]*models.Aggregation
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		startTime:    time.Now(),
		timeSeries:   make(map[string]map[string][]*models.MetricPoint),
		aggregations: make(map[string]map[string]*models.Aggregation),
	}
}

// Start marks the start of metric collection
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startTime = time.Now()
}

// Stop marks the end of metric collection
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endTime = time.Now()
}

// Record records a metric value at a specific timestamp.
// Points of one series keep their insertion order.
func (c *Collector) Record(name string, value float64, timestamp time.Time, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := labelKey(labels)
	if c.timeSeries[name] == nil {
		c.timeSeries[name] = make(map[string][]*models.MetricPoint)
	}

	point := &models.MetricPoint{
		Timestamp: timestamp,
		Name:      name,
		Value:     value,
		Labels:    copyLabels(labels),
	}
	c.timeSeries[name][key] = append(c.timeSeries[name][key], point)

	// stale once the series grows
	if c.aggregations[name] != nil {
		delete(c.aggregations[name], key)
	}
}

// Values returns the raw values of a series in insertion order
func (c *Collector) Values(name string, labels map[string]string) []float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return pointValues(c.getPointsUnsafe(name, labelKey(labels)))
}

// Count returns the number of points of a series
func (c *Collector) Count(name string, labels map[string]string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return int64(len(c.getPointsUnsafe(name, labelKey(labels))))
}

// GetAggregation calculates and returns aggregated statistics for a metric
func (c *Collector) GetAggregation(name string, labels map[string]string) *models.Aggregation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return calculateAggregation(c.getPointsUnsafe(name, labelKey(labels)))
}

// GetOrComputeAggregation gets cached aggregation or computes it
func (c *Collector) GetOrComputeAggregation(name string, labels map[string]string) *models.Aggregation {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := labelKey(labels)
	if c.aggregations[name] == nil {
		c.aggregations[name] = make(map[string]*models.Aggregation)
	}
	if agg, ok := c.aggregations[name][key]; ok {
		return agg
	}

	agg := calculateAggregation(c.getPointsUnsafe(name, key))
	if agg != nil {
		c.aggregations[name][key] = agg
	}
	return agg
}

// GetSummary returns a summary of all collected metrics. Aggregations
// cover every label set of a metric.
func (c *Collector) GetSummary() *models.MetricsSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	summary := &models.MetricsSummary{
		StartTime:    c.startTime,
		EndTime:      c.endTime,
		Duration:     c.endTime.Sub(c.startTime),
		Metrics:      make(map[string][]float64),
		Aggregations: make(map[string]*models.Aggregation),
	}

	for name, labelMap := range c.timeSeries {
		keys := make([]string, 0, len(labelMap))
		for key := range labelMap {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		var all []*models.MetricPoint
		for _, key := range keys {
			all = append(all, labelMap[key]...)
		}
		summary.Metrics[name] = pointValues(all)
		if agg := calculateAggregation(all); agg != nil {
			summary.Aggregations[name] = agg
		}
	}

	return summary
}

// GetLabelsForMetric returns all label combinations for a metric
func (c *Collector) GetLabelsForMetric(name string) []map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.timeSeries[name] == nil {
		return nil
	}

	keys := make([]string, 0, len(c.timeSeries[name]))
	for key := range c.timeSeries[name] {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	labelsList := make([]map[string]string, 0, len(keys))
	for _, key := range keys {
		if points := c.timeSeries[name][key]; len(points) > 0 {
			labelsList = append(labelsList, copyLabels(points[0].Labels))
		}
	}
	return labelsList
}

// getPointsUnsafe returns points without locking (caller must hold lock)
func (c *Collector) getPointsUnsafe(name, key string) []*models.MetricPoint {
	if c.timeSeries[name] == nil {
		return nil
	}
	return c.timeSeries[name][key]
}

// labelKey creates a key from labels for map lookup
func labelKey(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
		b.WriteByte(',')
	}
	return b.String()
}

func copyLabels(labels map[string]string) map[string]string {
	if labels == nil {
		return nil
	}
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}

func pointValues(points []*models.MetricPoint) []float64 {
	if len(points) == 0 {
		return nil
	}
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	return values
}

// calculateAggregation calculates aggregated statistics from metric points
func calculateAggregation(points []*models.MetricPoint) *models.Aggregation {
	if len(points) == 0 {
		return nil
	}

	values := pointValues(points)
	sorted := utils.CloneFloat64s(values)
	sort.Float64s(sorted)

	return &models.Aggregation{
		Count:  int64(len(values)),
		Sum:    utils.Sum(values),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Mean:   utils.Mean(values),
		StdDev: utils.StdDev(values),
		P50:    utils.Percentile(sorted, 50),
		P95:    utils.Percentile(sorted, 95),
		P99:    utils.Percentile(sorted, 99),
	}
}
