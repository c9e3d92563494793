package threshold

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/torosent/qbench/internal/metrics"
)

// Threshold represents a performance assertion that can pass or fail.
type Threshold struct {
	Metric    string  // e.g., "latency", "throughput"
	Aggregate string  // e.g., "p99", "avg", "min", "rate"
	Operator  string  // e.g., "<", "<=", ">", ">=", "=="
	Value     float64 // The threshold value to compare against
	Raw       string  // Raw threshold string for display
}

// Result represents the outcome of evaluating a threshold.
type Result struct {
	Threshold Threshold
	Actual    float64
	Pass      bool
	Message   string
}

// Input is everything a threshold can be checked against: whole-run
// per-message statistics plus the reporter's periodic sample series.
type Input struct {
	Stats      metrics.Stats
	Latency    metrics.SeriesStats // sampled average latency, ms
	Throughput metrics.SeriesStats // sampled throughput, msg/s
}

// Evaluator evaluates thresholds against collected metrics.
type Evaluator struct {
	thresholds []Threshold
}

func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
	}
}

// Evaluate checks all thresholds against in.
func (e *Evaluator) Evaluate(in Input) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}

	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		result := e.evaluateOne(t, in)
		results = append(results, result)
	}
	return results
}

// Failed counts results that did not pass.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.Pass {
			n++
		}
	}
	return n
}

func (e *Evaluator) evaluateOne(t Threshold, in Input) Result {
	actual, err := extractMetricValue(t, in)
	if err != nil {
		return Result{
			Threshold: t,
			Actual:    0,
			Pass:      false,
			Message:   fmt.Sprintf("✗ %s: %v", t.Raw, err),
		}
	}

	pass := compareValues(actual, t.Operator, t.Value)
	status := "✓"
	if !pass {
		status = "✗"
	}

	message := fmt.Sprintf("%s %s: %.2f %s %.2f", status, t.Raw, actual, t.Operator, t.Value)
	return Result{
		Threshold: t,
		Actual:    actual,
		Pass:      pass,
		Message:   message,
	}
}

var (
	thresholdPattern = regexp.MustCompile(`^([a-z_]+):([a-z0-9]+)\s*([<>=!]+)\s*([0-9.]+)$`)

	validMetrics    = []string{"latency", "latency_samples", "throughput", "messages", "anomalies", "failures"}
	validAggregates = []string{"p50", "p90", "p99", "avg", "min", "max", "rate", "count"}
	validOperators  = []string{"<", "<=", ">", ">=", "=="}
)

// Parse parses a threshold string into a Threshold struct.
// Supported formats:
// - "latency:p99 < 5"            (per-message latency percentile in ms)
// - "latency:avg < 2"            (per-message mean latency in ms)
// - "latency_samples:max < 10"   (largest sampled average latency in ms)
// - "throughput:min > 100000"    (smallest sampled throughput in msg/s)
// - "throughput:rate > 100000"   (whole-run throughput in msg/s)
// - "messages:count > 0"         (messages recorded)
// - "anomalies:count == 0"       (negative latencies seen)
// - "failures:rate < 0.01"       (failed records over all messages)
//
// Whether an aggregate applies to a metric is checked at evaluation time.
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}

	m := thresholdPattern.FindStringSubmatch(s)
	if m == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected metric:aggregate operator value, e.g. 'latency:p99 < 5')", s)
	}
	t := Threshold{Metric: m[1], Aggregate: m[2], Operator: m[3], Raw: s}

	value, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %v", m[4], err)
	}
	t.Value = value

	switch {
	case !slices.Contains(validMetrics, t.Metric):
		return Threshold{}, fmt.Errorf("unsupported metric: %q (supported: %s)", t.Metric, strings.Join(validMetrics, ", "))
	case !slices.Contains(validAggregates, t.Aggregate):
		return Threshold{}, fmt.Errorf("unsupported aggregate: %q (supported: %s)", t.Aggregate, strings.Join(validAggregates, ", "))
	case !slices.Contains(validOperators, t.Operator):
		return Threshold{}, fmt.Errorf("unsupported operator: %q (supported: %s)", t.Operator, strings.Join(validOperators, ", "))
	}
	return t, nil
}

// ParseMultiple parses every threshold and reports all malformed ones at once.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}

	result := make([]Threshold, 0, len(thresholds))
	var problems []string
	for i, s := range thresholds {
		t, err := Parse(s)
		if err != nil {
			problems = append(problems, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		result = append(result, t)
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(problems, "; "))
	}
	return result, nil
}

func extractMetricValue(t Threshold, in Input) (float64, error) {
	switch t.Metric {
	case "latency":
		return extractLatencyMetric(t.Aggregate, in.Stats)
	case "latency_samples":
		return extractSeriesMetric(t.Metric, t.Aggregate, in.Latency)
	case "throughput":
		if t.Aggregate == "rate" {
			return in.Stats.ThroughputPerSec, nil
		}
		return extractSeriesMetric(t.Metric, t.Aggregate, in.Throughput)
	case "messages":
		return extractCountMetric(t.Metric, t.Aggregate, in.Stats.Total)
	case "anomalies":
		return extractCountMetric(t.Metric, t.Aggregate, in.Stats.Anomalies)
	case "failures":
		return extractFailureMetric(t.Aggregate, in.Stats)
	default:
		return 0, fmt.Errorf("unknown metric: %s", t.Metric)
	}
}

func extractLatencyMetric(aggregate string, stats metrics.Stats) (float64, error) {
	if stats.Total == 0 {
		return 0, fmt.Errorf("latency undefined: no messages recorded")
	}
	switch aggregate {
	case "p50":
		return stats.P50LatencyMs, nil
	case "p90":
		return stats.P90LatencyMs, nil
	case "p99":
		return stats.P99LatencyMs, nil
	case "avg":
		return stats.MeanLatencyMs, nil
	case "min":
		return stats.MinLatencyMs, nil
	case "max":
		return stats.MaxLatencyMs, nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for latency", aggregate)
	}
}

func extractSeriesMetric(metric, aggregate string, s metrics.SeriesStats) (float64, error) {
	if s.Empty {
		return 0, fmt.Errorf("%s: no samples", metric)
	}
	switch aggregate {
	case "avg":
		return s.Mean, nil
	case "min":
		return s.Min, nil
	case "max":
		return s.Max, nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for %s (use 'avg', 'min' or 'max')", aggregate, metric)
	}
}

func extractCountMetric(metric, aggregate string, n int64) (float64, error) {
	if aggregate != "count" {
		return 0, fmt.Errorf("unsupported aggregate %q for %s (use 'count')", aggregate, metric)
	}
	return float64(n), nil
}

func extractFailureMetric(aggregate string, stats metrics.Stats) (float64, error) {
	switch aggregate {
	case "count":
		return float64(stats.Failures), nil
	case "rate":
		seen := stats.Total + stats.Failures
		if seen == 0 {
			return 0, nil
		}
		return float64(stats.Failures) / float64(seen), nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for failures (use 'count' or 'rate')", aggregate)
	}
}

func compareValues(actual float64, operator string, expected float64) bool {
	// Handle floating point comparison with small epsilon
	epsilon := 1e-9

	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	default:
		return false
	}
}
