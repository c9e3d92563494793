package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/torosent/qbench/internal/metrics"
	"github.com/torosent/qbench/internal/threshold"
)

// NoSamples marks a series in which the reporter never took a sample.
const NoSamples = "no samples"

// RunInfo describes the configuration and lifecycle outcome of a run.
type RunInfo struct {
	RunID           string   `json:"run_id" yaml:"run_id"`
	Producers       int      `json:"producers" yaml:"producers"`
	MessageSize     int      `json:"message_size" yaml:"message_size"`
	QueueCapacity   int      `json:"queue_capacity" yaml:"queue_capacity"`
	Mode            string   `json:"mode" yaml:"mode"`
	Runs            int      `json:"runs" yaml:"runs"`
	IntervalSeconds int      `json:"interval_seconds" yaml:"interval_seconds"`
	Accepted        int64    `json:"accepted" yaml:"accepted"`
	FullStops       int      `json:"full_stops" yaml:"full_stops"`
	Interrupted     bool     `json:"interrupted" yaml:"interrupted"`
	Hung            []string `json:"hung,omitempty" yaml:"hung,omitempty"`
	ElapsedMs       float64  `json:"elapsed_ms" yaml:"elapsed_ms"`
}

// Report is the complete machine readable result of a run.
type Report struct {
	Run        RunInfo           `json:"run" yaml:"run"`
	Summary    Summary           `json:"summary" yaml:"summary"`
	Overall    metrics.Stats     `json:"overall" yaml:"overall"`
	Thresholds *ThresholdSummary `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// ThresholdSummary aggregates threshold outcomes for reports.
type ThresholdSummary struct {
	Total   int                   `json:"total" yaml:"total"`
	Passed  int                   `json:"passed" yaml:"passed"`
	Failed  int                   `json:"failed" yaml:"failed"`
	Results []ThresholdResultJSON `json:"results" yaml:"results"`
}

type ThresholdResultJSON struct {
	Threshold string  `json:"threshold" yaml:"threshold"`
	Metric    string  `json:"metric" yaml:"metric"`
	Aggregate string  `json:"aggregate" yaml:"aggregate"`
	Operator  string  `json:"operator" yaml:"operator"`
	Expected  float64 `json:"expected" yaml:"expected"`
	Actual    float64 `json:"actual" yaml:"actual"`
	Pass      bool    `json:"pass" yaml:"pass"`
}

// NewThresholdSummary returns nil when there is nothing to report.
func NewThresholdSummary(results []threshold.Result) *ThresholdSummary {
	if len(results) == 0 {
		return nil
	}
	summary := &ThresholdSummary{
		Total:   len(results),
		Results: make([]ThresholdResultJSON, len(results)),
	}
	for i, tr := range results {
		summary.Results[i] = ThresholdResultJSON{
			Threshold: tr.Threshold.Raw,
			Metric:    tr.Threshold.Metric,
			Aggregate: tr.Threshold.Aggregate,
			Operator:  tr.Threshold.Operator,
			Expected:  tr.Threshold.Value,
			Actual:    tr.Actual,
			Pass:      tr.Pass,
		}
		if tr.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}
	return summary
}

// PrintSummary prints min, max and average of both sample series. An empty
// series prints NoSamples with an average of 0.
func PrintSummary(w io.Writer, s Summary) {
	fmt.Fprintln(w, "\n--- Benchmark Summary ---")
	writeSeries(w, "Latency (ms):", s.Latency, 3)
	writeSeries(w, "Throughput (msg/s):", s.Throughput, 1)
	if s.UndefinedSamples > 0 {
		fmt.Fprintf(w, "Undefined samples:   %d\n", s.UndefinedSamples)
	}
}

func writeSeries(w io.Writer, label string, s metrics.SeriesStats, prec int) {
	if s.Empty {
		fmt.Fprintf(w, "%-20s %s (avg=0)\n", label, NoSamples)
		return
	}
	fmt.Fprintf(w, "%-20s min=%.*f max=%.*f avg=%.*f (%d samples)\n",
		label, prec, s.Min, prec, s.Max, prec, s.Mean, s.Samples)
}

// PrintReport outputs a human-readable report: the sample summary, whole-run
// statistics and threshold results.
func PrintReport(w io.Writer, rep Report) {
	PrintSummary(w, rep.Summary)

	stats := rep.Overall
	fmt.Fprintln(w, "\nOverall:")
	fmt.Fprintf(w, "  Messages:          %d\n", stats.Total)
	fmt.Fprintf(w, "  Accepted:          %d\n", rep.Run.Accepted)
	fmt.Fprintf(w, "  Anomalies:         %d\n", stats.Anomalies)
	if rep.Run.FullStops > 0 {
		fmt.Fprintf(w, "  Full-queue stops:  %d of %d producers\n", rep.Run.FullStops, rep.Run.Producers)
	}
	if stats.Total > 0 {
		fmt.Fprintln(w, "  Latency:")
		fmt.Fprintf(w, "    Min:             %s\n", stats.MinLatency)
		fmt.Fprintf(w, "    Max:             %s\n", stats.MaxLatency)
		fmt.Fprintf(w, "    Mean:            %s\n", stats.MeanLatency)
		fmt.Fprintf(w, "    P50:             %s\n", stats.P50Latency)
		fmt.Fprintf(w, "    P90:             %s\n", stats.P90Latency)
		fmt.Fprintf(w, "    P99:             %s\n", stats.P99Latency)
	}
	if len(stats.Errors) > 0 {
		fmt.Fprintln(w, "  Errors:")
		names := make([]string, 0, len(stats.Errors))
		for name := range stats.Errors {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "    %s: %d\n", name, stats.Errors[name])
		}
	}
	fmt.Fprintf(w, "Execution Delay: %s\tThroughput: %s\n",
		FormatLatency(stats.MeanLatencyMs, stats.Total > 0), FormatThroughput(stats.ThroughputPerSec))

	if rep.Thresholds != nil {
		fmt.Fprintf(w, "\nThresholds: %d/%d passed\n", rep.Thresholds.Passed, rep.Thresholds.Total)
	}
}

// PrintThresholdResults prints one line per threshold outcome.
func PrintThresholdResults(w io.Writer, results []threshold.Result) {
	for _, r := range results {
		fmt.Fprintf(w, "  %s\n", r.Message)
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, rep Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// PrintYAMLReport outputs a YAML-formatted report.
func PrintYAMLReport(w io.Writer, rep Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rep); err != nil {
		return err
	}
	return enc.Close()
}
