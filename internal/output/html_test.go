package output_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/torosent/qbench/internal/metrics"
	"github.com/torosent/qbench/internal/output"
	"github.com/torosent/qbench/internal/threshold"
)

func TestGenerateHTMLReport(t *testing.T) {
	rep := sampleReport()
	rep.Run.Hung = []string{"reporter"}
	th, err := threshold.Parse("throughput:min > 1000")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	rep.Thresholds = output.NewThresholdSummary([]threshold.Result{{Threshold: th, Actual: 500, Pass: false}})

	var buf bytes.Buffer
	if err := output.GenerateHTMLReport(&buf, rep); err != nil {
		t.Fatalf("GenerateHTMLReport() error = %v", err)
	}

	html := buf.String()
	for _, want := range []string{
		"<!DOCTYPE html>",
		"Queue Benchmark Report",
		"01HZX3TESTRUN",
		"capacity 256",
		"latency-chart",
		"throughput-chart",
		"Hung Workers",
		"Thresholds (0/1 Passed)",
		"badge-error",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("HTML missing %q", want)
		}
	}
}

func TestGenerateHTMLReportNoSamples(t *testing.T) {
	rep := output.Report{
		Summary: output.Summary{
			Latency:    metrics.SeriesStats{Empty: true},
			Throughput: metrics.SeriesStats{Empty: true},
		},
	}

	var buf bytes.Buffer
	if err := output.GenerateHTMLReport(&buf, rep); err != nil {
		t.Fatalf("GenerateHTMLReport() error = %v", err)
	}

	html := buf.String()
	if !strings.Contains(html, "no samples") {
		t.Error("expected 'no samples' marker")
	}
	if !strings.Contains(html, "undefined: no messages recorded") {
		t.Error("expected undefined latency marker")
	}
	if strings.Contains(html, `id="latency-chart"`) {
		t.Error("chart container should be omitted without samples")
	}
	if strings.Contains(html, "Thresholds (") {
		t.Error("threshold section should be omitted")
	}
}
