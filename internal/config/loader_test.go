package config

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestAsString(t *testing.T) {
	tests := []struct {
		input interface{}
		want  string
	}{
		{"hello", "hello"},
		{123, "123"},
		{true, "true"},
		{nil, ""},
		{[]byte("bytes"), "bytes"},
	}

	for _, tt := range tests {
		got, err := asString(tt.input)
		if err != nil {
			t.Errorf("asString(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asString(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestAsInt(t *testing.T) {
	tests := []struct {
		input interface{}
		want  int
	}{
		{123, 123},
		{"456", 456},
		{int64(789), 789},
		{float64(10.0), 10},
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asInt(tt.input)
		if err != nil {
			t.Errorf("asInt(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asInt(%v) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestAsBool(t *testing.T) {
	tests := []struct {
		input interface{}
		want  bool
	}{
		{true, true},
		{"true", true},
		{"1", true},
		{false, false},
		{"0", false},
		{nil, false},
	}

	for _, tt := range tests {
		got, err := asBool(tt.input)
		if err != nil {
			t.Errorf("asBool(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asBool(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestAsDuration(t *testing.T) {
	tests := []struct {
		input interface{}
		want  time.Duration
	}{
		{"250ms", 250 * time.Millisecond},
		{2, 2 * time.Second},
		{float64(3), 3 * time.Second},
		{time.Minute, time.Minute},
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asDuration(tt.input)
		if err != nil {
			t.Errorf("asDuration(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asDuration(%v) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestAsMode(t *testing.T) {
	tests := []struct {
		input interface{}
		want  Mode
	}{
		{0, ModeBlockUntilSpace},
		{1, ModeFailWhenFull},
		{"block", ModeBlockUntilSpace},
		{"fail-when-full", ModeFailWhenFull},
		{"FAIL", ModeFailWhenFull},
		{"1", ModeFailWhenFull},
		{7, Mode(7)},
	}

	for _, tt := range tests {
		got, err := asMode(tt.input)
		if err != nil {
			t.Errorf("asMode(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asMode(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}

	if _, err := asMode("sometimes"); err == nil {
		t.Error("asMode(sometimes) expected error")
	}
}

func TestApplyConfigSettings(t *testing.T) {
	cfg := Default()
	settings := map[string]interface{}{
		"runs":         10,
		"time":         2,
		"num_producer": "4",
		"tuple_size":   128,
		"queue_size":   12,
		"mode":         "fail",
		"join_timeout": "3s",
		"seed":         int64(42),
		"compact":      true,
		"thresholds":   []interface{}{"latency:avg < 5"},
		"tracing": map[string]interface{}{
			"Endpoint":    "localhost:4317",
			"insecure":    "true",
			"sample_rate": 0.5,
		},
	}

	if err := applyConfigSettings(&cfg, settings); err != nil {
		t.Fatalf("applyConfigSettings() error = %v", err)
	}

	if cfg.Runs != 10 || cfg.ReportInterval != 2 || cfg.Producers != 4 {
		t.Errorf("shape = %d/%d/%d, want 10/2/4", cfg.Runs, cfg.ReportInterval, cfg.Producers)
	}
	if cfg.MessageSize != 128 || cfg.QueueExponent != 12 {
		t.Errorf("MessageSize/QueueExponent = %d/%d, want 128/12", cfg.MessageSize, cfg.QueueExponent)
	}
	if cfg.Mode != ModeFailWhenFull {
		t.Errorf("Mode = %v, want fail", cfg.Mode)
	}
	if cfg.JoinTimeout != 3*time.Second {
		t.Errorf("JoinTimeout = %s, want 3s", cfg.JoinTimeout)
	}
	if cfg.Seed != 42 || !cfg.Compact {
		t.Errorf("Seed/Compact = %d/%v, want 42/true", cfg.Seed, cfg.Compact)
	}
	if len(cfg.Thresholds) != 1 {
		t.Errorf("Thresholds = %v, want 1 entry", cfg.Thresholds)
	}
	if cfg.Tracing.Endpoint != "localhost:4317" || !cfg.Tracing.Insecure || cfg.Tracing.SampleRate != 0.5 {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
}

func TestApplyConfigSettingsRejectsBadTypes(t *testing.T) {
	cfg := Default()
	err := applyConfigSettings(&cfg, map[string]interface{}{"runs": []int{1}})
	if err == nil {
		t.Fatal("expected error for list-valued runs")
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := Default()
	cfg.Runs = 10

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	configureFlags(fs)
	if err := fs.Parse([]string{"-p", "8", "-m", "1", "--rate", "100", "--tracing-endpoint", " otel:4318 "}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if err := applyFlagOverrides(&cfg, fs); err != nil {
		t.Fatalf("applyFlagOverrides() error = %v", err)
	}

	if cfg.Runs != 10 {
		t.Errorf("Runs = %d, want 10 (unchanged flag must not override)", cfg.Runs)
	}
	if cfg.Producers != 8 {
		t.Errorf("Producers = %d, want 8", cfg.Producers)
	}
	if cfg.Mode != ModeFailWhenFull {
		t.Errorf("Mode = %v, want fail", cfg.Mode)
	}
	if cfg.Rate != 100 {
		t.Errorf("Rate = %d, want 100", cfg.Rate)
	}
	if cfg.Tracing.Endpoint != "otel:4318" {
		t.Errorf("Tracing.Endpoint = %q, want otel:4318", cfg.Tracing.Endpoint)
	}
}

func TestHelpShowsQueueSizeRange(t *testing.T) {
	cmd := newFlagCommand()
	if usage := cmd.Flags().Lookup("queue-size").Usage; !strings.Contains(usage, "(1-24)") {
		t.Errorf("queue-size usage = %q, want the 1-24 range", usage)
	}

	var buf bytes.Buffer
	cmd.SetOut(&buf)
	displayHelp(cmd)
	if !strings.Contains(buf.String(), "exponent (1-24)") {
		t.Errorf("help output missing queue-size range:\n%s", buf.String())
	}
}
