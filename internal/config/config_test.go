package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/torosent/qbench/internal/config"
	"github.com/torosent/qbench/internal/message"
	"github.com/torosent/qbench/internal/queue"
)

func TestParseFlagsDefaults(t *testing.T) {
	loader := config.NewLoader()

	cfg, err := loader.Load([]string{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Runs != 5 {
		t.Errorf("Runs = %d, want 5", cfg.Runs)
	}
	if cfg.ReportInterval != 5 {
		t.Errorf("ReportInterval = %d, want 5", cfg.ReportInterval)
	}
	if cfg.Producers != 3 {
		t.Errorf("Producers = %d, want 3", cfg.Producers)
	}
	if cfg.MessageSize != 64 {
		t.Errorf("MessageSize = %d, want 64", cfg.MessageSize)
	}
	if cfg.QueueExponent != 8 || cfg.QueueCapacity() != 256 {
		t.Errorf("QueueExponent = %d (cap %d), want 8 (cap 256)", cfg.QueueExponent, cfg.QueueCapacity())
	}
	if cfg.Mode != config.ModeBlockUntilSpace {
		t.Errorf("Mode = %v, want block", cfg.Mode)
	}
	if cfg.JoinTimeout != time.Second {
		t.Errorf("JoinTimeout = %s, want 1s", cfg.JoinTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults error = %v", err)
	}
}

func TestParseShortFlags(t *testing.T) {
	cfg, err := config.NewLoader().Load([]string{"-r", "2", "-t", "1", "-p", "6", "-s", "32", "-q", "4", "-m", "1"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Runs != 2 || cfg.ReportInterval != 1 || cfg.Producers != 6 {
		t.Errorf("shape = %d/%d/%d, want 2/1/6", cfg.Runs, cfg.ReportInterval, cfg.Producers)
	}
	if cfg.MessageSize != 32 || cfg.QueueCapacity() != 16 {
		t.Errorf("MessageSize/QueueCapacity = %d/%d, want 32/16", cfg.MessageSize, cfg.QueueCapacity())
	}
	if cfg.Mode != config.ModeFailWhenFull {
		t.Errorf("Mode = %v, want fail", cfg.Mode)
	}
}

func TestHelpRequested(t *testing.T) {
	for _, args := range [][]string{{"-h"}, {"--help"}} {
		_, err := config.NewLoader().Load(args)
		if !errors.Is(err, config.ErrHelpRequested) {
			t.Errorf("Load(%v) error = %v, want ErrHelpRequested", args, err)
		}
	}
}

func TestUnknownFlag(t *testing.T) {
	if _, err := config.NewLoader().Load([]string{"--bogus"}); err == nil {
		t.Fatal("expected error for unknown flag")
	}
	if _, err := config.NewLoader().Load([]string{"stray"}); err == nil {
		t.Fatal("expected error for positional argument")
	}
}

func TestRunDuration(t *testing.T) {
	cfg := config.Default()
	cfg.Runs = 5
	cfg.ReportInterval = 2

	if got, want := cfg.RunDuration(), 13*time.Second; got != want {
		t.Errorf("RunDuration() = %s, want %s", got, want)
	}
	if got := cfg.ReportPeriod(); got != 2*time.Second {
		t.Errorf("ReportPeriod() = %s, want 2s", got)
	}
}

func TestLoadConfigFileJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{
		"runs": 3,
		"num_producer": 2,
		"mode": "fail",
		"join_timeout": "500ms",
		"thresholds": ["latency:avg < 10", "throughput:min > 1"]
	}`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.NewLoader().Load([]string{"--config", path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile = %q, want %q", cfg.ConfigFile, path)
	}
	if cfg.Runs != 3 || cfg.Producers != 2 {
		t.Errorf("Runs/Producers = %d/%d, want 3/2", cfg.Runs, cfg.Producers)
	}
	if cfg.Mode != config.ModeFailWhenFull {
		t.Errorf("Mode = %v, want fail", cfg.Mode)
	}
	if cfg.JoinTimeout != 500*time.Millisecond {
		t.Errorf("JoinTimeout = %s, want 500ms", cfg.JoinTimeout)
	}
	if len(cfg.Thresholds) != 2 {
		t.Errorf("Thresholds = %v, want 2 entries", cfg.Thresholds)
	}
}

func TestLoadConfigFileYAMLWithFlagOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(`
runs: 7
tuple_size: 256
queue_size: 10
tracing:
  endpoint: collector:4317
  protocol: HTTP
  sample_rate: 0.25
`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.NewLoader().Load([]string{"--config", path, "-r", "9"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Runs != 9 {
		t.Errorf("Runs = %d, want 9 (flag overrides file)", cfg.Runs)
	}
	if cfg.MessageSize != 256 || cfg.QueueExponent != 10 {
		t.Errorf("MessageSize/QueueExponent = %d/%d, want 256/10", cfg.MessageSize, cfg.QueueExponent)
	}
	if cfg.Tracing.Endpoint != "collector:4317" || cfg.Tracing.Protocol != "http" || cfg.Tracing.SampleRate != 0.25 {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	if _, err := config.NewLoader().Load([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")}); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateMessageSizeTooSmall(t *testing.T) {
	cfg := config.Default()
	cfg.MessageSize = 8

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !config.IsValidationError(err) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if !errors.Is(err, message.ErrInvalidSize) {
		t.Fatalf("expected errors.Is(err, message.ErrInvalidSize), got %v", err)
	}
}

func TestValidateCollectsIssues(t *testing.T) {
	cfg := config.Default()
	cfg.Runs = 0
	cfg.Producers = 0
	cfg.QueueExponent = queue.MaxExponent + 1
	cfg.Mode = config.Mode(2)
	cfg.JoinTimeout = 0
	cfg.LogLevel = "chatty"
	cfg.JSONOutput = true
	cfg.YAMLOutput = true
	cfg.Tracing.Protocol = "udp"

	err := cfg.Validate()
	var ve config.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	want := []string{"runs", "num-producer", "queue-size", "mode", "join-timeout", "log-level", "mutually exclusive", "protocol"}
	msg := err.Error()
	for _, w := range want {
		if !strings.Contains(msg, w) {
			t.Errorf("error %q does not mention %q", msg, w)
		}
	}
	if len(ve.Issues()) != len(want) {
		t.Errorf("Issues() = %d entries, want %d: %v", len(ve.Issues()), len(want), ve.Issues())
	}
	if !errors.Is(err, queue.ErrInvalidCapacity) {
		t.Errorf("expected errors.Is(err, queue.ErrInvalidCapacity)")
	}
}

func TestValidateRejectsExponentZero(t *testing.T) {
	cfg := config.Default()
	cfg.QueueExponent = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected exponent 0 to be rejected")
	}
}

func TestWarningsForOversubscribedProducers(t *testing.T) {
	cfg := config.Default()
	if w := cfg.Warnings(); len(w) != 0 {
		t.Fatalf("Warnings() on defaults = %v, want none", w)
	}

	cfg.Producers = runtime.NumCPU()*4 + 1
	w := cfg.Warnings()
	if len(w) != 1 || !strings.Contains(w[0], "scheduler contention") {
		t.Fatalf("Warnings() = %v, want one contention warning", w)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, a warning must not fail validation", err)
	}
}

func TestTracingEnabled(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	if (config.TracingConfig{}).Enabled() {
		t.Error("empty tracing config should be disabled")
	}
	if !(config.TracingConfig{Endpoint: "localhost:4317"}).Enabled() {
		t.Error("tracing with endpoint should be enabled")
	}

	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318")
	if !(config.TracingConfig{}).Enabled() {
		t.Error("tracing should be enabled via OTEL_EXPORTER_OTLP_ENDPOINT")
	}
}
