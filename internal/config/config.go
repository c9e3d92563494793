package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/torosent/qbench/internal/message"
	"github.com/torosent/qbench/internal/queue"
)

// Mode selects what a producer does when the queue is full.
type Mode int

const (
	ModeBlockUntilSpace Mode = 0
	ModeFailWhenFull    Mode = 1
)

func (m Mode) String() string {
	switch m {
	case ModeBlockUntilSpace:
		return "block"
	case ModeFailWhenFull:
		return "fail"
	default:
		return fmt.Sprintf("%d", int(m))
	}
}

const (
	DefaultRuns           = 5
	DefaultReportInterval = 5
	DefaultProducers      = 3
	DefaultMessageSize    = 64
	DefaultQueueExponent  = 8
	DefaultJoinTimeout    = time.Second
	DefaultLogLevel       = "info"
)

// Config is the immutable description of one benchmark run.
type Config struct {
	Runs           int           `mapstructure:"runs"`
	ReportInterval int           `mapstructure:"time"` // seconds
	Producers      int           `mapstructure:"num_producer"`
	MessageSize    int           `mapstructure:"tuple_size"` // bytes
	QueueExponent  int           `mapstructure:"queue_size"` // capacity = 2^QueueExponent
	Mode           Mode          `mapstructure:"mode"`
	JoinTimeout    time.Duration `mapstructure:"join_timeout"`
	Rate           int           `mapstructure:"rate"` // per producer, 0 means unlimited
	Compact        bool          `mapstructure:"compact"`
	Seed           int64         `mapstructure:"seed"`
	JSONOutput     bool          `mapstructure:"json_output"`
	YAMLOutput     bool          `mapstructure:"yaml_output"`
	HTMLOutput     string        `mapstructure:"html_output"`
	Dashboard      bool          `mapstructure:"dashboard"`
	LogLevel       string        `mapstructure:"log_level"`
	Thresholds     []string      `mapstructure:"thresholds"`
	Tracing        TracingConfig `mapstructure:"tracing"`
	ConfigFile     string        `mapstructure:"-"`
}

type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`     // OTLP collector host:port
	Protocol    string  `mapstructure:"protocol"`     // "grpc" (default) or "http"
	Insecure    bool    `mapstructure:"insecure"`     // plaintext transport
	ServiceName string  `mapstructure:"service_name"` // defaults to OTEL_SERVICE_NAME or "qbench"
	SampleRate  float64 `mapstructure:"sample_rate"`  // 0.0 - 1.0
}

// Enabled reports whether spans should be exported.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// Default returns a configuration with every documented default applied.
func Default() Config {
	return Config{
		Runs:           DefaultRuns,
		ReportInterval: DefaultReportInterval,
		Producers:      DefaultProducers,
		MessageSize:    DefaultMessageSize,
		QueueExponent:  DefaultQueueExponent,
		Mode:           ModeBlockUntilSpace,
		JoinTimeout:    DefaultJoinTimeout,
		LogLevel:       DefaultLogLevel,
		Tracing:        TracingConfig{SampleRate: 1.0},
	}
}

// ReportPeriod is the time between two samples.
func (c Config) ReportPeriod() time.Duration {
	return time.Duration(c.ReportInterval) * time.Second
}

// RunDuration is (Runs + 1.5) report periods, leaving room for the last
// sample to land before the stop signal.
func (c Config) RunDuration() time.Duration {
	return time.Duration((float64(c.Runs) + 1.5) * float64(c.ReportPeriod()))
}

// QueueCapacity is 2^QueueExponent.
func (c Config) QueueCapacity() int {
	if c.QueueExponent < 0 || c.QueueExponent > 62 {
		return 0
	}
	return 1 << c.QueueExponent
}

type ValidationError struct {
	issues []string
	causes []error
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// Unwrap exposes the sentinel errors behind individual issues, so callers can
// test for e.g. message.ErrInvalidSize with errors.Is.
func (e ValidationError) Unwrap() []error {
	return e.causes
}

func (c Config) Validate() error {
	var issues []string
	var causes []error

	if c.Runs < 1 {
		issues = append(issues, "runs must be >= 1")
	}
	if c.ReportInterval < 1 {
		issues = append(issues, "time must be >= 1 second")
	}
	if c.Producers < 1 {
		issues = append(issues, "num-producer must be >= 1")
	}
	if err := message.Validate(c.MessageSize); err != nil {
		issues = append(issues, fmt.Sprintf("tuple-size: %v", err))
		causes = append(causes, err)
	}
	if c.QueueExponent < 1 || c.QueueExponent > queue.MaxExponent {
		issues = append(issues, fmt.Sprintf("queue-size must be between 1 and %d", queue.MaxExponent))
		causes = append(causes, queue.ErrInvalidCapacity)
	}
	if c.Mode != ModeBlockUntilSpace && c.Mode != ModeFailWhenFull {
		issues = append(issues, fmt.Sprintf("mode must be 0 (block) or 1 (fail), got %d", int(c.Mode)))
	}
	if c.JoinTimeout <= 0 {
		issues = append(issues, "join-timeout must be > 0")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if c.Dashboard && (c.JSONOutput || c.YAMLOutput) {
		issues = append(issues, "dashboard and json-output/yaml-output are mutually exclusive")
	}
	if c.JSONOutput && c.YAMLOutput {
		issues = append(issues, "json-output and yaml-output are mutually exclusive")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		issues = append(issues, fmt.Sprintf("log-level: %v", err))
	}
	issues = append(issues, validateTracingConfig(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues, causes: causes}
	}
	return nil
}

// Warnings lists settings that are valid but likely to skew results.
func (c Config) Warnings() []string {
	var warnings []string
	if cpus := runtime.NumCPU(); c.Producers > cpus*4 {
		warnings = append(warnings, fmt.Sprintf("%d producers on %d CPUs; results will mostly measure scheduler contention", c.Producers, cpus))
	}
	return warnings
}

func validateTracingConfig(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(strings.TrimSpace(t.Protocol)) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing: sample_rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}

// IsValidationError reports whether err came from Validate.
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}
