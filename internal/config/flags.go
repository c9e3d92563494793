package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/torosent/qbench/internal/queue"
)

func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "qbench",
		Short:         "Multi-producer single-consumer queue latency and throughput benchmark",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

func configureFlags(flags *pflag.FlagSet) {
	// Benchmark shape
	flags.IntP("runs", "r", DefaultRuns, "Number of report intervals to measure")
	flags.IntP("time", "t", DefaultReportInterval, "Seconds between two reports")
	flags.IntP("num-producer", "p", DefaultProducers, "Number of producer workers")
	flags.IntP("tuple-size", "s", DefaultMessageSize, "Message size in bytes (minimum 16)")
	flags.IntP("queue-size", "q", DefaultQueueExponent, fmt.Sprintf("Queue capacity as a power of two exponent (1-%d)", queue.MaxExponent))
	flags.IntP("mode", "m", int(ModeBlockUntilSpace), "Full-queue policy: 0 blocks until space, 1 stops the producer")

	// Tuning
	flags.Duration("join-timeout", DefaultJoinTimeout, "How long to wait for each worker after the stop signal")
	flags.Int("rate", 0, "Messages per second limit per producer (0 means unlimited)")
	flags.Bool("compact", false, "Use the compact ring layout (fewer bytes per slot)")
	flags.Int64("seed", 0, "Payload generator seed (0 picks a time based seed)")

	// Output
	flags.Bool("json-output", false, "Emit the summary as JSON")
	flags.Bool("yaml-output", false, "Emit the summary as YAML")
	flags.String("html-output", "", "Write an HTML report to the specified file path")
	flags.Bool("dashboard", false, "Show live terminal dashboard")
	flags.String("log-level", DefaultLogLevel, "Diagnostics level: debug, info, warn or error")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")
	flags.StringSlice("threshold", nil, "Pass/fail thresholds (repeatable, e.g., 'latency:avg < 5')")

	// Tracing
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (host:port)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.Bool("tracing-insecure", false, "Use plaintext transport for the OTLP exporter")
	flags.String("tracing-service-name", "", "Service name reported to the collector")
	flags.Float64("tracing-sample-rate", 1.0, "Trace sampling ratio between 0.0 and 1.0")

	flags.BoolP("help", "h", false, "Show this help")
}

func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	ints := []struct {
		name string
		dst  *int
	}{
		{"runs", &cfg.Runs},
		{"time", &cfg.ReportInterval},
		{"num-producer", &cfg.Producers},
		{"tuple-size", &cfg.MessageSize},
		{"queue-size", &cfg.QueueExponent},
		{"rate", &cfg.Rate},
	}
	for _, f := range ints {
		if !fs.Changed(f.name) {
			continue
		}
		val, err := fs.GetInt(f.name)
		if err != nil {
			return err
		}
		*f.dst = val
	}

	if fs.Changed("mode") {
		val, err := fs.GetInt("mode")
		if err != nil {
			return err
		}
		cfg.Mode = Mode(val)
	}
	if fs.Changed("join-timeout") {
		val, err := fs.GetDuration("join-timeout")
		if err != nil {
			return err
		}
		cfg.JoinTimeout = val
	}
	if fs.Changed("seed") {
		val, err := fs.GetInt64("seed")
		if err != nil {
			return err
		}
		cfg.Seed = val
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{"compact", &cfg.Compact},
		{"json-output", &cfg.JSONOutput},
		{"yaml-output", &cfg.YAMLOutput},
		{"dashboard", &cfg.Dashboard},
		{"tracing-insecure", &cfg.Tracing.Insecure},
	}
	for _, f := range bools {
		if !fs.Changed(f.name) {
			continue
		}
		val, err := fs.GetBool(f.name)
		if err != nil {
			return err
		}
		*f.dst = val
	}

	strs := []struct {
		name string
		dst  *string
	}{
		{"html-output", &cfg.HTMLOutput},
		{"log-level", &cfg.LogLevel},
		{"tracing-endpoint", &cfg.Tracing.Endpoint},
		{"tracing-protocol", &cfg.Tracing.Protocol},
		{"tracing-service-name", &cfg.Tracing.ServiceName},
	}
	for _, f := range strs {
		if !fs.Changed(f.name) {
			continue
		}
		val, err := fs.GetString(f.name)
		if err != nil {
			return err
		}
		*f.dst = strings.TrimSpace(val)
	}

	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}
	return nil
}
