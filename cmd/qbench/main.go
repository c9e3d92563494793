package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/torosent/qbench/internal/config"
	"github.com/torosent/qbench/internal/dashboard"
	"github.com/torosent/qbench/internal/metrics"
	"github.com/torosent/qbench/internal/output"
	"github.com/torosent/qbench/internal/queue"
	"github.com/torosent/qbench/internal/runner"
	"github.com/torosent/qbench/internal/threshold"
	"github.com/torosent/qbench/internal/tracing"
)

const (
	completionTrailer     = "Benchmark complete."
	tracingShutdownPeriod = 5 * time.Second
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	runID := ulid.Make().String()
	log := newLogger(stderr, cfg.LogLevel).WithField("run_id", runID)
	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}

	q, err := queue.New(queue.Options{
		Exponent: cfg.QueueExponent,
		Mode:     toQueueMode(cfg.Mode),
		Compact:  cfg.Compact,
	})
	if err != nil {
		return err
	}
	collector := metrics.NewCollector()

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), tracingShutdownPeriod)
		defer done()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("tracing shutdown failed")
		}
	}()

	ctx, span := tracing.StartRunSpan(ctx, provider.Tracer(), tracing.RunAttributes{
		RunID:         runID,
		Producers:     cfg.Producers,
		MessageSize:   cfg.MessageSize,
		QueueCapacity: q.Cap(),
		Mode:          cfg.Mode.String(),
	})

	// Sample lines go to stdout only in plain text mode.
	sampleOut := stdout
	if cfg.JSONOutput || cfg.YAMLOutput || cfg.Dashboard {
		sampleOut = io.Discard
	}
	reporter := output.NewReporter(collector, cfg.ReportPeriod(), sampleOut)
	reporter.OnSample(func(s output.Sample) {
		tracing.RecordSample(span, s.Index, s.LatencyMs, s.LatencyDefined, s.ThroughputPerSec)
	})

	var dash *dashboard.Dashboard
	if cfg.Dashboard {
		dash, err = dashboard.New(collector, dashboard.RunConfig{
			Producers:     cfg.Producers,
			MessageSize:   cfg.MessageSize,
			QueueCapacity: q.Cap(),
			Mode:          cfg.Mode.String(),
			Rate:          cfg.Rate,
			Runs:          cfg.Runs,
			Interval:      cfg.ReportPeriod(),
			ConfigFile:    cfg.ConfigFile,
		}, cancel)
		if err != nil {
			tracing.EndSpan(span, err)
			return err
		}
		reporter.OnSample(dash.AddSample)
	}

	r, err := runner.New(runner.Options{
		Producers:     cfg.Producers,
		MessageSize:   cfg.MessageSize,
		Seed:          cfg.Seed,
		RatePerSecond: cfg.Rate,
		Duration:      cfg.RunDuration(),
		JoinTimeout:   cfg.JoinTimeout,
		Queue:         q,
		Recorder:      collector,
		Reporter:      reporter,
		Logger:        log,
	})
	if err != nil {
		if dash != nil {
			dash.Stop()
		}
		tracing.EndSpan(span, err)
		return err
	}

	log.WithFields(logrus.Fields{
		"producers":      cfg.Producers,
		"message_size":   cfg.MessageSize,
		"queue_capacity": q.Cap(),
		"mode":           cfg.Mode,
		"duration":       cfg.RunDuration(),
	}).Info("starting benchmark")

	if dash != nil {
		dash.Start()
	}
	result, runErr := r.Run(ctx)
	if dash != nil {
		dash.Stop()
	}

	stats := collector.Stats()
	summary := reporter.Summary()
	results := threshold.NewEvaluator(thresholds).Evaluate(threshold.Input{
		Stats:      stats,
		Latency:    summary.Latency,
		Throughput: summary.Throughput,
	})

	rep := output.Report{
		Run: output.RunInfo{
			RunID:           runID,
			Producers:       cfg.Producers,
			MessageSize:     cfg.MessageSize,
			QueueCapacity:   q.Cap(),
			Mode:            cfg.Mode.String(),
			Runs:            cfg.Runs,
			IntervalSeconds: cfg.ReportInterval,
			Accepted:        result.Accepted,
			FullStops:       result.FullStops,
			Interrupted:     result.Interrupted,
			Hung:            result.Hung,
			ElapsedMs:       float64(result.Elapsed) / float64(time.Millisecond),
		},
		Summary:    summary,
		Overall:    stats,
		Thresholds: output.NewThresholdSummary(results),
	}

	if err := writeReport(stdout, cfg, rep, results); err != nil {
		tracing.EndSpan(span, err)
		return err
	}
	if cfg.HTMLOutput != "" {
		if err := writeHTMLReport(cfg.HTMLOutput, rep); err != nil {
			tracing.EndSpan(span, err)
			return err
		}
		log.WithField("path", cfg.HTMLOutput).Info("HTML report written")
	}

	err = runErr
	if failed := threshold.Failed(results); failed > 0 && err == nil {
		err = fmt.Errorf("%d threshold(s) failed", failed)
	}
	tracing.EndSpan(span, err,
		attribute.Int64("qbench.accepted", result.Accepted),
		attribute.Int64("qbench.consumed", result.Consumed),
		attribute.Int("qbench.full_stops", result.FullStops),
		attribute.Int("qbench.hung", len(result.Hung)),
		attribute.Bool("qbench.interrupted", result.Interrupted),
	)
	if err != nil {
		return err
	}

	if !cfg.JSONOutput && !cfg.YAMLOutput {
		fmt.Fprintln(stdout, completionTrailer)
	}
	return nil
}

func newLogger(w io.Writer, level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

func toQueueMode(m config.Mode) queue.Mode {
	switch m {
	case config.ModeFailWhenFull:
		return queue.FailWhenFull
	default:
		return queue.BlockUntilSpace
	}
}

func writeReport(w io.Writer, cfg *config.Config, rep output.Report, results []threshold.Result) error {
	switch {
	case cfg.JSONOutput:
		return output.PrintJSONReport(w, rep)
	case cfg.YAMLOutput:
		return output.PrintYAMLReport(w, rep)
	}
	output.PrintReport(w, rep)
	if len(results) > 0 {
		output.PrintThresholdResults(w, results)
	}
	return nil
}

func writeHTMLReport(path string, rep output.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create HTML report: %w", err)
	}
	if err := output.GenerateHTMLReport(f, rep); err != nil {
		f.Close()
		return fmt.Errorf("generate HTML report: %w", err)
	}
	return f.Close()
}
