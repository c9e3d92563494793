package tracing_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/qbench/internal/config"
	"github.com/torosent/qbench/internal/tracing"
)

func setupTestTracer(t *testing.T) (*tracetest.InMemoryExporter, trace.Tracer) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})
	return exporter, tp.Tracer("test")
}

func attrMap(kvs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(kvs))
	for _, kv := range kvs {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestInitDisabledByDefault(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	p, err := tracing.Init(context.Background(), config.TracingConfig{})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	if p.Enabled() {
		t.Error("Enabled() = true, want false when no endpoint is set")
	}
	_, span := p.Tracer().Start(context.Background(), "test")
	span.End()
	if span.SpanContext().IsValid() {
		t.Error("disabled provider produced a valid span context")
	}
}

func TestInitWithEndpointEnablesTracing(t *testing.T) {
	// No collector is contacted until spans are flushed.
	p, err := tracing.Init(context.Background(), config.TracingConfig{
		Endpoint:    "localhost:4317",
		Protocol:    "grpc",
		ServiceName: "test-service",
		SampleRate:  1.0,
		Insecure:    true,
	})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	if !p.Enabled() {
		t.Error("Enabled() = false, want true when endpoint is set")
	}
}

func TestInitHTTPProtocol(t *testing.T) {
	p, err := tracing.Init(context.Background(), config.TracingConfig{
		Endpoint:   "localhost:4318",
		Protocol:   "http",
		Insecure:   true,
		SampleRate: 0.5,
	})
	if err != nil {
		t.Fatalf("Init() with http protocol error = %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	if !p.Enabled() {
		t.Error("Enabled() = false, want true")
	}
}

func TestInitUnsupportedProtocol(t *testing.T) {
	_, err := tracing.Init(context.Background(), config.TracingConfig{
		Endpoint: "localhost:4317",
		Protocol: "thrift",
		Insecure: true,
	})
	if err == nil {
		t.Fatal("Init() with unsupported protocol should return error")
	}
}

func TestInitInvalidSampleRate(t *testing.T) {
	tests := []struct {
		name string
		rate float64
	}{
		{"negative", -0.5},
		{"above one", 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tracing.Init(context.Background(), config.TracingConfig{
				Endpoint:   "localhost:4317",
				Protocol:   "grpc",
				Insecure:   true,
				SampleRate: tt.rate,
			})
			if err == nil {
				t.Fatalf("Init() with sample_rate=%g should return error", tt.rate)
			}
		})
	}
}

func TestNilProviderSafety(t *testing.T) {
	var p *tracing.Provider
	if p.Enabled() {
		t.Error("nil provider Enabled() = true, want false")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("nil provider Shutdown() error = %v", err)
	}
	_, span := p.Tracer().Start(context.Background(), "test")
	span.End()
}

func TestStartRunSpan(t *testing.T) {
	exporter, tracer := setupTestTracer(t)

	ctx, span := tracing.StartRunSpan(context.Background(), tracer, tracing.RunAttributes{
		RunID:         "01HZXQ",
		Producers:     3,
		MessageSize:   64,
		QueueCapacity: 256,
		Mode:          "block",
	})
	if !trace.SpanFromContext(ctx).SpanContext().IsValid() {
		t.Fatal("returned context does not carry the run span")
	}
	tracing.EndSpan(span, nil)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	s := spans[0]
	if s.Name != "qbench run" {
		t.Errorf("span name = %q, want %q", s.Name, "qbench run")
	}
	if s.Status.Code != codes.Ok {
		t.Errorf("status = %v, want Ok", s.Status.Code)
	}
	attrs := attrMap(s.Attributes)
	if got := attrs["qbench.producers"].AsInt64(); got != 3 {
		t.Errorf("qbench.producers = %d, want 3", got)
	}
	if got := attrs["qbench.queue_capacity"].AsInt64(); got != 256 {
		t.Errorf("qbench.queue_capacity = %d, want 256", got)
	}
	if got := attrs["qbench.mode"].AsString(); got != "block" {
		t.Errorf("qbench.mode = %q, want block", got)
	}
	if got := attrs["qbench.run_id"].AsString(); got != "01HZXQ" {
		t.Errorf("qbench.run_id = %q, want 01HZXQ", got)
	}
}

func TestRecordSample(t *testing.T) {
	exporter, tracer := setupTestTracer(t)

	_, span := tracing.StartRunSpan(context.Background(), tracer, tracing.RunAttributes{})
	tracing.RecordSample(span, 0, 0, false, 0)
	tracing.RecordSample(span, 1, 0.125, true, 42000)
	tracing.EndSpan(span, nil)

	events := exporter.GetSpans()[0].Events
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}

	first := attrMap(events[0].Attributes)
	if first["sample.latency_defined"].AsBool() {
		t.Error("first sample latency_defined = true, want false")
	}
	if _, ok := first["sample.latency_ms"]; ok {
		t.Error("undefined sample carries a latency_ms attribute")
	}

	second := attrMap(events[1].Attributes)
	if got := second["sample.latency_ms"].AsFloat64(); got != 0.125 {
		t.Errorf("latency_ms = %v, want 0.125", got)
	}
	if got := second["sample.throughput_per_sec"].AsFloat64(); got != 42000 {
		t.Errorf("throughput_per_sec = %v, want 42000", got)
	}
	if got := second["sample.index"].AsInt64(); got != 1 {
		t.Errorf("index = %d, want 1", got)
	}
}

func TestEndSpanWithError(t *testing.T) {
	exporter, tracer := setupTestTracer(t)

	_, span := tracer.Start(context.Background(), "run")
	tracing.EndSpan(span, errors.New("producer-1: did not stop"),
		attribute.Int64("qbench.accepted", 10),
	)

	s := exporter.GetSpans()[0]
	if s.Status.Code != codes.Error {
		t.Errorf("status = %v, want Error", s.Status.Code)
	}
	if s.Status.Description != "producer-1: did not stop" {
		t.Errorf("status description = %q", s.Status.Description)
	}
	if got := attrMap(s.Attributes)["qbench.accepted"].AsInt64(); got != 10 {
		t.Errorf("qbench.accepted = %d, want 10", got)
	}
	if len(s.Events) == 0 || s.Events[0].Name != "exception" {
		t.Error("error was not recorded as an exception event")
	}
}

func TestInitUsesEnvironmentEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	p, err := tracing.Init(context.Background(), config.TracingConfig{Insecure: true, SampleRate: 1})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	if !p.Enabled() {
		t.Error("Enabled() = false, want true when OTEL_EXPORTER_OTLP_ENDPOINT is set")
	}
}
