package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RunAttributes describe a benchmark run on its span.
type RunAttributes struct {
	RunID         string
	Producers     int
	MessageSize   int
	QueueCapacity int
	Mode          string
}

// StartRunSpan starts the root span covering one benchmark run.
func StartRunSpan(ctx context.Context, tracer trace.Tracer, attrs RunAttributes) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "qbench run",
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	span.SetAttributes(
		attribute.String("qbench.run_id", attrs.RunID),
		attribute.Int("qbench.producers", attrs.Producers),
		attribute.Int("qbench.message_size", attrs.MessageSize),
		attribute.Int("qbench.queue_capacity", attrs.QueueCapacity),
		attribute.String("qbench.mode", attrs.Mode),
	)
	return ctx, span
}

// RecordSample adds one reporter sample as a span event. An undefined
// latency is recorded as latency_defined=false without a latency value.
func RecordSample(span trace.Span, index int, latencyMs float64, defined bool, throughput float64) {
	attrs := []attribute.KeyValue{
		attribute.Int("sample.index", index),
		attribute.Bool("sample.latency_defined", defined),
		attribute.Float64("sample.throughput_per_sec", throughput),
	}
	if defined {
		attrs = append(attrs, attribute.Float64("sample.latency_ms", latencyMs))
	}
	span.AddEvent("sample", trace.WithAttributes(attrs...))
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
