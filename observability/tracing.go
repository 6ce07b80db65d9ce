package observability

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/petal-labs/azresponses/core"
)

// TracerName is the instrumentation scope of spans produced by Tracer.
const TracerName = "github.com/petal-labs/azresponses"

// Tracer turns each client operation into a span. Spans are recorded when
// the operation ends, back-dated to its start, so no state is held between
// the two hook calls.
//
// Only operational metadata is attached; prompts and outputs are never
// recorded.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracing hook. A nil provider uses the global one.
func NewTracer(tp trace.TracerProvider) *Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracer{tracer: tp.Tracer(TracerName)}
}

// OnRequestStart implements core.TelemetryHook.
func (t *Tracer) OnRequestStart(core.RequestStartEvent) {}

// OnRequestEnd implements core.TelemetryHook.
func (t *Tracer) OnRequestEnd(e core.RequestEndEvent) {
	_, span := t.tracer.Start(context.Background(), "azresponses."+e.Operation,
		trace.WithTimestamp(e.Start),
		trace.WithSpanKind(trace.SpanKindClient),
	)

	attrs := []attribute.KeyValue{
		attribute.String("azresponses.operation", e.Operation),
		attribute.String("azresponses.model", e.Model),
		attribute.String("azresponses.trace_id", e.TraceID),
		attribute.Int("azresponses.attempts", e.Attempts),
		attribute.Bool("azresponses.cache_hit", e.CacheHit),
		attribute.Bool("azresponses.fell_back", e.FellBack),
	}
	if e.ResponseID != "" {
		attrs = append(attrs, attribute.String("azresponses.response_id", e.ResponseID))
	}
	if e.RequestID != "" {
		attrs = append(attrs, attribute.String("azresponses.request_id", e.RequestID))
	}
	if e.Usage.TotalTokens > 0 {
		attrs = append(attrs,
			attribute.Int("azresponses.usage.input_tokens", e.Usage.InputTokens),
			attribute.Int("azresponses.usage.output_tokens", e.Usage.OutputTokens),
			attribute.Int("azresponses.usage.total_tokens", e.Usage.TotalTokens),
		)
	}
	span.SetAttributes(attrs...)

	if e.Err != nil {
		span.RecordError(e.Err)
		span.SetAttributes(attribute.String("azresponses.outcome", Outcome(e.Err)))
		span.SetStatus(codes.Error, e.Err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(e.End))
}

var _ core.TelemetryHook = (*Tracer)(nil)

// InitTracer installs a global tracer provider that writes spans to w as
// JSON, for the CLI's --trace flag. The returned function flushes and shuts
// the provider down.
func InitTracer(serviceName string, w io.Writer, logger *slog.Logger) (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes("", semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	logger.Debug("tracing initialized", "service", serviceName)
	return tp.Shutdown, nil
}
