package tracing

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// NewProvider builds a tracer provider that samples ratio of root spans and batches
// finished spans to exporter, then installs it globally. Call the returned function on
// shutdown to flush pending spans.
func NewProvider(serviceName string, ratio float64, exporter sdktrace.SpanExporter) func(context.Context) error {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)
	otel.SetTracerProvider(tp)

	slog.Info("tracing enabled", slog.String("service", serviceName), slog.Float64("sample_ratio", ratio))
	return tp.Shutdown
}

// LogExporter writes finished spans to a slog.Logger. It is the exporter used when no
// collector is deployed.
type LogExporter struct {
	logger *slog.Logger
}

// NewLogExporter creates an exporter writing to logger.
func NewLogExporter(logger *slog.Logger) *LogExporter {
	return &LogExporter{logger: logger}
}

// ExportSpans logs one line per span.
func (e *LogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		attrs := []any{
			slog.String("trace_id", span.SpanContext().TraceID().String()),
			slog.String("span_id", span.SpanContext().SpanID().String()),
			slog.String("status", span.Status().Code.String()),
			slog.Int64("duration_ms", span.EndTime().Sub(span.StartTime()).Milliseconds()),
		}
		if parent := span.Parent(); parent.IsValid() {
			attrs = append(attrs, slog.String("parent_span_id", parent.SpanID().String()))
		}
		for _, kv := range span.Attributes() {
			attrs = append(attrs, slog.String(string(kv.Key), kv.Value.Emit()))
		}
		e.logger.DebugContext(ctx, "span "+span.Name(), attrs...)
	}
	return nil
}

// Shutdown is a no-op; the logger owns no resources.
func (e *LogExporter) Shutdown(context.Context) error {
	return nil
}

// ServiceAttribute labels spans with the service name.
func ServiceAttribute(name string) attribute.KeyValue {
	return attribute.String("service.name", name)
}
