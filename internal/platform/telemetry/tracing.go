// Package telemetry wires tracing and metrics for the CLI.
package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// InitTracing installs a tracer provider that reports finished spans to
// logger. Spans are exported synchronously, which suits a short-lived CLI.
func InitTracing(serviceName, version string, logger *slog.Logger) *sdktrace.TracerProvider {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSyncer(NewLogExporter(logger)),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		)),
	)

	otel.SetTracerProvider(tp)
	return tp
}

// ShutdownTracing flushes and stops tp.
func ShutdownTracing(ctx context.Context, tp *sdktrace.TracerProvider, logger *slog.Logger) {
	if err := tp.Shutdown(ctx); err != nil {
		logger.Warn("error shutting down tracer provider", "error", err)
	}
}

// LogExporter writes each span as one structured log record.
type LogExporter struct {
	logger *slog.Logger
}

var _ sdktrace.SpanExporter = (*LogExporter)(nil)

func NewLogExporter(logger *slog.Logger) *LogExporter {
	return &LogExporter{logger: logger}
}

func (e *LogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		attrs := []slog.Attr{
			slog.String("name", s.Name()),
			slog.String("trace_id", s.SpanContext().TraceID().String()),
			slog.String("span_id", s.SpanContext().SpanID().String()),
			slog.Int64("duration_ms", s.EndTime().Sub(s.StartTime()).Milliseconds()),
			slog.String("status", s.Status().Code.String()),
		}
		if s.Parent().IsValid() {
			attrs = append(attrs, slog.String("parent_id", s.Parent().SpanID().String()))
		}
		if d := s.Status().Description; d != "" {
			attrs = append(attrs, slog.String("status_description", d))
		}
		for _, kv := range s.Attributes() {
			attrs = append(attrs, slog.String(string(kv.Key), kv.Value.Emit()))
		}
		e.logger.LogAttrs(ctx, slog.LevelInfo, "trace.span", attrs...)
	}
	return nil
}

func (e *LogExporter) Shutdown(ctx context.Context) error { return nil }
