package logger

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// traceHandler injects trace fields into log records.
type traceHandler struct {
	next slog.Handler
}

// newTraceHandler creates a handler wrapper that enriches logs with trace metadata.
func newTraceHandler(next slog.Handler) slog.Handler {
	return &traceHandler{next: next}
}

// Enabled reports whether the wrapped handler handles records at the given level.
func (h *traceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle enriches and forwards records to the wrapped handler.
func (h *traceHandler) Handle(ctx context.Context, record slog.Record) error {
	if ctx != nil {
		spanCtx := trace.SpanFromContext(ctx).SpanContext()
		if spanCtx.IsValid() {
			record.AddAttrs(
				slog.String("trace_id", spanCtx.TraceID().String()),
				slog.String("span_id", spanCtx.SpanID().String()),
			)
		}
	}
	return h.next.Handle(ctx, record)
}

// WithAttrs returns a new handler with attributes attached.
func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{next: h.next.WithAttrs(attrs)}
}

// WithGroup returns a new handler with a group name.
func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{next: h.next.WithGroup(name)}
}
