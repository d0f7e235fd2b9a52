package logging

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	analysisIDKey ctxKey = iota
	processIDKey
	elementIDKey
)

// WithAnalysisID returns a context with the analysis ID set.
func WithAnalysisID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, analysisIDKey, id)
}

// WithProcessID returns a context with the process ID set.
func WithProcessID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, processIDKey, id)
}

// WithElementID returns a context with the element ID set.
func WithElementID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, elementIDKey, id)
}

// AnalysisID extracts the analysis ID from the context, or "" if absent.
func AnalysisID(ctx context.Context) string {
	v, _ := ctx.Value(analysisIDKey).(string)
	return v
}

// ProcessID extracts the process ID from the context, or "" if absent.
func ProcessID(ctx context.Context) string {
	v, _ := ctx.Value(processIDKey).(string)
	return v
}

// ElementID extracts the element ID from the context, or "" if absent.
func ElementID(ctx context.Context) string {
	v, _ := ctx.Value(elementIDKey).(string)
	return v
}

// correlationAttrs returns the non-empty correlation IDs held by ctx.
func correlationAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	if v := AnalysisID(ctx); v != "" {
		attrs = append(attrs, slog.String("analysis_id", v))
	}
	if v := ProcessID(ctx); v != "" {
		attrs = append(attrs, slog.String("process_id", v))
	}
	if v := ElementID(ctx); v != "" {
		attrs = append(attrs, slog.String("element_id", v))
	}
	return attrs
}

// LogWith returns a logger enriched with correlation IDs from the context.
// Only non-empty values are added as attributes.
func LogWith(ctx context.Context, logger *slog.Logger) *slog.Logger {
	for _, a := range correlationAttrs(ctx) {
		logger = logger.With(a)
	}
	return logger
}

// CorrelationHandler wraps an slog.Handler, automatically injecting
// correlation IDs from the context into every log record.
// Use with slog.New(NewCorrelationHandler(inner)) so callers can use
// logger.InfoContext(ctx, ...) and IDs appear automatically.
type CorrelationHandler struct {
	inner slog.Handler
}

// NewCorrelationHandler wraps the given handler with automatic correlation ID injection.
func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(correlationAttrs(ctx)...)
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}
