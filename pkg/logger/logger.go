// Package logger configures log/slog for the retriever and carries the
// request and trace identifiers of an in-flight retrieval through the
// context, so every stage of one request logs under the same IDs.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type contextKey struct{}

// ids is stored by value; each With* call copies it.
type ids struct {
	requestID string
	traceID   string
}

// Setup installs the default logger writing to stdout.
func Setup(level string, format string) {
	slog.SetDefault(New(os.Stdout, level, format))
}

// New builds a logger for w. format "json" selects JSON output, anything
// else the text handler.
func New(w io.Writer, level string, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}
	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// WithRequestID returns a context whose logger tags lines with request_id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	v := idsFrom(ctx)
	v.requestID = requestID
	return context.WithValue(ctx, contextKey{}, v)
}

// WithTraceID returns a context whose logger tags lines with trace_id.
// The orchestrator sets it from the retrieval's root span.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	v := idsFrom(ctx)
	v.traceID = traceID
	return context.WithValue(ctx, contextKey{}, v)
}

// RequestID returns the request ID stored in ctx, or "".
func RequestID(ctx context.Context) string {
	return idsFrom(ctx).requestID
}

// TraceID returns the trace ID stored in ctx, or "".
func TraceID(ctx context.Context) string {
	return idsFrom(ctx).traceID
}

// FromContext returns the default logger with whichever of request_id and
// trace_id ctx carries.
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	v := idsFrom(ctx)
	if v.requestID != "" {
		logger = logger.With("request_id", v.requestID)
	}
	if v.traceID != "" {
		logger = logger.With("trace_id", v.traceID)
	}
	return logger
}

// ForComponent is FromContext tagged with a component name.
func ForComponent(ctx context.Context, component string) *slog.Logger {
	return FromContext(ctx).With("component", component)
}

func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

// ParseLevel maps a config level name to a slog level. Unknown names are
// info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func idsFrom(ctx context.Context) ids {
	v, _ := ctx.Value(contextKey{}).(ids)
	return v
}
