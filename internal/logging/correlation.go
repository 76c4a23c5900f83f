package logging

import (
	"context"
	"fmt"
	"regexp"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type (
	sessionKey struct{}
	requestKey struct{}
	loggerKey  struct{}
)

// ContextFields collects the correlation identifiers a context carries:
// the active OTel span, the pipeline session and the transport request.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 5)

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}

	if id := SessionIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("session.id", id))
	}
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}

	return fields
}

const maxIDLen = 128

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// checkID panics on malformed identifiers. Callers that accept IDs from
// the outside validate them before stamping the context.
func checkID(kind, id string) {
	switch {
	case id == "":
		panic(fmt.Sprintf("logging: %s cannot be empty", kind))
	case len(id) > maxIDLen:
		panic(fmt.Sprintf("logging: %s exceeds %d bytes", kind, maxIDLen))
	case !idPattern.MatchString(id):
		panic(fmt.Sprintf("logging: %s must match [a-zA-Z0-9_-]+", kind))
	}
}

// WithSessionID stamps the context with a pipeline session identifier.
// Panics if the ID is empty, too long, or carries characters outside
// [a-zA-Z0-9_-].
func WithSessionID(ctx context.Context, id string) context.Context {
	checkID("session ID", id)
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionIDFromContext returns the session ID, or "" when absent.
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// WithRequestID stamps the context with a transport request identifier.
// Same validation rules as WithSessionID.
func WithRequestID(ctx context.Context, id string) context.Context {
	checkID("request ID", id)
	return context.WithValue(ctx, requestKey{}, id)
}

// RequestIDFromContext returns the request ID, or "" when absent.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestKey{}).(string)
	return id
}

// NewContext stores the logger in the context.
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext retrieves the logger stored by NewContext, or a nop
// logger when none is present.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey{}).(*Logger); ok {
		return l
	}
	return Nop()
}
