package context

import (
	"context"

	"tillpoint/internal/core/id"
)

// TraceContext carries the correlation IDs for one till request.
// Spans are handled by otel inside the transaction manager; this only
// ties log lines and audit entries back to the originating request.
type TraceContext struct {
	TraceID   string
	RequestID string
}

type traceContextKey struct{}

// WithTrace adds TraceContext to context.
func WithTrace(ctx context.Context, trace *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// GetTrace returns TraceContext from context, or nil.
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}

// GetTraceID returns the trace ID from context, generating one for
// callers outside the request path (seed, batch jobs).
func GetTraceID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.TraceID
	}
	return id.New().String()
}

// GetRequestID returns the request ID from context or empty string.
func GetRequestID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.RequestID
	}
	return ""
}

// NewTraceContext creates a TraceContext with generated IDs. UUIDv7
// keeps trace IDs time-ordered when grepping logs.
func NewTraceContext() *TraceContext {
	return &TraceContext{
		TraceID:   id.New().String(),
		RequestID: id.New().String(),
	}
}
