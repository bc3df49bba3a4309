package logtrace

import (
	"context"

	"github.com/tansive/unifictl/internal/common/uuid"
)

type traceIdContextKey string

const traceIdKey = traceIdContextKey("traceId")

// WithTraceID returns a context carrying id, generating a UUIDv7 when id is empty.
func WithTraceID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.New().String()
	}
	return context.WithValue(ctx, traceIdKey, id)
}

// TraceIDFromContext extracts the trace id from the context.
// Returns an empty string if the context is nil or if no trace id is found.
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	r, ok := ctx.Value(traceIdKey).(string)
	if !ok {
		return ""
	}
	return r
}

// EnsureTraceID returns ctx unchanged if it already carries a trace id, otherwise a
// derived context with a fresh one.
func EnsureTraceID(ctx context.Context) (context.Context, string) {
	if id := TraceIDFromContext(ctx); id != "" {
		return ctx, id
	}
	ctx = WithTraceID(ctx, "")
	return ctx, TraceIDFromContext(ctx)
}
