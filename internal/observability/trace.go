package observability

import "context"

type traceIDKey struct{}

// WithTraceID returns a context carrying the given trace id, overwriting any
// trace id already present.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceIDFromContext returns the trace id carried by ctx, or "" if none was set.
func TraceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}
