package agent

import (
	"context"

	"github.com/google/uuid"

	"github.com/kortex/kortex/internal/telemetry"
)

type traceIDKey struct{}

// WithTraceID attaches the request trace id used for timeline spans.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, id)
}

// TraceIDFrom returns the trace id set by WithTraceID, falling back to the
// active OpenTelemetry span.
func TraceIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey{}).(string); ok && id != "" {
		return id
	}
	return telemetry.TraceID(ctx)
}

// ensureTraceID returns ctx carrying a trace id, minting one when neither
// the caller nor OpenTelemetry provided it.
func ensureTraceID(ctx context.Context) (context.Context, string) {
	if id := TraceIDFrom(ctx); id != "" {
		return WithTraceID(ctx, id), id
	}
	id := uuid.NewString()
	return WithTraceID(ctx, id), id
}
