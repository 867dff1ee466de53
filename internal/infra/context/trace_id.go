package context

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

const contextKeyTraceID = contextKey("traceID")

// TraceIDFromContext extracts the trace ID from the context.
// Returns the trace ID and true if present, or empty string and false if not present.
func TraceIDFromContext(ctx context.Context) (string, bool) {
	traceID, ok := ctx.Value(contextKeyTraceID).(string)

	return traceID, ok && traceID != ""
}

// WithTraceID creates a new context with the given trace ID value.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, contextKeyTraceID, traceID)
}

// NewTraceID returns a time-ordered trace ID (UUIDv7 without dashes).
// Returns an empty string if the random source fails.
func NewTraceID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return ""
	}

	return strings.ReplaceAll(id.String(), "-", "")
}
