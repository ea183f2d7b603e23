// Package requestcontext provides context accessors for values scoped to one
// verification run.
//
// The orchestrator stores the correlation ID and customer ID on the context
// before calling providers, so transports and log lines deeper in the call
// stack can pick them up without threading extra parameters.
//
// Usage in the orchestrator (set values):
//
//	ctx = requestcontext.WithCorrelationID(ctx, correlationID)
//	ctx = requestcontext.WithCustomerID(ctx, customer.ID)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"
)

// Context key types (unexported for encapsulation).
type (
	correlationIDKey struct{}
	customerIDKey    struct{}
	requestTimeKey   struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyCorrelationID = correlationIDKey{}
	ContextKeyCustomerID    = customerIDKey{}
	ContextKeyRequestTime   = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Run identifiers
// -----------------------------------------------------------------------------

// CorrelationID retrieves the correlation ID of the current run.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyCorrelationID).(string); ok {
		return id
	}
	return ""
}

// WithCorrelationID injects a correlation ID into the context.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, ContextKeyCorrelationID, correlationID)
}

// CustomerID retrieves the customer being verified.
func CustomerID(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyCustomerID).(string); ok {
		return id
	}
	return ""
}

// WithCustomerID injects the customer ID into the context.
func WithCustomerID(ctx context.Context, customerID string) context.Context {
	return context.WithValue(ctx, ContextKeyCustomerID, customerID)
}

// -----------------------------------------------------------------------------
// Request time
// -----------------------------------------------------------------------------

// Now retrieves the run-scoped time from context.
// Falls back to time.Now() if not set.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. The orchestrator pins
// each run's time this way so every result of the run shares it; tests use
// it to assert on timestamps.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
