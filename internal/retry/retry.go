// Package retry runs an operation a bounded number of times with exponential
// backoff between failed attempts.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ekyc/pkg/platform/sentinel"
)

const (
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = 100 * time.Millisecond
	DefaultMultiplier     = 2.0
)

// Operation is one attempt of a retried call.
type Operation func(ctx context.Context) error

// Handler retries failed operations. It is safe for concurrent use.
type Handler struct {
	maxAttempts    int
	initialBackoff time.Duration
	multiplier     float64
	logger         *slog.Logger
	metrics        *Metrics
	sleep          func(ctx context.Context, d time.Duration) error
}

// Option configures a Handler.
type Option func(*Handler)

func WithMaxAttempts(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxAttempts = n
		}
	}
}

func WithInitialBackoff(d time.Duration) Option {
	return func(h *Handler) {
		if d >= 0 {
			h.initialBackoff = d
		}
	}
}

func WithMultiplier(m float64) Option {
	return func(h *Handler) {
		if m >= 1 {
			h.multiplier = m
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// New creates a Handler with the default budget of three attempts starting at
// a 100ms backoff that doubles per retry.
func New(opts ...Option) *Handler {
	h := &Handler{
		maxAttempts:    DefaultMaxAttempts,
		initialBackoff: DefaultInitialBackoff,
		multiplier:     DefaultMultiplier,
		logger:         slog.Default(),
		sleep:          sleepContext,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Execute runs op with the handler's default attempt budget.
func (h *Handler) Execute(ctx context.Context, op Operation, service, correlationID string) error {
	return h.ExecuteN(ctx, op, service, correlationID, h.maxAttempts)
}

// ExecuteN runs op up to maxAttempts times (at least once). The final failure
// is returned wrapped, so errors.Is and errors.As still reach it. If ctx ends
// during a backoff the wait is abandoned with sentinel.ErrInterrupted.
func (h *Handler) ExecuteN(ctx context.Context, op Operation, service, correlationID string, maxAttempts int) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	backoff := h.initialBackoff
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		h.metrics.RecordAttempt(service)

		lastErr = op(ctx)
		if lastErr == nil {
			if attempt > 1 {
				h.logger.InfoContext(ctx, "call succeeded after retry",
					"service", service,
					"correlation_id", correlationID,
					"attempt", attempt,
				)
			}
			return nil
		}

		if attempt == maxAttempts {
			break
		}

		h.logger.WarnContext(ctx, "call failed, retrying",
			"service", service,
			"correlation_id", correlationID,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"backoff", backoff,
			"error", lastErr,
		)
		if err := h.sleep(ctx, backoff); err != nil {
			return fmt.Errorf("%w: %s retry backoff after attempt %d: %w", sentinel.ErrInterrupted, service, attempt, err)
		}
		backoff = time.Duration(float64(backoff) * h.multiplier)
	}

	h.metrics.RecordExhausted(service)
	h.logger.ErrorContext(ctx, "call failed after all attempts",
		"service", service,
		"correlation_id", correlationID,
		"attempts", maxAttempts,
		"error", lastErr,
	)
	return fmt.Errorf("%s failed after %d attempts: %w", service, maxAttempts, lastErr)
}

// Executor runs an Operation under a retry budget. Handler implements it.
type Executor interface {
	Execute(ctx context.Context, op Operation, service, correlationID string) error
}

// Do is Execute for operations that produce a value. It returns the value of
// the first successful attempt.
func Do[T any](ctx context.Context, ex Executor, op func(ctx context.Context) (T, error), service, correlationID string) (T, error) {
	var out T
	err := ex.Execute(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	}, service, correlationID)
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
