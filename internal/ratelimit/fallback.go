package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"ekyc/internal/ratelimit/metrics"
	"ekyc/internal/ratelimit/models"
	"ekyc/pkg/platform/circuit"
)

// FallbackStore answers from a shared primary store (Redis) and switches to a
// local store while the primary keeps failing. The circuit closes again after
// enough consecutive good primary answers.
type FallbackStore struct {
	primary  Store
	fallback Store
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// FallbackOption configures a FallbackStore.
type FallbackOption func(*FallbackStore)

func WithBreaker(b *circuit.Breaker) FallbackOption {
	return func(f *FallbackStore) {
		if b != nil {
			f.breaker = b
		}
	}
}

func WithFallbackLogger(logger *slog.Logger) FallbackOption {
	return func(f *FallbackStore) {
		if logger != nil {
			f.logger = logger
		}
	}
}

func WithFallbackMetrics(m *metrics.Metrics) FallbackOption {
	return func(f *FallbackStore) {
		f.metrics = m
	}
}

// NewFallbackStore wraps primary with fallback.
func NewFallbackStore(primary, fallback Store, opts ...FallbackOption) *FallbackStore {
	f := &FallbackStore{
		primary:  primary,
		fallback: fallback,
		breaker:  circuit.New("ratelimit-store"),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Counter reports admissions inside a window without recording one. Stores
// that implement it are probed read-only while the circuit is open.
type Counter interface {
	GetCurrentCount(ctx context.Context, key string, window time.Duration) (int, error)
}

// Allow asks the primary while the circuit is closed. While it is open the
// fallback decides and the primary is only probed: with a read-only count
// when it implements Counter, so a recovering Redis holds no admissions it
// never granted, and with Allow otherwise. Admissions granted locally are
// not copied back, so right after the circuit closes a process may exceed
// the shared quota for at most one window.
func (f *FallbackStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	if counter, ok := f.primary.(Counter); ok && f.breaker.IsOpen() {
		return f.allowDegraded(ctx, counter, key, limit, window)
	}

	result, err := f.primary.Allow(ctx, key, limit, window)
	if err != nil {
		useFallback, change := f.breaker.RecordFailure()
		f.observe(ctx, change, err)
		if !useFallback {
			f.logger.WarnContext(ctx, "rate limit store error, using fallback for this call",
				"key", key,
				"error", err,
			)
		}
		f.metrics.RecordFallback()
		return f.fallback.Allow(ctx, key, limit, window)
	}

	usePrimary, change := f.breaker.RecordSuccess()
	f.observe(ctx, change, nil)
	if usePrimary {
		return result, nil
	}
	f.metrics.RecordFallback()
	return f.fallback.Allow(ctx, key, limit, window)
}

// allowDegraded probes the primary with a count. The probe that closes the
// circuit hands the call back to the primary.
func (f *FallbackStore) allowDegraded(ctx context.Context, counter Counter, key string, limit int, window time.Duration) (*models.Result, error) {
	if _, err := counter.GetCurrentCount(ctx, key, window); err != nil {
		_, change := f.breaker.RecordFailure()
		f.observe(ctx, change, err)
		f.metrics.RecordFallback()
		return f.fallback.Allow(ctx, key, limit, window)
	}

	usePrimary, change := f.breaker.RecordSuccess()
	f.observe(ctx, change, nil)
	if usePrimary {
		result, err := f.primary.Allow(ctx, key, limit, window)
		if err == nil {
			return result, nil
		}
		_, change = f.breaker.RecordFailure()
		f.observe(ctx, change, err)
	}
	f.metrics.RecordFallback()
	return f.fallback.Allow(ctx, key, limit, window)
}

// Reset clears key in both stores.
func (f *FallbackStore) Reset(ctx context.Context, key string) error {
	if err := f.fallback.Reset(ctx, key); err != nil {
		return err
	}
	return f.primary.Reset(ctx, key)
}

// ResetAll clears both stores and closes the circuit.
func (f *FallbackStore) ResetAll(ctx context.Context) error {
	if err := f.fallback.ResetAll(ctx); err != nil {
		return err
	}
	if err := f.primary.ResetAll(ctx); err != nil {
		return err
	}
	f.breaker.Reset()
	f.metrics.SetCircuitOpen(false)
	return nil
}

// Degraded reports whether admissions are currently answered locally.
func (f *FallbackStore) Degraded() bool {
	return f.breaker.IsOpen()
}

func (f *FallbackStore) observe(ctx context.Context, change circuit.StateChange, cause error) {
	switch {
	case change.Opened:
		f.metrics.SetCircuitOpen(true)
		f.logger.ErrorContext(ctx, "rate limit store circuit opened, admissions are now process-local",
			"breaker", f.breaker.Name(),
			"error", cause,
		)
	case change.Closed:
		f.metrics.SetCircuitOpen(false)
		f.logger.InfoContext(ctx, "rate limit store circuit closed, shared admissions restored",
			"breaker", f.breaker.Name(),
		)
	}
}
