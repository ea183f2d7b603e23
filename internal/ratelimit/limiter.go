// Package ratelimit gates outbound provider calls with a per-service sliding
// window quota.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ekyc/internal/ratelimit/metrics"
	"ekyc/internal/ratelimit/models"
	"ekyc/pkg/platform/sentinel"
	"ekyc/pkg/requestcontext"
)

const (
	DefaultQuota        = 10
	DefaultWindow       = time.Minute
	DefaultPollInterval = time.Second
)

// Store records admissions per bucket key.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error)
	Reset(ctx context.Context, key string) error
	ResetAll(ctx context.Context) error
}

// Limiter admits at most quota calls per service within any rolling window.
type Limiter struct {
	store        Store
	quota        int
	window       time.Duration
	pollInterval time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// Option configures a Limiter.
type Option func(*Limiter)

func WithQuota(n int) Option {
	return func(l *Limiter) {
		if n > 0 {
			l.quota = n
		}
	}
}

func WithWindow(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.window = d
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.pollInterval = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

// New creates a Limiter over store.
func New(store Store, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("rate limit store is required")
	}
	l := &Limiter{
		store:        store,
		quota:        DefaultQuota,
		window:       DefaultWindow,
		pollInterval: DefaultPollInterval,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l, nil
}

// TryAcquire admits one call for service without blocking.
func (l *Limiter) TryAcquire(ctx context.Context, service string) (bool, error) {
	result, err := l.store.Allow(ctx, models.Key(service), l.quota, l.window)
	if err != nil {
		return false, fmt.Errorf("rate limit check for %s: %w", service, err)
	}
	if !result.Allowed {
		l.metrics.RecordRefusal(service)
		return false, nil
	}
	l.metrics.RecordAdmission(service)
	return true, nil
}

// Acquire blocks until service admits a call. It polls TryAcquire every poll
// interval and returns sentinel.ErrInterrupted once ctx is done.
func (l *Limiter) Acquire(ctx context.Context, service string) error {
	start := time.Now()
	defer func() {
		l.metrics.ObserveAcquireWait(service, time.Since(start))
	}()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for waited := false; ; waited = true {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: waiting for %s admission: %w", sentinel.ErrInterrupted, service, err)
		}

		ok, err := l.TryAcquire(ctx, service)
		if err != nil {
			return err
		}
		if ok {
			if waited {
				l.logger.DebugContext(ctx, "rate limit admission granted after wait",
					"service", service,
					"correlation_id", requestcontext.CorrelationID(ctx),
					"waited", time.Since(start),
				)
			}
			return nil
		}

		if !waited {
			l.logger.InfoContext(ctx, "rate limit reached, waiting for admission",
				"service", service,
				"correlation_id", requestcontext.CorrelationID(ctx),
				"quota", l.quota,
				"window", l.window,
			)
		}

		if timer == nil {
			timer = time.NewTimer(l.pollInterval)
		} else {
			timer.Reset(l.pollInterval)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: waiting for %s admission: %w", sentinel.ErrInterrupted, service, ctx.Err())
		case <-timer.C:
		}
	}
}

// Reset clears the admission history of one service.
func (l *Limiter) Reset(ctx context.Context, service string) error {
	return l.store.Reset(ctx, models.Key(service))
}

// ResetAll clears every service bucket.
func (l *Limiter) ResetAll(ctx context.Context) error {
	return l.store.ResetAll(ctx)
}
