package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Store persists or forwards audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Publisher captures structured audit events. It is append-only and delegates
// to a Store so tests can swap sinks easily.
type Publisher struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewPublisher(store Store, opts ...Option) (*Publisher, error) {
	if store == nil {
		return nil, errors.New("audit store is required")
	}
	p := &Publisher{store: store, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Emit stamps the event if needed and appends it to the store.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	if err := p.store.Append(ctx, event); err != nil {
		p.logger.ErrorContext(ctx, "failed to append audit event",
			"action", event.Action,
			"customer_id", event.CustomerID,
			"correlation_id", event.CorrelationID,
			"error", err,
		)
		return err
	}
	return nil
}
