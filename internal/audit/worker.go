package audit

import (
	"context"
	"errors"
	"log/slog"
)

// ChannelStore hands events to a Worker so the verification path never waits
// on a slow sink.
type ChannelStore struct {
	inbox chan<- Event
}

func NewChannelStore(inbox chan<- Event) *ChannelStore {
	return &ChannelStore{inbox: inbox}
}

func (s *ChannelStore) Append(ctx context.Context, event Event) error {
	select {
	case s.inbox <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Worker consumes audit events from a channel and appends them to a store.
type Worker struct {
	store  Store
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(store Store, inbox <-chan Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// Run drains the inbox until it is closed or ctx ends. A failed append is
// logged and the worker moves on; one bad event must not stall the trail.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			if err := w.store.Append(ctx, event); err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				w.logger.ErrorContext(ctx, "audit sink append failed",
					"action", event.Action,
					"correlation_id", event.CorrelationID,
					"error", err,
				)
			}
		}
	}
}
