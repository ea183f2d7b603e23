package audit

import (
	"context"
	"log/slog"
)

// LogStore writes events to a structured logger.
type LogStore struct {
	logger *slog.Logger
}

func NewLogStore(logger *slog.Logger) *LogStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogStore{logger: logger}
}

func (s *LogStore) Append(ctx context.Context, event Event) error {
	checks := make([]any, 0, len(event.Checks))
	for _, c := range event.Checks {
		checks = append(checks, slog.Group(c.Type, "status", c.Status))
	}
	s.logger.InfoContext(ctx, "audit",
		"action", event.Action,
		"timestamp", event.Timestamp,
		"customer_id", event.CustomerID,
		"request_id", event.RequestID,
		"correlation_id", event.CorrelationID,
		"decision", event.Decision,
		"reason", event.Reason,
		slog.Group("checks", checks...),
	)
	return nil
}
