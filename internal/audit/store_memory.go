package audit

import (
	"context"
	"sync"
)

// InMemoryStore keeps events per customer for tests and embedders that read
// the trail back in process.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[string][]Event
	order  []Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[string][]Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.CustomerID] = append(s.events[event.CustomerID], event)
	s.order = append(s.order, event)
	return nil
}

func (s *InMemoryStore) ListByCustomer(_ context.Context, customerID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.events[customerID]...), nil
}

// ListAll returns every event in append order.
func (s *InMemoryStore) ListAll(_ context.Context) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.order...), nil
}
