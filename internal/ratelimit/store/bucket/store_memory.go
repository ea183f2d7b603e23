package bucket

import (
	"context"
	"sync"
	"time"

	"ekyc/internal/ratelimit/models"
)

// InMemoryBucketStore keeps one sliding window of admission timestamps per key.
// The map lock is only held to find or create a bucket; admission itself locks
// the bucket, so unrelated keys never contend.
type InMemoryBucketStore struct {
	mu      sync.RWMutex
	buckets map[string]*slidingWindow
	now     func() time.Time
}

type slidingWindow struct {
	mu         sync.Mutex
	timestamps []time.Time
}

// Option configures the store.
type Option func(*InMemoryBucketStore)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *InMemoryBucketStore) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an empty in-memory bucket store.
func New(opts ...Option) *InMemoryBucketStore {
	s := &InMemoryBucketStore{
		buckets: make(map[string]*slidingWindow),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allow purges timestamps older than window and records a new admission when
// fewer than limit remain.
func (s *InMemoryBucketStore) Allow(_ context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	sw := s.bucket(key)

	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := s.now()
	sw.purge(now, window)

	if len(sw.timestamps) >= limit {
		return &models.Result{
			Allowed:   false,
			Limit:     limit,
			Remaining: 0,
			ResetAt:   sw.resetAt(now, window),
		}, nil
	}

	sw.timestamps = append(sw.timestamps, now)
	return &models.Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(sw.timestamps),
		ResetAt:   sw.resetAt(now, window),
	}, nil
}

// Reset clears the admission history for a key.
func (s *InMemoryBucketStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, key)
	return nil
}

// ResetAll clears every bucket.
func (s *InMemoryBucketStore) ResetAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets = make(map[string]*slidingWindow)
	return nil
}

// GetCurrentCount returns the number of admissions still inside the window.
func (s *InMemoryBucketStore) GetCurrentCount(_ context.Context, key string, window time.Duration) (int, error) {
	s.mu.RLock()
	sw := s.buckets[key]
	s.mu.RUnlock()
	if sw == nil {
		return 0, nil
	}

	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.purge(s.now(), window)
	return len(sw.timestamps), nil
}

func (s *InMemoryBucketStore) bucket(key string) *slidingWindow {
	s.mu.RLock()
	sw := s.buckets[key]
	s.mu.RUnlock()
	if sw != nil {
		return sw
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sw = s.buckets[key]; sw == nil {
		sw = &slidingWindow{}
		s.buckets[key] = sw
	}
	return sw
}

// purge drops timestamps at or before now-window. Caller holds sw.mu.
func (sw *slidingWindow) purge(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}

func (sw *slidingWindow) resetAt(now time.Time, window time.Duration) time.Time {
	if len(sw.timestamps) == 0 {
		return now.Add(window)
	}
	return sw.timestamps[0].Add(window)
}
