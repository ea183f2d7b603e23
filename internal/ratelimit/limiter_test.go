package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"ekyc/internal/ratelimit/metrics"
	"ekyc/internal/ratelimit/models"
	"ekyc/internal/ratelimit/store/bucket"
	"ekyc/pkg/platform/sentinel"
)

const testService = "DocumentVerificationService"

type LimiterSuite struct {
	suite.Suite
	ctx     context.Context
	now     time.Time
	store   *bucket.InMemoryBucketStore
	metrics *metrics.Metrics
	limiter *Limiter
}

func TestLimiterSuite(t *testing.T) {
	suite.Run(t, new(LimiterSuite))
}

func (s *LimiterSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	s.store = bucket.New(bucket.WithClock(func() time.Time { return s.now }))
	s.metrics = metrics.New(prometheus.NewRegistry())

	var err error
	s.limiter, err = New(s.store, WithMetrics(s.metrics), WithPollInterval(5*time.Millisecond))
	s.Require().NoError(err)
}

// =============================================================================
// Constructor Tests
// =============================================================================

func (s *LimiterSuite) TestNew() {
	s.Run("nil store rejected", func() {
		_, err := New(nil)
		s.Error(err)
	})

	s.Run("defaults applied and non-positive options ignored", func() {
		l, err := New(s.store, WithQuota(0), WithWindow(-time.Second), WithPollInterval(0))
		s.Require().NoError(err)
		s.Equal(DefaultQuota, l.quota)
		s.Equal(DefaultWindow, l.window)
		s.Equal(DefaultPollInterval, l.pollInterval)
	})
}

// =============================================================================
// TryAcquire Tests
// =============================================================================

func (s *LimiterSuite) TestTryAcquire() {
	s.Run("ten admitted then the eleventh refused", func() {
		for i := range DefaultQuota {
			ok, err := s.limiter.TryAcquire(s.ctx, testService)
			s.Require().NoError(err)
			s.Require().True(ok, "call %d should be admitted", i+1)
		}

		ok, err := s.limiter.TryAcquire(s.ctx, testService)
		s.Require().NoError(err)
		s.False(ok)

		s.InDelta(10, testutil.ToFloat64(s.metrics.Admissions.WithLabelValues(testService)), 0)
		s.InDelta(1, testutil.ToFloat64(s.metrics.Refusals.WithLabelValues(testService)), 0)
	})

	s.Run("admission resumes after the window elapses", func() {
		s.now = s.now.Add(DefaultWindow)

		ok, err := s.limiter.TryAcquire(s.ctx, testService)
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("other services are unaffected", func() {
		ok, err := s.limiter.TryAcquire(s.ctx, "SanctionsScreeningService")
		s.Require().NoError(err)
		s.True(ok)
	})
}

func (s *LimiterSuite) TestTryAcquireStoreError() {
	l, err := New(failingStore{err: errors.New("connection refused")})
	s.Require().NoError(err)

	ok, err := l.TryAcquire(s.ctx, testService)
	s.False(ok)
	s.ErrorContains(err, "connection refused")
}

// =============================================================================
// Acquire Tests
// =============================================================================

func (s *LimiterSuite) TestAcquire() {
	s.Run("returns immediately while under quota", func() {
		s.Require().NoError(s.limiter.Acquire(s.ctx, testService))
	})

	s.Run("cancelled context is interrupted before consuming quota", func() {
		ctx, cancel := context.WithCancel(s.ctx)
		cancel()

		err := s.limiter.Acquire(ctx, "AddressVerificationService")
		s.ErrorIs(err, sentinel.ErrInterrupted)
		s.ErrorIs(err, context.Canceled)

		count, err := s.store.GetCurrentCount(s.ctx, models.Key("AddressVerificationService"), DefaultWindow)
		s.Require().NoError(err)
		s.Zero(count)
	})

	s.Run("wait aborts when the context ends", func() {
		for range DefaultQuota - 1 {
			ok, err := s.limiter.TryAcquire(s.ctx, testService)
			s.Require().NoError(err)
			s.Require().True(ok)
		}

		ctx, cancel := context.WithTimeout(s.ctx, 30*time.Millisecond)
		defer cancel()

		err := s.limiter.Acquire(ctx, testService)
		s.ErrorIs(err, sentinel.ErrInterrupted)
		s.ErrorIs(err, context.DeadlineExceeded)
	})
}

func (s *LimiterSuite) TestReset() {
	for range DefaultQuota {
		_, err := s.limiter.TryAcquire(s.ctx, testService)
		s.Require().NoError(err)
	}

	s.Require().NoError(s.limiter.Reset(s.ctx, testService))
	ok, err := s.limiter.TryAcquire(s.ctx, testService)
	s.Require().NoError(err)
	s.True(ok)

	s.Require().NoError(s.limiter.ResetAll(s.ctx))
	count, err := s.store.GetCurrentCount(s.ctx, models.Key(testService), DefaultWindow)
	s.Require().NoError(err)
	s.Zero(count)
}

// Real clock: a blocked Acquire is admitted once the window slides past the
// earlier admission.
func TestAcquire_BlocksUntilWindowSlides(t *testing.T) {
	window := 60 * time.Millisecond
	l, err := New(bucket.New(), WithQuota(1), WithWindow(window), WithPollInterval(5*time.Millisecond))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx, testService))

	start := time.Now()
	require.NoError(t, l.Acquire(ctx, testService))
	assert.GreaterOrEqual(t, time.Since(start), window/2)
}

func TestAcquire_ConcurrentRunsShareQuota(t *testing.T) {
	l, err := New(bucket.New(), WithQuota(5), WithWindow(time.Hour), WithPollInterval(time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var admitted, interrupted atomic.Int32
	var wg sync.WaitGroup
	for range 12 {
		wg.Go(func() {
			if err := l.Acquire(ctx, testService); err != nil {
				if errors.Is(err, sentinel.ErrInterrupted) {
					interrupted.Add(1)
				}
				return
			}
			admitted.Add(1)
		})
	}
	wg.Wait()

	assert.Equal(t, int32(5), admitted.Load())
	assert.Equal(t, int32(7), interrupted.Load())
}

type failingStore struct {
	err error
}

func (f failingStore) Allow(context.Context, string, int, time.Duration) (*models.Result, error) {
	return nil, f.err
}

func (f failingStore) Reset(context.Context, string) error { return f.err }

func (f failingStore) ResetAll(context.Context) error { return f.err }
