package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"ekyc/internal/ratelimit/models"
)

// slidingWindowScript purges, counts and conditionally records one admission
// atomically. Scores are unix milliseconds.
//
// KEYS[1] bucket key
// ARGV[1] now, ARGV[2] window, ARGV[3] limit, ARGV[4] unique member
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, window)

local reset = now + window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
  reset = tonumber(oldest[2]) + window
end
return {allowed, count, reset}
`)

// Store keeps one sorted set of admission timestamps per bucket key so every
// process sharing the Redis instance draws from the same quota.
type Store struct {
	client redis.UniversalClient
	now    func() time.Time
}

// New creates a Redis-backed bucket store.
func New(client redis.UniversalClient) *Store {
	return &Store{client: client, now: time.Now}
}

// Allow records an admission when fewer than limit remain inside window.
func (s *Store) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	now := s.now()
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + uuid.NewString()

	raw, err := slidingWindowScript.Run(ctx, s.client, []string{key},
		now.UnixMilli(), window.Milliseconds(), limit, member).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("redis sliding window for %s: %w", key, err)
	}
	if len(raw) != 3 {
		return nil, fmt.Errorf("redis sliding window for %s: unexpected reply length %d", key, len(raw))
	}

	allowed := raw[0] == 1
	remaining := limit - int(raw[1])
	if !allowed || remaining < 0 {
		remaining = 0
	}
	return &models.Result{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   time.UnixMilli(raw[2]),
	}, nil
}

// Reset deletes the bucket for key.
func (s *Store) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("reset %s: %w", key, err)
	}
	return nil
}

// ResetAll deletes every admission bucket under models.KeyPrefix.
func (s *Store) ResetAll(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, models.KeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan rate limit buckets: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("reset rate limit buckets: %w", err)
	}
	return nil
}

// GetCurrentCount returns the number of admissions still inside window.
func (s *Store) GetCurrentCount(ctx context.Context, key string, window time.Duration) (int, error) {
	cutoff := s.now().Add(-window).UnixMilli()
	n, err := s.client.ZCount(ctx, key, "("+strconv.FormatInt(cutoff, 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", key, err)
	}
	return int(n), nil
}
