package bucket

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"rollcall/internal/ratelimit/models"
)

const keyPrefix = "ratelimit:"

// slidingWindowScript trims, counts and appends in one round trip so
// concurrent replicas cannot both take the last unit.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])
local member = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')

if count + cost > limit then
  local reset = now + window
  if oldest[2] then reset = tonumber(oldest[2]) + window end
  return {0, 0, reset}
end

for i = 1, cost do
  redis.call('ZADD', key, now, member .. ':' .. i)
end
redis.call('PEXPIRE', key, window)

local first = now
if oldest[2] then first = tonumber(oldest[2]) end
return {1, limit - count - cost, first + window}
`)

// RedisBucketStore keeps sliding windows in Redis sorted sets scored by
// millisecond timestamps, shared by every replica.
type RedisBucketStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedis creates a Redis-backed bucket store.
func NewRedis(client *redis.Client) *RedisBucketStore {
	return &RedisBucketStore{client: client, now: time.Now}
}

func (s *RedisBucketStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	return s.AllowN(ctx, key, 1, limit, window)
}

func (s *RedisBucketStore) AllowN(ctx context.Context, key string, cost, limit int, window time.Duration) (*models.RateLimitResult, error) {
	now := s.now()
	res, err := slidingWindowScript.Run(ctx, s.client, []string{keyPrefix + key},
		now.UnixMilli(), window.Milliseconds(), limit, cost, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("evaluate sliding window: %w", err)
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("evaluate sliding window: unexpected reply length %d", len(res))
	}

	resetAt := time.UnixMilli(res[2])
	result := &models.RateLimitResult{
		Allowed:   res[0] == 1,
		Limit:     limit,
		Remaining: int(res[1]),
		ResetAt:   resetAt,
	}
	if !result.Allowed {
		result.RetryAfter = models.RetryAfterSeconds(now, resetAt)
	}
	return result, nil
}

func (s *RedisBucketStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("reset bucket: %w", err)
	}
	return nil
}

// GetCurrentCount counts units still inside window without consuming any.
func (s *RedisBucketStore) GetCurrentCount(ctx context.Context, key string, window time.Duration) (int, error) {
	minScore := "(" + strconv.FormatInt(s.now().Add(-window).UnixMilli(), 10)
	n, err := s.client.ZCount(ctx, keyPrefix+key, minScore, "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("count bucket: %w", err)
	}
	return int(n), nil
}
