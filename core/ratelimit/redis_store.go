package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore hosts sliding-window state in Redis so multiple relay instances
// share one view of each provider's usage. Each window is a sorted set of
// "weight:seq" members scored by reservation time; prune, sum, and
// conditional insert run inside one Lua script, so the reservation is atomic
// across instances.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	seq       atomic.Uint64
}

// checkAndReserveScript prunes expired members, sums the remaining weights,
// and adds the new member only when the limit holds. Returns 1 on grant.
var checkAndReserveScript = redis.NewScript(`
local cutoff = tonumber(ARGV[3]) - tonumber(ARGV[4])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', cutoff)
local sum = 0
for _, m in ipairs(redis.call('ZRANGE', KEYS[1], 0, -1)) do
  sum = sum + tonumber(string.match(m, '^(%d+):'))
end
if sum + tonumber(ARGV[1]) > tonumber(ARGV[2]) then
  return 0
end
redis.call('ZADD', KEYS[1], tonumber(ARGV[3]), ARGV[5])
redis.call('PEXPIRE', KEYS[1], math.ceil(tonumber(ARGV[4]) / 1000000) + 1000)
return 1
`)

// releaseScript removes the newest member carrying the given weight.
var releaseScript = redis.NewScript(`
local members = redis.call('ZRANGE', KEYS[1], 0, -1, 'REV')
local prefix = ARGV[1] .. ':'
for _, m in ipairs(members) do
  if string.sub(m, 1, string.len(prefix)) == prefix then
    redis.call('ZREM', KEYS[1], m)
    return 1
  end
end
return 0
`)

// usageScript prunes expired members and returns the in-window weight sum.
var usageScript = redis.NewScript(`
local cutoff = tonumber(ARGV[1]) - tonumber(ARGV[2])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', cutoff)
local sum = 0
for _, m in ipairs(redis.call('ZRANGE', KEYS[1], 0, -1)) do
  sum = sum + tonumber(string.match(m, '^(%d+):'))
end
return sum
`)

// NewRedisStore creates a store backed by the given Redis client.
func NewRedisStore(client redis.UniversalClient, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "relay:window"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

// CheckAndReserve implements LimiterStore.
func (s *RedisStore) CheckAndReserve(ctx context.Context, key string, cost, limit int64, window time.Duration, now time.Time) (bool, error) {
	member := strconv.FormatInt(cost, 10) + ":" + strconv.FormatUint(s.seq.Add(1), 10) + ":" + strconv.FormatInt(now.UnixNano(), 10)

	granted, err := checkAndReserveScript.Run(ctx, s.client,
		[]string{s.windowKey(key)},
		cost, limit, now.UnixNano(), window.Nanoseconds(), member,
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis check-and-reserve: %w", err)
	}

	return granted == 1, nil
}

// Release implements LimiterStore.
func (s *RedisStore) Release(ctx context.Context, key string, cost int64, _ time.Time) error {
	err := releaseScript.Run(ctx, s.client,
		[]string{s.windowKey(key)},
		cost,
	).Err()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("redis release: %w", err)
	}
	return nil
}

// Usage implements LimiterStore.
func (s *RedisStore) Usage(ctx context.Context, key string, window time.Duration, now time.Time) (int64, error) {
	sum, err := usageScript.Run(ctx, s.client,
		[]string{s.windowKey(key)},
		now.UnixNano(), window.Nanoseconds(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis usage: %w", err)
	}
	return sum, nil
}

func (s *RedisStore) windowKey(key string) string {
	return s.keyPrefix + ":" + key
}
