package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// rateLimitScript prunes the sliding window, refills the token bucket, and
// records the hit in one atomic round trip. Returns
// {allowed, retry_ms, remaining, reset_ms}.
var rateLimitScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local cap = tonumber(ARGV[2])
local refill = tonumber(ARGV[3])
local limit = tonumber(ARGV[4])
local win = tonumber(ARGV[5])
if refill <= 0 then
  refill = 0.001
end

local tb = KEYS[1]
local hits = KEYS[2]
local seq = KEYS[3]

redis.call("ZREMRANGEBYSCORE", hits, "-inf", now - win)
local used = redis.call("ZCARD", hits)

local state = redis.call("HMGET", tb, "tokens", "seen")
local tokens = cap
local seen = now
if state[1] then
  tokens = tonumber(state[1])
end
if state[2] then
  seen = tonumber(state[2])
end
if seen > now then
  seen = now
end
tokens = math.min(cap, tokens + (now - seen) * refill)

local ok = 0
if tokens >= 1 and used < limit then
  ok = 1
  tokens = tokens - 1
  local n = redis.call("INCR", seq)
  redis.call("ZADD", hits, now, now .. "-" .. n)
  used = used + 1
end

local wait = 1
if tokens < 1 then
  wait = math.max(wait, math.ceil((1 - tokens) / refill))
end
if used >= limit then
  local head = redis.call("ZRANGE", hits, 0, 0, "WITHSCORES")
  if head and head[2] then
    wait = math.max(wait, math.ceil(tonumber(head[2]) + win - now))
  end
end

local left = math.min(math.floor(tokens), limit - used)
if left < 0 then
  left = 0
end

redis.call("HSET", tb, "tokens", tostring(tokens), "seen", tostring(now))
local ttl = math.max(win, math.ceil(cap / refill))
redis.call("PEXPIRE", tb, ttl)
redis.call("PEXPIRE", hits, win)
redis.call("PEXPIRE", seq, win)

local reset = now + win
if ok == 0 then
  reset = now + wait
end
return {ok, wait, left, reset}
`)

// RedisLimiter enforces a RateLimitPolicy against a shared Redis backend so
// every replica draws from one budget per caller. Each limiter carries a
// scope ("auth", "api") so the login surface and the admin surface never
// share counters for the same subject or address.
type RedisLimiter struct {
	client redis.UniversalClient
	scope  string
}

func NewRedisLimiter(client redis.UniversalClient, scope string) *RedisLimiter {
	if scope == "" {
		scope = "api"
	}
	return &RedisLimiter{client: client, scope: scope}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, policy RateLimitPolicy) (Decision, error) {
	if l.client == nil {
		return Decision{}, errors.New("redis client is not configured")
	}
	policy = normalizePolicy(policy)
	if key == "" {
		key = "anonymous"
	}
	nowMS := time.Now().UnixMilli()

	base := "rbac:rl:" + l.scope + ":" + key
	values, err := rateLimitScript.Run(ctx, l.client,
		[]string{base + ":tb", base + ":win", base + ":n"},
		nowMS,
		policy.BurstCapacity,
		policy.BurstRefillPerSec/1000.0,
		policy.SustainedLimit,
		policy.SustainedWindow.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(values) != 4 {
		return Decision{}, fmt.Errorf("rate limit script returned %d values, want 4", len(values))
	}

	retryMS := values[1]
	if retryMS <= 0 {
		retryMS = 1
	}
	resetMS := values[3]
	if resetMS <= nowMS {
		resetMS = nowMS + retryMS
	}
	remaining := values[2]
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:    values[0] == 1,
		RetryAfter: time.Duration(retryMS) * time.Millisecond,
		Remaining:  int(remaining),
		ResetAt:    time.UnixMilli(resetMS),
	}, nil
}
