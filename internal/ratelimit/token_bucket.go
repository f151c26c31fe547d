package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// The bucket refills continuously at limit/window tokens per millisecond and
// holds at most limit tokens. Redis TIME is the only clock so every replica
// agrees on refill.
const tokenBucketScript = `
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

local t = redis.call("TIME")
local now = t[1] * 1000 + math.floor(t[2] / 1000)
local per_ms = limit / window

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or limit
local ts = tonumber(state[2]) or now
if now > ts then
  tokens = math.min(limit, tokens + (now - ts) * per_ms)
end

local allowed = 0
local retry = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
else
  retry = math.ceil((1 - tokens) / per_ms)
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", now)
redis.call("PEXPIRE", KEYS[1], window * 2)

return {allowed, math.floor(tokens), retry}
`

var errBucketDisabled = errors.New("rate limiter not configured")

// Quota allows Limit requests per Window.
type Quota struct {
	Limit  int
	Window time.Duration
}

func (q Quota) validate() error {
	if q.Limit <= 0 || q.Window < time.Millisecond {
		return fmt.Errorf("invalid quota %d per %s", q.Limit, q.Window)
	}
	return nil
}

type TokenBucket struct {
	client *redis.Client
	script *redis.Script
}

type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{
		client: client,
		script: redis.NewScript(tokenBucketScript),
	}
}

// Allow takes one token from the bucket stored at key.
func (t *TokenBucket) Allow(ctx context.Context, key string, q Quota) (*RateLimitResult, error) {
	if t == nil || t.client == nil {
		return nil, errBucketDisabled
	}
	if key == "" {
		return nil, errors.New("rate limiter key is empty")
	}
	if err := q.validate(); err != nil {
		return nil, err
	}

	vals, err := t.script.Run(ctx, t.client, []string{key}, q.Limit, q.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return nil, err
	}
	return parseBucketReply(vals, q.Limit)
}

func parseBucketReply(vals []int64, limit int) (*RateLimitResult, error) {
	if len(vals) != 3 {
		return nil, fmt.Errorf("rate limit script returned %d values", len(vals))
	}
	return &RateLimitResult{
		Allowed:    vals[0] == 1,
		Limit:      limit,
		Remaining:  int(vals[1]),
		RetryAfter: time.Duration(vals[2]) * time.Millisecond,
	}, nil
}
