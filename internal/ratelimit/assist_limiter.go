package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/quorum/internal/config"
)

const keyAssistUser = "assist:user:%d"

// AssistLimiter caps AI requests per user. A nil or disabled limiter allows everything.
type AssistLimiter struct {
	bucket *TokenBucket
	quota  Quota
}

func NewAssistLimiter(bucket *TokenBucket, cfg config.Config) *AssistLimiter {
	perHour := cfg.Assist.RequestsPerHour
	if bucket == nil || perHour <= 0 {
		return nil
	}
	return &AssistLimiter{
		bucket: bucket,
		quota:  Quota{Limit: perHour, Window: time.Hour},
	}
}

func (l *AssistLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *AssistLimiter) Allow(ctx context.Context, userID int64) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyAssistUser, userID), l.quota)
}
