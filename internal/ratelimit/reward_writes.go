package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/rewardzway/internal/config"
)

const keyRewardWrite = "rewardzway:ratelimit:%s:%s"

// RewardWriteLimiter throttles reward-writing calls per caller. A nil
// limiter allows everything.
type RewardWriteLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

// NewRewardWriteLimiter returns nil when rate limiting is disabled or no
// redis client is configured.
func NewRewardWriteLimiter(cfg config.Config, client *redis.Client) *RewardWriteLimiter {
	if !cfg.RateLimitEnabled || client == nil {
		return nil
	}
	if cfg.RateLimitRate <= 0 || cfg.RateLimitBurst <= 0 {
		return nil
	}
	return &RewardWriteLimiter{
		bucket: NewTokenBucket(client),
		rate:   cfg.RateLimitRate,
		burst:  cfg.RateLimitBurst,
	}
}

func (l *RewardWriteLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *RewardWriteLimiter) Allow(ctx context.Context, scope, caller string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyRewardWrite, strings.TrimSpace(scope), strings.TrimSpace(caller))
	return l.bucket.Allow(ctx, key, l.rate, l.burst)
}
