package ratelimit

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/rewardzway/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilTokenBucket(t *testing.T) {
	require.Nil(t, NewTokenBucket(nil))

	var bucket *TokenBucket
	_, err := bucket.Allow(context.Background(), "k", 1, 1)
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestDisabledLimiterAllows(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	cases := []struct {
		name   string
		cfg    config.Config
		client *redis.Client
	}{
		{"disabled", config.Config{RateLimitEnabled: false, RateLimitRate: 1, RateLimitBurst: 1}, client},
		{"no redis", config.Config{RateLimitEnabled: true, RateLimitRate: 1, RateLimitBurst: 1}, nil},
		{"zero rate", config.Config{RateLimitEnabled: true, RateLimitBurst: 1}, client},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			limiter := NewRewardWriteLimiter(tc.cfg, tc.client)
			require.Nil(t, limiter)
			require.False(t, limiter.Enabled())

			res, err := limiter.Allow(context.Background(), "allocations", "10.0.0.1")
			require.NoError(t, err)
			require.True(t, res.Allowed)
		})
	}
}

func TestEnabledLimiter(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	limiter := NewRewardWriteLimiter(config.Config{RateLimitEnabled: true, RateLimitRate: 2, RateLimitBurst: 4}, client)
	require.True(t, limiter.Enabled())
	assert.Equal(t, 4, limiter.burst)
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, time.Second, bucketTTL(0, 5))
	assert.Equal(t, 10*time.Second, bucketTTL(1, 5))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
}

func TestRetryAfter(t *testing.T) {
	assert.Zero(t, retryAfter(true, 0, 1))
	assert.Equal(t, 500*time.Millisecond, retryAfter(false, 0.5, 1))
	assert.Equal(t, 250*time.Millisecond, retryAfter(false, 0, 4))
}

func TestScriptValueConversion(t *testing.T) {
	assert.EqualValues(t, 1, toInt(int64(1)))
	assert.EqualValues(t, 3, toInt("3"))
	assert.Zero(t, toInt(nil))
	assert.InDelta(t, 2.5, toFloat("2.5"), 1e-9)
	assert.InDelta(t, 2, toFloat(int64(2)), 1e-9)
}
