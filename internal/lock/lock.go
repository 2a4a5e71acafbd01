package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

var (
	ErrNotConfigured = errors.New("lock_not_configured")
	ErrLockHeld      = errors.New("lock_held")
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Locker is a best-effort distributed mutex on a single redis node.
// A nil *Locker is valid and means locking is disabled.
type Locker struct {
	client *redis.Client
	script *redis.Script
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

func (l *Locker) Enabled() bool {
	return l != nil && l.client != nil
}

func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if !l.Enabled() {
		return "", false, ErrNotConfigured
	}
	if key == "" {
		return "", false, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Acquire polls TryLock until the key is free, retries run out or ctx ends.
// The returned release func is never nil. When locking is disabled Acquire
// succeeds immediately.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration, retries int, delay time.Duration) (func(), error) {
	if !l.Enabled() {
		return func() {}, nil
	}

	for attempt := 0; ; attempt++ {
		token, ok, err := l.TryLock(ctx, key, ttl)
		if err != nil {
			return func() {}, err
		}
		if ok {
			return func() {
				_ = l.Release(context.WithoutCancel(ctx), key, token)
			}, nil
		}
		if attempt >= retries {
			return func() {}, ErrLockHeld
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return func() {}, ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *Locker) Release(ctx context.Context, key, token string) error {
	if !l.Enabled() {
		return nil
	}
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}
