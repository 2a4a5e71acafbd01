package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNilLockerIsDisabled(t *testing.T) {
	locker := NewLocker(nil)
	require.Nil(t, locker)
	require.False(t, locker.Enabled())

	_, _, err := locker.TryLock(context.Background(), "k", time.Second)
	require.ErrorIs(t, err, ErrNotConfigured)
	require.NoError(t, locker.Release(context.Background(), "k", "t"))
}

func TestAcquireWithoutRedisSucceeds(t *testing.T) {
	var locker *Locker
	release, err := locker.Acquire(context.Background(), "rewardzway:allocation:1", time.Second, 3, time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, release)
	release()
}
