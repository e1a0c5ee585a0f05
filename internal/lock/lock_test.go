package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalLockAcquireReleaseRoundTrip(t *testing.T) {
	t.Parallel()

	l := NewLocalLock(time.Second, 200*time.Millisecond)
	ctx := context.Background()

	token, ok, err := l.AcquireLock(ctx, "0xabc")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, token)

	require.NoError(t, l.ReleaseLock(ctx, "0xabc", token))

	token2, ok, err := l.AcquireLock(ctx, "0xabc")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEqual(t, token, token2)
}

func TestLocalLockSecondAcquireWaitsForRelease(t *testing.T) {
	t.Parallel()

	l := NewLocalLock(time.Second, 500*time.Millisecond)
	ctx := context.Background()

	token, ok, err := l.AcquireLock(ctx, "sender")
	require.NoError(t, err)
	require.True(t, ok)

	var wg sync.WaitGroup
	wg.Add(1)
	var secondOK bool
	go func() {
		defer wg.Done()
		_, secondOK, _ = l.AcquireLock(ctx, "sender")
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, l.ReleaseLock(ctx, "sender", token))
	wg.Wait()

	require.True(t, secondOK, "waiter should acquire once the holder releases")
}

func TestLocalLockAcquireTimesOutWhenHeld(t *testing.T) {
	t.Parallel()

	l := NewLocalLock(time.Minute, 30*time.Millisecond)
	ctx := context.Background()

	_, ok, err := l.AcquireLock(ctx, "sender")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.AcquireLock(ctx, "sender")
	require.NoError(t, err)
	require.False(t, ok, "acquisition must time out rather than block forever")
}

func TestLocalLockExpiresAfterTTL(t *testing.T) {
	t.Parallel()

	l := NewLocalLock(20*time.Millisecond, 200*time.Millisecond)
	ctx := context.Background()

	_, ok, err := l.AcquireLock(ctx, "sender")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.AcquireLock(ctx, "sender")
	require.NoError(t, err)
	require.True(t, ok, "lock must become available again once the TTL expires")
}

func TestLocalLockReleaseIgnoresStaleToken(t *testing.T) {
	t.Parallel()

	l := NewLocalLock(time.Second, 200*time.Millisecond)
	ctx := context.Background()

	token, ok, err := l.AcquireLock(ctx, "sender")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.ReleaseLock(ctx, "sender", "not-the-real-token"))

	_, ok, err = l.AcquireLock(ctx, "sender")
	require.NoError(t, err)
	require.False(t, ok, "a stale release must not free a lock held by a different token")
	_ = token
}
