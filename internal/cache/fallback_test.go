package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/stretchr/testify/require"
)

// erroringCache always fails, to exercise the fallback path without a
// live Redis instance.
type erroringCache struct{ Cache }

func (erroringCache) Get(context.Context, string, string) (any, bool, error) {
	return nil, false, errors.New("primary unreachable")
}
func (erroringCache) Keys(context.Context, string, string) ([]string, error) {
	return nil, errors.New("primary unreachable")
}
func (erroringCache) Ready() bool { return false }

func TestFallbackCacheReadsSecondaryOnPrimaryError(t *testing.T) {
	t.Parallel()

	secondary := NewLocalCache(100, time.Minute)
	require.NoError(t, secondary.Set(context.Background(), "k", "v", "test", 0))

	fc := NewFallbackCache(erroringCache{}, secondary, log.NewNopLogger())

	v, ok, err := fc.Get(context.Background(), "k", "test")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", v)
	require.False(t, fc.Ready())
}

func TestFallbackCacheWritesAreNotMirrored(t *testing.T) {
	t.Parallel()

	primary := NewLocalCache(100, time.Minute)
	secondary := NewLocalCache(100, time.Minute)
	fc := NewFallbackCache(primary, secondary, log.NewNopLogger())

	require.NoError(t, fc.Set(context.Background(), "k", "v", "test", 0))

	_, ok, err := secondary.Get(context.Background(), "k", "test")
	require.NoError(t, err)
	require.False(t, ok, "writes must not be mirrored to the secondary")
}

func TestLocalCacheGetMissReturnsFalseNotEmptyString(t *testing.T) {
	t.Parallel()

	c := NewLocalCache(10, time.Minute)
	v, ok, err := c.Get(context.Background(), "absent", "test")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, v)
}

func TestLocalCacheIncrByAndRPushLRange(t *testing.T) {
	t.Parallel()

	c := NewLocalCache(10, time.Minute)
	ctx := context.Background()

	n, err := c.IncrBy(ctx, "counter", 1, "test", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = c.IncrBy(ctx, "counter", 5, "test", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(6), n)

	length, err := c.RPush(ctx, "queue", "a", "test")
	require.NoError(t, err)
	require.Equal(t, int64(1), length)

	length, err = c.RPush(ctx, "queue", "b", "test")
	require.NoError(t, err)
	require.Equal(t, int64(2), length)

	vals, err := c.LRange(ctx, "queue", 0, -1, "test")
	require.NoError(t, err)
	require.Equal(t, []any{"a", "b"}, vals)
}

func TestLocalCacheClearOnlyAffectsItsOwnKeys(t *testing.T) {
	t.Parallel()

	c := NewLocalCache(10, time.Minute)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "a", 1, "test", 0))
	require.NoError(t, c.Clear(ctx))

	_, ok, err := c.Get(ctx, "a", "test")
	require.NoError(t, err)
	require.False(t, ok)
}
