package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	counts map[string]int64
	err    error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: make(map[string]int64)}
}

func (f *fakeCounter) IncrBy(_ context.Context, key string, amount int64, _ string, _ time.Duration) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.counts[key] += amount
	return f.counts[key], nil
}

func TestLimiterAllowsUnderCap(t *testing.T) {
	t.Parallel()

	store := newFakeCounter()
	l := New(store, time.Minute, map[string]int64{"eth_call": 2}, 10, nil, log.NewNopLogger())

	require.False(t, l.ShouldLimit(context.Background(), "1.2.3.4", "eth_call"))
	require.False(t, l.ShouldLimit(context.Background(), "1.2.3.4", "eth_call"))
}

func TestLimiterBlocksOverCap(t *testing.T) {
	t.Parallel()

	store := newFakeCounter()
	l := New(store, time.Minute, map[string]int64{"eth_call": 2}, 10, nil, log.NewNopLogger())

	require.False(t, l.ShouldLimit(context.Background(), "1.2.3.4", "eth_call"))
	require.False(t, l.ShouldLimit(context.Background(), "1.2.3.4", "eth_call"))
	require.True(t, l.ShouldLimit(context.Background(), "1.2.3.4", "eth_call"))
}

func TestLimiterUsesDefaultLimitForUnlistedMethod(t *testing.T) {
	t.Parallel()

	store := newFakeCounter()
	l := New(store, time.Minute, nil, 1, nil, log.NewNopLogger())

	require.False(t, l.ShouldLimit(context.Background(), "1.2.3.4", "eth_chainId"))
	require.True(t, l.ShouldLimit(context.Background(), "1.2.3.4", "eth_chainId"))
}

func TestLimiterExemptsSubscriptionMethods(t *testing.T) {
	t.Parallel()

	store := newFakeCounter()
	l := New(store, time.Minute, nil, 0, []string{"eth_subscribe", "eth_unsubscribe"}, log.NewNopLogger())

	for i := 0; i < 5; i++ {
		require.False(t, l.ShouldLimit(context.Background(), "1.2.3.4", "eth_subscribe"))
	}
}

func TestLimiterFailsOpenOnBackendError(t *testing.T) {
	t.Parallel()

	store := newFakeCounter()
	store.err = errors.New("backend down")
	l := New(store, time.Minute, nil, 1, nil, log.NewNopLogger())

	require.False(t, l.ShouldLimit(context.Background(), "1.2.3.4", "eth_call"))
}

func TestLimiterSeparatesCountersPerIPAndMethod(t *testing.T) {
	t.Parallel()

	store := newFakeCounter()
	l := New(store, time.Minute, map[string]int64{"eth_call": 1}, 10, nil, log.NewNopLogger())

	require.False(t, l.ShouldLimit(context.Background(), "1.1.1.1", "eth_call"))
	require.False(t, l.ShouldLimit(context.Background(), "2.2.2.2", "eth_call"))
	require.False(t, l.ShouldLimit(context.Background(), "1.1.1.1", "eth_chainId"))
}
