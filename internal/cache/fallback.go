package cache

import (
	"context"
	"time"

	"cosmossdk.io/log"
)

// FallbackCache wraps a primary (shared store) and a secondary (local
// LRU). On any error from the primary it logs the failure and delegates
// the same call to the secondary — read-path survival only. Writes are
// never mirrored to the secondary, so a primary outage cannot make the
// secondary look more current than it is (spec §4.1 / §9 "Two-tier
// cache": "Implementers must not write-through to the secondary... to
// avoid hiding primary outages").
type FallbackCache struct {
	primary   Cache
	secondary Cache
	logger    log.Logger
}

func NewFallbackCache(primary, secondary Cache, logger log.Logger) *FallbackCache {
	return &FallbackCache{primary: primary, secondary: secondary, logger: logger}
}

func (f *FallbackCache) fallback(op string, err error) bool {
	if err == nil {
		return false
	}
	f.logger.Error("cache primary failed, falling back to secondary", "op", op, "error", err)
	return true
}

func (f *FallbackCache) Get(ctx context.Context, key, op string) (any, bool, error) {
	v, ok, err := f.primary.Get(ctx, key, op)
	if f.fallback(op, err) {
		return f.secondary.Get(ctx, key, op)
	}
	return v, ok, err
}

func (f *FallbackCache) Set(ctx context.Context, key string, value any, op string, ttl time.Duration) error {
	return f.primary.Set(ctx, key, value, op, ttl)
}

func (f *FallbackCache) MultiSet(ctx context.Context, entries map[string]any, op string) error {
	return f.primary.MultiSet(ctx, entries, op)
}

func (f *FallbackCache) PipelineSet(ctx context.Context, entries map[string]any, op string, ttl time.Duration) error {
	return f.primary.PipelineSet(ctx, entries, op, ttl)
}

func (f *FallbackCache) Delete(ctx context.Context, key, op string) error {
	return f.primary.Delete(ctx, key, op)
}

func (f *FallbackCache) Clear(ctx context.Context) error {
	return f.primary.Clear(ctx)
}

func (f *FallbackCache) Keys(ctx context.Context, pattern, op string) ([]string, error) {
	keys, err := f.primary.Keys(ctx, pattern, op)
	if f.fallback(op, err) {
		return f.secondary.Keys(ctx, pattern, op)
	}
	return keys, err
}

func (f *FallbackCache) IncrBy(ctx context.Context, key string, amount int64, op string, ttl time.Duration) (int64, error) {
	n, err := f.primary.IncrBy(ctx, key, amount, op, ttl)
	if f.fallback(op, err) {
		return f.secondary.IncrBy(ctx, key, amount, op, ttl)
	}
	return n, err
}

func (f *FallbackCache) RPush(ctx context.Context, key string, value any, op string) (int64, error) {
	n, err := f.primary.RPush(ctx, key, value, op)
	if f.fallback(op, err) {
		return f.secondary.RPush(ctx, key, value, op)
	}
	return n, err
}

func (f *FallbackCache) LRange(ctx context.Context, key string, start, stop int64, op string) ([]any, error) {
	vals, err := f.primary.LRange(ctx, key, start, stop, op)
	if f.fallback(op, err) {
		return f.secondary.LRange(ctx, key, start, stop, op)
	}
	return vals, err
}

// Ready reflects the primary's reconnection state (spec §4.1: "externally
// observable so health endpoints can report readiness").
func (f *FallbackCache) Ready() bool { return f.primary.Ready() }
