// Package cache implements the two-tier cache fabric of spec §4.1 (C1):
// a local in-process LRU and a shared store, composed through a
// FallbackCache decorator that survives primary outages by reading
// through to the local tier.
package cache

import (
	"context"
	"time"
)

// Cache is the common contract both cache implementations satisfy (spec
// §4.1). `op` is the calling operation name, used purely for metrics/log
// labeling — it carries no behavioral weight here.
type Cache interface {
	// Get returns (nil, false, nil) for an absent key — never an empty
	// string sentinel (spec §4.1 invariant).
	Get(ctx context.Context, key, op string) (any, bool, error)
	Set(ctx context.Context, key string, value any, op string, ttl time.Duration) error
	MultiSet(ctx context.Context, entries map[string]any, op string) error
	PipelineSet(ctx context.Context, entries map[string]any, op string, ttl time.Duration) error
	Delete(ctx context.Context, key, op string) error
	// Clear deletes only keys under this relay's own prefix (spec §4.1
	// invariant; see KeyPrefix).
	Clear(ctx context.Context) error
	Keys(ctx context.Context, pattern, op string) ([]string, error)
	// IncrBy atomically increments key by amount, and — if this is the
	// key's first increment (new counter) and ttl > 0 — attaches ttl in
	// the same atomic step. This is the "INCR + EXPIRE" primitive spec
	// §4.1 asks for.
	IncrBy(ctx context.Context, key string, amount int64, op string, ttl time.Duration) (int64, error)
	RPush(ctx context.Context, key string, value any, op string) (int64, error)
	LRange(ctx context.Context, key string, start, stop int64, op string) ([]any, error)
	// Ready reports whether this cache's backing store is currently
	// reachable, so health endpoints can report readiness (spec §4.1).
	Ready() bool
}

// KeyPrefix namespaces every key this relay writes, so Clear() can scope
// its deletes safely (spec §3 "Cache Entry" key prefixes, §6 "Persisted
// state" key prefixes).
const KeyPrefix = "cache:"

func namespaced(key string) string {
	return KeyPrefix + key
}
