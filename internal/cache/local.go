package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// listEntry is the auxiliary shape the local LRU needs beyond plain
// key/value, to satisfy RPush/LRange; IncrBy counters are kept as plain
// int64 values in the values LRU.
type listEntry struct{ values []any }

// LocalCache is the in-process LRU tier (spec §4.1 "secondary"), backed by
// `hashicorp/golang-lru/v2`'s expirable variant — a pack dependency
// (indirect in the teacher, in `ethereum-go-ethereum`, and in
// `tos-network-gtos`), promoted to direct here since it is exactly the
// "local LRU" the spec's fallback decorator needs.
type LocalCache struct {
	values *lru.LRU[string, any]
	lists  *lru.LRU[string, *listEntry]
	mu     sync.Mutex
	defaultTTL time.Duration
}

// NewLocalCache builds a local cache with a fixed capacity and a single
// TTL for the whole instance (the LRU library has no per-entry TTL). The
// ttl arguments callers pass are not applied: every entry expires
// defaultTTL after its last write.
func NewLocalCache(size int, defaultTTL time.Duration) *LocalCache {
	if size <= 0 {
		size = 2000
	}
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	return &LocalCache{
		values:     lru.NewLRU[string, any](size, nil, defaultTTL),
		lists:      lru.NewLRU[string, *listEntry](size, nil, defaultTTL),
		defaultTTL: defaultTTL,
	}
}

func (c *LocalCache) Get(_ context.Context, key, _ string) (any, bool, error) {
	v, ok := c.values.Get(namespaced(key))
	return v, ok, nil
}

func (c *LocalCache) Set(_ context.Context, key string, value any, _ string, ttl time.Duration) error {
	if ttl <= 0 {
		c.values.Add(namespaced(key), value)
		return nil
	}
	c.values.Add(namespaced(key), value)
	return nil
}

func (c *LocalCache) MultiSet(ctx context.Context, entries map[string]any, op string) error {
	for k, v := range entries {
		if err := c.Set(ctx, k, v, op, 0); err != nil {
			return err
		}
	}
	return nil
}

func (c *LocalCache) PipelineSet(ctx context.Context, entries map[string]any, op string, ttl time.Duration) error {
	for k, v := range entries {
		if err := c.Set(ctx, k, v, op, ttl); err != nil {
			return err
		}
	}
	return nil
}

func (c *LocalCache) Delete(_ context.Context, key, _ string) error {
	c.values.Remove(namespaced(key))
	c.lists.Remove(namespaced(key))
	return nil
}

func (c *LocalCache) Clear(_ context.Context) error {
	c.values.Purge()
	c.lists.Purge()
	return nil
}

func (c *LocalCache) Keys(_ context.Context, pattern, _ string) ([]string, error) {
	var out []string
	for _, k := range c.values.Keys() {
		if matchesGlob(pattern, k) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (c *LocalCache) IncrBy(_ context.Context, key string, amount int64, _ string, _ time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	nk := namespaced(key)
	var cur int64
	if v, ok := c.values.Get(nk); ok {
		if n, ok := v.(int64); ok {
			cur = n
		}
	}
	cur += amount
	c.values.Add(nk, cur)
	return cur, nil
}

func (c *LocalCache) RPush(_ context.Context, key string, value any, _ string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	nk := namespaced(key)
	e, ok := c.lists.Get(nk)
	if !ok {
		e = &listEntry{}
	}
	e.values = append(e.values, value)
	c.lists.Add(nk, e)
	return int64(len(e.values)), nil
}

func (c *LocalCache) LRange(_ context.Context, key string, start, stop int64, _ string) ([]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lists.Get(namespaced(key))
	if !ok {
		return nil, nil
	}
	n := int64(len(e.values))
	if stop < 0 || stop >= n {
		stop = n - 1
	}
	if start < 0 {
		start = 0
	}
	if start > stop {
		return nil, nil
	}
	out := make([]any, stop-start+1)
	copy(out, e.values[start:stop+1])
	return out, nil
}

// Ready is always true: the local tier is in-process memory, it cannot be
// "disconnected".
func (c *LocalCache) Ready() bool { return true }

func matchesGlob(pattern, s string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	// Minimal glob: a single trailing '*' is the only wildcard shape the
	// relay's own key patterns use (e.g. "cache:eth_call:*").
	if len(pattern) > 0 && pattern[len(pattern)-1] == '*' {
		prefix := pattern[:len(pattern)-1]
		return len(s) >= len(prefix) && s[:len(prefix)] == prefix
	}
	return pattern == s
}
