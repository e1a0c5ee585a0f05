package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"cosmossdk.io/log"
	"github.com/redis/go-redis/v9"
)

// incrExpireScript implements the atomic "INCR + EXPIRE-if-new" primitive
// spec §4.1/§4.3 call for: increment unconditionally, and only attach a
// TTL the first time the counter is created.
var incrExpireScript = redis.NewScript(`
local v = redis.call('INCRBY', KEYS[1], ARGV[1])
if tonumber(ARGV[2]) > 0 and v == tonumber(ARGV[1]) then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return v
`)

// RedisCache is the shared-store tier (spec §4.1 "primary"). Any service
// offering TTL-in-milliseconds keys plus a small Lua scripting surface can
// back this contract; this module uses `redis/go-redis/v9`, a dependency
// already present (as `go-redis/redis`/`go-redis/redis/v8`) in the pack's
// `ethereum-go-ethereum` and `shibaone-bor` repos.
type RedisCache struct {
	client *redis.Client
	logger log.Logger
}

// NewRedisCache dials the shared store. Connection is lazy (go-redis
// dials on first command); Ready() sends a fresh PING on each call.
func NewRedisCache(url string, logger log.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisCache{client: redis.NewClient(opts), logger: logger}, nil
}

func (c *RedisCache) Get(ctx context.Context, key, _ string) (any, bool, error) {
	raw, err := c.client.Get(ctx, namespaced(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value any, _ string, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, namespaced(key), raw, ttl).Err()
}

func (c *RedisCache) MultiSet(ctx context.Context, entries map[string]any, op string) error {
	pipe := c.client.TxPipeline()
	for k, v := range entries {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		pipe.Set(ctx, namespaced(k), raw, 0)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (c *RedisCache) PipelineSet(ctx context.Context, entries map[string]any, op string, ttl time.Duration) error {
	pipe := c.client.Pipeline()
	for k, v := range entries {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		pipe.Set(ctx, namespaced(k), raw, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (c *RedisCache) Delete(ctx context.Context, key, _ string) error {
	return c.client.Del(ctx, namespaced(key)).Err()
}

// Clear deletes only keys under this relay's own prefix (spec §4.1
// invariant), scanning rather than FLUSHDB since the store may be shared
// with other tenants.
func (c *RedisCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, KeyPrefix+"*", 1000).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *RedisCache) Keys(ctx context.Context, pattern, _ string) ([]string, error) {
	full := namespaced(pattern)
	var out []string
	iter := c.client.Scan(ctx, 0, full, 1000).Iterator()
	for iter.Next(ctx) {
		out = append(out, strings.TrimPrefix(iter.Val(), KeyPrefix))
	}
	return out, iter.Err()
}

func (c *RedisCache) IncrBy(ctx context.Context, key string, amount int64, _ string, ttl time.Duration) (int64, error) {
	res, err := incrExpireScript.Run(ctx, c.client, []string{namespaced(key)}, amount, ttl.Milliseconds()).Result()
	if err != nil {
		return 0, err
	}
	n, _ := res.(int64)
	return n, nil
}

func (c *RedisCache) RPush(ctx context.Context, key string, value any, _ string) (int64, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return 0, err
	}
	return c.client.RPush(ctx, namespaced(key), raw).Result()
}

func (c *RedisCache) LRange(ctx context.Context, key string, start, stop int64, _ string) ([]any, error) {
	raws, err := c.client.LRange(ctx, namespaced(key), start, stop).Result()
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(raws))
	for _, raw := range raws {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Ready pings the shared store. This is the "externally observable
// reconnection state" spec §4.1 asks health endpoints to expose.
func (c *RedisCache) Ready() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	return c.client.Ping(ctx).Err() == nil
}
