package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"cosmossdk.io/log"
	"github.com/redis/go-redis/v9"
)

// releaseScript is the atomic compare-and-delete from spec §4.2 step 5:
// "if get(lock:<id>) == s then del(lock:<id>)".
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisLock implements the shared-store backed protocol of spec §4.2:
// push a session token onto a FIFO queue, poll until it reaches the head
// and the holder key can be claimed with SET NX PX, then pop the token off
// the queue.
type RedisLock struct {
	client             *redis.Client
	ttl                time.Duration
	acquisitionTimeout time.Duration
	pollInterval       time.Duration
	logger             log.Logger
}

func NewRedisLock(client *redis.Client, ttl, acquisitionTimeout, pollInterval time.Duration, logger log.Logger) *RedisLock {
	return &RedisLock{
		client:             client,
		ttl:                ttl,
		acquisitionTimeout: acquisitionTimeout,
		pollInterval:       pollInterval,
		logger:             logger,
	}
}

func newSessionToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func (l *RedisLock) AcquireLock(ctx context.Context, id string) (string, bool, error) {
	token := newSessionToken()
	qKey := queueKey(id)

	if err := l.client.RPush(ctx, qKey, token).Err(); err != nil {
		// fail open: the backend is unavailable, the system must still
		// serve requests and tolerate rare nonce races (spec §4.2).
		l.logger.Error("lock backend unavailable on acquire, failing open", "id", id, "error", err)
		return "", false, nil
	}

	deadline := time.Now().Add(l.acquisitionTimeout)
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		head, err := l.client.LIndex(ctx, qKey, 0).Result()
		if err != nil && err != redis.Nil {
			l.logger.Error("lock backend unavailable during poll, failing open", "id", id, "error", err)
			_ = l.removeFromQueue(context.Background(), qKey, token)
			return "", false, nil
		}

		if head == token {
			ok, err := l.client.SetNX(ctx, holderKey(id), token, l.ttl).Result()
			if err != nil {
				l.logger.Error("lock backend unavailable claiming holder key, failing open", "id", id, "error", err)
				_ = l.removeFromQueue(context.Background(), qKey, token)
				return "", false, nil
			}
			if ok {
				if err := l.removeFromQueue(ctx, qKey, token); err != nil {
					l.logger.Error("failed to pop acquired token off queue", "id", id, "error", err)
				}
				return token, true, nil
			}
		}

		if time.Now().After(deadline) {
			_ = l.removeFromQueue(context.Background(), qKey, token)
			return "", false, nil
		}

		select {
		case <-ctx.Done():
			_ = l.removeFromQueue(context.Background(), qKey, token)
			return "", false, nil
		case <-ticker.C:
		}
	}
}

func (l *RedisLock) removeFromQueue(ctx context.Context, qKey, token string) error {
	return l.client.LRem(ctx, qKey, 1, token).Err()
}

func (l *RedisLock) ReleaseLock(ctx context.Context, id, sessionToken string) error {
	if err := releaseScript.Run(ctx, l.client, []string{holderKey(id)}, sessionToken).Err(); err != nil {
		// release failures are logged and swallowed: the TTL is the
		// ultimate guarantee (spec §4.2, §5 "Cancellation").
		l.logger.Error("lock release failed, relying on TTL expiry", "id", id, "error", err)
	}
	return nil
}
