// Package lock implements the per-sender lock of spec §4.2 (C2), used to
// serialize `eth_sendRawTransaction` calls from the same sender so nonce
// ordering survives concurrent client requests. RedisLock grants the lock
// in FIFO queue order; LocalLock does not keep arrival order.
package lock

import "context"

// Lock is the contract both backends satisfy.
type Lock interface {
	// AcquireLock returns ("", false, nil) on timeout (fail-open: the
	// caller proceeds without the lock rather than blocking forever).
	AcquireLock(ctx context.Context, id string) (sessionToken string, ok bool, err error)
	// ReleaseLock is a no-op if sessionToken does not match the current
	// holder (protects against late releases after TTL expiry).
	ReleaseLock(ctx context.Context, id, sessionToken string) error
}

const (
	queueKeyPrefix = "lock:queue:"
	holderKeyPrefix = "lock:"
)

func queueKey(id string) string  { return queueKeyPrefix + id }
func holderKey(id string) string { return holderKeyPrefix + id }
