// Package ratelimit implements the per-(IP, method) fixed-window limiter
// of spec §4.3 (C3). It shares its storage tiers with internal/cache:
// a shared store for multi-instance consistency, falling back to the
// local LRU otherwise.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"cosmossdk.io/log"
)

// counter is the subset of the cache contract the limiter needs.
type counter interface {
	IncrBy(ctx context.Context, key string, amount int64, op string, ttl time.Duration) (int64, error)
}

// Limiter checks and records per-(IP, method) request counts within a
// fixed time window.
type Limiter struct {
	store   counter
	window  time.Duration
	limits  map[string]int64
	defLim  int64
	exempt  map[string]struct{}
	logger  log.Logger
}

const keyPrefix = "ratelimit:"

// New builds a Limiter. limits maps a JSON-RPC method name to its
// per-window request cap; methods absent from the map use defaultLimit.
// exemptMethods are never rate-limited (subscription lifecycle calls,
// spec §4.3).
func New(store counter, window time.Duration, limits map[string]int64, defaultLimit int64, exemptMethods []string, logger log.Logger) *Limiter {
	exempt := make(map[string]struct{}, len(exemptMethods))
	for _, m := range exemptMethods {
		exempt[m] = struct{}{}
	}
	return &Limiter{
		store:  store,
		window: window,
		limits: limits,
		defLim: defaultLimit,
		exempt: exempt,
		logger: logger,
	}
}

func (l *Limiter) limitFor(method string) int64 {
	if n, ok := l.limits[method]; ok {
		return n
	}
	return l.defLim
}

// ShouldLimit returns true iff the request must be rejected. It fails
// open: a backend error is logged and treated as "not limited" (spec
// §4.3).
func (l *Limiter) ShouldLimit(ctx context.Context, ipAddress, method string) bool {
	if _, ok := l.exempt[method]; ok {
		return false
	}

	key := keyPrefix + ipAddress + ":" + method
	n, err := l.store.IncrBy(ctx, key, 1, "rateLimit", l.window)
	if err != nil {
		l.logger.Error("rate limit backend unavailable, failing open", "ip", ipAddress, "method", method, "error", err)
		return false
	}

	return n > l.limitFor(method)
}

// RateLimitedError is returned by callers that want a typed signal
// before translating into a JSON-RPC error response.
type RateLimitedError struct {
	IPAddress string
	Method    string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s on %s", e.IPAddress, e.Method)
}
