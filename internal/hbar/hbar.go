// Package hbar implements the spending governor of spec §4.4 (C4):
// before each chargeable consensus-node operation a caller is resolved
// to a spending plan, its daily spend checked against a tier cap, and
// notified of the observed cost once the operation completes.
package hbar

import (
	"context"
	"time"

	"cosmossdk.io/log"
)

// Mode distinguishes the two shapes of chargeable call the spec names:
// an estimate made before submission and a reconciliation after.
type Mode string

const (
	ModeEstimate Mode = "estimate"
	ModeActual   Mode = "actual"
)

// Tier is a named daily spending cap in tinybars.
type Tier struct {
	Name     string
	DailyCap int64
}

// PlanStore resolves callers to plans and persists spend. It is the
// seam a real deployment backs with a database; this module ships an
// in-memory implementation sufficient for a single-instance relay and
// for tests.
type PlanStore interface {
	PlanIDForEvmAddress(ctx context.Context, evmAddress string) (string, bool, error)
	PlanIDForIPAddress(ctx context.Context, ipAddress string) (string, bool, error)
	EnsureBasicPlan(ctx context.Context, key string) (string, error)
	Tier(ctx context.Context, planID string) (Tier, error)
}

// spentCounter is the subset of the cache contract the governor needs
// to track daily spend with an automatic end-of-day reset.
type spentCounter interface {
	IncrBy(ctx context.Context, key string, amount int64, op string, ttl time.Duration) (int64, error)
	Get(ctx context.Context, key, op string) (any, bool, error)
	RPush(ctx context.Context, key string, value any, op string) (int64, error)
}

const (
	spentKeyPrefix   = "hbar-limit:spent:"
	historyKeyPrefix = "hbar-limit:history:"
)

// Governor enforces per-plan daily HBAR spending caps.
type Governor struct {
	plans  PlanStore
	store  spentCounter
	logger log.Logger
}

func New(plans PlanStore, store spentCounter, logger log.Logger) *Governor {
	return &Governor{plans: plans, store: store, logger: logger}
}

func (g *Governor) resolvePlan(ctx context.Context, senderAddress, ipAddress string) (string, error) {
	if senderAddress != "" {
		if id, ok, err := g.plans.PlanIDForEvmAddress(ctx, senderAddress); err == nil && ok {
			return id, nil
		}
	}
	if ipAddress != "" {
		if id, ok, err := g.plans.PlanIDForIPAddress(ctx, ipAddress); err == nil && ok {
			return id, nil
		}
	}
	key := senderAddress
	if key == "" {
		key = ipAddress
	}
	return g.plans.EnsureBasicPlan(ctx, key)
}

// ShouldLimit resolves the caller to a plan and reports whether the
// estimated cost would push the plan's daily spend over its tier cap.
// A resolution or storage failure fails open (returns false) and logs,
// consistent with the rest of the relay's fail-open backends.
func (g *Governor) ShouldLimit(ctx context.Context, mode Mode, callerName, methodName, senderAddress, ipAddress string, estimatedCost int64) bool {
	planID, err := g.resolvePlan(ctx, senderAddress, ipAddress)
	if err != nil {
		g.logger.Error("hbar plan resolution failed, failing open", "caller", callerName, "method", methodName, "error", err)
		return false
	}

	tier, err := g.plans.Tier(ctx, planID)
	if err != nil {
		g.logger.Error("hbar tier lookup failed, failing open", "plan", planID, "error", err)
		return false
	}

	spent, err := g.amountSpent(ctx, planID)
	if err != nil {
		g.logger.Error("hbar spend lookup failed, failing open", "plan", planID, "error", err)
		return false
	}

	return spent+estimatedCost > tier.DailyCap
}

func (g *Governor) amountSpent(ctx context.Context, planID string) (int64, error) {
	v, ok, err := g.store.Get(ctx, spentKeyPrefix+planID, "hbarLimit")
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	default:
		return 0, nil
	}
}

// secondsUntilMidnightUTC is the TTL the spec's "key whose TTL expires
// at end-of-day" calls for — expressed in UTC so all instances agree.
func secondsUntilMidnightUTC() time.Duration {
	now := time.Now().UTC()
	next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	return next.Sub(now)
}

// Notify is called after a chargeable operation completes with its
// observed cost (from a transaction-record query). It increments the
// plan's daily spend and appends to its audit history.
func (g *Governor) Notify(ctx context.Context, senderAddress, ipAddress, methodName string, observedCost int64) error {
	planID, err := g.resolvePlan(ctx, senderAddress, ipAddress)
	if err != nil {
		return err
	}

	if _, err := g.store.IncrBy(ctx, spentKeyPrefix+planID, observedCost, "hbarLimit", secondsUntilMidnightUTC()); err != nil {
		return err
	}

	entry := map[string]any{
		"method":    methodName,
		"cost":      observedCost,
		"timestamp": time.Now().UTC(),
	}
	_, err = g.store.RPush(ctx, historyKeyPrefix+planID, entry, "hbarLimit")
	return err
}
