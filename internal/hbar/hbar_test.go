package hbar

import (
	"context"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/stretchr/testify/require"

	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/cache"
)

func newGovernor(t *testing.T, defaultTier Tier) (*Governor, *MemoryPlanStore) {
	t.Helper()
	plans := NewMemoryPlanStore(defaultTier)
	store := cache.NewLocalCache(100, time.Hour)
	return New(plans, store, log.NewNopLogger()), plans
}

func TestGovernorAllowsWhenUnderCap(t *testing.T) {
	t.Parallel()
	g, _ := newGovernor(t, Tier{Name: BasicTierName, DailyCap: 1000})

	require.False(t, g.ShouldLimit(context.Background(), ModeEstimate, "relay", "eth_sendRawTransaction", "0xabc", "1.2.3.4", 500))
}

func TestGovernorDeniesWhenOverCap(t *testing.T) {
	t.Parallel()
	g, _ := newGovernor(t, Tier{Name: BasicTierName, DailyCap: 1000})
	ctx := context.Background()

	require.NoError(t, g.Notify(ctx, "0xabc", "1.2.3.4", "eth_sendRawTransaction", 900))
	require.True(t, g.ShouldLimit(ctx, ModeEstimate, "relay", "eth_sendRawTransaction", "0xabc", "1.2.3.4", 200))
}

func TestGovernorResolvesExplicitPlanBeforeSynthesizing(t *testing.T) {
	t.Parallel()
	g, plans := newGovernor(t, Tier{Name: BasicTierName, DailyCap: 100})
	plans.AssignEvmAddress("0xabc", "premium-plan", Tier{Name: "PREMIUM", DailyCap: 10_000})

	require.False(t, g.ShouldLimit(context.Background(), ModeEstimate, "relay", "eth_sendRawTransaction", "0xabc", "1.2.3.4", 5000))
}

func TestGovernorSameEvmAddressSharesPlanAcrossCalls(t *testing.T) {
	t.Parallel()
	g, _ := newGovernor(t, Tier{Name: BasicTierName, DailyCap: 1000})
	ctx := context.Background()

	require.NoError(t, g.Notify(ctx, "0xabc", "", "eth_call", 400))
	require.NoError(t, g.Notify(ctx, "0xabc", "", "eth_call", 400))
	require.True(t, g.ShouldLimit(ctx, ModeEstimate, "relay", "eth_call", "0xabc", "", 300))
}

func TestGovernorFailsOpenWhenPlanStoreErrors(t *testing.T) {
	t.Parallel()
	store := cache.NewLocalCache(10, time.Hour)
	g := New(erroringPlanStore{}, store, log.NewNopLogger())

	require.False(t, g.ShouldLimit(context.Background(), ModeEstimate, "relay", "eth_call", "0xabc", "1.2.3.4", 100))
}

type erroringPlanStore struct{}

func (erroringPlanStore) PlanIDForEvmAddress(context.Context, string) (string, bool, error) {
	return "", false, assertErr
}
func (erroringPlanStore) PlanIDForIPAddress(context.Context, string) (string, bool, error) {
	return "", false, assertErr
}
func (erroringPlanStore) EnsureBasicPlan(context.Context, string) (string, error) {
	return "", assertErr
}
func (erroringPlanStore) Tier(context.Context, string) (Tier, error) {
	return Tier{}, assertErr
}

var assertErr = errTest("plan store unavailable")

type errTest string

func (e errTest) Error() string { return string(e) }
