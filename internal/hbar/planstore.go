package hbar

import (
	"context"
	"sync"
)

// BasicTierName is the tier assigned to synthesized per-address plans
// (spec §4.4: "falling back to a synthesized per-address basic plan").
const BasicTierName = "BASIC"

// MemoryPlanStore is an in-process PlanStore keyed by evmAddress and
// ipAddress. It is the seam named in spec §4.4; a multi-instance
// deployment would back PlanStore with a shared database instead.
type MemoryPlanStore struct {
	mu          sync.RWMutex
	byEvm       map[string]string
	byIP        map[string]string
	tiers       map[string]Tier
	defaultTier Tier
}

func NewMemoryPlanStore(defaultTier Tier) *MemoryPlanStore {
	return &MemoryPlanStore{
		byEvm:       make(map[string]string),
		byIP:        make(map[string]string),
		tiers:       make(map[string]Tier),
		defaultTier: defaultTier,
	}
}

// AssignEvmAddress associates an evmAddress with an explicit plan and
// tier, overriding the synthesized-basic-plan path.
func (s *MemoryPlanStore) AssignEvmAddress(evmAddress, planID string, tier Tier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byEvm[evmAddress] = planID
	s.tiers[planID] = tier
}

func (s *MemoryPlanStore) AssignIPAddress(ipAddress, planID string, tier Tier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byIP[ipAddress] = planID
	s.tiers[planID] = tier
}

func (s *MemoryPlanStore) PlanIDForEvmAddress(_ context.Context, evmAddress string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEvm[evmAddress]
	return id, ok, nil
}

func (s *MemoryPlanStore) PlanIDForIPAddress(_ context.Context, ipAddress string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byIP[ipAddress]
	return id, ok, nil
}

// EnsureBasicPlan synthesizes a deterministic basic-tier plan keyed
// directly off the caller identifier, creating it on first use.
func (s *MemoryPlanStore) EnsureBasicPlan(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	planID := "basic:" + key
	if _, ok := s.tiers[planID]; !ok {
		s.tiers[planID] = s.defaultTier
	}
	return planID, nil
}

func (s *MemoryPlanStore) Tier(_ context.Context, planID string) (Tier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tiers[planID]; ok {
		return t, nil
	}
	return s.defaultTier, nil
}
