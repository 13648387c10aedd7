package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/chemtools/labproc/proc"
)

// MemStore keeps plans in memory. Plans are stored as their JSON
// serialization so loads return independent copies, same as the
// database-backed stores.
type MemStore struct {
	mu    sync.RWMutex
	plans map[string][]byte
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{plans: make(map[string][]byte)}
}

// SavePlan implements Store.
func (s *MemStore) SavePlan(_ context.Context, plan *proc.Plan) error {
	raw, err := json.Marshal(plan)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.plans[plan.ID] = raw
	s.mu.Unlock()
	return nil
}

// LoadPlan implements Store.
func (s *MemStore) LoadPlan(_ context.Context, id string) (*proc.Plan, error) {
	s.mu.RLock()
	raw, ok := s.plans[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var plan proc.Plan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// ListPlans implements Store.
func (s *MemStore) ListPlans(_ context.Context) ([]PlanInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var plans []proc.Plan
	for _, raw := range s.plans {
		var p proc.Plan
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	sort.Slice(plans, func(i, j int) bool {
		return plans[i].CreatedAt.After(plans[j].CreatedAt)
	})
	out := make([]PlanInfo, len(plans))
	for i, p := range plans {
		out[i] = PlanInfo{ID: p.ID, Procedure: p.Procedure, GraphHash: p.GraphHash}
	}
	return out, nil
}

// DeletePlan implements Store.
func (s *MemStore) DeletePlan(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plans[id]; !ok {
		return ErrNotFound
	}
	delete(s.plans, id)
	return nil
}
