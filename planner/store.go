package planner

import (
	"fmt"
	"sort"
	"sync"
)

// PlanStore persists execution plans for audit and review.
type PlanStore interface {
	Add(plan *ExecutionPlan) error
	Get(id string) (*ExecutionPlan, error)
	ListByAccount(accountID string, limit int) ([]*ExecutionPlan, error)
}

// InMemoryPlanStore is a thread-safe in-memory PlanStore, used in tests and
// in single-process deployments without postgres.
type InMemoryPlanStore struct {
	mu    sync.RWMutex
	plans map[string]*ExecutionPlan
}

var _ PlanStore = (*InMemoryPlanStore)(nil)

func NewInMemoryPlanStore() *InMemoryPlanStore {
	return &InMemoryPlanStore{plans: make(map[string]*ExecutionPlan)}
}

func (s *InMemoryPlanStore) Add(plan *ExecutionPlan) error {
	if plan == nil {
		return fmt.Errorf("plan cannot be nil")
	}
	if plan.ID == "" {
		return fmt.Errorf("plan ID cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.plans[plan.ID]; exists {
		return fmt.Errorf("plan with ID %q already exists", plan.ID)
	}
	s.plans[plan.ID] = plan
	return nil
}

func (s *InMemoryPlanStore) Get(id string) (*ExecutionPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plan, exists := s.plans[id]
	if !exists {
		return nil, fmt.Errorf("plan with ID %q not found", id)
	}
	return plan, nil
}

// ListByAccount returns the account's plans newest first. A limit of zero
// or less means no limit.
func (s *InMemoryPlanStore) ListByAccount(accountID string, limit int) ([]*ExecutionPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*ExecutionPlan
	for _, plan := range s.plans {
		if plan.AccountID == accountID {
			out = append(out, plan)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
