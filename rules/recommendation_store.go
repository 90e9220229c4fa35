package rules

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// RecommendationFilter narrows a recommendation listing. Zero values mean
// "don't filter".
type RecommendationFilter struct {
	Status        RecommendationStatus
	MinConfidence int
	Limit         int
}

// RecommendationStore persists recommendations and their review lifecycle.
// Recommendations are created once; the only permitted mutation is the
// append-only status review.
type RecommendationStore interface {
	// Add stores a freshly generated recommendation.
	Add(rec *Recommendation) error

	// Get retrieves a recommendation by ID.
	Get(id string) (*Recommendation, error)

	// GetByMessage retrieves the recommendation for a message, if any.
	GetByMessage(accountID, messageID string) (*Recommendation, error)

	// List returns an account's recommendations, newest first.
	List(accountID string, filter RecommendationFilter) ([]*Recommendation, error)

	// Review moves a generated recommendation to accepted or rejected.
	// Reviewing an already-reviewed recommendation is an error.
	Review(id string, status RecommendationStatus) error
}

// InMemoryRecommendationStore implements RecommendationStore with a
// mutex-guarded map. Thread-safe.
type InMemoryRecommendationStore struct {
	recs map[string]*Recommendation
	mu   sync.RWMutex
}

// NewInMemoryRecommendationStore creates an empty in-memory store.
func NewInMemoryRecommendationStore() *InMemoryRecommendationStore {
	return &InMemoryRecommendationStore{
		recs: make(map[string]*Recommendation),
	}
}

// Add stores a recommendation, enforcing unique IDs and one recommendation
// per message.
func (s *InMemoryRecommendationStore) Add(rec *Recommendation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.recs[rec.ID]; exists {
		return fmt.Errorf("recommendation with ID %s already exists", rec.ID)
	}
	for _, existing := range s.recs {
		if existing.AccountID == rec.AccountID && existing.MessageID == rec.MessageID {
			return fmt.Errorf("recommendation already exists for message %s", rec.MessageID)
		}
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.Status == "" {
		rec.Status = StatusGenerated
	}
	s.recs[rec.ID] = rec
	return nil
}

// Get retrieves a recommendation by ID.
func (s *InMemoryRecommendationStore) Get(id string) (*Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.recs[id]
	if !exists {
		return nil, fmt.Errorf("recommendation %s not found", id)
	}
	return rec, nil
}

// GetByMessage retrieves the recommendation for a message.
func (s *InMemoryRecommendationStore) GetByMessage(accountID, messageID string) (*Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.recs {
		if rec.AccountID == accountID && rec.MessageID == messageID {
			return rec, nil
		}
	}
	return nil, fmt.Errorf("no recommendation for message %s", messageID)
}

// List returns the account's recommendations, newest first.
func (s *InMemoryRecommendationStore) List(accountID string, filter RecommendationFilter) ([]*Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Recommendation
	for _, rec := range s.recs {
		if rec.AccountID != accountID {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		if rec.Result.ConfidenceScore < filter.MinConfidence {
			continue
		}
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Review transitions a generated recommendation to accepted or rejected.
func (s *InMemoryRecommendationStore) Review(id string, status RecommendationStatus) error {
	if status != StatusAccepted && status != StatusRejected {
		return fmt.Errorf("invalid review status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.recs[id]
	if !exists {
		return fmt.Errorf("recommendation %s not found", id)
	}
	if rec.Status != StatusGenerated {
		return fmt.Errorf("recommendation %s already reviewed as %s", id, rec.Status)
	}

	now := time.Now()
	rec.Status = status
	rec.ReviewedAt = &now
	return nil
}
