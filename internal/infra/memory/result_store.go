package memory

import (
	"context"
	"sort"
	"sync"

	"fge-test-platform/internal/domain"
)

// ResultStore is an in-memory implementation of app.ResultRepository.
type ResultStore struct {
	mu      sync.RWMutex
	nextID  int64
	results []domain.TestResult
}

func NewResultStore() *ResultStore {
	return &ResultStore{}
}

func (s *ResultStore) SaveResult(_ context.Context, result domain.TestResult) (domain.TestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	result.ID = s.nextID
	s.results = append(s.results, result)
	return result, nil
}

func (s *ResultStore) ListResults(_ context.Context, userID string, limit int) ([]domain.TestResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.TestResult
	for _, r := range s.results {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CompletedAt.After(out[j].CompletedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
