package memory

import "sync"

// TabStore keeps tab-scoped values for the lifetime of the process.
type TabStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewTabStore() *TabStore {
	return &TabStore{values: make(map[string]string)}
}

func (s *TabStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *TabStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}
