package memory

import (
	"context"
	"sync"

	"fge-test-platform/internal/domain"
)

// Hub is an in-process shared store. Each tab works through its own Context view;
// a write notifies every other view subscribed to the key, never the writer.
type Hub struct {
	mu     sync.Mutex
	values map[string]string
	subs   map[*subscription]struct{}
}

type subscription struct {
	origin string
	keys   map[string]struct{}
	ch     chan domain.SignalChange
}

func NewHub() *Hub {
	return &Hub{
		values: make(map[string]string),
		subs:   make(map[*subscription]struct{}),
	}
}

// Context returns the view of the tab identified by origin.
func (h *Hub) Context(origin string) *SignalStore {
	return &SignalStore{hub: h, origin: origin}
}

// SignalStore is one context's view of a Hub; it implements app.SignalStore.
type SignalStore struct {
	hub    *Hub
	origin string
}

func (s *SignalStore) Get(_ context.Context, key string) (string, bool, error) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	value, ok := s.hub.values[key]
	return value, ok, nil
}

// Set stores value; rewriting an identical value does not notify.
func (s *SignalStore) Set(_ context.Context, key, value string) error {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if old, ok := s.hub.values[key]; ok && old == value {
		return nil
	}
	s.hub.values[key] = value
	s.hub.broadcastLocked(domain.SignalChange{Key: key, Value: value, Origin: s.origin})
	return nil
}

// Delete removes key; removing an absent key does not notify.
func (s *SignalStore) Delete(_ context.Context, key string) error {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if _, ok := s.hub.values[key]; !ok {
		return nil
	}
	delete(s.hub.values, key)
	s.hub.broadcastLocked(domain.SignalChange{Key: key, Deleted: true, Origin: s.origin})
	return nil
}

// Subscribe returns a channel of changes to keys made by other views.
// The channel closes on cancel or when ctx ends.
func (s *SignalStore) Subscribe(ctx context.Context, keys ...string) (<-chan domain.SignalChange, func(), error) {
	sub := &subscription{
		origin: s.origin,
		keys:   make(map[string]struct{}, len(keys)),
		ch:     make(chan domain.SignalChange, 64),
	}
	for _, k := range keys {
		sub.keys[k] = struct{}{}
	}

	s.hub.mu.Lock()
	s.hub.subs[sub] = struct{}{}
	s.hub.mu.Unlock()

	stopped := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(stopped)
			s.hub.mu.Lock()
			if _, ok := s.hub.subs[sub]; ok {
				delete(s.hub.subs, sub)
				close(sub.ch)
			}
			s.hub.mu.Unlock()
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-stopped:
		}
	}()
	return sub.ch, cancel, nil
}

func (h *Hub) broadcastLocked(change domain.SignalChange) {
	for sub := range h.subs {
		if sub.origin == change.Origin {
			continue
		}
		if _, ok := sub.keys[change.Key]; !ok {
			continue
		}
		select {
		case sub.ch <- change:
		default:
			// a slow reader loses the oldest change; handlers re-read current state
			select {
			case <-sub.ch:
			default:
			}
			sub.ch <- change
		}
	}
}
