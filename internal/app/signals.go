package app

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"fge-test-platform/internal/domain"
	"github.com/google/uuid"
)

// Shared key layout. Keys must stay stable so reloads and other tabs can read them.
const (
	TabIDKey      = "tab:id"
	SessionIDKey  = "test:sessionId"
	HeartbeatsKey = "tabs:heartbeats"
	LockKey       = "test:lock"
)

// ProgressKey is the shared key holding the in-progress snapshot of a category.
func ProgressKey(category string) string {
	return "test:" + category
}

// HistoryKey is the shared key holding the capped history list of a category.
func HistoryKey(category string) string {
	return "test:history:" + category
}

// SignalStore is storage visible to every context (tab) of the same origin.
// Subscribers are notified of changes written by other contexts, never of their own writes.
type SignalStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// Subscribe streams changes of the given keys. The caller must invoke cancel.
	Subscribe(ctx context.Context, keys ...string) (<-chan domain.SignalChange, func(), error)
}

// TabStore is storage scoped to a single tab.
type TabStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// Timing holds the coordinator cadence.
type Timing struct {
	HeartbeatInterval time.Duration
	TTL               time.Duration
	RecheckDelay      time.Duration
}

// DefaultTiming renews four times per liveness window so one or two throttled ticks do not expire a tab.
func DefaultTiming() Timing {
	return Timing{
		HeartbeatInterval: time.Second,
		TTL:               4 * time.Second,
		RecheckDelay:      700 * time.Millisecond,
	}
}

// NewID returns an opaque identifier with the given prefix.
func NewID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// EnsureID reads key from the tab store, creating and storing a fresh id when absent.
// Storage failures still yield a usable id for the lifetime of the caller.
func EnsureID(store TabStore, key, prefix string) string {
	if id, ok, err := store.Get(key); err == nil && ok && id != "" {
		return id
	} else if err != nil {
		log.Printf("tab storage: read %s: %v", key, err)
	}
	id := NewID(prefix)
	if err := store.Set(key, id); err != nil {
		log.Printf("tab storage: write %s: %v", key, err)
	}
	return id
}

// readJSON decodes key into v. Missing keys and storage or parse errors report false.
func readJSON(ctx context.Context, store SignalStore, key string, v any) bool {
	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		log.Printf("storage: read %s: %v", key, err)
		return false
	}
	if !ok || raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		log.Printf("storage: decode %s: %v", key, err)
		return false
	}
	return true
}

func writeJSON(ctx context.Context, store SignalStore, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("storage: encode %s: %v", key, err)
		return
	}
	if err := store.Set(ctx, key, string(data)); err != nil {
		log.Printf("storage: write %s: %v", key, err)
	}
}

func deleteKey(ctx context.Context, store SignalStore, key string) {
	if err := store.Delete(ctx, key); err != nil {
		log.Printf("storage: delete %s: %v", key, err)
	}
}

// watch runs fn for every change of keys until ctx ends or cancel is called.
func watch(ctx context.Context, store SignalStore, fn func(domain.SignalChange), keys ...string) (func(), error) {
	ch, cancel, err := store.Subscribe(ctx, keys...)
	if err != nil {
		return nil, err
	}
	go func() {
		for change := range ch {
			fn(change)
		}
	}()
	return cancel, nil
}
