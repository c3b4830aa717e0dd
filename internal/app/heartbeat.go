package app

import (
	"context"
	"sync"
	"time"

	"fge-test-platform/internal/domain"
)

// HeartbeatRegistry tracks live tabs through a shared map of tab id to last-seen milliseconds.
// Every storage failure is swallowed; the registry never fails its caller.
type HeartbeatRegistry struct {
	store    SignalStore
	tabID    string
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time

	// serializes read-modify-write cycles issued by this tab
	mu sync.Mutex
}

func NewHeartbeatRegistry(store SignalStore, tabID string, timing Timing) *HeartbeatRegistry {
	return NewHeartbeatRegistryWithClock(store, tabID, timing, time.Now)
}

// NewHeartbeatRegistryWithClock is used by tests for deterministic timestamps.
func NewHeartbeatRegistryWithClock(store SignalStore, tabID string, timing Timing, now func() time.Time) *HeartbeatRegistry {
	return &HeartbeatRegistry{
		store:    store,
		tabID:    tabID,
		ttl:      timing.TTL,
		interval: timing.HeartbeatInterval,
		now:      now,
	}
}

// TabID returns the identity this registry stamps.
func (r *HeartbeatRegistry) TabID() string {
	return r.tabID
}

// Touch stamps this tab as alive, purging stale entries first to bound the map.
func (r *HeartbeatRegistry) Touch(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := domain.Millis(r.now())
	beats := r.read(ctx)
	for id, ts := range beats {
		if ts == 0 || now-ts > r.ttl.Milliseconds() {
			delete(beats, id)
		}
	}
	beats[r.tabID] = now
	writeJSON(ctx, r.store, HeartbeatsKey, beats)
}

// LiveTabCount returns how many tabs stamped themselves within the TTL.
// An unreadable map counts as no signal.
func (r *HeartbeatRegistry) LiveTabCount(ctx context.Context) int {
	return countLive(r.read(ctx), domain.Millis(r.now()), r.ttl)
}

// Run touches immediately and then on every interval until ctx ends, then removes this tab's entry.
func (r *HeartbeatRegistry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Touch(ctx)
	for {
		select {
		case <-ctx.Done():
			r.Remove(context.WithoutCancel(ctx))
			return
		case <-ticker.C:
			r.Touch(ctx)
		}
	}
}

// Foreground refreshes the stamp at once, recovering from throttled background timers.
func (r *HeartbeatRegistry) Foreground(ctx context.Context) {
	r.Touch(ctx)
}

// Remove drops this tab's entry. TTL expiry reclaims it anyway if this never runs.
func (r *HeartbeatRegistry) Remove(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	beats := r.read(ctx)
	if _, ok := beats[r.tabID]; !ok {
		return
	}
	delete(beats, r.tabID)
	writeJSON(ctx, r.store, HeartbeatsKey, beats)
}

// OnChange invokes handler whenever another tab rewrites the heartbeat map.
func (r *HeartbeatRegistry) OnChange(ctx context.Context, handler func()) (func(), error) {
	return watch(ctx, r.store, func(domain.SignalChange) { handler() }, HeartbeatsKey)
}

func (r *HeartbeatRegistry) read(ctx context.Context) map[string]int64 {
	beats := map[string]int64{}
	if !readJSON(ctx, r.store, HeartbeatsKey, &beats) || beats == nil {
		return map[string]int64{}
	}
	return beats
}

func countLive(beats map[string]int64, now int64, ttl time.Duration) int {
	n := 0
	for _, ts := range beats {
		if ts != 0 && now-ts < ttl.Milliseconds() {
			n++
		}
	}
	return n
}
