package app

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"fge-test-platform/internal/domain"
)

// LockManager is an advisory lock with bounded staleness over the shared store.
// The store has no compare-and-swap, so every conditional write re-reads first;
// two tabs acquiring within the same instant may both succeed until the change
// notification of the next renewal reaches the loser.
type LockManager struct {
	store SignalStore
	ttl   time.Duration
	now   func() time.Time

	mu sync.Mutex
}

func NewLockManager(store SignalStore, timing Timing) *LockManager {
	return NewLockManagerWithClock(store, timing, time.Now)
}

// NewLockManagerWithClock is used by tests for deterministic timestamps.
func NewLockManagerWithClock(store SignalStore, timing Timing, now func() time.Time) *LockManager {
	return &LockManager{store: store, ttl: timing.TTL, now: now}
}

// Current returns the stored lock record, live or not.
func (m *LockManager) Current(ctx context.Context) (domain.LockRecord, bool) {
	var rec domain.LockRecord
	if !readJSON(ctx, m.store, LockKey, &rec) {
		return domain.LockRecord{}, false
	}
	return rec, true
}

// IsActive reports whether rec was renewed within the TTL.
func (m *LockManager) IsActive(rec domain.LockRecord) bool {
	return domain.Millis(m.now())-rec.Timestamp < m.ttl.Milliseconds()
}

// IsForeign reports whether rec is a live lock held by a session other than sessionID.
func (m *LockManager) IsForeign(rec domain.LockRecord, sessionID string) bool {
	return m.IsActive(rec) && rec.SessionID != "" && rec.SessionID != sessionID
}

// TryAcquire takes the lock when it is absent, stale, or already held by sessionID.
// It returns false only when a different live session owns it.
func (m *LockManager) TryAcquire(ctx context.Context, sessionID, tabID, category string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, ok := m.Current(ctx); ok && m.IsForeign(rec, sessionID) {
		return false
	}
	m.write(ctx, sessionID, tabID, category)
	return true
}

// Renew refreshes the timestamp when the lock is absent or owned by sessionID.
// Losing the lock is observed through OnExternalChange, not here.
func (m *LockManager) Renew(ctx context.Context, sessionID, tabID, category string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ctx.Err() != nil {
		// renewal stopped; a late tick must not resurrect a released lock
		return
	}
	rec, ok := m.Current(ctx)
	if ok && rec.SessionID != sessionID {
		return
	}
	m.write(ctx, sessionID, tabID, category)
}

// Release clears the lock only when the stored owner matches sessionID or tabID.
func (m *LockManager) Release(ctx context.Context, sessionID, tabID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.Current(ctx)
	if !ok {
		return
	}
	if rec.SessionID == sessionID || (tabID != "" && rec.TabID == tabID) {
		deleteKey(ctx, m.store, LockKey)
	}
}

// OnExternalChange invokes handler with the new record whenever another context writes the lock.
// A nil record means the lock was cleared or could not be decoded.
func (m *LockManager) OnExternalChange(ctx context.Context, handler func(*domain.LockRecord)) (func(), error) {
	return watch(ctx, m.store, func(change domain.SignalChange) {
		if change.Deleted || change.Value == "" {
			handler(nil)
			return
		}
		var rec domain.LockRecord
		if err := json.Unmarshal([]byte(change.Value), &rec); err != nil {
			log.Printf("storage: decode lock change: %v", err)
			handler(nil)
			return
		}
		handler(&rec)
	}, LockKey)
}

func (m *LockManager) write(ctx context.Context, sessionID, tabID, category string) {
	writeJSON(ctx, m.store, LockKey, domain.LockRecord{
		SessionID: sessionID,
		TabID:     tabID,
		Category:  category,
		Timestamp: domain.Millis(m.now()),
	})
}
