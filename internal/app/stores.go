package app

import (
	"context"

	"fge-test-platform/internal/domain"
)

// DefaultHistoryCap bounds each category's history list.
const DefaultHistoryCap = 50

// SnapshotStore persists per-category quiz progress with full overwrites.
type SnapshotStore struct {
	store SignalStore
}

func NewSnapshotStore(store SignalStore) *SnapshotStore {
	return &SnapshotStore{store: store}
}

func (s *SnapshotStore) Load(ctx context.Context, category string) (domain.Snapshot, bool) {
	var snap domain.Snapshot
	if !readJSON(ctx, s.store, ProgressKey(category), &snap) {
		return domain.Snapshot{}, false
	}
	return snap, true
}

func (s *SnapshotStore) Save(ctx context.Context, category string, snap domain.Snapshot) {
	writeJSON(ctx, s.store, ProgressKey(category), snap)
}

func (s *SnapshotStore) Clear(ctx context.Context, category string) {
	deleteKey(ctx, s.store, ProgressKey(category))
}

// HistoryStore keeps the newest submissions of each category, evicting the oldest past the cap.
type HistoryStore struct {
	store SignalStore
	limit int
}

func NewHistoryStore(store SignalStore, limit int) *HistoryStore {
	if limit <= 0 {
		limit = DefaultHistoryCap
	}
	return &HistoryStore{store: store, limit: limit}
}

// Append prepends entry to its category's list.
func (h *HistoryStore) Append(ctx context.Context, entry domain.HistoryEntry) {
	list := append([]domain.HistoryEntry{entry}, h.List(ctx, entry.Category)...)
	if len(list) > h.limit {
		list = list[:h.limit]
	}
	writeJSON(ctx, h.store, HistoryKey(entry.Category), list)
}

// List returns the category's entries, newest first.
func (h *HistoryStore) List(ctx context.Context, category string) []domain.HistoryEntry {
	var list []domain.HistoryEntry
	if !readJSON(ctx, h.store, HistoryKey(category), &list) {
		return nil
	}
	return list
}

// Clear drops the history of every given category.
func (h *HistoryStore) Clear(ctx context.Context, categories ...string) {
	for _, category := range categories {
		deleteKey(ctx, h.store, HistoryKey(category))
	}
}
