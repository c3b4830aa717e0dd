package app_test

import (
	"context"
	"testing"
	"time"

	"fge-test-platform/internal/app"
	"fge-test-platform/internal/domain"
	"fge-test-platform/internal/infra/memory"
)

func TestTryAcquireDeniesLiveForeignSession(t *testing.T) {
	ctx := context.Background()
	hub := memory.NewHub()
	clock := newFakeClock()
	timing := app.DefaultTiming()

	a := app.NewLockManagerWithClock(hub.Context("A"), timing, clock.Now)
	b := app.NewLockManagerWithClock(hub.Context("B"), timing, clock.Now)

	if !a.TryAcquire(ctx, "S1", "A", "IDENT1") {
		t.Fatalf("first acquire should succeed")
	}
	clock.Advance(500 * time.Millisecond)
	if b.TryAcquire(ctx, "S2", "B", "IDENT1") {
		t.Fatalf("expected denial while S1 holds a live lock")
	}
	rec, ok := b.Current(ctx)
	if !ok || rec.SessionID != "S1" {
		t.Fatalf("denied acquire must not write, got %+v", rec)
	}

	// A crashes: no renewals for longer than the ttl.
	clock.Advance(timing.TTL)
	if !b.TryAcquire(ctx, "S2", "B", "IDENT2") {
		t.Fatalf("expected stale lock to be taken over")
	}
	rec, _ = a.Current(ctx)
	if rec.SessionID != "S2" || rec.Category != "IDENT2" {
		t.Fatalf("unexpected record after takeover: %+v", rec)
	}
}

func TestTryAcquireSameSessionRefreshes(t *testing.T) {
	ctx := context.Background()
	hub := memory.NewHub()
	clock := newFakeClock()
	m := app.NewLockManagerWithClock(hub.Context("A"), app.DefaultTiming(), clock.Now)

	m.TryAcquire(ctx, "S1", "A", "IDENT1")
	clock.Advance(time.Second)
	if !m.TryAcquire(ctx, "S1", "A2", "IDENT1") {
		t.Fatalf("same session must be allowed")
	}
	rec, _ := m.Current(ctx)
	if rec.TabID != "A2" || rec.Timestamp != domain.Millis(clock.Now()) {
		t.Fatalf("expected refreshed record, got %+v", rec)
	}
}

func TestRenewLeavesForeignLockAlone(t *testing.T) {
	ctx := context.Background()
	hub := memory.NewHub()
	clock := newFakeClock()
	timing := app.DefaultTiming()
	a := app.NewLockManagerWithClock(hub.Context("A"), timing, clock.Now)
	b := app.NewLockManagerWithClock(hub.Context("B"), timing, clock.Now)

	a.Renew(ctx, "S1", "A", "IDENT1")
	if rec, ok := a.Current(ctx); !ok || rec.SessionID != "S1" {
		t.Fatalf("renew of an absent lock should write it, got %+v", rec)
	}
	clock.Advance(time.Second)
	b.Renew(ctx, "S2", "B", "IDENT1")
	if rec, _ := a.Current(ctx); rec.SessionID != "S1" {
		t.Fatalf("renew overwrote a foreign lock: %+v", rec)
	}
}

func TestRenewAfterCancelDoesNotWrite(t *testing.T) {
	hub := memory.NewHub()
	m := app.NewLockManager(hub.Context("A"), app.DefaultTiming())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.Renew(ctx, "S1", "A", "IDENT1")
	if _, ok := m.Current(context.Background()); ok {
		t.Fatalf("canceled renew must not write")
	}
}

func TestReleaseRequiresMatchingOwner(t *testing.T) {
	ctx := context.Background()
	hub := memory.NewHub()
	m := app.NewLockManager(hub.Context("A"), app.DefaultTiming())

	m.TryAcquire(ctx, "S1", "A", "IDENT1")
	m.Release(ctx, "S2", "B")
	if _, ok := m.Current(ctx); !ok {
		t.Fatalf("release by a stranger cleared the lock")
	}
	m.Release(ctx, "S9", "A")
	if _, ok := m.Current(ctx); ok {
		t.Fatalf("release by matching tab should clear the lock")
	}

	m.TryAcquire(ctx, "S1", "A", "IDENT1")
	m.Release(ctx, "S1", "")
	if _, ok := m.Current(ctx); ok {
		t.Fatalf("release by matching session should clear the lock")
	}
	// releasing an absent lock is a no-op
	m.Release(ctx, "S1", "A")
}

func TestOnExternalChangeSeesTakeover(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := memory.NewHub()
	clock := newFakeClock()
	timing := app.DefaultTiming()
	a := app.NewLockManagerWithClock(hub.Context("A"), timing, clock.Now)
	b := app.NewLockManagerWithClock(hub.Context("B"), timing, clock.Now)

	a.TryAcquire(ctx, "S1", "A", "IDENT1")

	changes := make(chan *domain.LockRecord, 4)
	stop, err := a.OnExternalChange(ctx, func(rec *domain.LockRecord) { changes <- rec })
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer stop()

	a.Renew(ctx, "S1", "A", "IDENT1")
	clock.Advance(timing.TTL + time.Second)
	if !b.TryAcquire(ctx, "S2", "B", "IDENT1") {
		t.Fatalf("takeover of stale lock failed")
	}

	select {
	case rec := <-changes:
		if rec == nil || !a.IsForeign(*rec, "S1") {
			t.Fatalf("expected foreign live record, got %+v", rec)
		}
	case <-time.After(time.Second):
		t.Fatalf("no change notification")
	}

	b.Release(ctx, "S2", "B")
	select {
	case rec := <-changes:
		if rec != nil {
			t.Fatalf("expected nil record on release, got %+v", rec)
		}
	case <-time.After(time.Second):
		t.Fatalf("no release notification")
	}
}
