package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fge-test-platform/internal/app"
	"fge-test-platform/internal/domain"
	"fge-test-platform/internal/infra/memory"
)

type identity string

func (i identity) Current() string { return string(i) }

func controllerTiming() app.Timing {
	return app.Timing{
		HeartbeatInterval: 50 * time.Millisecond,
		TTL:               4 * time.Second,
		RecheckDelay:      20 * time.Millisecond,
	}
}

type tab struct {
	id         string
	session    string
	store      app.SignalStore
	heartbeats *app.HeartbeatRegistry
	locks      *app.LockManager
	snapshots  *app.SnapshotStore
	history    *app.HistoryStore
	sink       *recordingSink
	ctrl       *app.Controller
}

type tabOptions struct {
	heartbeats bool
	confirm    app.ConfirmFunc
	identity   string
	questions  []domain.Question
	source     app.QuestionSource
	timing     *app.Timing
	wrap       func(app.SignalStore) app.SignalStore
}

func newTab(hub *memory.Hub, id, session string, opts tabOptions) *tab {
	timing := controllerTiming()
	if opts.timing != nil {
		timing = *opts.timing
	}
	var store app.SignalStore = hub.Context(id)
	if opts.wrap != nil {
		store = opts.wrap(store)
	}
	tb := &tab{
		id:        id,
		session:   session,
		store:     store,
		locks:     app.NewLockManager(store, timing),
		snapshots: app.NewSnapshotStore(store),
		history:   app.NewHistoryStore(store, app.DefaultHistoryCap),
		sink:      &recordingSink{},
	}
	if opts.heartbeats {
		tb.heartbeats = app.NewHeartbeatRegistry(store, id, timing)
	}
	questions := opts.questions
	if questions == nil {
		questions = sampleBank("IDENT1", 4)
	}
	var source app.QuestionSource = &fakeSource{questions: questions}
	if opts.source != nil {
		source = opts.source
	}
	who := opts.identity
	if who == "" {
		who = "guest|test"
	}
	tb.ctrl = app.NewController(app.ControllerDeps{
		Identity:   identity(who),
		Heartbeats: tb.heartbeats,
		Locks:      tb.locks,
		Loader:     app.NewProgressLoader(source, tb.snapshots, tb.history, app.DefaultQuestionLimit),
		Results:    tb.sink,
		Confirm:    opts.confirm,
		TabID:      id,
		SessionID:  session,
		Timing:     timing,
	})
	return tb
}

func waitDone(t *testing.T, c *app.Controller) app.Outcome {
	t.Helper()
	select {
	case <-c.Done():
		return c.Outcome()
	case <-time.After(2 * time.Second):
		t.Fatalf("controller did not end, state %s", c.State())
	}
	return app.Outcome{}
}

func TestEnterRequiresIdentity(t *testing.T) {
	hub := memory.NewHub()
	tb := newTab(hub, "A", "S1", tabOptions{})
	tb.ctrl = app.NewController(app.ControllerDeps{
		Identity: identity(""),
		Locks:    tb.locks,
		TabID:    "A",
	})
	err := tb.ctrl.Enter(context.Background(), "IDENT1")
	if !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if tb.ctrl.State() != app.StateEnded {
		t.Fatalf("expected ended, got %s", tb.ctrl.State())
	}
	if _, ok := tb.locks.Current(context.Background()); ok {
		t.Fatalf("no lock should be taken without identity")
	}
}

func TestEnterAcquiresLockAndPersists(t *testing.T) {
	ctx := context.Background()
	hub := memory.NewHub()
	a := newTab(hub, "A", "S1", tabOptions{})
	defer a.ctrl.Close(ctx)

	if err := a.ctrl.Enter(ctx, "IDENT1"); err != nil {
		t.Fatalf("enter: %v", err)
	}
	if a.ctrl.State() != app.StateActive {
		t.Fatalf("expected active, got %s", a.ctrl.State())
	}
	rec, ok := a.locks.Current(ctx)
	if !ok || rec.SessionID != "S1" || rec.TabID != "A" || rec.Category != "IDENT1" {
		t.Fatalf("unexpected lock %+v", rec)
	}
	if _, ok := a.snapshots.Load(ctx, "IDENT1"); !ok {
		t.Fatalf("expected initial snapshot to be persisted")
	}
	if err := a.ctrl.Enter(ctx, "IDENT1"); !errors.Is(err, domain.ErrNotActive) {
		t.Fatalf("second enter should fail, got %v", err)
	}
}

func TestSecondSessionIsRedirected(t *testing.T) {
	ctx := context.Background()
	hub := memory.NewHub()
	a := newTab(hub, "A", "S1", tabOptions{})
	b := newTab(hub, "B", "S2", tabOptions{})
	defer a.ctrl.Close(ctx)

	if err := a.ctrl.Enter(ctx, "IDENT1"); err != nil {
		t.Fatalf("enter A: %v", err)
	}
	err := b.ctrl.Enter(ctx, "IDENT2")
	var denied *domain.AccessDeniedError
	if !errors.As(err, &denied) || denied.Reason != domain.ReasonMultiTabActive {
		t.Fatalf("expected multi_tab_active denial, got %v", err)
	}
	if !errors.Is(err, domain.ErrLockDenied) {
		t.Fatalf("denial should unwrap to ErrLockDenied")
	}
	if o := waitDone(t, b.ctrl); o.Reason != domain.ReasonMultiTabActive || o.Result != nil {
		t.Fatalf("unexpected outcome %+v", o)
	}
	if rec, _ := a.locks.Current(ctx); rec.SessionID != "S1" {
		t.Fatalf("denied tab must not touch the lock, got %+v", rec)
	}
	if a.ctrl.State() != app.StateActive {
		t.Fatalf("first tab should stay active, got %s", a.ctrl.State())
	}
}

func TestSecondLiveTabIsRedirected(t *testing.T) {
	ctx := context.Background()
	hub := memory.NewHub()
	other := app.NewHeartbeatRegistry(hub.Context("B"), "B", controllerTiming())
	other.Touch(ctx)

	a := newTab(hub, "A", "S1", tabOptions{heartbeats: true})
	a.heartbeats.Touch(ctx)
	err := a.ctrl.Enter(ctx, "IDENT1")
	if !errors.Is(err, domain.ErrTooManyTabs) {
		t.Fatalf("expected too many tabs, got %v", err)
	}
	if o := a.ctrl.Outcome(); o.Reason != domain.ReasonMultiTabCount {
		t.Fatalf("unexpected outcome %+v", o)
	}
	if _, ok := a.locks.Current(ctx); ok {
		t.Fatalf("lock must not be taken when redirected for tab count")
	}
}

func TestForeignLockForcesSubmission(t *testing.T) {
	ctx := context.Background()
	hub := memory.NewHub()
	a := newTab(hub, "A", "S1", tabOptions{})

	if err := a.ctrl.Enter(ctx, "IDENT1"); err != nil {
		t.Fatalf("enter: %v", err)
	}
	if err := a.ctrl.SelectMode(ctx, domain.ModeMCQ); err != nil {
		t.Fatalf("select mode: %v", err)
	}
	if _, err := a.ctrl.Answer(ctx, "B"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	// let the post-entry recheck pass first
	time.Sleep(3 * controllerTiming().RecheckDelay)

	// another context overwrites the lock with a live record of its own
	clock := newFakeClock()
	clock.t = time.Now().Add(time.Minute)
	thief := app.NewLockManagerWithClock(hub.Context("B"), controllerTiming(), clock.Now)
	if !thief.TryAcquire(ctx, "other", "B", "IDENT1") {
		t.Fatalf("thief should see the lock as stale")
	}

	o := waitDone(t, a.ctrl)
	if o.Reason != domain.ReasonMultiTab {
		t.Fatalf("expected multi_tab, got %+v", o)
	}
	if o.Result == nil || o.Result.Answered != 1 || o.Result.Correct != 1 || o.Result.Reason != domain.ReasonMultiTab {
		t.Fatalf("unexpected forced result %+v", o.Result)
	}
	if _, ok := a.snapshots.Load(ctx, "IDENT1"); ok {
		t.Fatalf("snapshot must be cleared after forced submission")
	}
	if list := a.history.List(ctx, "IDENT1"); len(list) != 1 || list[0].Reason != domain.ReasonMultiTab {
		t.Fatalf("expected forced entry in history, got %+v", list)
	}
	if rec, _ := a.locks.Current(ctx); rec.SessionID != "other" {
		t.Fatalf("forced tab must not release the thief's lock, got %+v", rec)
	}
	waitFor(t, time.Second, func() bool { return a.sink.Len() == 1 })
}

func TestNewLiveTabForcesSubmission(t *testing.T) {
	ctx := context.Background()
	hub := memory.NewHub()
	a := newTab(hub, "A", "S1", tabOptions{heartbeats: true})
	a.heartbeats.Touch(ctx)

	if err := a.ctrl.Enter(ctx, "IDENT1"); err != nil {
		t.Fatalf("enter: %v", err)
	}
	if err := a.ctrl.SelectMode(ctx, domain.ModeInput); err != nil {
		t.Fatalf("select mode: %v", err)
	}
	time.Sleep(3 * controllerTiming().RecheckDelay)

	app.NewHeartbeatRegistry(hub.Context("B"), "B", controllerTiming()).Touch(ctx)

	o := waitDone(t, a.ctrl)
	if o.Reason != domain.ReasonMultiTabCount || o.Result == nil || o.Result.Mode != domain.ModeInput {
		t.Fatalf("unexpected outcome %+v", o)
	}
	if _, ok := a.locks.Current(ctx); ok {
		t.Fatalf("own lock should be released after forced submission")
	}
}

func TestSubmitConfirmsPartialAnswers(t *testing.T) {
	ctx := context.Background()
	hub := memory.NewHub()
	var prompts []string
	affirm := false
	a := newTab(hub, "A", "S1", tabOptions{confirm: func(p string) bool {
		prompts = append(prompts, p)
		return affirm
	}})

	if err := a.ctrl.Enter(ctx, "IDENT1"); err != nil {
		t.Fatalf("enter: %v", err)
	}
	if _, err := a.ctrl.Submit(ctx); !errors.Is(err, domain.ErrModeNotSelected) {
		t.Fatalf("submit before mode should fail, got %v", err)
	}
	_ = a.ctrl.SelectMode(ctx, domain.ModeMCQ)
	_, _ = a.ctrl.Answer(ctx, "B")

	entry, err := a.ctrl.Submit(ctx)
	if err != nil || entry != nil {
		t.Fatalf("declined submit should be a no-op, got %+v %v", entry, err)
	}
	if len(prompts) != 1 || prompts[0] != "You answered 1/4. Do you want to end the test and submit?" {
		t.Fatalf("unexpected prompts %q", prompts)
	}
	if a.ctrl.State() != app.StateActive {
		t.Fatalf("declined submit must keep the quiz active")
	}

	affirm = true
	entry, err = a.ctrl.Submit(ctx)
	if err != nil || entry == nil {
		t.Fatalf("submit: %+v %v", entry, err)
	}
	if entry.Answered != 1 || entry.Total != 4 || entry.Percentage != 25 {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if o := waitDone(t, a.ctrl); o.Result == nil || o.Reason != domain.ReasonNone {
		t.Fatalf("unexpected outcome %+v", o)
	}
	if _, ok := a.locks.Current(ctx); ok {
		t.Fatalf("lock should be released after submit")
	}
	if a.sink.Len() != 1 {
		t.Fatalf("expected result reported once, got %d", a.sink.Len())
	}
}

func TestSubmitAllAnsweredSkipsConfirmation(t *testing.T) {
	ctx := context.Background()
	hub := memory.NewHub()
	asked := false
	confirm := func(string) bool {
		asked = true
		return false
	}
	a := newTab(hub, "A", "S1", tabOptions{questions: sampleBank("IDENT1", 2), confirm: confirm})
	if err := a.ctrl.Enter(ctx, "IDENT1"); err != nil {
		t.Fatalf("enter: %v", err)
	}
	_ = a.ctrl.SelectMode(ctx, domain.ModeMCQ)
	_, _ = a.ctrl.Answer(ctx, "B")
	_, _ = a.ctrl.Navigate(ctx, 1)
	_, _ = a.ctrl.Answer(ctx, "A")

	entry, err := a.ctrl.Submit(ctx)
	if err != nil || entry == nil || asked {
		t.Fatalf("expected direct submit, got %+v %v asked=%v", entry, err, asked)
	}
	if entry.Correct != 1 || entry.Percentage != 50 {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestNavigateBackAndRequestEnd(t *testing.T) {
	ctx := context.Background()
	hub := memory.NewHub()
	affirm := false
	a := newTab(hub, "A", "S1", tabOptions{confirm: func(string) bool { return affirm }})
	if err := a.ctrl.Enter(ctx, "IDENT1"); err != nil {
		t.Fatalf("enter: %v", err)
	}

	if leave, err := a.ctrl.NavigateBack(ctx); !leave || err != nil {
		t.Fatalf("leaving before a mode is chosen should be free, got %v %v", leave, err)
	}
	if entry, err := a.ctrl.RequestEnd(ctx); entry != nil || err != nil {
		t.Fatalf("end request before a mode is chosen is ignored, got %+v %v", entry, err)
	}

	_ = a.ctrl.SelectMode(ctx, domain.ModeMCQ)
	if leave, _ := a.ctrl.NavigateBack(ctx); leave {
		t.Fatalf("declined back navigation must stay")
	}
	if entry, _ := a.ctrl.RequestEnd(ctx); entry != nil {
		t.Fatalf("declined end request must not submit")
	}

	affirm = true
	entry, err := a.ctrl.RequestEnd(ctx)
	if err != nil || entry == nil {
		t.Fatalf("affirmed end request should submit, got %+v %v", entry, err)
	}
	if a.ctrl.State() != app.StateEnded {
		t.Fatalf("expected ended, got %s", a.ctrl.State())
	}
	if _, err := a.ctrl.Answer(ctx, "B"); !errors.Is(err, domain.ErrNotActive) {
		t.Fatalf("answer after end should fail, got %v", err)
	}
}

func TestCloseKeepsSnapshotForResume(t *testing.T) {
	ctx := context.Background()
	hub := memory.NewHub()
	a := newTab(hub, "A", "S1", tabOptions{})
	if err := a.ctrl.Enter(ctx, "IDENT1"); err != nil {
		t.Fatalf("enter: %v", err)
	}
	_ = a.ctrl.SelectMode(ctx, domain.ModeMCQ)
	_, _ = a.ctrl.Answer(ctx, "B")
	_, _ = a.ctrl.Navigate(ctx, 2)
	a.ctrl.Close(ctx)

	if _, ok := a.locks.Current(ctx); ok {
		t.Fatalf("close should release the lock")
	}

	// reload: same tab and session, fresh controller
	again := newTab(hub, "A", "S1", tabOptions{})
	defer again.ctrl.Close(ctx)
	if err := again.ctrl.Enter(ctx, "IDENT1"); err != nil {
		t.Fatalf("re-enter: %v", err)
	}
	p := again.ctrl.Progress()
	if _, idx, _ := p.Current(); idx != 2 || p.Answered() != 1 {
		t.Fatalf("expected resumed cursor 2 with 1 answer, got %d/%d", idx, p.Answered())
	}
}

func TestLoadFailureEndsView(t *testing.T) {
	ctx := context.Background()
	hub := memory.NewHub()
	noImages := sampleBank("IDENT1", 2)
	for i := range noImages {
		noImages[i].ImageURL = ""
	}
	a := newTab(hub, "A", "S1", tabOptions{questions: noImages})

	err := a.ctrl.Enter(ctx, "IDENT1")
	if !errors.Is(err, domain.ErrNoQuestionsAvailable) {
		t.Fatalf("expected no questions, got %v", err)
	}
	if a.ctrl.State() != app.StateEnded {
		t.Fatalf("expected ended, got %s", a.ctrl.State())
	}
	if _, ok := a.locks.Current(ctx); ok {
		t.Fatalf("lock should be released after a failed load")
	}
}

func TestRenewKeepsLockAlive(t *testing.T) {
	ctx := context.Background()
	hub := memory.NewHub()
	a := newTab(hub, "A", "S1", tabOptions{})
	defer a.ctrl.Close(ctx)
	if err := a.ctrl.Enter(ctx, "IDENT1"); err != nil {
		t.Fatalf("enter: %v", err)
	}
	first, _ := a.locks.Current(ctx)
	waitFor(t, time.Second, func() bool {
		rec, _ := a.locks.Current(ctx)
		return rec.Timestamp > first.Timestamp
	})
}

// slowRecheck leaves room to write shared state between Enter and the recheck.
func slowRecheck() *app.Timing {
	timing := controllerTiming()
	timing.RecheckDelay = 300 * time.Millisecond
	return &timing
}

// futureLock writes a live lock for session through store, dated ahead so that
// any lock already present looks stale to it.
func futureLock(t *testing.T, store app.SignalStore, session, tabID string) {
	t.Helper()
	clock := newFakeClock()
	clock.t = time.Now().Add(time.Minute)
	locks := app.NewLockManagerWithClock(store, controllerTiming(), clock.Now)
	if !locks.TryAcquire(context.Background(), session, tabID, "IDENT1") {
		t.Fatalf("lock for %s should be taken", session)
	}
}

func TestRecheckDeniesLateForeignLock(t *testing.T) {
	ctx := context.Background()
	hub := memory.NewHub()
	a := newTab(hub, "A", "S1", tabOptions{timing: slowRecheck()})

	if err := a.ctrl.Enter(ctx, "IDENT1"); err != nil {
		t.Fatalf("enter: %v", err)
	}
	// written through A's own context, so no change notification reaches A
	futureLock(t, hub.Context("A"), "other", "B")
	if a.ctrl.State() != app.StateActive {
		t.Fatalf("view must stay active until the recheck, got %s", a.ctrl.State())
	}

	o := waitDone(t, a.ctrl)
	if o.Reason != domain.ReasonMultiTabActive || o.Result != nil {
		t.Fatalf("unexpected outcome %+v", o)
	}
	var denied *domain.AccessDeniedError
	if !errors.As(o.Err, &denied) || !errors.Is(o.Err, domain.ErrLockDenied) {
		t.Fatalf("expected lock denial, got %v", o.Err)
	}
	if rec, _ := a.locks.Current(ctx); rec.SessionID != "other" {
		t.Fatalf("recheck must not release a foreign lock, got %+v", rec)
	}
	if list := a.history.List(ctx, "IDENT1"); len(list) != 0 {
		t.Fatalf("recheck denial must not submit, got %+v", list)
	}
}

func TestRecheckDeniesLateSecondTab(t *testing.T) {
	ctx := context.Background()
	hub := memory.NewHub()
	a := newTab(hub, "A", "S1", tabOptions{heartbeats: true, timing: slowRecheck()})
	a.heartbeats.Touch(ctx)

	if err := a.ctrl.Enter(ctx, "IDENT1"); err != nil {
		t.Fatalf("enter: %v", err)
	}
	app.NewHeartbeatRegistry(hub.Context("A"), "B", controllerTiming()).Touch(ctx)

	o := waitDone(t, a.ctrl)
	if o.Reason != domain.ReasonMultiTabCount || o.Result != nil || !errors.Is(o.Err, domain.ErrTooManyTabs) {
		t.Fatalf("unexpected outcome %+v", o)
	}
	if _, ok := a.locks.Current(ctx); ok {
		t.Fatalf("own lock should be released after a recheck denial")
	}
}

// staleLockRead hides the first lock read, as if another tab's write had not landed yet.
type staleLockRead struct {
	app.SignalStore
	mu     sync.Mutex
	hidden bool
}

func (s *staleLockRead) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	hide := key == app.LockKey && !s.hidden
	if hide {
		s.hidden = true
	}
	s.mu.Unlock()
	if hide {
		return "", false, nil
	}
	return s.SignalStore.Get(ctx, key)
}

func TestSimultaneousAcquireLeavesOneWinner(t *testing.T) {
	ctx := context.Background()
	hub := memory.NewHub()
	a := newTab(hub, "A", "S1", tabOptions{})
	b := newTab(hub, "B", "S2", tabOptions{wrap: func(s app.SignalStore) app.SignalStore {
		return &staleLockRead{SignalStore: s}
	}})
	defer b.ctrl.Close(ctx)

	if err := a.ctrl.Enter(ctx, "IDENT1"); err != nil {
		t.Fatalf("enter A: %v", err)
	}
	if err := b.ctrl.Enter(ctx, "IDENT1"); err != nil {
		t.Fatalf("enter B: %v", err)
	}

	o := waitDone(t, a.ctrl)
	if o.Reason != domain.ReasonMultiTab {
		t.Fatalf("expected the first tab to lose with multi_tab, got %+v", o)
	}
	time.Sleep(3*controllerTiming().RecheckDelay + 2*controllerTiming().HeartbeatInterval)
	if b.ctrl.State() != app.StateActive {
		t.Fatalf("winner should stay active, got %s %+v", b.ctrl.State(), b.ctrl.Outcome())
	}
	if rec, _ := b.locks.Current(ctx); rec.SessionID != "S2" {
		t.Fatalf("winner should own the lock, got %+v", rec)
	}
}

// blockingSource holds a fetch until release is closed.
type blockingSource struct {
	started chan struct{}
	release chan struct{}
	fakeSource
}

func (s *blockingSource) FetchRandomQuestions(ctx context.Context, category string, limit int) ([]domain.Question, error) {
	close(s.started)
	<-s.release
	return s.fakeSource.FetchRandomQuestions(ctx, category, limit)
}

func TestForcedOutWhileLoading(t *testing.T) {
	ctx := context.Background()
	hub := memory.NewHub()
	src := &blockingSource{
		started:    make(chan struct{}),
		release:    make(chan struct{}),
		fakeSource: fakeSource{questions: sampleBank("IDENT1", 3)},
	}
	a := newTab(hub, "A", "S1", tabOptions{source: src})

	errc := make(chan error, 1)
	go func() { errc <- a.ctrl.Enter(ctx, "IDENT1") }()
	<-src.started

	futureLock(t, hub.Context("B"), "other", "B")
	if o := waitDone(t, a.ctrl); o.Reason != domain.ReasonMultiTab || o.Result != nil {
		t.Fatalf("unexpected outcome %+v", o)
	}
	close(src.release)

	err := <-errc
	var denied *domain.AccessDeniedError
	if !errors.As(err, &denied) || denied.Reason != domain.ReasonMultiTab {
		t.Fatalf("expected multi_tab denial from Enter, got %v", err)
	}
	if a.ctrl.Progress() != nil {
		t.Fatalf("late load result must be dropped")
	}
}

func TestClosedWhileLoading(t *testing.T) {
	ctx := context.Background()
	hub := memory.NewHub()
	src := &blockingSource{
		started:    make(chan struct{}),
		release:    make(chan struct{}),
		fakeSource: fakeSource{questions: sampleBank("IDENT1", 3)},
	}
	a := newTab(hub, "A", "S1", tabOptions{source: src})

	errc := make(chan error, 1)
	go func() { errc <- a.ctrl.Enter(ctx, "IDENT1") }()
	<-src.started
	a.ctrl.Close(ctx)
	close(src.release)

	if err := <-errc; !errors.Is(err, domain.ErrNotActive) {
		t.Fatalf("expected not active, got %v", err)
	}
}

func TestPromptDoesNotBlockForcedSubmission(t *testing.T) {
	ctx := context.Background()
	hub := memory.NewHub()
	var a *tab
	var seen app.ControllerState
	a = newTab(hub, "A", "S1", tabOptions{confirm: func(string) bool {
		seen = a.ctrl.State()
		futureLock(t, hub.Context("B"), "other", "B")
		waitDone(t, a.ctrl)
		return true
	}})

	if err := a.ctrl.Enter(ctx, "IDENT1"); err != nil {
		t.Fatalf("enter: %v", err)
	}
	_ = a.ctrl.SelectMode(ctx, domain.ModeMCQ)
	_, _ = a.ctrl.Answer(ctx, "B")
	time.Sleep(3 * controllerTiming().RecheckDelay)

	entry, err := a.ctrl.Submit(ctx)
	if entry != nil || !errors.Is(err, domain.ErrNotActive) {
		t.Fatalf("submit after forced end: %+v %v", entry, err)
	}
	if seen != app.StateActive {
		t.Fatalf("prompt should observe the active state, got %s", seen)
	}
	o := a.ctrl.Outcome()
	if o.Reason != domain.ReasonMultiTab || o.Result == nil || o.Result.Answered != 1 {
		t.Fatalf("unexpected outcome %+v", o)
	}
	if list := a.history.List(ctx, "IDENT1"); len(list) != 1 {
		t.Fatalf("expected exactly one history entry, got %+v", list)
	}
}
