package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"fge-test-platform/internal/domain"
)

// ControllerState is the lifecycle of one quiz view: Idle -> CheckingAccess -> Active -> Ended.
type ControllerState int

const (
	StateIdle ControllerState = iota
	StateCheckingAccess
	StateActive
	StateEnded
)

func (s ControllerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCheckingAccess:
		return "checking_access"
	case StateActive:
		return "active"
	case StateEnded:
		return "ended"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// IdentityProvider exposes the current auth token or guest marker. Empty means signed out.
type IdentityProvider interface {
	Current() string
}

// ResultSink receives submitted history entries.
type ResultSink interface {
	RecordResult(ctx context.Context, entry domain.HistoryEntry) error
}

// ConfirmFunc asks the user to affirm an intent and reports the answer.
type ConfirmFunc func(prompt string) bool

const (
	promptEndTest = "Do you want to end the test and submit?"
	promptPartial = "You answered %d/%d. Do you want to end the test and submit?"
)

// Outcome describes how a quiz view ended.
// Reason is set for redirects and forced submissions, Result for any submission.
type Outcome struct {
	Reason domain.Reason
	Result *domain.HistoryEntry
	Err    error
}

// ControllerDeps wires a Controller. Results and Confirm are optional; a nil
// Confirm affirms every prompt.
type ControllerDeps struct {
	Identity   IdentityProvider
	Heartbeats *HeartbeatRegistry
	Locks      *LockManager
	Loader     *ProgressLoader
	Results    ResultSink
	Confirm    ConfirmFunc
	TabID      string
	SessionID  string
	Timing     Timing
}

// Controller arbitrates a single active quiz across tabs and drives its progress.
// Store notifications arrive on other goroutines; every transition happens under mu.
type Controller struct {
	identity   IdentityProvider
	heartbeats *HeartbeatRegistry
	locks      *LockManager
	loader     *ProgressLoader
	results    ResultSink
	confirm    ConfirmFunc
	tabID      string
	sessionID  string
	timing     Timing

	mu       sync.Mutex
	state    ControllerState
	category string
	progress *Progress
	outcome  Outcome
	stopRun  context.CancelFunc
	cancels  []func()
	recheck  *time.Timer
	done     chan struct{}
}

func NewController(deps ControllerDeps) *Controller {
	confirm := deps.Confirm
	if confirm == nil {
		confirm = func(string) bool { return true }
	}
	return &Controller{
		identity:   deps.Identity,
		heartbeats: deps.Heartbeats,
		locks:      deps.Locks,
		loader:     deps.Loader,
		results:    deps.Results,
		confirm:    confirm,
		tabID:      deps.TabID,
		sessionID:  deps.SessionID,
		timing:     deps.Timing,
		state:      StateIdle,
		done:       make(chan struct{}),
	}
}

// Enter checks tab count and lock for category, then resumes or starts its quiz.
// Denials return a *domain.AccessDeniedError carrying the redirect reason, also
// when exclusivity is lost while questions are still loading. A view closed
// during loading reports ErrNotActive. Load failures end the view; retrying
// means entering with a new Controller.
func (c *Controller) Enter(ctx context.Context, category string) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return fmt.Errorf("%w: already entered", domain.ErrNotActive)
	}
	c.category = category
	if c.identity == nil || c.identity.Current() == "" {
		c.endLocked(Outcome{Err: domain.ErrUnauthenticated})
		c.mu.Unlock()
		return domain.ErrUnauthenticated
	}

	c.state = StateCheckingAccess
	if reason, ok := c.checkAccessLocked(ctx); !ok {
		err := &domain.AccessDeniedError{Reason: reason}
		c.endLocked(Outcome{Reason: reason, Err: err})
		c.mu.Unlock()
		return err
	}
	c.activateLocked()
	c.mu.Unlock()

	progress, err := c.loader.Load(ctx, category)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive {
		// forced out or closed while loading; drop the result
		switch {
		case c.outcome.Err != nil:
			return c.outcome.Err
		case c.outcome.Reason != domain.ReasonNone:
			return &domain.AccessDeniedError{Reason: c.outcome.Reason}
		default:
			return fmt.Errorf("%w: closed while loading", domain.ErrNotActive)
		}
	}
	if err != nil {
		c.teardownLocked()
		c.endLocked(Outcome{Err: err})
		return err
	}
	c.progress = progress
	progress.persist(ctx)
	return nil
}

func (c *Controller) checkAccessLocked(ctx context.Context) (domain.Reason, bool) {
	if c.heartbeats != nil && c.heartbeats.LiveTabCount(ctx) > 1 {
		return domain.ReasonMultiTabCount, false
	}
	if !c.locks.TryAcquire(ctx, c.sessionID, c.tabID, c.category) {
		return domain.ReasonMultiTabActive, false
	}
	return "", true
}

func (c *Controller) activateLocked() {
	runCtx, stop := context.WithCancel(context.Background())
	c.stopRun = stop
	c.state = StateActive

	if cancel, err := c.locks.OnExternalChange(runCtx, c.onLockChange); err != nil {
		log.Printf("controller: watch lock: %v", err)
	} else {
		c.cancels = append(c.cancels, cancel)
	}
	if c.heartbeats != nil {
		if cancel, err := c.heartbeats.OnChange(runCtx, c.onHeartbeatChange); err != nil {
			log.Printf("controller: watch heartbeats: %v", err)
		} else {
			c.cancels = append(c.cancels, cancel)
		}
	}

	go c.renew(runCtx, c.category)
	c.recheck = time.AfterFunc(c.timing.RecheckDelay, c.recheckAccess)
}

func (c *Controller) renew(ctx context.Context, category string) {
	ticker := time.NewTicker(c.timing.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.locks.Renew(ctx, c.sessionID, c.tabID, category)
		}
	}
}

// recheckAccess repeats the access check once, catching a heartbeat or lock
// write from another tab that had not landed at Enter time.
func (c *Controller) recheckAccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive {
		return
	}
	if reason, ok := c.checkAccessLocked(context.Background()); !ok {
		log.Printf("controller: recheck denied %s: %s", c.category, reason)
		c.teardownLocked()
		c.endLocked(Outcome{Reason: reason, Err: &domain.AccessDeniedError{Reason: reason}})
	}
}

func (c *Controller) onLockChange(rec *domain.LockRecord) {
	if rec == nil || !c.locks.IsForeign(*rec, c.sessionID) {
		return
	}
	c.forceSubmit(domain.ReasonMultiTab)
}

func (c *Controller) onHeartbeatChange() {
	if c.heartbeats.LiveTabCount(context.Background()) > 1 {
		c.forceSubmit(domain.ReasonMultiTabCount)
	}
}

// forceSubmit ends an active quiz without confirmation after losing exclusivity.
func (c *Controller) forceSubmit(reason domain.Reason) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return
	}
	log.Printf("controller: forced submission of %s: %s", c.category, reason)
	var result *domain.HistoryEntry
	if c.progress != nil {
		if entry, err := c.progress.Submit(ctx, reason); err == nil {
			result = &entry
		}
	}
	c.teardownLocked()
	c.endLocked(Outcome{Reason: reason, Result: result})
	c.mu.Unlock()

	c.report(ctx, result)
}

// Submit ends the quiz. With unanswered questions it asks for confirmation first
// and returns a nil entry when the user declines. Prompts run without holding the
// controller lock, so a forced submission may end the view meanwhile; Submit then
// reports ErrNotActive.
func (c *Controller) Submit(ctx context.Context) (*domain.HistoryEntry, error) {
	c.mu.Lock()
	p, err := c.activeProgressLocked()
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if _, ok := p.Mode(); !ok {
		c.mu.Unlock()
		return nil, domain.ErrModeNotSelected
	}
	_, _, total := p.Current()
	answered := p.Answered()
	c.mu.Unlock()

	if answered < total && !c.confirm(fmt.Sprintf(promptPartial, answered, total)) {
		return nil, nil
	}
	return c.finish(ctx)
}

// RequestEnd handles an end request from outside the quiz view. It is ignored
// until a mode is chosen and submits only if the user affirms.
func (c *Controller) RequestEnd(ctx context.Context) (*domain.HistoryEntry, error) {
	selected, err := c.modeSelected()
	if err != nil {
		return nil, err
	}
	if !selected || !c.confirm(promptEndTest) {
		return nil, nil
	}
	return c.finish(ctx)
}

// NavigateBack reports whether leaving the quiz view may proceed. Once a mode is
// chosen the user must affirm, which submits; declining keeps the view and its lock.
func (c *Controller) NavigateBack(ctx context.Context) (bool, error) {
	selected, err := c.modeSelected()
	if err != nil || !selected {
		return true, nil
	}
	if !c.confirm(promptEndTest) {
		return false, nil
	}
	if _, err := c.finish(ctx); err != nil && !errors.Is(err, domain.ErrNotActive) {
		return true, err
	}
	return true, nil
}

func (c *Controller) modeSelected() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, err := c.activeProgressLocked()
	if err != nil {
		return false, err
	}
	_, ok := p.Mode()
	return ok, nil
}

// finish submits after a prompt, provided the view is still active.
func (c *Controller) finish(ctx context.Context) (*domain.HistoryEntry, error) {
	c.mu.Lock()
	if _, err := c.activeProgressLocked(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	entry, err := c.finishLocked(ctx)
	c.mu.Unlock()

	c.report(ctx, entry)
	return entry, err
}

// Close tears the view down without submitting. The lock is released if still
// owned; the snapshot stays so a later visit resumes.
func (c *Controller) Close(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateEnded {
		return
	}
	c.teardownLocked()
	c.endLocked(Outcome{})
}

func (c *Controller) finishLocked(ctx context.Context) (*domain.HistoryEntry, error) {
	entry, err := c.progress.Submit(ctx, domain.ReasonNone)
	c.teardownLocked()
	if err != nil {
		c.endLocked(Outcome{Err: err})
		return nil, err
	}
	c.endLocked(Outcome{Result: &entry})
	return &entry, nil
}

func (c *Controller) teardownLocked() {
	if c.recheck != nil {
		c.recheck.Stop()
	}
	for _, cancel := range c.cancels {
		cancel()
	}
	c.cancels = nil
	if c.stopRun != nil {
		c.stopRun()
	}
	if c.state == StateActive || c.state == StateCheckingAccess {
		c.locks.Release(context.Background(), c.sessionID, c.tabID)
	}
}

func (c *Controller) endLocked(o Outcome) {
	if c.state == StateEnded {
		return
	}
	c.state = StateEnded
	c.outcome = o
	close(c.done)
}

func (c *Controller) report(ctx context.Context, entry *domain.HistoryEntry) {
	if c.results == nil || entry == nil {
		return
	}
	if err := c.results.RecordResult(ctx, *entry); err != nil {
		log.Printf("controller: record result: %v", err)
	}
}

func (c *Controller) activeProgressLocked() (*Progress, error) {
	if c.state != StateActive || c.progress == nil {
		return nil, domain.ErrNotActive
	}
	return c.progress, nil
}

// SelectMode chooses mcq or input for the active quiz.
func (c *Controller) SelectMode(ctx context.Context, mode domain.Mode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, err := c.activeProgressLocked()
	if err != nil {
		return err
	}
	return p.SelectMode(ctx, mode)
}

// Answer records value for the current question; only the first answer counts.
func (c *Controller) Answer(ctx context.Context, value string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, err := c.activeProgressLocked()
	if err != nil {
		return false, err
	}
	q, _, _ := p.Current()
	return p.RecordAnswer(ctx, q.ID, value)
}

// SetDraft stores free text typed for the current question.
func (c *Controller) SetDraft(value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, err := c.activeProgressLocked()
	if err != nil {
		return err
	}
	q, _, _ := p.Current()
	p.SetDraft(q.ID, value)
	return nil
}

// CheckDraft records the current question's draft as its answer.
func (c *Controller) CheckDraft(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, err := c.activeProgressLocked()
	if err != nil {
		return false, err
	}
	q, _, _ := p.Current()
	return p.RecordAnswer(ctx, q.ID, p.Draft(q.ID))
}

// Navigate moves the cursor by delta within the question range.
func (c *Controller) Navigate(ctx context.Context, delta int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, err := c.activeProgressLocked()
	if err != nil {
		return 0, err
	}
	return p.Navigate(ctx, delta)
}

// Progress returns the loaded quiz, or nil before loading.
func (c *Controller) Progress() *Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

func (c *Controller) State() ControllerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed when the view ends.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Outcome is meaningful once Done is closed.
func (c *Controller) Outcome() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome
}
