package app

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"fge-test-platform/internal/domain"
)

// Stage is the progress state: NotStarted, ModeSelected, InProgress or Submitted.
type Stage interface {
	stageName() string
}

type NotStarted struct{}

type ModeSelected struct{ Mode domain.Mode }

type InProgress struct{ Mode domain.Mode }

type Submitted struct{ Result domain.HistoryEntry }

func (NotStarted) stageName() string { return "not_started" }
func (ModeSelected) stageName() string { return "mode_selected" }
func (InProgress) stageName() string { return "in_progress" }
func (Submitted) stageName() string { return "submitted" }

// StageName returns a stable label for logs and UIs.
func StageName(s Stage) string {
	return s.stageName()
}

// Progress holds one category's quiz: question set, cursor, answers and mode.
// Every mutation rewrites the full snapshot to shared storage.
type Progress struct {
	category  string
	snapshots *SnapshotStore
	history   *HistoryStore
	now       func() time.Time

	mu        sync.Mutex
	questions []domain.Question
	index     int
	answers   map[string]string
	drafts    map[string]string
	stage     Stage
}

func newProgress(category string, questions []domain.Question, snapshots *SnapshotStore, history *HistoryStore, now func() time.Time) *Progress {
	return &Progress{
		category:  category,
		snapshots: snapshots,
		history:   history,
		now:       now,
		questions: questions,
		answers:   make(map[string]string),
		drafts:    make(map[string]string),
		stage:     NotStarted{},
	}
}

// restoreProgress rebuilds progress from a snapshot whose questions are already deduplicated.
func restoreProgress(category string, snap domain.Snapshot, questions []domain.Question, snapshots *SnapshotStore, history *HistoryStore, now func() time.Time) *Progress {
	p := newProgress(category, questions, snapshots, history, now)
	known := make(map[string]struct{}, len(questions))
	for _, q := range questions {
		known[q.ID] = struct{}{}
	}
	for id, value := range snap.Answers {
		if _, ok := known[id]; ok {
			p.answers[id] = value
		}
	}
	p.index = clamp(snap.Index, len(questions))
	if snap.Mode != nil && snap.Mode.Valid() {
		if len(p.answers) > 0 || p.index > 0 {
			p.stage = InProgress{Mode: *snap.Mode}
		} else {
			p.stage = ModeSelected{Mode: *snap.Mode}
		}
	}
	return p
}

func (p *Progress) Category() string {
	return p.category
}

// Stage returns the current state.
func (p *Progress) Stage() Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stage
}

// Mode returns the selected mode, if any.
func (p *Progress) Mode() (domain.Mode, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return modeOf(p.stage)
}

// Current returns the question under the cursor with its position.
func (p *Progress) Current() (domain.Question, int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.questions) == 0 {
		return domain.Question{}, 0, 0
	}
	return p.questions[p.index], p.index, len(p.questions)
}

// Answered returns how many questions have an answer.
func (p *Progress) Answered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.answers)
}

// Answer returns the recorded answer for questionID.
func (p *Progress) Answer(questionID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.answers[questionID]
	return v, ok
}

// Snapshot returns a copy of the persisted form.
func (p *Progress) Snapshot() domain.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// SelectMode chooses the answer mode. Only allowed before any mode is set.
func (p *Progress) SelectMode(ctx context.Context, mode domain.Mode) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !mode.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidMode, mode)
	}
	switch p.stage.(type) {
	case NotStarted:
		p.stage = ModeSelected{Mode: mode}
		p.persistLocked(ctx)
		return nil
	case Submitted:
		return domain.ErrAlreadySubmitted
	default:
		return fmt.Errorf("%w: mode already selected", domain.ErrInvalidMode)
	}
}

// RecordAnswer stores value for questionID. The first answer wins; later calls
// return false without changing anything. Input answers are trimmed and blank
// input is ignored. MCQ answers must name a non-empty option of the question,
// otherwise ErrInvalidAnswer is returned and nothing is recorded.
func (p *Progress) RecordAnswer(ctx context.Context, questionID, value string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	mode, err := p.activeModeLocked()
	if err != nil {
		return false, err
	}
	q, ok := p.questionLocked(questionID)
	if !ok {
		return false, domain.ErrQuestionNotFound
	}
	if _, done := p.answers[questionID]; done {
		return false, nil
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return false, nil
	}
	if mode == domain.ModeMCQ {
		value = strings.ToUpper(value)
		if !isOptionKey(q, value) {
			return false, fmt.Errorf("%w: %q", domain.ErrInvalidAnswer, value)
		}
	}
	p.answers[questionID] = value
	delete(p.drafts, questionID)
	p.stage = InProgress{Mode: mode}
	p.persistLocked(ctx)
	return true, nil
}

// SetDraft keeps typed but unchecked input for an unanswered question.
func (p *Progress) SetDraft(questionID, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, done := p.answers[questionID]; done {
		return
	}
	p.drafts[questionID] = value
}

// Draft returns the pending input for questionID.
func (p *Progress) Draft(questionID string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.drafts[questionID]
}

// Navigate moves the cursor by delta, clamped to the question range.
func (p *Progress) Navigate(ctx context.Context, delta int) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch s := p.stage.(type) {
	case Submitted:
		return p.index, domain.ErrAlreadySubmitted
	case ModeSelected:
		p.stage = InProgress{Mode: s.Mode}
	}
	p.index = clamp(p.index+delta, len(p.questions))
	p.persistLocked(ctx)
	return p.index, nil
}

// Submit scores the quiz, records a history entry and clears the persisted snapshot.
// reason is empty for user submissions.
func (p *Progress) Submit(ctx context.Context, reason domain.Reason) (domain.HistoryEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, done := p.stage.(Submitted); done {
		return domain.HistoryEntry{}, domain.ErrAlreadySubmitted
	}
	mode, ok := modeOf(p.stage)
	if !ok {
		mode = domain.ModeMCQ
	}

	correct := 0
	for _, q := range p.questions {
		if value, ok := p.answers[q.ID]; ok && IsCorrect(q, value) {
			correct++
		}
	}
	total := len(p.questions)
	entry := domain.HistoryEntry{
		ID:         NewID("h"),
		Timestamp:  domain.Millis(p.now()),
		Category:   p.category,
		Mode:       mode,
		Total:      total,
		Answered:   len(p.answers),
		Correct:    correct,
		Percentage: percentage(correct, total),
		Reason:     reason,
	}

	p.history.Append(ctx, entry)
	p.snapshots.Clear(ctx, p.category)
	p.stage = Submitted{Result: entry}
	return entry, nil
}

// persist writes the current snapshot unless the quiz is over.
func (p *Progress) persist(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.persistLocked(ctx)
}

func (p *Progress) persistLocked(ctx context.Context) {
	if _, done := p.stage.(Submitted); done || len(p.questions) == 0 {
		return
	}
	p.snapshots.Save(ctx, p.category, p.snapshotLocked())
}

func (p *Progress) snapshotLocked() domain.Snapshot {
	answers := make(map[string]string, len(p.answers))
	for k, v := range p.answers {
		answers[k] = v
	}
	snap := domain.Snapshot{
		Questions: append([]domain.Question(nil), p.questions...),
		Index:     p.index,
		Answers:   answers,
		Timestamp: domain.Millis(p.now()),
	}
	if mode, ok := modeOf(p.stage); ok {
		snap.Mode = &mode
	}
	return snap
}

func (p *Progress) activeModeLocked() (domain.Mode, error) {
	switch s := p.stage.(type) {
	case ModeSelected:
		return s.Mode, nil
	case InProgress:
		return s.Mode, nil
	case Submitted:
		return "", domain.ErrAlreadySubmitted
	default:
		return "", domain.ErrModeNotSelected
	}
}

func (p *Progress) questionLocked(id string) (domain.Question, bool) {
	for _, q := range p.questions {
		if q.ID == id {
			return q, true
		}
	}
	return domain.Question{}, false
}

func isOptionKey(q domain.Question, key string) bool {
	for _, k := range domain.OptionKeys {
		if k == key {
			return strings.TrimSpace(q.Options[k]) != ""
		}
	}
	return false
}

func modeOf(s Stage) (domain.Mode, bool) {
	switch s := s.(type) {
	case ModeSelected:
		return s.Mode, true
	case InProgress:
		return s.Mode, true
	case Submitted:
		return s.Result.Mode, true
	}
	return "", false
}

func clamp(i, n int) int {
	if n <= 0 || i < 0 {
		return 0
	}
	if i > n-1 {
		return n - 1
	}
	return i
}

func percentage(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(correct) * 100 / float64(total)))
}
