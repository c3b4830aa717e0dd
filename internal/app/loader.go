package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fge-test-platform/internal/domain"
)

// DefaultQuestionLimit is the number of questions in one quiz.
const DefaultQuestionLimit = 10

// QuestionSource fetches a random question set for a category.
// It returns domain.ErrNotFound when the category has no questions.
type QuestionSource interface {
	FetchRandomQuestions(ctx context.Context, category string, limit int) ([]domain.Question, error)
}

// ProgressLoader resumes a persisted quiz or starts a fresh one.
type ProgressLoader struct {
	source    QuestionSource
	snapshots *SnapshotStore
	history   *HistoryStore
	limit     int
	now       func() time.Time
}

func NewProgressLoader(source QuestionSource, snapshots *SnapshotStore, history *HistoryStore, limit int) *ProgressLoader {
	return NewProgressLoaderWithClock(source, snapshots, history, limit, time.Now)
}

// NewProgressLoaderWithClock is used by tests for deterministic timestamps.
func NewProgressLoaderWithClock(source QuestionSource, snapshots *SnapshotStore, history *HistoryStore, limit int, now func() time.Time) *ProgressLoader {
	if limit <= 0 {
		limit = DefaultQuestionLimit
	}
	return &ProgressLoader{
		source:    source,
		snapshots: snapshots,
		history:   history,
		limit:     limit,
		now:       now,
	}
}

// Load restores the category's snapshot when every cached question still carries an
// image, and otherwise fetches, filters and deduplicates a fresh set. Nothing is
// persisted here; the caller decides whether the result is still wanted.
func (l *ProgressLoader) Load(ctx context.Context, category string) (*Progress, error) {
	if snap, ok := l.snapshots.Load(ctx, category); ok {
		questions := dedupeQuestions(snap.Questions)
		if len(questions) > 0 && allHaveImages(questions) {
			return restoreProgress(category, snap, questions, l.snapshots, l.history, l.now), nil
		}
	}

	fetched, err := l.source.FetchRandomQuestions(ctx, category, l.limit)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrNoQuestionsAvailable) {
			return nil, fmt.Errorf("%w: category %s", domain.ErrNoQuestionsAvailable, category)
		}
		if errors.Is(err, domain.ErrFetchFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}

	withImages := make([]domain.Question, 0, len(fetched))
	for _, q := range fetched {
		if q.ImageURL != "" {
			withImages = append(withImages, q)
		}
	}
	questions := dedupeQuestions(withImages)
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: no questions with images for category %s", domain.ErrNoQuestionsAvailable, category)
	}
	return newProgress(category, questions, l.snapshots, l.history, l.now), nil
}

// dedupeQuestions keeps the first occurrence of each id and drops id-less entries.
func dedupeQuestions(in []domain.Question) []domain.Question {
	seen := make(map[string]struct{}, len(in))
	out := make([]domain.Question, 0, len(in))
	for _, q := range in {
		if q.ID == "" {
			continue
		}
		if _, dup := seen[q.ID]; dup {
			continue
		}
		seen[q.ID] = struct{}{}
		out = append(out, q)
	}
	return out
}

func allHaveImages(questions []domain.Question) bool {
	for _, q := range questions {
		if q.ImageURL == "" {
			return false
		}
	}
	return true
}
