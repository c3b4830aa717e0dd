package app

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"fge-test-platform/internal/domain"
)

// Categories lists the question banks, in display order.
var Categories = []string{"IDENT1", "IDENT2", "IDENT3", "IDENT4", "IDENT5", "IDENT6"}

const (
	// MixedCategory draws a revision test from every other bank.
	MixedCategory = "IDENT6"
	mixedPerBank  = 2
	maxLimit      = 100
)

// QuestionRepository abstracts how question banks are stored (in-memory, Redis, Postgres).
type QuestionRepository interface {
	QuestionsByCategory(ctx context.Context, category string) ([]domain.Question, error)
}

// ResultRepository stores submitted results per identity.
type ResultRepository interface {
	SaveResult(ctx context.Context, result domain.TestResult) (domain.TestResult, error)
	ListResults(ctx context.Context, userID string, limit int) ([]domain.TestResult, error)
}

// QuizService contains the backend quiz use cases.
type QuizService struct {
	questions QuestionRepository
	results   ResultRepository
	now       func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuizService(questions QuestionRepository, results ResultRepository) *QuizService {
	return NewQuizServiceWithRand(questions, results, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewQuizServiceWithRand is test-only for deterministic sampling.
func NewQuizServiceWithRand(questions QuestionRepository, results ResultRepository, rnd *rand.Rand) *QuizService {
	return &QuizService{questions: questions, results: results, now: time.Now, rnd: rnd}
}

// ValidCategory reports whether category names a known bank.
func ValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// RandomQuestions samples up to limit questions of category. The mixed category
// takes two from each other bank and shuffles them. language "fr" swaps in the
// French text when one exists.
func (s *QuizService) RandomQuestions(ctx context.Context, category string, limit int, language string) ([]domain.Question, error) {
	if !ValidCategory(category) {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidCategory, category)
	}
	if limit <= 0 || limit > maxLimit {
		limit = maxLimit
	}

	var picked []domain.Question
	if category == MixedCategory {
		for _, bank := range Categories {
			if bank == MixedCategory {
				continue
			}
			questions, err := s.questions.QuestionsByCategory(ctx, bank)
			if err != nil {
				// one missing bank should not sink the revision test
				continue
			}
			picked = append(picked, s.sample(questions, mixedPerBank)...)
		}
		s.shuffle(picked)
	} else {
		questions, err := s.questions.QuestionsByCategory(ctx, category)
		if err != nil {
			return nil, err
		}
		picked = s.sample(questions, limit)
	}
	if len(picked) == 0 {
		return nil, fmt.Errorf("%w: no questions for category %s", domain.ErrNotFound, category)
	}

	out := make([]domain.Question, len(picked))
	for i, q := range picked {
		out[i] = localize(q, language)
	}
	return out, nil
}

// RecordResult stores a submitted history entry for userID.
func (s *QuizService) RecordResult(ctx context.Context, userID string, entry domain.HistoryEntry) (domain.TestResult, error) {
	if !ValidCategory(entry.Category) {
		return domain.TestResult{}, fmt.Errorf("%w: %s", domain.ErrInvalidCategory, entry.Category)
	}
	completed := s.now()
	if entry.Timestamp > 0 {
		completed = time.UnixMilli(entry.Timestamp)
	}
	return s.results.SaveResult(ctx, domain.TestResult{
		UserID:      userID,
		Category:    entry.Category,
		Mode:        entry.Mode,
		Total:       entry.Total,
		Answered:    entry.Answered,
		Correct:     entry.Correct,
		Percentage:  entry.Percentage,
		Reason:      entry.Reason,
		CompletedAt: completed.UTC(),
	})
}

// Results lists userID's most recent results.
func (s *QuizService) Results(ctx context.Context, userID string, limit int) ([]domain.TestResult, error) {
	if limit <= 0 || limit > maxLimit {
		limit = maxLimit
	}
	return s.results.ListResults(ctx, userID, limit)
}

func (s *QuizService) sample(questions []domain.Question, n int) []domain.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.rnd.Perm(len(questions))
	if n > len(idx) {
		n = len(idx)
	}
	out := make([]domain.Question, 0, n)
	for _, i := range idx[:n] {
		out = append(out, questions[i])
	}
	return out
}

func (s *QuizService) shuffle(questions []domain.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rnd.Shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})
}

// localize picks the display language and pins the correct key to A-D, defaulting to A.
func localize(q domain.Question, language string) domain.Question {
	if language == "fr" && q.TextFr != "" {
		q.Text = q.TextFr
	}
	q.TextFr = ""
	key := strings.ToUpper(strings.TrimSpace(q.CorrectAnswer))
	switch key {
	case "A", "B", "C", "D":
	default:
		key = "A"
	}
	q.CorrectAnswer = key
	return q
}
