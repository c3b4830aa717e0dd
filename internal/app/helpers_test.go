package app_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"fge-test-platform/internal/app"
	"fge-test-platform/internal/domain"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// fakeSource serves a fixed question set and counts fetches.
type fakeSource struct {
	mu        sync.Mutex
	questions []domain.Question
	err       error
	calls     int
}

func (s *fakeSource) FetchRandomQuestions(_ context.Context, _ string, limit int) ([]domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := append([]domain.Question(nil), s.questions...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingSink struct {
	mu      sync.Mutex
	entries []domain.HistoryEntry
}

func (s *recordingSink) RecordResult(_ context.Context, entry domain.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *recordingSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// sampleBank returns n questions whose correct answer is always option B.
func sampleBank(category string, n int) []domain.Question {
	out := make([]domain.Question, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, domain.Question{
			ID:   fmt.Sprintf("%s-%d", category, i),
			Text: fmt.Sprintf("Question %d", i),
			Options: map[string]string{
				"A": "Lyon",
				"B": "Paris",
				"C": "Nice",
				"D": "Lille",
			},
			CorrectAnswer: "B",
			ImageURL:      fmt.Sprintf("/uploads/%d.png", i),
			Category:      category,
		})
	}
	return out
}

func testTiming() app.Timing {
	return app.Timing{
		HeartbeatInterval: 20 * time.Millisecond,
		TTL:               200 * time.Millisecond,
		RecheckDelay:      50 * time.Millisecond,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}
