package app

import (
	"strings"
	"unicode"

	"fge-test-platform/internal/domain"
)

// normalizeAnswer lowercases s and drops everything that is not a letter or digit.
func normalizeAnswer(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// IsCorrect accepts either the correct option key or the correct option's text,
// both compared after normalization. MCQ keys and free text go through the same path.
func IsCorrect(q domain.Question, value string) bool {
	got := normalizeAnswer(value)
	if got == "" {
		return false
	}
	key := strings.ToUpper(strings.TrimSpace(q.CorrectAnswer))
	if key == "" {
		return false
	}
	if got == strings.ToLower(key) {
		return true
	}
	want := normalizeAnswer(q.Options[key])
	return want != "" && got == want
}
