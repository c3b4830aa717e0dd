package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoQuestionsAvailable is returned when a fetch yields no usable questions.
	ErrNoQuestionsAvailable = errors.New("no questions available")
	// ErrFetchFailed wraps network and server failures of the question source.
	ErrFetchFailed = errors.New("failed to load questions")
	// ErrNotFound is returned by question sources when a category has no questions.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCategory indicates a category outside the known set.
	ErrInvalidCategory = errors.New("invalid category")
	// ErrLockDenied indicates another live session owns the quiz lock.
	ErrLockDenied = errors.New("another test session is active")
	// ErrTooManyTabs indicates more than one live tab was detected.
	ErrTooManyTabs = errors.New("multiple tabs open")
	// ErrUnauthenticated is returned when no identity is available.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrQuestionNotFound indicates an answer targeted an unknown question.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidAnswer indicates an mcq answer that is not one of the question's option keys.
	ErrInvalidAnswer = errors.New("invalid answer")
	// ErrModeNotSelected is returned when answering before choosing a mode.
	ErrModeNotSelected = errors.New("answer mode not selected")
	// ErrInvalidMode indicates an unknown answer mode or a second mode selection.
	ErrInvalidMode = errors.New("invalid answer mode")
	// ErrAlreadySubmitted is returned by mutations after submission.
	ErrAlreadySubmitted = errors.New("quiz already submitted")
	// ErrNotActive is returned by controller operations outside the active state.
	ErrNotActive = errors.New("quiz is not active")
)

// AccessDeniedError carries the redirect reason when a quiz cannot be entered.
type AccessDeniedError struct {
	Reason Reason
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Unwrap().Error(), e.Reason)
}

// Unwrap enables errors.Is checks against ErrTooManyTabs and ErrLockDenied.
func (e *AccessDeniedError) Unwrap() error {
	if e.Reason == ReasonMultiTabCount {
		return ErrTooManyTabs
	}
	return ErrLockDenied
}
