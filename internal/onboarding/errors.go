package onboarding

import "errors"

var (
	// ErrInvalidSelection means a pick named an item outside the current display set.
	ErrInvalidSelection = errors.New("invalid selection")

	// ErrInvalidTransition means the requested navigation is impossible from
	// the current state: back at the first step, a jump forward, or any
	// change after completion.
	ErrInvalidTransition = errors.New("invalid transition")

	ErrSessionNotFound = errors.New("session not found")
)

// ErrSubmissionPending is returned for every action on a session whose picks
// are out with the recommendation service.
var ErrSubmissionPending = &pendingError{}

type pendingError struct{}

func (*pendingError) Error() string { return "invalid transition: submission in progress" }

func (*pendingError) Unwrap() error { return ErrInvalidTransition }
