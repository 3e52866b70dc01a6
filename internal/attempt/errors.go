package attempt

import (
	"errors"
	"fmt"
)

var (
	ErrMaxAttemptsReached = errors.New("max attempts reached")
	ErrAlreadyStarted     = errors.New("attempt already started")
	ErrSessionNotFound    = errors.New("attempt session not found")
	// ErrSessionClosed is returned when a session was already submitted or
	// expired, including a second submission racing the first.
	ErrSessionClosed = errors.New("attempt session closed")
)

// MaxAttemptsError carries the result the student should be sent to instead
// of a new attempt.
type MaxAttemptsError struct {
	QuizID       string
	Used         int
	Max          int
	BestResultID string
}

func (e *MaxAttemptsError) Error() string {
	return fmt.Sprintf("quiz %s: %d of %d attempts used", e.QuizID, e.Used, e.Max)
}

func (e *MaxAttemptsError) Is(target error) bool { return target == ErrMaxAttemptsReached }

// AlreadyStartedError carries the live session so the caller can resume it.
type AlreadyStartedError struct {
	Session Session
}

func (e *AlreadyStartedError) Error() string {
	return fmt.Sprintf("quiz %s: session %s still running", e.Session.QuizID, e.Session.ID)
}

func (e *AlreadyStartedError) Is(target error) bool { return target == ErrAlreadyStarted }
