package attempt

import (
	"context"
	"errors"

	"github.com/mind-engage/academy/internal/quiz"
)

// ResultReader is the slice of the quiz store the tracker needs.
type ResultReader interface {
	CountResults(ctx context.Context, quizID, studentID string) (int, error)
	BestResult(ctx context.Context, quizID, studentID string) (quiz.Result, error)
}

// Tracker decides whether a student may open a quiz. It only reads; a new
// attempt is counted once its result is stored.
type Tracker struct {
	results  ResultReader
	sessions SessionStore
}

func NewTracker(results ResultReader, sessions SessionStore) *Tracker {
	return &Tracker{results: results, sessions: sessions}
}

// CanStart returns nil when a fresh attempt may begin, a *MaxAttemptsError
// when the limit is used up, or an *AlreadyStartedError holding the running
// session to resume.
func (t *Tracker) CanStart(ctx context.Context, q quiz.Quiz, studentID string) error {
	if err := t.CanSubmit(ctx, q, studentID); err != nil {
		return err
	}
	s, err := t.sessions.FindRunning(ctx, q.ID, studentID)
	switch {
	case err == nil:
		return &AlreadyStartedError{Session: s}
	case errors.Is(err, ErrSessionNotFound):
		return nil
	default:
		return err
	}
}

// CanSubmit checks only the attempt limit. Elapsed time is not checked.
func (t *Tracker) CanSubmit(ctx context.Context, q quiz.Quiz, studentID string) error {
	used, err := t.results.CountResults(ctx, q.ID, studentID)
	if err != nil {
		return err
	}
	limit := q.MaxAttempts
	if limit <= 0 {
		limit = 1
	}
	if used < limit {
		return nil
	}
	e := &MaxAttemptsError{QuizID: q.ID, Used: used, Max: limit}
	best, err := t.results.BestResult(ctx, q.ID, studentID)
	switch {
	case err == nil:
		e.BestResultID = best.ID
	case !errors.Is(err, quiz.ErrResultNotFound):
		return err
	}
	return e
}
