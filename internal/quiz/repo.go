package quiz

import (
	"context"
	"errors"

	"github.com/mind-engage/academy/internal/db"
)

var (
	ErrNotFound         = errors.New("quiz not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrResultNotFound   = errors.New("result not found")
	// ErrQuestionLocked is returned when editing a question that a stored
	// result already references.
	ErrQuestionLocked = errors.New("question is referenced by submitted results")
	ErrHasResults     = errors.New("quiz has submitted results")
)

type ResultListOpts struct {
	QuizID    string
	StudentID string
	CourseID  string
	Limit     int
	Offset    int
}

type Store interface {
	CreateQuiz(ctx context.Context, q Quiz) (Quiz, error)
	GetQuiz(ctx context.Context, id string) (Quiz, error) // full quiz, with answer keys
	ListQuizzes(ctx context.Context, courseID string) ([]Quiz, error)
	DeleteQuiz(ctx context.Context, id string) error
	SetPublished(ctx context.Context, id string, published bool) error

	AddQuestion(ctx context.Context, quizID string, q Question) (Question, error)
	UpdateQuestion(ctx context.Context, q Question) (Question, error)

	CountResults(ctx context.Context, quizID, studentID string) (int, error)
	InsertResult(ctx context.Context, q db.Querier, r Result) (Result, error)
	GetResult(ctx context.Context, id string) (Result, error)
	ListResults(ctx context.Context, opts ResultListOpts) ([]Result, error)
	BestResult(ctx context.Context, quizID, studentID string) (Result, error)
	Dashboard(ctx context.Context, courseID, studentID string) (Dashboard, error)
}
