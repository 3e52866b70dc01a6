package http

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/academy/internal/quiz"
)

func (d Deps) createQuiz(w http.ResponseWriter, r *http.Request, courseID string, in quiz.QuizInput) {
	qz, err := in.Build(courseID, d.DefaultMaxAttempts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := d.Quizzes.CreateQuiz(r.Context(), qz)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func CreateQuizHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := chi.URLParam(r, "courseID")
		if err := d.canManage(r.Context(), caller(r), courseID); err != nil {
			writeError(w, r, err)
			return
		}
		var in quiz.QuizInput
		if err := decode(r, &in); err != nil {
			writeError(w, r, err)
			return
		}
		d.createQuiz(w, r, courseID, in)
	}
}

// ImportQuizHandler accepts a YAML (or JSON) quiz document as the raw body.
func ImportQuizHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := chi.URLParam(r, "courseID")
		if err := d.canManage(r.Context(), caller(r), courseID); err != nil {
			writeError(w, r, err)
			return
		}
		in, err := quiz.Import(io.LimitReader(r.Body, maxBody))
		if err != nil {
			writeError(w, r, badRequest("%v", err))
			return
		}
		if err := check(&in); err != nil {
			writeError(w, r, err)
			return
		}
		d.createQuiz(w, r, courseID, in)
	}
}

// loadManagedQuiz fetches a quiz and checks the caller may manage its course.
func (d Deps) loadManagedQuiz(ctx context.Context, a access, quizID string) (quiz.Quiz, error) {
	q, err := d.Quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return quiz.Quiz{}, err
	}
	if err := d.canManage(ctx, a, q.CourseID); err != nil {
		return quiz.Quiz{}, err
	}
	return q, nil
}

// GetQuizHandler returns the full quiz to course staff and the answer-free
// view to enrolled students. Unpublished quizzes are hidden from students.
func GetQuizHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a := caller(r)
		q, err := d.Quizzes.GetQuiz(r.Context(), chi.URLParam(r, "quizID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !a.isStudent() {
			if err := d.canManage(r.Context(), a, q.CourseID); err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, q)
			return
		}
		if err := d.canView(r.Context(), a, q.CourseID); err != nil {
			writeError(w, r, err)
			return
		}
		if !q.Published {
			writeError(w, r, quiz.ErrNotFound)
			return
		}
		writeJSON(w, http.StatusOK, q.StudentView())
	}
}

func AddQuestionHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := d.loadManagedQuiz(r.Context(), caller(r), chi.URLParam(r, "quizID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		var in quiz.QuestionInput
		if err := decode(r, &in); err != nil {
			writeError(w, r, err)
			return
		}
		qu, err := in.Normalize()
		if err != nil {
			writeError(w, r, err)
			return
		}
		added, err := d.Quizzes.AddQuestion(r.Context(), q.ID, qu)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, added)
	}
}

// UpdateQuestionHandler edits a question that no result references yet.
func UpdateQuestionHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := d.loadManagedQuiz(r.Context(), caller(r), chi.URLParam(r, "quizID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		questionID := chi.URLParam(r, "questionID")
		found := false
		for _, qu := range q.Questions {
			found = found || qu.ID == questionID
		}
		if !found {
			writeError(w, r, quiz.ErrQuestionNotFound)
			return
		}
		var in quiz.QuestionInput
		if err := decode(r, &in); err != nil {
			writeError(w, r, err)
			return
		}
		qu, err := in.Normalize()
		if err != nil {
			writeError(w, r, err)
			return
		}
		qu.ID = questionID
		updated, err := d.Quizzes.UpdateQuestion(r.Context(), qu)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

type publishReq struct {
	Published *bool `json:"published" validate:"required"`
}

func PublishQuizHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := d.loadManagedQuiz(r.Context(), caller(r), chi.URLParam(r, "quizID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		var req publishReq
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		if err := d.Quizzes.SetPublished(r.Context(), q.ID, *req.Published); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// DeleteQuizHandler refuses quizzes that already have results.
func DeleteQuizHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := d.loadManagedQuiz(r.Context(), caller(r), chi.URLParam(r, "quizID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := d.Quizzes.DeleteQuiz(r.Context(), q.ID); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
