package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/academy/internal/quiz"
)

// StartAttemptHandler opens a timed attempt, or resumes the running one with
// its countdown untouched (200 instead of 201).
func StartAttemptHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a := caller(r)
		q, err := d.Quizzes.GetQuiz(r.Context(), chi.URLParam(r, "quizID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := d.canView(r.Context(), a, q.CourseID); err != nil {
			writeError(w, r, err)
			return
		}
		att, err := d.Attempts.Start(r.Context(), q.ID, a.sub)
		if err != nil {
			writeError(w, r, err)
			return
		}
		status := http.StatusCreated
		if att.Resumed {
			status = http.StatusOK
		}
		writeJSON(w, status, att)
	}
}

type saveAnswersReq struct {
	Answers []quiz.SubmittedAnswer `json:"answers" validate:"required,dive"`
}

func SaveAnswersHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req saveAnswersReq
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		sess, err := d.Attempts.SaveAnswers(r.Context(), chi.URLParam(r, "sessionID"), caller(r).sub, req.Answers)
		if err != nil {
			writeError(w, r, err)
			return
		}
		left := sess.Remaining(time.Now())
		if v, ok := d.Attempts.Remaining(sess.ID); ok {
			left = v
		}
		writeJSON(w, http.StatusOK, map[string]any{"session": sess, "remaining_seconds": left})
	}
}

type submitReq struct {
	Answers []quiz.SubmittedAnswer `json:"answers" validate:"dive"`
}

// SubmitQuizHandler grades the caller's answers. The student is always the
// caller; the body cannot submit on someone else's behalf.
func SubmitQuizHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a := caller(r)
		q, err := d.Quizzes.GetQuiz(r.Context(), chi.URLParam(r, "quizID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := d.canView(r.Context(), a, q.CourseID); err != nil {
			writeError(w, r, err)
			return
		}
		if a.isStudent() && !q.Published {
			writeError(w, r, quiz.ErrNotFound)
			return
		}
		var req submitReq
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		res, err := d.Attempts.Submit(r.Context(), quiz.Submission{
			QuizID:    q.ID,
			StudentID: a.sub,
			Answers:   req.Answers,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}
