package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/academy/internal/quiz"
)

// QuizResultsHandler lists results newest first. Students only ever see
// their own; staff may narrow with ?student_id. ?best=1 returns the single
// best attempt instead.
func QuizResultsHandler(d Deps) http.HandlerFunc {
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
		studentID := r.URL.Query().Get("student_id")
		if a.isStudent() {
			studentID = a.sub
		}
		if r.URL.Query().Get("best") == "1" {
			if studentID == "" {
				writeError(w, r, badRequest("student_id is required with best=1"))
				return
			}
			best, err := d.Attempts.Best(r.Context(), q.ID, studentID)
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, best)
			return
		}
		out, err := d.Attempts.Results(r.Context(), q.ID, studentID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if out == nil {
			out = []quiz.Result{}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func GetResultHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a := caller(r)
		res, err := d.Attempts.Result(r.Context(), chi.URLParam(r, "resultID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if a.isStudent() {
			if res.StudentID != a.sub {
				// Do not reveal that the id exists.
				writeError(w, r, quiz.ErrResultNotFound)
				return
			}
			writeJSON(w, http.StatusOK, res)
			return
		}
		q, err := d.Quizzes.GetQuiz(r.Context(), res.QuizID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := d.canManage(r.Context(), a, q.CourseID); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// DashboardHandler shows a student's progress across the course's published
// quizzes. Staff pass ?student_id.
func DashboardHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a := caller(r)
		courseID := chi.URLParam(r, "courseID")
		if err := d.canView(r.Context(), a, courseID); err != nil {
			writeError(w, r, err)
			return
		}
		studentID := a.sub
		if !a.isStudent() {
			studentID = r.URL.Query().Get("student_id")
			if studentID == "" {
				writeError(w, r, badRequest("student_id is required"))
				return
			}
		}
		dash, err := d.Attempts.Dashboard(r.Context(), courseID, studentID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, dash)
	}
}
