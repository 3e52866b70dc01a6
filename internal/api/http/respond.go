package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/mind-engage/academy/internal/attempt"
	"github.com/mind-engage/academy/internal/content"
	"github.com/mind-engage/academy/internal/course"
	"github.com/mind-engage/academy/internal/db"
	"github.com/mind-engage/academy/internal/quiz"
	"github.com/mind-engage/academy/internal/service"
)

var errForbidden = errors.New("forbidden")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error        string            `json:"error"`
	Fields       map[string]string `json:"fields,omitempty"`
	BestResultID string            `json:"best_result_id,omitempty"`
	SessionID    string            `json:"session_id,omitempty"`
}

// writeError maps domain errors to status codes. Anything unrecognized is
// logged and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		reqErr   *requestError
		maxErr   *attempt.MaxAttemptsError
		startErr *attempt.AlreadyStartedError
		orderErr *content.ValidationError
	)
	switch {
	case errors.As(err, &reqErr):
		writeJSON(w, reqErr.status, errorBody{Error: reqErr.msg, Fields: reqErr.fields})
	case errors.As(err, &maxErr):
		writeJSON(w, http.StatusConflict, errorBody{Error: "max_attempts_reached", BestResultID: maxErr.BestResultID})
	case errors.As(err, &startErr):
		writeJSON(w, http.StatusConflict, errorBody{Error: "attempt_already_started", SessionID: startErr.Session.ID})
	case errors.As(err, &orderErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: orderErr.Error()})
	case errors.Is(err, quiz.ErrInvalidQuestion):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
	case errors.Is(err, errForbidden), errors.Is(err, service.ErrNotOwner):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
	case errors.Is(err, attempt.ErrSessionClosed),
		errors.Is(err, quiz.ErrQuestionLocked),
		errors.Is(err, quiz.ErrHasResults):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, quiz.ErrNotFound),
		errors.Is(err, quiz.ErrQuestionNotFound),
		errors.Is(err, quiz.ErrResultNotFound),
		errors.Is(err, course.ErrNotFound),
		errors.Is(err, course.ErrChapterNotFound),
		errors.Is(err, attempt.ErrSessionNotFound),
		errors.Is(err, service.ErrNotPublished):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, db.ErrPersistence):
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "storage unavailable, please retry"})
	default:
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
