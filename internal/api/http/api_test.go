package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/academy/internal/attempt"
	authmw "github.com/mind-engage/academy/internal/auth/middleware"
	"github.com/mind-engage/academy/internal/content"
	"github.com/mind-engage/academy/internal/course"
	"github.com/mind-engage/academy/internal/db"
	"github.com/mind-engage/academy/internal/quiz"
	"github.com/mind-engage/academy/internal/service"
	syncx "github.com/mind-engage/academy/internal/sync"
)

// idleTicker never fires; countdowns stay armed for the whole test.
type idleTicker struct{}

func (idleTicker) C() <-chan time.Time { return nil }
func (idleTicker) Stop()               {}

type harness struct {
	t      *testing.T
	srv    *httptest.Server
	auth   *authmw.AuthService
	events *syncx.EventRepo
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	dbh, err := db.Open(ctx, db.DriverSQLite, "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbh.Close() })

	events := syncx.NewEventRepo(dbh, "")
	quizzes := quiz.NewSQLStore(dbh)
	svc := service.NewQuizService(dbh, quizzes, attempt.NewSQLSessionStore(dbh), events, service.Options{
		Scheduler: []attempt.SchedulerOption{attempt.WithTicker(func(time.Duration) attempt.Ticker { return idleTicker{} })},
	})
	t.Cleanup(svc.Close)

	d := Deps{
		DB:                 dbh,
		Auth:               authmw.NewAuthService("test-secret"),
		Users:              authmw.NewUsers(dbh, true),
		Courses:            course.NewSQLStore(dbh),
		Content:            service.NewContentService(content.NewSQLStore(dbh), events),
		Quizzes:            quizzes,
		Attempts:           svc,
		DefaultMaxAttempts: 1,
		EnableLogin:        true,
	}
	r := chi.NewRouter()
	Mount(r, d)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &harness{t: t, srv: srv, auth: d.Auth, events: events}
}

func (h *harness) token(sub, role string) string {
	tok, err := h.auth.IssueJWT(sub, role)
	require.NoError(h.t, err)
	return tok
}

// do sends body (JSON-encoded unless it is already a string) and decodes the
// response into out when out is non-nil.
func (h *harness) do(method, path, tok string, body, out any) int {
	h.t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(h.t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rd)
	require.NoError(h.t, err)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := h.srv.Client().Do(req)
	require.NoError(h.t, err)
	defer res.Body.Close()
	if out != nil {
		require.NoError(h.t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

// setup creates a course owned by t1 with stu enrolled and one published
// two-question quiz.
func (h *harness) setup() (courseID string, qz quiz.Quiz) {
	h.t.Helper()
	teacher := h.token("t1", authmw.RoleTeacher)

	var c course.Course
	require.Equal(h.t, http.StatusCreated, h.do(http.MethodPost, "/courses", teacher, map[string]any{"title": "Geography"}, &c))
	require.Equal(h.t, http.StatusOK, h.do(http.MethodPost, "/courses/"+c.ID+"/students", teacher,
		map[string]any{"student_ids": []string{"stu", "stu2"}}, nil))

	require.Equal(h.t, http.StatusCreated, h.do(http.MethodPost, "/courses/"+c.ID+"/quizzes", teacher, map[string]any{
		"title":        "Rivers",
		"max_attempts": 1,
		"published":    true,
		"questions": []map[string]any{
			{"text": "The Nile is in Africa", "type": "TRUE_FALSE", "correct_answer": true, "points": 2},
			{"text": "Longest river?", "type": "MULTIPLE_CHOICE", "options": []string{"Amazon", "Nile"}, "correct_answer": 1, "points": 3},
		},
	}, &qz))
	return c.ID, qz
}

func TestHealthAndReady(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/healthz", "", nil, nil))
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/readyz", "", nil, nil))
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/courses", "", nil, nil))
	assert.Equal(t, http.StatusForbidden,
		h.do(http.MethodPost, "/courses", h.token("stu", authmw.RoleStudent), map[string]any{"title": "x"}, nil))
}

func TestLoginDevFallback(t *testing.T) {
	h := newHarness(t)
	var out map[string]string
	status := h.do(http.MethodPost, "/auth/login", "",
		map[string]string{"username": "stu", "password": "stu", "role": "student"}, &out)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "student", out["role"])
	assert.NotEmpty(t, out["access_token"])
}

func TestCreateQuizValidation(t *testing.T) {
	h := newHarness(t)
	courseID, _ := h.setup()
	teacher := h.token("t1", authmw.RoleTeacher)

	var body errorBody
	status := h.do(http.MethodPost, "/courses/"+courseID+"/quizzes", teacher, map[string]any{"max_attempts": 2}, &body)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, body.Fields, "title")

	status = h.do(http.MethodPost, "/courses/"+courseID+"/quizzes", teacher, map[string]any{
		"title":     "Bad",
		"questions": []map[string]any{{"text": "pick", "type": "MULTIPLE_CHOICE", "options": []string{"a"}, "correct_answer": 0, "points": 1}},
	}, &body)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	// another teacher does not own the course
	status = h.do(http.MethodPost, "/courses/"+courseID+"/quizzes", h.token("t2", authmw.RoleTeacher), map[string]any{"title": "x"}, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestCreateQuizAcceptsLowercaseType(t *testing.T) {
	h := newHarness(t)
	courseID, _ := h.setup()

	var qz quiz.Quiz
	status := h.do(http.MethodPost, "/courses/"+courseID+"/quizzes", h.token("t1", authmw.RoleTeacher), map[string]any{
		"title":     "Lowercase",
		"questions": []map[string]any{{"text": "Sky is blue", "type": "true_false", "correct_answer": "true", "points": 1}},
	}, &qz)
	require.Equal(t, http.StatusCreated, status)
	require.Len(t, qz.Questions, 1)
	assert.Equal(t, quiz.TrueFalse, qz.Questions[0].Type)

	status = h.do(http.MethodPost, "/courses/"+courseID+"/quizzes", h.token("t1", authmw.RoleTeacher), map[string]any{
		"title":     "Unknown",
		"questions": []map[string]any{{"text": "?", "type": "essay", "correct_answer": "x", "points": 1}},
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestImportQuizYAML(t *testing.T) {
	h := newHarness(t)
	courseID, _ := h.setup()
	doc := `title: Capitals
max_attempts: 3
published: true
questions:
  - text: Capital of France?
    type: SHORT_ANSWER
    correct_answer: Paris
    points: 1
`
	var qz quiz.Quiz
	status := h.do(http.MethodPost, "/courses/"+courseID+"/quizzes/import", h.token("t1", authmw.RoleTeacher), doc, &qz)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, 3, qz.MaxAttempts)
	require.Len(t, qz.Questions, 1)
	assert.Equal(t, "Paris", qz.Questions[0].CorrectAnswer)
	assert.Equal(t, 2, qz.Position)

	status = h.do(http.MethodPost, "/courses/"+courseID+"/quizzes/import", h.token("t1", authmw.RoleTeacher), "title: [", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestStudentViewHidesAnswers(t *testing.T) {
	h := newHarness(t)
	_, qz := h.setup()

	var seen quiz.Quiz
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/quizzes/"+qz.ID, h.token("stu", authmw.RoleStudent), nil, &seen))
	for _, q := range seen.Questions {
		assert.Empty(t, q.CorrectAnswer)
	}

	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/quizzes/"+qz.ID, h.token("t1", authmw.RoleTeacher), nil, &seen))
	assert.Equal(t, "Nile", seen.Questions[1].CorrectAnswer)

	assert.Equal(t, http.StatusForbidden,
		h.do(http.MethodGet, "/quizzes/"+qz.ID, h.token("outsider", authmw.RoleStudent), nil, nil))
}

func TestAttemptFlow(t *testing.T) {
	h := newHarness(t)
	courseID, qz := h.setup()
	stu := h.token("stu", authmw.RoleStudent)

	var first service.Attempt
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/quizzes/"+qz.ID+"/attempts", stu, nil, &first))
	assert.Equal(t, 30*60, first.Remaining)

	var again service.Attempt
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/quizzes/"+qz.ID+"/attempts", stu, nil, &again))
	assert.True(t, again.Resumed)
	assert.Equal(t, first.Session.ID, again.Session.ID)

	save := map[string]any{"answers": []map[string]string{{"question_id": qz.Questions[0].ID, "answer": "true"}}}
	assert.Equal(t, http.StatusOK, h.do(http.MethodPut, "/attempts/"+first.Session.ID+"/answers", stu, save, nil))
	assert.Equal(t, http.StatusForbidden,
		h.do(http.MethodPut, "/attempts/"+first.Session.ID+"/answers", h.token("stu2", authmw.RoleStudent), save, nil))

	var res quiz.Result
	submit := map[string]any{"answers": []map[string]string{
		{"question_id": qz.Questions[0].ID, "answer": "true"},
		{"question_id": qz.Questions[1].ID, "answer": "Amazon"},
	}}
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/quizzes/"+qz.ID+"/submit", stu, submit, &res))
	assert.Equal(t, 2, res.Score)
	assert.Equal(t, 5, res.TotalPoints)
	assert.Equal(t, 40, res.Percentage)
	assert.Equal(t, first.Session.ID, res.SessionID)

	var limit errorBody
	assert.Equal(t, http.StatusConflict, h.do(http.MethodPost, "/quizzes/"+qz.ID+"/submit", stu, submit, &limit))
	assert.Equal(t, "max_attempts_reached", limit.Error)
	assert.Equal(t, res.ID, limit.BestResultID)

	assert.Equal(t, http.StatusConflict, h.do(http.MethodPost, "/quizzes/"+qz.ID+"/attempts", stu, nil, nil))
	assert.Equal(t, http.StatusConflict, h.do(http.MethodPut, "/attempts/"+first.Session.ID+"/answers", stu, save, nil))

	var dash quiz.Dashboard
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/courses/"+courseID+"/dashboard", stu, nil, &dash))
	assert.Equal(t, 1, dash.Completed)
	assert.Equal(t, 40, dash.AverageBest)

	evs, err := h.events.Since(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, syncx.TypeQuizSubmitted, evs[0].Type)
}

func TestResultVisibility(t *testing.T) {
	h := newHarness(t)
	_, qz := h.setup()
	stu, stu2 := h.token("stu", authmw.RoleStudent), h.token("stu2", authmw.RoleStudent)

	var res quiz.Result
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/quizzes/"+qz.ID+"/submit", stu, map[string]any{"answers": []any{}}, &res))
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/quizzes/"+qz.ID+"/submit", stu2, map[string]any{"answers": []any{}}, nil))

	var own []quiz.Result
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/quizzes/"+qz.ID+"/results?student_id=stu2", stu, nil, &own))
	require.Len(t, own, 1)
	assert.Equal(t, "stu", own[0].StudentID)

	var all []quiz.Result
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/quizzes/"+qz.ID+"/results", h.token("t1", authmw.RoleTeacher), nil, &all))
	assert.Len(t, all, 2)

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/results/"+res.ID, stu, nil, nil))
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/results/"+res.ID, stu2, nil, nil))
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/results/"+res.ID, h.token("t2", authmw.RoleTeacher), nil, nil))
}

func TestReorderContent(t *testing.T) {
	h := newHarness(t)
	courseID, qz := h.setup()
	teacher := h.token("t1", authmw.RoleTeacher)

	var ch course.Chapter
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/courses/"+courseID+"/chapters", teacher,
		map[string]any{"title": "Intro", "video_url": "https://example.com/v.mp4", "position": 1}, &ch))

	var items []content.Item
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/courses/"+courseID+"/content", teacher, nil, &items))
	require.Len(t, items, 2)
	assert.Equal(t, ch.ID, items[0].ID)
	assert.Equal(t, qz.ID, items[1].ID)

	order := map[string]any{"items": []map[string]any{
		{"id": qz.ID, "type": "quiz", "position": 1},
		{"id": ch.ID, "type": "chapter", "position": 2},
	}}
	require.Equal(t, http.StatusOK, h.do(http.MethodPut, "/courses/"+courseID+"/content/order", teacher, order, &items))
	assert.Equal(t, qz.ID, items[0].ID)

	dup := map[string]any{"items": []map[string]any{
		{"id": qz.ID, "type": "quiz", "position": 1},
		{"id": ch.ID, "type": "chapter", "position": 1},
	}}
	assert.Equal(t, http.StatusUnprocessableEntity, h.do(http.MethodPut, "/courses/"+courseID+"/content/order", teacher, dup, nil))

	// the chapter is a draft, so students only see the quiz
	var visible []content.Item
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/courses/"+courseID+"/content", h.token("stu", authmw.RoleStudent), nil, &visible))
	require.Len(t, visible, 1)
	assert.Equal(t, qz.ID, visible[0].ID)

	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/chapters/"+ch.ID, teacher, nil, nil))
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/courses/"+courseID+"/content", teacher, nil, &items))
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Position)
}

func TestPublishAndReadChapter(t *testing.T) {
	h := newHarness(t)
	courseID, _ := h.setup()
	teacher, stu := h.token("t1", authmw.RoleTeacher), h.token("stu", authmw.RoleStudent)

	var ch course.Chapter
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/courses/"+courseID+"/chapters", teacher,
		map[string]any{"title": "Rivers of Africa", "audio_url": "https://cdn.example/nile.mp3"}, &ch))
	assert.False(t, ch.Published)

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/chapters/"+ch.ID, stu, nil, nil))
	assert.Equal(t, http.StatusForbidden,
		h.do(http.MethodPost, "/chapters/"+ch.ID+"/publish", stu, map[string]bool{"published": true}, nil))
	assert.Equal(t, http.StatusForbidden,
		h.do(http.MethodPost, "/chapters/"+ch.ID+"/publish", h.token("t2", authmw.RoleTeacher), map[string]bool{"published": true}, nil))
	assert.Equal(t, http.StatusUnprocessableEntity,
		h.do(http.MethodPost, "/chapters/"+ch.ID+"/publish", teacher, map[string]any{}, nil))

	require.Equal(t, http.StatusNoContent,
		h.do(http.MethodPost, "/chapters/"+ch.ID+"/publish", teacher, map[string]bool{"published": true}, nil))

	var got course.Chapter
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/chapters/"+ch.ID, stu, nil, &got))
	assert.True(t, got.Published)
	assert.Equal(t, "https://cdn.example/nile.mp3", got.AudioURL)

	var visible []content.Item
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/courses/"+courseID+"/content", stu, nil, &visible))
	require.Len(t, visible, 2)
	assert.Equal(t, ch.ID, visible[1].ID)

	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/chapters/"+ch.ID, h.token("outsider", authmw.RoleStudent), nil, nil))
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/chapters/missing", teacher, nil, nil))
}

func TestChangePassword(t *testing.T) {
	h := newHarness(t)
	body := map[string]string{"old_password": "same-old-pass", "new_password": "same-old-pass"}
	var e errorBody
	assert.Equal(t, http.StatusUnprocessableEntity,
		h.do(http.MethodPost, "/users/change-password", h.token("nobody", authmw.RoleStudent), body, &e))
	assert.True(t, strings.Contains(strings.Join(keys(e.Fields), ","), "new_password"))

	body["new_password"] = "brand-new-pass"
	assert.Equal(t, http.StatusUnauthorized,
		h.do(http.MethodPost, "/users/change-password", h.token("nobody", authmw.RoleStudent), body, nil))
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
