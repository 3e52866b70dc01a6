package attempt

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/academy/internal/db"
	"github.com/mind-engage/academy/internal/quiz"
)

type fixture struct {
	db       *sql.DB
	quizzes  *quiz.SQLStore
	sessions *SQLSessionStore
	quiz     quiz.Quiz
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	dbh, err := db.Open(ctx, db.DriverSQLite, "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbh.Close() })
	_, err = dbh.Exec(`INSERT INTO courses (id,title,created_by,created_at) VALUES ('course-1','Course','t1',0)`)
	require.NoError(t, err)

	qs := quiz.NewSQLStore(dbh)
	qz, err := qs.CreateQuiz(ctx, quiz.Quiz{
		CourseID:    "course-1",
		Title:       "Basics",
		MaxAttempts: 1,
		Published:   true,
		Questions: []quiz.Question{
			{Text: "Sky is blue", Type: quiz.TrueFalse, CorrectAnswer: "true", Points: 1},
		},
	})
	require.NoError(t, err)
	return &fixture{db: dbh, quizzes: qs, sessions: NewSQLSessionStore(dbh), quiz: qz}
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sessions.now = func() time.Time { return time.Unix(1000, 0) }

	s, err := f.sessions.Create(ctx, f.quiz.ID, "stu", 60)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, s.Status)
	assert.Equal(t, int64(1060), s.Deadline)
	assert.Equal(t, 15, s.Remaining(time.Unix(1045, 0)))
	assert.Equal(t, 0, s.Remaining(time.Unix(2000, 0)))

	live, err := f.sessions.FindRunning(ctx, f.quiz.ID, "stu")
	require.NoError(t, err)
	assert.Equal(t, s.ID, live.ID)

	qid := f.quiz.Questions[0].ID
	got, err := f.sessions.SaveAnswers(ctx, s.ID, map[string]string{qid: "false"})
	require.NoError(t, err)
	assert.Equal(t, "false", got.Answers[qid])
	got, err = f.sessions.SaveAnswers(ctx, s.ID, map[string]string{qid: "true", "other": "x"})
	require.NoError(t, err)
	assert.Len(t, got.Answers, 2)
	got, err = f.sessions.SaveAnswers(ctx, s.ID, map[string]string{"other": ""})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{qid: "true"}, got.Answers)

	reread, err := f.sessions.Get(ctx, s.ID)
	require.NoError(t, err)
	sub := reread.Submission()
	require.Len(t, sub.Answers, 1)
	assert.Equal(t, quiz.SubmittedAnswer{QuestionID: qid, Answer: "true"}, sub.Answers[0])
	assert.Equal(t, "stu", sub.StudentID)

	running, err := f.sessions.ListRunning(ctx)
	require.NoError(t, err)
	assert.Len(t, running, 1)

	require.NoError(t, f.sessions.Close(ctx, f.db, s.ID, StatusSubmitted))
	assert.ErrorIs(t, f.sessions.Close(ctx, f.db, s.ID, StatusExpired), ErrSessionClosed)
	_, err = f.sessions.SaveAnswers(ctx, s.ID, map[string]string{qid: "false"})
	assert.ErrorIs(t, err, ErrSessionClosed)

	_, err = f.sessions.FindRunning(ctx, f.quiz.ID, "stu")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	running, err = f.sessions.ListRunning(ctx)
	require.NoError(t, err)
	assert.Empty(t, running)
}

func TestSessionSingleRunningPerStudent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.sessions.Create(ctx, f.quiz.ID, "stu", 60)
	require.NoError(t, err)
	_, err = f.sessions.Create(ctx, f.quiz.ID, "stu", 60)
	var started *AlreadyStartedError
	require.ErrorAs(t, err, &started)
	assert.Equal(t, first.ID, started.Session.ID)

	_, err = f.sessions.Create(ctx, f.quiz.ID, "someone-else", 60)
	assert.NoError(t, err)
}

func TestSessionNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.sessions.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = f.sessions.SaveAnswers(context.Background(), "missing", map[string]string{"a": "b"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
