package attempt

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/academy/internal/db"
	"github.com/mind-engage/academy/internal/quiz"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusSubmitted Status = "submitted"
	StatusExpired   Status = "expired"
)

// Session is the server-side marker of an attempt in progress. Answers are
// keyed by question id and saved as the student goes, so an expiry can
// submit whatever was recorded last.
type Session struct {
	ID        string            `json:"id"`
	QuizID    string            `json:"quiz_id"`
	StudentID string            `json:"student_id"`
	Status    Status            `json:"status"`
	Answers   map[string]string `json:"answers"`
	StartedAt int64             `json:"started_at"`
	Deadline  int64             `json:"deadline"`
	UpdatedAt int64             `json:"updated_at"`
}

// Remaining is the number of whole seconds left before the deadline.
func (s Session) Remaining(now time.Time) int {
	left := s.Deadline - now.Unix()
	if left < 0 {
		return 0
	}
	return int(left)
}

// Submission turns the recorded answers into a submission in question-id
// order.
func (s Session) Submission() quiz.Submission {
	ids := make([]string, 0, len(s.Answers))
	for id := range s.Answers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	sub := quiz.Submission{QuizID: s.QuizID, StudentID: s.StudentID, Answers: make([]quiz.SubmittedAnswer, 0, len(ids))}
	for _, id := range ids {
		sub.Answers = append(sub.Answers, quiz.SubmittedAnswer{QuestionID: id, Answer: s.Answers[id]})
	}
	return sub
}

type SessionStore interface {
	Create(ctx context.Context, quizID, studentID string, seconds int) (Session, error)
	Get(ctx context.Context, id string) (Session, error)
	FindRunning(ctx context.Context, quizID, studentID string) (Session, error)
	SaveAnswers(ctx context.Context, id string, answers map[string]string) (Session, error)
	// Close moves a running session to status through q. Only one caller
	// can close a session; the rest get ErrSessionClosed.
	Close(ctx context.Context, q db.Querier, id string, status Status) error
	ListRunning(ctx context.Context) ([]Session, error)
}

type SQLSessionStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLSessionStore(dbh *sql.DB) *SQLSessionStore {
	return &SQLSessionStore{db: dbh, now: time.Now}
}

const sessionColumns = `id,quiz_id,student_id,status,answers_json,started_at,deadline,updated_at`

func scanSession(row interface{ Scan(...any) error }) (Session, error) {
	var s Session
	var status, answers string
	if err := row.Scan(&s.ID, &s.QuizID, &s.StudentID, &status, &answers, &s.StartedAt, &s.Deadline, &s.UpdatedAt); err != nil {
		return Session{}, err
	}
	s.Status = Status(status)
	if err := json.Unmarshal([]byte(answers), &s.Answers); err != nil || s.Answers == nil {
		s.Answers = map[string]string{}
	}
	return s, nil
}

func (st *SQLSessionStore) Create(ctx context.Context, quizID, studentID string, seconds int) (Session, error) {
	now := st.now().Unix()
	s := Session{
		ID:        uuid.NewString(),
		QuizID:    quizID,
		StudentID: studentID,
		Status:    StatusRunning,
		Answers:   map[string]string{},
		StartedAt: now,
		Deadline:  now + int64(seconds),
		UpdatedAt: now,
	}
	_, err := st.db.ExecContext(ctx, `INSERT INTO attempt_sessions (`+sessionColumns+`)
		VALUES ($1,$2,$3,$4,'{}',$5,$6,$7)`,
		s.ID, s.QuizID, s.StudentID, string(s.Status), s.StartedAt, s.Deadline, s.UpdatedAt)
	if err != nil {
		// A concurrent start won the unique running-session index.
		if live, ferr := st.FindRunning(ctx, quizID, studentID); ferr == nil {
			return Session{}, &AlreadyStartedError{Session: live}
		}
		return Session{}, db.Wrap("create session", err)
	}
	return s, nil
}

func (st *SQLSessionStore) Get(ctx context.Context, id string) (Session, error) {
	return st.getIn(ctx, st.db, id)
}

func (st *SQLSessionStore) getIn(ctx context.Context, q db.Querier, id string) (Session, error) {
	s, err := scanSession(q.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM attempt_sessions WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, db.Wrap("get session", err)
	}
	return s, nil
}

func (st *SQLSessionStore) FindRunning(ctx context.Context, quizID, studentID string) (Session, error) {
	s, err := scanSession(st.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM attempt_sessions
		WHERE quiz_id=$1 AND student_id=$2 AND status=$3`, quizID, studentID, string(StatusRunning)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, db.Wrap("find running session", err)
	}
	return s, nil
}

// SaveAnswers merges answers into a running session. An empty answer clears
// the recorded one.
func (st *SQLSessionStore) SaveAnswers(ctx context.Context, id string, answers map[string]string) (Session, error) {
	var out Session
	err := db.WithTx(ctx, st.db, func(tx *sql.Tx) error {
		s, err := st.getIn(ctx, tx, id)
		if err != nil {
			return err
		}
		if s.Status != StatusRunning {
			return ErrSessionClosed
		}
		for qid, a := range answers {
			if a == "" {
				delete(s.Answers, qid)
				continue
			}
			s.Answers[qid] = a
		}
		raw, err := json.Marshal(s.Answers)
		if err != nil {
			return err
		}
		s.UpdatedAt = st.now().Unix()
		if _, err := tx.ExecContext(ctx, `UPDATE attempt_sessions SET answers_json=$1, updated_at=$2 WHERE id=$3`,
			string(raw), s.UpdatedAt, id); err != nil {
			return db.Wrap("save answers", err)
		}
		out = s
		return nil
	})
	return out, err
}

func (st *SQLSessionStore) Close(ctx context.Context, q db.Querier, id string, status Status) error {
	res, err := q.ExecContext(ctx, `UPDATE attempt_sessions SET status=$1, updated_at=$2 WHERE id=$3 AND status=$4`,
		string(status), st.now().Unix(), id, string(StatusRunning))
	if err != nil {
		return db.Wrap("close session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return db.Wrap("close session", err)
	}
	if n == 0 {
		return ErrSessionClosed
	}
	return nil
}

func (st *SQLSessionStore) ListRunning(ctx context.Context) ([]Session, error) {
	rows, err := st.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM attempt_sessions
		WHERE status=$1 ORDER BY deadline`, string(StatusRunning))
	if err != nil {
		return nil, db.Wrap("list running sessions", err)
	}
	defer rows.Close()
	out := []Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, db.Wrap("scan session", err)
		}
		out = append(out, s)
	}
	return out, db.Wrap("list running sessions", rows.Err())
}
