package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/academy/internal/content"
	"github.com/mind-engage/academy/internal/db"
)

type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLStore(dbh *sql.DB) *SQLStore {
	return &SQLStore{db: dbh, now: time.Now}
}

// CreateQuiz stores a quiz and its questions. The quiz takes q.Position in
// the course sequence (shifting later items) or is appended when 0.
func (s *SQLStore) CreateQuiz(ctx context.Context, q Quiz) (Quiz, error) {
	q.ID = uuid.NewString()
	q.CreatedAt = s.now().Unix()
	if q.MaxAttempts <= 0 {
		q.MaxAttempts = 1
	}
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		pos, err := content.Reserve(ctx, tx, q.CourseID, q.Position)
		if err != nil {
			return err
		}
		q.Position = pos
		var timer sql.NullInt64
		if q.TimerMinutes != nil {
			timer = sql.NullInt64{Int64: int64(*q.TimerMinutes), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO quizzes
			(id,course_id,title,description,position,timer_minutes,max_attempts,published,created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			q.ID, q.CourseID, q.Title, q.Description, q.Position, timer, q.MaxAttempts, q.Published, q.CreatedAt); err != nil {
			return db.Wrap("insert quiz", err)
		}
		for i := range q.Questions {
			qu, err := s.insertQuestion(ctx, tx, q.ID, i+1, q.Questions[i])
			if err != nil {
				return err
			}
			q.Questions[i] = qu
		}
		return nil
	})
	if err != nil {
		return Quiz{}, err
	}
	return q, nil
}

func (s *SQLStore) insertQuestion(ctx context.Context, tx db.Querier, quizID string, seq int, q Question) (Question, error) {
	q.ID = uuid.NewString()
	q.QuizID = quizID
	if q.Options == nil {
		q.Options = []string{}
	}
	opts, err := json.Marshal(q.Options)
	if err != nil {
		return Question{}, err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO questions
		(id,quiz_id,seq,text,type,options_json,correct_answer,points,image_url,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		q.ID, quizID, seq, q.Text, string(q.Type), string(opts), q.CorrectAnswer, q.Points, q.ImageURL, s.now().Unix()); err != nil {
		return Question{}, db.Wrap("insert question", err)
	}
	return q, nil
}

const quizColumns = `id,course_id,title,description,position,timer_minutes,max_attempts,published,created_at`

func scanQuiz(row interface{ Scan(...any) error }) (Quiz, error) {
	var q Quiz
	var timer sql.NullInt64
	if err := row.Scan(&q.ID, &q.CourseID, &q.Title, &q.Description, &q.Position, &timer,
		&q.MaxAttempts, &q.Published, &q.CreatedAt); err != nil {
		return Quiz{}, err
	}
	if timer.Valid {
		m := int(timer.Int64)
		q.TimerMinutes = &m
	}
	return q, nil
}

func (s *SQLStore) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	q, err := scanQuiz(s.db.QueryRowContext(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Quiz{}, ErrNotFound
		}
		return Quiz{}, db.Wrap("get quiz", err)
	}
	q.Questions, err = s.questions(ctx, id)
	if err != nil {
		return Quiz{}, err
	}
	return q, nil
}

func (s *SQLStore) questions(ctx context.Context, quizID string) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,quiz_id,text,type,options_json,correct_answer,points,image_url
		FROM questions WHERE quiz_id=$1 ORDER BY seq`, quizID)
	if err != nil {
		return nil, db.Wrap("list questions", err)
	}
	defer rows.Close()

	out := []Question{}
	for rows.Next() {
		var q Question
		var typ, opts string
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Text, &typ, &opts, &q.CorrectAnswer, &q.Points, &q.ImageURL); err != nil {
			return nil, db.Wrap("scan question", err)
		}
		q.Type = QuestionType(typ)
		if err := json.Unmarshal([]byte(opts), &q.Options); err != nil || q.Options == nil {
			q.Options = []string{}
		}
		out = append(out, q)
	}
	return out, db.Wrap("list questions", rows.Err())
}

func (s *SQLStore) ListQuizzes(ctx context.Context, courseID string) ([]Quiz, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE course_id=$1 ORDER BY position`, courseID)
	if err != nil {
		return nil, db.Wrap("list quizzes", err)
	}
	defer rows.Close()

	out := []Quiz{}
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, db.Wrap("scan quiz", err)
		}
		out = append(out, q)
	}
	return out, db.Wrap("list quizzes", rows.Err())
}

// DeleteQuiz removes a quiz without results and closes the gap it leaves in
// the course sequence.
func (s *SQLStore) DeleteQuiz(ctx context.Context, id string) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var courseID string
		if err := tx.QueryRowContext(ctx, `SELECT course_id FROM quizzes WHERE id=$1`, id).Scan(&courseID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return db.Wrap("get quiz", err)
		}
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM quiz_results WHERE quiz_id=$1`, id).Scan(&n); err != nil {
			return db.Wrap("count results", err)
		}
		if n > 0 {
			return ErrHasResults
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM quizzes WHERE id=$1`, id); err != nil {
			return db.Wrap("delete quiz", err)
		}
		return content.Compact(ctx, tx, courseID)
	})
}

func (s *SQLStore) SetPublished(ctx context.Context, id string, published bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE quizzes SET published=$1 WHERE id=$2`, published, id)
	if err != nil {
		return db.Wrap("publish quiz", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) AddQuestion(ctx context.Context, quizID string, q Question) (Question, error) {
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var seq int
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(seq),0) FROM questions WHERE quiz_id=$1`, quizID).Scan(&seq); err != nil {
			return db.Wrap("next question seq", err)
		}
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM quizzes WHERE id=$1`, quizID).Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return db.Wrap("get quiz", err)
		}
		var err error
		q, err = s.insertQuestion(ctx, tx, quizID, seq+1, q)
		return err
	})
	if err != nil {
		return Question{}, err
	}
	return q, nil
}

// UpdateQuestion rewrites a question's content. Questions that any stored
// result references are immutable, so past results are never regraded.
func (s *SQLStore) UpdateQuestion(ctx context.Context, q Question) (Question, error) {
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var quizID string
		if err := tx.QueryRowContext(ctx, `SELECT quiz_id FROM questions WHERE id=$1`, q.ID).Scan(&quizID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrQuestionNotFound
			}
			return db.Wrap("get question", err)
		}
		var ref int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM quiz_result_answers WHERE question_id=$1 LIMIT 1`, q.ID).Scan(&ref)
		switch {
		case err == nil:
			return ErrQuestionLocked
		case !errors.Is(err, sql.ErrNoRows):
			return db.Wrap("check question refs", err)
		}
		if q.Options == nil {
			q.Options = []string{}
		}
		opts, err := json.Marshal(q.Options)
		if err != nil {
			return err
		}
		q.QuizID = quizID
		_, err = tx.ExecContext(ctx, `UPDATE questions
			SET text=$1, type=$2, options_json=$3, correct_answer=$4, points=$5, image_url=$6 WHERE id=$7`,
			q.Text, string(q.Type), string(opts), q.CorrectAnswer, q.Points, q.ImageURL, q.ID)
		return db.Wrap("update question", err)
	})
	if err != nil {
		return Question{}, err
	}
	return q, nil
}

func (s *SQLStore) CountResults(ctx context.Context, quizID, studentID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM quiz_results WHERE quiz_id=$1 AND student_id=$2`, quizID, studentID).Scan(&n)
	return n, db.Wrap("count results", err)
}

// InsertResult writes the result and its answers through q, which is
// normally the transaction that also closes the attempt session.
func (s *SQLStore) InsertResult(ctx context.Context, q db.Querier, r Result) (Result, error) {
	r.ID = uuid.NewString()
	if r.SubmittedAt == 0 {
		r.SubmittedAt = s.now().Unix()
	}
	if r.Source == "" {
		r.Source = SourceManual
	}
	if _, err := q.ExecContext(ctx, `INSERT INTO quiz_results
		(id,quiz_id,student_id,session_id,source,score,total_points,percentage,submitted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		r.ID, r.QuizID, r.StudentID, r.SessionID, string(r.Source), r.Score, r.TotalPoints, r.Percentage, r.SubmittedAt); err != nil {
		return Result{}, db.Wrap("insert result", err)
	}
	for i, a := range r.Answers {
		if _, err := q.ExecContext(ctx, `INSERT INTO quiz_result_answers
			(result_id,seq,question_id,answer,correct_answer,is_correct,points_earned)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			r.ID, i+1, a.QuestionID, a.Answer, a.CorrectAnswer, a.IsCorrect, a.PointsEarned); err != nil {
			return Result{}, db.Wrap("insert result answer", err)
		}
	}
	return r, nil
}

const resultColumns = `r.id,r.quiz_id,r.student_id,r.session_id,r.source,r.score,r.total_points,r.percentage,r.submitted_at`

func scanResult(row interface{ Scan(...any) error }) (Result, error) {
	var r Result
	var src string
	if err := row.Scan(&r.ID, &r.QuizID, &r.StudentID, &r.SessionID, &src, &r.Score, &r.TotalPoints,
		&r.Percentage, &r.SubmittedAt); err != nil {
		return Result{}, err
	}
	r.Source = Source(src)
	return r, nil
}

func (s *SQLStore) GetResult(ctx context.Context, id string) (Result, error) {
	r, err := scanResult(s.db.QueryRowContext(ctx, `SELECT `+resultColumns+` FROM quiz_results r WHERE r.id=$1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Result{}, ErrResultNotFound
		}
		return Result{}, db.Wrap("get result", err)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT question_id,answer,correct_answer,is_correct,points_earned
		FROM quiz_result_answers WHERE result_id=$1 ORDER BY seq`, id)
	if err != nil {
		return Result{}, db.Wrap("list result answers", err)
	}
	defer rows.Close()
	r.Answers = []Answer{}
	for rows.Next() {
		var a Answer
		if err := rows.Scan(&a.QuestionID, &a.Answer, &a.CorrectAnswer, &a.IsCorrect, &a.PointsEarned); err != nil {
			return Result{}, db.Wrap("scan result answer", err)
		}
		r.Answers = append(r.Answers, a)
	}
	return r, db.Wrap("list result answers", rows.Err())
}

// ListResults returns results newest first, without their answers.
func (s *SQLStore) ListResults(ctx context.Context, opts ResultListOpts) ([]Result, error) {
	sqlStr := `SELECT ` + resultColumns + ` FROM quiz_results r JOIN quizzes q ON q.id=r.quiz_id WHERE 1=1`
	var args []any
	add := func(cond, v string) {
		if v == "" {
			return
		}
		args = append(args, v)
		sqlStr += " AND " + cond + "=$" + strconv.Itoa(len(args))
	}
	add("r.quiz_id", opts.QuizID)
	add("r.student_id", opts.StudentID)
	add("q.course_id", opts.CourseID)

	limit := opts.Limit
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	args = append(args, limit, opts.Offset)
	sqlStr += ` ORDER BY r.submitted_at DESC, r.id DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, db.Wrap("list results", err)
	}
	defer rows.Close()
	out := []Result{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, db.Wrap("scan result", err)
		}
		out = append(out, r)
	}
	return out, db.Wrap("list results", rows.Err())
}

// BestResult is the highest-percentage attempt; ties go to the higher score
// and then to the most recent submission.
func (s *SQLStore) BestResult(ctx context.Context, quizID, studentID string) (Result, error) {
	r, err := scanResult(s.db.QueryRowContext(ctx, `SELECT `+resultColumns+` FROM quiz_results r
		WHERE r.quiz_id=$1 AND r.student_id=$2
		ORDER BY r.percentage DESC, r.score DESC, r.submitted_at DESC, r.id DESC LIMIT 1`, quizID, studentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Result{}, ErrResultNotFound
		}
		return Result{}, db.Wrap("best result", err)
	}
	return r, nil
}

// Dashboard summarizes a student's best attempt per published quiz.
func (s *SQLStore) Dashboard(ctx context.Context, courseID, studentID string) (Dashboard, error) {
	quizzes, err := s.ListQuizzes(ctx, courseID)
	if err != nil {
		return Dashboard{}, err
	}
	count, err := s.attemptCounts(ctx, courseID, studentID)
	if err != nil {
		return Dashboard{}, err
	}

	d := Dashboard{CourseID: courseID, StudentID: studentID, Quizzes: []QuizProgress{}}
	sum := 0
	for _, q := range quizzes {
		if !q.Published {
			continue
		}
		d.TotalPublished++
		p := QuizProgress{QuizID: q.ID, Title: q.Title, Position: q.Position, MaxAttempts: q.MaxAttempts, Attempts: count[q.ID]}
		if p.Attempts > 0 {
			b, err := s.BestResult(ctx, q.ID, studentID)
			if err != nil {
				return Dashboard{}, err
			}
			p.BestPercentage = b.Percentage
			p.BestResultID = b.ID
			d.Completed++
			sum += b.Percentage
		}
		d.Quizzes = append(d.Quizzes, p)
	}
	if d.Completed > 0 {
		d.AverageBest = (2*sum + d.Completed) / (2 * d.Completed)
	}
	return d, nil
}

// attemptCounts returns the number of stored results per quiz of the course.
func (s *SQLStore) attemptCounts(ctx context.Context, courseID, studentID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT r.quiz_id, COUNT(*) FROM quiz_results r
		JOIN quizzes q ON q.id=r.quiz_id
		WHERE q.course_id=$1 AND r.student_id=$2 GROUP BY r.quiz_id`, courseID, studentID)
	if err != nil {
		return nil, db.Wrap("count results", err)
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, db.Wrap("scan result count", err)
		}
		out[id] = n
	}
	return out, db.Wrap("count results", rows.Err())
}
