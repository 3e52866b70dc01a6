package course

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/academy/internal/content"
	"github.com/mind-engage/academy/internal/db"
)

var (
	ErrNotFound        = errors.New("course not found")
	ErrChapterNotFound = errors.New("chapter not found")
)

type Course struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CreatedBy   string `json:"created_by"`
	Published   bool   `json:"published"`
	CreatedAt   int64  `json:"created_at"`
}

// Chapter media are stored as plain URLs.
type Chapter struct {
	ID            string `json:"id"`
	CourseID      string `json:"course_id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	VideoURL      string `json:"video_url,omitempty"`
	AudioURL      string `json:"audio_url,omitempty"`
	AttachmentURL string `json:"attachment_url,omitempty"`
	Position      int    `json:"position"`
	Published     bool   `json:"published"`
	CreatedAt     int64  `json:"created_at"`
}

// Enrolment statuses. Only active students see course content.
const (
	StatusActive  = "active"
	StatusInvited = "invited"
	StatusDropped = "dropped"
)

type ListOpts struct {
	Query     string // title substring, case-insensitive
	TeacherID string
	StudentID string
	Limit     int
	Offset    int
}

type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLStore(dbh *sql.DB) *SQLStore {
	return &SQLStore{db: dbh, now: time.Now}
}

func (s *SQLStore) CreateCourse(ctx context.Context, c Course) (Course, error) {
	c.ID = uuid.NewString()
	c.CreatedAt = s.now().Unix()
	_, err := s.db.ExecContext(ctx, `INSERT INTO courses (id,title,description,created_by,published,created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`, c.ID, c.Title, c.Description, c.CreatedBy, c.Published, c.CreatedAt)
	if err != nil {
		return Course{}, db.Wrap("insert course", err)
	}
	return c, nil
}

func (s *SQLStore) GetCourse(ctx context.Context, id string) (Course, error) {
	var c Course
	err := s.db.QueryRowContext(ctx, `SELECT id,title,description,created_by,published,created_at
		FROM courses WHERE id=$1`, id).Scan(&c.ID, &c.Title, &c.Description, &c.CreatedBy, &c.Published, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Course{}, ErrNotFound
		}
		return Course{}, db.Wrap("get course", err)
	}
	return c, nil
}

// ListCourses filters by owner or by active enrolment; with neither set it
// lists every course.
func (s *SQLStore) ListCourses(ctx context.Context, opts ListOpts) ([]Course, error) {
	sqlStr := `SELECT c.id,c.title,c.description,c.created_by,c.published,c.created_at FROM courses c`
	var args []any
	switch {
	case opts.StudentID != "":
		args = append(args, opts.StudentID)
		sqlStr += ` JOIN course_students s ON s.course_id=c.id WHERE s.student_id=$1 AND s.status='active'`
	case opts.TeacherID != "":
		args = append(args, opts.TeacherID)
		sqlStr += ` WHERE c.created_by=$1`
	default:
		sqlStr += ` WHERE 1=1`
	}
	if q := strings.TrimSpace(opts.Query); q != "" {
		args = append(args, strings.ToLower(q))
		sqlStr += ` AND LOWER(c.title) LIKE '%' || $` + strconv.Itoa(len(args)) + ` || '%'`
	}
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit, opts.Offset)
	sqlStr += ` ORDER BY c.created_at DESC, c.id LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, db.Wrap("list courses", err)
	}
	defer rows.Close()
	out := []Course{}
	for rows.Next() {
		var c Course
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.CreatedBy, &c.Published, &c.CreatedAt); err != nil {
			return nil, db.Wrap("scan course", err)
		}
		out = append(out, c)
	}
	return out, db.Wrap("list courses", rows.Err())
}

// Enroll upserts enrolments; unknown statuses become active. Blank ids are
// skipped.
func (s *SQLStore) Enroll(ctx context.Context, courseID string, studentIDs []string, status string) (int, error) {
	switch status {
	case StatusInvited, StatusDropped:
	default:
		status = StatusActive
	}
	n := 0
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, id := range studentIDs {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO course_students (course_id,student_id,status) VALUES ($1,$2,$3)
				ON CONFLICT (course_id, student_id) DO UPDATE SET status=EXCLUDED.status`, courseID, id, status); err != nil {
				return db.Wrap("enroll", err)
			}
			n++
		}
		return nil
	})
	return n, err
}

func (s *SQLStore) IsOwner(ctx context.Context, courseID, userID string) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM courses WHERE id=$1 AND created_by=$2)`,
		courseID, userID).Scan(&ok)
	return ok, db.Wrap("check owner", err)
}

func (s *SQLStore) IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM course_students
		WHERE course_id=$1 AND student_id=$2 AND status='active')`, courseID, studentID).Scan(&ok)
	return ok, db.Wrap("check enrolment", err)
}

// CreateChapter inserts a chapter at ch.Position in the course sequence,
// shifting later chapters and quizzes, or appends it when Position is 0.
func (s *SQLStore) CreateChapter(ctx context.Context, ch Chapter) (Chapter, error) {
	ch.ID = uuid.NewString()
	ch.CreatedAt = s.now().Unix()
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM courses WHERE id=$1`, ch.CourseID).Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return db.Wrap("get course", err)
		}
		pos, err := content.Reserve(ctx, tx, ch.CourseID, ch.Position)
		if err != nil {
			return err
		}
		ch.Position = pos
		_, err = tx.ExecContext(ctx, `INSERT INTO chapters
			(id,course_id,title,description,video_url,audio_url,attachment_url,position,published,created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			ch.ID, ch.CourseID, ch.Title, ch.Description, ch.VideoURL, ch.AudioURL, ch.AttachmentURL,
			ch.Position, ch.Published, ch.CreatedAt)
		return db.Wrap("insert chapter", err)
	})
	if err != nil {
		return Chapter{}, err
	}
	return ch, nil
}

func (s *SQLStore) GetChapter(ctx context.Context, id string) (Chapter, error) {
	var ch Chapter
	err := s.db.QueryRowContext(ctx, `SELECT id,course_id,title,description,video_url,audio_url,attachment_url,
		position,published,created_at FROM chapters WHERE id=$1`, id).Scan(&ch.ID, &ch.CourseID, &ch.Title,
		&ch.Description, &ch.VideoURL, &ch.AudioURL, &ch.AttachmentURL, &ch.Position, &ch.Published, &ch.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Chapter{}, ErrChapterNotFound
		}
		return Chapter{}, db.Wrap("get chapter", err)
	}
	return ch, nil
}

// DeleteChapter removes the chapter and closes the gap it leaves.
func (s *SQLStore) DeleteChapter(ctx context.Context, id string) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var courseID string
		if err := tx.QueryRowContext(ctx, `SELECT course_id FROM chapters WHERE id=$1`, id).Scan(&courseID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrChapterNotFound
			}
			return db.Wrap("get chapter", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM chapters WHERE id=$1`, id); err != nil {
			return db.Wrap("delete chapter", err)
		}
		return content.Compact(ctx, tx, courseID)
	})
}

func (s *SQLStore) SetChapterPublished(ctx context.Context, id string, published bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE chapters SET published=$1 WHERE id=$2`, published, id)
	if err != nil {
		return db.Wrap("publish chapter", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrChapterNotFound
	}
	return nil
}
