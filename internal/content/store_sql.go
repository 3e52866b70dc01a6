package content

import (
	"context"
	"database/sql"

	"github.com/mind-engage/academy/internal/db"
)

// SQLStore reads and writes positions for both collections. Positions are
// only ever changed through this type so the merged sequence stays 1..N.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(dbh *sql.DB) *SQLStore { return &SQLStore{db: dbh} }

var tableFor = map[Kind]string{
	KindChapter: "chapters",
	KindQuiz:    "quizzes",
}

// List returns the course's chapters and quizzes as one position-ordered list.
func (s *SQLStore) List(ctx context.Context, courseID string) ([]Item, error) {
	return listIn(ctx, s.db, courseID)
}

// Reorder applies a full-set reorder. The request is validated against the
// items read inside the same transaction; on any error nothing is written.
func (s *SQLStore) Reorder(ctx context.Context, courseID string, req []Placement) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := lockCourse(ctx, tx, courseID); err != nil {
			return err
		}
		current, err := listIn(ctx, tx, courseID)
		if err != nil {
			return err
		}
		if err := ValidateReorder(current, req); err != nil {
			return err
		}
		moved := make(map[Ref]int, len(req))
		for _, p := range req {
			moved[p.Ref()] = p.Position
		}
		return apply(ctx, tx, courseID, moved)
	})
}

// Reserve makes room for a new item at target (append when target <= 0 or
// past the end) and returns the position the caller must insert it at. Run it
// in the same transaction as the insert.
func Reserve(ctx context.Context, q db.Querier, courseID string, target int) (int, error) {
	if err := lockCourse(ctx, q, courseID); err != nil {
		return 0, err
	}
	items, err := listIn(ctx, q, courseID)
	if err != nil {
		return 0, err
	}
	pos, moved := PlanInsert(items, target)
	if err := apply(ctx, q, courseID, moved); err != nil {
		return 0, err
	}
	return pos, nil
}

// Compact closes gaps left by a removed item.
func Compact(ctx context.Context, q db.Querier, courseID string) error {
	if err := lockCourse(ctx, q, courseID); err != nil {
		return err
	}
	items, err := listIn(ctx, q, courseID)
	if err != nil {
		return err
	}
	return apply(ctx, q, courseID, PlanCompact(items))
}

// lockCourse takes a row lock on the course until the transaction ends, so
// concurrent writers of one course's positions run one after another. Under
// read committed two inserts would otherwise both read the same max position.
func lockCourse(ctx context.Context, q db.Querier, courseID string) error {
	_, err := q.ExecContext(ctx, `UPDATE courses SET title=title WHERE id=$1`, courseID)
	return db.Wrap("lock course", err)
}

func listIn(ctx context.Context, q db.Querier, courseID string) ([]Item, error) {
	chapters, err := listKind(ctx, q, KindChapter, courseID)
	if err != nil {
		return nil, err
	}
	quizzes, err := listKind(ctx, q, KindQuiz, courseID)
	if err != nil {
		return nil, err
	}
	return Merge(chapters, quizzes), nil
}

func listKind(ctx context.Context, q db.Querier, k Kind, courseID string) ([]Item, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, title, position, published FROM `+tableFor[k]+` WHERE course_id=$1 ORDER BY position`, courseID)
	if err != nil {
		return nil, db.Wrap("list "+tableFor[k], err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		it := Item{Kind: k}
		if err := rows.Scan(&it.ID, &it.Title, &it.Position, &it.Published); err != nil {
			return nil, db.Wrap("scan "+tableFor[k], err)
		}
		out = append(out, it)
	}
	return out, db.Wrap("list "+tableFor[k], rows.Err())
}

func apply(ctx context.Context, q db.Querier, courseID string, moved map[Ref]int) error {
	for ref, pos := range moved {
		if _, err := q.ExecContext(ctx,
			`UPDATE `+tableFor[ref.Kind]+` SET position=$1 WHERE id=$2 AND course_id=$3`,
			pos, ref.ID, courseID); err != nil {
			return db.Wrap("update position", err)
		}
	}
	return nil
}
