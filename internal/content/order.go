package content

import (
	"errors"
	"fmt"
	"sort"
)

// Kind tags which backing collection an item lives in.
type Kind string

const (
	KindChapter Kind = "chapter"
	KindQuiz    Kind = "quiz"
)

func (k Kind) Valid() bool { return k == KindChapter || k == KindQuiz }

// Ref identifies one content item across both collections.
type Ref struct {
	ID   string `json:"id"`
	Kind Kind   `json:"type"`
}

// Item is a chapter or quiz in a course's unified position sequence.
type Item struct {
	ID        string `json:"id"`
	Kind      Kind   `json:"type"`
	Title     string `json:"title"`
	Position  int    `json:"position"`
	Published bool   `json:"published"`
}

func (it Item) Ref() Ref { return Ref{ID: it.ID, Kind: it.Kind} }

// Placement is one entry of a reorder request.
type Placement struct {
	ID       string `json:"id" validate:"required"`
	Kind     Kind   `json:"type" validate:"required,oneof=chapter quiz"`
	Position int    `json:"position" validate:"gte=1"`
}

func (p Placement) Ref() Ref { return Ref{ID: p.ID, Kind: p.Kind} }

// ErrInvalidOrder is the sentinel behind every ValidationError.
var ErrInvalidOrder = errors.New("invalid content order")

// ValidationError reports why a reorder request was rejected.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "invalid content order: " + e.Reason }
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidOrder
}

func invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Merge combines both collections into one list sorted by position. Ties,
// which only exist in corrupted data, fall back to kind then id so the
// output is deterministic.
func Merge(chapters, quizzes []Item) []Item {
	out := make([]Item, 0, len(chapters)+len(quizzes))
	for _, c := range chapters {
		c.Kind = KindChapter
		out = append(out, c)
	}
	for _, q := range quizzes {
		q.Kind = KindQuiz
		out = append(out, q)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ValidateReorder checks that req names every current item exactly once and
// that its positions are a permutation of 1..N.
func ValidateReorder(current []Item, req []Placement) error {
	if len(req) != len(current) {
		return invalid("expected %d items, got %d", len(current), len(req))
	}
	known := make(map[Ref]struct{}, len(current))
	for _, it := range current {
		known[it.Ref()] = struct{}{}
	}
	n := len(req)
	seenRef := make(map[Ref]struct{}, n)
	seenPos := make([]bool, n+1)
	for _, p := range req {
		if !p.Kind.Valid() {
			return invalid("unknown item type %q", p.Kind)
		}
		r := p.Ref()
		if _, ok := known[r]; !ok {
			return invalid("%s %s does not belong to this course", p.Kind, p.ID)
		}
		if _, dup := seenRef[r]; dup {
			return invalid("%s %s listed twice", p.Kind, p.ID)
		}
		seenRef[r] = struct{}{}
		if p.Position < 1 || p.Position > n {
			return invalid("position %d out of range 1..%d", p.Position, n)
		}
		if seenPos[p.Position] {
			return invalid("position %d used twice", p.Position)
		}
		seenPos[p.Position] = true
	}
	return nil
}

// PlanInsert returns the position a new item should take and the shifted
// positions of existing items. target <= 0 or past the end appends.
func PlanInsert(items []Item, target int) (int, map[Ref]int) {
	n := len(items)
	if target <= 0 || target > n+1 {
		target = n + 1
	}
	moved := map[Ref]int{}
	for _, it := range items {
		if it.Position >= target {
			moved[it.Ref()] = it.Position + 1
		}
	}
	return target, moved
}

// PlanCompact renumbers a merged list to 1..N keeping relative order and
// returns only the items whose position changes.
func PlanCompact(merged []Item) map[Ref]int {
	moved := map[Ref]int{}
	for i, it := range merged {
		if it.Position != i+1 {
			moved[it.Ref()] = i + 1
		}
	}
	return moved
}
