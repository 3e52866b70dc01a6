package grading

// Q is the minimal view of a question needed for grading.
type Q struct {
	ID            string
	Type          string
	CorrectAnswer string
	Points        int
}

// Response is one submitted answer, keyed by question id.
type Response struct {
	QuestionID string
	Answer     string
}

// Item is the graded outcome of a single question.
type Item struct {
	QuestionID    string
	Submitted     string
	CorrectAnswer string
	IsCorrect     bool
	PointsEarned  int
	MaxPoints     int
}

// Outcome is the graded outcome of a whole submission. Items follow the
// question order, not the submission order.
type Outcome struct {
	Items      []Item
	Score      int
	Total      int
	Percentage int
}

// Strategy decides whether a submitted answer is correct for a question.
type Strategy interface {
	Match(q Q, submitted string) bool
}

// Grader grades a full submission against an ordered question list.
type Grader interface {
	Grade(questions []Q, responses []Response) Outcome
}

type defaultGrader struct {
	strategies map[string]Strategy
}

// Grade matches responses to questions by id. A question without a response
// is graded against "" and a response for an unknown question is ignored.
// When the same question id is answered twice the last answer wins.
func (g *defaultGrader) Grade(questions []Q, responses []Response) Outcome {
	byID := make(map[string]string, len(responses))
	for _, r := range responses {
		byID[r.QuestionID] = r.Answer
	}

	out := Outcome{Items: make([]Item, 0, len(questions))}
	for _, q := range questions {
		submitted := byID[q.ID]
		it := Item{
			QuestionID:    q.ID,
			Submitted:     submitted,
			CorrectAnswer: q.CorrectAnswer,
			MaxPoints:     q.Points,
		}
		if s, ok := g.strategies[q.Type]; ok && s.Match(q, submitted) {
			it.IsCorrect = true
			it.PointsEarned = q.Points
		}
		out.Score += it.PointsEarned
		out.Total += q.Points
		out.Items = append(out.Items, it)
	}
	out.Percentage = Percentage(out.Score, out.Total)
	return out
}

// Percentage returns round(100*score/total), rounding halves up, and 0 when
// total is not positive.
func Percentage(score, total int) int {
	if total <= 0 || score <= 0 {
		return 0
	}
	return (200*score + total) / (2 * total)
}

// Engine options

type Option func(*config)

type config struct {
	FoldShortAnswers bool
}

// WithShortAnswerFolding makes SHORT_ANSWER comparison ignore case,
// punctuation and repeated whitespace. Off by default: stored results were
// graded by exact match and must stay comparable.
func WithShortAnswerFolding(b bool) Option { return func(c *config) { c.FoldShortAnswers = b } }

// NewDefaultGrader installs the built-in strategies.
func NewDefaultGrader(opts ...Option) Grader {
	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}
	var short Strategy = exactStrategy{}
	if cfg.FoldShortAnswers {
		short = foldedStrategy{}
	}
	return &defaultGrader{
		strategies: map[string]Strategy{
			TypeMultipleChoice: exactStrategy{},
			TypeTrueFalse:      exactStrategy{},
			TypeShortAnswer:    short,
		},
	}
}

// Question type names as stored.
const (
	TypeMultipleChoice = "MULTIPLE_CHOICE"
	TypeTrueFalse      = "TRUE_FALSE"
	TypeShortAnswer    = "SHORT_ANSWER"
)

// --- Strategies ---

type exactStrategy struct{}

func (exactStrategy) Match(q Q, submitted string) bool {
	return submitted == q.CorrectAnswer
}

type foldedStrategy struct{}

func (foldedStrategy) Match(q Q, submitted string) bool {
	return foldText(submitted) == foldText(q.CorrectAnswer)
}
