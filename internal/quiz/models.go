package quiz

import "github.com/mind-engage/academy/internal/grading"

type QuestionType string

const (
	MultipleChoice QuestionType = grading.TypeMultipleChoice
	TrueFalse      QuestionType = grading.TypeTrueFalse
	ShortAnswer    QuestionType = grading.TypeShortAnswer
)

func (t QuestionType) Valid() bool {
	switch t {
	case MultipleChoice, TrueFalse, ShortAnswer:
		return true
	}
	return false
}

// Question is the canonical, stored form. CorrectAnswer is always a string:
// an option's text for MULTIPLE_CHOICE, "true"/"false" for TRUE_FALSE.
type Question struct {
	ID            string       `json:"id"`
	QuizID        string       `json:"quiz_id"`
	Text          string       `json:"text"`
	Type          QuestionType `json:"type"`
	Options       []string     `json:"options"`
	CorrectAnswer string       `json:"correct_answer,omitempty"`
	Points        int          `json:"points"`
	ImageURL      string       `json:"image_url,omitempty"`
}

type Quiz struct {
	ID           string     `json:"id"`
	CourseID     string     `json:"course_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Position     int        `json:"position"`
	TimerMinutes *int       `json:"timer_minutes,omitempty"`
	MaxAttempts  int        `json:"max_attempts"`
	Published    bool       `json:"published"`
	Questions    []Question `json:"questions"`
	CreatedAt    int64      `json:"created_at,omitempty"`
}

// DefaultTimerMinutes applies when a quiz has no timer of its own.
const DefaultTimerMinutes = 30

// TimerSeconds is the countdown length for one attempt. def replaces
// DefaultTimerMinutes when positive.
func (q Quiz) TimerSeconds(def int) int {
	if def <= 0 {
		def = DefaultTimerMinutes
	}
	if q.TimerMinutes != nil && *q.TimerMinutes > 0 {
		return *q.TimerMinutes * 60
	}
	return def * 60
}

func (q Quiz) TotalPoints() int {
	total := 0
	for _, qu := range q.Questions {
		total += qu.Points
	}
	return total
}

// StudentView strips correct answers.
func (q Quiz) StudentView() Quiz {
	out := q
	out.Questions = make([]Question, len(q.Questions))
	for i, qu := range q.Questions {
		qu.CorrectAnswer = ""
		out.Questions[i] = qu
	}
	return out
}

// GradingView converts the question list for the grading engine.
func (q Quiz) GradingView() []grading.Q {
	out := make([]grading.Q, len(q.Questions))
	for i, qu := range q.Questions {
		out[i] = grading.Q{ID: qu.ID, Type: string(qu.Type), CorrectAnswer: qu.CorrectAnswer, Points: qu.Points}
	}
	return out
}

// Answer is the per-question record kept inside a Result. CorrectAnswer is a
// snapshot taken at submission time.
type Answer struct {
	QuestionID    string `json:"question_id"`
	Answer        string `json:"answer"`
	CorrectAnswer string `json:"correct_answer"`
	IsCorrect     bool   `json:"is_correct"`
	PointsEarned  int    `json:"points_earned"`
}

// Source records what triggered a submission.
type Source string

const (
	SourceManual Source = "manual"
	SourceTimer  Source = "timer"
)

// Result is immutable once stored; a resubmission creates a new one.
type Result struct {
	ID          string   `json:"id"`
	QuizID      string   `json:"quiz_id"`
	StudentID   string   `json:"student_id"`
	SessionID   string   `json:"session_id,omitempty"`
	Source      Source   `json:"source"`
	Score       int      `json:"score"`
	TotalPoints int      `json:"total_points"`
	Percentage  int      `json:"percentage"`
	SubmittedAt int64    `json:"submitted_at"`
	Answers     []Answer `json:"answers,omitempty"`
}

// NewResult builds the result record from a grading outcome.
func NewResult(quizID, studentID string, out grading.Outcome) Result {
	r := Result{
		QuizID:      quizID,
		StudentID:   studentID,
		Score:       out.Score,
		TotalPoints: out.Total,
		Percentage:  out.Percentage,
		Answers:     make([]Answer, len(out.Items)),
	}
	for i, it := range out.Items {
		r.Answers[i] = Answer{
			QuestionID:    it.QuestionID,
			Answer:        it.Submitted,
			CorrectAnswer: it.CorrectAnswer,
			IsCorrect:     it.IsCorrect,
			PointsEarned:  it.PointsEarned,
		}
	}
	return r
}

type SubmittedAnswer struct {
	QuestionID string `json:"question_id" validate:"required"`
	Answer     string `json:"answer"`
}

// Submission is the input of the submission entry point.
type Submission struct {
	QuizID    string            `json:"quiz_id"`
	StudentID string            `json:"student_id"`
	Answers   []SubmittedAnswer `json:"answers" validate:"dive"`
}

func (s Submission) Responses() []grading.Response {
	out := make([]grading.Response, len(s.Answers))
	for i, a := range s.Answers {
		out[i] = grading.Response{QuestionID: a.QuestionID, Answer: a.Answer}
	}
	return out
}

// QuizProgress is one row of a student's course dashboard.
type QuizProgress struct {
	QuizID         string `json:"quiz_id"`
	Title          string `json:"title"`
	Position       int    `json:"position"`
	MaxAttempts    int    `json:"max_attempts"`
	Attempts       int    `json:"attempts"`
	BestPercentage int    `json:"best_percentage"`
	BestResultID   string `json:"best_result_id,omitempty"`
}

// Dashboard aggregates a student's best attempts across a course.
type Dashboard struct {
	CourseID       string         `json:"course_id"`
	StudentID      string         `json:"student_id"`
	Quizzes        []QuizProgress `json:"quizzes"`
	Completed      int            `json:"completed"`
	AverageBest    int            `json:"average_best"`
	TotalPublished int            `json:"total_published"`
}
