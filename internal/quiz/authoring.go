package quiz

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrInvalidQuestion = errors.New("invalid question")

// AnswerKey is the authoring-side correct answer. The editor sends an option
// index for MULTIPLE_CHOICE and a string (or bool) otherwise; Normalize turns
// either into the canonical string before anything is stored or graded.
// Text always keeps the value as written, so a numeric short answer such as
// 007 is not reformatted; Index is only consulted for MULTIPLE_CHOICE.
type AnswerKey struct {
	Index *int
	Text  string
}

func (k *AnswerKey) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if _, isNum := v.(float64); isNum {
		k.Text = string(bytes.TrimSpace(b))
	}
	return k.set(v)
}

func (k *AnswerKey) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("correct_answer: expected scalar, got %v", n.Tag)
	}
	k.Text = n.Value
	if n.Tag == "!!int" {
		if i, err := strconv.Atoi(n.Value); err == nil {
			k.Index = &i
		}
	}
	return nil
}

func (k AnswerKey) MarshalJSON() ([]byte, error) {
	if k.Index != nil {
		return json.Marshal(*k.Index)
	}
	return json.Marshal(k.Text)
}

func (k *AnswerKey) set(v any) error {
	switch t := v.(type) {
	case float64:
		if t == float64(int(t)) {
			i := int(t)
			k.Index = &i
		}
	case string:
		k.Text = t
	case bool:
		k.Text = strconv.FormatBool(t)
	case nil:
	default:
		return fmt.Errorf("correct_answer: unsupported value %v", v)
	}
	return nil
}

// QuestionInput is a question as authored, before normalization.
type QuestionInput struct {
	Text          string       `json:"text" yaml:"text" validate:"required"`
	Type          QuestionType `json:"type" yaml:"type" validate:"required,oneofci=MULTIPLE_CHOICE TRUE_FALSE SHORT_ANSWER"`
	Options       []string     `json:"options" yaml:"options"`
	CorrectAnswer AnswerKey    `json:"correct_answer" yaml:"correct_answer"`
	Points        int          `json:"points" yaml:"points" validate:"gt=0"`
	ImageURL      string       `json:"image_url" yaml:"image_url"`
}

func invalidQuestion(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidQuestion, fmt.Sprintf(format, args...))
}

// Normalize validates the input and returns the canonical question.
func (in QuestionInput) Normalize() (Question, error) {
	q := Question{
		Text:     strings.TrimSpace(in.Text),
		Type:     QuestionType(strings.ToUpper(strings.TrimSpace(string(in.Type)))),
		Points:   in.Points,
		ImageURL: strings.TrimSpace(in.ImageURL),
		Options:  []string{},
	}
	if q.Text == "" {
		return Question{}, invalidQuestion("text is required")
	}
	if q.Points <= 0 {
		return Question{}, invalidQuestion("points must be positive")
	}

	switch q.Type {
	case MultipleChoice:
		if len(in.Options) < 2 {
			return Question{}, invalidQuestion("multiple choice needs at least two options")
		}
		seen := make(map[string]struct{}, len(in.Options))
		for _, o := range in.Options {
			if o == "" {
				return Question{}, invalidQuestion("options must not be empty")
			}
			if _, dup := seen[o]; dup {
				return Question{}, invalidQuestion("duplicate option %q", o)
			}
			seen[o] = struct{}{}
		}
		q.Options = append(q.Options, in.Options...)
		if in.CorrectAnswer.Index != nil {
			i := *in.CorrectAnswer.Index
			if i < 0 || i >= len(q.Options) {
				return Question{}, invalidQuestion("correct option index %d out of range", i)
			}
			q.CorrectAnswer = q.Options[i]
		} else {
			if _, ok := seen[in.CorrectAnswer.Text]; !ok {
				return Question{}, invalidQuestion("correct answer must be one of the options")
			}
			q.CorrectAnswer = in.CorrectAnswer.Text
		}

	case TrueFalse:
		if len(in.Options) > 0 {
			return Question{}, invalidQuestion("true/false questions take no options")
		}
		if in.CorrectAnswer.Index != nil {
			return Question{}, invalidQuestion(`true/false answer must be "true" or "false"`)
		}
		ans := strings.ToLower(strings.TrimSpace(in.CorrectAnswer.Text))
		if ans != "true" && ans != "false" {
			return Question{}, invalidQuestion(`true/false answer must be "true" or "false"`)
		}
		q.CorrectAnswer = ans

	case ShortAnswer:
		if len(in.Options) > 0 {
			return Question{}, invalidQuestion("short answer questions take no options")
		}
		// stored verbatim: grading is an exact match
		q.CorrectAnswer = in.CorrectAnswer.Text
		if q.CorrectAnswer == "" && in.CorrectAnswer.Index != nil {
			q.CorrectAnswer = strconv.Itoa(*in.CorrectAnswer.Index)
		}
		if q.CorrectAnswer == "" {
			return Question{}, invalidQuestion("short answer needs a correct answer")
		}

	default:
		return Question{}, invalidQuestion("unknown type %q", in.Type)
	}
	return q, nil
}

// QuizInput is a quiz as authored. Position 0 appends to the course.
type QuizInput struct {
	Title        string          `json:"title" yaml:"title" validate:"required"`
	Description  string          `json:"description" yaml:"description"`
	Position     int             `json:"position" yaml:"position" validate:"gte=0"`
	TimerMinutes *int            `json:"timer_minutes" yaml:"timer_minutes" validate:"omitempty,gt=0"`
	MaxAttempts  int             `json:"max_attempts" yaml:"max_attempts" validate:"gte=0"`
	Published    bool            `json:"published" yaml:"published"`
	Questions    []QuestionInput `json:"questions" yaml:"questions" validate:"dive"`
}

// Build normalizes every question and applies defaults. defaultMaxAttempts
// is used when the input leaves max_attempts unset.
func (in QuizInput) Build(courseID string, defaultMaxAttempts int) (Quiz, error) {
	if defaultMaxAttempts <= 0 {
		defaultMaxAttempts = 1
	}
	qz := Quiz{
		CourseID:     courseID,
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		Position:     in.Position,
		TimerMinutes: in.TimerMinutes,
		MaxAttempts:  in.MaxAttempts,
		Published:    in.Published,
	}
	if qz.Title == "" {
		return Quiz{}, fmt.Errorf("%w: quiz title is required", ErrInvalidQuestion)
	}
	if qz.MaxAttempts <= 0 {
		qz.MaxAttempts = defaultMaxAttempts
	}
	for i, qi := range in.Questions {
		q, err := qi.Normalize()
		if err != nil {
			return Quiz{}, fmt.Errorf("question %d: %w", i+1, err)
		}
		qz.Questions = append(qz.Questions, q)
	}
	return qz, nil
}

// Import reads a quiz document. YAML is accepted, and so is JSON since it is
// a subset of YAML.
func Import(r io.Reader) (QuizInput, error) {
	var in QuizInput
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&in); err != nil {
		if errors.Is(err, io.EOF) {
			return QuizInput{}, fmt.Errorf("import: empty document")
		}
		return QuizInput{}, fmt.Errorf("import: %w", err)
	}
	return in, nil
}
