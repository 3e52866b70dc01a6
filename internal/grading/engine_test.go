package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGradeMixedQuiz(t *testing.T) {
	qs := []Q{
		{ID: "q1", Type: TypeTrueFalse, CorrectAnswer: "true", Points: 2},
		{ID: "q2", Type: TypeShortAnswer, CorrectAnswer: "Paris", Points: 3},
	}
	out := NewDefaultGrader().Grade(qs, []Response{
		{QuestionID: "q1", Answer: "true"},
		{QuestionID: "q2", Answer: "paris"},
	})

	assert.Equal(t, 2, out.Score)
	assert.Equal(t, 5, out.Total)
	assert.Equal(t, 40, out.Percentage)
	assert.True(t, out.Items[0].IsCorrect)
	assert.False(t, out.Items[1].IsCorrect)
	assert.Equal(t, 0, out.Items[1].PointsEarned)
	assert.Equal(t, "Paris", out.Items[1].CorrectAnswer)
}

func TestGradeMatchesByIDNotOrder(t *testing.T) {
	qs := []Q{
		{ID: "a", Type: TypeMultipleChoice, CorrectAnswer: "red", Points: 1},
		{ID: "b", Type: TypeMultipleChoice, CorrectAnswer: "blue", Points: 4},
	}
	out := NewDefaultGrader().Grade(qs, []Response{
		{QuestionID: "b", Answer: "blue"},
		{QuestionID: "a", Answer: "red"},
		{QuestionID: "zzz", Answer: "ignored"},
	})
	assert.Equal(t, 5, out.Score)
	assert.Equal(t, 100, out.Percentage)
	assert.Equal(t, "a", out.Items[0].QuestionID)
	assert.Equal(t, "b", out.Items[1].QuestionID)
}

func TestGradeNoAnswers(t *testing.T) {
	qs := []Q{
		{ID: "a", Type: TypeMultipleChoice, CorrectAnswer: "x", Points: 1},
		{ID: "b", Type: TypeMultipleChoice, CorrectAnswer: "y", Points: 2},
	}
	out := NewDefaultGrader().Grade(qs, nil)
	assert.Equal(t, 0, out.Score)
	assert.Equal(t, 3, out.Total)
	for _, it := range out.Items {
		assert.Equal(t, "", it.Submitted)
		assert.False(t, it.IsCorrect)
	}
}

func TestGradeEmptyQuiz(t *testing.T) {
	out := NewDefaultGrader().Grade(nil, []Response{{QuestionID: "x", Answer: "y"}})
	assert.Equal(t, 0, out.Score)
	assert.Equal(t, 0, out.Total)
	assert.Equal(t, 0, out.Percentage)
	assert.Empty(t, out.Items)
}

func TestGradeShortAnswerIsExactByDefault(t *testing.T) {
	q := []Q{{ID: "s", Type: TypeShortAnswer, CorrectAnswer: "New York", Points: 1}}
	for _, in := range []string{"new york", "New York ", " New York", "New  York"} {
		out := NewDefaultGrader().Grade(q, []Response{{QuestionID: "s", Answer: in}})
		assert.Equal(t, 0, out.Score, "%q", in)
	}
	out := NewDefaultGrader(WithShortAnswerFolding(true)).Grade(q, []Response{{QuestionID: "s", Answer: " new  york!"}})
	assert.Equal(t, 1, out.Score)
}

func TestGradeUnknownTypeNeverScores(t *testing.T) {
	q := []Q{{ID: "e", Type: "ESSAY", CorrectAnswer: "", Points: 5}}
	out := NewDefaultGrader().Grade(q, nil)
	assert.Equal(t, 0, out.Score)
	assert.Equal(t, 5, out.Total)
}

func TestPercentage(t *testing.T) {
	cases := []struct{ score, total, want int }{
		{0, 0, 0},
		{0, 10, 0},
		{2, 5, 40},
		{1, 3, 33},
		{2, 3, 67},
		{1, 8, 13}, // 12.5 rounds up
		{3, 8, 38}, // 37.5 rounds up
		{7, 7, 100},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Percentage(c.score, c.total), "%d/%d", c.score, c.total)
	}
}

func TestFoldText(t *testing.T) {
	assert.Equal(t, "hello world", foldText("  Hello,   World! "))
	assert.Equal(t, "", foldText("  ...  "))
}
