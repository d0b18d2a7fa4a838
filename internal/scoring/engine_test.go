package scoring

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/examprep/internal/question"
)

func mcqItem(id, topic string, d question.Difficulty, key string) Item {
	return Item{
		QuestionID: id, Type: question.SingleChoice, Subject: "physics", Topic: topic, Difficulty: d,
		Marks: 4, NegativeMarks: 1,
		Answer: question.AnswerKey{Type: question.SingleChoice, CorrectOption: key},
	}
}

func intItem(id, topic string, d question.Difficulty, n int64) Item {
	return Item{
		QuestionID: id, Type: question.IntegerAnswer, Subject: "mathematics", Topic: topic, Difficulty: d,
		Marks: 4, NegativeMarks: 1,
		Answer: question.AnswerKey{Type: question.IntegerAnswer, CorrectInteger: &n},
	}
}

func fiveQuestions() []Item {
	return []Item{
		mcqItem("q1", "kinematics", question.Easy, "A"),
		mcqItem("q2", "kinematics", question.Medium, "B"),
		intItem("q3", "optics", question.Hard, 12),
		mcqItem("q4", "optics", question.Medium, "D"),
		mcqItem("q5", "kinematics", question.Easy, "C"),
	}
}

func TestScoreMarkingScheme(t *testing.T) {
	answers := map[string]any{
		"q1": "a",
		"q2": "B",
		"q3": "12",
		"q4": "A",
		"q5": "   ",
	}

	res, err := NewEngine().Score(fiveQuestions(), answers)
	require.NoError(t, err)

	assert.InDelta(t, 11, res.Score, 1e-9)
	assert.InDelta(t, 20, res.MaxScore, 1e-9)
	assert.Equal(t, 4, res.Attempted)
	assert.Equal(t, 3, res.Correct)
	assert.Equal(t, 1, res.Incorrect)
	assert.Equal(t, 5, res.Total)
	assert.InDelta(t, 60.0, res.Accuracy, 1e-9)
	assert.InDelta(t, 55.0, res.Percentile, 1e-9)

	require.Len(t, res.Questions, 5)
	assert.Equal(t, Correct, res.Questions[0].Outcome)
	assert.Equal(t, Incorrect, res.Questions[3].Outcome)
	assert.InDelta(t, -1, res.Questions[3].Delta, 1e-9)
	assert.Equal(t, Unattempted, res.Questions[4].Outcome)
	assert.Nil(t, res.Questions[4].Response)
}

func TestScoreBreakdowns(t *testing.T) {
	answers := map[string]any{"q1": "A", "q2": "B", "q3": 12.0, "q4": "A"}

	res, err := NewEngine().Score(fiveQuestions(), answers)
	require.NoError(t, err)

	assert.Equal(t, []Breakdown{
		{Key: "kinematics", Total: 3, Attempted: 2, Correct: 2, Accuracy: 66.67},
		{Key: "optics", Total: 2, Attempted: 2, Correct: 1, Accuracy: 50},
	}, res.ByTopic)
	assert.Equal(t, []Breakdown{
		{Key: "easy", Total: 2, Attempted: 1, Correct: 1, Accuracy: 50},
		{Key: "medium", Total: 2, Attempted: 2, Correct: 1, Accuracy: 50},
		{Key: "hard", Total: 1, Attempted: 1, Correct: 1, Accuracy: 100},
	}, res.ByDifficulty)
}

func TestScoreIntegerComparison(t *testing.T) {
	items := []Item{intItem("q", "algebra", question.Easy, 7)}
	cases := []struct {
		name string
		resp any
		want Outcome
	}{
		{"string", " 7 ", Correct},
		{"decimal string", "7.0", Correct},
		{"float", 7.0, Correct},
		{"json number", json.Number("7"), Correct},
		{"int", 7, Correct},
		{"wrong", "8", Incorrect},
		{"text", "seven", Incorrect},
		{"inf", "Inf", Incorrect},
		{"nan", math.NaN(), Incorrect},
		{"blank", "", Unattempted},
		{"nil", nil, Unattempted},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			res, err := NewEngine().Score(items, map[string]any{"q": c.resp})
			require.NoError(t, err)
			assert.Equal(t, c.want, res.Questions[0].Outcome)
		})
	}
}

func TestScoreMalformedResponse(t *testing.T) {
	_, err := NewEngine().Score(fiveQuestions(), map[string]any{"q1": []any{"A"}})
	assert.ErrorIs(t, err, ErrMalformedResponse)

	_, err = NewEngine().Score(fiveQuestions(), map[string]any{"q3": map[string]any{"v": 1}})
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestScoreNegativeTotalClampsPercentile(t *testing.T) {
	answers := map[string]any{"q1": "B", "q2": "A", "q4": "A"}

	res, err := NewEngine().Score(fiveQuestions(), answers)
	require.NoError(t, err)
	assert.InDelta(t, -3, res.Score, 1e-9)
	assert.Zero(t, res.Percentile)
	assert.Zero(t, res.Accuracy)
}

func TestScorePercentileCap(t *testing.T) {
	answers := map[string]any{"q1": "A", "q2": "B", "q3": 12, "q4": "D", "q5": "C"}

	res, err := NewEngine().Score(fiveQuestions(), answers)
	require.NoError(t, err)
	assert.InDelta(t, 20, res.Score, 1e-9)
	assert.InDelta(t, 100, res.Accuracy, 1e-9)
	assert.InDelta(t, MaxPercentile, res.Percentile, 1e-9)
}

func TestScoreWithoutNegativeMarking(t *testing.T) {
	res, err := NewEngine(WithNegativeMarking(false)).Score(fiveQuestions(), map[string]any{"q1": "B"})
	require.NoError(t, err)
	assert.Zero(t, res.Score)
	assert.Equal(t, 1, res.Attempted)
}

func TestScoreIgnoresUnknownIDs(t *testing.T) {
	res, err := NewEngine().Score(fiveQuestions(), map[string]any{"nope": "A"})
	require.NoError(t, err)
	assert.Zero(t, res.Attempted)
}

func TestScoreEmpty(t *testing.T) {
	res, err := NewEngine().Score(nil, nil)
	require.NoError(t, err)
	assert.Zero(t, res.MaxScore)
	assert.Zero(t, res.Percentile)
	assert.Empty(t, res.ByTopic)
}
