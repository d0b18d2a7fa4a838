package question

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64p(v int64) *int64 { return &v }

func mcq() Candidate {
	return Candidate{
		Type:       SingleChoice,
		Subject:    "Physics",
		Topic:      "Mechanics",
		Subtopic:   "Kinematics",
		Difficulty: Easy,
		Stem:       "A ball is dropped from rest. What is its speed after 2 s? (g = 10 m/s^2)",
		Options: []Option{
			{Key: "A", Text: "10 m/s"},
			{Key: "B", Text: "20 m/s"},
			{Key: "C", Text: "5 m/s"},
			{Key: "D", Text: "40 m/s"},
		},
		Answer: AnswerKey{Type: SingleChoice, CorrectOption: "B"},
	}
}

func TestFingerprintIgnoresCaseAndWhitespace(t *testing.T) {
	a := mcq()
	b := mcq()
	b.Subject = "  physics "
	b.Topic = "MECHANICS"
	b.Stem = "a ball   is dropped from rest.\nWhat is its speed after 2 s?  (G = 10 m/s^2) "
	b.Options = []Option{
		{Key: "d", Text: "40 M/S"},
		{Key: "c", Text: " 5 m/s"},
		{Key: "b", Text: "20  m/s"},
		{Key: "a", Text: "10 m/s"},
	}
	b.Answer.CorrectOption = " b"

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.Len(t, Fingerprint(a), 64)
}

func TestFingerprintChangesWithSemantics(t *testing.T) {
	base := Fingerprint(mcq())

	answer := mcq()
	answer.Answer.CorrectOption = "C"
	assert.NotEqual(t, base, Fingerprint(answer), "different answer")

	option := mcq()
	option.Options[2].Text = "15 m/s"
	assert.NotEqual(t, base, Fingerprint(option), "different option text")

	topic := mcq()
	topic.Subtopic = ""
	assert.NotEqual(t, base, Fingerprint(topic), "subtopic dropped")
}

func TestFingerprintIntegerAnswer(t *testing.T) {
	c := Candidate{
		Type:       IntegerAnswer,
		Subject:    "Mathematics",
		Topic:      "Algebra",
		Difficulty: Medium,
		Stem:       "How many real roots does x^2 - 5x + 6 = 0 have?",
		Answer:     AnswerKey{CorrectInteger: int64p(2)},
	}
	other := c
	other.Answer = AnswerKey{CorrectInteger: int64p(3)}

	assert.NotEqual(t, Fingerprint(c), Fingerprint(other))
	assert.Equal(t, Fingerprint(c), Fingerprint(c))
}

func TestNormalizeKeepsDisplayCasing(t *testing.T) {
	c := mcq()
	c.Stem = "  Newton's Second Law  "
	c.Options[0].Key = "a"
	n := Normalize(c)

	assert.Equal(t, "Newton's Second Law", n.Stem)
	assert.Equal(t, "A", n.Options[0].Key)
	assert.Equal(t, SingleChoice, n.Answer.Type)
	assert.Equal(t, DefaultMarks, n.Marks)
	assert.Equal(t, DefaultNegativeMarks, n.NegativeMarks)
}

func TestValidator(t *testing.T) {
	v := NewValidator()
	require.NoError(t, v.Validate(Normalize(mcq())))

	missing := mcq()
	missing.Topic = ""
	missing.Stem = ""
	err := v.Validate(missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Topic")
	assert.Contains(t, err.Error(), "Stem")

	mismatch := Normalize(mcq())
	mismatch.Answer.Type = IntegerAnswer
	assert.Error(t, v.Validate(mismatch))
}

func TestViewDropsAnswer(t *testing.T) {
	q := Question{ID: "q1", Type: SingleChoice, Options: mcq().Options, Answer: &AnswerKey{CorrectOption: "B"}}
	v := q.View()
	assert.Equal(t, "q1", v.ID)
	assert.Len(t, v.Options, 4)
}
