package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/examprep/internal/question"
)

func TestTransitionOnlyFromOpen(t *testing.T) {
	got, err := Transition(Open, Approve)
	require.NoError(t, err)
	assert.Equal(t, Approved, got)

	got, err = Transition(Open, Reject)
	require.NoError(t, err)
	assert.Equal(t, Rejected, got)

	for _, from := range []Status{Approved, Rejected} {
		for _, d := range []Decision{Approve, Reject} {
			_, err := Transition(from, d)
			assert.Error(t, err, "%s -> %s", from, d)
		}
	}
	_, err = Transition(Open, Decision("open"))
	assert.Error(t, err)
}

func TestApply(t *testing.T) {
	no := false
	yes := true

	assert.Equal(t, Outcome{question.Approved, true}, Apply(Approve, nil))
	assert.Equal(t, Outcome{question.Approved, false}, Apply(Approve, &no))
	assert.Equal(t, Outcome{question.Rejected, false}, Apply(Reject, &yes))
	assert.Equal(t, Outcome{question.Rejected, false}, Apply(Reject, nil))
}

func TestParseDecision(t *testing.T) {
	for in, want := range map[string]Decision{"approve": Approve, " Approved ": Approve, "REJECT": Reject, "rejected": Reject} {
		got, err := ParseDecision(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseDecision("open")
	assert.Error(t, err)
}

func TestPriority(t *testing.T) {
	cases := []struct {
		score float64
		want  int
	}{
		{0, 1}, {0.1, 1}, {0.12, 2}, {0.59, 6}, {0.6, 6}, {0.99, 9}, {1, 10}, {-3, 1}, {7, 10},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Priority(c.score), "score %v", c.score)
	}
	assert.Less(t, Priority(0.2), Priority(0.8))
}

func TestReasons(t *testing.T) {
	assert.Equal(t, []string{ReasonUnspecified}, Reasons(nil))
	assert.Equal(t, []string{"a", "b"}, Reasons([]string{"a", " ", "b", "a"}))
}

func TestPublishFlag(t *testing.T) {
	assert.True(t, PublishFlag(question.AutoPass, true))
	assert.True(t, PublishFlag(question.Approved, true))
	assert.False(t, PublishFlag(question.AutoPass, false))
	assert.False(t, PublishFlag(question.NeedsReview, true))
	assert.False(t, PublishFlag(question.Rejected, true))
}
