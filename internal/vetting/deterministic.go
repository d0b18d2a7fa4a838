package vetting

import (
	"context"

	"github.com/mind-engage/examprep/internal/question"
)

const (
	deterministicBaseScore = 0.6
	deterministicPenalty   = 0.2
)

// Deterministic runs structural checks only. With the default thresholds
// its base score sits below auto_pass, so everything it vets is routed to
// a human unless an AI pass raises the score.
type Deterministic struct {
	Thresholds Thresholds
}

func NewDeterministic(th Thresholds) *Deterministic {
	return &Deterministic{Thresholds: th.normalized()}
}

func (d *Deterministic) Vet(_ context.Context, c question.Candidate) Result {
	return d.vet(question.Normalize(c))
}

func (d *Deterministic) vet(c question.Candidate) Result {
	issues := StructuralIssues(c)
	score := deterministicBaseScore - deterministicPenalty*float64(len(issues))
	return finalize(c, score, issues, d.Thresholds.normalized(), SourceFallback)
}
