package exam

import (
	"time"

	"github.com/mind-engage/examprep/internal/question"
	"github.com/mind-engage/examprep/internal/scoring"
	"github.com/mind-engage/examprep/internal/store"
)

// BlueprintSummary is the part of a blueprint a test taker sees.
type BlueprintSummary struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Scope           store.Scope `json:"scope"`
	Subject         string      `json:"subject,omitempty"`
	Topic           string      `json:"topic,omitempty"`
	DurationMinutes int         `json:"duration_minutes"`
	NegativeMarking bool        `json:"negative_marking"`
}

func summarize(b store.Blueprint) BlueprintSummary {
	return BlueprintSummary{
		ID:              b.ID,
		Name:            b.Name,
		Scope:           b.Scope,
		Subject:         b.Subject,
		Topic:           b.Topic,
		DurationMinutes: b.DurationMinutes,
		NegativeMarking: b.NegativeMarking,
	}
}

// InstanceView is a materialized test without answers. It is rendered from
// the instance's launch snapshot, so it never changes once built.
type InstanceView struct {
	TestInstanceID string           `json:"test_instance_id"`
	Blueprint      BlueprintSummary `json:"blueprint"`
	Questions      []question.View  `json:"questions"`
	CreatedAt      time.Time        `json:"created_at"`
}

// Launch is the launchTest response. Requested is the blueprint's question
// count; len(Questions) may be smaller when the pool is short.
type Launch struct {
	InstanceView
	Requested int `json:"requested"`
}

type SubmitRequest struct {
	InstanceID     string         `json:"-"`
	UserID         string         `json:"-"`
	Answers        map[string]any `json:"answers"`
	ElapsedSeconds int            `json:"elapsed_seconds,omitempty"`
}

// Submission is a scored test. Persisted is false for guests and when the
// attempt could not be recorded; the score is the same either way.
type Submission struct {
	TestInstanceID string `json:"test_instance_id"`
	scoring.Result
	Persisted bool   `json:"persisted"`
	AttemptID string `json:"attempt_id,omitempty"`
}
