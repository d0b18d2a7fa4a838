// Package review holds the review-queue state machine. Persistence lives in
// the store; this package only decides what a transition means.
package review

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mind-engage/examprep/internal/question"
)

type Status string

const (
	Open     Status = "open"
	Approved Status = "approved"
	Rejected Status = "rejected"
)

func (s Status) Valid() bool { return s == Open || s == Approved || s == Rejected }

// Decision is a reviewer's verdict. It doubles as the closed status.
type Decision string

const (
	Approve Decision = "approved"
	Reject  Decision = "rejected"
)

// ReasonUnspecified is queued when vetting flagged no concrete issue.
const ReasonUnspecified = "needs_manual_review"

type Item struct {
	ID         string     `json:"id"`
	QuestionID string     `json:"question_id"`
	Reasons    []string   `json:"reasons"`
	Priority   int        `json:"priority"`
	Status     Status     `json:"status"`
	Notes      string     `json:"notes,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	DecidedAt  *time.Time `json:"decided_at,omitempty"`
}

// ParseDecision accepts "approve"/"approved" and "reject"/"rejected".
func ParseDecision(s string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approve", "approved":
		return Approve, nil
	case "reject", "rejected":
		return Reject, nil
	}
	return "", fmt.Errorf("unknown decision %q", s)
}

// Transition returns the status an item moves to. Only open items move;
// approved and rejected are terminal.
func Transition(from Status, d Decision) (Status, error) {
	if from != Open {
		return from, fmt.Errorf("review item is %s, not open", from)
	}
	switch d {
	case Approve:
		return Approved, nil
	case Reject:
		return Rejected, nil
	}
	return from, fmt.Errorf("unknown decision %q", d)
}

// Outcome is what a decision does to the owning question.
type Outcome struct {
	ReviewStatus question.ReviewStatus
	Published    bool
}

// Apply maps a decision to question fields. publish is the caller's intent
// and defaults to true; a rejection always unpublishes.
func Apply(d Decision, publish *bool) Outcome {
	if d == Reject {
		return Outcome{ReviewStatus: question.Rejected, Published: false}
	}
	p := true
	if publish != nil {
		p = *publish
	}
	return Outcome{ReviewStatus: question.Approved, Published: p}
}

// Priority maps a quality score to 1..10; lower scores are more urgent.
func Priority(score float64) int {
	if math.IsNaN(score) || score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	p := 1 + int(math.Floor(score*9))
	if p > 10 {
		p = 10
	}
	return p
}

// Reasons returns the reason codes queued for a question.
func Reasons(issues []string) []string {
	out := make([]string, 0, len(issues))
	seen := map[string]bool{}
	for _, i := range issues {
		i = strings.TrimSpace(i)
		if i == "" || seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, i)
	}
	if len(out) == 0 {
		out = append(out, ReasonUnspecified)
	}
	return out
}

// PublishFlag decides the publish flag written by ingestion and vetting.
func PublishFlag(status question.ReviewStatus, requested bool) bool {
	return requested && status.Publishable()
}

// NeedsItem reports whether a question in this status should have an open
// queue item.
func NeedsItem(status question.ReviewStatus) bool {
	return status == question.NeedsReview
}
