// Package vetting validates and scores candidate questions. Both vetters in
// this package honour the same contract: Vet never fails, the returned
// question is structurally checked by the same function, and the review
// status is derived from score and issues in one place.
package vetting

import (
	"context"
	"math"

	"github.com/mind-engage/examprep/internal/question"
)

type Source string

const (
	SourceAI       Source = "ai"
	SourceFallback Source = "fallback"
)

// MaxQualityScore keeps machine scores strictly below certainty.
const MaxQualityScore = 0.99

// Result is a vetted question.
type Result struct {
	Question     question.Candidate    `json:"question"`
	QualityScore float64               `json:"quality_score"`
	ReviewStatus question.ReviewStatus `json:"review_status"`
	Issues       []string              `json:"issues"`
	Source       Source                `json:"source"`
}

type Vetter interface {
	Vet(ctx context.Context, c question.Candidate) Result
}

// Thresholds drive the auto_pass decision and the cap applied when AI
// output has to be discarded.
type Thresholds struct {
	AutoPass  float64
	ReviewCap float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{AutoPass: 0.85, ReviewCap: 0.6}
}

func (t Thresholds) normalized() Thresholds {
	d := DefaultThresholds()
	if t.AutoPass <= 0 || t.AutoPass > 1 {
		t.AutoPass = d.AutoPass
	}
	if t.ReviewCap <= 0 || t.ReviewCap > t.AutoPass {
		t.ReviewCap = math.Min(d.ReviewCap, t.AutoPass)
	}
	return t
}

func finalize(c question.Candidate, score float64, issues []string, th Thresholds, src Source) Result {
	score = clampScore(score)
	if issues == nil {
		issues = []string{}
	}
	status := question.NeedsReview
	if score >= th.AutoPass && len(issues) == 0 {
		status = question.AutoPass
	}
	return Result{Question: c, QualityScore: score, ReviewStatus: status, Issues: issues, Source: src}
}

// capBelowReview forces r under the review cap and appends codes, so the
// result can never auto-pass.
func capBelowReview(r Result, th Thresholds, codes ...string) Result {
	ceiling := th.ReviewCap - 0.01
	if ceiling < 0 {
		ceiling = 0
	}
	if r.QualityScore > ceiling {
		r.QualityScore = ceiling
	}
	r.QualityScore = roundScore(r.QualityScore)
	r.Issues = appendUnique(r.Issues, codes...)
	r.ReviewStatus = question.NeedsReview
	return r
}

func clampScore(s float64) float64 {
	if math.IsNaN(s) || s < 0 {
		return 0
	}
	if s > MaxQualityScore {
		s = MaxQualityScore
	}
	return roundScore(s)
}

func roundScore(s float64) float64 {
	return math.Round(s*1000) / 1000
}

func appendUnique(dst []string, codes ...string) []string {
	seen := make(map[string]bool, len(dst)+len(codes))
	out := make([]string, 0, len(dst)+len(codes))
	for _, c := range dst {
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	for _, c := range codes {
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
