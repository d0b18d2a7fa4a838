package question

import "time"

type Type string

const (
	SingleChoice  Type = "single-choice"
	IntegerAnswer Type = "integer-answer"
)

func (t Type) Valid() bool { return t == SingleChoice || t == IntegerAnswer }

type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// Difficulties lists the bands in sampling order.
var Difficulties = []Difficulty{Easy, Medium, Hard}

func (d Difficulty) Valid() bool { return d == Easy || d == Medium || d == Hard }

type ReviewStatus string

const (
	NeedsReview ReviewStatus = "needs_review"
	AutoPass    ReviewStatus = "auto_pass"
	Approved    ReviewStatus = "approved"
	Rejected    ReviewStatus = "rejected"
)

// Publishable reports whether a question in this status may carry the publish flag.
func (s ReviewStatus) Publishable() bool { return s == AutoPass || s == Approved }

// Decided reports whether a human has already ruled on the question.
func (s ReviewStatus) Decided() bool { return s == Approved || s == Rejected }

// OptionKeys are the only keys a single-choice question may carry.
var OptionKeys = []string{"A", "B", "C", "D"}

const (
	DefaultMarks         = 4.0
	DefaultNegativeMarks = 1.0
)

type Option struct {
	Key       string `json:"key" validate:"required"`
	Text      string `json:"text"`
	TextLatex string `json:"text_latex,omitempty"`
}

// AnswerKey holds either CorrectOption (single-choice) or CorrectInteger
// (integer-answer). Type must match the owning question's type.
type AnswerKey struct {
	Type           Type   `json:"answer_type"`
	CorrectOption  string `json:"correct_option,omitempty"`
	CorrectInteger *int64 `json:"correct_integer,omitempty"`
	Solution       string `json:"solution,omitempty"`
}

// Question is the full record, answer included. Only the ingestion and
// scoring paths see it; delivery goes through View.
type Question struct {
	ID            string       `json:"id"`
	Type          Type         `json:"type"`
	Subject       string       `json:"subject"`
	Topic         string       `json:"topic"`
	Subtopic      string       `json:"subtopic,omitempty"`
	Difficulty    Difficulty   `json:"difficulty"`
	Stem          string       `json:"stem"`
	StemLatex     string       `json:"stem_latex,omitempty"`
	Marks         float64      `json:"marks"`
	NegativeMarks float64      `json:"negative_marks"`
	QualityScore  float64      `json:"quality_score"`
	ReviewStatus  ReviewStatus `json:"review_status"`
	Published     bool         `json:"is_published"`
	Fingerprint   string       `json:"fingerprint"`
	DiagramRef    string       `json:"diagram_ref,omitempty"`
	Issues        []string     `json:"issues,omitempty"`
	Options       []Option     `json:"options,omitempty"`
	Answer        *AnswerKey   `json:"answer,omitempty"`
	VettedAt      *time.Time   `json:"vetted_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// View is the answer-agnostic shape served to test takers.
type View struct {
	ID            string     `json:"id"`
	Type          Type       `json:"type"`
	Subject       string     `json:"subject"`
	Topic         string     `json:"topic"`
	Subtopic      string     `json:"subtopic,omitempty"`
	Difficulty    Difficulty `json:"difficulty"`
	Stem          string     `json:"stem"`
	StemLatex     string     `json:"stem_latex,omitempty"`
	Marks         float64    `json:"marks"`
	NegativeMarks float64    `json:"negative_marks"`
	DiagramRef    string     `json:"diagram_ref,omitempty"`
	Options       []Option   `json:"options,omitempty"`
}

func (q Question) View() View {
	opts := make([]Option, len(q.Options))
	copy(opts, q.Options)
	return View{
		ID:            q.ID,
		Type:          q.Type,
		Subject:       q.Subject,
		Topic:         q.Topic,
		Subtopic:      q.Subtopic,
		Difficulty:    q.Difficulty,
		Stem:          q.Stem,
		StemLatex:     q.StemLatex,
		Marks:         q.Marks,
		NegativeMarks: q.NegativeMarks,
		DiagramRef:    q.DiagramRef,
		Options:       opts,
	}
}

// Candidate is an incoming question payload before it is persisted.
type Candidate struct {
	Type          Type       `json:"type" validate:"required,oneof=single-choice integer-answer"`
	Subject       string     `json:"subject" validate:"required"`
	Topic         string     `json:"topic" validate:"required"`
	Subtopic      string     `json:"subtopic,omitempty"`
	Difficulty    Difficulty `json:"difficulty" validate:"required,oneof=easy medium hard"`
	Stem          string     `json:"stem" validate:"required"`
	StemLatex     string     `json:"stem_latex,omitempty"`
	Options       []Option   `json:"options,omitempty" validate:"omitempty,dive"`
	Answer        AnswerKey  `json:"answer"`
	Marks         float64    `json:"marks,omitempty" validate:"gte=0"`
	NegativeMarks float64    `json:"negative_marks,omitempty" validate:"gte=0"`
	DiagramRef    string     `json:"diagram_ref,omitempty"`
	DiagramSVG    string     `json:"diagram_svg,omitempty"`
	Fingerprint   string     `json:"fingerprint,omitempty"`
}

// Candidate rebuilds the payload shape of a stored question, used when
// re-vetting persisted content.
func (q Question) Candidate() Candidate {
	c := Candidate{
		Type:          q.Type,
		Subject:       q.Subject,
		Topic:         q.Topic,
		Subtopic:      q.Subtopic,
		Difficulty:    q.Difficulty,
		Stem:          q.Stem,
		StemLatex:     q.StemLatex,
		Options:       append([]Option(nil), q.Options...),
		Marks:         q.Marks,
		NegativeMarks: q.NegativeMarks,
		DiagramRef:    q.DiagramRef,
		Fingerprint:   q.Fingerprint,
	}
	if q.Answer != nil {
		c.Answer = *q.Answer
	} else {
		c.Answer = AnswerKey{Type: q.Type}
	}
	return c
}
