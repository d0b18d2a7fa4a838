// Package store is the data store gateway. SQLStore implements Store over
// database/sql for SQLite and Postgres; NewMemoryStore keeps it in process.
package store

import (
	"context"
	"time"

	"github.com/mind-engage/examprep/internal/apperr"
	"github.com/mind-engage/examprep/internal/question"
	"github.com/mind-engage/examprep/internal/review"
	"github.com/mind-engage/examprep/internal/sampler"
)

type Scope string

const (
	ScopeTopic    Scope = "topic"
	ScopeSubject  Scope = "subject"
	ScopeFullMock Scope = "full_mock"
)

func (s Scope) Valid() bool { return s == ScopeTopic || s == ScopeSubject || s == ScopeFullMock }

// Blueprint is a named test template.
type Blueprint struct {
	ID              string          `json:"id" validate:"required"`
	Name            string          `json:"name" validate:"required"`
	Scope           Scope           `json:"scope" validate:"required,oneof=topic subject full_mock"`
	Subject         string          `json:"subject,omitempty" validate:"required_unless=Scope full_mock"`
	Topic           string          `json:"topic,omitempty" validate:"required_if=Scope topic"`
	QuestionCount   int             `json:"question_count" validate:"gt=0,lte=500"`
	Distribution    sampler.Weights `json:"distribution"`
	DurationMinutes int             `json:"duration_minutes" validate:"gte=0"`
	NegativeMarking bool            `json:"negative_marking"`
	Active          bool            `json:"is_active"`
	CreatedAt       time.Time       `json:"created_at"`
}

type BlueprintFilter struct {
	Scope      Scope
	Subject    string
	Topic      string
	ActiveOnly bool
}

// TestInstance is an immutable, ordered question set. Questions holds the
// content (answer keys included) as it was at launch, parallel to
// QuestionIDs; later edits to the bank do not reach it.
type TestInstance struct {
	ID          string              `json:"id"`
	BlueprintID string              `json:"blueprint_id"`
	Seed        string              `json:"seed"`
	CreatedAt   time.Time           `json:"created_at"`
	QuestionIDs []string            `json:"question_ids"`
	Questions   []question.Question `json:"-"`
}

func (t TestInstance) checkSnapshot(op string) error {
	if len(t.Questions) != len(t.QuestionIDs) {
		return apperr.Invalidf(op, "test instance %s: %d snapshots for %d questions", t.ID, len(t.Questions), len(t.QuestionIDs))
	}
	for i, q := range t.Questions {
		if q.ID != t.QuestionIDs[i] {
			return apperr.Invalidf(op, "test instance %s: snapshot %d is %s, want %s", t.ID, i+1, q.ID, t.QuestionIDs[i])
		}
	}
	return nil
}

// Attempt is the persisted summary of a scored submission.
type Attempt struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	BlueprintID    string    `json:"blueprint_id"`
	BlueprintName  string    `json:"blueprint_name"`
	TestInstanceID string    `json:"test_instance_id"`
	Score          float64   `json:"score"`
	MaxScore       float64   `json:"max_score"`
	Percentile     float64   `json:"percentile"`
	Correct        int       `json:"correct"`
	Attempted      int       `json:"attempted"`
	Total          int       `json:"total"`
	Accuracy       float64   `json:"accuracy"`
	ElapsedSeconds int       `json:"elapsed_seconds"`
	CreatedAt      time.Time `json:"created_at"`
}

// PoolFilter narrows the published pool to a blueprint's scope. Empty
// fields match everything.
type PoolFilter struct {
	Subject string
	Topic   string
}

// QuestionWrite is one ingestion or vetting write. Publish is the caller's
// intent; the stored flag also depends on the effective review status.
type QuestionWrite struct {
	Question question.Question
	Publish  bool
	// Source is recorded in the audit event ("ingest" or "vet").
	Source string
}

type SaveResult struct {
	ID           string                `json:"id"`
	Inserted     bool                  `json:"inserted"`
	ReviewStatus question.ReviewStatus `json:"review_status"`
	Published    bool                  `json:"is_published"`
	Enqueued     bool                  `json:"enqueued"`
}

type VetSelection struct {
	Limit        int
	OnlyUnvetted bool
}

// Decision is a review verdict to apply atomically.
type Decision struct {
	QuestionID string
	Decision   review.Decision
	Notes      string
	Publish    *bool
	DecidedBy  string
}

type ReconcileReport struct {
	Closed   int `json:"closed"`
	Enqueued int `json:"enqueued"`
}

type QuestionStore interface {
	SaveQuestion(ctx context.Context, w QuestionWrite) (SaveResult, error)
	GetQuestion(ctx context.Context, id string) (question.Question, error)
	// GetQuestions returns full records (answers included) keyed by id.
	GetQuestions(ctx context.Context, ids []string) (map[string]question.Question, error)
	ListForVetting(ctx context.Context, sel VetSelection) ([]question.Question, error)
	PublishedPools(ctx context.Context, f PoolFilter) (sampler.Pools, error)
}

type ReviewStore interface {
	ListReviewQueue(ctx context.Context, status review.Status, limit int) ([]review.Item, error)
	DecideReview(ctx context.Context, d Decision) (review.Item, error)
	ReconcileReviewQueue(ctx context.Context) (ReconcileReport, error)
}

type BlueprintStore interface {
	ListBlueprints(ctx context.Context, f BlueprintFilter) ([]Blueprint, error)
	GetBlueprint(ctx context.Context, id string) (Blueprint, error)
	PutBlueprint(ctx context.Context, b Blueprint) error
}

type InstanceStore interface {
	CreateTestInstance(ctx context.Context, inst TestInstance) error
	GetTestInstance(ctx context.Context, id string) (TestInstance, error)
}

type AttemptStore interface {
	RecordAttempt(ctx context.Context, a Attempt) error
	ListAttempts(ctx context.Context, userID string, limit int) ([]Attempt, error)
}

// Store is everything the services need.
type Store interface {
	QuestionStore
	ReviewStore
	BlueprintStore
	InstanceStore
	AttemptStore
	Ping(ctx context.Context) error
}
