package store

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/examprep/internal/apperr"
	"github.com/mind-engage/examprep/internal/db"
	"github.com/mind-engage/examprep/internal/question"
	"github.com/mind-engage/examprep/internal/review"
	"github.com/mind-engage/examprep/internal/sampler"
	syncx "github.com/mind-engage/examprep/internal/sync"

	_ "modernc.org/sqlite" // driver for "sqlite"
)

func newSQLite(t *testing.T) (*SQLStore, *sql.DB) {
	t.Helper()
	conn, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// one connection, one in-memory database
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.EnsureSchema(context.Background(), conn, db.DriverSQLite))

	s := NewSQLStore(conn, "sqlite")
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s, conn
}

func sampleQuestion(stem string, d question.Difficulty, status question.ReviewStatus) question.Question {
	c := question.Normalize(question.Candidate{
		Type:       question.SingleChoice,
		Subject:    "Physics",
		Topic:      "Mechanics",
		Difficulty: d,
		Stem:       stem,
		Options: []question.Option{
			{Key: "A", Text: "1"}, {Key: "B", Text: "2"}, {Key: "C", Text: "3"}, {Key: "D", Text: "4"},
		},
		Answer: question.AnswerKey{CorrectOption: "C"},
	})
	ans := c.Answer
	return question.Question{
		Type:          c.Type,
		Subject:       c.Subject,
		Topic:         c.Topic,
		Difficulty:    c.Difficulty,
		Stem:          c.Stem,
		Marks:         c.Marks,
		NegativeMarks: c.NegativeMarks,
		QualityScore:  0.5,
		ReviewStatus:  status,
		Fingerprint:   question.Fingerprint(c),
		Options:       c.Options,
		Answer:        &ans,
		Issues:        []string{},
	}
}

func countRows(t *testing.T, conn *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, conn.QueryRow(query, args...).Scan(&n))
	return n
}

func TestSaveQuestionIsIdempotentByFingerprint(t *testing.T) {
	s, conn := newSQLite(t)
	ctx := context.Background()
	q := sampleQuestion("What is 1+2?", question.Easy, question.NeedsReview)

	first, err := s.SaveQuestion(ctx, QuestionWrite{Question: q, Publish: true, Source: "ingest"})
	require.NoError(t, err)
	assert.True(t, first.Inserted)
	assert.True(t, first.Enqueued)
	assert.False(t, first.Published, "needs_review is never published")

	q.Stem = "What is 1 + 2 ?"
	second, err := s.SaveQuestion(ctx, QuestionWrite{Question: q, Publish: true, Source: "ingest"})
	require.NoError(t, err)
	assert.False(t, second.Inserted)
	assert.False(t, second.Enqueued)
	assert.Equal(t, first.ID, second.ID)

	assert.Equal(t, 1, countRows(t, conn, `SELECT COUNT(*) FROM questions`))
	assert.Equal(t, 4, countRows(t, conn, `SELECT COUNT(*) FROM question_options`))
	assert.Equal(t, 1, countRows(t, conn, `SELECT COUNT(*) FROM review_queue WHERE status='open'`))

	got, err := s.GetQuestion(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "What is 1 + 2 ?", got.Stem)
	require.NotNil(t, got.Answer)
	assert.Equal(t, "C", got.Answer.CorrectOption)
	assert.Len(t, got.Options, 4)
	assert.Equal(t, "A", got.Options[0].Key)
}

func TestSaveQuestionPublishesOnlyPassingContent(t *testing.T) {
	s, _ := newSQLite(t)
	ctx := context.Background()

	res, err := s.SaveQuestion(ctx, QuestionWrite{Question: sampleQuestion("p", question.Easy, question.AutoPass), Publish: true})
	require.NoError(t, err)
	assert.True(t, res.Published)
	assert.False(t, res.Enqueued)

	res, err = s.SaveQuestion(ctx, QuestionWrite{Question: sampleQuestion("q", question.Easy, question.AutoPass), Publish: false})
	require.NoError(t, err)
	assert.False(t, res.Published)
}

func TestSaveQuestionRequiresFingerprint(t *testing.T) {
	s, _ := newSQLite(t)
	q := sampleQuestion("x", question.Easy, question.NeedsReview)
	q.Fingerprint = ""
	_, err := s.SaveQuestion(context.Background(), QuestionWrite{Question: q})
	assert.True(t, apperr.Is(err, apperr.InvalidInput))
}

func TestSaveQuestionKeepsHumanDecision(t *testing.T) {
	s, _ := newSQLite(t)
	ctx := context.Background()
	q := sampleQuestion("sticky", question.Medium, question.NeedsReview)

	res, err := s.SaveQuestion(ctx, QuestionWrite{Question: q})
	require.NoError(t, err)
	_, err = s.DecideReview(ctx, Decision{QuestionID: res.ID, Decision: review.Approve})
	require.NoError(t, err)

	q.QualityScore = 0.2
	q.Issues = []string{"ambiguous_stem"}
	again, err := s.SaveQuestion(ctx, QuestionWrite{Question: q, Publish: false, Source: "vet"})
	require.NoError(t, err)
	assert.Equal(t, question.Approved, again.ReviewStatus)
	assert.False(t, again.Published, "publish follows the write's intent once decided")
	assert.False(t, again.Enqueued)

	got, err := s.GetQuestion(ctx, res.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, got.QualityScore, 1e-9)
	assert.Equal(t, []string{"ambiguous_stem"}, got.Issues)
	assert.False(t, got.Published)

	again, err = s.SaveQuestion(ctx, QuestionWrite{Question: q, Publish: true, Source: "ingest"})
	require.NoError(t, err)
	assert.Equal(t, question.Approved, again.ReviewStatus)
	assert.True(t, again.Published)
}

func TestSaveQuestionRejectedStaysUnpublished(t *testing.T) {
	sqlStore, _ := newSQLite(t)
	for name, s := range map[string]Store{"sqlite": sqlStore, "memory": NewMemoryStore()} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			q := sampleQuestion("rejected", question.Easy, question.NeedsReview)
			res, err := s.SaveQuestion(ctx, QuestionWrite{Question: q})
			require.NoError(t, err)
			_, err = s.DecideReview(ctx, Decision{QuestionID: res.ID, Decision: review.Reject})
			require.NoError(t, err)

			again, err := s.SaveQuestion(ctx, QuestionWrite{Question: q, Publish: true, Source: "vet"})
			require.NoError(t, err)
			assert.Equal(t, question.Rejected, again.ReviewStatus)
			assert.False(t, again.Published)
		})
	}
}

func TestDecideReviewRejectUnpublishes(t *testing.T) {
	s, conn := newSQLite(t)
	ctx := context.Background()

	res, err := s.SaveQuestion(ctx, QuestionWrite{Question: sampleQuestion("r", question.Hard, question.AutoPass), Publish: true})
	require.NoError(t, err)
	require.True(t, res.Published)
	ok, err := enqueueReview(ctx, conn, review.Item{ID: "item-1", QuestionID: res.ID, Reasons: []string{"reported"}, Priority: 2}, 1)
	require.NoError(t, err)
	require.True(t, ok)

	yes := true
	item, err := s.DecideReview(ctx, Decision{QuestionID: res.ID, Decision: review.Reject, Notes: "wrong key", Publish: &yes})
	require.NoError(t, err)
	assert.Equal(t, review.Rejected, item.Status)
	assert.Equal(t, "wrong key", item.Notes)
	require.NotNil(t, item.DecidedAt)

	got, err := s.GetQuestion(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, question.Rejected, got.ReviewStatus)
	assert.False(t, got.Published)

	_, err = s.DecideReview(ctx, Decision{QuestionID: res.ID, Decision: review.Approve})
	assert.True(t, apperr.Is(err, apperr.NotFound), "closed items cannot be reopened: %v", err)

	events, err := syncx.NewEventRepo(conn).Since(ctx, 0, 100)
	require.NoError(t, err)
	var decided int
	for _, e := range events {
		if e.Type == syncx.TypeReviewDecided {
			decided++
			assert.Equal(t, res.ID, e.Key)
		}
	}
	assert.Equal(t, 1, decided)
}

func TestDecideReviewUnknownQuestion(t *testing.T) {
	s, _ := newSQLite(t)
	_, err := s.DecideReview(context.Background(), Decision{QuestionID: "nope", Decision: review.Approve})
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestListReviewQueueOrdersByPriority(t *testing.T) {
	s, _ := newSQLite(t)
	ctx := context.Background()
	for i, score := range []float64{0.55, 0.1, 0.3} {
		q := sampleQuestion(fmt.Sprintf("queue %d", i), question.Easy, question.NeedsReview)
		q.QualityScore = score
		_, err := s.SaveQuestion(ctx, QuestionWrite{Question: q})
		require.NoError(t, err)
	}

	items, err := s.ListReviewQueue(ctx, review.Open, 0)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []int{1, 3, 5}, []int{items[0].Priority, items[1].Priority, items[2].Priority})
	assert.Equal(t, []string{review.ReasonUnspecified}, items[0].Reasons)

	done, err := s.ListReviewQueue(ctx, review.Approved, 0)
	require.NoError(t, err)
	assert.Empty(t, done)

	_, err = s.ListReviewQueue(ctx, review.Status("bogus"), 0)
	assert.True(t, apperr.Is(err, apperr.InvalidInput))
}

func TestReconcileReviewQueue(t *testing.T) {
	s, conn := newSQLite(t)
	ctx := context.Background()

	stale, err := s.SaveQuestion(ctx, QuestionWrite{Question: sampleQuestion("stale", question.Easy, question.NeedsReview)})
	require.NoError(t, err)
	orphan, err := s.SaveQuestion(ctx, QuestionWrite{Question: sampleQuestion("orphan", question.Easy, question.NeedsReview)})
	require.NoError(t, err)

	// a decision that reached the question but not the queue
	_, err = conn.Exec(`UPDATE questions SET review_status='rejected', is_published=1 WHERE id=$1`, stale.ID)
	require.NoError(t, err)
	_, err = conn.Exec(`DELETE FROM review_queue WHERE question_id=$1`, orphan.ID)
	require.NoError(t, err)

	rep, err := s.ReconcileReviewQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Closed: 1, Enqueued: 1}, rep)

	assert.Equal(t, 1, countRows(t, conn, `SELECT COUNT(*) FROM review_queue WHERE status='rejected' AND question_id=$1`, stale.ID))
	assert.Equal(t, 1, countRows(t, conn, `SELECT COUNT(*) FROM review_queue WHERE status='open' AND question_id=$1`, orphan.ID))
	assert.Equal(t, 0, countRows(t, conn, `SELECT COUNT(*) FROM questions WHERE id=$1 AND is_published=1`, stale.ID))

	rep, err = s.ReconcileReviewQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{}, rep)
}

func TestPublishedPools(t *testing.T) {
	s, _ := newSQLite(t)
	ctx := context.Background()

	save := func(stem, subject string, d question.Difficulty, status question.ReviewStatus, publish bool) {
		q := sampleQuestion(stem, d, status)
		q.Subject = subject
		q.Fingerprint = question.Fingerprint(q.Candidate())
		_, err := s.SaveQuestion(ctx, QuestionWrite{Question: q, Publish: publish})
		require.NoError(t, err)
	}
	save("e1", "Physics", question.Easy, question.AutoPass, true)
	save("e2", "Physics", question.Easy, question.AutoPass, true)
	save("m1", "Physics", question.Medium, question.AutoPass, true)
	save("h1", "Physics", question.Hard, question.NeedsReview, true)
	save("h2", "Physics", question.Hard, question.AutoPass, false)
	save("c1", "Chemistry", question.Easy, question.AutoPass, true)

	pools, err := s.PublishedPools(ctx, PoolFilter{Subject: "physics", Topic: "MECHANICS"})
	require.NoError(t, err)
	assert.Len(t, pools.Easy, 2)
	assert.Len(t, pools.Medium, 1)
	assert.Empty(t, pools.Hard)
	assert.IsIncreasing(t, pools.Easy)

	all, err := s.PublishedPools(ctx, PoolFilter{})
	require.NoError(t, err)
	assert.Equal(t, 4, all.Len())
}

func TestListForVetting(t *testing.T) {
	s, _ := newSQLite(t)
	ctx := context.Background()

	vetted := sampleQuestion("vetted", question.Easy, question.AutoPass)
	now := time.Now()
	vetted.VettedAt = &now
	_, err := s.SaveQuestion(ctx, QuestionWrite{Question: vetted})
	require.NoError(t, err)
	_, err = s.SaveQuestion(ctx, QuestionWrite{Question: sampleQuestion("fresh", question.Easy, question.NeedsReview)})
	require.NoError(t, err)

	only, err := s.ListForVetting(ctx, VetSelection{OnlyUnvetted: true})
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, "fresh", only[0].Stem)
	require.NotNil(t, only[0].Answer)

	all, err := s.ListForVetting(ctx, VetSelection{Limit: 10})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "fresh", all[0].Stem, "unvetted first")
}

func testBlueprint() Blueprint {
	return Blueprint{
		ID: "bp-mech", Name: "Mechanics drill", Scope: ScopeTopic, Subject: "Physics", Topic: "Mechanics",
		QuestionCount: 3, Distribution: sampler.Weights{Easy: 30, Medium: 50, Hard: 20},
		DurationMinutes: 30, NegativeMarking: true, Active: true,
	}
}

func TestBlueprintsAndInstances(t *testing.T) {
	s, _ := newSQLite(t)
	ctx := context.Background()
	bp := testBlueprint()
	require.NoError(t, s.PutBlueprint(ctx, bp))

	other := bp
	other.ID, other.Name, other.Active = "bp-old", "Archived", false
	require.NoError(t, s.PutBlueprint(ctx, other))

	list, err := s.ListBlueprints(ctx, BlueprintFilter{ActiveOnly: true, Subject: "physics"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, bp.Distribution, list[0].Distribution)
	assert.True(t, list[0].NegativeMarking)

	var ids []string
	for _, stem := range []string{"i1", "i2", "i3"} {
		r, err := s.SaveQuestion(ctx, QuestionWrite{Question: sampleQuestion(stem, question.Easy, question.AutoPass), Publish: true})
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}
	order := []string{ids[2], ids[0], ids[1]}
	byID, err := s.GetQuestions(ctx, order)
	require.NoError(t, err)
	snaps := []question.Question{byID[order[0]], byID[order[1]], byID[order[2]]}

	err = s.CreateTestInstance(ctx, TestInstance{ID: "ti-short", BlueprintID: bp.ID, Seed: "s", QuestionIDs: order, Questions: snaps[:2]})
	assert.True(t, apperr.Is(err, apperr.InvalidInput), "every link needs its snapshot")
	require.NoError(t, s.CreateTestInstance(ctx, TestInstance{ID: "ti-1", BlueprintID: bp.ID, Seed: "seed", QuestionIDs: order, Questions: snaps}))

	// Rewriting a linked question leaves the instance as launched.
	edited := byID[order[0]]
	edited.Stem = "rewritten"
	edited.Answer = &question.AnswerKey{Type: question.SingleChoice, CorrectOption: "D"}
	_, err = s.SaveQuestion(ctx, QuestionWrite{Question: edited, Publish: true})
	require.NoError(t, err)

	got, err := s.GetTestInstance(ctx, "ti-1")
	require.NoError(t, err)
	assert.Equal(t, order, got.QuestionIDs)
	assert.Equal(t, "seed", got.Seed)
	require.Len(t, got.Questions, 3)
	assert.Equal(t, "i3", got.Questions[0].Stem)
	assert.Equal(t, snaps[0].Answer.CorrectOption, got.Questions[0].Answer.CorrectOption)
	assert.Equal(t, snaps[0].Options, got.Questions[0].Options)

	err = s.PutBlueprint(ctx, bp)
	assert.True(t, apperr.Is(err, apperr.InvalidInput), "referenced blueprints are frozen")

	_, err = s.GetTestInstance(ctx, "missing")
	assert.True(t, apperr.Is(err, apperr.NotFound))
	_, err = s.GetBlueprint(ctx, "missing")
	assert.True(t, apperr.Is(err, apperr.NotFound))

	err = s.CreateTestInstance(ctx, TestInstance{ID: "ti-empty", BlueprintID: bp.ID, Seed: "s"})
	assert.True(t, apperr.Is(err, apperr.InvalidInput))
}

func TestAttempts(t *testing.T) {
	s, _ := newSQLite(t)
	ctx := context.Background()
	base := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordAttempt(ctx, Attempt{UserID: "u1", BlueprintID: "bp", BlueprintName: "BP",
		TestInstanceID: "ti-1", Score: 11, MaxScore: 20, Percentile: 55, Correct: 3, Attempted: 4, Total: 5,
		Accuracy: 60, CreatedAt: base}))
	require.NoError(t, s.RecordAttempt(ctx, Attempt{UserID: "u1", BlueprintID: "bp", BlueprintName: "BP",
		TestInstanceID: "ti-2", Score: 20, MaxScore: 20, Percentile: 99.99, Correct: 5, Attempted: 5, Total: 5,
		Accuracy: 100, CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, s.RecordAttempt(ctx, Attempt{UserID: "u2", BlueprintID: "bp", BlueprintName: "BP",
		TestInstanceID: "ti-3", Total: 5, CreatedAt: base}))

	list, err := s.ListAttempts(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "ti-2", list[0].TestInstanceID)
	assert.InDelta(t, 11, list[1].Score, 1e-9)
	assert.Equal(t, 4, list[1].Attempted)
}
