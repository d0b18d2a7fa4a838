// Package exam assembles tests from blueprints, serves materialized
// instances and scores submissions.
package exam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mind-engage/examprep/internal/apperr"
	"github.com/mind-engage/examprep/internal/cache"
	"github.com/mind-engage/examprep/internal/metrics"
	"github.com/mind-engage/examprep/internal/question"
	"github.com/mind-engage/examprep/internal/sampler"
	"github.com/mind-engage/examprep/internal/scoring"
	"github.com/mind-engage/examprep/internal/store"
)

type Service struct {
	store    store.Store
	cache    cache.Cache
	log      *zap.Logger
	validate *validator.Validate
	now      func() time.Time
	newID    func() string
	newSeed  func() string
}

type Option func(*Service)

func WithCache(c cache.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithSeedSource replaces the per-launch seed generator.
func WithSeedSource(f func() string) Option { return func(s *Service) { s.newSeed = f } }

func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:    st,
		cache:    cache.Nop{},
		log:      zap.NewNop(),
		validate: validator.New(),
		now:      time.Now,
		newID:    uuid.NewString,
		newSeed:  uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) ListBlueprints(ctx context.Context, f store.BlueprintFilter) ([]store.Blueprint, error) {
	if f.Scope != "" && !f.Scope.Valid() {
		return nil, apperr.Invalidf("exam.ListBlueprints", "unknown scope %q", f.Scope)
	}
	return s.store.ListBlueprints(ctx, f)
}

func (s *Service) GetBlueprint(ctx context.Context, id string) (store.Blueprint, error) {
	return s.store.GetBlueprint(ctx, id)
}

// PutBlueprint validates and upserts b. A blueprint that already backs a
// test instance is frozen.
func (s *Service) PutBlueprint(ctx context.Context, b store.Blueprint) (store.Blueprint, error) {
	const op = "exam.PutBlueprint"
	b.Subject = strings.TrimSpace(b.Subject)
	b.Topic = strings.TrimSpace(b.Topic)
	if b.Scope == store.ScopeFullMock {
		b.Subject, b.Topic = "", ""
	}
	if b.Scope == store.ScopeSubject {
		b.Topic = ""
	}
	if err := s.validate.Struct(b); err != nil {
		return store.Blueprint{}, apperr.Wrap(apperr.InvalidInput, op, err)
	}
	if err := b.Distribution.Validate(); err != nil {
		return store.Blueprint{}, apperr.Wrap(apperr.InvalidInput, op, err)
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now()
	}
	if err := s.store.PutBlueprint(ctx, b); err != nil {
		return store.Blueprint{}, err
	}
	return s.store.GetBlueprint(ctx, b.ID)
}

func poolFilter(b store.Blueprint) store.PoolFilter {
	switch b.Scope {
	case store.ScopeTopic:
		return store.PoolFilter{Subject: b.Subject, Topic: b.Topic}
	case store.ScopeSubject:
		return store.PoolFilter{Subject: b.Subject}
	default:
		return store.PoolFilter{}
	}
}

// LaunchTest samples a fresh question set for the blueprint and persists
// it as an immutable test instance.
func (s *Service) LaunchTest(ctx context.Context, blueprintID string) (Launch, error) {
	const op = "exam.LaunchTest"
	if strings.TrimSpace(blueprintID) == "" {
		return Launch{}, apperr.Invalidf(op, "blueprint_id is required")
	}
	bp, err := s.store.GetBlueprint(ctx, blueprintID)
	if err != nil {
		return Launch{}, err
	}
	if !bp.Active {
		return Launch{}, apperr.Invalidf(op, "blueprint %s is not active", bp.ID)
	}
	pools, err := s.store.PublishedPools(ctx, poolFilter(bp))
	if err != nil {
		return Launch{}, err
	}
	seed := s.newSeed()
	sel, err := sampler.Sample(bp.QuestionCount, bp.Distribution, pools, seed)
	if err != nil {
		return Launch{}, apperr.Wrap(apperr.InvalidInput, op, err)
	}
	if len(sel.IDs) == 0 {
		return Launch{}, apperr.NotFoundf(op, "no published questions available for blueprint %s", bp.ID)
	}

	inst := store.TestInstance{
		ID:          s.newID(),
		BlueprintID: bp.ID,
		Seed:        seed,
		CreatedAt:   s.now().UTC().Truncate(time.Second),
		QuestionIDs: sel.IDs,
	}
	inst.Questions, err = s.loadOrdered(ctx, op, inst)
	if err != nil {
		return Launch{}, err
	}
	if err := s.store.CreateTestInstance(ctx, inst); err != nil {
		return Launch{}, err
	}
	view := buildView(inst, bp)
	s.cacheView(ctx, view)
	metrics.TestsLaunched.Inc()
	if len(sel.IDs) < bp.QuestionCount {
		s.log.Warn("pool shorter than blueprint",
			zap.String("blueprint_id", bp.ID),
			zap.Int("requested", bp.QuestionCount),
			zap.Int("available", pools.Len()))
	}
	s.log.Info("test launched",
		zap.String("test_instance_id", inst.ID),
		zap.String("blueprint_id", bp.ID),
		zap.Int("questions", len(sel.IDs)))
	return Launch{InstanceView: view, Requested: bp.QuestionCount}, nil
}

// GetTestInstance returns the instance exactly as launched.
func (s *Service) GetTestInstance(ctx context.Context, id string) (InstanceView, error) {
	if v, ok := s.cachedView(ctx, id); ok {
		return v, nil
	}
	inst, err := s.store.GetTestInstance(ctx, id)
	if err != nil {
		return InstanceView{}, err
	}
	bp, err := s.store.GetBlueprint(ctx, inst.BlueprintID)
	if err != nil {
		return InstanceView{}, err
	}
	view := buildView(inst, bp)
	s.cacheView(ctx, view)
	return view, nil
}

// loadOrdered reads the live bank content for inst's ids, in order. It is
// only used to take the snapshot at launch.
func (s *Service) loadOrdered(ctx context.Context, op string, inst store.TestInstance) ([]question.Question, error) {
	byID, err := s.store.GetQuestions(ctx, inst.QuestionIDs)
	if err != nil {
		return nil, err
	}
	out := make([]question.Question, 0, len(inst.QuestionIDs))
	for _, id := range inst.QuestionIDs {
		q, ok := byID[id]
		if !ok {
			return nil, apperr.Newf(apperr.Inconsistent, op, "test instance %s references missing question %s", inst.ID, id)
		}
		out = append(out, q)
	}
	return out, nil
}

// buildView renders the launch snapshot without answers.
func buildView(inst store.TestInstance, bp store.Blueprint) InstanceView {
	views := make([]question.View, len(inst.Questions))
	for i, q := range inst.Questions {
		views[i] = q.View()
	}
	return InstanceView{
		TestInstanceID: inst.ID,
		Blueprint:      summarize(bp),
		Questions:      views,
		CreatedAt:      inst.CreatedAt,
	}
}

func instanceKey(id string) string { return "instance:" + id }

func (s *Service) cachedView(ctx context.Context, id string) (InstanceView, bool) {
	raw, ok, err := s.cache.Get(ctx, instanceKey(id))
	if err != nil {
		s.log.Warn("instance cache read failed", zap.String("test_instance_id", id), zap.Error(err))
		return InstanceView{}, false
	}
	if !ok {
		return InstanceView{}, false
	}
	var v InstanceView
	if err := json.Unmarshal(raw, &v); err != nil {
		s.log.Warn("instance cache entry corrupt", zap.String("test_instance_id", id), zap.Error(err))
		return InstanceView{}, false
	}
	return v, true
}

func (s *Service) cacheView(ctx context.Context, v InstanceView) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, instanceKey(v.TestInstanceID), raw); err != nil {
		s.log.Warn("instance cache write failed", zap.String("test_instance_id", v.TestInstanceID), zap.Error(err))
	}
}

// SubmitTest scores answers against the instance as launched. Signed-in
// users get an attempt record; a failure to record it is logged and
// reported through Persisted, never through the error.
func (s *Service) SubmitTest(ctx context.Context, req SubmitRequest) (Submission, error) {
	const op = "exam.SubmitTest"
	if req.ElapsedSeconds < 0 {
		return Submission{}, apperr.Invalidf(op, "elapsed_seconds must not be negative")
	}
	inst, err := s.store.GetTestInstance(ctx, req.InstanceID)
	if err != nil {
		return Submission{}, err
	}
	bp, err := s.store.GetBlueprint(ctx, inst.BlueprintID)
	if err != nil {
		return Submission{}, err
	}
	items := make([]scoring.Item, len(inst.Questions))
	for i, q := range inst.Questions {
		items[i] = scoringItem(q)
	}

	engine := scoring.NewEngine(scoring.WithNegativeMarking(bp.NegativeMarking))
	res, err := engine.Score(items, req.Answers)
	if err != nil {
		if errors.Is(err, scoring.ErrMalformedResponse) {
			return Submission{}, apperr.Wrap(apperr.InvalidInput, op, err)
		}
		return Submission{}, fmt.Errorf("%s: %w", op, err)
	}
	sub := Submission{TestInstanceID: inst.ID, Result: res}

	if req.UserID == "" {
		metrics.Submissions.WithLabelValues("guest").Inc()
		return sub, nil
	}
	a := store.Attempt{
		ID:             s.newID(),
		UserID:         req.UserID,
		BlueprintID:    bp.ID,
		BlueprintName:  bp.Name,
		TestInstanceID: inst.ID,
		Score:          res.Score,
		MaxScore:       res.MaxScore,
		Percentile:     res.Percentile,
		Correct:        res.Correct,
		Attempted:      res.Attempted,
		Total:          res.Total,
		Accuracy:       res.Accuracy,
		ElapsedSeconds: req.ElapsedSeconds,
		CreatedAt:      s.now(),
	}
	if err := s.store.RecordAttempt(ctx, a); err != nil {
		metrics.Submissions.WithLabelValues("persist_failed").Inc()
		s.log.Error("attempt not recorded",
			zap.String("test_instance_id", inst.ID),
			zap.String("user_id", req.UserID),
			zap.Error(err))
		return sub, nil
	}
	metrics.Submissions.WithLabelValues("persisted").Inc()
	sub.Persisted, sub.AttemptID = true, a.ID
	return sub, nil
}

func scoringItem(q question.Question) scoring.Item {
	it := scoring.Item{
		QuestionID:    q.ID,
		Type:          q.Type,
		Subject:       q.Subject,
		Topic:         q.Topic,
		Difficulty:    q.Difficulty,
		Marks:         q.Marks,
		NegativeMarks: q.NegativeMarks,
	}
	if q.Answer != nil {
		it.Answer = *q.Answer
	}
	return it
}

func (s *Service) ListAttempts(ctx context.Context, userID string, limit int) ([]store.Attempt, error) {
	if userID == "" {
		return nil, apperr.New(apperr.Forbidden, "exam.ListAttempts", "sign in to see attempt history")
	}
	return s.store.ListAttempts(ctx, userID, limit)
}
