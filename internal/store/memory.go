package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/examprep/internal/apperr"
	"github.com/mind-engage/examprep/internal/question"
	"github.com/mind-engage/examprep/internal/review"
	"github.com/mind-engage/examprep/internal/sampler"
)

// memoryStore keeps everything in maps behind one mutex, so every method is
// atomic. It backs service tests and ephemeral runs (DB_DRIVER=memory).
type memoryStore struct {
	mu            sync.RWMutex
	questions     map[string]question.Question
	byFingerprint map[string]string
	queue         []review.Item
	blueprints    map[string]Blueprint
	instances     map[string]TestInstance
	attempts      []Attempt
	now           func() time.Time
}

func NewMemoryStore() Store {
	return &memoryStore{
		questions:     map[string]question.Question{},
		byFingerprint: map[string]string{},
		blueprints:    map[string]Blueprint{},
		instances:     map[string]TestInstance{},
		now:           time.Now,
	}
}

func (m *memoryStore) Ping(context.Context) error { return nil }

func cloneQuestion(q question.Question) question.Question {
	q.Options = append([]question.Option(nil), q.Options...)
	q.Issues = append([]string{}, q.Issues...)
	if q.Answer != nil {
		a := *q.Answer
		if a.CorrectInteger != nil {
			n := *a.CorrectInteger
			a.CorrectInteger = &n
		}
		q.Answer = &a
	}
	return q
}

func cloneInstance(t TestInstance) TestInstance {
	t.QuestionIDs = append([]string(nil), t.QuestionIDs...)
	qs := make([]question.Question, len(t.Questions))
	for i, q := range t.Questions {
		qs[i] = cloneQuestion(q)
	}
	t.Questions = qs
	return t
}

func (m *memoryStore) SaveQuestion(_ context.Context, w QuestionWrite) (SaveResult, error) {
	const op = "store.SaveQuestion"
	q := cloneQuestion(w.Question)
	if strings.TrimSpace(q.Fingerprint) == "" {
		return SaveResult{}, apperr.Invalidf(op, "fingerprint is required")
	}
	if q.ReviewStatus == "" {
		q.ReviewStatus = question.NeedsReview
	}
	if q.Type != question.SingleChoice {
		q.Options = nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	res := SaveResult{}
	status := q.ReviewStatus
	published := review.PublishFlag(status, w.Publish)

	if id, ok := m.byFingerprint[q.Fingerprint]; ok {
		prev := m.questions[id]
		if prev.ReviewStatus.Decided() {
			status = prev.ReviewStatus
			published = review.PublishFlag(status, w.Publish)
		}
		q.ID, q.CreatedAt = id, prev.CreatedAt
		if q.VettedAt == nil {
			q.VettedAt = prev.VettedAt
		}
	} else {
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		q.CreatedAt = now
		res.Inserted = true
		m.byFingerprint[q.Fingerprint] = q.ID
	}
	q.ReviewStatus, q.Published, q.UpdatedAt = status, published, now
	m.questions[q.ID] = q
	res.ID, res.ReviewStatus, res.Published = q.ID, status, published

	if review.NeedsItem(status) && m.openIndex(q.ID) < 0 {
		m.queue = append(m.queue, review.Item{
			ID:         uuid.NewString(),
			QuestionID: q.ID,
			Reasons:    review.Reasons(q.Issues),
			Priority:   review.Priority(q.QualityScore),
			Status:     review.Open,
			CreatedAt:  now,
		})
		res.Enqueued = true
	}
	return res, nil
}

func (m *memoryStore) openIndex(questionID string) int {
	for i, it := range m.queue {
		if it.QuestionID == questionID && it.Status == review.Open {
			return i
		}
	}
	return -1
}

func (m *memoryStore) GetQuestion(ctx context.Context, id string) (question.Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.questions[id]
	if !ok {
		return question.Question{}, apperr.NotFoundf("store.GetQuestion", "question %s not found", id)
	}
	return cloneQuestion(q), nil
}

func (m *memoryStore) GetQuestions(_ context.Context, ids []string) (map[string]question.Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]question.Question, len(ids))
	for _, id := range ids {
		if q, ok := m.questions[id]; ok {
			out[id] = cloneQuestion(q)
		}
	}
	return out, nil
}

func (m *memoryStore) ListForVetting(_ context.Context, sel VetSelection) ([]question.Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	limit := sel.Limit
	if limit <= 0 {
		limit = defaultVetLimit
	}
	if limit > maxVetLimit {
		limit = maxVetLimit
	}
	var list []question.Question
	for _, q := range m.questions {
		if sel.OnlyUnvetted && q.VettedAt != nil {
			continue
		}
		list = append(list, cloneQuestion(q))
	}
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if (a.VettedAt == nil) != (b.VettedAt == nil) {
			return a.VettedAt == nil
		}
		if a.VettedAt != nil && !a.VettedAt.Equal(*b.VettedAt) {
			return a.VettedAt.Before(*b.VettedAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (m *memoryStore) PublishedPools(_ context.Context, f PoolFilter) (sampler.Pools, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var p sampler.Pools
	for _, q := range m.questions {
		if !q.Published || !q.ReviewStatus.Publishable() {
			continue
		}
		if f.Subject != "" && !strings.EqualFold(q.Subject, f.Subject) {
			continue
		}
		if f.Topic != "" && !strings.EqualFold(q.Topic, f.Topic) {
			continue
		}
		switch q.Difficulty {
		case question.Easy:
			p.Easy = append(p.Easy, q.ID)
		case question.Medium:
			p.Medium = append(p.Medium, q.ID)
		case question.Hard:
			p.Hard = append(p.Hard, q.ID)
		}
	}
	sort.Strings(p.Easy)
	sort.Strings(p.Medium)
	sort.Strings(p.Hard)
	return p, nil
}

func (m *memoryStore) ListReviewQueue(_ context.Context, status review.Status, limit int) ([]review.Item, error) {
	if status == "" {
		status = review.Open
	}
	if !status.Valid() {
		return nil, apperr.Invalidf("store.ListReviewQueue", "unknown review status %q", status)
	}
	if limit <= 0 {
		limit = defaultQueueLimit
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []review.Item{}
	for _, it := range m.queue {
		if it.Status == status {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryStore) DecideReview(_ context.Context, d Decision) (review.Item, error) {
	const op = "store.DecideReview"
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.openIndex(d.QuestionID)
	if i < 0 {
		return review.Item{}, apperr.NotFoundf(op, "no open review item for question %s", d.QuestionID)
	}
	q, ok := m.questions[d.QuestionID]
	if !ok {
		return review.Item{}, apperr.Newf(apperr.Inconsistent, op, "question %s is missing, decision rolled back", d.QuestionID)
	}
	next, err := review.Transition(m.queue[i].Status, d.Decision)
	if err != nil {
		return review.Item{}, apperr.Wrap(apperr.InvalidInput, op, err)
	}
	out := review.Apply(d.Decision, d.Publish)
	now := m.now()

	it := m.queue[i]
	it.Status, it.Notes, it.DecidedAt = next, d.Notes, &now
	m.queue[i] = it
	q.ReviewStatus, q.Published, q.UpdatedAt = out.ReviewStatus, out.Published, now
	m.questions[q.ID] = q
	return it, nil
}

func (m *memoryStore) ReconcileReviewQueue(context.Context) (ReconcileReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rep ReconcileReport
	now := m.now()
	for i, it := range m.queue {
		if it.Status != review.Open {
			continue
		}
		q, ok := m.questions[it.QuestionID]
		if !ok || !q.ReviewStatus.Decided() {
			continue
		}
		it.Status, it.Notes, it.DecidedAt = review.Status(q.ReviewStatus), "reconciled", &now
		m.queue[i] = it
		if q.ReviewStatus == question.Rejected && q.Published {
			q.Published = false
			m.questions[q.ID] = q
		}
		rep.Closed++
	}
	ids := make([]string, 0, len(m.questions))
	for id := range m.questions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		q := m.questions[id]
		if q.ReviewStatus != question.NeedsReview || m.openIndex(id) >= 0 {
			continue
		}
		m.queue = append(m.queue, review.Item{
			ID: uuid.NewString(), QuestionID: id, Reasons: review.Reasons(q.Issues),
			Priority: review.Priority(q.QualityScore), Status: review.Open, CreatedAt: now,
		})
		rep.Enqueued++
	}
	return rep, nil
}

func (m *memoryStore) ListBlueprints(_ context.Context, f BlueprintFilter) ([]Blueprint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Blueprint{}
	for _, b := range m.blueprints {
		if f.Scope != "" && b.Scope != f.Scope {
			continue
		}
		if f.Subject != "" && !strings.EqualFold(b.Subject, f.Subject) {
			continue
		}
		if f.Topic != "" && !strings.EqualFold(b.Topic, f.Topic) {
			continue
		}
		if f.ActiveOnly && !b.Active {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memoryStore) GetBlueprint(_ context.Context, id string) (Blueprint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blueprints[id]
	if !ok {
		return Blueprint{}, apperr.NotFoundf("store.GetBlueprint", "blueprint %s not found", id)
	}
	return b, nil
}

func (m *memoryStore) PutBlueprint(_ context.Context, b Blueprint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inst := range m.instances {
		if inst.BlueprintID == b.ID {
			return apperr.Invalidf("store.PutBlueprint", "blueprint %s is referenced by a test instance and cannot change", b.ID)
		}
	}
	if prev, ok := m.blueprints[b.ID]; ok {
		b.CreatedAt = prev.CreatedAt
	} else if b.CreatedAt.IsZero() {
		b.CreatedAt = m.now()
	}
	m.blueprints[b.ID] = b
	return nil
}

func (m *memoryStore) CreateTestInstance(_ context.Context, inst TestInstance) error {
	const op = "store.CreateTestInstance"
	if len(inst.QuestionIDs) == 0 {
		return apperr.Invalidf(op, "test instance %s has no questions", inst.ID)
	}
	if err := inst.checkSnapshot(op); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.instances[inst.ID]; ok {
		return apperr.Invalidf(op, "test instance %s already exists", inst.ID)
	}
	if _, ok := m.blueprints[inst.BlueprintID]; !ok {
		return apperr.NotFoundf(op, "blueprint %s not found", inst.BlueprintID)
	}
	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = m.now()
	}
	m.instances[inst.ID] = cloneInstance(inst)
	return nil
}

func (m *memoryStore) GetTestInstance(_ context.Context, id string) (TestInstance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[id]
	if !ok {
		return TestInstance{}, apperr.NotFoundf("store.GetTestInstance", "test instance %s not found", id)
	}
	return cloneInstance(inst), nil
}

func (m *memoryStore) RecordAttempt(_ context.Context, a Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = m.now()
	}
	m.attempts = append(m.attempts, a)
	return nil
}

func (m *memoryStore) ListAttempts(_ context.Context, userID string, limit int) ([]Attempt, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Attempt{}
	for i := len(m.attempts) - 1; i >= 0; i-- {
		if m.attempts[i].UserID == userID {
			out = append(out, m.attempts[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
