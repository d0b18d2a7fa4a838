// Package ingest writes candidate questions into the bank, re-vets stored
// questions and drives the review queue.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mind-engage/examprep/internal/apperr"
	"github.com/mind-engage/examprep/internal/metrics"
	"github.com/mind-engage/examprep/internal/question"
	"github.com/mind-engage/examprep/internal/storage"
	"github.com/mind-engage/examprep/internal/store"
	"github.com/mind-engage/examprep/internal/vetting"
)

// DefaultConcurrency bounds parallel vetter calls in one batch.
const DefaultConcurrency = 4

type Service struct {
	store       store.Store
	vetter      vetting.Vetter
	blobs       storage.BlobStore
	validator   *question.Validator
	log         *zap.Logger
	concurrency int
	now         func() time.Time
}

type Option func(*Service)

// WithBlobStore enables inline diagram uploads. Without it a candidate's
// diagram_svg is ignored.
func WithBlobStore(bs storage.BlobStore) Option { return func(s *Service) { s.blobs = bs } }

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(st store.Store, v vetting.Vetter, opts ...Option) *Service {
	if v == nil {
		v = vetting.NewDeterministic(vetting.DefaultThresholds())
	}
	s := &Service{
		store:       st,
		vetter:      v,
		validator:   question.NewValidator(),
		log:         zap.NewNop(),
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type IngestRequest struct {
	Candidates []question.Candidate `json:"candidates"`
	// Publish asks for publication; only auto_pass or approved questions
	// end up published.
	Publish bool `json:"publish"`
	// SkipVetting stores candidates as needs_review without scoring them.
	SkipVetting bool `json:"skip_vetting"`
}

type ItemStatus string

const (
	ItemInserted ItemStatus = "inserted"
	ItemUpdated  ItemStatus = "updated"
	ItemSkipped  ItemStatus = "skipped"
)

// ItemResult reports one candidate, in request order.
type ItemResult struct {
	Index        int                   `json:"index"`
	ID           string                `json:"id,omitempty"`
	Fingerprint  string                `json:"fingerprint,omitempty"`
	Status       ItemStatus            `json:"status"`
	ReviewStatus question.ReviewStatus `json:"review_status,omitempty"`
	QualityScore float64               `json:"quality_score,omitempty"`
	Issues       []string              `json:"issues,omitempty"`
	Published    bool                  `json:"is_published"`
	Error        string                `json:"error,omitempty"`
}

type IngestResult struct {
	Inserted int          `json:"inserted"`
	Updated  int          `json:"updated"`
	Skipped  int          `json:"skipped"`
	IDs      []string     `json:"ids"`
	Items    []ItemResult `json:"items"`
}

// prepared is a candidate that passed validation, with its vetting result.
type prepared struct {
	cand   question.Candidate
	vetted *vetting.Result
	err    error
}

// IngestQuestions upserts every valid candidate by fingerprint. Invalid
// candidates are skipped and reported; a store failure aborts the batch.
// Vetting runs concurrently but writes happen in request order, so the
// last duplicate in a batch wins.
func (s *Service) IngestQuestions(ctx context.Context, req IngestRequest) (IngestResult, error) {
	const op = "ingest.IngestQuestions"
	if len(req.Candidates) == 0 {
		return IngestResult{}, apperr.Invalidf(op, "no candidates supplied")
	}

	items := make([]prepared, len(req.Candidates))
	for i, c := range req.Candidates {
		c = question.Normalize(c)
		if err := s.validator.Validate(c); err != nil {
			items[i].err = err
			continue
		}
		if c.Fingerprint == "" {
			c.Fingerprint = question.Fingerprint(c)
		}
		items[i].cand = c
	}

	if !req.SkipVetting {
		if err := s.vetAll(ctx, items); err != nil {
			return IngestResult{}, apperr.Wrap(apperr.UpstreamUnavailable, op, err)
		}
	}

	res := IngestResult{IDs: []string{}, Items: make([]ItemResult, 0, len(items))}
	for i, it := range items {
		ir := ItemResult{Index: i, Fingerprint: it.cand.Fingerprint}
		if it.err != nil {
			ir.Status, ir.Error = ItemSkipped, it.err.Error()
			res.Skipped++
			res.Items = append(res.Items, ir)
			metrics.QuestionsIngested.WithLabelValues(string(ItemSkipped)).Inc()
			continue
		}

		q, err := s.toQuestion(it)
		if err != nil {
			ir.Status, ir.Error = ItemSkipped, err.Error()
			res.Skipped++
			res.Items = append(res.Items, ir)
			metrics.QuestionsIngested.WithLabelValues(string(ItemSkipped)).Inc()
			continue
		}
		saved, err := s.store.SaveQuestion(ctx, store.QuestionWrite{Question: q, Publish: req.Publish, Source: "ingest"})
		if err != nil {
			if apperr.Is(err, apperr.InvalidInput) {
				ir.Status, ir.Error = ItemSkipped, apperr.Message(err)
				res.Skipped++
				res.Items = append(res.Items, ir)
				metrics.QuestionsIngested.WithLabelValues(string(ItemSkipped)).Inc()
				continue
			}
			return IngestResult{}, err
		}

		ir.ID, ir.ReviewStatus, ir.Published = saved.ID, saved.ReviewStatus, saved.Published
		ir.QualityScore, ir.Issues = q.QualityScore, q.Issues
		if saved.Inserted {
			ir.Status = ItemInserted
			res.Inserted++
		} else {
			ir.Status = ItemUpdated
			res.Updated++
		}
		metrics.QuestionsIngested.WithLabelValues(string(ir.Status)).Inc()
		res.IDs = append(res.IDs, saved.ID)
		res.Items = append(res.Items, ir)
	}

	s.log.Info("ingestion batch complete",
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped))
	return res, nil
}

// vetAll vets the valid items with bounded concurrency. Vetters never
// fail, so the only error is a cancelled context.
func (s *Service) vetAll(ctx context.Context, items []prepared) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range items {
		if items[i].err != nil {
			continue
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r := s.vetter.Vet(gctx, items[i].cand)
			items[i].vetted = &r
			metrics.VetOutcomes.WithLabelValues(string(r.Source), string(r.ReviewStatus)).Inc()
			return nil
		})
	}
	return g.Wait()
}

// toQuestion builds the record to persist. The fingerprint is always the
// one computed from the submitted candidate, even if the vetter repaired
// the content.
func (s *Service) toQuestion(it prepared) (question.Question, error) {
	c := it.cand
	q := question.Question{ReviewStatus: question.NeedsReview}
	if it.vetted != nil {
		v := it.vetted
		c = v.Question
		q.QualityScore, q.ReviewStatus, q.Issues = v.QualityScore, v.ReviewStatus, v.Issues
		now := s.now()
		q.VettedAt = &now
	}
	q.Type, q.Subject, q.Topic, q.Subtopic = c.Type, c.Subject, c.Topic, c.Subtopic
	q.Difficulty, q.Stem, q.StemLatex = c.Difficulty, c.Stem, c.StemLatex
	q.Marks, q.NegativeMarks = c.Marks, c.NegativeMarks
	q.Options = append([]question.Option(nil), c.Options...)
	answer := c.Answer
	q.Answer = &answer
	q.Fingerprint = it.cand.Fingerprint
	q.DiagramRef = it.cand.DiagramRef

	if it.cand.DiagramSVG != "" && s.blobs != nil {
		ref, err := storage.PutDiagram(s.blobs, q.Fingerprint, it.cand.DiagramSVG)
		if err != nil {
			if errors.Is(err, storage.ErrInvalidDiagram) {
				return question.Question{}, err
			}
			return question.Question{}, fmt.Errorf("store diagram: %w", err)
		}
		q.DiagramRef = ref
	}
	return q, nil
}
