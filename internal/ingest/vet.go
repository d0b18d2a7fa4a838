package ingest

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mind-engage/examprep/internal/apperr"
	"github.com/mind-engage/examprep/internal/metrics"
	"github.com/mind-engage/examprep/internal/question"
	"github.com/mind-engage/examprep/internal/store"
)

type VetRequest struct {
	Limit                int     `json:"limit"`
	OnlyUnvetted         bool    `json:"only_unvetted"`
	PublishOnHighQuality bool    `json:"publish_on_high_quality"`
	MinQualityToPublish  float64 `json:"min_quality_to_publish"`
}

type VetResult struct {
	Processed int `json:"processed"`
	Updated   int `json:"updated"`
	Published int `json:"published"`
}

// VetQuestions re-vets a batch of stored questions in place. Identity and
// fingerprint never change; human decisions stay sticky in the store.
// Publication is requested only for questions scoring at least
// MinQualityToPublish when PublishOnHighQuality is set; otherwise the
// current publish flag is kept as the intent.
func (s *Service) VetQuestions(ctx context.Context, req VetRequest) (VetResult, error) {
	const op = "ingest.VetQuestions"
	if req.Limit < 0 {
		return VetResult{}, apperr.Invalidf(op, "limit must not be negative")
	}
	if req.MinQualityToPublish < 0 || req.MinQualityToPublish > 1 {
		return VetResult{}, apperr.Invalidf(op, "min_quality_to_publish must be within [0,1]")
	}

	batch, err := s.store.ListForVetting(ctx, store.VetSelection{Limit: req.Limit, OnlyUnvetted: req.OnlyUnvetted})
	if err != nil {
		return VetResult{}, err
	}

	saved := make([]*store.SaveResult, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range batch {
		i := i
		g.Go(func() error {
			res, err := s.revet(gctx, batch[i], req)
			if err != nil {
				return err
			}
			saved[i] = &res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if apperr.KindOf(err) != apperr.Internal {
			return VetResult{}, err
		}
		return VetResult{}, apperr.Wrap(apperr.UpstreamUnavailable, op, err)
	}

	out := VetResult{Processed: len(batch)}
	for _, r := range saved {
		if r == nil {
			continue
		}
		out.Updated++
		if r.Published {
			out.Published++
		}
	}
	s.log.Info("vetting batch complete",
		zap.Int("processed", out.Processed),
		zap.Int("updated", out.Updated),
		zap.Int("published", out.Published))
	return out, nil
}

func (s *Service) revet(ctx context.Context, prev question.Question, req VetRequest) (store.SaveResult, error) {
	if err := ctx.Err(); err != nil {
		return store.SaveResult{}, err
	}
	r := s.vetter.Vet(ctx, prev.Candidate())
	metrics.VetOutcomes.WithLabelValues(string(r.Source), string(r.ReviewStatus)).Inc()

	c := r.Question
	q := prev
	q.Stem, q.StemLatex = c.Stem, c.StemLatex
	q.Options = append([]question.Option(nil), c.Options...)
	answer := c.Answer
	q.Answer = &answer
	q.QualityScore, q.ReviewStatus, q.Issues = r.QualityScore, r.ReviewStatus, r.Issues
	now := s.now()
	q.VettedAt = &now

	publish := prev.Published
	if req.PublishOnHighQuality {
		publish = r.QualityScore >= req.MinQualityToPublish
	}
	return s.store.SaveQuestion(ctx, store.QuestionWrite{Question: q, Publish: publish, Source: "vet"})
}
