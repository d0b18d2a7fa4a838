package ingest

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/mind-engage/examprep/internal/apperr"
	"github.com/mind-engage/examprep/internal/metrics"
	"github.com/mind-engage/examprep/internal/review"
	"github.com/mind-engage/examprep/internal/store"
)

func (s *Service) ListReviewQueue(ctx context.Context, status string, limit int) ([]review.Item, error) {
	st := review.Status(strings.ToLower(strings.TrimSpace(status)))
	if st == "" {
		st = review.Open
	}
	if !st.Valid() {
		return nil, apperr.Invalidf("ingest.ListReviewQueue", "unknown review status %q", status)
	}
	return s.store.ListReviewQueue(ctx, st, limit)
}

type DecisionRequest struct {
	QuestionID string `json:"-"`
	Decision   string `json:"decision"`
	Notes      string `json:"notes,omitempty"`
	Publish    *bool  `json:"publish,omitempty"`
	DecidedBy  string `json:"-"`
}

// DecideReview closes the open item for the question and applies the
// verdict to the question in one store transaction.
func (s *Service) DecideReview(ctx context.Context, req DecisionRequest) (review.Item, error) {
	const op = "ingest.DecideReview"
	if strings.TrimSpace(req.QuestionID) == "" {
		return review.Item{}, apperr.Invalidf(op, "question id is required")
	}
	d, err := review.ParseDecision(req.Decision)
	if err != nil {
		return review.Item{}, apperr.Wrap(apperr.InvalidInput, op, err)
	}
	item, err := s.store.DecideReview(ctx, store.Decision{
		QuestionID: req.QuestionID,
		Decision:   d,
		Notes:      strings.TrimSpace(req.Notes),
		Publish:    req.Publish,
		DecidedBy:  req.DecidedBy,
	})
	if err != nil {
		if apperr.Is(err, apperr.Inconsistent) {
			s.log.Error("review decision rolled back", zap.String("question_id", req.QuestionID), zap.Error(err))
		}
		return review.Item{}, err
	}
	metrics.ReviewDecisions.WithLabelValues(string(d)).Inc()
	s.log.Info("review decided",
		zap.String("question_id", req.QuestionID),
		zap.String("decision", string(d)),
		zap.String("decided_by", req.DecidedBy))
	return item, nil
}

// ReconcileReviewQueue repairs queue/question drift left by older writers
// or manual edits.
func (s *Service) ReconcileReviewQueue(ctx context.Context) (store.ReconcileReport, error) {
	rep, err := s.store.ReconcileReviewQueue(ctx)
	if err != nil {
		return store.ReconcileReport{}, err
	}
	if rep.Closed > 0 || rep.Enqueued > 0 {
		s.log.Warn("review queue reconciled", zap.Int("closed", rep.Closed), zap.Int("enqueued", rep.Enqueued))
	}
	return rep, nil
}
