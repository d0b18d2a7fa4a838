package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	authmw "github.com/mind-engage/examprep/internal/auth/middleware"
	"github.com/mind-engage/examprep/internal/ingest"
)

// BankHandlers serves ingestion, vetting and the review queue.
type BankHandlers struct {
	Svc *ingest.Service
	Log *zap.Logger
}

// POST /questions/ingest {candidates, publish, skip_vetting}
func (h BankHandlers) Ingest(w http.ResponseWriter, r *http.Request) {
	var req ingest.IngestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	res, err := h.Svc.IngestQuestions(r.Context(), req)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /questions/vet {limit, only_unvetted, publish_on_high_quality, min_quality_to_publish}
func (h BankHandlers) Vet(w http.ResponseWriter, r *http.Request) {
	req := ingest.VetRequest{OnlyUnvetted: true, MinQualityToPublish: 0.85}
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, h.Log, err)
			return
		}
	}
	res, err := h.Svc.VetQuestions(r.Context(), req)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /review?status=open&limit=
func (h BankHandlers) ListReview(w http.ResponseWriter, r *http.Request) {
	items, err := h.Svc.ListReviewQueue(r.Context(), r.URL.Query().Get("status"),
		parseIntDefault(r.URL.Query().Get("limit"), 100))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// POST /review/{questionID}/decision {decision, notes, publish}
func (h BankHandlers) Decide(w http.ResponseWriter, r *http.Request) {
	var req ingest.DecisionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	req.QuestionID = chi.URLParam(r, "questionID")
	req.DecidedBy = authmw.SubjectFromContext(r.Context())
	item, err := h.Svc.DecideReview(r.Context(), req)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "item": item})
}

// POST /review/reconcile
func (h BankHandlers) Reconcile(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Svc.ReconcileReviewQueue(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
