package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	authmw "github.com/mind-engage/examprep/internal/auth/middleware"
	"github.com/mind-engage/examprep/internal/exam"
	"github.com/mind-engage/examprep/internal/store"
)

// ExamHandlers serves blueprints, test instances, submissions and attempt
// history.
type ExamHandlers struct {
	Svc *exam.Service
	Log *zap.Logger
}

// GET /blueprints?scope=&subject=&topic=&active=
func (h ExamHandlers) ListBlueprints(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.Svc.ListBlueprints(r.Context(), store.BlueprintFilter{
		Scope:      store.Scope(strings.TrimSpace(q.Get("scope"))),
		Subject:    strings.TrimSpace(q.Get("subject")),
		Topic:      strings.TrimSpace(q.Get("topic")),
		ActiveOnly: q.Get("active") == "true" || q.Get("active") == "1",
	})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// PUT /blueprints/{id}
func (h ExamHandlers) PutBlueprint(w http.ResponseWriter, r *http.Request) {
	var b store.Blueprint
	if err := decodeJSON(w, r, &b); err != nil {
		writeError(w, h.Log, err)
		return
	}
	b.ID = chi.URLParam(r, "id")
	saved, err := h.Svc.PutBlueprint(r.Context(), b)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// POST /tests {blueprint_id}
func (h ExamHandlers) LaunchTest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BlueprintID string `json:"blueprint_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	launched, err := h.Svc.LaunchTest(r.Context(), strings.TrimSpace(req.BlueprintID))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, launched)
}

// GET /tests/{id}
func (h ExamHandlers) GetTestInstance(w http.ResponseWriter, r *http.Request) {
	v, err := h.Svc.GetTestInstance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// POST /tests/{id}/submit {answers, elapsed_seconds}
func (h ExamHandlers) SubmitTest(w http.ResponseWriter, r *http.Request) {
	var req exam.SubmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	req.InstanceID = chi.URLParam(r, "id")
	req.UserID = authmw.SubjectFromContext(r.Context())
	sub, err := h.Svc.SubmitTest(r.Context(), req)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// GET /attempts?limit=
func (h ExamHandlers) ListAttempts(w http.ResponseWriter, r *http.Request) {
	list, err := h.Svc.ListAttempts(r.Context(), authmw.SubjectFromContext(r.Context()),
		parseIntDefault(r.URL.Query().Get("limit"), 50))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
