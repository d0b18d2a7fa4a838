package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	authmw "github.com/mind-engage/examprep/internal/auth/middleware"
	"github.com/mind-engage/examprep/internal/exam"
	"github.com/mind-engage/examprep/internal/ingest"
	"github.com/mind-engage/examprep/internal/rbac"
	"github.com/mind-engage/examprep/internal/storage"
	syncx "github.com/mind-engage/examprep/internal/sync"
)

// EventSource pages through the audit log.
type EventSource interface {
	Since(ctx context.Context, after int64, limit int) ([]syncx.Event, error)
}

type Deps struct {
	Auth   *authmw.AuthService
	Login  *authmw.LocalLogin // nil disables /auth/login
	Exams  *exam.Service
	Bank   *ingest.Service
	Blobs  storage.BlobStore
	Events EventSource // optional
	Log    *zap.Logger
}

// Mount registers the API on r.
func Mount(r chi.Router, d Deps) {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	ex := ExamHandlers{Svc: d.Exams, Log: d.Log}
	bank := BankHandlers{Svc: d.Bank, Log: d.Log}

	if d.Login != nil {
		r.Post("/auth/login", authmw.LoginHandler(d.Auth, *d.Login))
	}
	if d.Blobs != nil {
		r.Route("/assets", func(ar chi.Router) { MountAssets(ar, d.Blobs, d.Log) })
	}

	// Test taking works for guests; a valid token only adds attempt history.
	r.Group(func(gr chi.Router) {
		gr.Use(authmw.OptionalJWT(d.Auth))
		gr.Post("/tests", ex.LaunchTest)
		gr.Get("/tests/{id}", ex.GetTestInstance)
		gr.Post("/tests/{id}/submit", ex.SubmitTest)
	})

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(d.Auth))

		pr.With(rbac.Require("blueprint:list")).Get("/blueprints", ex.ListBlueprints)
		pr.With(rbac.Require("blueprint:write")).Put("/blueprints/{id}", ex.PutBlueprint)
		pr.With(rbac.Require("attempt:view-own")).Get("/attempts", ex.ListAttempts)

		pr.With(rbac.Require("question:ingest")).Post("/questions/ingest", bank.Ingest)
		pr.With(rbac.Require("question:vet")).Post("/questions/vet", bank.Vet)
		pr.With(rbac.RequireAny("review:list", "review:decide")).Get("/review", bank.ListReview)
		pr.With(rbac.Require("review:decide")).Post("/review/{questionID}/decision", bank.Decide)
		pr.With(rbac.Require("review:decide")).Post("/review/reconcile", bank.Reconcile)

		if d.Events != nil {
			pr.With(rbac.Require("audit:read")).Get("/events", eventsHandler(d.Events, d.Log))
		}
	})
}

// GET /events?after=&limit=
func eventsHandler(src EventSource, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		after := int64(parseIntDefault(q.Get("after"), 0))
		list, err := src.Since(r.Context(), after, parseIntDefault(q.Get("limit"), 100))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}
