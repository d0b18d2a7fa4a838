package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// WorkerConfig drives the scheduled sweep.
type WorkerConfig struct {
	Schedule string // cron spec, e.g. "*/15 * * * *"
	Vet      VetRequest
	// RunTimeout bounds a single sweep.
	RunTimeout time.Duration
}

// Worker periodically vets unvetted questions and reconciles the review
// queue. Overlapping runs are skipped.
type Worker struct {
	svc  *Service
	cfg  WorkerConfig
	cron *cron.Cron
	log  *zap.Logger

	mu      sync.Mutex
	running bool
}

func NewWorker(svc *Service, cfg WorkerConfig, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 10 * time.Minute
	}
	return &Worker{svc: svc, cfg: cfg, cron: cron.New(), log: log}
}

func (w *Worker) Start() error {
	if _, err := w.cron.AddFunc(w.cfg.Schedule, func() { _ = w.RunOnce(context.Background()) }); err != nil {
		return fmt.Errorf("schedule vetting sweep %q: %w", w.cfg.Schedule, err)
	}
	w.cron.Start()
	w.log.Info("vetting worker started", zap.String("schedule", w.cfg.Schedule))
	return nil
}

// Stop waits for a sweep in progress to finish.
func (w *Worker) Stop() {
	<-w.cron.Stop().Done()
	w.log.Info("vetting worker stopped")
}

// RunOnce performs one sweep: reconcile first so that vetting enqueues
// against a clean queue.
func (w *Worker) RunOnce(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		w.log.Warn("previous sweep still running, skipping")
		return nil
	}
	w.running = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, w.cfg.RunTimeout)
	defer cancel()

	if _, err := w.svc.ReconcileReviewQueue(ctx); err != nil {
		w.log.Error("reconcile failed", zap.Error(err))
		return err
	}
	res, err := w.svc.VetQuestions(ctx, w.cfg.Vet)
	if err != nil {
		w.log.Error("vetting sweep failed", zap.Error(err))
		return err
	}
	w.log.Info("vetting sweep done",
		zap.Int("processed", res.Processed),
		zap.Int("published", res.Published))
	return nil
}
