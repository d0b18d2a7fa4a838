// Command vetd runs the scheduled vetting sweep and review-queue
// reconciliation. With -once it performs a single sweep and exits.
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mind-engage/examprep/internal/bootstrap"
	"github.com/mind-engage/examprep/internal/config"
	"github.com/mind-engage/examprep/internal/ingest"
	"github.com/mind-engage/examprep/internal/logging"
)

func main() {
	once := flag.Bool("once", false, "run one sweep and exit")
	flag.Parse()

	cfg := config.FromEnv()
	log := logging.Must(cfg.LogLevel, cfg.LogDev)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bootCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	app, err := bootstrap.Build(bootCtx, cfg, log)
	cancel()
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}
	defer app.Close()

	w := ingest.NewWorker(app.Bank, ingest.WorkerConfig{
		Schedule: cfg.VetSchedule,
		Vet: ingest.VetRequest{
			Limit:                cfg.VetBatchLimit,
			OnlyUnvetted:         true,
			PublishOnHighQuality: cfg.VetPublishOnHighQuality,
			MinQualityToPublish:  cfg.VetMinQualityToPublish,
		},
	}, log.Named("worker"))

	if *once {
		if err := w.RunOnce(ctx); err != nil {
			log.Fatal("sweep failed", zap.Error(err))
		}
		return
	}
	if err := w.Start(); err != nil {
		log.Fatal("worker start failed", zap.Error(err))
	}
	<-ctx.Done()
	w.Stop()
}
