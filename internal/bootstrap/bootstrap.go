// Package bootstrap wires configuration into the services shared by the
// gateway and the vetting worker.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/mind-engage/examprep/internal/cache"
	"github.com/mind-engage/examprep/internal/config"
	"github.com/mind-engage/examprep/internal/db"
	"github.com/mind-engage/examprep/internal/exam"
	"github.com/mind-engage/examprep/internal/ingest"
	"github.com/mind-engage/examprep/internal/llm"
	_ "github.com/mind-engage/examprep/internal/llm/gemini" // provider: gemini
	_ "github.com/mind-engage/examprep/internal/llm/openai" // provider: openai
	"github.com/mind-engage/examprep/internal/storage"
	"github.com/mind-engage/examprep/internal/store"
	syncx "github.com/mind-engage/examprep/internal/sync"
	"github.com/mind-engage/examprep/internal/vetting"
)

type App struct {
	DB     *sql.DB // nil for the memory driver
	Store  store.Store
	Events *syncx.EventRepo // nil for the memory driver
	Cache  *cache.Redis     // nil when REDIS_ADDR is unset
	Blobs  storage.BlobStore
	Exams  *exam.Service
	Bank   *ingest.Service
}

func Build(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	app := &App{}

	if cfg.DBDriver == "memory" {
		app.Store = store.NewMemoryStore()
	} else {
		dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
		app.DB = dbh
		app.Store = store.NewSQLStore(dbh, cfg.DBDriver)
		app.Events = syncx.NewEventRepo(dbh)
	}

	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("blob store: %w", err)
	}
	app.Blobs = bs

	examOpts := []exam.Option{exam.WithLogger(log.Named("exam"))}
	if cfg.RedisAddr != "" {
		app.Cache = cache.NewRedis(cfg.RedisAddr, cfg.InstanceCacheTTL)
		if err := app.Cache.Ping(ctx); err != nil {
			log.Warn("redis unreachable, instance cache degraded to store reads", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		examOpts = append(examOpts, exam.WithCache(app.Cache))
	}
	app.Exams = exam.NewService(app.Store, examOpts...)

	gw, err := llm.NewProvider(cfg.LLMProvider, llmConfig(cfg))
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	th := vetting.Thresholds{AutoPass: cfg.VetAutoPassThreshold, ReviewCap: cfg.VetReviewCap}
	v, err := vetting.New(gw, th, log.Named("vetting"), cfg.LLMTimeout)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("vetter: %w", err)
	}
	if gw == nil {
		log.Info("no llm provider configured, vetting runs structural checks only")
	} else {
		log.Info("llm vetting enabled", zap.String("provider", gw.Name()))
	}
	app.Bank = ingest.NewService(app.Store, v,
		ingest.WithBlobStore(bs),
		ingest.WithConcurrency(cfg.VetConcurrency),
		ingest.WithLogger(log.Named("ingest")))
	return app, nil
}

func llmConfig(cfg config.Config) llm.Config {
	if cfg.LLMProvider == "gemini" {
		return llm.Config{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel, Timeout: cfg.LLMTimeout}
	}
	return llm.Config{BaseURL: cfg.LLMBaseURL, APIKey: cfg.LLMAPIKey, Model: cfg.LLMModel, Timeout: cfg.LLMTimeout}
}

func (a *App) Close() {
	if a.Cache != nil {
		_ = a.Cache.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}
