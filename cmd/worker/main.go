// Package main is the entry point for the bfoproxy background worker.
// It prunes request history older than the configured retention.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"bfoproxy/internal/config"
	"bfoproxy/internal/domain/history"
	"bfoproxy/internal/infrastructure/storage/postgres"
	"bfoproxy/internal/infrastructure/storage/postgres/history_repo"
	"bfoproxy/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development || cfg.App.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), log))
	defer cancel()

	if cfg.History.Retention <= 0 {
		log.Info("history retention disabled, worker has nothing to do")
		return
	}

	log.Info("starting bfoproxy worker")

	poolCfg := postgres.DefaultPoolConfig(cfg.Database.DSN)
	poolCfg.MaxConns = 2
	poolCfg.MinConns = 0
	poolCfg.ApplicationName = cfg.App.Name + "-worker"

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	repo, err := history_repo.NewHistoryRepo(postgres.NewTxManager(pool), cfg.History.CompressThreshold)
	if err != nil {
		log.Fatalw("failed to create history repository", "error", err)
	}
	defer repo.Close()

	worker := NewRetentionWorker(history.NewService(repo, cfg.History.Enabled), cfg.History.Retention, cfg.History.CleanupInterval, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Cleaner deletes history older than a retention period.
type Cleaner interface {
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
}

// RetentionWorker runs Cleanup on a fixed interval.
type RetentionWorker struct {
	cleaner   Cleaner
	retention time.Duration
	interval  time.Duration
	log       *logger.Logger
}

func NewRetentionWorker(cleaner Cleaner, retention, interval time.Duration, log *logger.Logger) *RetentionWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &RetentionWorker{
		cleaner:   cleaner,
		retention: retention,
		interval:  interval,
		log:       log.WithComponent("history-retention"),
	}
}

// Run prunes once immediately and then on every tick until ctx is cancelled.
func (w *RetentionWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.cleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.cleanup(ctx)
		}
	}
}

func (w *RetentionWorker) cleanup(ctx context.Context) {
	n, err := w.cleaner.Cleanup(ctx, w.retention)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Errorw("history cleanup failed", "error", err)
		}
		return
	}
	w.log.Debugw("history cleanup done", "deleted", n)
}
