// Package main is the entry point for the bfoproxy API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"bfoproxy/internal/config"
	"bfoproxy/internal/domain/cooldown"
	"bfoproxy/internal/domain/disclosure"
	"bfoproxy/internal/domain/history"
	"bfoproxy/internal/domain/organization"
	"bfoproxy/internal/domain/report"
	"bfoproxy/internal/infrastructure/bfo"
	"bfoproxy/internal/infrastructure/cache"
	v1 "bfoproxy/internal/infrastructure/http/v1"
	"bfoproxy/internal/infrastructure/storage/postgres"
	"bfoproxy/internal/infrastructure/storage/postgres/history_repo"
	"bfoproxy/internal/infrastructure/storage/postgres/organization_repo"
	"bfoproxy/internal/infrastructure/storage/postgres/report_repo"
	"bfoproxy/pkg/logger"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development || cfg.App.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := logger.WithLogger(context.Background(), log)
	log.Infow("starting bfoproxy server", "version", version, "env", cfg.App.Env)

	// --- Database ---
	if cfg.Database.AutoMigrate {
		if err := postgres.RunMigrations(ctx, cfg.Database.DSN); err != nil {
			log.Fatalw("failed to apply migrations", "error", err)
		}
		log.Info("database migrations applied")
	}

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		ApplicationName: cfg.App.Name,
	})
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- Cooldown gate ---
	flagStore, closeFlags, err := cache.NewFlagStore(ctx, cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cfg.App.IsDevelopment())
	if err != nil {
		log.Fatalw("failed to connect to cooldown store", "error", err)
	}
	defer closeFlags()

	gate := cooldown.NewGate(flagStore, cooldown.Config{
		Key:    cfg.BFO.CooldownKey,
		Window: cfg.BFO.Cooldown,
	})

	// --- Upstream registry client ---
	client, err := bfo.NewClient(bfo.Config{
		BaseURL:   cfg.BFO.URL,
		ProxyURL:  cfg.BFO.ProxyURL,
		UserAgent: cfg.BFO.UserAgent,
		Timeout:   cfg.BFO.Timeout,
	}, gate)
	if err != nil {
		log.Fatalw("failed to create BFO client", "error", err)
	}

	// --- Organizations ---
	orgCache, err := cache.NewOrganizationCache(cfg.Cache.OrganizationsMaxCost, cfg.Cache.OrganizationsTTL)
	if err != nil {
		log.Fatalw("failed to create organization cache", "error", err)
	}
	defer orgCache.Close()

	orgService := organization.NewService(organization_repo.NewOrganizationRepo(txManager), client, orgCache)

	// --- Reports ---
	refresher := report.NewRefresher(report_repo.NewReportRepo(txManager), client, txManager, report.Policy{
		MaxAge: cfg.Refresh.MaxAge(),
		Scope:  report.Scope(cfg.Refresh.StalenessScope),
	})

	// --- History ---
	historyRepo, err := history_repo.NewHistoryRepo(txManager, cfg.History.CompressThreshold)
	if err != nil {
		log.Fatalw("failed to create history repository", "error", err)
	}
	defer historyRepo.Close()

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Logger:    log,
		Release:   !cfg.App.IsDevelopment(),
		Version:   version,
		Reports:   disclosure.NewService(orgService, refresher),
		History:   history.NewService(historyRepo, cfg.History.Enabled),
		Database:  pool,
		FlagStore: flagStore,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Infow("server starting", "port", cfg.App.Port, "staleness_scope", cfg.Refresh.StalenessScope)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	pool.LogStats(ctx)
	log.Info("server stopped")
}
