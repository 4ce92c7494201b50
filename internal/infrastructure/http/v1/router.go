// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"bfoproxy/internal/domain/history"
	"bfoproxy/internal/infrastructure/http/v1/handlers"
	"bfoproxy/internal/infrastructure/http/v1/middleware"
	"bfoproxy/pkg/logger"
)

// ReportPath is the report endpoint; requests to it are recorded in history.
const ReportPath = "/api/v1/report"

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// Release switches gin to release mode
	Release bool

	// Version reported by /health/info
	Version string

	// Reports answers GET /api/v1/report
	Reports handlers.ReportService

	// History records and lists report requests
	History *history.Service

	// Database is pinged by the readiness probe and reports pool stats
	Database interface {
		handlers.Pinger
		handlers.PoolStatter
	}

	// FlagStore is the cooldown flag backend, pinged by the readiness probe
	FlagStore handlers.Pinger
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Release {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.History(cfg.History, ReportPath))
	router.Use(middleware.ErrorHandler())

	// Health endpoints
	var stats handlers.PoolStatter
	var db handlers.Pinger
	if cfg.Database != nil {
		db, stats = cfg.Database, cfg.Database
	}
	healthHandler := handlers.NewHealthHandler(cfg.Version, db, cfg.FlagStore, stats)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	base := handlers.NewBaseHandler()

	// API v1
	api := router.Group("/api/v1")
	{
		reportHandler := handlers.NewReportHandler(base, cfg.Reports)
		api.GET("/report", reportHandler.Get)

		historyHandler := handlers.NewHistoryHandler(base, cfg.History)
		api.GET("/history", historyHandler.List)
	}

	return router
}
