package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"bfoproxy/internal/infrastructure/storage/postgres"
)

// Pinger is anything whose liveness can be probed.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PoolStatter exposes database pool statistics.
type PoolStatter interface {
	Stats() postgres.PoolStats
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	version string
	db      Pinger
	flags   Pinger
	stats   PoolStatter
}

// NewHealthHandler creates a new health handler.
// Any dependency may be nil and is then skipped.
func NewHealthHandler(version string, db Pinger, flags Pinger, stats PoolStatter) *HealthHandler {
	return &HealthHandler{version: version, db: db, flags: flags, stats: stats}
}

// Live handles liveness probe (is the process alive?).
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready handles readiness probe (is the service ready to accept traffic?).
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx := c.Request.Context()

	checks := map[string]string{}
	healthy := true

	probe := func(name string, p Pinger) {
		if p == nil {
			return
		}
		if err := p.Ping(ctx); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			healthy = false
			return
		}
		checks[name] = "healthy"
	}
	probe("database", h.db)
	probe("cooldown_store", h.flags)

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "error",
			"checks": checks,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"checks": checks,
	})
}

// Info returns application information.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	body := gin.H{
		"app":     "bfoproxy",
		"version": h.version,
	}
	if h.stats != nil {
		body["database"] = h.stats.Stats()
	}
	c.JSON(http.StatusOK, body)
}
