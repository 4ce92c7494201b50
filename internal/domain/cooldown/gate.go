// Package cooldown implements the shared upstream rate gate.
//
// After the registry answers 429 a single flag is stored with a TTL equal to
// the cooldown window. While the flag exists every upstream call fails fast.
package cooldown

import (
	"context"
	"strconv"
	"time"

	"bfoproxy/internal/core/apperror"
	"bfoproxy/pkg/logger"
)

// FlagStore persists the cooldown flag. Implementations must expire keys after ttl.
type FlagStore interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Get returns ok=false when the key is absent or expired.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
}

// Config configures the gate.
type Config struct {
	Key    string
	Window time.Duration
}

// Gate is safe for concurrent use; all state lives in the FlagStore.
type Gate struct {
	store  FlagStore
	key    string
	window time.Duration
	now    func() time.Time
}

// NewGate creates a gate over store.
func NewGate(store FlagStore, cfg Config) *Gate {
	return &Gate{
		store:  store,
		key:    cfg.Key,
		window: cfg.Window,
		now:    time.Now,
	}
}

// WithClock replaces the time source.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Window returns the configured cooldown window.
func (g *Gate) Window() time.Duration {
	return g.window
}

// Check reports whether upstream calls are currently blocked and for how long.
// Remaining is rounded up to whole seconds and is at least one second while limited.
// Store failures are logged and treated as not limited.
func (g *Gate) Check(ctx context.Context) (time.Duration, bool) {
	value, ok, err := g.store.Get(ctx, g.key)
	if err != nil {
		logger.Warn(ctx, "cooldown check failed, allowing upstream call", "key", g.key, "error", err)
		return 0, false
	}
	if !ok {
		return 0, false
	}

	remaining := g.window
	if ts, err := strconv.ParseInt(value, 10, 64); err == nil {
		remaining = g.window - g.now().Sub(time.Unix(ts, 0))
	} else {
		logger.Warn(ctx, "malformed cooldown flag", "key", g.key, "value", value)
	}
	if remaining > g.window {
		remaining = g.window
	}

	return time.Duration(apperror.RemainingSeconds(remaining)) * time.Second, true
}

// RecordLimitHit opens a new cooldown window starting now.
func (g *Gate) RecordLimitHit(ctx context.Context) {
	value := strconv.FormatInt(g.now().Unix(), 10)
	if err := g.store.Set(ctx, g.key, value, g.window); err != nil {
		logger.Error(ctx, "failed to record cooldown flag", "key", g.key, "error", err)
		return
	}
	logger.Warn(ctx, "upstream rate limit hit, cooldown started", "window", g.window.String())
}

// Limited returns a RateLimited error when the gate is closed, nil otherwise.
func (g *Gate) Limited(ctx context.Context) error {
	if remaining, limited := g.Check(ctx); limited {
		return apperror.NewRateLimited(remaining)
	}
	return nil
}
