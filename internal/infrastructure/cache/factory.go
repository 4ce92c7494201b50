package cache

import (
	"context"

	"bfoproxy/internal/domain/cooldown"
	"bfoproxy/pkg/logger"
)

// FlagStore is a cooldown.FlagStore that can report its health.
type FlagStore interface {
	cooldown.FlagStore
	Ping(ctx context.Context) error
}

// NewFlagStore picks the Redis store when a host is configured and the
// in-memory store otherwise. An unreachable Redis falls back to memory when
// allowFallback is set.
func NewFlagStore(ctx context.Context, cfg RedisConfig, allowFallback bool) (FlagStore, func(), error) {
	if cfg.Host == "" {
		logger.Info(ctx, "using in-memory cooldown store")
		return cooldown.NewMemoryFlagStore(), func() {}, nil
	}

	store, err := NewRedisFlagStore(cfg)
	if err == nil {
		logger.Info(ctx, "using Redis cooldown store", "host", cfg.Host, "port", cfg.Port)
		return store, func() { _ = store.Close() }, nil
	}
	if !allowFallback {
		return nil, nil, err
	}

	logger.Warn(ctx, "Redis unavailable, falling back to in-memory cooldown store. "+
		"Instances will not share the cooldown window.", "error", err)
	return cooldown.NewMemoryFlagStore(), func() {}, nil
}
