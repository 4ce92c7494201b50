// Package cache provides the shared cooldown flag store and the in-process organization cache.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"bfoproxy/internal/domain/cooldown"
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RedisFlagStore implements cooldown.FlagStore on Redis so every instance
// shares one cooldown window.
type RedisFlagStore struct {
	client *redis.Client
}

var _ cooldown.FlagStore = (*RedisFlagStore)(nil)

// NewRedisFlagStore connects to Redis and verifies the connection.
func NewRedisFlagStore(cfg RedisConfig) (*RedisFlagStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisFlagStore{client: client}, nil
}

// NewRedisFlagStoreWithClient wraps an existing client.
func NewRedisFlagStoreWithClient(client *redis.Client) *RedisFlagStore {
	return &RedisFlagStore{client: client}
}

// Set stores value under key with an expiry.
func (s *RedisFlagStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set flag %s: %w", key, err)
	}
	return nil
}

// Get returns the flag value; ok is false when the key is absent or expired.
func (s *RedisFlagStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get flag %s: %w", key, err)
	}
	return value, true, nil
}

// Ping checks the connection.
func (s *RedisFlagStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (s *RedisFlagStore) Close() error {
	return s.client.Close()
}
