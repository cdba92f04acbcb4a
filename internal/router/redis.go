// Package router - redis.go shares cooldown state across gateway instances.
package router

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// cooldownKeyPrefix namespaces cooldown keys in a shared Redis.
const cooldownKeyPrefix = "nova-gateway:cooldown:"

// RedisCooldowns is a Redis-backed CooldownStore. The TTL is enforced by
// Redis key expiry, so every gateway instance sees the same rotation state.
type RedisCooldowns struct {
	client *redis.Client
}

// NewRedisCooldowns connects to Redis and verifies the connection.
func NewRedisCooldowns(cfg RedisConfig) (*RedisCooldowns, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis cooldown store: %w", err)
	}
	return &RedisCooldowns{client: client}, nil
}

// Put implements CooldownStore.
func (s *RedisCooldowns) Put(ctx context.Context, deploymentID string, ttl time.Duration) error {
	return s.client.Set(ctx, cooldownKeyPrefix+deploymentID, 1, ttl).Err()
}

// Active implements CooldownStore.
func (s *RedisCooldowns) Active(ctx context.Context, deploymentID string) (bool, error) {
	n, err := s.client.Exists(ctx, cooldownKeyPrefix+deploymentID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close implements CooldownStore.
func (s *RedisCooldowns) Close() error {
	return s.client.Close()
}

// newCooldownStore builds the configured cooldown store.
func newCooldownStore(cfg *Config) (CooldownStore, error) {
	switch cfg.CooldownStore {
	case "", CooldownStoreMemory:
		return NewMemoryCooldowns(), nil
	case CooldownStoreRedis:
		return NewRedisCooldowns(cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown cooldown store %q", cfg.CooldownStore)
	}
}
