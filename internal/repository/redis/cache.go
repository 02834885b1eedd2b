package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Rrens/support-chat/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	assistantConfigKey = "assistant:config"
	assistantConfigTTL = 5 * time.Minute
)

// ConfigCache caches the assistant configuration, which is read on every
// visitor message.
type ConfigCache struct {
	client *Client
	ttl    time.Duration
}

// NewConfigCache creates a new assistant config cache
func NewConfigCache(client *Client) *ConfigCache {
	return &ConfigCache{client: client, ttl: assistantConfigTTL}
}

// Get returns the cached config, or nil on a cache miss
func (c *ConfigCache) Get(ctx context.Context) (*domain.AssistantConfig, error) {
	data, err := c.client.rdb.Get(ctx, assistantConfigKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read assistant config cache: %w", err)
	}

	var cfg domain.AssistantConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal assistant config: %w", err)
	}

	return &cfg, nil
}

// Set caches the config
func (c *ConfigCache) Set(ctx context.Context, cfg *domain.AssistantConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal assistant config: %w", err)
	}

	return c.client.rdb.Set(ctx, assistantConfigKey, data, c.ttl).Err()
}

// Invalidate removes the cached config
func (c *ConfigCache) Invalidate(ctx context.Context) error {
	return c.client.rdb.Del(ctx, assistantConfigKey).Err()
}
