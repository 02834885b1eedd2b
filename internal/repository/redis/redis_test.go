package redis

import (
	"context"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Rrens/support-chat/internal/config"
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient connects to TEST_REDIS_ADDR (host:port).
func newTestClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set - run as integration test")
	}

	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err, "TEST_REDIS_ADDR must be host:port")
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	client, err := NewClient(context.Background(), config.RedisConfig{Host: host, Port: port})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestConfigCache(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	cache := NewConfigCache(client)
	require.NoError(t, cache.Invalidate(ctx))

	got, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	cfg := &domain.AssistantConfig{Enabled: true, Provider: "openrouter", Temperature: 0.3, MaxTokens: 256, UpdatedAt: time.Now().UTC()}
	require.NoError(t, cache.Set(ctx, cfg))

	got, err = cache.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 256, got.MaxTokens)

	require.NoError(t, cache.Invalidate(ctx))
	got, err = cache.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRateLimiter(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	limiter := NewRateLimiter(client, "test", 2, 1)
	key := uuid.NewString()
	defer limiter.Reset(ctx, key)

	for i := 0; i < 3; i++ {
		allowed, _, _, err := limiter.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d", i)
	}

	allowed, remaining, reset, err := limiter.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 0, remaining)
	assert.True(t, reset.After(time.Now()))
}
