package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Rrens/support-chat/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		store, err := Open(ctx, config.DatabaseConfig{Driver: "memory"})
		require.NoError(t, err)
		defer store.Close()

		assert.Equal(t, "memory", store.Driver)
		assert.NoError(t, store.Ping(ctx))
	})

	t.Run("sqlite", func(t *testing.T) {
		store, err := Open(ctx, config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "chat.db")})
		require.NoError(t, err)
		defer store.Close()

		assert.Equal(t, "sqlite", store.Driver)
		assert.NoError(t, store.Ping(ctx))
		assert.NotNil(t, store.Sessions)
		assert.NotNil(t, store.Messages)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := Open(ctx, config.DatabaseConfig{Driver: "cassandra"})
		assert.Error(t, err)
	})
}
