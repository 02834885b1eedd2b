package service

import (
	"context"
	"errors"
	"testing"

	"github.com/Rrens/support-chat/internal/config"
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var assistantDefaults = config.AssistantConfig{
	Enabled:      true,
	Provider:     "openrouter",
	Model:        "z-ai/glm-4.5-air:free",
	SystemPrompt: "be helpful",
	Temperature:  0.7,
	MaxTokens:    500,
}

func TestAssistantService_DefaultsUntilSaved(t *testing.T) {
	svc := NewAssistantService(memory.New().Assistant(), nil, assistantDefaults)

	cfg, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "openrouter", cfg.Provider)
	assert.Equal(t, 500, cfg.MaxTokens)
}

func TestAssistantService_Update(t *testing.T) {
	store := memory.New()
	svc := NewAssistantService(store.Assistant(), nil, assistantDefaults)
	ctx := context.Background()

	temp := 0.2
	prompt := "Answer in one sentence."
	cfg, err := svc.Update(ctx, domain.AssistantConfigUpdate{Temperature: &temp, SystemPrompt: &prompt})
	require.NoError(t, err)
	assert.Equal(t, 0.2, cfg.Temperature)
	assert.Equal(t, "openrouter", cfg.Provider)
	assert.False(t, cfg.UpdatedAt.IsZero())

	saved, err := store.Assistant().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Answer in one sentence.", saved.SystemPrompt)

	tooMany := 5000
	_, err = svc.Update(ctx, domain.AssistantConfigUpdate{MaxTokens: &tooMany})
	assert.True(t, domain.IsValidation(err))

	current, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 500, current.MaxTokens, "rejected update leaves config unchanged")
}

func TestAssistantService_Toggle(t *testing.T) {
	svc := NewAssistantService(memory.New().Assistant(), nil, assistantDefaults)
	ctx := context.Background()

	cfg, err := svc.Toggle(ctx, nil)
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)

	cfg, err = svc.Toggle(ctx, nil)
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)

	off := false
	cfg, err = svc.Toggle(ctx, &off)
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)

	cfg, err = svc.Toggle(ctx, &off)
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)
}

func TestAssistantService_Cache(t *testing.T) {
	cached := &domain.AssistantConfig{Enabled: false, Provider: "ollama", Temperature: 0.1, MaxTokens: 100}

	cache := new(MockConfigCache)
	cache.On("Get", mock.Anything).Return(cached, nil).Once()
	cache.On("Get", mock.Anything).Return(nil, nil)
	cache.On("Set", mock.Anything, mock.Anything).Return(nil)
	cache.On("Invalidate", mock.Anything).Return(nil)

	repo := new(MockAssistantConfigRepository)
	repo.On("Get", mock.Anything).Return(nil, nil)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)

	svc := NewAssistantService(repo, cache, assistantDefaults)
	ctx := context.Background()

	cfg, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.Provider)
	repo.AssertNotCalled(t, "Get", mock.Anything)

	cfg, err = svc.Toggle(ctx, nil)
	require.NoError(t, err)
	assert.False(t, cfg.Enabled, "defaults are enabled, toggle disables")

	cache.AssertCalled(t, "Set", mock.Anything, mock.Anything)
	cache.AssertCalled(t, "Invalidate", mock.Anything)
	repo.AssertCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestAssistantService_CacheFailureFallsBackToStore(t *testing.T) {
	cache := new(MockConfigCache)
	cache.On("Get", mock.Anything).Return(nil, errors.New("redis down"))
	cache.On("Set", mock.Anything, mock.Anything).Return(errors.New("redis down"))

	svc := NewAssistantService(memory.New().Assistant(), cache, assistantDefaults)

	cfg, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "openrouter", cfg.Provider)
}

func TestAssistantService_StoreFailure(t *testing.T) {
	repo := new(MockAssistantConfigRepository)
	repo.On("Get", mock.Anything).Return(nil, errors.New("connection refused"))

	svc := NewAssistantService(repo, nil, assistantDefaults)
	_, err := svc.Get(context.Background())

	var se *domain.StoreError
	assert.ErrorAs(t, err, &se)
}
