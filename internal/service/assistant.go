package service

import (
	"context"
	"time"

	"github.com/Rrens/support-chat/internal/config"
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/rs/zerolog/log"
)

// ConfigCache is a read-through cache for the assistant configuration.
type ConfigCache interface {
	Get(ctx context.Context) (*domain.AssistantConfig, error)
	Set(ctx context.Context, cfg *domain.AssistantConfig) error
	Invalidate(ctx context.Context) error
}

// AssistantService reads and updates the singleton assistant configuration.
type AssistantService struct {
	repo     domain.AssistantConfigRepository
	cache    ConfigCache
	defaults domain.AssistantConfig
}

// NewAssistantService creates a new assistant service. cache may be nil.
func NewAssistantService(repo domain.AssistantConfigRepository, cache ConfigCache, defaults config.AssistantConfig) *AssistantService {
	return &AssistantService{
		repo:  repo,
		cache: cache,
		defaults: domain.AssistantConfig{
			Enabled:      defaults.Enabled,
			Provider:     defaults.Provider,
			Model:        defaults.Model,
			SystemPrompt: defaults.SystemPrompt,
			Temperature:  defaults.Temperature,
			MaxTokens:    defaults.MaxTokens,
		},
	}
}

// Get returns the current configuration. Until one has been saved the
// configured defaults are returned.
func (s *AssistantService) Get(ctx context.Context) (*domain.AssistantConfig, error) {
	if s.cache != nil {
		cfg, err := s.cache.Get(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Assistant config cache read failed")
		} else if cfg != nil {
			return cfg, nil
		}
	}

	cfg, err := s.repo.Get(ctx)
	if err != nil {
		return nil, domain.WrapStore("get assistant config", err)
	}
	if cfg == nil {
		defaults := s.defaults
		cfg = &defaults
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cfg); err != nil {
			log.Warn().Err(err).Msg("Assistant config cache write failed")
		}
	}

	return cfg, nil
}

// Update applies a partial update after validating the result.
func (s *AssistantService) Update(ctx context.Context, input domain.AssistantConfigUpdate) (*domain.AssistantConfig, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	updated := input.Apply(*current)
	if err := updated.Validate(); err != nil {
		return nil, err
	}

	return s.save(ctx, updated)
}

// Toggle sets the enabled flag, or flips it when enabled is nil.
func (s *AssistantService) Toggle(ctx context.Context, enabled *bool) (*domain.AssistantConfig, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	updated := *current
	if enabled != nil {
		updated.Enabled = *enabled
	} else {
		updated.Enabled = !current.Enabled
	}

	return s.save(ctx, updated)
}

func (s *AssistantService) save(ctx context.Context, cfg domain.AssistantConfig) (*domain.AssistantConfig, error) {
	cfg.UpdatedAt = time.Now().UTC()
	if err := s.repo.Save(ctx, &cfg); err != nil {
		return nil, domain.WrapStore("save assistant config", err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			log.Warn().Err(err).Msg("Assistant config cache invalidation failed")
		}
	}

	log.Info().
		Bool("enabled", cfg.Enabled).
		Str("provider", cfg.Provider).
		Str("model", cfg.Model).
		Msg("Assistant config updated")

	return &cfg, nil
}

// Defaults returns the configuration used before any has been saved.
func (s *AssistantService) Defaults() domain.AssistantConfig {
	return s.defaults
}
