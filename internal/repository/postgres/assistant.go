package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Rrens/support-chat/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AssistantConfigRepository implements domain.AssistantConfigRepository
type AssistantConfigRepository struct {
	pool *pgxpool.Pool
}

// NewAssistantConfigRepository creates a new assistant config repository
func NewAssistantConfigRepository(pool *pgxpool.Pool) *AssistantConfigRepository {
	return &AssistantConfigRepository{pool: pool}
}

func (r *AssistantConfigRepository) Get(ctx context.Context) (*domain.AssistantConfig, error) {
	query := `
		SELECT enabled, provider, model, system_prompt, temperature, max_tokens, updated_at
		FROM assistant_config
		WHERE id = 1
	`
	var c domain.AssistantConfig
	err := r.pool.QueryRow(ctx, query).Scan(
		&c.Enabled,
		&c.Provider,
		&c.Model,
		&c.SystemPrompt,
		&c.Temperature,
		&c.MaxTokens,
		&c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assistant config: %w", err)
	}
	return &c, nil
}

func (r *AssistantConfigRepository) Save(ctx context.Context, cfg *domain.AssistantConfig) error {
	query := `
		INSERT INTO assistant_config (id, enabled, provider, model, system_prompt, temperature, max_tokens, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			provider = EXCLUDED.provider,
			model = EXCLUDED.model,
			system_prompt = EXCLUDED.system_prompt,
			temperature = EXCLUDED.temperature,
			max_tokens = EXCLUDED.max_tokens,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.pool.Exec(ctx, query,
		cfg.Enabled,
		cfg.Provider,
		cfg.Model,
		cfg.SystemPrompt,
		cfg.Temperature,
		cfg.MaxTokens,
		cfg.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save assistant config: %w", err)
	}
	return nil
}
