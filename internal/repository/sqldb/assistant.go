package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Rrens/support-chat/internal/domain"
)

// AssistantConfigRepository implements domain.AssistantConfigRepository
type AssistantConfigRepository struct {
	db *DB
}

// NewAssistantConfigRepository creates a new assistant config repository
func NewAssistantConfigRepository(db *DB) *AssistantConfigRepository {
	return &AssistantConfigRepository{db: db}
}

func (r *AssistantConfigRepository) Get(ctx context.Context) (*domain.AssistantConfig, error) {
	query := `
		SELECT enabled, provider, model, system_prompt, temperature, max_tokens, updated_at
		FROM assistant_config
		WHERE id = 1
	`
	var (
		c         domain.AssistantConfig
		updatedAt int64
	)
	err := r.db.SQL.QueryRowContext(ctx, query).Scan(
		&c.Enabled,
		&c.Provider,
		&c.Model,
		&c.SystemPrompt,
		&c.Temperature,
		&c.MaxTokens,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assistant config: %w", err)
	}
	c.UpdatedAt = fromNanos(updatedAt)
	return &c, nil
}

func (r *AssistantConfigRepository) Save(ctx context.Context, cfg *domain.AssistantConfig) error {
	_, err := r.db.SQL.ExecContext(ctx, r.db.dialect.upsertAssistant,
		cfg.Enabled,
		cfg.Provider,
		cfg.Model,
		cfg.SystemPrompt,
		cfg.Temperature,
		cfg.MaxTokens,
		toNanos(cfg.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save assistant config: %w", err)
	}
	return nil
}
