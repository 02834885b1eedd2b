package domain

import (
	"context"
	"time"
)

const (
	MinTemperature = 0.0
	MaxTemperature = 1.0
	MinMaxTokens   = 50
	MaxMaxTokens   = 2000
)

// AssistantConfig is the process-wide configuration of the automated
// responder. There is exactly one.
type AssistantConfig struct {
	Enabled      bool      `json:"isEnabled"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	SystemPrompt string    `json:"systemPrompt"`
	Temperature  float64   `json:"temperature"`
	MaxTokens    int       `json:"maxTokens"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Validate checks the numeric bounds.
func (c AssistantConfig) Validate() error {
	if c.Temperature < MinTemperature || c.Temperature > MaxTemperature {
		return NewValidationError("temperature", "must be between 0 and 1")
	}
	if c.MaxTokens < MinMaxTokens || c.MaxTokens > MaxMaxTokens {
		return NewValidationError("maxTokens", "must be between 50 and 2000")
	}
	return nil
}

// AssistantConfigUpdate carries a partial update. Nil fields are left as is.
type AssistantConfigUpdate struct {
	Enabled      *bool    `json:"isEnabled"`
	Provider     *string  `json:"provider" validate:"omitempty,min=1,max=64"`
	Model        *string  `json:"model" validate:"omitempty,min=1,max=128"`
	SystemPrompt *string  `json:"systemPrompt" validate:"omitempty,max=8000"`
	Temperature  *float64 `json:"temperature" validate:"omitempty,min=0,max=1"`
	MaxTokens    *int     `json:"maxTokens" validate:"omitempty,min=50,max=2000"`
}

// Apply returns a copy of cfg with the non-nil fields of u applied.
func (u AssistantConfigUpdate) Apply(cfg AssistantConfig) AssistantConfig {
	if u.Enabled != nil {
		cfg.Enabled = *u.Enabled
	}
	if u.Provider != nil {
		cfg.Provider = *u.Provider
	}
	if u.Model != nil {
		cfg.Model = *u.Model
	}
	if u.SystemPrompt != nil {
		cfg.SystemPrompt = *u.SystemPrompt
	}
	if u.Temperature != nil {
		cfg.Temperature = *u.Temperature
	}
	if u.MaxTokens != nil {
		cfg.MaxTokens = *u.MaxTokens
	}
	return cfg
}

// AssistantConfigRepository stores the singleton AssistantConfig.
type AssistantConfigRepository interface {
	// Get returns nil, nil when nothing has been saved yet.
	Get(ctx context.Context) (*AssistantConfig, error)
	Save(ctx context.Context, cfg *AssistantConfig) error
}
