package llm

import (
	"context"

	"github.com/Rrens/support-chat/internal/domain"
)

// Turn is one transcript entry handed to a responder.
type Turn struct {
	Sender domain.SenderType
	Body   string
}

// Request contains reply generation parameters
type Request struct {
	History      []Turn
	SystemPrompt string
	Model        string
	Temperature  float64
	MaxTokens    int
}

// Response contains LLM generation result
type Response struct {
	Text       string
	Provider   string
	Model      string
	TokensUsed int
	LatencyMs  int64
}

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider identifier
	Name() string

	// AvailableModels returns list of supported models
	AvailableModels() []string

	// DefaultModel returns the default model
	DefaultModel() string

	// IsConfigured checks if provider has valid credentials
	IsConfigured() bool

	// Generate produces the next assistant reply for the conversation
	Generate(ctx context.Context, req Request) (*Response, error)
}
