package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Rrens/support-chat/internal/domain"
)

// Gateway is the responder gateway: it owns the provider registry and turns
// a transcript plus the current assistant configuration into a reply.
type Gateway struct {
	providers       map[string]Provider
	defaultProvider string
	timeout         time.Duration
	mu              sync.RWMutex
}

// NewGateway creates a new gateway. A zero timeout leaves deadlines to the
// caller's context.
func NewGateway(defaultProvider string, timeout time.Duration) *Gateway {
	return &Gateway{
		providers:       make(map[string]Provider),
		defaultProvider: defaultProvider,
		timeout:         timeout,
	}
}

// RegisterProvider registers an LLM provider
func (g *Gateway) RegisterProvider(provider Provider) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.providers[provider.Name()] = provider
}

// GetProvider returns a configured provider by name
func (g *Gateway) GetProvider(name string) (Provider, error) {
	if name == "" {
		name = g.defaultProvider
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	p, ok := g.providers[name]
	if !ok {
		return nil, &ConfigError{Provider: name, Err: errors.New("provider not registered")}
	}

	if !p.IsConfigured() {
		return nil, &ConfigError{Provider: name, Err: errors.New("provider not configured")}
	}

	return p, nil
}

// DefaultProvider returns the default provider name
func (g *Gateway) DefaultProvider() string {
	return g.defaultProvider
}

// ProviderInfo contains information about an LLM provider
type ProviderInfo struct {
	Name       string   `json:"name"`
	Models     []string `json:"models"`
	Default    bool     `json:"default"`
	Configured bool     `json:"configured"`
}

// ProvidersInfo returns information about all registered providers
func (g *Gateway) ProvidersInfo() []ProviderInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()

	infos := make([]ProviderInfo, 0, len(g.providers))
	for name, p := range g.providers {
		infos = append(infos, ProviderInfo{
			Name:       name,
			Models:     p.AvailableModels(),
			Default:    name == g.defaultProvider,
			Configured: p.IsConfigured(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Generate produces an assistant reply. Every failure is either a
// *ConfigError or a *ProviderError.
func (g *Gateway) Generate(ctx context.Context, history []Turn, cfg domain.AssistantConfig) (*Response, error) {
	if !cfg.Enabled {
		return nil, &ConfigError{Provider: cfg.Provider, Err: ErrAssistantDisabled}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &ConfigError{Provider: cfg.Provider, Err: err}
	}
	if len(BuildConversation(history)) == 0 {
		return nil, &ConfigError{Provider: cfg.Provider, Err: ErrEmptyHistory}
	}

	provider, err := g.GetProvider(cfg.Provider)
	if err != nil {
		return nil, err
	}

	model := cfg.Model
	if model == "" {
		model = provider.DefaultModel()
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := provider.Generate(ctx, Request{
		History:      history,
		SystemPrompt: cfg.SystemPrompt,
		Model:        model,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
	})
	if err != nil {
		if IsConfigError(err) || IsProviderError(err) {
			return nil, err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &ProviderError{Provider: provider.Name(), Err: fmt.Errorf("timed out after %s: %w", time.Since(start).Round(time.Millisecond), err)}
		}
		return nil, &ProviderError{Provider: provider.Name(), Err: err}
	}
	if resp == nil {
		return nil, &ProviderError{Provider: provider.Name(), Err: ErrEmptyReply}
	}

	resp.Text = strings.TrimSpace(resp.Text)
	if resp.Text == "" {
		return nil, &ProviderError{Provider: provider.Name(), Err: ErrEmptyReply}
	}
	if resp.Provider == "" {
		resp.Provider = provider.Name()
	}
	if resp.Model == "" {
		resp.Model = model
	}
	if resp.LatencyMs == 0 {
		resp.LatencyMs = time.Since(start).Milliseconds()
	}
	return resp, nil
}
