package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Rrens/support-chat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name       string
	configured bool
	reply      string
	err        error
	delay      time.Duration
	lastReq    Request
}

func (f *fakeProvider) Name() string              { return f.name }
func (f *fakeProvider) AvailableModels() []string { return []string{"fake-1", "fake-2"} }
func (f *fakeProvider) DefaultModel() string      { return "fake-1" }
func (f *fakeProvider) IsConfigured() bool        { return f.configured }

func (f *fakeProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	f.lastReq = req
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &Response{Text: f.reply}, nil
}

func enabledConfig(provider string) domain.AssistantConfig {
	return domain.AssistantConfig{
		Enabled:      true,
		Provider:     provider,
		SystemPrompt: "be brief",
		Temperature:  0.7,
		MaxTokens:    500,
	}
}

var visitorHello = []Turn{{Sender: domain.SenderVisitor, Body: "Hello"}}

func TestGateway_Generate(t *testing.T) {
	fake := &fakeProvider{name: "fake", configured: true, reply: "  Hi there!  "}
	g := NewGateway("fake", time.Second)
	g.RegisterProvider(fake)

	resp, err := g.Generate(context.Background(), visitorHello, enabledConfig("fake"))
	require.NoError(t, err)

	assert.Equal(t, "Hi there!", resp.Text)
	assert.Equal(t, "fake", resp.Provider)
	assert.Equal(t, "fake-1", resp.Model)
	assert.Equal(t, "fake-1", fake.lastReq.Model)
	assert.Equal(t, 500, fake.lastReq.MaxTokens)
	assert.Equal(t, "be brief", fake.lastReq.SystemPrompt)
}

func TestGateway_Generate_ConfigErrors(t *testing.T) {
	g := NewGateway("fake", time.Second)
	g.RegisterProvider(&fakeProvider{name: "fake", configured: true, reply: "ok"})
	g.RegisterProvider(&fakeProvider{name: "nokey", configured: false, reply: "ok"})

	disabled := enabledConfig("fake")
	disabled.Enabled = false

	outOfBounds := enabledConfig("fake")
	outOfBounds.Temperature = 1.5

	tests := []struct {
		name    string
		cfg     domain.AssistantConfig
		history []Turn
	}{
		{"disabled", disabled, visitorHello},
		{"temperature out of bounds", outOfBounds, visitorHello},
		{"unknown provider", enabledConfig("missing"), visitorHello},
		{"unconfigured provider", enabledConfig("nokey"), visitorHello},
		{"empty history", enabledConfig("fake"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Generate(context.Background(), tt.history, tt.cfg)
			require.Error(t, err)
			assert.True(t, IsConfigError(err), "got %T: %v", err, err)
		})
	}

	_, err := g.Generate(context.Background(), visitorHello, disabled)
	assert.True(t, errors.Is(err, ErrAssistantDisabled))
}

func TestGateway_Generate_ProviderErrors(t *testing.T) {
	t.Run("empty reply", func(t *testing.T) {
		g := NewGateway("fake", time.Second)
		g.RegisterProvider(&fakeProvider{name: "fake", configured: true, reply: " \n "})

		_, err := g.Generate(context.Background(), visitorHello, enabledConfig("fake"))
		require.Error(t, err)
		assert.True(t, IsProviderError(err))
		assert.True(t, errors.Is(err, ErrEmptyReply))
	})

	t.Run("upstream failure", func(t *testing.T) {
		g := NewGateway("fake", time.Second)
		g.RegisterProvider(&fakeProvider{name: "fake", configured: true, err: errors.New("connection reset")})

		_, err := g.Generate(context.Background(), visitorHello, enabledConfig("fake"))
		require.Error(t, err)
		assert.True(t, IsProviderError(err))
	})

	t.Run("timeout", func(t *testing.T) {
		g := NewGateway("fake", 20*time.Millisecond)
		g.RegisterProvider(&fakeProvider{name: "fake", configured: true, reply: "late", delay: time.Second})

		start := time.Now()
		_, err := g.Generate(context.Background(), visitorHello, enabledConfig("fake"))
		require.Error(t, err)
		assert.True(t, IsProviderError(err))
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	})

	t.Run("typed errors pass through", func(t *testing.T) {
		g := NewGateway("fake", time.Second)
		g.RegisterProvider(&fakeProvider{name: "fake", configured: true, err: StatusError("fake", 401, "bad key")})

		_, err := g.Generate(context.Background(), visitorHello, enabledConfig("fake"))
		assert.True(t, IsConfigError(err))
	})
}

func TestGateway_ProvidersInfo(t *testing.T) {
	g := NewGateway("b", 0)
	g.RegisterProvider(&fakeProvider{name: "b", configured: true})
	g.RegisterProvider(&fakeProvider{name: "a", configured: false})

	infos := g.ProvidersInfo()
	require.Len(t, infos, 2)
	assert.Equal(t, "a", infos[0].Name)
	assert.False(t, infos[0].Configured)
	assert.True(t, infos[1].Default)
	assert.Equal(t, "b", g.DefaultProvider())
}

func TestStatusError(t *testing.T) {
	assert.True(t, IsConfigError(StatusError("x", 401, "")))
	assert.True(t, IsConfigError(StatusError("x", 404, "model not found")))

	err := StatusError("x", 429, "slow down")
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 429, pe.StatusCode)
}
