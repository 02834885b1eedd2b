package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_Generate(t *testing.T) {
	var got anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.Equal(t, apiVersion, r.Header.Get("anthropic-version"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Write([]byte(`{"content":[{"type":"text","text":"Happy to help."}],"usage":{"input_tokens":10,"output_tokens":5}}`))
	}))
	defer server.Close()

	p := NewProvider("secret", "").WithBaseURL(server.URL)
	resp, err := p.Generate(context.Background(), llm.Request{
		History: []llm.Turn{
			{Sender: domain.SenderAssistant, Body: "Welcome!"},
			{Sender: domain.SenderVisitor, Body: "Where is my order?"},
		},
		SystemPrompt: "support agent",
		Temperature:  0.5,
		MaxTokens:    300,
	})
	require.NoError(t, err)

	assert.Equal(t, "Happy to help.", resp.Text)
	assert.Equal(t, 15, resp.TokensUsed)
	assert.Equal(t, "support agent", got.System)
	assert.Equal(t, 300, got.MaxTokens)
	require.Len(t, got.Messages, 1, "conversation must open with the visitor")
	assert.Equal(t, llm.RoleUser, got.Messages[0].Role)
}

func TestProvider_Generate_NoVisitorMessage(t *testing.T) {
	p := NewProvider("secret", "")
	_, err := p.Generate(context.Background(), llm.Request{
		History: []llm.Turn{{Sender: domain.SenderAssistant, Body: "Welcome!"}},
	})
	assert.True(t, llm.IsConfigError(err))
}
