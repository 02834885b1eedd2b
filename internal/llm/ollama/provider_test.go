package ollama

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
	var got ollamaRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"message":{"role":"assistant","content":"Sure thing."},"done":true,"prompt_eval_count":7,"eval_count":3}`))
	}))
	defer server.Close()

	p := NewProvider(server.URL+"/", "")
	resp, err := p.Generate(context.Background(), llm.Request{
		History:   []llm.Turn{{Sender: domain.SenderVisitor, Body: "Can you help?"}},
		MaxTokens: 120,
	})
	require.NoError(t, err)

	assert.Equal(t, "Sure thing.", resp.Text)
	assert.Equal(t, 10, resp.TokensUsed)
	assert.Equal(t, "llama3", got.Model)
	assert.False(t, got.Stream)
	assert.EqualValues(t, 120, got.Options["num_predict"])
}

func TestProvider_Generate_ModelMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	p := NewProvider(server.URL, "unknown")
	_, err := p.Generate(context.Background(), llm.Request{
		History: []llm.Turn{{Sender: domain.SenderVisitor, Body: "hi"}},
	})
	assert.True(t, llm.IsConfigError(err))
}
