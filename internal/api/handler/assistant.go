package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Rrens/support-chat/internal/api/response"
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/service"
)

// AssistantHandler handles assistant configuration endpoints
type AssistantHandler struct {
	assistant *service.AssistantService
}

// NewAssistantHandler creates a new assistant handler
func NewAssistantHandler(assistant *service.AssistantService) *AssistantHandler {
	return &AssistantHandler{assistant: assistant}
}

// GetConfig returns the current assistant configuration
func (h *AssistantHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.assistant.Get(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, cfg)
}

// UpdateConfig applies a partial configuration update
func (h *AssistantHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var input domain.AssistantConfigUpdate
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := validate.Struct(input); err != nil {
		response.Validation(w, err)
		return
	}

	cfg, err := h.assistant.Update(r.Context(), input)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, cfg)
}

// Toggle enables or disables the assistant. An empty body flips the
// current state.
func (h *AssistantHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Enabled *bool `json:"isEnabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "invalid request body")
		return
	}

	cfg, err := h.assistant.Toggle(r.Context(), input.Enabled)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, cfg)
}
