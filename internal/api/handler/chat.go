package handler

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	"github.com/Rrens/support-chat/internal/api/response"
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/service"
	"github.com/go-chi/chi/v5"
)

// ChatHandler handles session and transcript endpoints
type ChatHandler struct {
	sessions *service.SessionService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(sessions *service.SessionService) *ChatHandler {
	return &ChatHandler{sessions: sessions}
}

// Create registers a visitor session before the visitor opens the live
// channel. Repeating the call for the same id returns the existing session.
func (h *ChatHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input domain.SessionCreate
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := validate.Struct(input); err != nil {
		response.Validation(w, err)
		return
	}
	if input.IPAddress == "" {
		input.IPAddress = clientIP(r)
	}

	session, created, err := h.sessions.Create(r.Context(), input)
	if err != nil {
		response.FromError(w, err)
		return
	}

	if created {
		response.Created(w, session)
		return
	}
	response.OK(w, session)
}

// List returns sessions for the operator dashboard, most recent first
func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			response.BadRequest(w, "invalid limit")
			return
		}
		limit = n
	}

	sessions, err := h.sessions.List(r.Context(), limit)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, sessions)
}

// Get returns one session with its full transcript
func (h *ChatHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, session)
}

// Messages returns the transcript of a session. Visitors use it to restore
// history after reconnecting.
func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.sessions.Messages(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, msgs)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
