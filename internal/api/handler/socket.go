package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/Rrens/support-chat/internal/api/middleware"
	"github.com/Rrens/support-chat/internal/api/response"
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/presence"
	"github.com/Rrens/support-chat/internal/realtime"
	"github.com/Rrens/support-chat/internal/security"
	"github.com/Rrens/support-chat/internal/service"
	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"
)

// SocketHandler upgrades /ws requests and dispatches live channel events to
// the conversation router.
type SocketHandler struct {
	router     *service.ConversationRouter
	hub        *realtime.Hub
	jwtManager *security.JWTManager
	limiter    middleware.Limiter
	origins    []string
	queueSize  int
}

// NewSocketHandler creates a new socket handler. limiter throttles visitor
// messages per session and may be nil.
func NewSocketHandler(
	router *service.ConversationRouter,
	hub *realtime.Hub,
	jwtManager *security.JWTManager,
	limiter middleware.Limiter,
	origins []string,
) *SocketHandler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &SocketHandler{
		router:     router,
		hub:        hub,
		jwtManager: jwtManager,
		limiter:    limiter,
		origins:    origins,
		queueSize:  realtime.DefaultQueueSize,
	}
}

// ServeHTTP authenticates the connection, upgrades it and runs it until the
// peer goes away.
func (h *SocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	role := realtime.RoleVisitor
	token := r.URL.Query().Get("token")
	if token == "" {
		bearer, present, ok := middleware.BearerToken(r)
		if !ok {
			response.Unauthorized(w, "invalid authorization header format")
			return
		}
		if present {
			token = bearer
		}
	}

	var claims *security.Claims
	if token != "" {
		var err error
		claims, err = h.jwtManager.ValidateAccessToken(token)
		if err != nil {
			response.Unauthorized(w, "invalid or expired token")
			return
		}
		role = realtime.RoleOperator
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to accept websocket")
		return
	}

	client := realtime.NewClient(conn, role, h.queueSize)
	logger := log.With().Str("client", client.ID()).Str("role", string(role)).Logger()
	if claims != nil {
		logger = logger.With().Str("operator", claims.Email).Logger()
		h.hub.JoinOperators(client)
	}
	logger.Debug().Str("remote_ip", r.RemoteAddr).Msg("Live channel connected")

	defer h.router.Disconnect(client)

	err = client.Run(r.Context(), func(ctx context.Context, env realtime.Envelope) {
		if role == realtime.RoleOperator {
			h.handleOperator(ctx, client, env)
			return
		}
		h.handleVisitor(ctx, client, env)
	})
	if err != nil {
		logger.Debug().Err(err).Msg("Live channel closed with error")
		return
	}
	logger.Debug().Msg("Live channel closed")
}

func (h *SocketHandler) handleVisitor(ctx context.Context, client *realtime.Client, env realtime.Envelope) {
	switch env.Event {
	case realtime.EventUserConnected:
		var p realtime.ConnectPayload
		if !decode(client, env, &p) {
			return
		}
		reply(client, env.Event, h.router.VisitorConnect(ctx, client, p.SessionID))

	case realtime.EventUserMessage:
		var p realtime.MessagePayload
		if !decode(client, env, &p) || !h.member(client, env.Event, p.SessionID) {
			return
		}
		if !h.allow(ctx, client, env.Event, p.SessionID) {
			return
		}
		_, err := h.router.VisitorMessage(ctx, p.SessionID, p.Message, p.Timestamp)
		reply(client, env.Event, err)

	case realtime.EventUserTyping:
		var p realtime.TypingPayload
		if !decode(client, env, &p) || !h.member(client, env.Event, p.SessionID) {
			return
		}
		reply(client, env.Event, h.router.Typing(ctx, p.SessionID, presence.PartyVisitor, p.IsTyping))

	case realtime.EventHandoffRequest:
		var p realtime.SessionPayload
		if !decode(client, env, &p) || !h.member(client, env.Event, p.SessionID) {
			return
		}
		reply(client, env.Event, h.router.RequestHandoff(ctx, p.SessionID))

	case realtime.EventAdminReply, realtime.EventAdminTyping, realtime.EventJoinSession, realtime.EventLeaveSession:
		reply(client, env.Event, domain.ErrForbidden)

	default:
		client.Send(realtime.NewError(env.Event, "unknown event"))
	}
}

func (h *SocketHandler) handleOperator(ctx context.Context, client *realtime.Client, env realtime.Envelope) {
	switch env.Event {
	case realtime.EventJoinSession:
		var p realtime.SessionPayload
		if !decode(client, env, &p) {
			return
		}
		reply(client, env.Event, h.router.OperatorJoin(ctx, client, p.SessionID))

	case realtime.EventLeaveSession:
		var p realtime.SessionPayload
		if !decode(client, env, &p) {
			return
		}
		reply(client, env.Event, h.router.OperatorLeave(ctx, client, p.SessionID))

	case realtime.EventAdminReply:
		var p realtime.MessagePayload
		if !decode(client, env, &p) {
			return
		}
		_, err := h.router.OperatorReply(ctx, p.SessionID, p.Message, p.Timestamp)
		reply(client, env.Event, err)

	case realtime.EventAdminTyping:
		var p realtime.TypingPayload
		if !decode(client, env, &p) {
			return
		}
		reply(client, env.Event, h.router.Typing(ctx, p.SessionID, presence.PartyOperator, p.IsTyping))

	case realtime.EventHandoffRequest:
		var p realtime.SessionPayload
		if !decode(client, env, &p) {
			return
		}
		reply(client, env.Event, h.router.RequestHandoff(ctx, p.SessionID))

	case realtime.EventUserConnected, realtime.EventUserMessage, realtime.EventUserTyping:
		client.Send(realtime.NewError(env.Event, "event is reserved for visitors"))

	default:
		client.Send(realtime.NewError(env.Event, "unknown event"))
	}
}

// member reports whether a visitor joined sessionID through user-connected.
func (h *SocketHandler) member(client *realtime.Client, event, sessionID string) bool {
	if h.hub.IsMember(client, sessionID) {
		return true
	}
	client.Send(realtime.NewError(event, "not connected to this session"))
	return false
}

func (h *SocketHandler) allow(ctx context.Context, client *realtime.Client, event, sessionID string) bool {
	if h.limiter == nil {
		return true
	}
	allowed, _, _, err := h.limiter.Allow(ctx, sessionID)
	if err != nil {
		log.Warn().Err(err).Msg("Rate limiter unavailable, allowing message")
		return true
	}
	if !allowed {
		client.Send(realtime.NewError(event, "rate limit exceeded"))
	}
	return allowed
}

func decode(client *realtime.Client, env realtime.Envelope, v any) bool {
	if err := env.Decode(v); err != nil {
		client.Send(realtime.NewError(env.Event, err.Error()))
		return false
	}
	return true
}

// reply reports err, if any, to the sender as an error event.
func reply(client *realtime.Client, event string, err error) {
	if err == nil {
		return
	}

	var validationErr *domain.ValidationError
	var storeErr *domain.StoreError
	msg := "internal error"
	switch {
	case errors.As(err, &validationErr):
		msg = validationErr.Error()
	case errors.Is(err, domain.ErrSessionNotFound):
		msg = domain.ErrSessionNotFound.Error()
	case errors.Is(err, domain.ErrForbidden):
		msg = domain.ErrForbidden.Error()
	case errors.Is(err, service.ErrRouterClosed):
		msg = service.ErrRouterClosed.Error()
	case errors.As(err, &storeErr):
		msg = "storage unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return
	default:
		log.Error().Err(err).Str("event", event).Msg("Live channel event failed")
	}
	client.Send(realtime.NewError(event, msg))
}
