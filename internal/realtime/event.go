package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event names used on the live channel.
const (
	EventUserConnected    = "user-connected"
	EventUserMessage      = "user-message"
	EventAdminReply       = "admin-reply"
	EventAIReply          = "ai-reply"
	EventUserTyping       = "user-typing"
	EventAdminTyping      = "admin-typing"
	EventAIThinking       = "ai-thinking"
	EventHandoffRequested = "handoff-requested"
	EventChatListUpdate   = "chat-list-update"
	EventError            = "error"

	// Inbound only
	EventHandoffRequest = "handoff-request"
	EventJoinSession    = "join-session"
	EventLeaveSession   = "leave-session"
)

// Event is an outbound frame: {"event": name, "data": {...}}.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

// Envelope is an inbound frame with its payload left undecoded.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("event %q has no data", e.Event)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("invalid %q payload: %w", e.Event, err)
	}
	return nil
}

// SessionPayload carries just a session id.
type SessionPayload struct {
	SessionID string `json:"sessionId"`
}

// ConnectPayload is sent by a visitor after creating its session.
type ConnectPayload struct {
	SessionID string `json:"sessionId"`
	IPAddress string `json:"ipAddress,omitempty"`
}

// MessagePayload is used for user-message and admin-reply in both directions.
// Inbound timestamps are informational; the server assigns its own.
type MessagePayload struct {
	ID         string    `json:"id,omitempty"`
	SessionID  string    `json:"sessionId"`
	Message    string    `json:"message"`
	SenderType string    `json:"senderType,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// TypingPayload is used for user-typing and admin-typing.
type TypingPayload struct {
	SessionID string `json:"sessionId"`
	IsTyping  bool   `json:"isTyping"`
}

// ThinkingPayload is used for ai-thinking.
type ThinkingPayload struct {
	SessionID  string `json:"sessionId"`
	IsThinking bool   `json:"isThinking"`
}

// ErrorPayload reports a rejected inbound event to its sender.
type ErrorPayload struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}

// NewError builds an error event in response to the inbound event name.
func NewError(inbound, msg string) Event {
	return Event{Name: EventError, Data: ErrorPayload{Event: inbound, Message: msg}}
}
