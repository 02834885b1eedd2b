package domain

import (
	"context"
	"time"
)

// Session is a single visitor's support conversation. The ID is generated
// by the visitor's client and is opaque to the server.
type Session struct {
	ID                 string     `json:"sessionId"`
	IPAddress          string     `json:"ipAddress"`
	CreatedAt          time.Time  `json:"createdAt"`
	LastActive         time.Time  `json:"lastActive"`
	HandedOff          bool       `json:"isHandedOff"`
	HandoffRequestedAt *time.Time `json:"handoffRequestedAt,omitempty"`
	MessageCount       int64      `json:"messageCount"`
	LastMessage        *Message   `json:"lastMessage,omitempty"`
	Messages           []Message  `json:"messages,omitempty"`
}

// SessionCreate is the payload of the session-creation path.
type SessionCreate struct {
	SessionID string `json:"sessionId" validate:"required,max=128"`
	IPAddress string `json:"ipAddress" validate:"omitempty,max=64"`
}

// SessionRepository defines the interface for session storage
type SessionRepository interface {
	// Create returns ErrSessionExists when the ID is taken.
	Create(ctx context.Context, session *Session) error
	// Get returns ErrSessionNotFound for unknown IDs.
	Get(ctx context.Context, id string) (*Session, error)
	// List returns sessions ordered by last activity, newest first, each
	// with its LastMessage populated.
	List(ctx context.Context, limit int) ([]Session, error)
	// MarkHandedOff sets the handoff flag. It never clears it and reports
	// whether this call changed it.
	MarkHandedOff(ctx context.Context, id string, at time.Time) (bool, error)
}
