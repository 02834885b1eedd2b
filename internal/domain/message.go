package domain

import (
	"context"
	"time"
)

// SenderType identifies who wrote a message. Wire values are kept from the
// widget protocol: visitors are "user", operators are "admin".
type SenderType string

const (
	SenderVisitor   SenderType = "user"
	SenderOperator  SenderType = "admin"
	SenderAssistant SenderType = "ai"
)

func (s SenderType) Valid() bool {
	switch s {
	case SenderVisitor, SenderOperator, SenderAssistant:
		return true
	}
	return false
}

// Message is one entry of a session transcript. Seq is assigned by the store
// at append time and orders the transcript.
type Message struct {
	ID        string     `json:"id"`
	SessionID string     `json:"sessionId"`
	Body      string     `json:"message"`
	Sender    SenderType `json:"senderType"`
	Seq       int64      `json:"seq"`
	Timestamp time.Time  `json:"timestamp"`
}

// MessageRepository defines the interface for message storage
type MessageRepository interface {
	// Append atomically assigns the next sequence number and stores the
	// message. The timestamp is clamped so it never precedes the session's
	// last activity, and last activity is advanced to it.
	Append(ctx context.Context, sessionID, body string, sender SenderType, at time.Time) (*Message, error)
	// ListBySession returns the most recent limit messages in transcript
	// order. limit <= 0 returns everything.
	ListBySession(ctx context.Context, sessionID string, limit int) ([]Message, error)
}
