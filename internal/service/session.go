package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Rrens/support-chat/internal/domain"
)

const defaultListLimit = 200

// SessionService is the session-creation and history path. Messages are
// only ever written through the ConversationRouter.
type SessionService struct {
	sessions domain.SessionRepository
	messages domain.MessageRepository
}

// NewSessionService creates a new session service
func NewSessionService(sessions domain.SessionRepository, messages domain.MessageRepository) *SessionService {
	return &SessionService{
		sessions: sessions,
		messages: messages,
	}
}

// Create registers a visitor session. Creating an existing id returns the
// stored session with created set to false.
func (s *SessionService) Create(ctx context.Context, input domain.SessionCreate) (*domain.Session, bool, error) {
	id := strings.TrimSpace(input.SessionID)
	if id == "" {
		return nil, false, domain.NewValidationError("sessionId", "is required")
	}

	now := time.Now().UTC()
	session := &domain.Session{
		ID:         id,
		IPAddress:  input.IPAddress,
		CreatedAt:  now,
		LastActive: now,
	}

	err := s.sessions.Create(ctx, session)
	if errors.Is(err, domain.ErrSessionExists) {
		existing, err := s.sessions.Get(ctx, id)
		if err != nil {
			return nil, false, domain.WrapStore("get session", err)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, domain.WrapStore("create session", err)
	}

	return session, true, nil
}

// Get returns a session with its full transcript
func (s *SessionService) Get(ctx context.Context, id string) (*domain.Session, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, domain.WrapStore("get session", err)
	}

	msgs, err := s.messages.ListBySession(ctx, id, 0)
	if err != nil {
		return nil, domain.WrapStore("list messages", err)
	}
	session.Messages = msgs
	if n := len(msgs); n > 0 {
		session.LastMessage = &msgs[n-1]
	}

	return session, nil
}

// List returns sessions, most recently active first
func (s *SessionService) List(ctx context.Context, limit int) ([]domain.Session, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	sessions, err := s.sessions.List(ctx, limit)
	if err != nil {
		return nil, domain.WrapStore("list sessions", err)
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	return sessions, nil
}

// Messages returns the transcript of a session
func (s *SessionService) Messages(ctx context.Context, id string) ([]domain.Message, error) {
	if _, err := s.sessions.Get(ctx, id); err != nil {
		return nil, domain.WrapStore("get session", err)
	}

	msgs, err := s.messages.ListBySession(ctx, id, 0)
	if err != nil {
		return nil, domain.WrapStore("list messages", err)
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return msgs, nil
}
