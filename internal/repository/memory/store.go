package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Rrens/support-chat/internal/domain"
	"github.com/google/uuid"
)

var errDuplicateEmail = errors.New("email already registered")

type sessionRecord struct {
	session  domain.Session
	messages []domain.Message
}

// Store keeps sessions, transcripts, the assistant config and operators in
// process memory. All repositories handed out by a Store share its lock.
type Store struct {
	mu        sync.RWMutex
	sessions  map[string]*sessionRecord
	assistant *domain.AssistantConfig
	operators map[string]domain.Operator
}

// New creates an empty store.
func New() *Store {
	return &Store{
		sessions:  make(map[string]*sessionRecord),
		operators: make(map[string]domain.Operator),
	}
}

func (s *Store) Sessions() *SessionRepository           { return &SessionRepository{s} }
func (s *Store) Messages() *MessageRepository           { return &MessageRepository{s} }
func (s *Store) Assistant() *AssistantConfigRepository { return &AssistantConfigRepository{s} }
func (s *Store) Operators() *OperatorRepository         { return &OperatorRepository{s} }

// SessionRepository implements domain.SessionRepository
type SessionRepository struct{ s *Store }

func (r *SessionRepository) Create(ctx context.Context, session *domain.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.sessions[session.ID]; ok {
		return domain.ErrSessionExists
	}
	rec := &sessionRecord{session: *session}
	rec.session.Messages = nil
	rec.session.LastMessage = nil
	r.s.sessions[session.ID] = rec
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rec, ok := r.s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	out := rec.snapshot()
	return &out, nil
}

func (r *SessionRepository) List(ctx context.Context, limit int) ([]domain.Session, error) {
	r.s.mu.RLock()
	out := make([]domain.Session, 0, len(r.s.sessions))
	for _, rec := range r.s.sessions {
		out = append(out, rec.snapshot())
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].LastActive.Equal(out[j].LastActive) {
			return strings.Compare(out[i].ID, out[j].ID) < 0
		}
		return out[i].LastActive.After(out[j].LastActive)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *SessionRepository) MarkHandedOff(ctx context.Context, id string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.sessions[id]
	if !ok {
		return false, domain.ErrSessionNotFound
	}
	if rec.session.HandedOff {
		return false, nil
	}
	at = at.UTC()
	rec.session.HandedOff = true
	rec.session.HandoffRequestedAt = &at
	return true, nil
}

func (rec *sessionRecord) snapshot() domain.Session {
	out := rec.session
	if n := len(rec.messages); n > 0 {
		last := rec.messages[n-1]
		out.LastMessage = &last
	}
	return out
}

// MessageRepository implements domain.MessageRepository
type MessageRepository struct{ s *Store }

func (r *MessageRepository) Append(ctx context.Context, sessionID, body string, sender domain.SenderType, at time.Time) (*domain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	at = at.UTC()
	if at.Before(rec.session.LastActive) {
		at = rec.session.LastActive
	}

	msg := domain.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Body:      body,
		Sender:    sender,
		Seq:       int64(len(rec.messages)) + 1,
		Timestamp: at,
	}
	rec.messages = append(rec.messages, msg)
	rec.session.LastActive = at
	rec.session.MessageCount = msg.Seq

	return &msg, nil
}

func (r *MessageRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rec, ok := r.s.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	msgs := rec.messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// AssistantConfigRepository implements domain.AssistantConfigRepository
type AssistantConfigRepository struct{ s *Store }

func (r *AssistantConfigRepository) Get(ctx context.Context) (*domain.AssistantConfig, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if r.s.assistant == nil {
		return nil, nil
	}
	cfg := *r.s.assistant
	return &cfg, nil
}

func (r *AssistantConfigRepository) Save(ctx context.Context, cfg *domain.AssistantConfig) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	saved := *cfg
	r.s.assistant = &saved
	return nil
}

// OperatorRepository implements domain.OperatorRepository
type OperatorRepository struct{ s *Store }

func (r *OperatorRepository) Create(ctx context.Context, op *domain.Operator) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := strings.ToLower(op.Email)
	if _, ok := r.s.operators[key]; ok {
		return &domain.StoreError{Op: "create operator", Err: errDuplicateEmail}
	}
	r.s.operators[key] = *op
	return nil
}

func (r *OperatorRepository) GetByEmail(ctx context.Context, email string) (*domain.Operator, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	op, ok := r.s.operators[strings.ToLower(email)]
	if !ok {
		return nil, domain.ErrOperatorNotFound
	}
	return &op, nil
}
