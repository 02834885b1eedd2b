package service

import (
	"context"
	"sync"
	"time"

	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/llm"
	"github.com/Rrens/support-chat/internal/realtime"
	"github.com/stretchr/testify/mock"
)

// MockResponder mocks the Responder interface
type MockResponder struct {
	mock.Mock
}

func (m *MockResponder) Generate(ctx context.Context, history []llm.Turn, cfg domain.AssistantConfig) (*llm.Response, error) {
	args := m.Called(ctx, history, cfg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.Response), args.Error(1)
}

// MockSessionRepository mocks the SessionRepository interface
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockSessionRepository) List(ctx context.Context, limit int) ([]domain.Session, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Session), args.Error(1)
}

func (m *MockSessionRepository) MarkHandedOff(ctx context.Context, id string, at time.Time) (bool, error) {
	args := m.Called(ctx, id, at)
	return args.Bool(0), args.Error(1)
}

// MockAssistantConfigRepository mocks the AssistantConfigRepository interface
type MockAssistantConfigRepository struct {
	mock.Mock
}

func (m *MockAssistantConfigRepository) Get(ctx context.Context) (*domain.AssistantConfig, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AssistantConfig), args.Error(1)
}

func (m *MockAssistantConfigRepository) Save(ctx context.Context, cfg *domain.AssistantConfig) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

// MockConfigCache mocks the ConfigCache interface
type MockConfigCache struct {
	mock.Mock
}

func (m *MockConfigCache) Get(ctx context.Context) (*domain.AssistantConfig, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AssistantConfig), args.Error(1)
}

func (m *MockConfigCache) Set(ctx context.Context, cfg *domain.AssistantConfig) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

func (m *MockConfigCache) Invalidate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// recorder is a realtime.Subscriber that keeps every event it is sent.
type recorder struct {
	id   string
	role realtime.Role

	mu     sync.Mutex
	events []realtime.Event
}

func newRecorder(id string, role realtime.Role) *recorder {
	return &recorder{id: id, role: role}
}

func (r *recorder) ID() string          { return r.id }
func (r *recorder) Role() realtime.Role { return r.role }

func (r *recorder) Send(ev realtime.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return true
}

func (r *recorder) all() []realtime.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]realtime.Event(nil), r.events...)
}

func (r *recorder) names() []string {
	events := r.all()
	names := make([]string, len(events))
	for i, ev := range events {
		names[i] = ev.Name
	}
	return names
}

func (r *recorder) count(name string) int {
	n := 0
	for _, ev := range r.all() {
		if ev.Name == name {
			n++
		}
	}
	return n
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// thinkingStates returns the isThinking values of ai-thinking events in order.
func (r *recorder) thinkingStates() []bool {
	var states []bool
	for _, ev := range r.all() {
		if p, ok := ev.Data.(realtime.ThinkingPayload); ok {
			states = append(states, p.IsThinking)
		}
	}
	return states
}

// typingStates returns the isTyping values of events with the given name.
func (r *recorder) typingStates(name string) []bool {
	var states []bool
	for _, ev := range r.all() {
		if ev.Name != name {
			continue
		}
		if p, ok := ev.Data.(realtime.TypingPayload); ok {
			states = append(states, p.IsTyping)
		}
	}
	return states
}

// funcResponder adapts a function to the Responder interface.
type funcResponder func(ctx context.Context, history []llm.Turn, cfg domain.AssistantConfig) (*llm.Response, error)

func (f funcResponder) Generate(ctx context.Context, history []llm.Turn, cfg domain.AssistantConfig) (*llm.Response, error) {
	return f(ctx, history, cfg)
}

// staticConfig is an AssistantConfigSource returning a fixed config.
type staticConfig struct {
	cfg domain.AssistantConfig
	err error
}

func (s staticConfig) Get(ctx context.Context) (*domain.AssistantConfig, error) {
	if s.err != nil {
		return nil, s.err
	}
	cfg := s.cfg
	return &cfg, nil
}
