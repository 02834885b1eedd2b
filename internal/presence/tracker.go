package presence

import (
	"sync"
	"time"
)

// Party identifies who is typing in a session.
type Party string

const (
	PartyVisitor  Party = "visitor"
	PartyOperator Party = "operator"
)

// DefaultTypingWindow is how long a typing flag stays set without a refresh.
const DefaultTypingWindow = 2 * time.Second

// State is a point-in-time view of a session's presence flags.
type State struct {
	VisitorTyping     bool `json:"visitorTyping"`
	OperatorTyping    bool `json:"operatorTyping"`
	AssistantThinking bool `json:"assistantThinking"`
}

type typingFlag struct {
	on    bool
	gen   uint64
	timer *time.Timer
}

type sessionState struct {
	visitor  typingFlag
	operator typingFlag
	thinking bool
}

func (s *sessionState) flag(party Party) *typingFlag {
	if party == PartyOperator {
		return &s.operator
	}
	return &s.visitor
}

func (s *sessionState) idle() bool {
	return !s.visitor.on && !s.operator.on && !s.thinking
}

// Tracker holds ephemeral typing and thinking state per session. Nothing here
// is persisted.
type Tracker struct {
	mu       sync.Mutex
	window   time.Duration
	onExpire func(sessionID string, party Party)
	sessions map[string]*sessionState
	stopped  bool
}

// NewTracker creates a tracker. onExpire is called, outside the tracker's
// lock, whenever a typing flag clears because its window elapsed.
func NewTracker(window time.Duration, onExpire func(sessionID string, party Party)) *Tracker {
	if window <= 0 {
		window = DefaultTypingWindow
	}
	return &Tracker{
		window:   window,
		onExpire: onExpire,
		sessions: make(map[string]*sessionState),
	}
}

// Window returns the typing expiry window.
func (t *Tracker) Window() time.Duration {
	return t.window
}

func (t *Tracker) session(sessionID string) *sessionState {
	s, ok := t.sessions[sessionID]
	if !ok {
		s = &sessionState{}
		t.sessions[sessionID] = s
	}
	return s
}

// SetTyping sets or clears a typing flag and reports whether its value
// changed. Setting an already set flag restarts the expiry window.
func (t *Tracker) SetTyping(sessionID string, party Party, isTyping bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return false
	}

	f := t.session(sessionID).flag(party)
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.gen++

	changed := f.on != isTyping
	f.on = isTyping
	if isTyping {
		gen := f.gen
		f.timer = time.AfterFunc(t.window, func() { t.expire(sessionID, party, gen) })
	}
	return changed
}

func (t *Tracker) expire(sessionID string, party Party, gen uint64) {
	t.mu.Lock()
	s, ok := t.sessions[sessionID]
	if !ok || t.stopped {
		t.mu.Unlock()
		return
	}
	f := s.flag(party)
	// A refresh or explicit clear bumped the generation after this timer
	// was armed.
	if f.gen != gen || !f.on {
		t.mu.Unlock()
		return
	}
	f.on = false
	f.timer = nil
	t.mu.Unlock()

	if t.onExpire != nil {
		t.onExpire(sessionID, party)
	}
}

// SetThinking marks the start or end of an assistant generation and reports
// whether the flag changed. Every outcome clears the flag, even while an
// overlapping generation is still running.
func (t *Tracker) SetThinking(sessionID string, thinking bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return false
	}

	s := t.session(sessionID)
	changed := s.thinking != thinking
	s.thinking = thinking
	return changed
}

// Snapshot returns the current flags for a session.
func (t *Tracker) Snapshot(sessionID string) State {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[sessionID]
	if !ok {
		return State{}
	}
	return State{
		VisitorTyping:     s.visitor.on,
		OperatorTyping:    s.operator.on,
		AssistantThinking: s.thinking,
	}
}

// Forget drops the session's entry if nothing is currently set.
func (t *Tracker) Forget(sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[sessionID]
	if !ok || !s.idle() {
		return false
	}
	delete(t.sessions, sessionID)
	return true
}

// Stop cancels every pending timer. Expiry callbacks do not fire afterwards.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	for _, s := range t.sessions {
		for _, f := range []*typingFlag{&s.visitor, &s.operator} {
			if f.timer != nil {
				f.timer.Stop()
				f.timer = nil
			}
		}
	}
	t.sessions = make(map[string]*sessionState)
}
