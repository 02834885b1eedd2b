package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/llm"
	"github.com/Rrens/support-chat/internal/presence"
	"github.com/Rrens/support-chat/internal/realtime"
	"github.com/rs/zerolog/log"
)

// ErrRouterClosed is returned once Shutdown has been called.
var ErrRouterClosed = errors.New("conversation router is shutting down")

const (
	defaultLaneIdle      = 30 * time.Second
	defaultLaneBuffer    = 64
	defaultHistoryWindow = 20
	shutdownPoll         = 10 * time.Millisecond
)

// Responder produces assistant replies.
type Responder interface {
	Generate(ctx context.Context, history []llm.Turn, cfg domain.AssistantConfig) (*llm.Response, error)
}

// AssistantConfigSource returns the current assistant configuration.
type AssistantConfigSource interface {
	Get(ctx context.Context) (*domain.AssistantConfig, error)
}

// RouterOptions tunes the ConversationRouter.
type RouterOptions struct {
	// HandoffPhrases are matched case-insensitively anywhere in a visitor
	// message. An empty list disables phrase matching.
	HandoffPhrases []string
	LaneIdle       time.Duration
	LaneBuffer     int
	HistoryWindow  int
	TypingWindow   time.Duration
}

// lane serializes every event of one session. pending and inflight are
// guarded by the router's mutex.
type lane struct {
	jobs     chan func()
	pending  int
	inflight int
}

// ConversationRouter decides who answers each visitor message and fans
// events out to live subscribers. Each session has its own processing lane;
// sessions are processed concurrently.
type ConversationRouter struct {
	sessions  domain.SessionRepository
	messages  domain.MessageRepository
	assistant AssistantConfigSource
	responder Responder
	hub       *realtime.Hub
	presence  *presence.Tracker
	opts      RouterOptions
	phrases   []string

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	lanes  map[string]*lane
	closed bool
	stop   chan struct{}
	wg     sync.WaitGroup

	now func() time.Time
}

// NewConversationRouter creates a router. It owns a presence tracker whose
// typing expiries are broadcast through the session lanes.
func NewConversationRouter(
	sessions domain.SessionRepository,
	messages domain.MessageRepository,
	assistant AssistantConfigSource,
	responder Responder,
	hub *realtime.Hub,
	opts RouterOptions,
) *ConversationRouter {
	if opts.LaneIdle <= 0 {
		opts.LaneIdle = defaultLaneIdle
	}
	if opts.LaneBuffer <= 0 {
		opts.LaneBuffer = defaultLaneBuffer
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = defaultHistoryWindow
	}

	phrases := make([]string, 0, len(opts.HandoffPhrases))
	for _, p := range opts.HandoffPhrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			phrases = append(phrases, p)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &ConversationRouter{
		sessions:  sessions,
		messages:  messages,
		assistant: assistant,
		responder: responder,
		hub:       hub,
		opts:      opts,
		phrases:   phrases,
		ctx:       ctx,
		cancel:    cancel,
		lanes:     make(map[string]*lane),
		stop:      make(chan struct{}),
		now:       func() time.Time { return time.Now().UTC() },
	}
	r.presence = presence.NewTracker(opts.TypingWindow, r.onTypingExpired)
	return r
}

// Presence returns the current presence flags of a session.
func (r *ConversationRouter) Presence(sessionID string) presence.State {
	return r.presence.Snapshot(sessionID)
}

// VisitorConnect subscribes a visitor connection to its session. The session
// must have been created beforehand. Connecting twice is harmless.
func (r *ConversationRouter) VisitorConnect(ctx context.Context, sub realtime.Subscriber, sessionID string) error {
	if err := requireSessionID(sessionID); err != nil {
		return err
	}

	return r.do(ctx, sessionID, func(ctx context.Context) error {
		if _, err := r.sessions.Get(ctx, sessionID); err != nil {
			return domain.WrapStore("get session", err)
		}

		if r.hub.Join(sub, sessionID) {
			r.hub.BroadcastGlobal(listUpdate(sessionID))
			log.Debug().Str("session_id", sessionID).Str("subscriber", sub.ID()).Msg("Visitor connected")
		}
		return nil
	})
}

// VisitorMessage persists a visitor message, broadcasts it and routes it to
// the assistant or to a human. sentAt is the visitor's clock; the stored
// timestamp is assigned by the server. Operators that have not joined the
// session receive the message on the global channel. A failed handoff is
// returned even though the message itself was stored.
func (r *ConversationRouter) VisitorMessage(ctx context.Context, sessionID, body string, sentAt time.Time) (*domain.Message, error) {
	body, err := validateMessage(sessionID, body)
	if err != nil {
		return nil, err
	}

	var msg *domain.Message
	err = r.do(ctx, sessionID, func(ctx context.Context) error {
		session, err := r.sessions.Get(ctx, sessionID)
		if err != nil {
			return domain.WrapStore("get session", err)
		}

		now := r.now()
		logClockSkew(sessionID, sentAt, now)

		stored, err := r.messages.Append(ctx, sessionID, body, domain.SenderVisitor, now)
		if err != nil {
			return domain.WrapStore("append message", err)
		}
		msg = stored

		if r.presence.SetTyping(sessionID, presence.PartyVisitor, false) {
			r.hub.BroadcastRole(sessionID, realtime.RoleOperator, typingEvent(realtime.EventUserTyping, sessionID, false))
		}

		event := messageEvent(realtime.EventUserMessage, stored)
		r.hub.Broadcast(sessionID, event)
		r.hub.BroadcastOperatorsOutside(sessionID, event)
		r.hub.BroadcastGlobal(listUpdate(sessionID))

		return r.route(ctx, session, stored)
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// route runs inside the session lane after a visitor message is stored.
func (r *ConversationRouter) route(ctx context.Context, session *domain.Session, msg *domain.Message) error {
	if session.HandedOff {
		return nil
	}

	if r.matchesHandoff(msg.Body) {
		log.Info().Str("session_id", session.ID).Msg("Visitor asked for a human")
		return r.handoff(ctx, session.ID)
	}

	cfg, err := r.assistant.Get(ctx)
	if err != nil {
		log.Error().Err(err).Str("session_id", session.ID).Msg("Failed to load assistant config, handing off")
		return r.handoff(ctx, session.ID)
	}

	if !cfg.Enabled {
		return r.handoff(ctx, session.ID)
	}

	r.startGeneration(ctx, session.ID, *cfg)
	return nil
}

func (r *ConversationRouter) matchesHandoff(body string) bool {
	lower := strings.ToLower(body)
	for _, p := range r.phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// handoff marks the session as handed off and alerts every operator. The
// alert is repeated even when the session was already handed off.
func (r *ConversationRouter) handoff(ctx context.Context, sessionID string) error {
	changed, err := r.sessions.MarkHandedOff(ctx, sessionID, r.now())
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to mark session handed off")
		return domain.WrapStore("mark handed off", err)
	}

	r.hub.BroadcastGlobal(realtime.Event{
		Name: realtime.EventHandoffRequested,
		Data: realtime.SessionPayload{SessionID: sessionID},
	})
	if changed {
		log.Info().Str("session_id", sessionID).Msg("Session handed off to operators")
	}
	return nil
}

// startGeneration runs inside the session lane. The provider call happens
// on its own goroutine and its outcome is posted back to the lane.
func (r *ConversationRouter) startGeneration(ctx context.Context, sessionID string, cfg domain.AssistantConfig) {
	if r.presence.SetThinking(sessionID, true) {
		r.hub.Broadcast(sessionID, thinkingEvent(sessionID, true))
	}

	history, err := r.messages.ListBySession(ctx, sessionID, r.opts.HistoryWindow)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to load history for assistant")
		r.clearThinking(sessionID)
		return
	}

	turns := make([]llm.Turn, len(history))
	for i, m := range history {
		turns[i] = llm.Turn{Sender: m.Sender, Body: m.Body}
	}

	l := r.beginInflight(sessionID)
	go func() {
		resp, err := r.responder.Generate(r.ctx, turns, cfg)
		r.complete(sessionID, l, func() { r.finishGeneration(sessionID, resp, err) })
	}()
}

// finishGeneration runs inside the session lane once the provider returns.
func (r *ConversationRouter) finishGeneration(sessionID string, resp *llm.Response, genErr error) {
	defer r.clearThinking(sessionID)

	if genErr != nil {
		event := log.Error()
		if llm.IsConfigError(genErr) {
			event = log.Warn()
		}
		event.Err(genErr).Str("session_id", sessionID).Msg("Assistant reply failed")
		return
	}

	msg, err := r.messages.Append(r.ctx, sessionID, resp.Text, domain.SenderAssistant, r.now())
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to store assistant reply")
		return
	}

	r.hub.Broadcast(sessionID, messageEvent(realtime.EventAIReply, msg))
	r.hub.BroadcastGlobal(listUpdate(sessionID))

	log.Info().
		Str("session_id", sessionID).
		Str("provider", resp.Provider).
		Str("model", resp.Model).
		Int64("latency_ms", resp.LatencyMs).
		Int("tokens", resp.TokensUsed).
		Msg("Assistant replied")
}

func (r *ConversationRouter) clearThinking(sessionID string) {
	if r.presence.SetThinking(sessionID, false) {
		r.hub.Broadcast(sessionID, thinkingEvent(sessionID, false))
	}
}

// OperatorReply persists an operator message. The session is marked handed
// off before the message is stored, so no operator message exists on a
// session the assistant may still answer.
func (r *ConversationRouter) OperatorReply(ctx context.Context, sessionID, body string, sentAt time.Time) (*domain.Message, error) {
	body, err := validateMessage(sessionID, body)
	if err != nil {
		return nil, err
	}

	var msg *domain.Message
	err = r.do(ctx, sessionID, func(ctx context.Context) error {
		if _, err := r.sessions.Get(ctx, sessionID); err != nil {
			return domain.WrapStore("get session", err)
		}

		now := r.now()
		logClockSkew(sessionID, sentAt, now)

		if _, err := r.sessions.MarkHandedOff(ctx, sessionID, now); err != nil {
			return domain.WrapStore("mark handed off", err)
		}

		stored, err := r.messages.Append(ctx, sessionID, body, domain.SenderOperator, now)
		if err != nil {
			return domain.WrapStore("append message", err)
		}
		msg = stored

		if r.presence.SetTyping(sessionID, presence.PartyOperator, false) {
			r.hub.BroadcastRole(sessionID, realtime.RoleVisitor, typingEvent(realtime.EventAdminTyping, sessionID, false))
		}

		r.hub.Broadcast(sessionID, messageEvent(realtime.EventAdminReply, stored))
		r.hub.BroadcastGlobal(listUpdate(sessionID))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// Typing updates a typing flag and tells the other party when it changed.
func (r *ConversationRouter) Typing(ctx context.Context, sessionID string, party presence.Party, isTyping bool) error {
	if err := requireSessionID(sessionID); err != nil {
		return err
	}

	return r.do(ctx, sessionID, func(ctx context.Context) error {
		if _, err := r.sessions.Get(ctx, sessionID); err != nil {
			return domain.WrapStore("get session", err)
		}
		if r.presence.SetTyping(sessionID, party, isTyping) {
			r.broadcastTyping(sessionID, party, isTyping)
		}
		return nil
	})
}

func (r *ConversationRouter) broadcastTyping(sessionID string, party presence.Party, isTyping bool) {
	if party == presence.PartyOperator {
		r.hub.BroadcastRole(sessionID, realtime.RoleVisitor, typingEvent(realtime.EventAdminTyping, sessionID, isTyping))
		return
	}
	r.hub.BroadcastRole(sessionID, realtime.RoleOperator, typingEvent(realtime.EventUserTyping, sessionID, isTyping))
}

// onTypingExpired is called by the presence tracker from a timer goroutine.
func (r *ConversationRouter) onTypingExpired(sessionID string, party presence.Party) {
	err := r.enqueue(sessionID, func() {
		// A newer typing signal may have been processed first.
		st := r.presence.Snapshot(sessionID)
		if (party == presence.PartyVisitor && st.VisitorTyping) || (party == presence.PartyOperator && st.OperatorTyping) {
			return
		}
		r.broadcastTyping(sessionID, party, false)
	})
	if err != nil {
		log.Debug().Err(err).Str("session_id", sessionID).Msg("Dropped typing expiry")
	}
}

// RequestHandoff records an explicit request for a human. Repeated requests
// alert operators again but never undo the handoff.
func (r *ConversationRouter) RequestHandoff(ctx context.Context, sessionID string) error {
	if err := requireSessionID(sessionID); err != nil {
		return err
	}

	return r.do(ctx, sessionID, func(ctx context.Context) error {
		if _, err := r.sessions.Get(ctx, sessionID); err != nil {
			return domain.WrapStore("get session", err)
		}
		return r.handoff(ctx, sessionID)
	})
}

// OperatorJoin subscribes an operator connection to a session and replays
// the session's current presence flags to it.
func (r *ConversationRouter) OperatorJoin(ctx context.Context, sub realtime.Subscriber, sessionID string) error {
	if sub.Role() != realtime.RoleOperator {
		return domain.ErrForbidden
	}
	if err := requireSessionID(sessionID); err != nil {
		return err
	}

	return r.do(ctx, sessionID, func(ctx context.Context) error {
		if _, err := r.sessions.Get(ctx, sessionID); err != nil {
			return domain.WrapStore("get session", err)
		}

		if !r.hub.Join(sub, sessionID) {
			return nil
		}

		st := r.presence.Snapshot(sessionID)
		if st.VisitorTyping {
			sub.Send(typingEvent(realtime.EventUserTyping, sessionID, true))
		}
		if st.AssistantThinking {
			sub.Send(thinkingEvent(sessionID, true))
		}
		return nil
	})
}

// OperatorLeave unsubscribes an operator connection from a session.
func (r *ConversationRouter) OperatorLeave(ctx context.Context, sub realtime.Subscriber, sessionID string) error {
	if err := requireSessionID(sessionID); err != nil {
		return err
	}
	r.hub.Leave(sub, sessionID)
	return nil
}

// Disconnect removes a connection from every group. Sessions, stored
// messages and in-flight replies are unaffected.
func (r *ConversationRouter) Disconnect(sub realtime.Subscriber) {
	for _, sessionID := range r.hub.LeaveAll(sub) {
		if r.hub.Members(sessionID) == 0 {
			r.presence.Forget(sessionID)
		}
	}
}

// Shutdown stops accepting events and waits for queued events and
// in-flight assistant replies to finish. When ctx expires first, in-flight
// provider calls are cancelled.
func (r *ConversationRouter) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.stop)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	defer r.presence.Stop()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		return fmt.Errorf("router shutdown: %w", ctx.Err())
	}
}

// ActiveLanes returns the number of sessions with a running lane.
func (r *ConversationRouter) ActiveLanes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lanes)
}

// do runs fn in the session's lane and waits for its result. The caller's
// ctx only bounds the wait; fn itself runs with the router's context so a
// disconnecting client cannot abort persistence.
func (r *ConversationRouter) do(ctx context.Context, sessionID string, fn func(ctx context.Context) error) error {
	done := make(chan error, 1)
	if err := r.enqueue(sessionID, func() { done <- fn(r.ctx) }); err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *ConversationRouter) enqueue(sessionID string, job func()) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRouterClosed
	}
	l := r.laneLocked(sessionID)
	l.pending++
	r.mu.Unlock()

	l.jobs <- job
	return nil
}

func (r *ConversationRouter) laneLocked(sessionID string) *lane {
	l, ok := r.lanes[sessionID]
	if !ok {
		l = &lane{jobs: make(chan func(), r.opts.LaneBuffer)}
		r.lanes[sessionID] = l
		r.wg.Add(1)
		go r.runLane(sessionID, l)
	}
	return l
}

// beginInflight is called from inside a lane, so the lane exists.
func (r *ConversationRouter) beginInflight(sessionID string) *lane {
	r.mu.Lock()
	defer r.mu.Unlock()
	l := r.lanes[sessionID]
	l.inflight++
	return l
}

// complete posts the outcome of an in-flight call back to its lane. It is
// accepted even while shutting down.
func (r *ConversationRouter) complete(sessionID string, l *lane, job func()) {
	r.mu.Lock()
	l.pending++
	l.inflight--
	r.mu.Unlock()

	l.jobs <- job
}

func (r *ConversationRouter) runLane(sessionID string, l *lane) {
	defer r.wg.Done()

	wait := r.opts.LaneIdle
	idle := time.NewTimer(wait)
	defer idle.Stop()

	stop := r.stop
	for {
		select {
		case job := <-l.jobs:
			r.mu.Lock()
			l.pending--
			r.mu.Unlock()

			r.runJob(sessionID, job)
			idle.Reset(wait)

		case <-idle.C:
			if r.retire(sessionID, l) {
				return
			}
			idle.Reset(wait)

		case <-stop:
			stop = nil
			wait = shutdownPoll
			idle.Reset(0)
		}
	}
}

func (r *ConversationRouter) runJob(sessionID string, job func()) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Str("session_id", sessionID).Msg("Recovered panic in session lane")
		}
	}()
	job()
}

func (r *ConversationRouter) retire(sessionID string, l *lane) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l.pending > 0 || l.inflight > 0 {
		return false
	}
	if r.lanes[sessionID] == l {
		delete(r.lanes, sessionID)
	}
	return true
}

func requireSessionID(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return domain.NewValidationError("sessionId", "is required")
	}
	return nil
}

func validateMessage(sessionID, body string) (string, error) {
	if err := requireSessionID(sessionID); err != nil {
		return "", err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return "", &domain.ValidationError{Field: "message", Reason: "must not be empty", Err: domain.ErrEmptyMessage}
	}
	return body, nil
}

func logClockSkew(sessionID string, sentAt, now time.Time) {
	if sentAt.IsZero() {
		return
	}
	if skew := now.Sub(sentAt); skew > time.Minute || skew < -time.Minute {
		log.Debug().Str("session_id", sessionID).Dur("skew", skew).Msg("Client clock differs from server")
	}
}

func messageEvent(name string, msg *domain.Message) realtime.Event {
	return realtime.Event{
		Name: name,
		Data: realtime.MessagePayload{
			ID:         msg.ID,
			SessionID:  msg.SessionID,
			Message:    msg.Body,
			SenderType: string(msg.Sender),
			Timestamp:  msg.Timestamp,
		},
	}
}

func typingEvent(name, sessionID string, isTyping bool) realtime.Event {
	return realtime.Event{Name: name, Data: realtime.TypingPayload{SessionID: sessionID, IsTyping: isTyping}}
}

func thinkingEvent(sessionID string, isThinking bool) realtime.Event {
	return realtime.Event{Name: realtime.EventAIThinking, Data: realtime.ThinkingPayload{SessionID: sessionID, IsThinking: isThinking}}
}

func listUpdate(sessionID string) realtime.Event {
	return realtime.Event{Name: realtime.EventChatListUpdate, Data: realtime.SessionPayload{SessionID: sessionID}}
}
