package realtime

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Role distinguishes visitor connections from operator connections.
type Role string

const (
	RoleVisitor  Role = "visitor"
	RoleOperator Role = "operator"
)

// Subscriber is one live connection. Send must not block; it reports false
// when the event could not be queued.
type Subscriber interface {
	ID() string
	Role() Role
	Send(ev Event) bool
}

// Hub tracks session groups and the operator group. Delivery is best effort
// and at most once per subscriber per broadcast.
type Hub struct {
	mu        sync.RWMutex
	sessions  map[string]map[string]Subscriber
	joined    map[string]map[string]struct{}
	operators map[string]Subscriber
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		sessions:  make(map[string]map[string]Subscriber),
		joined:    make(map[string]map[string]struct{}),
		operators: make(map[string]Subscriber),
	}
}

// Join adds sub to a session group. Joining twice is a no-op; it reports
// whether the membership is new.
func (h *Hub) Join(sub Subscriber, sessionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	group, ok := h.sessions[sessionID]
	if !ok {
		group = make(map[string]Subscriber)
		h.sessions[sessionID] = group
	}
	if _, exists := group[sub.ID()]; exists {
		return false
	}
	group[sub.ID()] = sub

	if h.joined[sub.ID()] == nil {
		h.joined[sub.ID()] = make(map[string]struct{})
	}
	h.joined[sub.ID()][sessionID] = struct{}{}
	return true
}

// Leave removes sub from a session group.
func (h *Hub) Leave(sub Subscriber, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(sub.ID(), sessionID)
}

func (h *Hub) leaveLocked(subID, sessionID string) {
	if group, ok := h.sessions[sessionID]; ok {
		delete(group, subID)
		if len(group) == 0 {
			delete(h.sessions, sessionID)
		}
	}
	if joined, ok := h.joined[subID]; ok {
		delete(joined, sessionID)
		if len(joined) == 0 {
			delete(h.joined, subID)
		}
	}
}

// JoinOperators adds sub to the global operator group.
func (h *Hub) JoinOperators(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.operators[sub.ID()] = sub
}

// LeaveAll removes sub from every group. It returns the sessions it had
// joined.
func (h *Hub) LeaveAll(sub Subscriber) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.operators, sub.ID())

	var left []string
	for sessionID := range h.joined[sub.ID()] {
		left = append(left, sessionID)
	}
	for _, sessionID := range left {
		h.leaveLocked(sub.ID(), sessionID)
	}
	return left
}

// IsMember reports whether sub has joined the session group.
func (h *Hub) IsMember(sub Subscriber, sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.sessions[sessionID][sub.ID()]
	return ok
}

// Members returns the number of subscribers in a session group.
func (h *Hub) Members(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// OperatorCount returns the number of connected operators.
func (h *Hub) OperatorCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.operators)
}

// Broadcast sends ev to every subscriber of the session.
func (h *Hub) Broadcast(sessionID string, ev Event) int {
	return h.deliver(h.sessionTargets(sessionID, ""), ev)
}

// BroadcastRole sends ev to the session's subscribers that have role.
func (h *Hub) BroadcastRole(sessionID string, role Role, ev Event) int {
	return h.deliver(h.sessionTargets(sessionID, role), ev)
}

// BroadcastGlobal sends ev to every connected operator.
func (h *Hub) BroadcastGlobal(ev Event) int {
	h.mu.RLock()
	targets := make([]Subscriber, 0, len(h.operators))
	for _, sub := range h.operators {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	return h.deliver(targets, ev)
}

// BroadcastOperatorsOutside sends ev to connected operators that have not
// joined the session. Combined with Broadcast, each operator gets ev once.
func (h *Hub) BroadcastOperatorsOutside(sessionID string, ev Event) int {
	h.mu.RLock()
	group := h.sessions[sessionID]
	targets := make([]Subscriber, 0, len(h.operators))
	for id, sub := range h.operators {
		if _, joined := group[id]; !joined {
			targets = append(targets, sub)
		}
	}
	h.mu.RUnlock()

	return h.deliver(targets, ev)
}

func (h *Hub) sessionTargets(sessionID string, role Role) []Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()

	group := h.sessions[sessionID]
	targets := make([]Subscriber, 0, len(group))
	for _, sub := range group {
		if role == "" || sub.Role() == role {
			targets = append(targets, sub)
		}
	}
	return targets
}

func (h *Hub) deliver(targets []Subscriber, ev Event) int {
	sent := 0
	for _, sub := range targets {
		if sub.Send(ev) {
			sent++
			continue
		}
		log.Warn().
			Str("subscriber", sub.ID()).
			Str("event", ev.Name).
			Msg("dropping event for slow subscriber")
	}
	return sent
}
