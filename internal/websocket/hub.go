// Herald - Real-Time Message Center and Notification Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package websocket

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/tomtom215/herald/internal/logging"
	"github.com/tomtom215/herald/internal/metrics"
)

// ErrHubClosed is returned by Join once the hub has shut down.
// A join failure is fatal to admission; the caller must close the connection.
var ErrHubClosed = errors.New("hub is closed")

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled indicates the parent context was canceled.
	// This is the normal graceful shutdown path (e.g., SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// groupFrame is one payload addressed to one group.
type groupFrame struct {
	group   string
	payload []byte
}

// Hub maintains the group registry and delivers frames to member sessions.
//
// Join, Leave, and RemoveSession are synchronous and concurrency-safe;
// SendToGroup enqueues onto the run loop, which RunWithContext drains.
type Hub struct {
	mu       sync.RWMutex
	groups   map[string]map[*Session]bool
	sessions map[*Session]bool
	closed   bool

	frames chan groupFrame
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		groups:   make(map[string]map[*Session]bool),
		sessions: make(map[*Session]bool),
		frames:   make(chan groupFrame, 256),
	}
}

// Join adds a session to a group. Joining a group the session is already
// in is a no-op. Returns ErrHubClosed after shutdown.
func (h *Hub) Join(group string, s *Session) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHubClosed
	}

	members, ok := h.groups[group]
	if !ok {
		members = make(map[*Session]bool)
		h.groups[group] = members
		metrics.RegistryGroups.Inc()
	}
	members[s] = true
	h.sessions[s] = true
	metrics.WSConnections.Set(float64(len(h.sessions)))

	logging.Debug().
		Str("group", group).
		Uint64("session", s.id).
		Int("members", len(members)).
		Msg("session joined group")

	return nil
}

// Leave removes a session from a group. Leaving a group the session is not
// in is a no-op, including leaves after shutdown.
func (h *Hub) Leave(group string, s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(group, s)
}

// leaveLocked removes a session from one group (must hold h.mu).
func (h *Hub) leaveLocked(group string, s *Session) {
	members, ok := h.groups[group]
	if !ok {
		return
	}
	if !members[s] {
		return
	}
	delete(members, s)
	if len(members) == 0 {
		delete(h.groups, group)
		metrics.RegistryGroups.Dec()
	}
}

// RemoveSession detaches a session from every group, closes its outbound
// queue, and forgets it. Safe to call more than once; only the first call
// closes the queue.
func (h *Hub) RemoveSession(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeSessionLocked(s)
}

func (h *Hub) removeSessionLocked(s *Session) {
	if !h.sessions[s] {
		return
	}
	for group, members := range h.groups {
		if members[s] {
			h.leaveLocked(group, s)
		}
	}
	delete(h.sessions, s)
	s.closeSend()
	metrics.WSConnections.Set(float64(len(h.sessions)))

	logging.Info().
		Uint64("session", s.id).
		Int64("user_id", s.userID).
		Int("total_sessions", len(h.sessions)).
		Msg("websocket session disconnected")
}

// SendToGroup enqueues a payload for every session in the group.
// The payload must be a complete JSON frame. Delivery is asynchronous and
// best-effort; if the hub's queue is full the frame is dropped.
func (h *Hub) SendToGroup(group string, payload []byte) {
	select {
	case h.frames <- groupFrame{group: group, payload: payload}:
	default:
		metrics.WSMessagesDropped.Inc()
		logging.Warn().Str("group", group).Msg("frame queue full, dropping group send")
	}
}

// RunWithContext runs the delivery loop until the context is canceled.
// This method is designed for use with suture supervision.
//
// When the context is canceled all sessions are closed and ctx.Err() is
// returned, so the hub can be restarted by a supervisor without leaving
// orphaned connections.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		// Shutdown has priority over pending frames.
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case frame := <-h.frames:
			h.deliver(frame)
		}
	}
}

// deliver sends a frame to every member of its group in a deterministic
// order. Sessions whose outbound queue is full are treated as dead and
// removed.
func (h *Hub) deliver(frame groupFrame) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.groups[frame.group]
	if !ok {
		return
	}

	// Sort by session ID for deterministic delivery order.
	sessions := make([]*Session, 0, len(members))
	for s := range members {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].id < sessions[j].id
	})

	var toRemove []*Session
	for _, s := range sessions {
		select {
		case s.send <- frame.payload:
			metrics.WSMessagesSent.Inc()
		default:
			// Queue full: slow or stuck client.
			toRemove = append(toRemove, s)
		}
	}

	for _, s := range toRemove {
		metrics.WSMessagesDropped.Inc()
		logging.Warn().
			Uint64("session", s.id).
			Int64("user_id", s.userID).
			Str("group", frame.group).
			Msg("outbound queue full, removing session")
		h.removeSessionLocked(s)
	}
}

// shutdown closes all sessions and marks the hub closed.
func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	count := len(h.sessions)
	sessions := make([]*Session, 0, count)
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].id < sessions[j].id
	})
	for _, s := range sessions {
		h.removeSessionLocked(s)
	}

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(shutdownReason(ctx))).
		Int("sessions_closed", count).
		Msg("websocket hub stopped")
}

// shutdownReason determines the shutdown reason from the context error.
func shutdownReason(ctx context.Context) ShutdownReason {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// SessionCount returns the number of live sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// GroupCount returns the number of non-empty groups.
func (h *Hub) GroupCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups)
}

// GroupSize returns the number of sessions in a group.
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}
