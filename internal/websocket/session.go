// Herald - Real-Time Message Center and Notification Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package websocket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/herald/internal/logging"
	"github.com/tomtom215/herald/internal/metrics"
	"github.com/tomtom215/herald/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024 // Inbound frames are small acknowledgements
)

// sessionIDCounter generates unique, monotonically increasing session IDs.
// IDs give the hub a stable sort key for deterministic delivery order.
var sessionIDCounter atomic.Uint64

// ReceiveHandler is invoked for each inbound acknowledgement frame.
// The hub and pumps never block on it; implementations own their timeouts.
type ReceiveHandler func(ctx context.Context, userID, messageID int64)

// receiveFrame is the only inbound frame shape clients send: an ack that a
// stored message was received, which triggers a re-broadcast to its
// recipients.
type receiveFrame struct {
	MessageID int64 `json:"message_id"`
}

// Session is one authenticated websocket connection, a middleman between
// the transport and the hub.
type Session struct {
	id       uint64
	userID   int64
	username string
	hub      *Hub
	conn     *websocket.Conn

	// sendMu guards send against an Enqueue racing the close in closeSend.
	sendMu     sync.Mutex
	send       chan []byte
	sendClosed bool

	onReceive ReceiveHandler
}

// NewSession creates a session for an authenticated user.
// The sendBuffer bounds the outbound queue; when it overflows the hub
// removes the session.
func NewSession(hub *Hub, conn *websocket.Conn, userID int64, username string, sendBuffer int, onReceive ReceiveHandler) *Session {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	return &Session{
		id:        sessionIDCounter.Add(1),
		userID:    userID,
		username:  username,
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		onReceive: onReceive,
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() uint64 {
	return s.id
}

// UserID returns the authenticated user's ID.
func (s *Session) UserID() int64 {
	return s.userID
}

// Group returns the channel group this session belongs to.
func (s *Session) Group() string {
	return models.GroupName(s.userID)
}

// Enqueue places a frame on the session's outbound queue without blocking.
// Returns false if the queue is full or already closed by the hub.
func (s *Session) Enqueue(payload []byte) bool {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.sendClosed {
		return false
	}
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

// closeSend closes the outbound queue exactly once. Called by the hub when
// the session is removed; writePump exits when the queue closes.
func (s *Session) closeSend() {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.sendClosed {
		return
	}
	s.sendClosed = true
	close(s.send)
}

// Start begins the read and write pumps. Frames enqueued before the session
// joined its group drain first, in order, ahead of any forwarded push.
func (s *Session) Start() {
	go s.writePump()
	go s.readPump()
}

// readPump consumes inbound frames until the connection errors or closes.
// Teardown is idempotent: the hub removal and transport close suppress
// secondary errors.
func (s *Session) readPump() {
	defer func() {
		s.hub.RemoveSession(s)
		_ = s.conn.Close() // best-effort cleanup
	}()

	s.conn.SetReadLimit(maxMessageSize)
	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Uint64("session", s.id).Msg("failed to set read deadline")
		return
	}

	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				metrics.WSErrors.WithLabelValues("read").Inc()
				logging.Warn().Err(err).Uint64("session", s.id).Msg("unexpected websocket close")
			}
			return
		}
		metrics.WSMessagesReceived.Inc()

		var frame receiveFrame
		if err := json.Unmarshal(data, &frame); err != nil || frame.MessageID == 0 {
			logging.Debug().
				Uint64("session", s.id).
				Int64("user_id", s.userID).
				Msg("ignoring malformed inbound frame")
			continue
		}

		if s.onReceive != nil {
			s.onReceive(context.Background(), s.userID, frame.MessageID)
		}
	}
}

// writePump drains the outbound queue and keeps the connection alive with
// pings. It exits when the queue is closed by the hub or a write fails.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close() // best-effort cleanup
	}()

	for {
		select {
		case payload, ok := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Uint64("session", s.id).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the queue
				if err := s.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					logging.Debug().Err(err).Uint64("session", s.id).Msg("failed to write close message")
				}
				return
			}

			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				metrics.WSErrors.WithLabelValues("write").Inc()
				logging.Warn().Err(err).Uint64("session", s.id).Msg("failed to write frame")
				return
			}

		case <-ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Uint64("session", s.id).Msg("failed to set write deadline for ping")
				return
			}
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
