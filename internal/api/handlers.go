// Herald - Real-Time Message Center and Notification Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

// Package api provides the HTTP surface of Herald: websocket admission,
// login, message publishing and inbox endpoints, and health probes.
//
// Handler methods are split across files:
//   - handlers.go: Handler struct, constructor, websocket upgrader (this file)
//   - handlers_helpers.go: response and pagination helpers
//   - handlers_auth.go: login and the bearer-token middleware
//   - handlers_websocket.go: websocket admission
//   - handlers_messages.go: publish, read-ack, inbox, unread endpoints
//   - handlers_health.go: liveness and readiness probes
//   - router.go: Chi route table
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/herald/internal/auth"
	"github.com/tomtom215/herald/internal/channel"
	"github.com/tomtom215/herald/internal/config"
	"github.com/tomtom215/herald/internal/database"
	"github.com/tomtom215/herald/internal/dispatch"
	"github.com/tomtom215/herald/internal/logging"
	ws "github.com/tomtom215/herald/internal/websocket"
)

// Handler contains dependencies for API handlers.
type Handler struct {
	db         *database.DB
	config     *config.Config
	jwtManager *auth.JWTManager
	hub        *ws.Hub
	layer      channel.Layer
	dispatcher *dispatch.Dispatcher
	startTime  time.Time
}

// NewHandler creates a new API handler with all required dependencies.
func NewHandler(db *database.DB, cfg *config.Config, jwtManager *auth.JWTManager, hub *ws.Hub, layer channel.Layer, dispatcher *dispatch.Dispatcher) *Handler {
	return &Handler{
		db:         db,
		config:     cfg,
		jwtManager: jwtManager,
		hub:        hub,
		layer:      layer,
		dispatcher: dispatcher,
		startTime:  time.Now(),
	}
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout against slow-client attacks.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates browser connection origins. Non-browser
// clients (mobile apps, scripts) omit the Origin header entirely and are
// admitted on the strength of their token alone.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if h.config == nil {
		return true
	}
	for _, allowed := range h.config.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("websocket connection rejected from unauthorized origin")
	return false
}
