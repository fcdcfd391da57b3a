// Herald - Real-Time Message Center and Notification Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/herald/internal/logging"
	"github.com/tomtom215/herald/internal/metrics"
	ws "github.com/tomtom215/herald/internal/websocket"
)

// WebSocket admits a client connection at GET /ws/{token}.
//
// The token is validated before the handshake is accepted: an invalid token
// never upgrades, it gets a plain 401. After the upgrade the initial system
// notice is queued while the session's queue is still private, then the
// session joins the user's group, so the notice always reaches the client
// before any forwarded push.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	claims, err := h.jwtManager.ValidateToken(token)
	if err != nil {
		metrics.RecordAdmission("rejected")
		logging.Warn().
			Str("remote", r.RemoteAddr).
			Msg("websocket admission rejected")
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token", nil)
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		metrics.RecordAdmission("rejected")
		logging.Error().Err(err).Msg("websocket upgrade error")
		return
	}

	session := ws.NewSession(h.hub, conn, claims.UserID, claims.Username,
		h.config.Dispatch.SendBuffer, h.dispatcher.HandleReceive)

	// The notice goes on the queue before the session joins its group.
	// Until GroupAdd the queue is private, so a concurrent dispatch cannot
	// slip a push in front of it.
	notice, err := h.dispatcher.AdmissionNotice(r.Context(), claims.UserID)
	if err != nil {
		logging.Error().Err(err).Int64("user_id", claims.UserID).Msg("failed to build admission notice")
	} else {
		session.Enqueue(notice)
	}

	if err := h.layer.GroupAdd(session.Group(), session); err != nil {
		metrics.RecordAdmission("rejected")
		logging.Error().Err(err).Int64("user_id", claims.UserID).Msg("failed to join user group")
		_ = conn.Close()
		return
	}

	metrics.RecordAdmission("accepted")
	logging.Info().
		Int64("user_id", claims.UserID).
		Str("username", claims.Username).
		Uint64("session_id", session.ID()).
		Msg("websocket session admitted")

	session.Start()
}
