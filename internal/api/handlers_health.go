// Herald - Real-Time Message Center and Notification Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package api

import (
	"net/http"
	"time"
)

// HealthLive handles liveness probe requests (Kubernetes-style).
// Returns 200 OK if the process is alive, regardless of dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles readiness probe requests (Kubernetes-style).
// Returns 200 only when the store is reachable and the hub is running,
// 503 otherwise.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	dbConnected := h.db != nil && h.db.Ping(r.Context()) == nil
	hubReady := h.hub != nil

	if !dbConnected || !hubReady {
		respondError(w, http.StatusServiceUnavailable, "NOT_READY", "Service is not ready", nil)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"ready":       true,
		"database":    dbConnected,
		"connections": h.hub.SessionCount(),
		"uptime":      time.Since(h.startTime).Seconds(),
	})
}
