// Herald - Real-Time Message Center and Notification Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/herald/internal/database"
	"github.com/tomtom215/herald/internal/dispatch"
	"github.com/tomtom215/herald/internal/models"
)

// PublishMessage creates and fans out a notification.
//
// POST /api/v1/messages
func (h *Handler) PublishMessage(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing credentials", nil)
		return
	}

	var req models.PublishRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.dispatcher.Publish(r.Context(), claims.UserID, &req)
	if err != nil {
		if errors.Is(err, dispatch.ErrValidationFailed) {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to publish message", err)
		return
	}

	respondSuccess(w, http.StatusCreated, result)
}

// MarkRead flips the caller's read flag on one message.
//
// PUT /api/v1/messages/{id}/read
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing credentials", nil)
		return
	}

	messageID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || messageID <= 0 {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid message ID", nil)
		return
	}

	if err := h.db.MarkRead(r.Context(), messageID, claims.UserID); err != nil {
		if errors.Is(err, database.ErrNotRecipient) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Message not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to mark message read", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"message_id": messageID,
		"is_read":    true,
	})
}

// ListMessages returns the caller's inbox, newest first.
//
// GET /api/v1/messages?page=&page_size=
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing credentials", nil)
		return
	}

	limit, offset, page := h.pageParams(r)
	entries, total, err := h.db.ListInbox(r.Context(), claims.UserID, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list messages", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"messages":  entries,
		"total":     total,
		"page":      page,
		"page_size": limit,
	})
}

// UnreadCount returns how many of the caller's messages are unread.
//
// GET /api/v1/messages/unread
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing credentials", nil)
		return
	}

	unread, err := h.db.UnreadCount(r.Context(), claims.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to count unread messages", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{"unread": unread})
}
