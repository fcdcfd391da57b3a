// Herald - Real-Time Message Center and Notification Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package models

import "time"

// APIResponse is the standardized response wrapper used by all HTTP endpoints.
//
// Status field values:
//   - "success": Request completed successfully, see Data field
//   - "error": Request failed, see Error field for details
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response metadata for observability.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMs int64     `json:"query_time_ms,omitempty"`
}

// APIError describes a failed request.
type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// PublishRequest is the body of POST /api/v1/messages. TargetUsers,
// TargetRoles and TargetDepartments are each consulted only for the
// matching target type.
type PublishRequest struct {
	Title             string  `json:"title" validate:"required,max=100"`
	Content           string  `json:"content" validate:"required"`
	TargetType        int     `json:"target_type" validate:"min=0,max=3"`
	TargetUsers       []int64 `json:"target_users,omitempty" validate:"omitempty,dive,gt=0"`
	TargetRoles       []int64 `json:"target_roles,omitempty" validate:"omitempty,dive,gt=0"`
	TargetDepartments []int64 `json:"target_departments,omitempty" validate:"omitempty,dive,gt=0"`
}

// PublishResult reports what a publish persisted.
type PublishResult struct {
	MessageID  int64 `json:"message_id"`
	Recipients int   `json:"recipients"`
}

// LoginRequest is the body of POST /api/v1/auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the signed token the websocket endpoint consumes.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
