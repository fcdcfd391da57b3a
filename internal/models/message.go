// Herald - Real-Time Message Center and Notification Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package models

import (
	"strconv"
	"time"
)

// TargetType selects how a message's recipient set is resolved.
type TargetType int

const (
	// TargetUsers delivers to an explicit list of user IDs.
	TargetUsers TargetType = 0

	// TargetRoles delivers to every user holding any of the listed roles.
	TargetRoles TargetType = 1

	// TargetDepartments delivers to every user in any of the listed departments.
	TargetDepartments TargetType = 2

	// TargetAll delivers to every active user in the system.
	TargetAll TargetType = 3
)

// Valid reports whether t is one of the defined target types.
func (t TargetType) Valid() bool {
	return t >= TargetUsers && t <= TargetAll
}

// String returns a human-readable name for logging and metrics labels.
func (t TargetType) String() string {
	switch t {
	case TargetUsers:
		return "users"
	case TargetRoles:
		return "roles"
	case TargetDepartments:
		return "departments"
	case TargetAll:
		return "all"
	default:
		return "unknown:" + strconv.Itoa(int(t))
	}
}

// Message is one notification event. Immutable after creation except for
// recipient linkage, which lives in RecipientLink rows.
type Message struct {
	ID         int64      `json:"id"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	TargetType TargetType `json:"target_type"`
	CreatorID  int64      `json:"creator_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// RecipientLink is the delivery/read state of one Message for one user.
// Exactly one link exists per (message, user) pair.
type RecipientLink struct {
	ID        int64     `json:"id"`
	MessageID int64     `json:"message_id"`
	UserID    int64     `json:"user_id"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// InboxEntry is one row of a user's message listing: the message joined
// with that user's read flag.
type InboxEntry struct {
	Message
	IsRead bool `json:"is_read"`
}

// Push payload content types.
const (
	ContentTypeSystem = "SYSTEM"
	ContentTypeInfo   = "INFO"
)

// SystemSender identifies server-originated push payloads.
const SystemSender = "system"

// PushPayload is the frame delivered to websocket clients. The Unread field
// is merged in at send time with the recipient's fresh unread count.
type PushPayload struct {
	Sender      string `json:"sender"`
	ContentType string `json:"contentType"`
	Title       string `json:"title,omitempty"`
	Content     string `json:"content"`
	MessageID   int64  `json:"message_id,omitempty"`
	Unread      int    `json:"unread"`
}

// GroupName derives the channel-layer group for a user. Every connection a
// user holds joins this one group for the lifetime of the connection.
func GroupName(userID int64) string {
	return "user_" + strconv.FormatInt(userID, 10)
}
