// Herald - Real-Time Message Center and Notification Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

// Package channel provides the group messaging layer between the dispatcher
// and connection registries.
//
// Two implementations exist: LocalLayer delivers directly to the in-process
// hub, and NATSLayer publishes each group send on a per-group NATS subject
// so that every Herald process (including the publisher itself) bridges the
// payload into its own hub. Group membership is always local; only sends
// cross process boundaries.
package channel

import (
	"context"

	"github.com/tomtom215/herald/internal/websocket"
)

// Layer is the group messaging contract.
//
// GroupAdd and GroupDiscard manage local membership and follow registry
// semantics: add failure is fatal to the caller, discard of an absent
// member is a no-op. GroupSend delivers a complete JSON frame to every
// member of the group on every participating process, best-effort.
type Layer interface {
	GroupAdd(group string, s *websocket.Session) error
	GroupDiscard(group string, s *websocket.Session)
	GroupSend(ctx context.Context, group string, payload []byte) error
	Close() error
}
