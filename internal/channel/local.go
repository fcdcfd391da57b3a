// Herald - Real-Time Message Center and Notification Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package channel

import (
	"context"

	"github.com/tomtom215/herald/internal/metrics"
	"github.com/tomtom215/herald/internal/websocket"
)

// LocalLayer delivers group sends directly to the in-process hub.
// This is the single-process mode used when NATS is disabled.
type LocalLayer struct {
	hub *websocket.Hub
}

// NewLocalLayer creates a channel layer backed by the given hub.
func NewLocalLayer(hub *websocket.Hub) *LocalLayer {
	return &LocalLayer{hub: hub}
}

// GroupAdd joins a session to a group in the local hub.
func (l *LocalLayer) GroupAdd(group string, s *websocket.Session) error {
	return l.hub.Join(group, s)
}

// GroupDiscard removes a session from a group in the local hub.
func (l *LocalLayer) GroupDiscard(group string, s *websocket.Session) {
	l.hub.Leave(group, s)
}

// GroupSend enqueues a payload for the group's local members.
func (l *LocalLayer) GroupSend(_ context.Context, group string, payload []byte) error {
	l.hub.SendToGroup(group, payload)
	metrics.RecordChannelPublish("local", nil)
	return nil
}

// Close is a no-op; the hub's lifecycle is owned by its supervisor.
func (l *LocalLayer) Close() error {
	return nil
}
