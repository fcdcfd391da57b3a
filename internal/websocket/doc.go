// Herald - Real-Time Message Center and Notification Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

// Package websocket implements Herald's connection registry and sessions.
//
// The Hub maps group names to the set of live sessions joined to each group.
// Every authenticated connection joins exactly one group, derived from the
// user ID, for the lifetime of the connection; a user with several open
// connections has several sessions in the same group.
//
// Frames flow one way through the hub: callers enqueue a fully-formed JSON
// payload for a group with SendToGroup, and the hub's run loop delivers it
// to each session's outbound queue. A session whose queue is full is
// considered dead and removed; delivery is best-effort with no retry.
//
// Sessions pump in both directions without mutual blocking: the read pump
// consumes client acknowledgement frames and the write pump drains the
// outbound queue with ping keepalives.
package websocket
