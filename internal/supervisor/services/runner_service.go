// Herald - Real-Time Message Center and Notification Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package services

import "context"

// ContextRunner matches components whose run loop already follows the
// suture.Service pattern: block until the context is canceled, then clean
// up and return. The connection hub and the NATS channel layer both
// implement it via RunWithContext.
type ContextRunner interface {
	RunWithContext(ctx context.Context) error
}

// RunnerService names a ContextRunner and delegates Serve to it.
type RunnerService struct {
	runner ContextRunner
	name   string
}

// NewHubService wraps the connection hub for the messaging layer.
func NewHubService(hub ContextRunner) *RunnerService {
	return &RunnerService{runner: hub, name: "connection-hub"}
}

// NewNATSBridgeService wraps the NATS channel layer for the messaging layer.
func NewNATSBridgeService(layer ContextRunner) *RunnerService {
	return &RunnerService{runner: layer, name: "nats-bridge"}
}

// Serve implements suture.Service.
func (s *RunnerService) Serve(ctx context.Context) error {
	return s.runner.RunWithContext(ctx)
}

// String implements fmt.Stringer; suture uses it in log messages.
func (s *RunnerService) String() string {
	return s.name
}
