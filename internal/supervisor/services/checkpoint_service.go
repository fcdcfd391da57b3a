// Herald - Real-Time Message Center and Notification Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package services

import (
	"context"
	"time"

	"github.com/tomtom215/herald/internal/logging"
)

// Checkpointer matches the store's Checkpoint method.
type Checkpointer interface {
	Checkpoint(ctx context.Context) error
}

// CheckpointService periodically flushes the store's write-ahead log so a
// crash loses at most one interval of buffered writes. It runs in the data
// layer of the supervision tree.
type CheckpointService struct {
	db       Checkpointer
	interval time.Duration
	name     string
}

// NewCheckpointService creates the service. A non-positive interval falls
// back to five minutes.
func NewCheckpointService(db Checkpointer, interval time.Duration) *CheckpointService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &CheckpointService{
		db:       db,
		interval: interval,
		name:     "store-checkpoint",
	}
}

// Serve implements suture.Service. Checkpoint failures are logged, not
// fatal: the store stays usable and the next tick retries.
func (s *CheckpointService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.db.Checkpoint(ctx); err != nil {
				logging.Warn().Err(err).Msg("periodic checkpoint failed")
				continue
			}
			logging.Debug().Msg("store checkpoint complete")
		}
	}
}

// String implements fmt.Stringer; suture uses it in log messages.
func (s *CheckpointService) String() string {
	return s.name
}
