// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

package history

import (
	"context"
	"time"

	"github.com/beloureiro/inlocker/internal/logging"
)

// GCService periodically prunes old records and runs Badger value-log
// GC. It implements suture.Service and runs in the daemon's store layer.
type GCService struct {
	store     *Store
	interval  time.Duration
	retention time.Duration
}

// NewGCService builds the maintenance service. retention <= 0 disables
// pruning; interval <= 0 falls back to ten minutes.
func NewGCService(store *Store, interval, retention time.Duration) *GCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &GCService{
		store:     store,
		interval:  interval,
		retention: retention,
	}
}

// Serve implements suture.Service.
func (g *GCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			g.maintain()
		}
	}
}

// maintain runs one prune+GC round. Failures are logged, not fatal; the
// next tick tries again.
func (g *GCService) maintain() {
	if g.retention > 0 {
		cutoff := time.Now().Add(-g.retention)
		pruned, err := g.store.Prune(cutoff)
		if err != nil {
			logging.Error().Err(err).Msg("History pruning failed")
		} else if pruned > 0 {
			logging.Debug().Int("records", pruned).Msg("Pruned old history records")
		}
	}
	if err := g.store.RunValueLogGC(); err != nil {
		logging.Error().Err(err).Msg("History value-log GC failed")
	}
}

// String names the service in supervisor logs.
func (g *GCService) String() string {
	return "history-gc"
}
