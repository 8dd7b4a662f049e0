// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package services

import (
	"context"
	"time"

	"github.com/geodepot/geodepot/internal/logging"
)

// GarbageCollector is the piece of the index store the GC service needs.
type GarbageCollector interface {
	RunGC() error
}

// IndexGCService periodically compacts the index store's value log. Badger
// only reclaims space when asked, so a long-running server has to do this
// on a schedule.
type IndexGCService struct {
	store    GarbageCollector
	interval time.Duration
}

// NewIndexGCService creates the GC service. interval defaults to 10 minutes.
func NewIndexGCService(store GarbageCollector, interval time.Duration) *IndexGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &IndexGCService{store: store, interval: interval}
}

// Serve implements suture.Service.
func (s *IndexGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.store.RunGC(); err != nil {
				log := logging.WithComponent("index-gc")
				log.Warn().Err(err).Msg("Value log GC failed")
			}
		}
	}
}

// String implements fmt.Stringer so suture can name the service in logs.
func (s *IndexGCService) String() string {
	return "index-gc"
}
