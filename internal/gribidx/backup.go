// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package gribidx

import (
	"fmt"
	"io"
	"time"

	"github.com/geodepot/geodepot/internal/logging"
)

// Backup streams a full snapshot of the store to w in badger's backup
// format. The store stays usable while the backup runs. Returns the version
// watermark the snapshot covers.
func (s *Store) Backup(w io.Writer) (uint64, error) {
	start := time.Now()
	since, err := s.db.Backup(w, 0)
	if err != nil {
		return 0, fmt.Errorf("gribidx: backup: %w", err)
	}
	log := logging.WithComponent("gribidx")
	log.Info().
		Uint64("version", since).
		Dur("elapsed", time.Since(start)).
		Msg("Index backup written")
	return since, nil
}

// Restore loads a backup stream into the store. Existing entries with the
// same keys are overwritten; restore into a fresh store for an exact copy.
func (s *Store) Restore(r io.Reader) error {
	start := time.Now()
	if err := s.db.Load(r, 16); err != nil {
		return fmt.Errorf("gribidx: restore: %w", err)
	}
	s.updateRecordGauge()
	log := logging.WithComponent("gribidx")
	log.Info().
		Dur("elapsed", time.Since(start)).
		Msg("Index backup restored")
	return nil
}
