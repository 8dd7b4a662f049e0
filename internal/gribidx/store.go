// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package gribidx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"

	"github.com/geodepot/geodepot/internal/logging"
	"github.com/geodepot/geodepot/internal/metrics"
)

const chunkKeyPrefix = "chunk:"

// ErrRecordNotFound is returned when no chunk reference exists for a key.
var ErrRecordNotFound = errors.New("gribidx: record not found")

// Store persists chunk-index records in BadgerDB, keyed by variable, valid
// time and level so range scans over one variable's timeline stay cheap.
type Store struct {
	db *badger.DB
}

// OpenStore opens (or creates) a BadgerDB store at path. An empty path opens
// an in-memory store, used by tests.
func OpenStore(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("gribidx: opening index store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// recordKey builds the composite key "chunk:<var>/<valid_time>/<level>".
// Valid times use a fixed-width UTC layout so lexicographic order equals
// chronological order within a variable prefix.
func recordKey(varName string, validTime time.Time, level string) []byte {
	return []byte(chunkKeyPrefix + varName + "/" + validTime.UTC().Format("20060102T150405Z") + "/" + level)
}

// Put writes records in batches. Existing entries for the same key are
// overwritten, which is what re-indexing an updated run wants.
func (s *Store) Put(ctx context.Context, records []Record) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("gribidx: marshal record: %w", err)
		}
		if err := wb.Set(recordKey(rec.VarName, rec.ValidTime, rec.Level), data); err != nil {
			return fmt.Errorf("gribidx: batch write: %w", err)
		}
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("gribidx: flush batch: %w", err)
	}

	metrics.IndexWrites.Add(float64(len(records)))
	s.updateRecordGauge()

	return nil
}

// Get fetches the record for one (variable, valid time, level) key.
func (s *Store) Get(ctx context.Context, varName string, validTime time.Time, level string) (*Record, error) {
	var rec Record

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(varName, validTime, level))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrRecordNotFound
		}
		if err != nil {
			return fmt.Errorf("get record: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// ScanVar returns all records for one variable in valid-time order. Passing
// a zero from/to leaves that bound open.
func (s *Store) ScanVar(ctx context.Context, varName string, from, to time.Time) ([]Record, error) {
	var records []Record

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(chunkKeyPrefix + varName + "/")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var rec Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("decode record: %w", err)
			}

			if !from.IsZero() && rec.ValidTime.Before(from) {
				continue
			}
			if !to.IsZero() && rec.ValidTime.After(to) {
				continue
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("gribidx: scan %s: %w", varName, err)
	}

	return records, nil
}

// Vars lists the distinct variable names present in the store.
func (s *Store) Vars(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var vars []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(chunkKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			rest := strings.TrimPrefix(key, chunkKeyPrefix)
			name, _, ok := strings.Cut(rest, "/")
			if !ok {
				continue
			}
			if _, dup := seen[name]; !dup {
				seen[name] = struct{}{}
				vars = append(vars, name)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("gribidx: list variables: %w", err)
	}

	return vars, nil
}

// Count reports the number of chunk references in the store.
func (s *Store) Count(ctx context.Context) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(chunkKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// RunGC triggers one round of value log garbage collection. Badger asks
// callers to run this periodically; ErrNoRewrite just means there was
// nothing to collect.
func (s *Store) RunGC() error {
	err := s.db.RunValueLogGC(0.5)
	if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		return fmt.Errorf("gribidx: value log GC: %w", err)
	}
	return nil
}

func (s *Store) updateRecordGauge() {
	count, err := s.Count(context.Background())
	if err != nil {
		logging.Warn().Err(err).Msg("counting index records for gauge")
		return
	}
	metrics.IndexRecords.Set(float64(count))
}
