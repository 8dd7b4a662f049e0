// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package gribidx

import (
	"fmt"
	"time"

	"github.com/geodepot/geodepot/internal/logging"
	"github.com/geodepot/geodepot/internal/metrics"
)

// Record is one chunk-index entry: where to find the bytes of one variable
// at one level and lead time, and when those bytes are valid for.
type Record struct {
	VarName   string        `json:"varname"`
	Parameter string        `json:"parameter"`
	Level     string        `json:"level"`
	RefTime   time.Time     `json:"time"`
	Step      time.Duration `json:"step"`
	ValidTime time.Time     `json:"valid_time"`
	URI       string        `json:"uri"`
	Offset    int64         `json:"offset"`
	Length    int64         `json:"length"`
	IndexedAt time.Time     `json:"indexed_at"`
}

// BuildIndex joins a parsed inventory against a mapping, producing one
// record per mapped GRIB message. Messages whose (parameter, level) has no
// mapping entry are dropped with a debug log; they usually belong to
// variables the dataset does not carry. Duplicate keys on the inventory
// side reject the whole build.
//
// uri names the GRIB file the inventory describes and is stamped into every
// record so consumers can fetch the byte ranges later.
func BuildIndex(inv Inventory, mapping *Mapping, uri string) ([]Record, error) {
	seen := make(map[string]struct{}, len(inv))
	records := make([]Record, 0, len(inv))
	dropped := 0
	now := time.Now().UTC()

	for _, item := range inv {
		step, err := item.Step()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", item.RecordNumber, err)
		}

		for _, param := range item.Parameters {
			key := param + ":" + item.Level
			if _, dup := seen[key]; dup {
				return nil, fmt.Errorf("%w: %s in %s", ErrDuplicateKey, key, uri)
			}
			seen[key] = struct{}{}

			entry, ok := mapping.Lookup(param, item.Level)
			if !ok {
				dropped++
				metrics.IndexDropped.Inc()
				logging.Debug().
					Str("parameter", param).
					Str("level", item.Level).
					Msg("no mapping for inventory item, dropping")
				continue
			}

			records = append(records, Record{
				VarName:   entry.VarName,
				Parameter: param,
				Level:     item.Level,
				RefTime:   item.RefTime,
				Step:      step,
				ValidTime: item.RefTime.Add(step),
				URI:       uri,
				Offset:    item.Offset,
				Length:    item.Length,
				IndexedAt: now,
			})
		}
	}

	if dropped > 0 {
		logging.Info().Int("dropped", dropped).Str("uri", uri).Msg("dropped unmapped inventory items")
	}

	return records, nil
}
