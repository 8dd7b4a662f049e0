// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package gribidx

import (
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"
)

// MappingEntry ties one (parameter, level) pair from an inventory to the
// dataset variable it belongs to. Mappings are built once per model horizon
// and reused across runs, since the inventory layout of a model is stable.
type MappingEntry struct {
	Parameter   string `json:"parameter"`
	Level       string `json:"level"`
	VarName     string `json:"varname"`
	TypeOfLevel string `json:"type_of_level,omitempty"`
	LevelValue  float64 `json:"level_value,omitempty"`
	Shape       []int  `json:"shape,omitempty"`
}

// attrKey is the join key between inventory items and mapping entries.
type attrKey struct {
	Parameter string
	Level     string
}

func (k attrKey) String() string { return k.Parameter + ":" + k.Level }

// Mapping indexes entries by (parameter, level) for the inventory join.
type Mapping struct {
	entries map[attrKey]MappingEntry
}

// ErrDuplicateKey is returned when either side of the index join contains
// the same (parameter, level) pair twice. A duplicate makes the join
// ambiguous, so the whole build is rejected rather than guessing.
var ErrDuplicateKey = fmt.Errorf("gribidx: duplicate (parameter, level) key")

// NewMapping builds a Mapping from entries, rejecting duplicates.
func NewMapping(entries []MappingEntry) (*Mapping, error) {
	m := &Mapping{entries: make(map[attrKey]MappingEntry, len(entries))}
	for _, e := range entries {
		key := attrKey{Parameter: e.Parameter, Level: e.Level}
		if _, exists := m.entries[key]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, key)
		}
		m.entries[key] = e
	}
	return m, nil
}

// LoadMapping reads a JSON array of mapping entries.
func LoadMapping(r io.Reader) (*Mapping, error) {
	var entries []MappingEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("gribidx: decoding mapping: %w", err)
	}
	return NewMapping(entries)
}

// LoadMappingFile reads a mapping from a JSON file on disk.
func LoadMappingFile(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gribidx: opening mapping file: %w", err)
	}
	defer f.Close()
	return LoadMapping(f)
}

// Lookup returns the entry for a (parameter, level) pair.
func (m *Mapping) Lookup(parameter, level string) (MappingEntry, bool) {
	e, ok := m.entries[attrKey{Parameter: parameter, Level: level}]
	return e, ok
}

// Len reports the number of mapping entries.
func (m *Mapping) Len() int { return len(m.entries) }
