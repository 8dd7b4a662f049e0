// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package zarrmeta

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/geodepot/geodepot/internal/gribidx"
)

// ReferenceSet is a kerchunk-style virtual dataset: a mapping from Zarr
// store keys to either inline JSON documents or [uri, offset, length]
// triples pointing into remote files.
type ReferenceSet struct {
	refs map[string]interface{}
}

// NewReferenceSet starts an empty reference set with a root .zgroup.
func NewReferenceSet() *ReferenceSet {
	rs := &ReferenceSet{refs: make(map[string]interface{})}
	rs.putJSON(".zgroup", GroupMetadata{ZarrFormat: 2})
	return rs
}

func (rs *ReferenceSet) putJSON(key string, doc interface{}) {
	data, err := json.Marshal(doc)
	if err != nil {
		// All documents marshalled here are package-defined structs and
		// maps of scalars.
		panic(fmt.Sprintf("zarrmeta: marshal %s: %v", key, err))
	}
	rs.refs[key] = string(data)
}

// AddArray registers a variable's .zarray and .zattrs documents.
func (rs *ReferenceSet) AddArray(name string, meta ArrayMetadata, attrs Attributes) error {
	if name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("zarrmeta: invalid array name %q", name)
	}
	if len(meta.Shape) != len(meta.Chunks) {
		return fmt.Errorf("zarrmeta: %s: shape rank %d does not match chunk rank %d",
			name, len(meta.Shape), len(meta.Chunks))
	}
	if meta.ZarrFormat == 0 {
		meta.ZarrFormat = 2
	}
	if meta.Order == "" {
		meta.Order = "C"
	}

	rs.putJSON(name+"/.zarray", meta)
	if attrs != nil {
		rs.putJSON(name+"/.zattrs", attrs)
	}
	return nil
}

// AddChunk registers one chunk reference. The indices address the chunk
// grid ("t.z.y.x" for a 4-d array).
func (rs *ReferenceSet) AddChunk(name string, indices []int, uri string, offset, length int64) error {
	if _, ok := rs.refs[name+"/.zarray"]; !ok {
		return fmt.Errorf("zarrmeta: chunk for unregistered array %q", name)
	}

	parts := make([]string, len(indices))
	for i, idx := range indices {
		if idx < 0 {
			return fmt.Errorf("zarrmeta: negative chunk index for %q", name)
		}
		parts[i] = strconv.Itoa(idx)
	}

	rs.refs[name+"/"+strings.Join(parts, ".")] = []interface{}{uri, offset, length}
	return nil
}

// SetRootAttrs attaches a .zattrs document at the group root.
func (rs *ReferenceSet) SetRootAttrs(attrs Attributes) {
	rs.putJSON(".zattrs", attrs)
}

// Len reports the number of keys in the set.
func (rs *ReferenceSet) Len() int { return len(rs.refs) }

// referenceFile is the on-disk envelope readers expect.
type referenceFile struct {
	Version int                    `json:"version"`
	Refs    map[string]interface{} `json:"refs"`
}

// WriteReferences serializes the set as a version 1 reference file.
func (rs *ReferenceSet) WriteReferences(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(referenceFile{Version: 1, Refs: rs.refs}); err != nil {
		return fmt.Errorf("zarrmeta: encoding references: %w", err)
	}
	return nil
}

// fillValueFor picks the missing-data marker for a dtype. Zarr v2 encodes a
// NaN fill for float arrays as the JSON string "NaN"; integer arrays get no
// fill.
func fillValueFor(dtype string) interface{} {
	if strings.Contains(dtype, "f") {
		return "NaN"
	}
	return nil
}

// dimensionNames labels the time axis plus the spatial axes. Quarter and
// half degree grids are two dimensional, so rank 2 gets the conventional
// latitude and longitude names readers expect.
func dimensionNames(gridRank int) []string {
	names := []string{"time"}
	if gridRank == 2 {
		return append(names, "latitude", "longitude")
	}
	for i := 0; i < gridRank; i++ {
		names = append(names, fmt.Sprintf("dim_%d", i))
	}
	return names
}

// VariableSpec describes the spatial grid of one variable for reference
// building. The time axis comes from the records themselves.
type VariableSpec struct {
	// GridShape is the per-timestep shape, e.g. [721, 1440] for a quarter
	// degree global grid. Each timestep is one whole-grid chunk.
	GridShape []int
	DType     string
	Attrs     Attributes
}

// BuildFromRecords converts chunk-index records into a reference set. Each
// variable becomes one array with a leading time dimension; record n in
// valid-time order fills chunk index n. Variables without a spec are
// skipped so one reference file can be cut from a wider index.
func BuildFromRecords(records []gribidx.Record, specs map[string]VariableSpec) (*ReferenceSet, error) {
	byVar := make(map[string][]gribidx.Record)
	for _, rec := range records {
		if _, ok := specs[rec.VarName]; !ok {
			continue
		}
		byVar[rec.VarName] = append(byVar[rec.VarName], rec)
	}

	rs := NewReferenceSet()

	names := make([]string, 0, len(byVar))
	for name := range byVar {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		recs := byVar[name]
		sort.Slice(recs, func(i, j int) bool {
			return recs[i].ValidTime.Before(recs[j].ValidTime)
		})

		spec := specs[name]

		shape := append([]int{len(recs)}, spec.GridShape...)
		chunks := append([]int{1}, spec.GridShape...)

		attrs := Attributes{}
		for k, v := range spec.Attrs {
			attrs[k] = v
		}
		if _, ok := attrs["_ARRAY_DIMENSIONS"]; !ok {
			attrs["_ARRAY_DIMENSIONS"] = dimensionNames(len(spec.GridShape))
		}
		times := make([]string, len(recs))
		for i, rec := range recs {
			times[i] = rec.ValidTime.UTC().Format("2006-01-02T15:04:05Z")
		}
		attrs["valid_times"] = times

		err := rs.AddArray(name, ArrayMetadata{
			Chunks:    chunks,
			DType:     spec.DType,
			FillValue: fillValueFor(spec.DType),
			Filters:   []interface{}{map[string]string{"id": "grib"}},
			Shape:     shape,
		}, attrs)
		if err != nil {
			return nil, err
		}

		for i, rec := range recs {
			indices := make([]int, len(shape))
			indices[0] = i
			if err := rs.AddChunk(name, indices, rec.URI, rec.Offset, rec.Length); err != nil {
				return nil, err
			}
		}
	}

	return rs, nil
}
