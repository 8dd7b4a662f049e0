// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package stac

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Flatten converts a nested map into a single-level map with dotted keys.
// Lists of scalars are joined with "; "; lists of maps are indexed
// ("key.0.field"). Scalar values are stringified.
func Flatten(in map[string]interface{}) map[string]string {
	out := make(map[string]string)
	flattenInto(out, "", in)
	return out
}

func flattenInto(out map[string]string, prefix string, in map[string]interface{}) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		flattenValue(out, key, v)
	}
}

func flattenValue(out map[string]string, key string, v interface{}) {
	switch val := v.(type) {
	case nil:
		out[key] = ""
	case map[string]interface{}:
		flattenInto(out, key, val)
	case []interface{}:
		if containsMap(val) {
			for i, elem := range val {
				flattenValue(out, key+"."+strconv.Itoa(i), elem)
			}
			return
		}
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = stringify(elem)
		}
		out[key] = strings.Join(parts, "; ")
	default:
		out[key] = stringify(v)
	}
}

func containsMap(vals []interface{}) bool {
	for _, v := range vals {
		if _, ok := v.(map[string]interface{}); ok {
			return true
		}
	}
	return false
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		// JSON numbers decode as float64. Render integers without a
		// trailing ".0" so IDs survive round-trips through spreadsheets.
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	case json.Number:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}

// itemRow flattens a single item into exportable key/value pairs. The
// geometry is summarized to its type; full coordinates do not belong in a
// tabular export.
func itemRow(item Item) map[string]string {
	row := map[string]string{
		"id":         item.ID,
		"collection": item.Collection,
	}
	if item.Geometry != nil {
		row["geometry_type"] = item.Geometry.Type
	}
	if len(item.BBox) > 0 {
		row["bbox"] = joinFloats(item.BBox)
	}
	for k, v := range Flatten(item.Properties) {
		row["properties."+k] = v
	}
	for name, asset := range item.Assets {
		row["assets."+name+".href"] = asset.Href
		if asset.Type != "" {
			row["assets."+name+".type"] = asset.Type
		}
	}
	return row
}

// WriteCSV exports items as CSV. The header is the sorted union of keys
// across all rows, with id and collection pinned first. Rows missing a
// column get an empty cell.
func WriteCSV(w io.Writer, items []Item) error {
	rows := make([]map[string]string, len(items))
	keySet := make(map[string]struct{})
	for i, item := range items {
		rows[i] = itemRow(item)
		for k := range rows[i] {
			keySet[k] = struct{}{}
		}
	}

	header := unionHeader(keySet)

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}

	record := make([]string, len(header))
	for _, row := range rows {
		for i, col := range header {
			record[i] = row[col]
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// unionHeader orders columns with id and collection first, the rest sorted.
func unionHeader(keySet map[string]struct{}) []string {
	pinned := []string{"id", "collection"}

	header := make([]string, 0, len(keySet))
	for _, p := range pinned {
		if _, ok := keySet[p]; ok {
			header = append(header, p)
		}
	}

	rest := make([]string, 0, len(keySet))
	for k := range keySet {
		if k == "id" || k == "collection" {
			continue
		}
		rest = append(rest, k)
	}
	sort.Strings(rest)

	return append(header, rest...)
}

// WriteJSON exports items as an indented JSON array.
func WriteJSON(w io.Writer, items []Item) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(items); err != nil {
		return fmt.Errorf("encoding items: %w", err)
	}
	return nil
}
