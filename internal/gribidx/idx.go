// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

// Package gribidx parses wgrib2-style GRIB index sidecars and joins them
// with variable mappings into a queryable chunk index. Byte ranges come from
// the .idx file alone; the GRIB file itself is never read.
package gribidx

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrShortRecord is returned when an inventory line has fewer fields
	// than the wgrib2 short format requires.
	ErrShortRecord = errors.New("gribidx: inventory record has too few fields")

	// ErrBadSubRecord is returned when a sub-message line (n.m:) appears
	// before its parent message.
	ErrBadSubRecord = errors.New("gribidx: sub-record without preceding record")
)

// InventoryItem is one GRIB message described by a wgrib2 short inventory
// line, extended with a computed byte extent. Multi-field messages (wind
// vectors) are collated into a single item with several parameters.
type InventoryItem struct {
	RecordNumber int
	Offset       int64
	Length       int64
	RefTime      time.Time
	Parameters   []string
	Level        string
	ForecastDesc string
}

// Step derives the forecast lead time from the item's forecast description
// ("anl", "6 hour fcst", "0-6 hour ave fcst").
func (item *InventoryItem) Step() (time.Duration, error) {
	return ParseStep(item.ForecastDesc)
}

// Inventory is the parsed content of one .idx file, in file order.
type Inventory []*InventoryItem

// ParseInventory reads a wgrib2 short inventory. Each line looks like
//
//	5:1207429:d=2026082900:TMP:500 mb:6 hour fcst:
//
// The extent of every message is the distance to the next message's offset;
// the final message runs to totalLength. Lines numbered "n.m" with m > 1
// extend the previous message with an extra parameter instead of starting a
// new one.
func ParseInventory(r io.Reader, totalLength int64) (Inventory, error) {
	var (
		inventory Inventory
		lastItem  *InventoryItem
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Split(line, ":")
		if len(fields) < 6 {
			return nil, fmt.Errorf("%w: %q", ErrShortRecord, line)
		}

		record, subRecord, err := parseRecordNumber(fields[0])
		if err != nil {
			return nil, err
		}

		if subRecord > 1 {
			if lastItem == nil {
				return nil, ErrBadSubRecord
			}
			lastItem.Parameters = append(lastItem.Parameters, fields[3])
			continue
		}

		offset, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("gribidx: bad offset %q: %w", fields[1], err)
		}

		refTime, err := parseRefTime(fields[2])
		if err != nil {
			return nil, err
		}

		item := &InventoryItem{
			RecordNumber: record,
			Offset:       offset,
			RefTime:      refTime,
			Parameters:   []string{fields[3]},
			Level:        fields[4],
			ForecastDesc: fields[5],
		}

		if lastItem != nil {
			lastItem.Length = item.Offset - lastItem.Offset
			inventory = append(inventory, lastItem)
		}
		lastItem = item
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("gribidx: reading inventory: %w", err)
	}

	if lastItem != nil {
		lastItem.Length = totalLength - lastItem.Offset
		inventory = append(inventory, lastItem)
	}

	return inventory, nil
}

// parseRecordNumber handles both "5" and "5.2" record identifiers. The
// second form numbers fields within an n-d message.
func parseRecordNumber(s string) (record, subRecord int, err error) {
	subRecord = 1

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, 0, fmt.Errorf("gribidx: invalid record number %q", s)
	}

	record, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("gribidx: invalid record number %q: %w", s, err)
	}
	if len(parts) == 2 {
		subRecord, err = strconv.Atoi(parts[1])
		if err != nil {
			return 0, 0, fmt.Errorf("gribidx: invalid sub-record number %q: %w", s, err)
		}
	}
	return record, subRecord, nil
}

var refTimePattern = regexp.MustCompile(`^d=(\d{4})(\d{2})(\d{2})(\d{2})$`)

func parseRefTime(s string) (time.Time, error) {
	m := refTimePattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("gribidx: invalid date field %q", s)
	}

	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])

	return time.Date(year, time.Month(month), day, hour, 0, 0, 0, time.UTC), nil
}

var stepPattern = regexp.MustCompile(`^(?:(\d+)-)?(\d+) (min|hour|day) (?:ave |acc |max |min )?fcst$`)

// ParseStep converts a wgrib2 forecast description into a lead time. For
// interval products ("0-6 hour ave fcst") the end of the interval is used.
// Analysis fields ("anl") have a zero step.
func ParseStep(desc string) (time.Duration, error) {
	desc = strings.TrimSpace(desc)
	if desc == "anl" {
		return 0, nil
	}

	m := stepPattern.FindStringSubmatch(desc)
	if m == nil {
		return 0, fmt.Errorf("gribidx: unrecognized forecast description %q", desc)
	}

	n, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, fmt.Errorf("gribidx: bad step in %q: %w", desc, err)
	}

	var unit time.Duration
	switch m[3] {
	case "min":
		unit = time.Minute
	case "hour":
		unit = time.Hour
	case "day":
		unit = 24 * time.Hour
	}
	return time.Duration(n) * unit, nil
}
