// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package fetch

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/geodepot/geodepot/internal/gribidx"
)

// Filter selects which inventory items a sync downloads.
type Filter struct {
	// Parameters keeps items whose first parameter is listed; the list
	// order doubles as the output ordering. Empty keeps everything.
	Parameters []string

	// Levels keeps items at the listed levels. Empty keeps everything.
	Levels []string

	// PressureOnly keeps only items on pressure levels ("NNN mb").
	PressureOnly bool

	// MaxStep drops items past this lead time. Zero keeps everything.
	MaxStep time.Duration
}

const pressureSuffix = " mb"

// rankedItem carries the sort keys derived from an inventory item.
type rankedItem struct {
	item     *gribidx.InventoryItem
	step     time.Duration
	pressure int
	paramIdx int
	valid    bool
}

// SelectRecords filters an inventory and orders the survivors: ascending
// lead time, then descending pressure, then the filter's parameter order.
// Consumers slice vertical profiles out of the result, so the layout within
// one lead time has to be stable. Items whose step or pressure cannot be
// parsed sort last.
func SelectRecords(inv gribidx.Inventory, filter Filter) []*gribidx.InventoryItem {
	ranked := make([]rankedItem, 0, len(inv))

	for _, item := range inv {
		if !filter.keep(item) {
			continue
		}
		ranked = append(ranked, rank(item, filter.Parameters))
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.valid != b.valid {
			return a.valid
		}
		if !a.valid {
			return false
		}
		if a.step != b.step {
			return a.step < b.step
		}
		if a.pressure != b.pressure {
			return a.pressure > b.pressure
		}
		return a.paramIdx < b.paramIdx
	})

	out := make([]*gribidx.InventoryItem, len(ranked))
	for i, r := range ranked {
		out[i] = r.item
	}
	return out
}

func (f Filter) keep(item *gribidx.InventoryItem) bool {
	if len(f.Parameters) > 0 && paramIndex(item, f.Parameters) == len(f.Parameters) {
		return false
	}
	if len(f.Levels) > 0 {
		found := false
		for _, lvl := range f.Levels {
			if item.Level == lvl {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.PressureOnly && !strings.HasSuffix(item.Level, pressureSuffix) {
		return false
	}
	if f.MaxStep > 0 {
		step, err := item.Step()
		if err != nil || step > f.MaxStep {
			return false
		}
	}
	return true
}

// paramIndex returns the position of the item's parameter within the
// filter's order, or len(params) when absent.
func paramIndex(item *gribidx.InventoryItem, params []string) int {
	for i, p := range params {
		for _, ip := range item.Parameters {
			if ip == p {
				return i
			}
		}
	}
	return len(params)
}

func rank(item *gribidx.InventoryItem, params []string) rankedItem {
	r := rankedItem{item: item, valid: true, paramIdx: paramIndex(item, params)}

	step, err := item.Step()
	if err != nil {
		r.valid = false
	}
	r.step = step

	if strings.HasSuffix(item.Level, pressureSuffix) {
		p, err := strconv.Atoi(strings.TrimSuffix(item.Level, pressureSuffix))
		if err != nil {
			r.valid = false
		}
		r.pressure = p
	}

	return r
}
