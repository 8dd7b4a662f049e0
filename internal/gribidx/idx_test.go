// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package gribidx

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const sampleInventory = `1:0:d=2026082900:PRMSL:mean sea level:anl:
2:502133:d=2026082900:TMP:500 mb:anl:
3:996214:d=2026082900:TMP:2 m above ground:anl:
4.1:1420060:d=2026082900:UGRD:10 m above ground:anl:
4.2:1420060:d=2026082900:VGRD:10 m above ground:anl:
5:2268901:d=2026082900:APCP:surface:0-6 hour acc fcst:
`

func TestParseInventory(t *testing.T) {
	inv, err := ParseInventory(strings.NewReader(sampleInventory), 3000000)
	if err != nil {
		t.Fatalf("ParseInventory failed: %v", err)
	}
	if len(inv) != 5 {
		t.Fatalf("expected 5 items (sub-records collated), got %d", len(inv))
	}

	first := inv[0]
	if first.Offset != 0 || first.Length != 502133 {
		t.Errorf("first item extent wrong: offset=%d length=%d", first.Offset, first.Length)
	}
	if first.Parameters[0] != "PRMSL" || first.Level != "mean sea level" {
		t.Errorf("first item fields wrong: %+v", first)
	}

	wantRef := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	if !first.RefTime.Equal(wantRef) {
		t.Errorf("expected reference time %v, got %v", wantRef, first.RefTime)
	}

	wind := inv[3]
	if len(wind.Parameters) != 2 || wind.Parameters[0] != "UGRD" || wind.Parameters[1] != "VGRD" {
		t.Errorf("expected collated wind parameters, got %v", wind.Parameters)
	}
	if wind.Length != 2268901-1420060 {
		t.Errorf("wind item length wrong: %d", wind.Length)
	}

	last := inv[4]
	if last.Length != 3000000-2268901 {
		t.Errorf("last item should extend to total length, got length %d", last.Length)
	}
}

func TestParseInventoryRejectsShortRecord(t *testing.T) {
	_, err := ParseInventory(strings.NewReader("1:0:d=2026082900:TMP\n"), 100)
	if !errors.Is(err, ErrShortRecord) {
		t.Errorf("expected ErrShortRecord, got %v", err)
	}
}

func TestParseInventoryRejectsOrphanSubRecord(t *testing.T) {
	_, err := ParseInventory(strings.NewReader("1.2:0:d=2026082900:VGRD:10 m above ground:anl:\n"), 100)
	if !errors.Is(err, ErrBadSubRecord) {
		t.Errorf("expected ErrBadSubRecord, got %v", err)
	}
}

func TestParseInventoryBadDate(t *testing.T) {
	_, err := ParseInventory(strings.NewReader("1:0:d=20260829:TMP:500 mb:anl:\n"), 100)
	if err == nil {
		t.Error("expected error for truncated date field")
	}
}

func TestParseStep(t *testing.T) {
	tests := []struct {
		desc    string
		want    time.Duration
		wantErr bool
	}{
		{"anl", 0, false},
		{"6 hour fcst", 6 * time.Hour, false},
		{"384 hour fcst", 384 * time.Hour, false},
		{"0-6 hour acc fcst", 6 * time.Hour, false},
		{"0-3 hour ave fcst", 3 * time.Hour, false},
		{"30 min fcst", 30 * time.Minute, false},
		{"2 day fcst", 48 * time.Hour, false},
		{"surface", 0, true},
		{"", 0, true},
	}

	for _, tc := range tests {
		got, err := ParseStep(tc.desc)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseStep(%q): expected error", tc.desc)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseStep(%q) failed: %v", tc.desc, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseStep(%q) = %v, want %v", tc.desc, got, tc.want)
		}
	}
}
