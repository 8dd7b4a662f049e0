// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/alecthomas/kong"

	"github.com/geodepot/geodepot/internal/fetch"
	"github.com/geodepot/geodepot/internal/gribidx"
	"github.com/geodepot/geodepot/internal/stac"
)

func TestParseGridShape(t *testing.T) {
	tests := []struct {
		in      string
		want    []int
		wantErr bool
	}{
		{"721x1440", []int{721, 1440}, false},
		{"100", []int{100}, false},
		{"10x20x30", []int{10, 20, 30}, false},
		{"", nil, true},
		{"10x-4", nil, true},
		{"10xabc", nil, true},
	}
	for _, tc := range tests {
		got, err := parseGridShape(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseGridShape(%q) = %v, want error", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseGridShape(%q): %v", tc.in, err)
			continue
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("parseGridShape(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("a very long description indeed", 10); got != "a very ..." {
		t.Errorf("truncate long = %q", got)
	}

	// The cut must land on a rune boundary, not inside a multibyte
	// character.
	got := truncate("éééééééééé", 10)
	if !utf8.ValidString(got) {
		t.Errorf("truncate split a rune: %q", got)
	}
}

func TestBuildFromIdxFile(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "gfs.t00z.pgrb2.0p25.f006")
	idxPath := dataPath + ".idx"

	if err := os.WriteFile(dataPath, make([]byte, 300), 0o644); err != nil {
		t.Fatal(err)
	}
	idx := "1:0:d=2026082900:TMP:500 mb:6 hour fcst:\n" +
		"2:100:d=2026082900:PRMSL:mean sea level:6 hour fcst:\n"
	if err := os.WriteFile(idxPath, []byte(idx), 0o644); err != nil {
		t.Fatal(err)
	}

	mapping, err := gribidx.NewMapping([]gribidx.MappingEntry{
		{Parameter: "TMP", Level: "500 mb", VarName: "t"},
	})
	if err != nil {
		t.Fatal(err)
	}

	records, err := buildFromIdxFile(idxPath, mapping, "")
	if err != nil {
		t.Fatalf("buildFromIdxFile: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1 (PRMSL unmapped)", len(records))
	}
	if records[0].URI != dataPath {
		t.Errorf("URI = %q, want %q", records[0].URI, dataPath)
	}
	if records[0].Offset != 0 || records[0].Length != 100 {
		t.Errorf("byte range = %d+%d, want 0+100", records[0].Offset, records[0].Length)
	}

	rebased, err := buildFromIdxFile(idxPath, mapping, "https://example.com/gfs/")
	if err != nil {
		t.Fatalf("buildFromIdxFile rebased: %v", err)
	}
	want := "https://example.com/gfs/gfs.t00z.pgrb2.0p25.f006"
	if rebased[0].URI != want {
		t.Errorf("rebased URI = %q, want %q", rebased[0].URI, want)
	}
}

func TestBuildFromIdxFileRequiresDataFile(t *testing.T) {
	dir := t.TempDir()
	idxPath := filepath.Join(dir, "orphan.grib2.idx")
	if err := os.WriteFile(idxPath, []byte("1:0:d=2026082900:TMP:500 mb:anl:\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	mapping, _ := gribidx.NewMapping(nil)
	if _, err := buildFromIdxFile(idxPath, mapping, ""); err == nil {
		t.Error("expected error when the data file is missing")
	}
}

func TestPrintItemDetail(t *testing.T) {
	item := &stac.Item{
		ID:         "S2A_demo",
		Collection: "sentinel-2-l2a",
		BBox:       []float64{-1, -1, 1, 1},
		Properties: map[string]interface{}{"datetime": "2026-08-29T10:00:00Z"},
		Assets: map[string]stac.Asset{
			"visual": {Href: "https://example.com/visual.tif", Type: "image/tiff"},
			"B04":    {Href: "https://example.com/B04.tif", Type: "image/tiff"},
		},
	}

	var buf bytes.Buffer
	if err := printItemDetail(&buf, item); err != nil {
		t.Fatalf("printItemDetail failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"S2A_demo", "sentinel-2-l2a", "2026-08-29T10:00:00Z", "visual", "B04"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	// Asset rows come out sorted by key.
	if strings.Index(out, "B04") > strings.Index(out, "visual") {
		t.Error("assets not sorted by key")
	}
}

func TestPrintCollectionSummary(t *testing.T) {
	start := "2015-06-27T10:25:31Z"
	collections := []stac.Collection{
		{
			ID: "sentinel-2-l2a",
			Extent: stac.Extent{
				Spatial:  stac.SpatialExtent{BBox: [][]float64{{-180, -90, 180, 90}}},
				Temporal: stac.TemporalExtent{Interval: [][]*string{{&start, nil}}},
			},
		},
	}

	var buf bytes.Buffer
	if err := printCollectionSummary(&buf, collections); err != nil {
		t.Fatalf("printCollectionSummary failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "1 collections") {
		t.Errorf("missing count line:\n%s", out)
	}
	if !strings.Contains(out, "[2015-06-27T10:25:31Z, open]") {
		t.Errorf("missing interval line:\n%s", out)
	}
}

func TestCLIGrammarBindsSyncRunFlag(t *testing.T) {
	parser, err := kong.New(&CLI, kong.Name("geodepot"))
	if err != nil {
		t.Fatalf("building parser failed: %v", err)
	}

	_, err = parser.Parse([]string{
		"fetch", "sync",
		"--base-url", "https://example.com/gfs/",
		"--run-pattern", `gfs\.(?P<year>\d{4})`,
		"--file-pattern", `f(?P<fcstHour>\d{3})$`,
		"--run", "gfs.20260829/00",
		"--dest", t.TempDir(),
	})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if CLI.Fetch.Sync.RunID != "gfs.20260829/00" {
		t.Errorf("RunID = %q, want the --run value", CLI.Fetch.Sync.RunID)
	}
}

func TestFilterRuns(t *testing.T) {
	runs := []*fetch.Run{{ID: "a"}, {ID: "b"}, {ID: "a"}}
	kept := filterRuns(runs, "a")
	if len(kept) != 2 {
		t.Fatalf("kept %d runs, want 2", len(kept))
	}
	for _, run := range kept {
		if run.ID != "a" {
			t.Errorf("kept run %q", run.ID)
		}
	}
}
