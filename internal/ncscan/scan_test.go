// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package ncscan

import (
	"os"
	"path/filepath"
	"testing"
)

func TestScanMissingFile(t *testing.T) {
	if _, err := Scan(filepath.Join(t.TempDir(), "absent.nc")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestScanRejectsNonNetCDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-netcdf.nc")
	if err := os.WriteFile(path, []byte("GRIB this is not netcdf"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if _, err := Scan(path); err == nil {
		t.Error("expected error for non-NetCDF content")
	}
}

type fakeAttrs struct {
	keys []string
	vals map[string]interface{}
}

func (f fakeAttrs) Keys() []string                        { return f.keys }
func (f fakeAttrs) Get(k string) (interface{}, bool)      { v, ok := f.vals[k]; return v, ok }
func (f fakeAttrs) GetType(k string) (string, bool)       { return "", false }
func (f fakeAttrs) GetGoType(k string) (string, bool)     { return "", false }

func TestAttrMap(t *testing.T) {
	attrs := fakeAttrs{
		keys: []string{"units", "long_name"},
		vals: map[string]interface{}{"units": "K", "long_name": "2 metre temperature"},
	}

	got := attrMap(attrs)
	if len(got) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(got))
	}
	if got["units"] != "K" {
		t.Errorf("units = %v, want K", got["units"])
	}

	if attrMap(nil) != nil {
		t.Error("nil attributes should map to nil")
	}
	if attrMap(fakeAttrs{}) != nil {
		t.Error("empty attributes should map to nil")
	}
}

func TestCoordsMissingFile(t *testing.T) {
	if _, err := Coords(filepath.Join(t.TempDir(), "absent.nc"), "latitude"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCoordsRejectsNonNetCDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-netcdf.nc")
	if err := os.WriteFile(path, []byte("plain text"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if _, err := Coords(path, "latitude"); err == nil {
		t.Error("expected error for non-NetCDF content")
	}
}
