// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package validation

import (
	"strings"
	"testing"
)

func TestParseBBox(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    [4]float64
		wantErr bool
	}{
		{"valid", "-120.5,30,-100,45.25", [4]float64{-120.5, 30, -100, 45.25}, false},
		{"valid with spaces", " -10, -10, 10, 10 ", [4]float64{-10, -10, 10, 10}, false},
		{"global", "-180,-90,180,90", [4]float64{-180, -90, 180, 90}, false},
		{"too few values", "1,2,3", [4]float64{}, true},
		{"too many values", "1,2,3,4,5", [4]float64{}, true},
		{"not numeric", "a,b,c,d", [4]float64{}, true},
		{"longitude out of range", "-200,0,10,10", [4]float64{}, true},
		{"latitude out of range", "0,-95,10,10", [4]float64{}, true},
		{"south above north", "0,50,10,40", [4]float64{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBBox(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseBBox(%q) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseBBox(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseBBox(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidDatetime(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"2024-01-15T00:00:00Z", true},
		{"2024-01-15T00:00:00+02:00", true},
		{"2024-01-01T00:00:00Z/2024-02-01T00:00:00Z", true},
		{"../2024-02-01T00:00:00Z", true},
		{"2024-01-01T00:00:00Z/..", true},
		{"../..", false},
		{"2024-01-15", false},
		{"", false},
		{"not-a-date", false},
	}

	for _, tt := range tests {
		if got := ValidDatetime(tt.input); got != tt.want {
			t.Errorf("ValidDatetime(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestValidateStructTags(t *testing.T) {
	type itemsRequest struct {
		Limit    int    `validate:"min=1,max=1000"`
		BBox     string `validate:"omitempty,bbox"`
		Datetime string `validate:"omitempty,stac_datetime"`
	}

	if err := ValidateStruct(&itemsRequest{Limit: 10, BBox: "-10,-10,10,10"}); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}

	err := ValidateStruct(&itemsRequest{Limit: 0, BBox: "bogus"})
	if err == nil {
		t.Fatal("invalid request accepted")
	}
	if len(err.Errors()) != 2 {
		t.Errorf("expected 2 field errors, got %d: %v", len(err.Errors()), err)
	}
	if !strings.Contains(err.Error(), "west,south,east,north") {
		t.Errorf("bbox message missing from: %v", err)
	}
}
