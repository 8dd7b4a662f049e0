// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package gribidx

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestStoreBackupRestore(t *testing.T) {
	src, err := OpenStore("")
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	defer src.Close()

	ctx := context.Background()
	ref := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	records := []Record{
		{VarName: "t", Level: "500 mb", RefTime: ref, ValidTime: ref, URI: "gs://b/f000", Offset: 0, Length: 100},
		{VarName: "tp", Level: "surface", RefTime: ref, Step: 6 * time.Hour, ValidTime: ref.Add(6 * time.Hour), URI: "gs://b/f006", Offset: 200, Length: 80},
	}
	if err := src.Put(ctx, records); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	var buf bytes.Buffer
	if _, err := src.Backup(&buf); err != nil {
		t.Fatalf("Backup failed: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("backup stream is empty")
	}

	dst, err := OpenStore("")
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	defer dst.Close()

	if err := dst.Restore(&buf); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	count, err := dst.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != len(records) {
		t.Fatalf("restored %d records, want %d", count, len(records))
	}

	got, err := dst.Get(ctx, "tp", ref.Add(6*time.Hour), "surface")
	if err != nil {
		t.Fatalf("Get after restore failed: %v", err)
	}
	if got.URI != "gs://b/f006" || got.Offset != 200 || got.Length != 80 {
		t.Errorf("restored record mismatch: %+v", got)
	}
}
