// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const runIndexPage = `<html><body><pre>
<a href="../">..</a>
<a href="gfs.20260828/">gfs.20260828/</a>
<a href="gfs.20260829/">gfs.20260829/</a>
<a href="README.txt">README.txt</a>
</pre></body></html>`

const fileIndexPage = `<html><body><pre>
<a href="gfs.t00z.pgrb2.0p25.f006">gfs.t00z.pgrb2.0p25.f006</a>
<a href="gfs.t00z.pgrb2.0p25.f000">gfs.t00z.pgrb2.0p25.f000</a>
<a href="gfs.t00z.pgrb2.0p25.f000.idx">gfs.t00z.pgrb2.0p25.f000.idx</a>
<a href="gfs.t00z.pgrb2.0p25.f012">gfs.t00z.pgrb2.0p25.f012</a>
</pre></body></html>`

func testSource(baseURL string) *Source {
	return &Source{
		Name:        "gfs",
		BaseURL:     baseURL,
		RunPattern:  `^gfs\.(?P<year>\d{4})(?P<month>\d{2})(?P<day>\d{2})$`,
		FilePattern: `^gfs\.t00z\.pgrb2\.0p25\.f(?P<fcstHour>\d{3})$`,
	}
}

func TestDiscoverRuns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, runIndexPage)
	}))
	defer srv.Close()

	runs, err := testSource(srv.URL).DiscoverRuns(context.Background(), srv.Client())
	if err != nil {
		t.Fatalf("DiscoverRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}

	// Newest first.
	if runs[0].ID != "gfs.20260829" {
		t.Errorf("expected newest run first, got %q", runs[0].ID)
	}
	want := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	if !runs[0].RefTime.Equal(want) {
		t.Errorf("expected reference time %v, got %v", want, runs[0].RefTime)
	}
	if runs[0].URL.String() != srv.URL+"/gfs.20260829/" {
		t.Errorf("run URL not resolved against base: %s", runs[0].URL)
	}
}

func TestDiscoverRunsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>nothing here</body></html>")
	}))
	defer srv.Close()

	_, err := testSource(srv.URL).DiscoverRuns(context.Background(), srv.Client())
	if !errors.Is(err, ErrNoRuns) {
		t.Errorf("expected ErrNoRuns, got %v", err)
	}
}

func TestRunFiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, runIndexPage)
		default:
			fmt.Fprint(w, fileIndexPage)
		}
	}))
	defer srv.Close()

	runs, err := testSource(srv.URL).DiscoverRuns(context.Background(), srv.Client())
	if err != nil {
		t.Fatalf("DiscoverRuns failed: %v", err)
	}

	files, err := runs[0].Files(context.Background(), srv.Client())
	if err != nil {
		t.Fatalf("Files failed: %v", err)
	}

	// The .idx sidecar must not match, and files come in step order.
	if len(files) != 3 {
		t.Fatalf("expected 3 files, got %d", len(files))
	}
	wantSteps := []time.Duration{0, 6 * time.Hour, 12 * time.Hour}
	for i, want := range wantSteps {
		if files[i].Step != want {
			t.Errorf("file %d: step %v, want %v", i, files[i].Step, want)
		}
	}

	idxURL := files[0].InventoryURL()
	if idxURL.Path != "/gfs.20260829/gfs.t00z.pgrb2.0p25.f000.idx" {
		t.Errorf("unexpected inventory URL path: %s", idxURL.Path)
	}
}
