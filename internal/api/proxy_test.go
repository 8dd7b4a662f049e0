// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package api

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/geodepot/geodepot/internal/config"
	"github.com/geodepot/geodepot/internal/objstore"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			CacheTTL:        time.Minute,
			CacheMaxEntries: 64,
		},
		Upstream: config.UpstreamConfig{
			Timeout:    5 * time.Second,
			HealthPath: "/health",
		},
	}
}

// testObjectBody is deterministic so range assertions can slice it.
func testObjectBody() []byte {
	body := make([]byte, 1000)
	for i := range body {
		body[i] = byte('a' + i%26)
	}
	return body
}

func storageServer(t *testing.T) *httptest.Server {
	t.Helper()
	body := testObjectBody()
	modTime := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	mux := http.NewServeMux()
	mux.HandleFunc("/landsat/scenes/demo.tif", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/tiff")
		http.ServeContent(w, r, "", modTime, bytes.NewReader(body))
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func newTestRouter(t *testing.T, cfg *config.Config, opts ...HandlerOption) http.Handler {
	t.Helper()
	h, err := NewHandler(cfg, opts...)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	return NewRouter(h, &cfg.Server)
}

func cogRouter(t *testing.T) http.Handler {
	t.Helper()
	ts := storageServer(t)
	sc, err := objstore.New(ts.URL, "landsat", time.Minute)
	if err != nil {
		t.Fatalf("objstore.New: %v", err)
	}
	return newTestRouter(t, testConfig(), WithStorage(sc))
}

func TestCogObjectWholeObject(t *testing.T) {
	router := cogRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cog/scenes/demo.tif", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Accept-Ranges"); got != "bytes" {
		t.Errorf("Accept-Ranges = %q, want bytes", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "image/tiff" {
		t.Errorf("Content-Type = %q, want image/tiff", got)
	}
	if got := rec.Header().Get("Cache-Control"); !strings.Contains(got, "immutable") {
		t.Errorf("Cache-Control = %q, want immutable", got)
	}
	if !bytes.Equal(rec.Body.Bytes(), testObjectBody()) {
		t.Errorf("body mismatch: got %d bytes", rec.Body.Len())
	}
}

func TestCogObjectRangeProxy(t *testing.T) {
	router := cogRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/cog/scenes/demo.tif", nil)
	req.Header.Set("Range", "bytes=100-199")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 100-199/1000" {
		t.Errorf("Content-Range = %q", got)
	}
	if !bytes.Equal(rec.Body.Bytes(), testObjectBody()[100:200]) {
		t.Errorf("range body mismatch")
	}
}

func TestCogObjectSuffixRange(t *testing.T) {
	router := cogRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/cog/scenes/demo.tif", nil)
	req.Header.Set("Range", "bytes=-100")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 900-999/1000" {
		t.Errorf("Content-Range = %q", got)
	}
}

func TestCogObjectHead(t *testing.T) {
	router := cogRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/cog/scenes/demo.tif", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Length"); got != "1000" {
		t.Errorf("Content-Length = %q, want 1000", got)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("HEAD response has %d body bytes", rec.Body.Len())
	}
}

func TestCogObjectRangeBeyondSize(t *testing.T) {
	router := cogRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/cog/scenes/demo.tif", nil)
	req.Header.Set("Range", "bytes=5000-")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("status = %d, want 416", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes */1000" {
		t.Errorf("Content-Range = %q", got)
	}

	var er ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if er.Code != CodeRangeInvalid {
		t.Errorf("code = %q, want %q", er.Code, CodeRangeInvalid)
	}
}

func TestCogObjectNotFound(t *testing.T) {
	router := cogRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cog/scenes/missing.tif", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var er ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if er.Code != CodeNotFound {
		t.Errorf("code = %q, want %q", er.Code, CodeNotFound)
	}
}

func TestCogObjectRejectsTraversal(t *testing.T) {
	router := cogRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/cog/scenes/../secrets.txt", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestValidateObjectPath(t *testing.T) {
	valid := []string{"a.tif", "scenes/demo.tif", "deep/l1/l2/file.grib2"}
	for _, p := range valid {
		if err := validateObjectPath(p); err != nil {
			t.Errorf("validateObjectPath(%q) = %v, want nil", p, err)
		}
	}

	invalid := []string{"", "/abs/path", "../escape", "a/../../b", "scenes/../../x"}
	for _, p := range invalid {
		if err := validateObjectPath(p); err == nil {
			t.Errorf("validateObjectPath(%q) = nil, want error", p)
		}
	}
}

func TestParseRangeHeader(t *testing.T) {
	tests := []struct {
		header  string
		want    objstore.ByteRange
		wantErr bool
	}{
		{"bytes=0-99", objstore.ByteRange{First: 0, Last: 99}, false},
		{"bytes=100-", objstore.ByteRange{First: 100, Last: 999}, false},
		{"bytes=-50", objstore.ByteRange{First: 950, Last: 999}, false},
		{"bytes=-5000", objstore.ByteRange{First: 0, Last: 999}, false},
		{"bytes=900-1500", objstore.ByteRange{First: 900, Last: 999}, false},
		{"bytes=1000-", objstore.ByteRange{}, true},
		{"bytes=50-10", objstore.ByteRange{}, true},
		{"items=0-10", objstore.ByteRange{}, true},
		{"bytes=abc", objstore.ByteRange{}, true},
		{"bytes=-0", objstore.ByteRange{}, true},
	}

	for _, tc := range tests {
		got, err := parseRangeHeader(tc.header, 1000)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseRangeHeader(%q) = %+v, want error", tc.header, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseRangeHeader(%q): %v", tc.header, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseRangeHeader(%q) = %+v, want %+v", tc.header, got, tc.want)
		}
	}
}

func TestTileProxyCaches(t *testing.T) {
	var upstreamHits int64
	tile := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a}

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&upstreamHits, 1)
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=300")
		_, _ = w.Write(tile)
	}))
	t.Cleanup(upstream.Close)

	cfg := testConfig()
	cfg.Upstream.RasterTiles = upstream.URL
	router := newTestRouter(t, cfg)

	for i, wantCache := range []string{"MISS", "HIT"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/raster/8/42/87.png", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, rec.Code)
		}
		if got := rec.Header().Get("X-Cache"); got != wantCache {
			t.Errorf("request %d: X-Cache = %q, want %q", i, got, wantCache)
		}
		if got := rec.Header().Get("Cache-Control"); got != "public, max-age=300" {
			t.Errorf("request %d: Cache-Control = %q", i, got)
		}
		if !bytes.Equal(rec.Body.Bytes(), tile) {
			t.Errorf("request %d: body mismatch", i)
		}
	}

	if n := atomic.LoadInt64(&upstreamHits); n != 1 {
		t.Errorf("upstream hits = %d, want 1", n)
	}
}

func TestTileProxyDoesNotCacheErrors(t *testing.T) {
	var upstreamHits int64
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&upstreamHits, 1)
		http.Error(w, "tile missing", http.StatusNotFound)
	}))
	t.Cleanup(upstream.Close)

	cfg := testConfig()
	cfg.Upstream.VectorTiles = upstream.URL
	router := newTestRouter(t, cfg)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/vector/3/1/2.pbf", nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("request %d: status = %d, want 404", i, rec.Code)
		}
	}

	if n := atomic.LoadInt64(&upstreamHits); n != 2 {
		t.Errorf("upstream hits = %d, want 2 (errors must not be cached)", n)
	}
}

func TestTileProxyUnconfiguredUpstream(t *testing.T) {
	router := newTestRouter(t, testConfig())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/raster/1/0/0.png", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestTileProxyForwardsQuery(t *testing.T) {
	var gotQuery string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = io.WriteString(w, "ok")
	}))
	t.Cleanup(upstream.Close)

	cfg := testConfig()
	cfg.Upstream.RasterTiles = upstream.URL
	router := newTestRouter(t, cfg)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/raster/1/0/0.png?style=dark", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotQuery != "style=dark" {
		t.Errorf("upstream query = %q, want style=dark", gotQuery)
	}
}
