// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package stac

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(baseURL, 5*time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"id":"test-catalog","title":"Test","stac_version":"1.0.0","links":[]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	cat, err := client.Ping(context.Background())
	if err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if cat.ID != "test-catalog" {
		t.Errorf("expected catalog id test-catalog, got %q", cat.ID)
	}
}

func TestPingRejectsNonCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"message":"not a catalog"}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	if _, err := client.Ping(context.Background()); err == nil {
		t.Error("expected error for response without catalog id")
	}
}

func TestCollectionsPagination(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Both pages share the /collections path; only the query differs.
		if r.URL.RawQuery == "page=2" {
			fmt.Fprint(w, `{"collections":[{"id":"second"}],"links":[]}`)
			return
		}
		fmt.Fprintf(w, `{"collections":[{"id":"first"}],"links":[{"rel":"next","href":"%s/collections?page=2"}]}`, srv.URL)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	cols, err := client.Collections(context.Background())
	if err != nil {
		t.Fatalf("Collections failed: %v", err)
	}
	if len(cols) != 2 {
		t.Fatalf("expected 2 collections across pages, got %d", len(cols))
	}
	if cols[0].ID != "first" || cols[1].ID != "second" {
		t.Errorf("unexpected collection order: %q, %q", cols[0].ID, cols[1].ID)
	}
}

func TestCollectionNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":"NotFound"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Collection(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestItemsRespectsLimit(t *testing.T) {
	var pages atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages.Add(1)
		fmt.Fprintf(w, `{"type":"FeatureCollection","features":[{"id":"a"},{"id":"b"}],"links":[{"rel":"next","href":"%s/next"}]}`, srv.URL)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	items, err := client.Items(context.Background(), "col", ItemsParams{Limit: 3})
	if err != nil {
		t.Fatalf("Items failed: %v", err)
	}
	if len(items) != 3 {
		t.Errorf("expected 3 items after limit truncation, got %d", len(items))
	}
	if got := pages.Load(); got != 2 {
		t.Errorf("expected 2 page fetches, got %d", got)
	}
}

func TestItemsPaginationGuard(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Always advertises another page.
		fmt.Fprintf(w, `{"type":"FeatureCollection","features":[{"id":"x"}],"links":[{"rel":"next","href":"%s/again"}]}`, srv.URL)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Items(context.Background(), "col", ItemsParams{Limit: 100000})
	if !errors.Is(err, ErrTooManyPages) {
		t.Errorf("expected ErrTooManyPages on unbounded pagination, got %v", err)
	}
}

func TestSearchPOSTFallbackToGET(t *testing.T) {
	var gotGET atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			http.NotFound(w, r)
			return
		}
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		gotGET.Store(true)
		if got := r.URL.Query().Get("collections"); got != "sentinel-2" {
			t.Errorf("expected collections=sentinel-2 in GET query, got %q", got)
		}
		fmt.Fprint(w, `{"type":"FeatureCollection","features":[{"id":"s2-item"}],"links":[]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	items, err := client.Search(context.Background(), SearchRequest{
		Collections: []string{"sentinel-2"},
		Limit:       10,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if !gotGET.Load() {
		t.Error("expected fallback to GET after 405 on POST")
	}
	if len(items) != 1 || items[0].ID != "s2-item" {
		t.Errorf("unexpected search result: %+v", items)
	}
}

func TestSearchPOSTPagination(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}

		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding search body: %v", err)
		}

		// Page 2 is requested via a merged continuation token.
		if body["token"] == "page2" {
			if body["collections"] == nil {
				t.Error("merged body lost the original collections filter")
			}
			fmt.Fprint(w, `{"type":"FeatureCollection","features":[{"id":"p2"}],"links":[]}`)
			return
		}
		fmt.Fprintf(w, `{"type":"FeatureCollection","features":[{"id":"p1"}],"links":[{"rel":"next","href":"%s/search","method":"POST","merge":true,"body":{"token":"page2"}}]}`, srv.URL)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	items, err := client.Search(context.Background(), SearchRequest{Collections: []string{"c"}, Limit: 5})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items across search pages, got %d", len(items))
	}
	if items[0].ID != "p1" || items[1].ID != "p2" {
		t.Errorf("unexpected page order: %q, %q", items[0].ID, items[1].ID)
	}
}

func TestNextSearchBody(t *testing.T) {
	req := SearchRequest{Collections: []string{"c"}, Limit: 5}

	// No body repeats the request.
	got, err := nextSearchBody(req, &Link{Rel: "next", Href: "/search"})
	if err != nil {
		t.Fatalf("nextSearchBody: %v", err)
	}
	if _, ok := got.(SearchRequest); !ok {
		t.Errorf("expected the original request back, got %T", got)
	}

	// Without merge the link body replaces the request.
	got, err = nextSearchBody(req, &Link{Body: map[string]interface{}{"token": "t"}})
	if err != nil {
		t.Fatalf("nextSearchBody: %v", err)
	}
	replaced, ok := got.(map[string]interface{})
	if !ok || replaced["collections"] != nil {
		t.Errorf("expected a bare replacement body, got %#v", got)
	}

	// Merge overlays the token on the original fields.
	got, err = nextSearchBody(req, &Link{Merge: true, Body: map[string]interface{}{"token": "t"}})
	if err != nil {
		t.Fatalf("nextSearchBody: %v", err)
	}
	merged, ok := got.(map[string]interface{})
	if !ok {
		t.Fatalf("expected a merged map, got %T", got)
	}
	if merged["token"] != "t" || merged["collections"] == nil {
		t.Errorf("merge lost a field: %#v", merged)
	}
}

func TestRetryOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"id":"cat","links":[]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	client.retryBaseDelay = time.Millisecond

	if _, err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed after retry: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("expected 2 requests (429 then success), got %d", got)
	}
}

func TestRetryCancelledByContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := newTestClient(t, srv.URL)
	_, err := client.Ping(ctx)
	if err == nil {
		t.Fatal("expected error when context expires during retry wait")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context deadline error, got %v", err)
	}
}

func TestCircuitBreakerPassthrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"cat","links":[]}`)
	}))
	defer srv.Close()

	cbc := NewCircuitBreakerClient(newTestClient(t, srv.URL))
	cat, err := cbc.Ping(context.Background())
	if err != nil {
		t.Fatalf("Ping through breaker failed: %v", err)
	}
	if cat.ID != "cat" {
		t.Errorf("expected catalog id cat, got %q", cat.ID)
	}
}
