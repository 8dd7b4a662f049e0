// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package objstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, "test-bucket", 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestGetWholeObject(t *testing.T) {
	payload := []byte("GeoTIFF bytes here")
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/test-bucket/dem/cog.tif" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "image/tiff")
		_, _ = w.Write(payload)
	}))

	body, info, err := c.Get(context.Background(), "dem/cog.tif")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer body.Close()

	data, _ := io.ReadAll(body)
	if !bytes.Equal(data, payload) {
		t.Errorf("body = %q, want %q", data, payload)
	}
	if info.ContentType != "image/tiff" {
		t.Errorf("content type = %q", info.ContentType)
	}
}

func TestGetNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	_, _, err := c.Get(context.Background(), "missing.tif")
	if !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestHead(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("method = %s, want HEAD", r.Method)
		}
		w.Header().Set("Content-Length", "12345")
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
	}))

	info, err := c.Head(context.Background(), "gfs.t00z.pgrb2.0p25.f000")
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}
	if info.Size != 12345 {
		t.Errorf("size = %d, want 12345", info.Size)
	}
}

func TestGetRangeSingle(t *testing.T) {
	object := []byte("0123456789abcdef")
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Range"); got != "bytes=4-7" {
			t.Errorf("Range header = %q", got)
		}
		w.Header().Set("Content-Range", "bytes 4-7/16")
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(object[4:8])
	}))

	rr, err := c.GetRange(context.Background(), "obj", []ByteRange{{First: 4, Last: 7}})
	if err != nil {
		t.Fatalf("GetRange failed: %v", err)
	}
	defer rr.Close()

	var buf bytes.Buffer
	if _, err := rr.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	if buf.String() != "4567" {
		t.Errorf("range body = %q, want 4567", buf.String())
	}
}

func TestGetRangeMultipart(t *testing.T) {
	object := []byte("0123456789abcdef")
	ranges := []ByteRange{{First: 0, Last: 3}, {First: 8, Last: 11}}

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Range"); got != "bytes=0-3,8-11" {
			t.Errorf("Range header = %q", got)
		}

		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		for _, br := range ranges {
			part, _ := mw.CreatePart(textproto.MIMEHeader{
				"Content-Range": {fmt.Sprintf("bytes %d-%d/16", br.First, br.Last)},
			})
			_, _ = part.Write(object[br.First : br.Last+1])
		}
		_ = mw.Close()

		w.Header().Set("Content-Type", "multipart/byteranges; boundary="+mw.Boundary())
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(body.Bytes())
	}))

	rr, err := c.GetRange(context.Background(), "obj", ranges)
	if err != nil {
		t.Fatalf("GetRange failed: %v", err)
	}
	defer rr.Close()

	var buf bytes.Buffer
	n, err := rr.WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	if n != 8 {
		t.Errorf("bytes written = %d, want 8", n)
	}
	if buf.String() != "012389ab" {
		t.Errorf("assembled body = %q, want 012389ab", buf.String())
	}
}

func TestGetRangeSlices200WholeObject(t *testing.T) {
	object := []byte("0123456789abcdef")
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Ignores the Range header and serves everything.
		_, _ = w.Write(object)
	}))

	rr, err := c.GetRange(context.Background(), "obj",
		[]ByteRange{{First: 4, Last: 7}, {First: 12, Last: 15}})
	if err != nil {
		t.Fatalf("GetRange failed: %v", err)
	}
	defer rr.Close()

	var buf bytes.Buffer
	n, err := rr.WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	if n != 8 {
		t.Errorf("bytes written = %d, want 8", n)
	}
	if buf.String() != "4567cdef" {
		t.Errorf("sliced body = %q, want 4567cdef", buf.String())
	}
}

func TestGetRangeWholeObjectRejectsOverlap(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("0123456789"))
	}))

	rr, err := c.GetRange(context.Background(), "obj",
		[]ByteRange{{First: 4, Last: 7}, {First: 0, Last: 3}})
	if err != nil {
		t.Fatalf("GetRange failed: %v", err)
	}
	defer rr.Close()

	if _, err := rr.WriteTo(io.Discard); err == nil {
		t.Error("expected error for out-of-order ranges in a 200 body")
	}
}

func TestList(t *testing.T) {
	page := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/storage/v1/b/test-bucket/o" {
			t.Errorf("listing path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("prefix"); got != "cogs/" {
			t.Errorf("prefix = %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		if page == 0 {
			page++
			fmt.Fprint(w, `{"items":[{"name":"cogs/b.tif","size":"2"}],"nextPageToken":"t1"}`)
			return
		}
		if got := r.URL.Query().Get("pageToken"); got != "t1" {
			t.Errorf("pageToken = %q", got)
		}
		fmt.Fprint(w, `{"items":[{"name":"cogs/a.tif","size":"1"}]}`)
	}))

	items, err := c.List(context.Background(), "cogs/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].Name != "cogs/a.tif" || items[1].Name != "cogs/b.tif" {
		t.Errorf("items not sorted by name: %v", items)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New("", "", time.Second); !errors.Is(err, ErrNoBucket) {
		t.Errorf("expected ErrNoBucket, got %v", err)
	}
}

func TestTokenAttached(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(srv.URL, "b", time.Second, WithToken("secret-token"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Head(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}
