// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestIDGenerated(t *testing.T) {
	var seen string
	handler := RequestID(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/cog/test.tif", nil))

	if seen == "" {
		t.Error("request ID not stored in context")
	}
	if got := rec.Header().Get("X-Request-ID"); got != seen {
		t.Errorf("response header X-Request-ID = %q, context has %q", got, seen)
	}
}

func TestRequestIDPassthrough(t *testing.T) {
	handler := RequestID(func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "upstream-id")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "upstream-id" {
		t.Errorf("upstream request ID not preserved: got %q", got)
	}
}

func TestStatusResponseWriterCapturesCode(t *testing.T) {
	handler := PrometheusMetrics(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing"))
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRecoverTurnsPanicInto500(t *testing.T) {
	handler := Recover(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestAccessLogPassesThrough(t *testing.T) {
	handler := AccessLog(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", rec.Code)
	}
}
