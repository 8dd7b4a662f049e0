// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package middleware

import (
	"net/http"
	"time"

	"github.com/geodepot/geodepot/internal/metrics"
)

// PrometheusMetrics records request counts, latency, and in-flight gauge
// for every request passing through it.
func PrometheusMetrics(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metrics.TrackActiveRequest(true)
		defer metrics.TrackActiveRequest(false)

		start := time.Now()

		wrapper := &statusResponseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next(wrapper, r)

		metrics.RecordAPIRequest(r.Method, r.URL.Path, wrapper.statusCode, time.Since(start))
	}
}

// statusResponseWriter wraps http.ResponseWriter to capture the status code.
type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
	bytes      int64
}

// WriteHeader captures the status code.
func (rw *statusResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Write tracks the response size.
func (rw *statusResponseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += int64(n)
	return n, err
}
