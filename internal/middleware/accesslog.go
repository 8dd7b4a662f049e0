// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package middleware

import (
	"net/http"
	"time"

	"github.com/geodepot/geodepot/internal/logging"
)

// AccessLog emits a structured log line per completed request. Responses
// below 400 log at debug so tile traffic does not flood the output.
func AccessLog(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &statusResponseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next(wrapper, r)

		logger := logging.Ctx(r.Context())
		event := logger.Debug()
		if wrapper.statusCode >= http.StatusInternalServerError {
			event = logger.Error()
		} else if wrapper.statusCode >= http.StatusBadRequest {
			event = logger.Warn()
		}

		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Int64("bytes", wrapper.bytes).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("request")
	}
}

// Recover converts handler panics into 500 responses instead of tearing
// down the connection.
func Recover(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.Ctx(r.Context()).Error().
					Interface("panic", rec).
					Str("path", r.URL.Path).
					Msg("handler panic recovered")
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()

		next(w, r)
	}
}
