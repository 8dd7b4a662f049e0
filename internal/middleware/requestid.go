// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

// Package middleware provides HTTP middleware shared by the Geodepot
// services: request identification, access logging, and Prometheus
// instrumentation.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/geodepot/geodepot/internal/logging"
)

type contextKey string

const RequestIDKey contextKey = "request_id"

// RequestID assigns a unique ID to each request, honoring an X-Request-ID
// header supplied by an upstream proxy. The ID is echoed on the response and
// attached to the request context for logging.
func RequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		ctx = logging.ContextWithRequestID(ctx, requestID)

		next(w, r.WithContext(ctx))
	}
}

// GetRequestID extracts the request ID from context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
