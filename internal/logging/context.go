// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// GenerateRequestID creates a new unique request ID.
func GenerateRequestID() string {
	return uuid.New().String()
}

// ContextWithRequestID returns a new context with the given request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// Ctx returns a logger with the request ID from context attached when present.
//
//	logging.Ctx(ctx).Info().Msg("proxying object")
func Ctx(ctx context.Context) *zerolog.Logger {
	logger := Logger()
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		logger = logger.With().Str("request_id", requestID).Logger()
	}
	return &logger
}
