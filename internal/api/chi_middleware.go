// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

// Package api provides the HTTP surface: health probes, the COG byte-range
// proxy, tile proxying with caching, and operational status.
package api

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/geodepot/geodepot/internal/middleware"
)

// ChiMiddlewareConfig holds configuration for the middleware factories.
type ChiMiddlewareConfig struct {
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	CORSMaxAge         int

	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool
}

// DefaultChiMiddlewareConfig returns a restrictive default. CORS origins are
// empty so cross-origin access must be configured explicitly.
func DefaultChiMiddlewareConfig() *ChiMiddlewareConfig {
	return &ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{},
		CORSAllowedMethods: []string{"GET", "HEAD", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "Range", "If-Match", "If-None-Match"},
		CORSMaxAge:         86400,

		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
	}
}

// ChiMiddleware provides Chi-compatible middleware factories built on the
// go-chi ecosystem.
type ChiMiddleware struct {
	config *ChiMiddlewareConfig
	cors   func(http.Handler) http.Handler
}

// NewChiMiddleware creates the middleware factory.
func NewChiMiddleware(config *ChiMiddlewareConfig) *ChiMiddleware {
	if config == nil {
		config = DefaultChiMiddlewareConfig()
	}

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins: config.CORSAllowedOrigins,
		AllowedMethods: config.CORSAllowedMethods,
		AllowedHeaders: config.CORSAllowedHeaders,
		ExposedHeaders: []string{"Content-Range", "Accept-Ranges", "Content-Length"},
		MaxAge:         config.CORSMaxAge,
	})

	return &ChiMiddleware{config: config, cors: corsHandler}
}

// CORS returns the shared CORS middleware. It must be global so OPTIONS
// preflight requests are answered on every route.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimitConfig defines rate limit parameters for a route group.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

var (
	// RateLimitHealth is permissive so monitoring can probe frequently.
	RateLimitHealth = RateLimitConfig{Requests: 1000, Window: time.Minute}

	// RateLimitTiles allows map clients to pan and zoom freely; most tile
	// requests are served from cache anyway.
	RateLimitTiles = RateLimitConfig{Requests: 2000, Window: time.Minute}
)

// RateLimit returns the default IP-keyed rate limiter.
func (m *ChiMiddleware) RateLimit() func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		m.config.RateLimitRequests,
		m.config.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
	)
}

// RateLimitCustom returns an IP-keyed limiter with specific parameters.
func (m *ChiMiddleware) RateLimitCustom(config RateLimitConfig) func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.LimitByIP(config.Requests, config.Window)
}

// RateLimitHealth returns the permissive limiter for health probes.
func (m *ChiMiddleware) RateLimitHealth() func(http.Handler) http.Handler {
	return m.RateLimitCustom(RateLimitHealth)
}

// RateLimitTiles returns the limiter for tile endpoints.
func (m *ChiMiddleware) RateLimitTiles() func(http.Handler) http.Handler {
	return m.RateLimitCustom(RateLimitTiles)
}

// RequestIDWithLogging adds X-Request-ID handling and threads the ID through
// both the middleware and logging contexts so every log line of a request
// carries it. Chi's own RequestID runs underneath for handlers that read it.
func RequestIDWithLogging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		chiRequestID := chimiddleware.RequestID(next)
		return http.HandlerFunc(middleware.RequestID(chiRequestID.ServeHTTP))
	}
}

// APISecurityHeaders sets conservative security headers on API responses.
func APISecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// chiMiddleware adapts http.HandlerFunc middleware to Chi's shape so the
// middleware package plugs into r.Use().
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}
