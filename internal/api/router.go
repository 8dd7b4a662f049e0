// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/geodepot/geodepot/internal/config"
	"github.com/geodepot/geodepot/internal/middleware"
)

// NewRouter assembles the service router: health probes, Prometheus metrics,
// the COG byte-range proxy, cached tile proxies, and the status endpoint.
func NewRouter(h *Handler, cfg *config.ServerConfig) chi.Router {
	mwCfg := DefaultChiMiddlewareConfig()
	mwCfg.CORSAllowedOrigins = cfg.CORSOrigins
	if cfg.RateLimitReqs > 0 {
		mwCfg.RateLimitRequests = cfg.RateLimitReqs
	} else {
		mwCfg.RateLimitDisabled = true
	}
	if cfg.RateLimitWindow > 0 {
		mwCfg.RateLimitWindow = cfg.RateLimitWindow
	}
	m := NewChiMiddleware(mwCfg)

	r := chi.NewRouter()

	// Global middleware. Order matters: the request ID must exist before the
	// access log and metrics wrappers observe the request.
	r.Use(chimiddleware.RealIP)
	r.Use(RequestIDWithLogging())
	r.Use(chiMiddleware(middleware.Recover))
	r.Use(chiMiddleware(middleware.AccessLog))
	r.Use(chiMiddleware(middleware.PrometheusMetrics))
	r.Use(m.CORS())
	r.Use(APISecurityHeaders())

	r.Route("/healthz", func(r chi.Router) {
		r.Use(m.RateLimitHealth())
		r.Get("/", h.HealthLive)
	})
	r.Route("/readyz", func(r chi.Router) {
		r.Use(m.RateLimitHealth())
		r.Get("/", h.HealthReady)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/cog", func(r chi.Router) {
		r.Use(m.RateLimit())
		r.Get("/*", h.CogObject)
		r.Head("/*", h.CogObject)
	})

	r.Route("/raster", func(r chi.Router) {
		r.Use(m.RateLimitTiles())
		r.Get("/*", h.RasterTile)
	})
	r.Route("/vector", func(r chi.Router) {
		r.Use(m.RateLimitTiles())
		r.Get("/*", h.VectorTile)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(m.RateLimit())
		r.Get("/status", h.Status)
	})

	return r
}
