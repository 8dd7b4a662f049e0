// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package api

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/geodepot/geodepot/internal/cache"
	"github.com/geodepot/geodepot/internal/config"
	"github.com/geodepot/geodepot/internal/gribidx"
	"github.com/geodepot/geodepot/internal/logging"
	"github.com/geodepot/geodepot/internal/objstore"
	"github.com/geodepot/geodepot/internal/stac"
)

// readinessTimeout bounds each dependency probe in the readiness check.
const readinessTimeout = 5 * time.Second

// Handler serves the HTTP API.
type Handler struct {
	cfg       *config.Config
	storage   *objstore.Client
	stac      *stac.CircuitBreakerClient
	tileCache *cache.TileCache
	index     *gribidx.Store
	httpc     *http.Client
	startTime time.Time
	version   string

	rasterBase *url.URL
	vectorBase *url.URL
}

// HandlerOption customizes a Handler.
type HandlerOption func(*Handler)

// WithStorage attaches the object storage client used by the COG proxy.
func WithStorage(c *objstore.Client) HandlerOption {
	return func(h *Handler) { h.storage = c }
}

// WithSTAC attaches the catalog client used by readiness checks.
func WithSTAC(c *stac.CircuitBreakerClient) HandlerOption {
	return func(h *Handler) { h.stac = c }
}

// WithIndex attaches the chunk index store so status can report its size.
func WithIndex(s *gribidx.Store) HandlerOption {
	return func(h *Handler) { h.index = s }
}

// WithVersion sets the version string reported by the status endpoint.
func WithVersion(v string) HandlerOption {
	return func(h *Handler) { h.version = v }
}

// NewHandler creates the API handler. Upstream tile URLs from the config are
// parsed once at startup; a malformed URL is a configuration error.
func NewHandler(cfg *config.Config, opts ...HandlerOption) (*Handler, error) {
	h := &Handler{
		cfg:       cfg,
		tileCache: cache.NewTileCache(cfg.Server.CacheMaxEntries, cfg.Server.CacheTTL),
		httpc:     &http.Client{Timeout: cfg.Upstream.Timeout},
		startTime: time.Now(),
		version:   "dev",
	}
	for _, opt := range opts {
		opt(h)
	}

	if cfg.Upstream.RasterTiles != "" {
		u, err := url.Parse(cfg.Upstream.RasterTiles)
		if err != nil {
			return nil, err
		}
		h.rasterBase = u
	}
	if cfg.Upstream.VectorTiles != "" {
		u, err := url.Parse(cfg.Upstream.VectorTiles)
		if err != nil {
			return nil, err
		}
		h.vectorBase = u
	}

	return h, nil
}

// HealthLive reports process liveness. It has no dependencies so a failure
// means the process itself is wedged.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessCheck is one dependency's probe result.
type readinessCheck struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthReady probes the configured dependencies concurrently and reports
// per-dependency detail. Any failed probe turns the response into a 503.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	checks := make(map[string]readinessCheck)
	var mu sync.Mutex
	var wg sync.WaitGroup

	record := func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			checks[name] = readinessCheck{Status: "failed", Error: err.Error()}
		} else {
			checks[name] = readinessCheck{Status: "ok"}
		}
	}

	if h.storage != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record("storage", h.storage.Ping(ctx))
		}()
	}

	if h.stac != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.stac.Ping(ctx)
			record("stac", err)
		}()
	}

	if h.rasterBase != nil && h.cfg.Upstream.HealthPath != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record("raster_tiles", h.probeUpstream(ctx, h.rasterBase))
		}()
	}
	if h.vectorBase != nil && h.cfg.Upstream.HealthPath != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record("vector_tiles", h.probeUpstream(ctx, h.vectorBase))
		}()
	}

	wg.Wait()

	ready := true
	for _, c := range checks {
		if c.Status != "ok" {
			ready = false
			break
		}
	}

	status := http.StatusOK
	overall := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		overall = "not ready"
		log := logging.WithComponent("api")
		log.Warn().
			Interface("checks", checks).
			Msg("Readiness check failed")
	}

	RespondJSON(w, status, map[string]interface{}{
		"status": overall,
		"checks": checks,
	})
}

func (h *Handler) probeUpstream(ctx context.Context, base *url.URL) error {
	u := *base
	u.Path = h.cfg.Upstream.HealthPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := h.httpc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= http.StatusInternalServerError {
		return &upstreamStatusError{status: resp.StatusCode}
	}
	return nil
}

type upstreamStatusError struct {
	status int
}

func (e *upstreamStatusError) Error() string {
	return "upstream returned " + http.StatusText(e.status)
}

// Status reports operational detail for humans and dashboards.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"version":        h.version,
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
		"tile_cache": map[string]interface{}{
			"stats":    h.tileCache.GetStats(),
			"hit_rate": h.tileCache.HitRate(),
		},
	}

	if h.storage != nil {
		body["storage_bucket"] = h.storage.Bucket()
	}
	if h.cfg.STAC.APIURL != "" {
		body["stac_api"] = h.cfg.STAC.APIURL
	}
	if h.index != nil {
		if n, err := h.index.Count(r.Context()); err == nil {
			body["index_records"] = n
		}
	}

	RespondJSON(w, http.StatusOK, body)
}
