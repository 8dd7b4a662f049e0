// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/geodepot/geodepot/internal/cache"
	"github.com/geodepot/geodepot/internal/logging"
	"github.com/geodepot/geodepot/internal/metrics"
	"github.com/geodepot/geodepot/internal/objstore"
)

// maxTileBodySize caps how large an upstream tile response may be before it
// is passed through uncached.
const maxTileBodySize = 32 * 1024 * 1024

// CogObject proxies a single object from storage, passing byte ranges
// through so COG readers can fetch windows without downloading whole files.
func (h *Handler) CogObject(w http.ResponseWriter, r *http.Request) {
	if h.storage == nil {
		RespondError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "object storage is not configured")
		return
	}

	object := chi.URLParam(r, "*")
	if err := validateObjectPath(object); err != nil {
		RespondError(w, r, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	info, err := h.storage.Head(r.Context(), object)
	if err != nil {
		h.respondStorageError(w, r, object, err)
		return
	}

	w.Header().Set("Accept-Ranges", "bytes")
	// Staged scene objects are write-once, so clients may cache aggressively.
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	if !info.Updated.IsZero() {
		w.Header().Set("Last-Modified", info.Updated.UTC().Format(http.TimeFormat))
	}

	if r.Method == http.MethodHead {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
		w.WriteHeader(http.StatusOK)
		return
	}

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" || strings.Contains(rangeHeader, ",") {
		// Multi-range requests are served whole. Ignoring the Range header
		// is permitted and keeps the response shape simple for clients.
		h.serveWholeObject(w, r, object, info)
		return
	}

	br, err := parseRangeHeader(rangeHeader, info.Size)
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", info.Size))
		RespondError(w, r, http.StatusRequestedRangeNotSatisfiable, CodeRangeInvalid, err.Error())
		return
	}

	rr, err := h.storage.GetRange(r.Context(), object, []objstore.ByteRange{br})
	if err != nil {
		h.respondStorageError(w, r, object, err)
		return
	}
	defer func() { _ = rr.Close() }()

	w.Header().Set("Content-Length", strconv.FormatInt(br.Len(), 10))
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", br.First, br.Last, info.Size))
	w.WriteHeader(http.StatusPartialContent)

	n, err := rr.WriteTo(w)
	metrics.ProxyBytesServed.WithLabelValues("true").Add(float64(n))
	if err != nil {
		// Headers are gone; all we can do is log the truncated stream.
		logging.Ctx(r.Context()).Warn().Err(err).
			Str("object", object).
			Int64("written", n).
			Msg("Range proxy interrupted")
	}
}

func (h *Handler) serveWholeObject(w http.ResponseWriter, r *http.Request, object string, info *objstore.ObjectInfo) {
	body, _, err := h.storage.Get(r.Context(), object)
	if err != nil {
		h.respondStorageError(w, r, object, err)
		return
	}
	defer func() { _ = body.Close() }()

	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, body)
	metrics.ProxyBytesServed.WithLabelValues("false").Add(float64(n))
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).
			Str("object", object).
			Int64("written", n).
			Msg("Object proxy interrupted")
	}
}

func (h *Handler) respondStorageError(w http.ResponseWriter, r *http.Request, object string, err error) {
	switch {
	case errors.Is(err, objstore.ErrObjectNotFound):
		RespondError(w, r, http.StatusNotFound, CodeNotFound, "object not found: "+object)
	case errors.Is(err, objstore.ErrRangeNotSatisfiable):
		RespondError(w, r, http.StatusRequestedRangeNotSatisfiable, CodeRangeInvalid, "requested range not satisfiable")
	case errors.Is(err, context.DeadlineExceeded):
		RespondError(w, r, http.StatusGatewayTimeout, CodeUpstreamTimeout, "object storage timed out")
	default:
		logging.Ctx(r.Context()).Error().Err(err).Str("object", object).Msg("Storage request failed")
		RespondError(w, r, http.StatusBadGateway, CodeUpstreamError, "object storage request failed")
	}
}

// validateObjectPath rejects paths that could escape the bucket namespace.
func validateObjectPath(object string) error {
	if object == "" {
		return errors.New("empty object path")
	}
	if strings.HasPrefix(object, "/") {
		return errors.New("object path must be relative")
	}
	cleaned := path.Clean(object)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return errors.New("object path escapes bucket root")
	}
	for _, seg := range strings.Split(object, "/") {
		if seg == ".." {
			return errors.New("object path contains parent references")
		}
	}
	return nil
}

// parseRangeHeader parses a single-range "bytes=" header against a known
// object size. Suffix ranges ("-n") and open-ended ranges ("a-") resolve to
// explicit offsets.
func parseRangeHeader(header string, size int64) (objstore.ByteRange, error) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return objstore.ByteRange{}, fmt.Errorf("unsupported range unit in %q", header)
	}
	spec = strings.TrimSpace(spec)

	first, last, ok := strings.Cut(spec, "-")
	if !ok {
		return objstore.ByteRange{}, fmt.Errorf("malformed range %q", header)
	}

	if first == "" {
		// Suffix range: last n bytes.
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n <= 0 {
			return objstore.ByteRange{}, fmt.Errorf("malformed suffix range %q", header)
		}
		if n > size {
			n = size
		}
		return objstore.ByteRange{First: size - n, Last: size - 1}, nil
	}

	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil || start < 0 {
		return objstore.ByteRange{}, fmt.Errorf("malformed range %q", header)
	}
	if start >= size {
		return objstore.ByteRange{}, fmt.Errorf("range start %d beyond object size %d", start, size)
	}

	end := size - 1
	if last != "" {
		end, err = strconv.ParseInt(last, 10, 64)
		if err != nil || end < start {
			return objstore.ByteRange{}, fmt.Errorf("malformed range %q", header)
		}
		if end > size-1 {
			end = size - 1
		}
	}

	return objstore.ByteRange{First: start, Last: end}, nil
}

// RasterTile proxies raster tile requests to the upstream tile server,
// caching successful responses.
func (h *Handler) RasterTile(w http.ResponseWriter, r *http.Request) {
	h.proxyTile(w, r, h.rasterBase, "raster")
}

// VectorTile proxies vector tile requests.
func (h *Handler) VectorTile(w http.ResponseWriter, r *http.Request) {
	h.proxyTile(w, r, h.vectorBase, "vector")
}

func (h *Handler) proxyTile(w http.ResponseWriter, r *http.Request, base *url.URL, namespace string) {
	if base == nil {
		RespondError(w, r, http.StatusServiceUnavailable, CodeUnavailable, namespace+" tile upstream is not configured")
		return
	}

	tilePath := chi.URLParam(r, "*")
	key := cache.GenerateKey(namespace, tilePath+"?"+r.URL.RawQuery)

	if resp, ok := h.tileCache.Get(key); ok {
		w.Header().Set("Content-Type", resp.ContentType)
		if resp.CacheControl != "" {
			w.Header().Set("Cache-Control", resp.CacheControl)
		}
		w.Header().Set("X-Cache", "HIT")
		w.WriteHeader(resp.StatusCode)
		_, _ = w.Write(resp.Body)
		return
	}

	target := *base
	target.Path = path.Join(base.Path, tilePath)
	target.RawQuery = r.URL.RawQuery

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target.String(), nil)
	if err != nil {
		RespondError(w, r, http.StatusInternalServerError, CodeInternal, "building upstream request failed")
		return
	}
	req.Header.Set("Accept", r.Header.Get("Accept"))

	upstream, err := h.httpc.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			RespondError(w, r, http.StatusGatewayTimeout, CodeUpstreamTimeout, namespace+" tile upstream timed out")
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Str("upstream", target.String()).Msg("Tile upstream request failed")
		RespondError(w, r, http.StatusBadGateway, CodeUpstreamError, namespace+" tile upstream unreachable")
		return
	}
	defer func() { _ = upstream.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(upstream.Body, maxTileBodySize+1))
	if err != nil {
		RespondError(w, r, http.StatusBadGateway, CodeUpstreamError, "reading upstream tile failed")
		return
	}

	contentType := upstream.Header.Get("Content-Type")
	cacheControl := upstream.Header.Get("Cache-Control")
	if upstream.StatusCode == http.StatusOK && int64(len(body)) <= maxTileBodySize {
		h.tileCache.Set(key, cache.Response{
			Body:         body,
			ContentType:  contentType,
			CacheControl: cacheControl,
			StatusCode:   upstream.StatusCode,
		})
	}

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	if cacheControl != "" {
		w.Header().Set("Cache-Control", cacheControl)
	}
	w.Header().Set("X-Cache", "MISS")
	w.WriteHeader(upstream.StatusCode)
	_, _ = w.Write(body)
}
