// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

// Package objstore reads objects from an HTTP object storage endpoint.
//
// The client speaks the plain HTTP surface of GCS-style storage: objects at
// <endpoint>/<bucket>/<object>, a JSON listing API, and byte-range reads via
// the standard Range header. Public buckets need no credentials; a bearer
// token can be attached for private ones.
package objstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/geodepot/geodepot/internal/logging"
	"github.com/geodepot/geodepot/internal/metrics"
)

// maxErrorBodySize limits how much of an error response body is read.
const maxErrorBodySize = 64 * 1024

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Name        string    `json:"name"`
	Size        int64     `json:"size,string"`
	ContentType string    `json:"contentType"`
	Updated     time.Time `json:"updated"`
}

// ByteRange is a half-open [First, Last] byte range, both ends inclusive,
// matching the HTTP Range header convention.
type ByteRange struct {
	First int64
	Last  int64
}

// Len returns the number of bytes covered by the range.
func (r ByteRange) Len() int64 { return r.Last - r.First + 1 }

func (r ByteRange) String() string {
	return fmt.Sprintf("%d-%d", r.First, r.Last)
}

// Client reads objects from a single bucket.
type Client struct {
	endpoint string
	bucket   string
	token    string
	httpc    *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithToken attaches a bearer token to every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

// New creates a storage client for one bucket. endpoint defaults to the
// public GCS endpoint when empty.
func New(endpoint, bucket string, timeout time.Duration, opts ...Option) (*Client, error) {
	if bucket == "" {
		return nil, ErrNoBucket
	}
	if endpoint == "" {
		endpoint = "https://storage.googleapis.com"
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	c := &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		bucket:   bucket,
		httpc:    &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Bucket returns the bucket this client reads from.
func (c *Client) Bucket() string { return c.bucket }

// ObjectURL returns the full URL of an object.
func (c *Client) ObjectURL(object string) string {
	return c.endpoint + "/" + c.bucket + "/" + escapePath(object)
}

// Get fetches a whole object. The caller owns the returned body and must
// close it.
func (c *Client) Get(ctx context.Context, object string) (io.ReadCloser, *ObjectInfo, error) {
	start := time.Now()
	resp, err := c.do(ctx, http.MethodGet, c.ObjectURL(object), nil)
	if err != nil {
		metrics.RecordStorageRequest("get", 0, time.Since(start), err)
		return nil, nil, err
	}

	if resp.StatusCode != http.StatusOK {
		err := c.statusError(resp)
		metrics.RecordStorageRequest("get", resp.StatusCode, time.Since(start), err)
		return nil, nil, err
	}

	metrics.RecordStorageRequest("get", resp.StatusCode, time.Since(start), nil)
	return resp.Body, infoFromHeaders(object, resp.Header), nil
}

// GetRange fetches one or more byte ranges of an object in a single request.
// Multi-range 206 responses arrive as multipart/byteranges; the returned
// RangeReader handles both shapes. A server that ignores Range and answers
// 200 gets its whole body sliced client-side.
func (c *Client) GetRange(ctx context.Context, object string, ranges []ByteRange) (*RangeReader, error) {
	if len(ranges) == 0 {
		return nil, fmt.Errorf("objstore: no ranges requested")
	}

	specs := make([]string, len(ranges))
	for i, r := range ranges {
		if r.First < 0 || r.Last < r.First {
			return nil, fmt.Errorf("objstore: invalid range %s", r)
		}
		specs[i] = r.String()
	}

	start := time.Now()
	resp, err := c.do(ctx, http.MethodGet, c.ObjectURL(object), map[string]string{
		"Range": "bytes=" + strings.Join(specs, ","),
	})
	if err != nil {
		metrics.RecordStorageRequest("get_range", 0, time.Since(start), err)
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusPartialContent:
		metrics.RecordStorageRequest("get_range", resp.StatusCode, time.Since(start), nil)
		return newRangeReader(resp, ranges), nil
	case http.StatusOK:
		metrics.RecordStorageRequest("get_range", resp.StatusCode, time.Since(start), nil)
		return newWholeObjectReader(resp, ranges), nil
	default:
		err := c.statusError(resp)
		metrics.RecordStorageRequest("get_range", resp.StatusCode, time.Since(start), err)
		return nil, err
	}
}

// Ping checks bucket reachability with a single metadata request. Suited
// for readiness probes.
func (c *Client) Ping(ctx context.Context) error {
	start := time.Now()
	pingURL := fmt.Sprintf("%s/storage/v1/b/%s", c.endpoint, url.PathEscape(c.bucket))

	resp, err := c.do(ctx, http.MethodGet, pingURL, nil)
	if err != nil {
		metrics.RecordStorageRequest("ping", 0, time.Since(start), err)
		return err
	}

	if resp.StatusCode != http.StatusOK {
		err := c.statusError(resp)
		metrics.RecordStorageRequest("ping", resp.StatusCode, time.Since(start), err)
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodySize))
	_ = resp.Body.Close()
	metrics.RecordStorageRequest("ping", resp.StatusCode, time.Since(start), nil)
	return nil
}

// Head returns object metadata without the body.
func (c *Client) Head(ctx context.Context, object string) (*ObjectInfo, error) {
	start := time.Now()
	resp, err := c.do(ctx, http.MethodHead, c.ObjectURL(object), nil)
	if err != nil {
		metrics.RecordStorageRequest("head", 0, time.Since(start), err)
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		err := c.statusError(resp)
		metrics.RecordStorageRequest("head", resp.StatusCode, time.Since(start), err)
		return nil, err
	}

	metrics.RecordStorageRequest("head", resp.StatusCode, time.Since(start), nil)
	return infoFromHeaders(object, resp.Header), nil
}

// listResponse is the JSON shape of the bucket listing API.
type listResponse struct {
	Items         []ObjectInfo `json:"items"`
	NextPageToken string       `json:"nextPageToken"`
}

// List returns all objects under prefix, following listing pagination.
// Results are sorted by name.
func (c *Client) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var all []ObjectInfo
	pageToken := ""

	for {
		listURL := fmt.Sprintf("%s/storage/v1/b/%s/o?prefix=%s",
			c.endpoint, url.PathEscape(c.bucket), url.QueryEscape(prefix))
		if pageToken != "" {
			listURL += "&pageToken=" + url.QueryEscape(pageToken)
		}

		start := time.Now()
		resp, err := c.do(ctx, http.MethodGet, listURL, nil)
		if err != nil {
			metrics.RecordStorageRequest("list", 0, time.Since(start), err)
			return nil, err
		}

		if resp.StatusCode != http.StatusOK {
			err := c.statusError(resp)
			metrics.RecordStorageRequest("list", resp.StatusCode, time.Since(start), err)
			return nil, err
		}

		var page listResponse
		err = json.NewDecoder(resp.Body).Decode(&page)
		_ = resp.Body.Close()
		metrics.RecordStorageRequest("list", resp.StatusCode, time.Since(start), err)
		if err != nil {
			return nil, fmt.Errorf("objstore: decode listing: %w", err)
		}

		all = append(all, page.Items...)

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all, nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("objstore: build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("objstore: %s %s: %w", method, rawURL, err)
	}
	return resp, nil
}

// statusError drains up to maxErrorBodySize of the response and maps the
// status code to a sentinel error. It closes the body.
func (c *Client) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	_ = resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrObjectNotFound, resp.Request.URL.Path)
	case http.StatusRequestedRangeNotSatisfiable:
		return ErrRangeNotSatisfiable
	default:
		logging.Debug().
			Int("status", resp.StatusCode).
			Str("url", resp.Request.URL.String()).
			Str("body", strings.TrimSpace(string(body))).
			Msg("storage request failed")
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
}

func infoFromHeaders(object string, h http.Header) *ObjectInfo {
	info := &ObjectInfo{
		Name:        object,
		ContentType: h.Get("Content-Type"),
	}
	if cl := h.Get("Content-Length"); cl != "" {
		if size, err := strconv.ParseInt(cl, 10, 64); err == nil {
			info.Size = size
		}
	}
	if lm := h.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			info.Updated = t
		}
	}
	return info
}

// escapePath escapes each path segment while keeping separators.
func escapePath(object string) string {
	parts := strings.Split(object, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
