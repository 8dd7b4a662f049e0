// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package stac

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/geodepot/geodepot/internal/logging"
)

const (
	// maxPages bounds how many next-links a single listing will follow.
	maxPages = 100

	// maxErrorBodySize limits how much of an error response body is read.
	maxErrorBodySize = 64 * 1024
)

// Client talks to a STAC API. Safe for concurrent use; each request creates
// its own HTTP request. Rate-limited requests retry with exponential backoff
// (1s, 2s, 4s, 8s, 16s), honoring a Retry-After header when present.
type Client struct {
	apiURL         string
	httpc          *http.Client
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewClient creates a STAC API client.
func NewClient(apiURL string, timeout time.Duration) (*Client, error) {
	if apiURL == "" {
		return nil, ErrNoAPIURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		apiURL:         strings.TrimRight(apiURL, "/"),
		httpc:          &http.Client{Timeout: timeout},
		maxRetries:     5,
		retryBaseDelay: time.Second,
	}, nil
}

// APIURL returns the configured API root.
func (c *Client) APIURL() string { return c.apiURL }

// Ping fetches the landing page and verifies it parses as a catalog.
func (c *Client) Ping(ctx context.Context) (*Catalog, error) {
	var cat Catalog
	if err := c.getJSON(ctx, c.apiURL, &cat); err != nil {
		return nil, fmt.Errorf("stac: ping %s: %w", c.apiURL, err)
	}
	if cat.ID == "" && len(cat.Links) == 0 {
		return nil, fmt.Errorf("stac: %s does not look like a STAC catalog", c.apiURL)
	}
	return &cat, nil
}

// Collections lists all collections, following pagination.
func (c *Client) Collections(ctx context.Context) ([]Collection, error) {
	var all []Collection

	next := c.apiURL + "/collections"
	for page := 0; next != ""; page++ {
		if page >= maxPages {
			return nil, ErrTooManyPages
		}

		var pageData collectionsPage
		if err := c.getJSON(ctx, next, &pageData); err != nil {
			return nil, fmt.Errorf("stac: list collections: %w", err)
		}
		all = append(all, pageData.Collections...)

		next = ""
		if link := findLink(pageData.Links, "next"); link != nil {
			next = link.Href
		}
	}

	return all, nil
}

// Collection fetches a single collection by ID.
func (c *Client) Collection(ctx context.Context, collectionID string) (*Collection, error) {
	var col Collection
	u := c.apiURL + "/collections/" + url.PathEscape(collectionID)
	if err := c.getJSON(ctx, u, &col); err != nil {
		return nil, fmt.Errorf("stac: get collection %s: %w", collectionID, err)
	}
	return &col, nil
}

// Items browses a collection's items. Pagination is followed until
// params.Limit items are gathered; a Limit of 0 returns the first page as
// served by the API.
func (c *Client) Items(ctx context.Context, collectionID string, params ItemsParams) ([]Item, error) {
	q := url.Values{}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if len(params.BBox) == 4 {
		q.Set("bbox", joinFloats(params.BBox))
	}
	if params.Datetime != "" {
		q.Set("datetime", params.Datetime)
	}

	next := c.apiURL + "/collections/" + url.PathEscape(collectionID) + "/items"
	if enc := q.Encode(); enc != "" {
		next += "?" + enc
	}

	var all []Item
	for page := 0; next != ""; page++ {
		if page >= maxPages {
			return nil, ErrTooManyPages
		}

		var ic ItemCollection
		if err := c.getJSON(ctx, next, &ic); err != nil {
			return nil, fmt.Errorf("stac: list items of %s: %w", collectionID, err)
		}
		all = append(all, ic.Features...)

		if params.Limit > 0 && len(all) >= params.Limit {
			return all[:params.Limit], nil
		}
		if params.Limit == 0 {
			return all, nil
		}

		next = ""
		if link := findLink(ic.Links, "next"); link != nil {
			next = link.Href
		}
	}

	return all, nil
}

// Item fetches a single item.
func (c *Client) Item(ctx context.Context, collectionID, itemID string) (*Item, error) {
	var it Item
	u := c.apiURL + "/collections/" + url.PathEscape(collectionID) +
		"/items/" + url.PathEscape(itemID)
	if err := c.getJSON(ctx, u, &it); err != nil {
		return nil, fmt.Errorf("stac: get item %s/%s: %w", collectionID, itemID, err)
	}
	return &it, nil
}

// Search queries /search via POST, falling back to GET with encoded query
// parameters when the API does not accept POST. Pagination is followed until
// req.Limit items are gathered (0 means first page only).
func (c *Client) Search(ctx context.Context, req SearchRequest) ([]Item, error) {
	searchURL := c.apiURL + "/search"

	ic, status, err := c.postSearch(ctx, searchURL, req)
	if status == http.StatusMethodNotAllowed || status == http.StatusNotFound {
		logging.Debug().Int("status", status).Msg("POST search unsupported, falling back to GET")
		return c.getSearch(ctx, searchURL, req)
	}
	if err != nil {
		return nil, err
	}

	all := ic.Features
	for page := 1; ; page++ {
		if req.Limit > 0 && len(all) >= req.Limit {
			return all[:req.Limit], nil
		}
		if req.Limit == 0 {
			return all, nil
		}
		link := findLink(ic.Links, "next")
		if link == nil {
			return all, nil
		}
		if page >= maxPages {
			return nil, ErrTooManyPages
		}

		// POST pagination: the next link may carry a body with a
		// continuation token, optionally merged into the original request.
		payload, err := nextSearchBody(req, link)
		if err != nil {
			return nil, err
		}
		ic, _, err = c.postSearch(ctx, link.Href, payload)
		if err != nil {
			return nil, err
		}
		all = append(all, ic.Features...)
	}
}

// nextSearchBody resolves the body for a POST next link. A link without a
// body repeats the original request; with merge set, the link body is
// overlaid on it; otherwise the link body replaces it entirely.
func nextSearchBody(req SearchRequest, link *Link) (interface{}, error) {
	if len(link.Body) == 0 {
		return req, nil
	}
	if !link.Merge {
		return link.Body, nil
	}

	raw, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("stac: encode search request: %w", err)
	}
	merged := make(map[string]interface{})
	if err := json.Unmarshal(raw, &merged); err != nil {
		return nil, fmt.Errorf("stac: merge next link body: %w", err)
	}
	for k, v := range link.Body {
		merged[k] = v
	}
	return merged, nil
}

// postSearch issues one POST /search request. The HTTP status is returned
// alongside the error so the caller can detect an unsupported method.
func (c *Client) postSearch(ctx context.Context, searchURL string, payload interface{}) (*ItemCollection, int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("stac: encode search request: %w", err)
	}

	resp, err := c.doWithRetry(ctx, http.MethodPost, searchURL, body)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, c.statusError(resp)
	}

	var ic ItemCollection
	if err := json.NewDecoder(resp.Body).Decode(&ic); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("stac: decode search response: %w", err)
	}
	return &ic, resp.StatusCode, nil
}

// getSearch is the GET fallback used when POST /search is not supported.
func (c *Client) getSearch(ctx context.Context, searchURL string, req SearchRequest) ([]Item, error) {
	q := url.Values{}
	if len(req.Collections) > 0 {
		q.Set("collections", strings.Join(req.Collections, ","))
	}
	if len(req.BBox) == 4 {
		q.Set("bbox", joinFloats(req.BBox))
	}
	if req.Datetime != "" {
		q.Set("datetime", req.Datetime)
	}
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}

	next := searchURL
	if enc := q.Encode(); enc != "" {
		next += "?" + enc
	}

	var all []Item
	for page := 0; next != ""; page++ {
		if page >= maxPages {
			return nil, ErrTooManyPages
		}

		var ic ItemCollection
		if err := c.getJSON(ctx, next, &ic); err != nil {
			return nil, fmt.Errorf("stac: GET search: %w", err)
		}
		all = append(all, ic.Features...)

		if req.Limit > 0 && len(all) >= req.Limit {
			return all[:req.Limit], nil
		}
		if req.Limit == 0 {
			return all, nil
		}

		next = ""
		if link := findLink(ic.Links, "next"); link != nil {
			next = link.Href
		}
	}

	return all, nil
}

// getJSON fetches a URL and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	resp, err := c.doWithRetry(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}

// doWithRetry performs an HTTP request with rate limit handling. 429 and 503
// responses retry with exponential backoff; the Retry-After header overrides
// the computed delay. The context cancels backoff waits.
func (c *Client) doWithRetry(ctx context.Context, method, rawURL string, body []byte) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var reader io.Reader = http.NoBody
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpc.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request %s: %w", rawURL, err)
		}

		if resp.StatusCode != http.StatusTooManyRequests &&
			resp.StatusCode != http.StatusServiceUnavailable {
			return resp, nil
		}

		_ = resp.Body.Close()

		if attempt == c.maxRetries {
			return nil, fmt.Errorf("%w after %d retries", ErrRateLimited, c.maxRetries)
		}

		// 1s, 2s, 4s, 8s, 16s
		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
				delay = seconds
			}
		}

		logging.Debug().
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Str("url", rawURL).
			Msg("rate limited, backing off")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// statusError maps an error response to a sentinel, draining a bounded
// amount of the body. It leaves closing to the caller's defer.
func (c *Client) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, resp.Request.URL.Path)
	}
	return fmt.Errorf("stac: %s returned %d: %s",
		resp.Request.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
}

func joinFloats(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}
