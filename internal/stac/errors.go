// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package stac

import "errors"

var (
	// ErrNotFound indicates the collection or item does not exist.
	ErrNotFound = errors.New("stac: not found")

	// ErrNoAPIURL indicates the client was constructed without an API URL.
	ErrNoAPIURL = errors.New("stac: API URL not configured")

	// ErrTooManyPages indicates pagination exceeded the follow limit,
	// usually a sign of a broken or hostile next-link chain.
	ErrTooManyPages = errors.New("stac: pagination exceeded page limit")

	// ErrRateLimited indicates the API kept returning 429 past the retry
	// budget.
	ErrRateLimited = errors.New("stac: rate limit exceeded")
)
