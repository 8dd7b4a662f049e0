// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package objstore

import "errors"

var (
	// ErrObjectNotFound indicates the requested object does not exist in
	// the bucket.
	ErrObjectNotFound = errors.New("objstore: object not found")

	// ErrRangeNotSatisfiable indicates the requested byte range is outside
	// the object.
	ErrRangeNotSatisfiable = errors.New("objstore: range not satisfiable")

	// ErrNoBucket indicates the client was constructed without a bucket.
	ErrNoBucket = errors.New("objstore: bucket not configured")

	// ErrUnexpectedStatus indicates the storage endpoint returned a status
	// the client does not handle.
	ErrUnexpectedStatus = errors.New("objstore: unexpected response status")
)
