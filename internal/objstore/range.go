// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package objstore

import (
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
)

// RangeReader iterates over the parts of a ranged response. A single-range
// 206 yields one part from the plain body; a multi-range 206 yields the
// parts of a multipart/byteranges body in request order. A 200 whole-object
// body is sliced at the requested offsets while streaming.
type RangeReader struct {
	resp   *http.Response
	ranges []ByteRange

	multipart *multipart.Reader
	single    bool
	served    bool

	whole bool
	idx   int
	pos   int64
}

// NewRangeReader wraps an already-issued 206 response. Callers that build
// their own range requests against plain URLs use this instead of Client.
func NewRangeReader(resp *http.Response, ranges []ByteRange) *RangeReader {
	return newRangeReader(resp, ranges)
}

func newRangeReader(resp *http.Response, ranges []ByteRange) *RangeReader {
	rr := &RangeReader{resp: resp, ranges: ranges}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err == nil && strings.HasPrefix(mediaType, "multipart/") {
		rr.multipart = multipart.NewReader(resp.Body, params["boundary"])
	} else {
		rr.single = true
	}
	return rr
}

// newWholeObjectReader slices a 200 response body at the requested offsets.
// Requires the ranges in ascending, non-overlapping order, which is how this
// package issues them.
func newWholeObjectReader(resp *http.Response, ranges []ByteRange) *RangeReader {
	return &RangeReader{resp: resp, ranges: ranges, whole: true}
}

// Next returns a reader over the next range's bytes. io.EOF signals that all
// parts have been consumed. Each part must be fully read before calling Next
// again.
func (rr *RangeReader) Next() (io.Reader, error) {
	if rr.whole {
		if rr.idx >= len(rr.ranges) {
			return nil, io.EOF
		}
		r := rr.ranges[rr.idx]
		if r.First < rr.pos {
			return nil, fmt.Errorf("objstore: range %s overlaps the previous one", r)
		}
		if skip := r.First - rr.pos; skip > 0 {
			if _, err := io.CopyN(io.Discard, rr.resp.Body, skip); err != nil {
				return nil, fmt.Errorf("objstore: seeking to offset %d: %w", r.First, err)
			}
		}
		rr.idx++
		rr.pos = r.Last + 1
		return io.LimitReader(rr.resp.Body, r.Len()), nil
	}

	if rr.single {
		if rr.served {
			return nil, io.EOF
		}
		if len(rr.ranges) > 1 {
			// The server coalesced a multi-range request into one body.
			// Offsets within it are no longer addressable per range.
			return nil, fmt.Errorf("objstore: expected multipart response for %d ranges", len(rr.ranges))
		}
		rr.served = true
		return io.LimitReader(rr.resp.Body, rr.ranges[0].Len()), nil
	}

	part, err := rr.multipart.NextPart()
	if err != nil {
		return nil, err
	}
	return part, nil
}

// WriteTo streams every part to w in order and returns the byte count.
func (rr *RangeReader) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for {
		part, err := rr.Next()
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}

		n, err := io.Copy(w, part)
		total += n
		if err != nil {
			return total, fmt.Errorf("objstore: copy range part: %w", err)
		}
	}
}

// Close releases the underlying response body.
func (rr *RangeReader) Close() error {
	return rr.resp.Body.Close()
}
