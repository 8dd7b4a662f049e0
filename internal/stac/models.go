// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

// Package stac implements a client for STAC (SpatioTemporal Asset Catalog)
// APIs: catalog inspection, collection and item browsing, and item search
// with transparent pagination.
package stac

import (
	"github.com/goccy/go-json"
)

// Link is a STAC hypermedia link.
type Link struct {
	Rel   string `json:"rel"`
	Href  string `json:"href"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`

	// POST pagination links may carry a method, a follow-up body with a
	// continuation token, and a flag asking for it to be merged into the
	// original request body.
	Method string                 `json:"method,omitempty"`
	Body   map[string]interface{} `json:"body,omitempty"`
	Merge  bool                   `json:"merge,omitempty"`
}

// Catalog is the STAC API landing page.
type Catalog struct {
	Type        string   `json:"type"`
	ID          string   `json:"id"`
	StacVersion string   `json:"stac_version"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description"`
	ConformsTo  []string `json:"conformsTo,omitempty"`
	Links       []Link   `json:"links"`
}

// SpatialExtent holds one or more bounding boxes in WGS84.
type SpatialExtent struct {
	BBox [][]float64 `json:"bbox"`
}

// TemporalExtent holds one or more [start, end] intervals; either end may be
// null for an open interval.
type TemporalExtent struct {
	Interval [][]*string `json:"interval"`
}

// Extent combines spatial and temporal coverage.
type Extent struct {
	Spatial  SpatialExtent  `json:"spatial"`
	Temporal TemporalExtent `json:"temporal"`
}

// Collection is a STAC collection.
type Collection struct {
	Type        string   `json:"type"`
	ID          string   `json:"id"`
	StacVersion string   `json:"stac_version"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description"`
	License     string   `json:"license,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Extent      Extent   `json:"extent"`
	Links       []Link   `json:"links"`
}

// collectionsPage is one page of the /collections endpoint.
type collectionsPage struct {
	Collections []Collection `json:"collections"`
	Links       []Link       `json:"links"`
}

// Geometry is a GeoJSON geometry with raw coordinates.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Asset is a downloadable resource attached to an item.
type Asset struct {
	Href  string   `json:"href"`
	Type  string   `json:"type,omitempty"`
	Title string   `json:"title,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// Item is a STAC item (a GeoJSON feature).
type Item struct {
	Type       string                 `json:"type"`
	ID         string                 `json:"id"`
	Collection string                 `json:"collection,omitempty"`
	Geometry   *Geometry              `json:"geometry"`
	BBox       []float64              `json:"bbox,omitempty"`
	Properties map[string]interface{} `json:"properties"`
	Assets     map[string]Asset       `json:"assets"`
	Links      []Link                 `json:"links"`
}

// Datetime returns the item's datetime property, empty when absent.
func (it *Item) Datetime() string {
	if v, ok := it.Properties["datetime"].(string); ok {
		return v
	}
	return ""
}

// ItemCollection is a page of items, as returned by /items and /search.
type ItemCollection struct {
	Type          string `json:"type"`
	Features      []Item `json:"features"`
	Links         []Link `json:"links"`
	NumberMatched *int64 `json:"numberMatched,omitempty"`
}

// SearchRequest is the body of a POST /search request. Zero-valued fields
// are omitted from the encoded body.
type SearchRequest struct {
	Collections []string  `json:"collections,omitempty"`
	BBox        []float64 `json:"bbox,omitempty"`
	Datetime    string    `json:"datetime,omitempty"`
	Limit       int       `json:"limit,omitempty"`
	IDs         []string  `json:"ids,omitempty"`
	Token       string    `json:"token,omitempty"`
}

// ItemsParams filters a collection item listing.
type ItemsParams struct {
	Limit    int
	BBox     []float64
	Datetime string
}

// findLink returns the first link with the given rel, or nil.
func findLink(links []Link, rel string) *Link {
	for i := range links {
		if links[i].Rel == rel {
			return &links[i]
		}
	}
	return nil
}
