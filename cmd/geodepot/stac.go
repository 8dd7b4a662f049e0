// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	json "github.com/goccy/go-json"

	"github.com/geodepot/geodepot/internal/config"
	"github.com/geodepot/geodepot/internal/stac"
	"github.com/geodepot/geodepot/internal/validation"
)

// StacCmd groups the catalog exploration commands.
type StacCmd struct {
	Check       StacCheckCmd       `cmd:"" help:"Verify the API root answers and speaks STAC."`
	Collections StacCollectionsCmd `cmd:"" help:"List collections."`
	Info        StacInfoCmd        `cmd:"" help:"Show one collection in detail."`
	Items       StacItemsCmd       `cmd:"" help:"List items in a collection."`
	Search      StacSearchCmd      `cmd:"" help:"Search items across collections."`
	Export      StacExportCmd      `cmd:"" help:"Export search results to CSV or JSON."`
}

// stacClientFlags are shared by every stac subcommand.
type stacClientFlags struct {
	API     string        `help:"STAC API root URL. Defaults to the configured stac.api_url." env:"GEODEPOT_STAC_API"`
	Timeout time.Duration `help:"Request timeout." default:"30s"`
}

func (f *stacClientFlags) client(cfg *config.Config) (*stac.CircuitBreakerClient, error) {
	apiURL := f.API
	if apiURL == "" {
		apiURL = cfg.STAC.APIURL
	}
	if apiURL == "" {
		return nil, errors.New("no STAC API configured: set --api or stac.api_url")
	}
	timeout := f.Timeout
	if cfg.STAC.Timeout > 0 && f.Timeout == 30*time.Second {
		timeout = cfg.STAC.Timeout
	}

	client, err := stac.NewClient(apiURL, timeout)
	if err != nil {
		return nil, err
	}
	return stac.NewCircuitBreakerClient(client), nil
}

// StacCheckCmd pings the API root.
type StacCheckCmd struct {
	stacClientFlags
}

func (c *StacCheckCmd) Run(cfg *config.Config) error {
	client, err := c.client(cfg)
	if err != nil {
		return err
	}

	cat, err := client.Ping(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("id:           %s\n", cat.ID)
	if cat.Title != "" {
		fmt.Printf("title:        %s\n", cat.Title)
	}
	fmt.Printf("stac_version: %s\n", cat.StacVersion)
	fmt.Printf("conformances: %d\n", len(cat.ConformsTo))
	return nil
}

// StacCollectionsCmd lists the catalog's collections.
type StacCollectionsCmd struct {
	stacClientFlags
	Format string `help:"Output format." enum:"table,json,summary" default:"table"`
}

func (c *StacCollectionsCmd) Run(cfg *config.Config) error {
	client, err := c.client(cfg)
	if err != nil {
		return err
	}

	collections, err := client.Collections(context.Background())
	if err != nil {
		return err
	}

	switch c.Format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(collections)
	case "summary":
		return printCollectionSummary(os.Stdout, collections)
	}

	tw := newTable(os.Stdout)
	fmt.Fprintln(tw, "ID\tTITLE\tLICENSE")
	for _, col := range collections {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", col.ID, truncate(col.Title, 60), col.License)
	}
	return tw.Flush()
}

func printCollectionSummary(w io.Writer, collections []stac.Collection) error {
	fmt.Fprintf(w, "%d collections\n", len(collections))
	for i := range collections {
		col := &collections[i]
		fmt.Fprintf(w, "\n%s\n", col.ID)
		for _, bbox := range col.Extent.Spatial.BBox {
			fmt.Fprintf(w, "  bbox:     %v\n", bbox)
		}
		for _, interval := range col.Extent.Temporal.Interval {
			fmt.Fprintf(w, "  interval: [%s, %s]\n", derefOr(interval, 0, "open"), derefOr(interval, 1, "open"))
		}
	}
	return nil
}

// StacInfoCmd shows one collection, or one item when an item ID is given.
type StacInfoCmd struct {
	stacClientFlags
	Collection string `arg:"" help:"Collection ID."`
	Item       string `arg:"" optional:"" help:"Item ID within the collection."`
}

func (c *StacInfoCmd) Run(cfg *config.Config) error {
	client, err := c.client(cfg)
	if err != nil {
		return err
	}

	if c.Item != "" {
		item, err := client.Item(context.Background(), c.Collection, c.Item)
		if err != nil {
			return err
		}
		return printItemDetail(os.Stdout, item)
	}

	col, err := client.Collection(context.Background(), c.Collection)
	if err != nil {
		return err
	}

	fmt.Printf("id:          %s\n", col.ID)
	if col.Title != "" {
		fmt.Printf("title:       %s\n", col.Title)
	}
	fmt.Printf("license:     %s\n", col.License)
	if len(col.Keywords) > 0 {
		fmt.Printf("keywords:    %s\n", strings.Join(col.Keywords, ", "))
	}
	for _, bbox := range col.Extent.Spatial.BBox {
		fmt.Printf("bbox:        %v\n", bbox)
	}
	for _, interval := range col.Extent.Temporal.Interval {
		fmt.Printf("interval:    [%s, %s]\n", derefOr(interval, 0, "open"), derefOr(interval, 1, "open"))
	}
	if col.Description != "" {
		fmt.Printf("description: %s\n", truncate(col.Description, 200))
	}
	return nil
}

// itemQueryFlags are the shared item filters.
type itemQueryFlags struct {
	Limit    int    `help:"Maximum number of items." default:"10"`
	BBox     string `help:"Bounding box as minLon,minLat,maxLon,maxLat."`
	Datetime string `help:"Datetime or interval, RFC 3339."`
}

func (f *itemQueryFlags) bbox() ([]float64, error) {
	if f.BBox == "" {
		return nil, nil
	}
	box, err := validation.ParseBBox(f.BBox)
	if err != nil {
		return nil, err
	}
	return box[:], nil
}

func (f *itemQueryFlags) datetime() (string, error) {
	if f.Datetime != "" && !validation.ValidDatetime(f.Datetime) {
		return "", fmt.Errorf("invalid datetime %q", f.Datetime)
	}
	return f.Datetime, nil
}

// StacItemsCmd lists items in a collection.
type StacItemsCmd struct {
	stacClientFlags
	itemQueryFlags
	Collection string `arg:"" help:"Collection ID."`
	Format     string `help:"Output format." default:"table" enum:"table,json"`
}

func (c *StacItemsCmd) Run(cfg *config.Config) error {
	client, err := c.client(cfg)
	if err != nil {
		return err
	}
	bbox, err := c.bbox()
	if err != nil {
		return err
	}
	datetime, err := c.datetime()
	if err != nil {
		return err
	}

	items, err := client.Items(context.Background(), c.Collection, stac.ItemsParams{
		Limit:    c.Limit,
		BBox:     bbox,
		Datetime: datetime,
	})
	if err != nil {
		return err
	}

	if c.Format == "json" {
		return stac.WriteJSON(os.Stdout, items)
	}
	return printItemTable(os.Stdout, items)
}

// searchFlags are the shared cross-collection search filters.
type searchFlags struct {
	itemQueryFlags
	Collections []string `help:"Collections to search. Empty searches all."`
	IDs         []string `help:"Specific item IDs."`
}

func (f *searchFlags) request() (stac.SearchRequest, error) {
	bbox, err := f.bbox()
	if err != nil {
		return stac.SearchRequest{}, err
	}
	datetime, err := f.datetime()
	if err != nil {
		return stac.SearchRequest{}, err
	}
	return stac.SearchRequest{
		Collections: f.Collections,
		BBox:        bbox,
		Datetime:    datetime,
		Limit:       f.Limit,
		IDs:         f.IDs,
	}, nil
}

// StacSearchCmd searches items across collections.
type StacSearchCmd struct {
	stacClientFlags
	searchFlags
	Format string `help:"Output format." default:"table" enum:"table,json"`
}

func (c *StacSearchCmd) Run(cfg *config.Config) error {
	client, err := c.client(cfg)
	if err != nil {
		return err
	}
	req, err := c.request()
	if err != nil {
		return err
	}

	items, err := client.Search(context.Background(), req)
	if err != nil {
		return err
	}

	if c.Format == "json" {
		return stac.WriteJSON(os.Stdout, items)
	}
	return printItemTable(os.Stdout, items)
}

// StacExportCmd writes search results to a file.
type StacExportCmd struct {
	stacClientFlags
	searchFlags
	Format string `help:"Export format." default:"csv" enum:"csv,json"`
	Output string `help:"Output file. Defaults to stdout." short:"o"`
}

func (c *StacExportCmd) Run(cfg *config.Config) error {
	client, err := c.client(cfg)
	if err != nil {
		return err
	}
	req, err := c.request()
	if err != nil {
		return err
	}

	items, err := client.Search(context.Background(), req)
	if err != nil {
		return err
	}

	out := io.Writer(os.Stdout)
	if c.Output != "" {
		f, err := os.Create(c.Output)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	if c.Format == "json" {
		return stac.WriteJSON(out, items)
	}
	return stac.WriteCSV(out, items)
}

func printItemTable(w io.Writer, items []stac.Item) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tCOLLECTION\tDATETIME\tASSETS")
	for i := range items {
		it := &items[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", it.ID, it.Collection, it.Datetime(), len(it.Assets))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "%d items\n", len(items))
	return nil
}

func printItemDetail(w io.Writer, it *stac.Item) error {
	fmt.Fprintf(w, "id:         %s\n", it.ID)
	fmt.Fprintf(w, "collection: %s\n", it.Collection)
	if dt := it.Datetime(); dt != "" {
		fmt.Fprintf(w, "datetime:   %s\n", dt)
	}
	if len(it.BBox) > 0 {
		fmt.Fprintf(w, "bbox:       %v\n", it.BBox)
	}

	keys := make([]string, 0, len(it.Assets))
	for key := range it.Assets {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	tw := newTable(w)
	fmt.Fprintln(tw, "ASSET\tTYPE\tHREF")
	for _, key := range keys {
		asset := it.Assets[key]
		fmt.Fprintf(tw, "%s\t%s\t%s\n", key, asset.Type, truncate(asset.Href, 80))
	}
	return tw.Flush()
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	// Cut on a rune boundary so a multibyte character is never split.
	cut := max - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func derefOr(interval []*string, i int, fallback string) string {
	if i < len(interval) && interval[i] != nil {
		return *interval[i]
	}
	return fallback
}
