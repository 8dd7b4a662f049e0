// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/geodepot/geodepot/internal/config"
	"github.com/geodepot/geodepot/internal/gribidx"
	"github.com/geodepot/geodepot/internal/zarrmeta"
)

// ZarrCmd groups the reference file commands.
type ZarrCmd struct {
	Refs ZarrRefsCmd `cmd:"" help:"Write a kerchunk-style reference file for indexed variables."`
}

// ZarrRefsCmd cuts a Zarr V2 reference set out of the chunk index. Readers
// open the result as a virtual dataset and fetch only the byte ranges they
// touch.
type ZarrRefsCmd struct {
	storeFlags
	Grid   string   `help:"Per-timestep grid shape, e.g. 721x1440." required:""`
	DType  string   `help:"Zarr dtype for every variable." default:"<f4"`
	Vars   []string `help:"Variables to include. Empty includes all indexed variables."`
	Output string   `help:"Output reference file. Defaults to stdout." short:"o"`
}

func (c *ZarrRefsCmd) Run(cfg *config.Config) error {
	gridShape, err := parseGridShape(c.Grid)
	if err != nil {
		return err
	}
	if _, err := zarrmeta.ParseDType(c.DType); err != nil {
		return err
	}

	store, err := c.open(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	names := c.Vars
	if len(names) == 0 {
		names, err = store.Vars(ctx)
		if err != nil {
			return err
		}
	}
	if len(names) == 0 {
		return fmt.Errorf("index store holds no variables")
	}

	var records []gribidx.Record
	specs := make(map[string]zarrmeta.VariableSpec, len(names))
	for _, name := range names {
		recs, err := store.ScanVar(ctx, name, time.Time{}, time.Time{})
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			return fmt.Errorf("variable %q not in index", name)
		}
		records = append(records, recs...)
		specs[name] = zarrmeta.VariableSpec{
			GridShape: gridShape,
			DType:     c.DType,
		}
	}

	refs, err := zarrmeta.BuildFromRecords(records, specs)
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

	if err := refs.WriteReferences(out); err != nil {
		return err
	}
	if c.Output != "" {
		fmt.Printf("wrote %d references for %d variables to %s\n", refs.Len(), len(specs), c.Output)
	}
	return nil
}

func parseGridShape(s string) ([]int, error) {
	parts := strings.Split(s, "x")
	shape := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid grid shape %q", s)
		}
		shape = append(shape, n)
	}
	if len(shape) == 0 {
		return nil, fmt.Errorf("invalid grid shape %q", s)
	}
	return shape, nil
}
