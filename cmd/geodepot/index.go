// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/geodepot/geodepot/internal/config"
	"github.com/geodepot/geodepot/internal/gribidx"
)

// IndexCmd groups the chunk index commands.
type IndexCmd struct {
	Build   IndexBuildCmd   `cmd:"" help:"Parse wgrib2 inventories and store chunk records."`
	Show    IndexShowCmd    `cmd:"" help:"Summarize the stored index."`
	Backup  IndexBackupCmd  `cmd:"" help:"Snapshot the index store to a file."`
	Restore IndexRestoreCmd `cmd:"" help:"Load a snapshot into the index store."`
}

// storeFlags locate the badger index store.
type storeFlags struct {
	Store string `help:"Index store directory. Defaults to the configured index.path."`
}

func (f *storeFlags) open(cfg *config.Config) (*gribidx.Store, error) {
	path := f.Store
	if path == "" {
		path = cfg.Index.Path
	}
	if path == "" {
		return nil, errors.New("no index store configured: set --store or index.path")
	}
	return gribidx.OpenStore(path)
}

// IndexBuildCmd joins .idx inventories with a variable mapping and writes
// the resulting chunk records.
type IndexBuildCmd struct {
	storeFlags
	Mapping   string   `help:"Variable mapping JSON file." required:"" type:"existingfile"`
	URIPrefix string   `help:"Rebase record URIs onto this prefix instead of the local path."`
	IdxFiles  []string `arg:"" help:"wgrib2 .idx inventory files." type:"existingfile"`
}

func (c *IndexBuildCmd) Run(cfg *config.Config) error {
	mapping, err := gribidx.LoadMappingFile(c.Mapping)
	if err != nil {
		return err
	}

	store, err := c.open(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	total := 0
	for _, idxPath := range c.IdxFiles {
		records, err := buildFromIdxFile(idxPath, mapping, c.URIPrefix)
		if err != nil {
			return fmt.Errorf("%s: %w", idxPath, err)
		}
		if err := store.Put(ctx, records); err != nil {
			return fmt.Errorf("%s: %w", idxPath, err)
		}
		total += len(records)
		fmt.Printf("%s: %d records\n", idxPath, len(records))
	}

	fmt.Printf("indexed %d records from %d inventories\n", total, len(c.IdxFiles))
	return nil
}

// buildFromIdxFile parses one sidecar inventory. The data file must sit next
// to it (same path without the .idx suffix) so the last record's extent can
// be derived from the file size.
func buildFromIdxFile(idxPath string, mapping *gribidx.Mapping, uriPrefix string) ([]gribidx.Record, error) {
	dataPath, ok := strings.CutSuffix(idxPath, ".idx")
	if !ok {
		return nil, fmt.Errorf("inventory file must end in .idx")
	}

	info, err := os.Stat(dataPath)
	if err != nil {
		return nil, fmt.Errorf("data file for inventory: %w", err)
	}

	f, err := os.Open(idxPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	inv, err := gribidx.ParseInventory(f, info.Size())
	if err != nil {
		return nil, err
	}

	uri := dataPath
	if uriPrefix != "" {
		base := dataPath
		if i := strings.LastIndexByte(base, '/'); i >= 0 {
			base = base[i+1:]
		}
		uri = strings.TrimRight(uriPrefix, "/") + "/" + base
	}

	return gribidx.BuildIndex(inv, mapping, uri)
}

// IndexBackupCmd writes a snapshot of the store.
type IndexBackupCmd struct {
	storeFlags
	Output string `help:"Snapshot file." required:"" short:"o"`
}

func (c *IndexBackupCmd) Run(cfg *config.Config) error {
	store, err := c.open(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	f, err := os.Create(c.Output)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	version, err := store.Backup(f)
	if err != nil {
		return err
	}
	fmt.Printf("snapshot written to %s (version %d)\n", c.Output, version)
	return nil
}

// IndexRestoreCmd loads a snapshot into the store.
type IndexRestoreCmd struct {
	storeFlags
	Input string `arg:"" help:"Snapshot file." type:"existingfile"`
}

func (c *IndexRestoreCmd) Run(cfg *config.Config) error {
	store, err := c.open(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	f, err := os.Open(c.Input)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if err := store.Restore(f); err != nil {
		return err
	}
	count, err := store.Count(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("restored %s: store now holds %d records\n", c.Input, count)
	return nil
}

// IndexShowCmd prints a per-variable summary of the store.
type IndexShowCmd struct {
	storeFlags
}

func (c *IndexShowCmd) Run(cfg *config.Config) error {
	store, err := c.open(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	vars, err := store.Vars(ctx)
	if err != nil {
		return err
	}

	tw := newTable(os.Stdout)
	fmt.Fprintln(tw, "VARIABLE\tRECORDS\tFIRST\tLAST")
	for _, name := range vars {
		records, err := store.ScanVar(ctx, name, time.Time{}, time.Time{})
		if err != nil {
			return err
		}
		first, last := "", ""
		if len(records) > 0 {
			first = records[0].ValidTime.UTC().Format(time.RFC3339)
			last = records[len(records)-1].ValidTime.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", name, len(records), first, last)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	count, err := store.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%d records, %d variables\n", count, len(vars))
	return nil
}
