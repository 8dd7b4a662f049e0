// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/geodepot/geodepot/internal/config"
	"github.com/geodepot/geodepot/internal/fetch"
	"github.com/geodepot/geodepot/internal/logging"
)

// FetchCmd groups the forecast download commands.
type FetchCmd struct {
	Runs FetchRunsCmd `cmd:"" help:"List runs available at a source."`
	Sync FetchSyncCmd `cmd:"" help:"Download the selected records of the newest complete run."`
}

// sourceFlags describe the upstream archive to scrape.
type sourceFlags struct {
	Name        string `help:"Source label for logs and metrics." default:"gfs"`
	BaseURL     string `help:"Index page listing run directories." required:""`
	RunPattern  string `help:"Regexp matching run directories, with year/month/day/hour groups." required:""`
	FilePattern string `help:"Regexp matching GRIB files, with a fcstHour group." required:""`
	MinFiles    int    `help:"Files a run needs before it counts as complete."`
}

func (f *sourceFlags) source() *fetch.Source {
	return &fetch.Source{
		Name:        f.Name,
		BaseURL:     f.BaseURL,
		RunPattern:  f.RunPattern,
		FilePattern: f.FilePattern,
		MinFiles:    f.MinFiles,
	}
}

// FetchRunsCmd lists discovered runs, newest first.
type FetchRunsCmd struct {
	sourceFlags
	Limit int `help:"Maximum runs to list." default:"10"`
}

func (c *FetchRunsCmd) Run(cfg *config.Config) error {
	httpc := &http.Client{Timeout: cfg.Fetch.Timeout}
	runs, err := c.source().DiscoverRuns(context.Background(), httpc)
	if err != nil {
		return err
	}
	if c.Limit > 0 && len(runs) > c.Limit {
		runs = runs[:c.Limit]
	}

	tw := newTable(os.Stdout)
	fmt.Fprintln(tw, "RUN\tREFERENCE TIME\tURL")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", run.ID, run.RefTime.UTC().Format(time.RFC3339), run.URL)
	}
	return tw.Flush()
}

// FetchSyncCmd downloads a run. It walks runs newest first and settles on
// the first one with enough files, so a cycle still being published does
// not produce a partial dataset.
type FetchSyncCmd struct {
	sourceFlags
	Params       []string      `help:"Parameters to keep, in output order, e.g. TMP,UGRD,VGRD."`
	Levels       []string      `help:"Levels to keep, e.g. '500 mb'. Empty keeps all."`
	PressureOnly bool          `help:"Keep only pressure-level records."`
	MaxStep      time.Duration `help:"Drop records past this lead time. Zero keeps all."`
	Dest         string        `help:"Destination directory. Defaults to the configured fetch.output_dir."`
	RunID        string        `name:"run" help:"Sync this run ID instead of the newest complete run."`
}

func (c *FetchSyncCmd) Run(cfg *config.Config) error {
	dest := c.Dest
	if dest == "" {
		dest = cfg.Fetch.OutputDir
	}
	if dest == "" {
		return errors.New("no destination: set --dest or fetch.output_dir")
	}

	ctx := context.Background()
	httpc := &http.Client{Timeout: cfg.Fetch.Timeout}
	runs, err := c.source().DiscoverRuns(ctx, httpc)
	if err != nil {
		return err
	}
	if c.RunID != "" {
		runs = filterRuns(runs, c.RunID)
		if len(runs) == 0 {
			return fmt.Errorf("run %q not found at source", c.RunID)
		}
	}

	filter := fetch.Filter{
		Parameters:   c.Params,
		Levels:       c.Levels,
		PressureOnly: c.PressureOnly,
		MaxStep:      c.MaxStep,
	}
	fetcher := fetch.NewFetcher(cfg.Fetch)

	for _, run := range runs {
		result, err := fetcher.SyncRun(ctx, run, filter, dest)
		if errors.Is(err, fetch.ErrRunIncomplete) {
			logging.Info().Str("run", run.ID).Msg("Run not yet complete, trying previous cycle")
			continue
		}
		if err != nil {
			return err
		}

		fmt.Printf("run %s: fetched %d, skipped %d, failed %d\n",
			result.Run.ID, result.Fetched, result.Skipped, result.Failed)
		return nil
	}

	return errors.New("no complete run available")
}

func filterRuns(runs []*fetch.Run, id string) []*fetch.Run {
	kept := runs[:0]
	for _, run := range runs {
		if run.ID == id {
			kept = append(kept, run)
		}
	}
	return kept
}
