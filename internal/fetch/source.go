// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

// Package fetch downloads GRIB forecast data from upstream model servers.
// Runs and files are discovered by scraping directory index pages; records
// are pulled selectively with HTTP range requests so a sync moves only the
// fields a consumer cares about.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/geodepot/geodepot/internal/logging"
)

// ErrNoRuns is returned when a source's index page lists no matching runs.
var ErrNoRuns = errors.New("fetch: no runs found")

// Source describes one upstream model archive.
type Source struct {
	// Name labels the source in logs and metrics.
	Name string

	// BaseURL is the index page listing run directories.
	BaseURL string

	// RunPattern matches run directory names. Named groups year, month,
	// day and hour give the run's reference time.
	RunPattern string

	// FilePattern matches GRIB file names within a run directory. A named
	// group fcstHour gives the file's forecast hour.
	FilePattern string

	// MinFiles is the number of files a run needs before it counts as
	// complete. Zero accepts any run.
	MinFiles int
}

// Run is one model cycle discovered under a source.
type Run struct {
	Source  *Source
	ID      string
	URL     *url.URL
	RefTime time.Time
}

// RemoteFile is one GRIB file within a run.
type RemoteFile struct {
	Run  *Run
	Name string
	URL  *url.URL
	Step time.Duration
}

// InventoryURL locates the wgrib2 sidecar conventionally published next to
// the file.
func (f *RemoteFile) InventoryURL() *url.URL {
	u := *f.URL
	u.Path += ".idx"
	return &u
}

// DiscoverRuns scrapes the source index page and returns matching runs
// newest first. Partial runs are included; callers should check file counts
// before committing to one.
func (s *Source) DiscoverRuns(ctx context.Context, httpc *http.Client) ([]*Run, error) {
	base, err := url.Parse(s.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("fetch: bad base URL: %w", err)
	}
	runRe, err := regexp.Compile(s.RunPattern)
	if err != nil {
		return nil, fmt.Errorf("fetch: bad run pattern: %w", err)
	}

	hrefs, err := fetchIndexLinks(ctx, httpc, s.BaseURL)
	if err != nil {
		return nil, err
	}

	var runs []*Run
	for _, href := range hrefs {
		id := strings.TrimRight(href, "/")
		m := runRe.FindStringSubmatch(id)
		if m == nil {
			continue
		}

		rel, err := url.Parse(href)
		if err != nil {
			continue
		}

		var year, month, day, hour int
		for i, name := range runRe.SubexpNames() {
			val, err := strconv.Atoi(m[i])
			if err != nil {
				continue
			}
			switch name {
			case "year":
				year = val
			case "month":
				month = val
			case "day":
				day = val
			case "hour":
				hour = val
			}
		}

		runs = append(runs, &Run{
			Source:  s,
			ID:      id,
			URL:     base.ResolveReference(rel),
			RefTime: time.Date(year, time.Month(month), day, hour, 0, 0, 0, time.UTC),
		})
	}

	if len(runs) == 0 {
		return nil, fmt.Errorf("%w at %s", ErrNoRuns, s.BaseURL)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].RefTime.After(runs[j].RefTime)
	})

	logging.Debug().Str("source", s.Name).Int("runs", len(runs)).Msg("discovered runs")
	return runs, nil
}

// Files lists the GRIB files of a run in forecast-hour order.
func (r *Run) Files(ctx context.Context, httpc *http.Client) ([]*RemoteFile, error) {
	fileRe, err := regexp.Compile(r.Source.FilePattern)
	if err != nil {
		return nil, fmt.Errorf("fetch: bad file pattern: %w", err)
	}

	hrefs, err := fetchIndexLinks(ctx, httpc, r.URL.String())
	if err != nil {
		return nil, err
	}

	var files []*RemoteFile
	for _, href := range hrefs {
		name := strings.TrimRight(href, "/")
		m := fileRe.FindStringSubmatch(name)
		if m == nil {
			continue
		}

		rel, err := url.Parse(href)
		if err != nil {
			continue
		}

		step := time.Duration(0)
		for i, subName := range fileRe.SubexpNames() {
			if subName != "fcstHour" {
				continue
			}
			if hour, err := strconv.Atoi(m[i]); err == nil {
				step = time.Duration(hour) * time.Hour
			}
		}

		files = append(files, &RemoteFile{
			Run:  r,
			Name: name,
			URL:  r.URL.ResolveReference(rel),
			Step: step,
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Step < files[j].Step })
	return files, nil
}

// fetchIndexLinks downloads an HTML index page and returns every anchor
// href in document order.
func fetchIndexLinks(ctx context.Context, httpc *http.Client, rawURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: building index request: %w", err)
	}

	resp, err := httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: get index %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch: get index %s: HTTP %d", rawURL, resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch: parse index %s: %w", rawURL, err)
	}

	var hrefs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "href" {
					hrefs = append(hrefs, attr.Val)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return hrefs, nil
}
