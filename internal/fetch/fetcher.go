// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/geodepot/geodepot/internal/config"
	"github.com/geodepot/geodepot/internal/gribidx"
	"github.com/geodepot/geodepot/internal/logging"
	"github.com/geodepot/geodepot/internal/metrics"
	"github.com/geodepot/geodepot/internal/objstore"
)

// ErrNoContentLength is returned when the upstream does not report a file
// size; without it the last inventory record's extent cannot be computed.
var ErrNoContentLength = errors.New("fetch: upstream did not report Content-Length")

// ErrRunIncomplete is returned by SyncRun when a run lists fewer files than
// its source requires.
var ErrRunIncomplete = errors.New("fetch: run has too few files")

// errAlreadySynced marks a destination file that already holds exactly the
// bytes the current filter selects. A zero-length or truncated leftover does
// not qualify and is fetched again.
var errAlreadySynced = errors.New("fetch: destination already synced")

// Fetcher downloads inventories and selected GRIB records. One Fetcher is
// safe for concurrent use; all requests share its rate limiter.
type Fetcher struct {
	cfg     config.FetchConfig
	httpc   *http.Client
	limiter *rate.Limiter
}

// NewFetcher builds a fetcher from configuration.
func NewFetcher(cfg config.FetchConfig) *Fetcher {
	return &Fetcher{
		cfg:     cfg,
		httpc:   &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
	}
}

// FetchInventory downloads and parses the .idx sidecar of a remote file.
// The file's own Content-Length, obtained with a HEAD request, bounds the
// final record.
func (f *Fetcher) FetchInventory(ctx context.Context, file *RemoteFile) (gribidx.Inventory, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	head, err := http.NewRequestWithContext(ctx, http.MethodHead, file.URL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: building HEAD request: %w", err)
	}
	resp, err := f.httpc.Do(head)
	if err != nil {
		metrics.FetchErrors.WithLabelValues(file.Run.Source.Name, "inventory").Inc()
		return nil, fmt.Errorf("fetch: HEAD %s: %w", file.URL, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		metrics.FetchErrors.WithLabelValues(file.Run.Source.Name, "inventory").Inc()
		return nil, fmt.Errorf("fetch: HEAD %s: HTTP %d", file.URL, resp.StatusCode)
	}
	if resp.ContentLength < 0 {
		return nil, ErrNoContentLength
	}
	totalLength := resp.ContentLength

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	idxURL := file.InventoryURL().String()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, idxURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: building inventory request: %w", err)
	}
	resp, err = f.httpc.Do(req)
	if err != nil {
		metrics.FetchErrors.WithLabelValues(file.Run.Source.Name, "inventory").Inc()
		return nil, fmt.Errorf("fetch: get inventory %s: %w", idxURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		metrics.FetchErrors.WithLabelValues(file.Run.Source.Name, "inventory").Inc()
		return nil, fmt.Errorf("fetch: get inventory %s: HTTP %d", idxURL, resp.StatusCode)
	}

	return gribidx.ParseInventory(resp.Body, totalLength)
}

// FetchRecords downloads the byte ranges of the given inventory items into
// w, in item order. The upstream must answer 206; a 200 would silently hand
// back the whole file.
func (f *Fetcher) FetchRecords(ctx context.Context, file *RemoteFile, items []*gribidx.InventoryItem, w io.Writer) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	ranges := make([]objstore.ByteRange, len(items))
	specs := make([]string, len(items))
	for i, item := range items {
		ranges[i] = objstore.ByteRange{First: item.Offset, Last: item.Offset + item.Length - 1}
		specs[i] = ranges[i].String()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.URL.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("fetch: building range request: %w", err)
	}
	req.Header.Set("Range", "bytes="+strings.Join(specs, ","))

	resp, err := f.httpc.Do(req)
	if err != nil {
		metrics.FetchErrors.WithLabelValues(file.Run.Source.Name, "range").Inc()
		return 0, fmt.Errorf("fetch: get ranges %s: %w", file.URL, err)
	}
	if resp.StatusCode != http.StatusPartialContent {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		metrics.FetchErrors.WithLabelValues(file.Run.Source.Name, "range").Inc()
		return 0, fmt.Errorf("fetch: get ranges %s: expected 206, got %d", file.URL, resp.StatusCode)
	}

	rr := objstore.NewRangeReader(resp, ranges)
	defer rr.Close()

	n, err := rr.WriteTo(w)
	if err != nil {
		metrics.FetchErrors.WithLabelValues(file.Run.Source.Name, "range").Inc()
		return n, err
	}

	metrics.FetchRecords.WithLabelValues(file.Run.Source.Name).Add(float64(len(items)))
	metrics.FetchBytes.WithLabelValues(file.Run.Source.Name).Add(float64(n))
	return n, nil
}

// fetchFileWithRetry downloads one file's filtered records to a temporary
// file and renames it into place. Retries back off exponentially starting
// from the configured delay.
func (f *Fetcher) fetchFileWithRetry(ctx context.Context, file *RemoteFile, filter Filter, destPath string) error {
	var lastErr error
	delay := f.cfg.RetryBackoff

	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			logging.Debug().
				Str("file", file.Name).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("retrying file fetch")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		lastErr = f.fetchFileOnce(ctx, file, filter, destPath)
		if lastErr == nil || errors.Is(lastErr, errAlreadySynced) {
			return lastErr
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
	}

	return fmt.Errorf("fetch: %s failed after %d attempts: %w", file.Name, f.cfg.MaxRetries+1, lastErr)
}

func (f *Fetcher) fetchFileOnce(ctx context.Context, file *RemoteFile, filter Filter, destPath string) error {
	inv, err := f.FetchInventory(ctx, file)
	if err != nil {
		return err
	}

	items := SelectRecords(inv, filter)
	if len(items) == 0 {
		logging.Debug().Str("file", file.Name).Msg("no records match filter, skipping")
		return nil
	}

	var want int64
	for _, item := range items {
		want += item.Length
	}
	if fi, err := os.Stat(destPath); err == nil && fi.Size() == want {
		logging.Debug().Str("file", file.Name).Int64("size", want).Msg("already present, skipping")
		return errAlreadySynced
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".fetch-*")
	if err != nil {
		metrics.FetchErrors.WithLabelValues(file.Run.Source.Name, "write").Inc()
		return fmt.Errorf("fetch: creating temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := f.FetchRecords(ctx, file, items, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		metrics.FetchErrors.WithLabelValues(file.Run.Source.Name, "write").Inc()
		return fmt.Errorf("fetch: closing temporary file: %w", err)
	}

	// Rename only after a complete download so readers never see a
	// partial file at the destination path.
	if err := os.Rename(tmpName, destPath); err != nil {
		metrics.FetchErrors.WithLabelValues(file.Run.Source.Name, "write").Inc()
		return fmt.Errorf("fetch: renaming into place: %w", err)
	}

	return nil
}

// SyncResult summarizes one run synchronization.
type SyncResult struct {
	Run     *Run
	Fetched int
	Skipped int
	Failed  int
}

// SyncRun downloads a run's filtered records into destDir, one output file
// per forecast file, using the configured number of workers. Files already
// present at the size the filter selects are skipped so an interrupted sync
// can resume; a truncated leftover is fetched again.
func (f *Fetcher) SyncRun(ctx context.Context, run *Run, filter Filter, destDir string) (*SyncResult, error) {
	start := time.Now()

	files, err := run.Files(ctx, f.httpc)
	if err != nil {
		return nil, err
	}
	if len(files) < run.Source.MinFiles {
		return nil, fmt.Errorf("%w: %d < %d", ErrRunIncomplete, len(files), run.Source.MinFiles)
	}
	if filter.MaxStep > 0 {
		trimmed := files[:0]
		for _, file := range files {
			if file.Step <= filter.MaxStep {
				trimmed = append(trimmed, file)
			}
		}
		files = trimmed
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("fetch: creating destination dir: %w", err)
	}

	logging.Info().
		Str("source", run.Source.Name).
		Str("run", run.ID).
		Int("files", len(files)).
		Int("workers", f.cfg.Workers).
		Msg("syncing run")

	result := &SyncResult{Run: run}
	var mu sync.Mutex

	jobs := make(chan *RemoteFile)
	var wg sync.WaitGroup
	for i := 0; i < f.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range jobs {
				destPath := filepath.Join(destDir, file.Name)

				err := f.fetchFileWithRetry(ctx, file, filter, destPath)
				mu.Lock()
				switch {
				case errors.Is(err, errAlreadySynced):
					result.Skipped++
				case err != nil:
					logging.Error().Err(err).Str("file", file.Name).Msg("file fetch failed")
					result.Failed++
				default:
					result.Fetched++
				}
				mu.Unlock()
			}
		}()
	}

	for _, file := range files {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return result, ctx.Err()
		case jobs <- file:
		}
	}
	close(jobs)
	wg.Wait()

	metrics.FetchDuration.Observe(time.Since(start).Seconds())
	logging.Info().
		Str("run", run.ID).
		Int("fetched", result.Fetched).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Dur("elapsed", time.Since(start)).
		Msg("run sync finished")

	if result.Failed > 0 {
		return result, fmt.Errorf("fetch: %d of %d files failed", result.Failed, len(files))
	}
	return result, nil
}
