// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

// Package main is the entry point for the Geodepot server.
//
// The server fronts a bucket of Cloud-Optimized GeoTIFFs with a byte-range
// proxy, caches raster and vector tiles from upstream tile servers, and
// exposes health probes, Prometheus metrics, and an operational status
// endpoint.
//
// Components start in this order:
//
//  1. Configuration: Koanf v2 layered sources (defaults, config.yaml,
//     environment variables; highest priority wins)
//  2. Object storage client for the configured bucket
//  3. STAC catalog client behind a circuit breaker
//  4. Chunk index store (badger) with scheduled value log GC
//  5. HTTP server under the suture supervisor tree
//
// The server shuts down gracefully on SIGINT and SIGTERM: it stops accepting
// connections, drains in-flight requests within the shutdown timeout, and
// closes the index store.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/geodepot/geodepot/internal/api"
	"github.com/geodepot/geodepot/internal/config"
	"github.com/geodepot/geodepot/internal/gribidx"
	"github.com/geodepot/geodepot/internal/logging"
	"github.com/geodepot/geodepot/internal/objstore"
	"github.com/geodepot/geodepot/internal/stac"
	"github.com/geodepot/geodepot/internal/supervisor"
	"github.com/geodepot/geodepot/internal/supervisor/services"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	// Hot-reload applies the log level only; everything else needs a restart.
	if path := config.FindConfigFile(); path != "" {
		err := config.WatchConfigFile(path, func() {
			fresh, err := config.Load()
			if err != nil {
				logging.Error().Err(err).Msg("Config reload failed, keeping previous settings")
				return
			}
			logging.SetLevelString(fresh.Logging.Level)
			logging.Info().Str("level", fresh.Logging.Level).Msg("Configuration reloaded")
		})
		if err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Config file watch unavailable")
		}
	}

	logging.Info().
		Str("version", version).
		Str("listen", cfg.Server.ListenAddr()).
		Msg("Starting Geodepot server")

	handlerOpts := []api.HandlerOption{api.WithVersion(version)}

	if storage := buildStorageClient(cfg); storage != nil {
		handlerOpts = append(handlerOpts, api.WithStorage(storage))
	}

	if cfg.STAC.APIURL != "" {
		stacClient, err := stac.NewClient(cfg.STAC.APIURL, cfg.STAC.Timeout)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create STAC client")
		}
		handlerOpts = append(handlerOpts, api.WithSTAC(stac.NewCircuitBreakerClient(stacClient)))
		logging.Info().Str("api_url", cfg.STAC.APIURL).Msg("STAC client configured")
	}

	var indexStore *gribidx.Store
	if cfg.Index.Path != "" {
		indexStore, err = gribidx.OpenStore(cfg.Index.Path)
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Index.Path).Msg("Failed to open index store")
		}
		defer func() {
			if err := indexStore.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing index store")
			}
		}()
		handlerOpts = append(handlerOpts, api.WithIndex(indexStore))
		logging.Info().Str("path", cfg.Index.Path).Msg("Index store opened")
	}

	handler, err := api.NewHandler(cfg, handlerOpts...)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build API handler")
	}

	server := &http.Server{
		Addr:         cfg.Server.ListenAddr(),
		Handler:      api.NewRouter(handler, &cfg.Server),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	treeCfg := supervisor.DefaultTreeConfig()
	if cfg.Server.ShutdownTimeout > 0 {
		treeCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	}
	tree, err := supervisor.NewTree(logging.NewSlogLogger(), treeCfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	if indexStore != nil {
		tree.AddIndexService(services.NewIndexGCService(indexStore, cfg.Index.GCInterval))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Server stopped gracefully")
}

// buildStorageClient creates the object storage client, resolving cached or
// environment credentials unless anonymous access is configured. A missing
// credential set degrades to anonymous access rather than failing startup;
// public buckets work either way.
func buildStorageClient(cfg *config.Config) *objstore.Client {
	bucket := cfg.Storage.Bucket
	var opts []objstore.Option

	if !cfg.Storage.Anonymous {
		creds, err := config.LoadStorageCredentials(cfg.Storage.CredentialsFile)
		switch {
		case err == nil:
			if bucket == "" {
				bucket = creds.Bucket
			}
			opts = append(opts, objstore.WithToken(creds.Credentials))
		case errors.Is(err, config.ErrNoCredentials):
			logging.Warn().Msg("No storage credentials found, using anonymous access")
		default:
			logging.Fatal().Err(err).Msg("Failed to load storage credentials")
		}
	}

	if bucket == "" {
		logging.Info().Msg("No storage bucket configured, COG proxy disabled")
		return nil
	}

	client, err := objstore.New(cfg.Storage.Endpoint, bucket, cfg.Storage.RequestTimeout, opts...)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create storage client")
	}
	logging.Info().Str("bucket", bucket).Msg("Object storage client configured")
	return client
}
