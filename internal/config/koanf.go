// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"geodepot.yaml",
	"geodepot.yml",
	"config/geodepot.yaml",
	"/etc/geodepot/config.yaml",
	"/etc/geodepot/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with sensible defaults. Defaults are applied
// first, then overridden by the config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute, // large COG reads stream slowly
			ShutdownTimeout: 15 * time.Second,
			RateLimitReqs:   300,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
			CacheTTL:        5 * time.Minute,
			CacheMaxEntries: 4096,
		},
		Storage: StorageConfig{
			Endpoint:       "https://storage.googleapis.com",
			Bucket:         "",
			ProjectID:      "",
			Anonymous:      true,
			RequestTimeout: 2 * time.Minute,
		},
		Upstream: UpstreamConfig{
			RasterTiles: "",
			VectorTiles: "",
			HealthPath:  "/healthz",
			Timeout:     30 * time.Second,
		},
		STAC: STACConfig{
			APIURL:    "",
			Timeout:   30 * time.Second,
			PageLimit: 100,
		},
		Fetch: FetchConfig{
			Workers:      5,
			MaxRetries:   5,
			RetryBackoff: time.Second,
			Timeout:      10 * time.Minute,
			RateLimit:    4,
			Burst:        8,
			OutputDir:    "data",
		},
		Index: IndexConfig{
			Path:       "/data/geodepot/index",
			GCInterval: 10 * time.Minute,
		},
		Launcher: LauncherConfig{
			AppCommand:   nil,
			AppPort:      8080,
			ProxyCommand: []string{"nginx", "-g", "daemon off;"},
			StartupWait:  30 * time.Second,
			PollInterval: 10 * time.Second,
			HealthPath:   "/healthz",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load resolves configuration from layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file (if one exists)
//  3. Environment variables: override any setting
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Environment variables have the highest priority.
	// GEODEPOT_STORAGE_BUCKET -> storage.bucket
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file, honoring CONFIG_PATH first.
// Returns empty string when no file exists; that is not an error.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths are parsed as comma-separated
// slices when they arrive from environment variables.
var sliceConfigPaths = []string{
	"server.cors_origins",
	"launcher.app_command",
	"launcher.proxy_command",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars come in as strings but the config expects
// slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML or defaults), nothing to do.
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables are dropped so that unrelated environment noise never
// leaks into the configuration.
//
// Examples:
//   - GEODEPOT_SERVER_PORT -> server.port
//   - GEODEPOT_STORAGE_BUCKET -> storage.bucket
//   - STAC_API_URL -> stac.api_url
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server
		"geodepot_server_host":        "server.host",
		"geodepot_server_port":        "server.port",
		"geodepot_read_timeout":       "server.read_timeout",
		"geodepot_write_timeout":      "server.write_timeout",
		"geodepot_shutdown_timeout":   "server.shutdown_timeout",
		"geodepot_rate_limit_reqs":    "server.rate_limit_reqs",
		"geodepot_rate_limit_window":  "server.rate_limit_window",
		"geodepot_cors_origins":       "server.cors_origins",
		"geodepot_cache_ttl":          "server.cache_ttl",
		"geodepot_cache_max_entries":  "server.cache_max_entries",

		// Object storage
		"geodepot_storage_endpoint":    "storage.endpoint",
		"geodepot_storage_bucket":      "storage.bucket",
		"geodepot_storage_project_id":  "storage.project_id",
		"geodepot_storage_credentials": "storage.credentials_file",
		"geodepot_storage_anonymous":   "storage.anonymous",
		"geodepot_storage_timeout":     "storage.request_timeout",

		// Tile upstreams
		"geodepot_raster_tiles_url":    "upstream.raster_tiles",
		"geodepot_vector_tiles_url":    "upstream.vector_tiles",
		"geodepot_upstream_health":     "upstream.health_path",
		"geodepot_upstream_timeout":    "upstream.timeout",

		// STAC
		"stac_api_url":         "stac.api_url",
		"stac_timeout":         "stac.timeout",
		"stac_page_limit":      "stac.page_limit",

		// Fetch engine
		"geodepot_fetch_workers":       "fetch.workers",
		"geodepot_fetch_max_retries":   "fetch.max_retries",
		"geodepot_fetch_retry_backoff": "fetch.retry_backoff",
		"geodepot_fetch_timeout":       "fetch.timeout",
		"geodepot_fetch_rate_limit":    "fetch.rate_limit",
		"geodepot_fetch_burst":         "fetch.burst",
		"geodepot_fetch_output_dir":    "fetch.output_dir",

		// Chunk index
		"geodepot_index_path":        "index.path",
		"geodepot_index_gc_interval": "index.gc_interval",

		// Launcher
		"geodepot_app_command":   "launcher.app_command",
		"geodepot_app_port":      "launcher.app_port",
		"geodepot_proxy_command": "launcher.proxy_command",
		"geodepot_startup_wait":  "launcher.startup_wait",
		"geodepot_poll_interval": "launcher.poll_interval",
		"geodepot_health_path":   "launcher.health_path",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	return ""
}

// FindConfigFile reports the file Load would read, empty when none exists.
func FindConfigFile() string {
	return findConfigFile()
}

// WatchConfigFile sets up a file watcher for hot-reload. The caller is
// responsible for mutex protection when swapping configuration at runtime.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)

	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
