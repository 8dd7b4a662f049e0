// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

// Package config provides layered configuration for all Geodepot binaries.
//
// Configuration is resolved from three sources, highest priority last:
//
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables
//
// Object storage credentials have their own resolution path: environment
// variables first, then a JSON credential cache written by `geodepot setup`.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for Geodepot.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Storage  StorageConfig  `koanf:"storage"`
	Upstream UpstreamConfig `koanf:"upstream"`
	STAC     STACConfig     `koanf:"stac"`
	Fetch    FetchConfig    `koanf:"fetch"`
	Index    IndexConfig    `koanf:"index"`
	Launcher LauncherConfig `koanf:"launcher"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings for the proxy service.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	CacheTTL        time.Duration `koanf:"cache_ttl"`
	CacheMaxEntries int           `koanf:"cache_max_entries" validate:"min=0"`
}

// StorageConfig identifies the object storage bucket COGs are proxied from.
// Endpoint plus bucket form the object URL; with Anonymous set no token is
// attached to requests.
type StorageConfig struct {
	Endpoint        string        `koanf:"endpoint" validate:"omitempty,url"`
	Bucket          string        `koanf:"bucket"`
	ProjectID       string        `koanf:"project_id"`
	CredentialsFile string        `koanf:"credentials_file"`
	Anonymous       bool          `koanf:"anonymous"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
}

// UpstreamConfig points at the raster and vector tile servers this service
// fronts.
type UpstreamConfig struct {
	RasterTiles string        `koanf:"raster_tiles" validate:"omitempty,url"`
	VectorTiles string        `koanf:"vector_tiles" validate:"omitempty,url"`
	HealthPath  string        `koanf:"health_path"`
	Timeout     time.Duration `koanf:"timeout"`
}

// STACConfig holds STAC API client settings.
type STACConfig struct {
	APIURL    string        `koanf:"api_url" validate:"omitempty,url"`
	Timeout   time.Duration `koanf:"timeout"`
	PageLimit int           `koanf:"page_limit" validate:"min=1,max=1000"`
}

// FetchConfig controls the ranged-download engine.
type FetchConfig struct {
	Workers      int           `koanf:"workers" validate:"min=1"`
	MaxRetries   int           `koanf:"max_retries" validate:"min=0"`
	RetryBackoff time.Duration `koanf:"retry_backoff"`
	Timeout      time.Duration `koanf:"timeout"`
	RateLimit    float64       `koanf:"rate_limit" validate:"gt=0"`
	Burst        int           `koanf:"burst" validate:"min=1"`
	OutputDir    string        `koanf:"output_dir"`
}

// IndexConfig holds the chunk index store location.
type IndexConfig struct {
	Path       string        `koanf:"path"`
	GCInterval time.Duration `koanf:"gc_interval"`
}

// LauncherConfig drives the process launcher that runs the app server behind
// a reverse proxy.
type LauncherConfig struct {
	AppCommand   []string      `koanf:"app_command"`
	AppPort      int           `koanf:"app_port" validate:"min=0,max=65535"`
	ProxyCommand []string      `koanf:"proxy_command"`
	StartupWait  time.Duration `koanf:"startup_wait"`
	PollInterval time.Duration `koanf:"poll_interval"`
	HealthPath   string        `koanf:"health_path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic disabled"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// ListenAddr returns the host:port the HTTP server binds to.
func (c *ServerConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
