// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

// Package main is the geodepot command line tool: STAC catalog exploration,
// GRIB chunk indexing, Zarr reference generation, forecast data download,
// and NetCDF inspection.
package main

import (
	"fmt"

	"github.com/alecthomas/kong"

	"github.com/geodepot/geodepot/internal/config"
	"github.com/geodepot/geodepot/internal/logging"
)

// version is stamped at build time via -ldflags.
var version = "dev"

var CLI struct {
	LogLevel string `help:"Log level." default:"warn" enum:"trace,debug,info,warn,error"`

	Stac    StacCmd    `cmd:"" help:"Explore a STAC catalog."`
	Setup   SetupCmd   `cmd:"" help:"Configure credentials."`
	Index   IndexCmd   `cmd:"" help:"Build and inspect the GRIB chunk index."`
	Zarr    ZarrCmd    `cmd:"" help:"Generate Zarr reference files from the chunk index."`
	Fetch   FetchCmd   `cmd:"" help:"Download forecast data by byte range."`
	Nc      NcCmd      `cmd:"" help:"Inspect NetCDF files."`
	Version VersionCmd `cmd:"" help:"Print the version of this program."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("geodepot"),
		kong.Description("Geospatial data staging and catalog tooling."),
		kong.UsageOnError(),
	)

	logging.Init(logging.Config{Level: CLI.LogLevel, Format: "console"})

	cfg, err := config.Load()
	ctx.FatalIfErrorf(err)

	err = ctx.Run(cfg)
	ctx.FatalIfErrorf(err)
}

// VersionCmd prints the build version.
type VersionCmd struct{}

func (c *VersionCmd) Run(cfg *config.Config) error {
	fmt.Println(version)
	return nil
}
