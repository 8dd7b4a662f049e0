// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/geodepot/geodepot/internal/config"
	"github.com/geodepot/geodepot/internal/ncscan"
)

// NcCmd groups the NetCDF inspection commands.
type NcCmd struct {
	Info   NcInfoCmd   `cmd:"" help:"List the variables and attributes of a NetCDF file."`
	Coords NcCoordsCmd `cmd:"" help:"Print the values of a coordinate variable."`
}

// NcInfoCmd prints a file's structure.
type NcInfoCmd struct {
	Path   string `arg:"" help:"NetCDF file." type:"existingfile"`
	Attrs  bool   `help:"Also print variable attributes."`
	Format string `help:"Output format." enum:"table,json" default:"table"`
}

func (c *NcInfoCmd) Run(cfg *config.Config) error {
	info, err := ncscan.Scan(c.Path)
	if err != nil {
		return err
	}

	if c.Format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	tw := newTable(os.Stdout)
	fmt.Fprintln(tw, "VARIABLE\tTYPE\tDIMENSIONS\tLENGTH")
	for _, v := range info.Variables {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", v.Name, v.Type, strings.Join(v.Dimensions, ","), v.Length)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(info.Attributes) > 0 {
		fmt.Println("\nglobal attributes:")
		printAttrs(info.Attributes)
	}

	if c.Attrs {
		for _, v := range info.Variables {
			if len(v.Attributes) == 0 {
				continue
			}
			fmt.Printf("\n%s attributes:\n", v.Name)
			printAttrs(v.Attributes)
		}
	}

	if len(info.Subgroups) > 0 {
		fmt.Printf("\nsubgroups: %s\n", strings.Join(info.Subgroups, ", "))
	}
	return nil
}

// NcCoordsCmd prints a coordinate axis, like latitude or time.
type NcCoordsCmd struct {
	Path     string `arg:"" help:"NetCDF file." type:"existingfile"`
	Variable string `arg:"" help:"Coordinate variable name."`
}

func (c *NcCoordsCmd) Run(cfg *config.Config) error {
	vals, err := ncscan.Coords(c.Path, c.Variable)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	return enc.Encode(vals)
}

func printAttrs(attrs map[string]interface{}) {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s = %v\n", k, attrs[k])
	}
}
