// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

// Package ncscan inspects NetCDF files and reports their structure without
// materializing array data.
package ncscan

import (
	"fmt"
	"sort"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// VariableInfo describes one variable.
type VariableInfo struct {
	Name       string                 `json:"name"`
	Type       string                 `json:"type"`
	Dimensions []string               `json:"dimensions"`
	Length     int64                  `json:"length"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// FileInfo is the scanned structure of one file.
type FileInfo struct {
	Path       string                 `json:"path"`
	Variables  []VariableInfo         `json:"variables"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	Subgroups  []string               `json:"subgroups,omitempty"`
}

// Scan opens a NetCDF file and reports its variables, dimensions and
// attributes. Only metadata is read; a multi-gigabyte file scans in
// milliseconds.
func Scan(path string) (*FileInfo, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ncscan: opening %s: %w", path, err)
	}
	defer nc.Close()

	info := &FileInfo{
		Path:       path,
		Attributes: attrMap(nc.Attributes()),
		Subgroups:  nc.ListSubgroups(),
	}

	names := nc.ListVariables()
	sort.Strings(names)

	for _, name := range names {
		vg, err := nc.GetVarGetter(name)
		if err != nil {
			return nil, fmt.Errorf("ncscan: variable %s: %w", name, err)
		}
		info.Variables = append(info.Variables, VariableInfo{
			Name:       name,
			Type:       vg.Type(),
			Dimensions: vg.Dimensions(),
			Length:     vg.Len(),
			Attributes: attrMap(vg.Attributes()),
		})
	}

	return info, nil
}

func attrMap(attrs api.AttributeMap) map[string]interface{} {
	if attrs == nil {
		return nil
	}
	keys := attrs.Keys()
	if len(keys) == 0 {
		return nil
	}

	out := make(map[string]interface{}, len(keys))
	for _, key := range keys {
		if val, ok := attrs.Get(key); ok {
			out[key] = val
		}
	}
	return out
}

// Coords reads the values of one coordinate variable, typically a
// dimension axis like latitude or time.
func Coords(path, varName string) (interface{}, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ncscan: opening %s: %w", path, err)
	}
	defer nc.Close()

	vg, err := nc.GetVarGetter(varName)
	if err != nil {
		return nil, fmt.Errorf("ncscan: variable %s: %w", varName, err)
	}
	vals, err := vg.Values()
	if err != nil {
		return nil, fmt.Errorf("ncscan: reading %s: %w", varName, err)
	}
	return vals, nil
}
