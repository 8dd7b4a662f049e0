// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

// Package zarrmeta renders a chunk index as a Zarr V2 reference filesystem,
// the JSON layout virtual-dataset readers consume. No array bytes are
// written; every chunk key points back into the original GRIB files.
package zarrmeta

import (
	"fmt"
)

// ArrayMetadata is the Zarr V2 .zarray document for one variable.
type ArrayMetadata struct {
	Chunks     []int             `json:"chunks"`
	Compressor *CompressorConfig `json:"compressor"`
	DType      string            `json:"dtype"`
	FillValue  interface{}       `json:"fill_value"`
	Filters    []interface{}     `json:"filters"`
	Order      string            `json:"order"`
	Shape      []int             `json:"shape"`
	ZarrFormat int               `json:"zarr_format"`
}

// CompressorConfig identifies the codec applied to chunk bytes. GRIB chunks
// are referenced raw, so it is nil in this package's output.
type CompressorConfig struct {
	ID    string `json:"id"`
	Level int    `json:"level,omitempty"`
}

// GroupMetadata is the .zgroup document.
type GroupMetadata struct {
	ZarrFormat int `json:"zarr_format"`
}

// Attributes is a .zattrs document.
type Attributes map[string]interface{}

// DType is a Go-friendly rendering of a Zarr dtype string.
type DType string

const (
	Bool    DType = "bool"
	Int8    DType = "int8"
	Int16   DType = "int16"
	Int32   DType = "int32"
	Int64   DType = "int64"
	Uint8   DType = "uint8"
	Uint16  DType = "uint16"
	Uint32  DType = "uint32"
	Uint64  DType = "uint64"
	Float32 DType = "float32"
	Float64 DType = "float64"
)

var dtypeNames = map[string]DType{
	"|b1": Bool,
	"|i1": Int8,
	"|u1": Uint8,
	"<i2": Int16, ">i2": Int16,
	"<i4": Int32, ">i4": Int32,
	"<i8": Int64, ">i8": Int64,
	"<u2": Uint16, ">u2": Uint16,
	"<u4": Uint32, ">u4": Uint32,
	"<u8": Uint64, ">u8": Uint64,
	"<f4": Float32, ">f4": Float32,
	"<f8": Float64, ">f8": Float64,
}

// ParseDType maps a numpy-style dtype string ("<f4", "|b1") to a named type.
func ParseDType(dtype string) (DType, error) {
	if name, ok := dtypeNames[dtype]; ok {
		return name, nil
	}
	return "", fmt.Errorf("zarrmeta: unsupported dtype %q", dtype)
}
