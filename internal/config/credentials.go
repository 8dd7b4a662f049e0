// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

// StorageCredentials is the resolved object storage identity. It is cached
// on disk between runs so the CLI does not prompt every invocation.
type StorageCredentials struct {
	Credentials string `json:"credentials"`
	Bucket      string `json:"bucket"`
	ProjectID   string `json:"project_id"`
}

// ErrNoCredentials indicates no credentials are cached and none were found
// in the environment.
var ErrNoCredentials = errors.New("config: no storage credentials configured")

// DefaultCredentialsPath returns the default location of the credential
// cache file under the user config dir.
func DefaultCredentialsPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "geodepot", "storage.json"), nil
}

// LoadStorageCredentials resolves storage credentials. Environment variables
// take precedence over the cached file; a partial environment is completed
// from the cache.
func LoadStorageCredentials(path string) (*StorageCredentials, error) {
	cc := &StorageCredentials{
		Credentials: os.Getenv("GEODEPOT_STORAGE_CREDENTIALS"),
		Bucket:      os.Getenv("GEODEPOT_STORAGE_BUCKET"),
		ProjectID:   os.Getenv("GEODEPOT_STORAGE_PROJECT_ID"),
	}
	if cc.Credentials != "" && cc.Bucket != "" && cc.ProjectID != "" {
		return cc, nil
	}

	if path == "" {
		var err error
		path, err = DefaultCredentialsPath()
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if cc.Bucket != "" {
				// Enough to operate anonymously against a public bucket.
				return cc, nil
			}
			return nil, ErrNoCredentials
		}
		return nil, fmt.Errorf("read credential cache %s: %w", path, err)
	}

	cached := &StorageCredentials{}
	if err := json.Unmarshal(data, cached); err != nil {
		return nil, fmt.Errorf("parse credential cache %s: %w", path, err)
	}

	if cc.Credentials == "" {
		cc.Credentials = cached.Credentials
	}
	if cc.Bucket == "" {
		cc.Bucket = cached.Bucket
	}
	if cc.ProjectID == "" {
		cc.ProjectID = cached.ProjectID
	}

	if cc.Bucket == "" {
		return nil, ErrNoCredentials
	}
	return cc, nil
}

// SaveStorageCredentials writes the credential cache with owner-only
// permissions, creating parent directories as needed.
func SaveStorageCredentials(path string, cc *StorageCredentials) error {
	if path == "" {
		var err error
		path, err = DefaultCredentialsPath()
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}

	data, err := json.MarshalIndent(cc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write credential cache %s: %w", path, err)
	}
	return nil
}
