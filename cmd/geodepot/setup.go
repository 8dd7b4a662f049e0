// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/geodepot/geodepot/internal/config"
)

// SetupCmd groups one-time configuration commands.
type SetupCmd struct {
	Credentials SetupCredentialsCmd `cmd:"" help:"Cache object storage credentials."`
}

// SetupCredentialsCmd stores the object storage identity for later runs.
// Values come from flags when given, otherwise from interactive prompts.
type SetupCredentialsCmd struct {
	Bucket    string `help:"Storage bucket name."`
	ProjectID string `help:"Billing project ID."`
	Token     string `help:"Access token or credential string."`
	Path      string `help:"Credential cache file. Defaults to the user config dir."`
}

func (c *SetupCredentialsCmd) Run(cfg *config.Config) error {
	reader := bufio.NewReader(os.Stdin)

	bucket, err := promptIfEmpty(reader, c.Bucket, "Bucket")
	if err != nil {
		return err
	}
	project, err := promptIfEmpty(reader, c.ProjectID, "Project ID")
	if err != nil {
		return err
	}
	token, err := promptIfEmpty(reader, c.Token, "Credentials")
	if err != nil {
		return err
	}

	cc := &config.StorageCredentials{
		Credentials: token,
		Bucket:      bucket,
		ProjectID:   project,
	}
	if err := config.SaveStorageCredentials(c.Path, cc); err != nil {
		return err
	}

	fmt.Println("Credentials saved.")
	return nil
}

func promptIfEmpty(reader *bufio.Reader, value, label string) (string, error) {
	if value != "" {
		return value, nil
	}
	fmt.Printf("%s: ", label)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", fmt.Errorf("%s must not be empty", strings.ToLower(label))
	}
	return line, nil
}
