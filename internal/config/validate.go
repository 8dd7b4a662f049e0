// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for structural and cross-field errors.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("invalid configuration: %w", verrs)
		}
		return err
	}

	if c.Server.CacheTTL < 0 {
		return errors.New("server.cache_ttl must not be negative")
	}
	if c.Fetch.RetryBackoff <= 0 {
		return errors.New("fetch.retry_backoff must be positive")
	}
	if c.Launcher.PollInterval <= 0 {
		return errors.New("launcher.poll_interval must be positive")
	}
	if len(c.Launcher.ProxyCommand) > 0 && c.Launcher.AppPort == 0 {
		return errors.New("launcher.app_port is required when a proxy command is set")
	}

	return nil
}
