// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

// Package services contains the suture.Service wrappers run under the
// Geodepot supervisor tree.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// HTTPServer matches the *http.Server lifecycle methods the wrapper needs.
// The interface keeps tests free of real listeners.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService adapts http.Server's blocking ListenAndServe to suture's
// context-aware Serve. On cancellation it shuts the server down gracefully
// within the configured timeout.
type HTTPServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
	name            string
}

// NewHTTPServerService wraps an HTTP server as a supervised service.
func NewHTTPServerService(server HTTPServer, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		name:            "http-server",
	}
}

// Serve implements suture.Service. http.ErrServerClosed is converted to nil
// since it is the expected result of a graceful shutdown.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		// The original context is already canceled; shutdown needs its own.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}

		<-errCh
		return ctx.Err()
	}
}

// String implements fmt.Stringer so suture can name the service in logs.
func (h *HTTPServerService) String() string {
	return h.name
}
