// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

// Package supervisor builds the suture service tree that keeps the Geodepot
// long-running pieces alive: the HTTP server, supervised child processes,
// and index maintenance.
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig holds supervisor tree configuration. Zero values fall back to
// suture's documented defaults.
type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	FailureThreshold float64

	// FailureDecay is the rate at which failures decay in seconds.
	FailureDecay float64

	// FailureBackoff is the duration to wait when the threshold is exceeded.
	FailureBackoff time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns production defaults matching suture's built-ins.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree is the hierarchical supervisor for a Geodepot process.
//
// Three child supervisors isolate failures:
//   - index: badger maintenance (value log GC)
//   - workers: supervised child processes and pollers
//   - api: the HTTP server
//
// A crashing child process restarts under the workers layer without taking
// the API down with it.
type Tree struct {
	root    *suture.Supervisor
	index   *suture.Supervisor
	workers *suture.Supervisor
	api     *suture.Supervisor
	logger  *slog.Logger
	config  TreeConfig
}

// NewTree creates the supervisor tree.
func NewTree(logger *slog.Logger, config TreeConfig) (*Tree, error) {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5.0
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = 30.0
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = 15 * time.Second
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 10 * time.Second
	}

	// sutureslog's hook has a pointer receiver; the Handler must be
	// addressable.
	handler := &sutureslog.Handler{Logger: logger}
	eventHook := handler.MustHook()

	rootSpec := suture.Spec{
		EventHook:        eventHook,
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	// Children inherit the EventHook from the root when added.
	childSpec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	root := suture.New("geodepot", rootSpec)
	index := suture.New("index-layer", childSpec)
	workers := suture.New("worker-layer", childSpec)
	api := suture.New("api-layer", childSpec)

	root.Add(index)
	root.Add(workers)
	root.Add(api)

	return &Tree{
		root:    root,
		index:   index,
		workers: workers,
		api:     api,
		logger:  logger,
		config:  config,
	}, nil
}

// Root returns the root supervisor for direct access if needed.
func (t *Tree) Root() *suture.Supervisor {
	return t.root
}

// AddIndexService adds a service to the index maintenance layer.
func (t *Tree) AddIndexService(svc suture.Service) suture.ServiceToken {
	return t.index.Add(svc)
}

// AddWorkerService adds a service to the worker layer. Child processes and
// liveness pollers go here.
func (t *Tree) AddWorkerService(svc suture.Service) suture.ServiceToken {
	return t.workers.Add(svc)
}

// AddAPIService adds a service to the API layer.
func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Serve starts the tree and blocks until the context is canceled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground starts the tree in a background goroutine. The returned
// channel receives the terminal error (or nil) when the supervisor stops.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that failed to stop within the
// shutdown timeout.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}

// Remove stops and removes a service by its token.
func (t *Tree) Remove(token suture.ServiceToken) error {
	return t.root.Remove(token)
}

// RemoveAndWait removes a service and waits for it to fully stop.
func (t *Tree) RemoveAndWait(token suture.ServiceToken, timeout time.Duration) error {
	return t.root.RemoveAndWait(token, timeout)
}
