// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

// Package main is the Geodepot process launcher. It supervises an
// application process and a reverse proxy in front of it (typically nginx),
// restarting either one when it dies or stops answering its health
// endpoint. It replaces shell-script supervision in container entrypoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/geodepot/geodepot/internal/config"
	"github.com/geodepot/geodepot/internal/logging"
	"github.com/geodepot/geodepot/internal/supervisor"
	"github.com/geodepot/geodepot/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	if len(cfg.Launcher.AppCommand) == 0 {
		logging.Fatal().Msg("launcher.app_command is required")
	}

	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	var healthURL string
	if cfg.Launcher.AppPort > 0 && cfg.Launcher.HealthPath != "" {
		healthURL = fmt.Sprintf("http://127.0.0.1:%d%s", cfg.Launcher.AppPort, cfg.Launcher.HealthPath)
	}

	app, err := services.NewProcessService(services.ProcessConfig{
		Name:         "app",
		Command:      cfg.Launcher.AppCommand,
		Port:         cfg.Launcher.AppPort,
		StartupWait:  cfg.Launcher.StartupWait,
		HealthURL:    healthURL,
		PollInterval: cfg.Launcher.PollInterval,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid app command")
	}
	tree.AddWorkerService(app)

	if len(cfg.Launcher.ProxyCommand) > 0 {
		// The proxy only starts once the app answers on its port.
		proxy, err := services.NewProcessService(services.ProcessConfig{
			Name:        "proxy",
			Command:     cfg.Launcher.ProxyCommand,
			WaitPort:    cfg.Launcher.AppPort,
			StartupWait: cfg.Launcher.StartupWait,
		})
		if err != nil {
			logging.Fatal().Err(err).Msg("Invalid proxy command")
		}
		tree.AddWorkerService(proxy)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().
		Strs("app", cfg.Launcher.AppCommand).
		Strs("proxy", cfg.Launcher.ProxyCommand).
		Msg("Launcher starting")

	errCh := tree.ServeBackground(ctx)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Launcher supervisor error")
		}
	}

	logging.Info().Msg("Launcher stopped")
}
