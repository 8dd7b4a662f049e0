// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/geodepot/geodepot/internal/logging"
)

// ProcessConfig describes a child process to supervise.
type ProcessConfig struct {
	// Name identifies the process in logs and suture events.
	Name string

	// Command is the argv to run. Must not be empty.
	Command []string

	// Port, when non-zero, is a TCP port the process must start listening
	// on within StartupWait before it counts as up.
	Port int

	// WaitPort, when non-zero, must accept a TCP connection before the
	// command is started at all. Orders a process behind another one, like
	// a reverse proxy behind the app it fronts.
	WaitPort int

	// StartupWait bounds the port wait. Defaults to 30s.
	StartupWait time.Duration

	// HealthURL, when set, is polled at PollInterval. FailureLimit
	// consecutive failed polls restart the process.
	HealthURL    string
	PollInterval time.Duration
	FailureLimit int

	// StopGrace is how long the process gets to exit after SIGTERM before
	// it is killed. Defaults to 10s.
	StopGrace time.Duration
}

// ProcessService runs a child process under supervision. The child's stdout
// and stderr are forwarded to the structured log line by line. If the child
// exits on its own, or its health endpoint fails repeatedly, Serve returns
// an error and suture restarts it.
type ProcessService struct {
	cfg   ProcessConfig
	httpc *http.Client
}

// NewProcessService validates the config and creates the service.
func NewProcessService(cfg ProcessConfig) (*ProcessService, error) {
	if len(cfg.Command) == 0 {
		return nil, errors.New("process service requires a command")
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Command[0]
	}
	if cfg.StartupWait <= 0 {
		cfg.StartupWait = 30 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	if cfg.FailureLimit <= 0 {
		cfg.FailureLimit = 3
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = 10 * time.Second
	}
	return &ProcessService{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 5 * time.Second},
	}, nil
}

// Serve implements suture.Service.
func (s *ProcessService) Serve(ctx context.Context) error {
	log := logging.WithComponent(s.cfg.Name)

	if s.cfg.WaitPort > 0 {
		if err := dialUntil(ctx, s.cfg.WaitPort, time.Now().Add(s.cfg.StartupWait)); err != nil {
			return fmt.Errorf("%s waiting on port %d: %w", s.cfg.Name, s.cfg.WaitPort, err)
		}
		log.Info().Int("port", s.cfg.WaitPort).Msg("Dependency port ready")
	}

	cmd := exec.Command(s.cfg.Command[0], s.cfg.Command[1:]...)
	// Own process group, so stop signals reach forked grandchildren that
	// would otherwise survive and hold the pipe write ends open.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	var pipes sync.WaitGroup
	pipes.Add(2)
	go func() {
		defer pipes.Done()
		forwardLines(stdout, func(line string) { log.Info().Str("stream", "stdout").Msg(line) })
	}()
	go func() {
		defer pipes.Done()
		forwardLines(stderr, func(line string) { log.Warn().Str("stream", "stderr").Msg(line) })
	}()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", s.cfg.Name, err)
	}
	log.Info().Int("pid", cmd.Process.Pid).Strs("command", s.cfg.Command).Msg("Process started")

	// Pipe readers must finish before Wait closes their ends.
	waitCh := make(chan error, 1)
	go func() {
		pipes.Wait()
		waitCh <- cmd.Wait()
	}()

	if s.cfg.Port > 0 {
		if err := s.waitForPort(ctx, waitCh); err != nil {
			s.terminate(cmd, waitCh)
			return fmt.Errorf("%s did not come up: %w", s.cfg.Name, err)
		}
		log.Info().Int("port", s.cfg.Port).Msg("Process listening")
	}

	var poll <-chan time.Time
	if s.cfg.HealthURL != "" {
		ticker := time.NewTicker(s.cfg.PollInterval)
		defer ticker.Stop()
		poll = ticker.C
	}

	failures := 0
	for {
		select {
		case <-ctx.Done():
			s.terminate(cmd, waitCh)
			return ctx.Err()

		case err := <-waitCh:
			if err != nil {
				return fmt.Errorf("%s exited: %w", s.cfg.Name, err)
			}
			return fmt.Errorf("%s exited cleanly but was expected to run forever", s.cfg.Name)

		case <-poll:
			if err := s.probe(ctx); err != nil {
				failures++
				log.Warn().Err(err).Int("consecutive", failures).Msg("Liveness probe failed")
				if failures >= s.cfg.FailureLimit {
					s.terminate(cmd, waitCh)
					return fmt.Errorf("%s failed %d liveness probes", s.cfg.Name, failures)
				}
			} else if failures > 0 {
				log.Info().Msg("Liveness probe recovered")
				failures = 0
			}
		}
	}
}

// waitForPort blocks until the configured port accepts a TCP connection, the
// startup deadline passes, or the process dies first.
func (s *ProcessService) waitForPort(ctx context.Context, waitCh <-chan error) error {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(s.cfg.Port))
	deadline := time.Now().Add(s.cfg.StartupWait)

	for {
		conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("port %d not listening after %s", s.cfg.Port, s.cfg.StartupWait)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-waitCh:
			return fmt.Errorf("process exited during startup: %w", err)
		case <-time.After(250 * time.Millisecond):
		}
	}
}

// dialUntil polls a local port until it accepts a connection or the deadline
// passes. Unlike waitForPort there is no child process to watch yet.
func dialUntil(ctx context.Context, port int, deadline time.Time) error {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))

	for {
		conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("not listening by %s", deadline.Format(time.RFC3339))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

func (s *ProcessService) probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.HealthURL, nil)
	if err != nil {
		return err
	}
	resp, err := s.httpc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("health endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// terminate asks the process group to stop with SIGTERM, escalating to
// SIGKILL after the grace period.
func (s *ProcessService) terminate(cmd *exec.Cmd, waitCh <-chan error) {
	if cmd.Process == nil {
		return
	}
	log := logging.WithComponent(s.cfg.Name)

	// Negative pid signals the whole group, grandchildren included.
	pgid := -cmd.Process.Pid
	if err := syscall.Kill(pgid, syscall.SIGTERM); err != nil {
		// Already gone.
		return
	}

	select {
	case <-waitCh:
		log.Info().Msg("Process stopped")
		return
	case <-time.After(s.cfg.StopGrace):
		log.Warn().Dur("grace", s.cfg.StopGrace).Msg("Process ignored SIGTERM, killing")
		_ = syscall.Kill(pgid, syscall.SIGKILL)
	}

	// Killing the group closes the pipe writers, so the wait normally
	// returns right away. A detached straggler must not hang shutdown.
	select {
	case <-waitCh:
	case <-time.After(5 * time.Second):
		log.Error().Msg("Process did not reap after SIGKILL")
	}
}

// String implements fmt.Stringer so suture can name the service in logs.
func (s *ProcessService) String() string {
	return "process-" + s.cfg.Name
}

func forwardLines(r io.Reader, emit func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			emit(line)
		}
	}
}
