// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"disabled", zerolog.Disabled},
		{"WARN", zerolog.WarnLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestInitJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf, Timestamp: true})
	defer Init(DefaultConfig())

	Info().Str("object", "dem/cog.tif").Msg("serving")

	out := buf.String()
	if !strings.Contains(out, `"object":"dem/cog.tif"`) {
		t.Errorf("expected structured field in output, got %q", out)
	}
	if !strings.Contains(out, `"message":"serving"`) {
		t.Errorf("expected message in output, got %q", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "warn", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Debug().Msg("invisible")
	Warn().Msg("visible")

	out := buf.String()
	if strings.Contains(out, "invisible") {
		t.Error("debug message emitted at warn level")
	}
	if !strings.Contains(out, "visible") {
		t.Error("warn message not emitted at warn level")
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	if got := RequestIDFromContext(ctx); got != "" {
		t.Errorf("empty context returned request ID %q", got)
	}

	ctx = ContextWithRequestID(ctx, "req-123")
	if got := RequestIDFromContext(ctx); got != "req-123" {
		t.Errorf("RequestIDFromContext = %q, want %q", got, "req-123")
	}
}

func TestCtxAttachesRequestID(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	defer Init(DefaultConfig())

	ctx := ContextWithRequestID(context.Background(), "req-456")
	Ctx(ctx).Info().Msg("hello")

	if !strings.Contains(buf.String(), `"request_id":"req-456"`) {
		t.Errorf("request_id missing from output: %q", buf.String())
	}
}

func TestSlogHandlerLevels(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	defer Init(DefaultConfig())

	slogger := NewSlogLogger()
	slogger.Info("supervisor event", "service", "http-server")

	out := buf.String()
	if !strings.Contains(out, `"service":"http-server"`) {
		t.Errorf("slog attr not forwarded to zerolog: %q", out)
	}
	if !strings.Contains(out, "supervisor event") {
		t.Errorf("slog message not forwarded: %q", out)
	}
}
