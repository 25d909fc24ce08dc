// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

package logging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.Level != "info" {
		t.Errorf("expected default level info, got %q", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("expected default format json, got %q", cfg.Format)
	}
	if cfg.Caller {
		t.Error("expected caller disabled by default")
	}
	if !cfg.Timestamp {
		t.Error("expected timestamps enabled by default")
	}
}

func TestInitJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Timestamp: true, Output: &buf})

	Info().Str("target", "documents").Msg("backup queued")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if line["message"] != "backup queued" {
		t.Errorf("expected message, got %v", line["message"])
	}
	if line["level"] != "info" {
		t.Errorf("expected info level, got %v", line["level"])
	}
	if line["target"] != "documents" {
		t.Errorf("expected target field, got %v", line["target"])
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Format: "console", Timestamp: false, Output: &buf})

	Info().Msg("scheduler armed")

	output := buf.String()
	if !strings.Contains(output, "scheduler armed") {
		t.Errorf("expected message in output: %s", output)
	}
	if strings.Contains(output, `"level"`) {
		t.Errorf("expected console format, got JSON: %s", output)
	}
}

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
		{"Info", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestEventStarters(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))
	zerolog.SetGlobalLevel(zerolog.TraceLevel)

	tests := []struct {
		level string
		emit  func()
	}{
		{"trace", func() { Trace().Msg("walking source tree") }},
		{"debug", func() { Debug().Msg("manifest entry carried forward") }},
		{"info", func() { Info().Msg("archive finalized") }},
		{"warn", func() { Warn().Msg("skipping unreadable file") }},
		{"error", func() { Error().Msg("destination write failed") }},
	}

	for _, tt := range tests {
		buf.Reset()
		tt.emit()
		if !strings.Contains(buf.String(), `"level":"`+tt.level+`"`) {
			t.Errorf("expected %s event, got: %s", tt.level, buf.String())
		}
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))

	jobLogger := With().Str("job_id", "41c7").Logger()
	jobLogger.Info().Msg("restore started")

	if !strings.Contains(buf.String(), `"job_id":"41c7"`) {
		t.Errorf("expected bound job_id field: %s", buf.String())
	}
}

func TestErr(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))

	Err(errors.New("checksum mismatch")).Msg("verification failed")

	output := buf.String()
	if !strings.Contains(output, "checksum mismatch") {
		t.Errorf("expected wrapped error in output: %s", output)
	}
	if !strings.Contains(output, "verification failed") {
		t.Errorf("expected message in output: %s", output)
	}
}

func TestNewTestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTestLogger(&buf)

	logger.Info().Str("target", "media").Msg("history pruned")

	output := buf.String()
	for _, want := range []string{"history pruned", "target", "media"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output: %s", want, output)
		}
	}
}

func TestSetLevelString(t *testing.T) {
	original := GetLevel()
	defer SetLevel(original)

	SetLevelString("debug")
	if GetLevel() != zerolog.DebugLevel {
		t.Errorf("expected debug, got %v", GetLevel())
	}

	SetLevelString("error")
	if GetLevel() != zerolog.ErrorLevel {
		t.Errorf("expected error, got %v", GetLevel())
	}
}

func TestIsLevelEnabled(t *testing.T) {
	original := GetLevel()
	defer SetLevel(original)

	SetLevel(zerolog.InfoLevel)
	if !IsLevelEnabled(zerolog.InfoLevel) {
		t.Error("expected info enabled")
	}
	if !IsLevelEnabled(zerolog.ErrorLevel) {
		t.Error("expected error enabled")
	}
	if IsLevelEnabled(zerolog.DebugLevel) {
		t.Error("expected debug disabled")
	}
}

func TestFileOutput(t *testing.T) {
	var buf bytes.Buffer
	logPath := filepath.Join(t.TempDir(), "inlocker.log")

	Init(Config{
		Level:  "info",
		Format: "json",
		Output: &buf,
		File:   FileConfig{Path: logPath},
	})

	Info().Msg("daemon listening")

	if !strings.Contains(buf.String(), "daemon listening") {
		t.Errorf("expected primary output to carry the message: %s", buf.String())
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), "daemon listening") {
		t.Errorf("expected log file to carry the message: %s", data)
	}
}
