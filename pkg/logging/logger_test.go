// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mera-learn/progress-core/pkg/logging"
)

func TestLevel_String(t *testing.T) {
	require.Equal(t, "DEBUG", logging.LevelDebug.String())
	require.Equal(t, "INFO", logging.LevelInfo.String())
	require.Equal(t, "WARN", logging.LevelWarn.String())
	require.Equal(t, "ERROR", logging.LevelError.String())
	require.Equal(t, "UNKNOWN", logging.Level(99).String())
}

func TestLevel_Ordering(t *testing.T) {
	require.Less(t, int(logging.LevelDebug), int(logging.LevelInfo))
	require.Less(t, int(logging.LevelInfo), int(logging.LevelWarn))
	require.Less(t, int(logging.LevelWarn), int(logging.LevelError))
}

// redirectStderr swaps os.Stderr for a pipe, returning a function that
// restores it and returns everything written.
func redirectStderr(t *testing.T) func() string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	orig := os.Stderr
	os.Stderr = w
	return func() string {
		os.Stderr = orig
		w.Close()
		var buf bytes.Buffer
		buf.ReadFrom(r)
		return buf.String()
	}
}

func TestNew_FiltersBelowConfiguredLevel(t *testing.T) {
	restore := redirectStderr(t)
	log := logging.New(logging.Config{Level: logging.LevelWarn, JSON: true})
	log.Info("should be dropped")
	log.Warn("should appear")
	out := restore()

	require.NotContains(t, out, "should be dropped")
	require.Contains(t, out, "should appear")
}

func TestNew_JSONIncludesServiceAttribute(t *testing.T) {
	restore := redirectStderr(t)
	log := logging.New(logging.Config{Level: logging.LevelInfo, JSON: true, Service: "progressd"})
	log.Info("hello", "key", "value")
	out := restore()

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &record))
	require.Equal(t, "progressd", record["service"])
	require.Equal(t, "value", record["key"])
	require.Equal(t, "hello", record["msg"])
}

func TestNew_Quiet_NoStderrOutput(t *testing.T) {
	restore := redirectStderr(t)
	log := logging.New(logging.Config{Level: logging.LevelInfo, Quiet: true})
	log.Error("nobody should see this")
	out := restore()

	require.Empty(t, out)
}

func TestNew_LogDir_WritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	log := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		Service: "worker",
		LogDir:  dir,
		Quiet:   true,
	})
	log.Info("to file", "n", 1)
	require.NoError(t, log.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, strings.HasPrefix(entries[0].Name(), "worker_"))

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &record))
	require.Equal(t, "to file", record["msg"])
	require.Equal(t, float64(1), record["n"])
}

func TestNew_LogDir_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	log := logging.New(logging.Config{Service: "svc", LogDir: "~/logs", Quiet: true})
	defer log.Close()

	_, err := os.Stat(filepath.Join(home, "logs"))
	require.NoError(t, err)
}

func TestLogger_With_AddsFieldsWithoutMutatingParent(t *testing.T) {
	restore := redirectStderr(t)
	parent := logging.New(logging.Config{Level: logging.LevelInfo, JSON: true})
	child := parent.With("request_id", "abc123")

	child.Info("child event")
	parent.Info("parent event")
	out := restore()

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)

	var childRecord, parentRecord map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &childRecord))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &parentRecord))

	require.Equal(t, "abc123", childRecord["request_id"])
	require.NotContains(t, parentRecord, "request_id")
}

func TestLogger_WithSink_AddsSinkAttribute(t *testing.T) {
	restore := redirectStderr(t)
	log := logging.New(logging.Config{Level: logging.LevelInfo, JSON: true}).WithSink("pod")
	log.Info("saved")
	out := restore()

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &record))
	require.Equal(t, "pod", record["sink"])
}

func TestLogger_WithWebID_AddsWebIDAttribute(t *testing.T) {
	restore := redirectStderr(t)
	log := logging.New(logging.Config{Level: logging.LevelInfo, JSON: true}).WithWebID("user-42")
	log.Info("loaded")
	out := restore()

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &record))
	require.Equal(t, "user-42", record["webid"])
}

func TestLogger_Close_NoFile_IsNoop(t *testing.T) {
	log := logging.New(logging.Config{Quiet: true})
	require.NoError(t, log.Close())
}

func TestLogger_Slog_ReturnsUsableLogger(t *testing.T) {
	log := logging.New(logging.Config{Quiet: true})
	require.NotNil(t, log.Slog())
	require.IsType(t, &slog.Logger{}, log.Slog())
}

func TestDefault_IsInfoLevelAndServiceTagged(t *testing.T) {
	restore := redirectStderr(t)
	log := logging.Default()
	log.Debug("dropped")
	log.Info("kept")
	out := restore()

	require.NotContains(t, out, "dropped")
	require.Contains(t, out, "kept")
	require.Contains(t, out, "progressd")
}
