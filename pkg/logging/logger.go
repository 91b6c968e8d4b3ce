// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for the dual-sink progress
// core, built directly on log/slog. It adds exactly three things slog
// doesn't give you for free: a leveled Config for wiring from progressd's
// config file, an optional secondary file sink, and two domain-scoped child
// logger helpers (WithSink, WithWebID) that tag log lines with a storage sink
// or a user without every call site repeating the attribute by hand. Within
// this module only the escape hatch calls WithSink; WithWebID has no caller.
//
// # Basic usage
//
//	logger := logging.Default()
//	logger.Info("starting progressd")
//	logger.Error("load failed", "error", err)
//
// # File logging
//
//	logger := logging.New(logging.Config{
//	    Level:   logging.LevelInfo,
//	    LogDir:  "~/.mera/logs",
//	    Service: "progressd",
//	})
//	defer logger.Close()
//
// # Security
//
// This package does not redact anything. Callers must not log Bundle JSON
// or other sensitive payloads; log identifiers and booleans instead.
package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Level is the minimum severity a Logger emits. It mirrors slog's own
// ordering (Debug < Info < Warn < Error) so config values map directly.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) toSlog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config configures a Logger. The zero value logs Debug+ to stderr as text,
// because LevelDebug is the zero Level.
type Config struct {
	// Level is the minimum level emitted. Zero value: LevelDebug.
	Level Level

	// Service tags every record with a "service" attribute.
	Service string

	// LogDir, if set, also writes JSON-formatted records to
	// "{LogDir}/{Service}_{YYYY-MM-DD}.log". Supports a leading "~" for
	// home-directory expansion. The directory is created (0750) if absent.
	LogDir string

	// JSON switches the stderr destination to JSON. File output is always
	// JSON regardless of this setting.
	JSON bool

	// Quiet suppresses the stderr destination. Used by progressd when run
	// as a daemon with only file or no output expected.
	Quiet bool
}

// Logger wraps slog.Logger with progress-core's sink/webid child-logger
// conventions and an optional file destination that must be closed.
type Logger struct {
	slog *slog.Logger
	file *os.File
}

// New builds a Logger from config. The returned Logger should be closed
// with Close if LogDir was set, to flush and release the file handle.
func New(config Config) *Logger {
	opts := &slog.HandlerOptions{Level: config.Level.toSlog()}

	var handlers []slog.Handler
	if !config.Quiet {
		if config.JSON {
			handlers = append(handlers, slog.NewJSONHandler(os.Stderr, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stderr, opts))
		}
	}

	logger := &Logger{}

	if config.LogDir != "" {
		if file := openLogFile(config.LogDir, config.Service); file != nil {
			logger.file = file
			handlers = append(handlers, slog.NewJSONHandler(file, opts))
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewTextHandler(os.Stderr, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = &fanoutHandler{handlers: handlers}
	}

	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", config.Service)})
	}

	logger.slog = slog.New(handler)
	return logger
}

func openLogFile(dir, service string) *os.File {
	dir = expandHome(dir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil
	}
	if service == "" {
		service = "progressd"
	}
	name := service + "_" + time.Now().Format("2006-01-02") + ".log"
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil
	}
	return file
}

func expandHome(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// Default returns an Info-level, text, stderr-only Logger tagged "progressd".
func Default() *Logger {
	return New(Config{Level: LevelInfo, Service: "progressd"})
}

func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.slog.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.slog.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

// With returns a child Logger carrying args on every subsequent record. The
// receiver is unmodified.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...), file: l.file}
}

// WithSink returns a child logger scoped to one storage sink ("local" or
// "pod"). The escape hatch uses this so every line it emits is filterable
// by sink without repeating the attribute at each call site.
func (l *Logger) WithSink(sink string) *Logger {
	return l.With("sink", sink)
}

// WithWebID returns a child logger scoped to one user's opaque webId. The
// webId is logged verbatim (it is an identifier, not a secret); callers
// must still never pass Bundle JSON itself through this logger.
func (l *Logger) WithWebID(webID string) *Logger {
	return l.With("webid", webID)
}

// Slog exposes the underlying slog.Logger for callers that need
// LogAttrs or other functionality this wrapper doesn't surface.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Close syncs and closes the file destination, if one was opened. It is a
// no-op for a Logger built without LogDir.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		return err
	}
	return l.file.Close()
}

// fanoutHandler sends every record to all of its handlers, so a Logger can
// write stderr and a log file simultaneously even with different formats.
type fanoutHandler struct {
	handlers []slog.Handler
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: next}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithGroup(name)
	}
	return &fanoutHandler{handlers: next}
}
