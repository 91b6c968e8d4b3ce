// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads the progress core's YAML configuration and watches
// it for changes: a typed Config struct with nested Storage/GCS/Badger
// groups, reloaded via fsnotify whenever the file on disk changes.
package config

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/mera-learn/progress-core/pkg/logging"
)

// GCSConfig configures the Pod sink's GCS-backed bridge.
type GCSConfig struct {
	Bucket          string `yaml:"bucket"`
	CredentialsFile string `yaml:"credentialsFile"`
	RequestsPerSec  float64 `yaml:"requestsPerSec"`
	Burst           int     `yaml:"burst"`
}

// BadgerConfig configures the Local sink's embedded Badger bridge.
type BadgerConfig struct {
	Dir      string `yaml:"dir"`
	InMemory bool   `yaml:"inMemory"`
}

// StorageConfig groups the two sink configurations.
type StorageConfig struct {
	GCS    GCSConfig    `yaml:"gcs"`
	Badger BadgerConfig `yaml:"badger"`
}

// IntervalsConfig holds timing values (50ms poll, 60s cleaner, 1h
// escape-hatch rate limit by default). They are parsed and carried in
// Config, but no component reads them: the save manager, cleaner and escape
// hatch run on their own package constants.
type IntervalsConfig struct {
	SavePollMS        int64 `yaml:"savePollMs"`
	CleanerIntervalMS int64 `yaml:"cleanerIntervalMs"`
	EscapeHatchRateMS int64 `yaml:"escapeHatchRateMs"`
}

// RetentionConfig holds the cleaner's minimum-retention floor and the
// escape-hatch cap. Like IntervalsConfig it is parsed but not read; the
// cleaner and escape hatch use their own package constants.
type RetentionConfig struct {
	MinPrimaries     int `yaml:"minPrimaries"`
	EscapeHatchMax   int `yaml:"escapeHatchMax"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogDir  string `yaml:"logDir"`
	JSON    bool   `yaml:"json"`
	Quiet   bool   `yaml:"quiet"`
}

// IdentityConfig carries the process-level identity the bootstrap layer
// (§1, out of scope for the core itself) would normally supply per
// authenticated session: the expected webId, schema version embedded in
// every filename, and the curriculum registry snapshot to reconcile
// against. progressd needs concrete values for these to drive the core
// outside a browser session.
type IdentityConfig struct {
	WebID         string `yaml:"webId"`
	SchemaVersion string `yaml:"schemaVersion"`
	CurriculumFile string `yaml:"curriculumFile"`
}

// Config is the top-level, hot-reloadable configuration object.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Intervals IntervalsConfig `yaml:"intervals"`
	Retention RetentionConfig `yaml:"retention"`
	Logging   LoggingConfig   `yaml:"logging"`
	Identity  IdentityConfig  `yaml:"identity"`
}

// Defaults returns a Config carrying the spec's hardcoded constants
// (50ms/60s/1h, min retention 4, escape-hatch cap 20).
func Defaults() Config {
	return Config{
		Intervals: IntervalsConfig{
			SavePollMS:        50,
			CleanerIntervalMS: 60_000,
			EscapeHatchRateMS: 3_600_000,
		},
		Retention: RetentionConfig{
			MinPrimaries:   4,
			EscapeHatchMax: 20,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Identity: IdentityConfig{
			SchemaVersion: "1.0.0",
		},
	}
}

// Load reads and parses path, filling unset fields from Defaults().
func Load(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Watcher holds an atomically-swapped *Config pointer kept in sync with a
// file on disk via fsnotify. Swaps replace the pointer wholesale rather than
// mutating fields in place, so readers never observe a half-updated Config.
type Watcher struct {
	current atomic.Pointer[Config]
	path    string
	watcher *fsnotify.Watcher
	log     *logging.Logger
}

// NewWatcher loads path once and starts watching it for further changes.
func NewWatcher(path string, log *logging.Logger) (*Watcher, error) {
	if log == nil {
		log = logging.Default()
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: creating watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config: watching %s: %w", path, err)
	}

	w := &Watcher{path: path, watcher: fsw, log: log}
	w.current.Store(&cfg)
	go w.watchLoop()
	return w, nil
}

// Current returns the most recently loaded Config. Safe for concurrent use.
func (w *Watcher) Current() Config {
	return *w.current.Load()
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				w.log.Warn("config: reload failed, keeping previous config", "path", w.path, "error", err)
				continue
			}
			w.current.Store(&cfg)
			w.log.Info("config: reloaded", "path", w.path)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("config: watcher error", "error", err)
		}
	}
}
