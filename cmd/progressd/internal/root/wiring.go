// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package root

import (
	"context"
	"fmt"
	"io"

	"github.com/mera-learn/progress-core/internal/bridge"
	"github.com/mera-learn/progress-core/internal/bridge/badgerbridge"
	"github.com/mera-learn/progress-core/internal/bridge/gcsbridge"
	"github.com/mera-learn/progress-core/internal/cleaner"
	"github.com/mera-learn/progress-core/internal/config"
	"github.com/mera-learn/progress-core/internal/loader"
	"github.com/mera-learn/progress-core/internal/orchestrator"
	"github.com/mera-learn/progress-core/internal/progress"
	"github.com/mera-learn/progress-core/internal/registry"
	"github.com/mera-learn/progress-core/internal/savemanager"
	"github.com/mera-learn/progress-core/pkg/logging"
)

// stack is every wired-up collaborator a progressd subcommand can need,
// built once from the resolved config. Closing it releases the underlying
// Badger database and GCS client.
type stack struct {
	cfg      config.Config
	log      *logging.Logger
	bridge   *bridge.Router
	registry registry.Registry
	schema   progress.SchemaVersion

	local io.Closer
	pod   io.Closer
}

func parseLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

// buildStack loads cfg, opens both sink backends, and loads the curriculum
// registry. Every progressd subcommand that touches storage starts here.
func buildStack(ctx context.Context) (*stack, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("progressd: %w", err)
	}

	log := logging.New(logging.Config{
		Level:   parseLevel(cfg.Logging.Level),
		Service: "progressd",
		LogDir:  cfg.Logging.LogDir,
		JSON:    cfg.Logging.JSON,
		Quiet:   cfg.Logging.Quiet || quiet,
	})

	schema, err := progress.ParseSchemaVersion(cfg.Identity.SchemaVersion)
	if err != nil {
		return nil, fmt.Errorf("progressd: %w", err)
	}

	var localBridge bridge.Bridge
	var localCloser io.Closer
	if cfg.Storage.Badger.InMemory || cfg.Storage.Badger.Dir == "" {
		b, err := badgerbridge.OpenInMemory()
		if err != nil {
			return nil, fmt.Errorf("progressd: opening local sink: %w", err)
		}
		localBridge, localCloser = b, b
	} else {
		b, err := badgerbridge.OpenWithPath(cfg.Storage.Badger.Dir)
		if err != nil {
			return nil, fmt.Errorf("progressd: opening local sink: %w", err)
		}
		localBridge, localCloser = b, b
	}

	var podBridge bridge.Bridge
	var podCloser io.Closer
	if cfg.Storage.GCS.Bucket == "" {
		log.Warn("progressd: no gcs.bucket configured, Pod sink is in-memory only (not persisted across runs)")
		b, err := badgerbridge.OpenInMemory()
		if err != nil {
			return nil, fmt.Errorf("progressd: opening fallback pod sink: %w", err)
		}
		podBridge, podCloser = b, b
	} else {
		var opts []gcsbridge.Option
		if cfg.Storage.GCS.CredentialsFile != "" {
			opts = append(opts, gcsbridge.WithCredentialsFile(cfg.Storage.GCS.CredentialsFile))
		}
		if cfg.Storage.GCS.RequestsPerSec > 0 {
			opts = append(opts, gcsbridge.WithRateLimit(cfg.Storage.GCS.RequestsPerSec, cfg.Storage.GCS.Burst))
		}
		b, err := gcsbridge.New(ctx, cfg.Storage.GCS.Bucket, cfg.Identity.WebID, opts...)
		if err != nil {
			return nil, fmt.Errorf("progressd: opening pod sink: %w", err)
		}
		podBridge, podCloser = b, b
	}

	router := &bridge.Router{Local: localBridge, Pod: podBridge}

	var reg registry.Registry
	if cfg.Identity.CurriculumFile != "" {
		reg, err = registry.LoadFile(cfg.Identity.CurriculumFile)
		if err != nil {
			return nil, fmt.Errorf("progressd: %w", err)
		}
	} else {
		log.Warn("progressd: no identity.curriculumFile configured, using an empty curriculum registry")
		reg = registry.NewStatic()
	}

	return &stack{
		cfg:      cfg,
		log:      log,
		bridge:   router,
		registry: reg,
		schema:   schema,
		local:    localCloser,
		pod:      podCloser,
	}, nil
}

func (s *stack) Close() {
	if s.local != nil {
		_ = s.local.Close()
	}
	if s.pod != nil {
		_ = s.pod.Close()
	}
}

// staticSession implements loader.SessionProvider with the single webId from
// config -- progressd runs as one user, unlike the browser runtime that
// serves many.
type staticSession struct {
	webID string
}

func (s staticSession) WebID(context.Context) (string, bool) {
	if s.webID == "" {
		return "", false
	}
	return s.webID, true
}

func newOrchestrator(s *stack) (*orchestrator.Orchestrator, error) {
	return orchestrator.New(s.bridge, s.schema, s.log)
}

func newSaveManager(s *stack, o *orchestrator.Orchestrator) (*savemanager.Manager, error) {
	return savemanager.New(o, s.bridge, nil, s.log), nil
}

func newCleaner(s *stack) (*cleaner.Cleaner, error) {
	return cleaner.New(s.bridge, s.log)
}

func newLoader(s *stack) (*loader.Loader, error) {
	return loader.New(s.bridge, staticSession{webID: s.cfg.Identity.WebID}, s.registry, s.schema, s.log)
}
