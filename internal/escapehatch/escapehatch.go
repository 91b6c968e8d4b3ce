// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package escapehatch implements the Escape Hatch (E, §4.7.3): a
// rate-limited, bounded forensic snapshot of raw pre-sanitization Pod bytes,
// written verbatim to a namespace the Loader and Cleaner never look at.
package escapehatch

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/mera-learn/progress-core/internal/bridge"
	"github.com/mera-learn/progress-core/internal/metrics"
	"github.com/mera-learn/progress-core/internal/progress"
	"github.com/mera-learn/progress-core/pkg/logging"
)

const (
	// MaxBackups bounds how many escape-hatch files are kept at once.
	MaxBackups = 20
	// RateLimitMS is the minimum spacing between writes.
	RateLimitMS int64 = 60 * 60 * 1000
)

// Hatch writes escape-hatch snapshots. It is stateless aside from its
// dependencies; every method call lists the Pod namespace fresh.
type Hatch struct {
	bridge bridge.Bridge
	log    *logging.Logger
	schema progress.SchemaVersion
}

// New returns a Hatch writing ehb files with version through b on the Pod
// sink.
func New(b bridge.Bridge, version progress.SchemaVersion, log *logging.Logger) *Hatch {
	if log == nil {
		log = logging.Default()
	}
	return &Hatch{bridge: b, schema: version, log: log.WithSink(string(bridge.SinkPod))}
}

// Make implements makeEscapeHatch(rawPodJson) (§4.7.3). All errors are
// swallowed and logged per §7: escape-hatch failures must never block a
// load or a save.
func (h *Hatch) Make(ctx context.Context, rawPodJSON string, nowMS int64) {
	log := h.log.With("correlation_id", uuid.NewString())

	names, err := h.bridge.List(ctx, bridge.SinkPod, "*."+string(progress.KindEscapeHatch)+".*.json")
	if err != nil {
		log.Warn("escape hatch: list failed", "error", err)
		return
	}

	files := parseAndSort(names)

	if len(files) > 0 && nowMS-files[0].TimestampMS < RateLimitMS {
		log.Debug("escape hatch: rate limited", "age_ms", nowMS-files[0].TimestampMS)
		metrics.EscapeHatchRateLimitedTotal.Inc()
		return
	}

	newFile := progress.NewFilename(h.schema, progress.KindEscapeHatch, nowMS)
	if err := h.bridge.Save(ctx, bridge.SinkPod, newFile.String(), []byte(rawPodJSON)); err != nil {
		log.Warn("escape hatch: save failed", "error", err)
		return
	}
	metrics.EscapeHatchWritesTotal.Inc()
	log.Info("escape hatch: snapshot written", "file", newFile.String())

	files = append([]progress.Filename{newFile}, files...)
	if len(files) <= MaxBackups {
		return
	}
	overflow := files[MaxBackups:]
	for _, f := range overflow {
		if err := h.bridge.Delete(ctx, bridge.SinkPod, f.String()); err != nil {
			log.Warn("escape hatch: overflow delete failed", "file", f.String(), "error", err)
		}
	}
}

// parseAndSort parses every name as a Filename, discards malformed ones, and
// sorts newest-first.
func parseAndSort(names []string) []progress.Filename {
	files := make([]progress.Filename, 0, len(names))
	for _, n := range names {
		f, ok := progress.ParseFilename(n)
		if !ok || f.Kind != progress.KindEscapeHatch {
			continue
		}
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].TimestampMS > files[j].TimestampMS })
	return files
}
