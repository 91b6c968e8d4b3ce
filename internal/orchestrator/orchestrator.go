// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package orchestrator implements the Save Orchestrator (G, §4.2): a
// four-stage, crash-safe write of one Bundle JSON string across Local and
// Pod, with a save-load-verify-delete protocol per file.
package orchestrator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/mera-learn/progress-core/internal/bridge"
	"github.com/mera-learn/progress-core/internal/metrics"
	"github.com/mera-learn/progress-core/internal/progress"
	"github.com/mera-learn/progress-core/internal/tracing"
	"github.com/mera-learn/progress-core/pkg/logging"
)

// SaveOutcome is the four-way result of one orchestrate() call (§4.2).
type SaveOutcome int

const (
	BothSucceeded SaveOutcome = iota
	OnlyLocalSucceeded
	OnlySolidSucceeded
	BothFailed
)

func (o SaveOutcome) String() string {
	switch o {
	case BothSucceeded:
		return "both_succeeded"
	case OnlyLocalSucceeded:
		return "only_local_succeeded"
	case OnlySolidSucceeded:
		return "only_solid_succeeded"
	case BothFailed:
		return "both_failed"
	default:
		return "unknown"
	}
}

// Orchestrator drives the four stages of one save cycle.
type Orchestrator struct {
	bridge bridge.Bridge
	schema progress.SchemaVersion
	log    *logging.Logger
}

// New constructs an Orchestrator writing backups tagged with schema through b.
func New(b bridge.Bridge, schema progress.SchemaVersion, log *logging.Logger) (*Orchestrator, error) {
	if err := bridge.RequireNonNil(b); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Default()
	}
	return &Orchestrator{bridge: b, schema: schema, log: log}, nil
}

// Orchestrate implements orchestrate(bundleJson, ts, allowPod) -> SaveOutcome
// (§4.2).
func (o *Orchestrator) Orchestrate(ctx context.Context, bundleJSON string, tsMS int64, allowPod bool) SaveOutcome {
	ctx, span := tracing.Tracer().Start(ctx, "orchestrate", trace.WithAttributes(
		attribute.Int64("ts_ms", tsMS), attribute.Bool("allow_pod", allowPod)))
	defer span.End()

	names := progress.StageFilenames(o.schema, tsMS)

	stage1OK := o.writeVerifiedPair(ctx, "offline_local", bridge.SinkLocal, names[progress.KindLocalOffPrimary], names[progress.KindLocalOffDup], bundleJSON)

	stage2OK := false
	if allowPod {
		stage2OK = o.writeVerifiedPair(ctx, "pod", bridge.SinkPod, names[progress.KindPodPrimary], names[progress.KindPodDuplicate], bundleJSON)
	} else {
		o.log.Debug("orchestrate: pod stage skipped, allowPod=false")
	}

	stage3OK := false
	if stage2OK {
		stage3OK = o.writeVerifiedPair(ctx, "online_local", bridge.SinkLocal, names[progress.KindLocalOnPrimary], names[progress.KindLocalOnDup], bundleJSON)
	}

	if stage1OK && stage2OK && stage3OK {
		o.cleanupOfflineFiles(ctx, names)
	}

	outcome := outcomeFor(stage1OK, stage2OK, stage3OK)
	metrics.SaveOutcomeTotal.WithLabelValues(outcome.String()).Inc()
	span.SetAttributes(attribute.String("outcome", outcome.String()))
	return outcome
}

func outcomeFor(stage1, stage2, stage3 bool) SaveOutcome {
	switch {
	case stage2 && stage3:
		return BothSucceeded
	case stage2 && !stage3:
		return OnlySolidSucceeded
	case !stage2:
		if stage1 {
			return OnlyLocalSucceeded
		}
		return BothFailed
	default:
		return BothFailed
	}
}

// writeVerifiedPair runs save-load-verify-delete in parallel on primary and
// duplicate, per §4.2. Both files must verify for the stage to count as ok.
func (o *Orchestrator) writeVerifiedPair(ctx context.Context, stage string, sink bridge.Sink, primary, duplicate progress.Filename, content string) bool {
	start := time.Now()
	defer func() {
		metrics.SaveStageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}()

	g, gctx := errgroup.WithContext(ctx)

	var primaryOK, duplicateOK bool
	g.Go(func() error {
		primaryOK = o.writeVerified(gctx, sink, primary.String(), content)
		return nil
	})
	g.Go(func() error {
		duplicateOK = o.writeVerified(gctx, sink, duplicate.String(), content)
		return nil
	})
	_ = g.Wait()

	return primaryOK && duplicateOK
}

// writeVerified is the single-file save-load-verify-delete protocol: write,
// read back, and delete on any mismatch so malformed files never pollute
// future recovery (§4.2's rationale).
func (o *Orchestrator) writeVerified(ctx context.Context, sink bridge.Sink, name string, content string) bool {
	if err := o.bridge.Save(ctx, sink, name, []byte(content)); err != nil {
		o.log.Warn("orchestrate: save failed", "sink", sink, "file", name, "error", err)
		return false
	}

	readBack, err := o.bridge.Load(ctx, sink, name)
	if err != nil {
		o.log.Warn("orchestrate: verify load failed", "sink", sink, "file", name, "error", err)
		o.deleteQuietly(ctx, sink, name)
		return false
	}

	if string(readBack) != content {
		o.log.Warn("orchestrate: verify mismatch, discarding", "sink", sink, "file", name)
		metrics.VerifyMismatchTotal.WithLabelValues(string(sink)).Inc()
		o.deleteQuietly(ctx, sink, name)
		return false
	}

	return true
}

func (o *Orchestrator) deleteQuietly(ctx context.Context, sink bridge.Sink, name string) {
	if err := o.bridge.Delete(ctx, sink, name); err != nil {
		o.log.Debug("orchestrate: cleanup delete failed", "sink", sink, "file", name, "error", err)
	}
}

// cleanupOfflineFiles is Stage 4: best-effort deletion of the offline-local
// files once every earlier stage has verified (§4.2). Failures are logged
// and otherwise ignored.
func (o *Orchestrator) cleanupOfflineFiles(ctx context.Context, names map[progress.Kind]progress.Filename) {
	for _, kind := range []progress.Kind{progress.KindLocalOffPrimary, progress.KindLocalOffDup} {
		o.deleteQuietly(ctx, bridge.SinkLocal, names[kind].String())
	}
}
