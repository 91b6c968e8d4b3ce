// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package loader implements Progress Loader (F, §4.7): backup enumeration,
// quality scoring, source selection, merge control, and escape-hatch
// triggering, producing the one ProgressLoadResult the application bootstraps
// from.
package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mera-learn/progress-core/internal/bridge"
	"github.com/mera-learn/progress-core/internal/escapehatch"
	"github.com/mera-learn/progress-core/internal/integrity"
	"github.com/mera-learn/progress-core/internal/merge"
	"github.com/mera-learn/progress-core/internal/metrics"
	"github.com/mera-learn/progress-core/internal/progress"
	"github.com/mera-learn/progress-core/internal/registry"
	"github.com/mera-learn/progress-core/internal/tracing"
	"github.com/mera-learn/progress-core/pkg/logging"
)

// RecoveryScenario classifies the outcome of one Load call (§4.7.4).
type RecoveryScenario int

const (
	PerfectRecovery RecoveryScenario = iota
	ImperfectRecoveryCorruption
	ImperfectRecoveryMigration
	DefaultNoSaves
	DefaultWebIDMismatch
	DefaultFailedRecovery
)

func (s RecoveryScenario) String() string {
	switch s {
	case PerfectRecovery:
		return "perfect_recovery"
	case ImperfectRecoveryCorruption:
		return "imperfect_recovery_corruption"
	case ImperfectRecoveryMigration:
		return "imperfect_recovery_migration"
	case DefaultNoSaves:
		return "default_no_saves"
	case DefaultWebIDMismatch:
		return "default_webid_mismatch"
	case DefaultFailedRecovery:
		return "default_failed_recovery"
	default:
		return "unknown"
	}
}

// ProgressLoadResult is Load's complete output.
type ProgressLoadResult struct {
	Bundle              *progress.Bundle
	Scenario            RecoveryScenario
	MergeOccurred       bool
	PossiblyDestructive bool
	RecoveryMetrics     *integrity.RecoveryMetrics
}

// QualityThreshold is T from §4.7.2.
const QualityThreshold = 1000

// SessionProvider resolves the current webId, returning ok=false if there is
// no authenticated session (§4.7 step 1).
type SessionProvider interface {
	WebID(ctx context.Context) (string, bool)
}

// Loader drives the recovery pipeline.
type Loader struct {
	bridge   bridge.Bridge
	session  SessionProvider
	registry registry.Registry
	schema   progress.SchemaVersion
	log      *logging.Logger
	hatch    *escapehatch.Hatch
}

// New constructs a Loader.
func New(b bridge.Bridge, session SessionProvider, reg registry.Registry, schema progress.SchemaVersion, log *logging.Logger) (*Loader, error) {
	if err := bridge.RequireNonNil(b); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Default()
	}
	return &Loader{
		bridge:   b,
		session:  session,
		registry: reg,
		schema:   schema,
		log:      log,
		hatch:    escapehatch.New(b, schema, log),
	}, nil
}

// Load implements load(parsedLessons) -> ProgressLoadResult (§4.7). Errors
// come only from the merge path: a merge result that fails re-validation
// (wrapping merge.ErrMergerCorruption or an Enforce error), or a failure to
// marshal or re-enforce the merged bundle. Sink failures are absorbed.
func (l *Loader) Load(ctx context.Context, parsedLessonsCount int, nowMS int64) (ProgressLoadResult, error) {
	ctx, span := tracing.Tracer().Start(ctx, "load", trace.WithAttributes(
		attribute.Int("parsed_lessons_count", parsedLessonsCount)))
	defer span.End()

	webID, ok := l.session.WebID(ctx)
	if !ok {
		span.SetAttributes(attribute.String("scenario", DefaultNoSaves.String()))
		return ProgressLoadResult{Scenario: DefaultNoSaves}, nil
	}

	podBackups := l.enumerate(ctx, bridge.SinkPod, progress.KindPodPrimary, progress.KindPodDuplicate)
	localBackups := l.enumerate(ctx, bridge.SinkLocal,
		progress.KindLocalOffPrimary, progress.KindLocalOffDup, progress.KindLocalOnPrimary, progress.KindLocalOnDup)

	escapeHatchSource := l.newestPrimaryRaw(ctx, podBackups)

	bestPod, podStats := l.score(ctx, webID, podBackups, parsedLessonsCount)
	bestLocal, localStats := l.score(ctx, webID, localBackups, parsedLessonsCount)

	result, err := l.selectAndResolve(ctx, webID, bestPod, bestLocal, parsedLessonsCount)
	if err != nil {
		return ProgressLoadResult{}, err
	}

	if (result.PossiblyDestructive || result.MergeOccurred) && escapeHatchSource != "" {
		l.hatch.Make(ctx, escapeHatchSource, nowMS)
	}

	result.Scenario = classify(result, podStats, localStats)
	metrics.RecoveryScenarioTotal.WithLabelValues(result.Scenario.String()).Inc()
	if result.MergeOccurred {
		metrics.MergeOccurredTotal.Inc()
	}
	if bestPod != nil {
		metrics.RecoveryQualityScore.WithLabelValues(string(bridge.SinkPod)).Observe(float64(bestPod.score))
	}
	if bestLocal != nil {
		metrics.RecoveryQualityScore.WithLabelValues(string(bridge.SinkLocal)).Observe(float64(bestLocal.score))
	}
	span.SetAttributes(
		attribute.String("scenario", result.Scenario.String()),
		attribute.Bool("merge_occurred", result.MergeOccurred),
		attribute.Bool("possibly_destructive", result.PossiblyDestructive),
	)
	return result, nil
}

// newestPrimaryRaw loads the newest Pod primary's bytes verbatim, kept as
// the escape-hatch source per §4.7 step 3. Returns "" if there is none or
// load fails.
func (l *Loader) newestPrimaryRaw(ctx context.Context, pod []scoredCandidate) string {
	for _, c := range pod {
		if c.filename.Kind != progress.KindPodPrimary {
			continue
		}
		raw, err := l.bridge.Load(ctx, bridge.SinkPod, c.name)
		if err != nil {
			return ""
		}
		return string(raw)
	}
	return ""
}

// enumerate lists and parses every backup of the given kinds on sink,
// sorted newest-first (§4.7 step 2).
func (l *Loader) enumerate(ctx context.Context, sink bridge.Sink, kinds ...progress.Kind) []scoredCandidate {
	var out []scoredCandidate
	for _, k := range kinds {
		names, err := l.bridge.List(ctx, sink, "*."+string(k)+".*.json")
		if err != nil {
			l.log.Warn("loader: list failed", "sink", sink, "kind", k, "error", err)
			continue
		}
		for _, n := range names {
			f, ok := progress.ParseFilename(n)
			if !ok {
				continue
			}
			out = append(out, scoredCandidate{name: n, filename: f, sink: sink})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].filename.TimestampMS > out[j].filename.TimestampMS })
	return out
}

type scoredCandidate struct {
	name     string
	filename progress.Filename
	sink     bridge.Sink

	score   int
	bundle  progress.Bundle
	perfect bool
	metrics integrity.RecoveryMetrics
}

type scoreStats struct {
	totalBackups    int
	hadWebIDMismatch bool
	hadLoadFailures  bool
}

// score implements §4.7.1: scan newest-first, returning the lowest-score
// candidate (ties prefer the newer backup, i.e. strict "<").
func (l *Loader) score(ctx context.Context, expectedWebID string, candidates []scoredCandidate, parsedLessonsCount int) (best *scoredCandidate, stats scoreStats) {
	ctx, span := tracing.Tracer().Start(ctx, "enforce", trace.WithAttributes(
		attribute.Int("candidate_count", len(candidates))))
	defer func() {
		span.SetAttributes(
			attribute.Bool("had_load_failures", stats.hadLoadFailures),
			attribute.Bool("had_webid_mismatch", stats.hadWebIDMismatch),
			attribute.Bool("found_candidate", best != nil),
		)
		span.End()
	}()

	stats = scoreStats{totalBackups: len(candidates)}

	for i, c := range candidates {
		raw, err := l.bridge.Load(ctx, c.sink, c.name)
		if err != nil {
			stats.hadLoadFailures = true
			continue
		}

		result, err := integrity.Enforce(string(raw), expectedWebID, l.registry, parsedLessonsCount)
		if err != nil {
			stats.hadLoadFailures = true
			continue
		}

		if result.CriticalFailures.WebIDMismatch != nil {
			stats.hadWebIDMismatch = true
			continue
		}

		candidate := candidates[i]
		candidate.bundle = result.Bundle
		candidate.perfect = result.PerfectlyValidInput
		candidate.metrics = result.RecoveryMetrics

		if result.PerfectlyValidInput {
			candidate.score = 0
			return &candidate, stats
		}

		candidate.score = computeScore(result.RecoveryMetrics, i)
		if best == nil || candidate.score < best.score {
			best = &candidate
		}
	}

	return best, stats
}

func computeScore(m integrity.RecoveryMetrics, indexFromNewest int) int {
	score := 0
	score += m.OverallProgress.LessonsLostToCorruption * 20_000
	score += m.OverallProgress.LessonsDroppedCount * 1_000
	if m.Settings.DefaultedRatio > 0 {
		score += 1_000 + int(m.Settings.DefaultedRatio*4_000+0.5)
	}
	score += m.Components.Defaulted * 5
	score += indexFromNewest * 500
	return score
}

func hasOfflineTag(c *scoredCandidate) bool {
	return c != nil && progress.IsOfflineTag(c.name)
}

// selectAndResolve implements §4.7.2's selection table, running merges
// through integrity validation.
func (l *Loader) selectAndResolve(ctx context.Context, webID string, bestPod, bestLocal *scoredCandidate, parsedLessonsCount int) (ProgressLoadResult, error) {
	switch {
	case bestPod == nil && bestLocal == nil:
		return ProgressLoadResult{}, nil

	case bestPod != nil && bestLocal == nil:
		return fromSingle(bestPod), nil

	case bestPod == nil && bestLocal != nil:
		return fromSingle(bestLocal), nil

	case bestPod.score < QualityThreshold:
		if hasOfflineTag(bestLocal) {
			return l.mergeResult(ctx, webID, bestPod, bestLocal, parsedLessonsCount)
		}
		return fromSingle(bestPod), nil

	default:
		return l.mergeResult(ctx, webID, bestLocal, bestPod, parsedLessonsCount)
	}
}

func fromSingle(c *scoredCandidate) ProgressLoadResult {
	b := c.bundle
	return ProgressLoadResult{
		Bundle:              &b,
		PossiblyDestructive: !c.perfect,
		RecoveryMetrics:     &c.metrics,
	}
}

// mergeResult merges primary and secondary and re-validates per §4.7.2's
// "Validation" step and the I8 contract. A corrupt merge result is a merger
// bug (§4.6) and propagates as an error rather than being absorbed.
func (l *Loader) mergeResult(ctx context.Context, webID string, primary, secondary *scoredCandidate, parsedLessonsCount int) (ProgressLoadResult, error) {
	ctx, span := tracing.Tracer().Start(ctx, "merge", trace.WithAttributes(
		attribute.String("primary_sink", string(primary.sink)),
		attribute.String("secondary_sink", string(secondary.sink)),
	))
	defer span.End()

	merged, err := merge.MergeAndValidate(primary.bundle, secondary.bundle, webID, l.registry, parsedLessonsCount)
	if err != nil {
		span.SetAttributes(attribute.Bool("corrupt", true))
		return ProgressLoadResult{}, fmt.Errorf("loader: merge validation failed: %w", err)
	}

	// Re-run Integrity once more to capture the merged result's metrics for
	// the caller (scenario classification, UI reporting).
	raw, err := json.Marshal(merged)
	if err != nil {
		return ProgressLoadResult{}, fmt.Errorf("loader: marshaling merged bundle: %w", err)
	}
	result, err := integrity.Enforce(string(raw), webID, l.registry, parsedLessonsCount)
	if err != nil {
		return ProgressLoadResult{}, fmt.Errorf("loader: re-enforcing merged bundle: %w", err)
	}

	return ProgressLoadResult{
		Bundle:              &merged,
		MergeOccurred:       true,
		PossiblyDestructive: !primary.perfect || !secondary.perfect,
		RecoveryMetrics:     &result.RecoveryMetrics,
	}, nil
}

func classify(result ProgressLoadResult, podStats, localStats scoreStats) RecoveryScenario {
	totalBackups := podStats.totalBackups + localStats.totalBackups
	hadWebIDMismatch := podStats.hadWebIDMismatch || localStats.hadWebIDMismatch
	hadLoadFailures := podStats.hadLoadFailures || localStats.hadLoadFailures

	if result.Bundle == nil {
		switch {
		case totalBackups == 0:
			return DefaultNoSaves
		case hadWebIDMismatch && !hadLoadFailures:
			return DefaultWebIDMismatch
		default:
			return DefaultFailedRecovery
		}
	}

	if !result.MergeOccurred && result.RecoveryMetrics != nil && !result.RecoveryMetrics.OverallProgress.CorruptionDetected &&
		result.RecoveryMetrics.Settings.DefaultedRatio == 0 && !result.RecoveryMetrics.NavigationDefaulted &&
		result.RecoveryMetrics.Components.Defaulted == 0 && result.RecoveryMetrics.LessonsDroppedTotal == 0 {
		return PerfectRecovery
	}

	if result.RecoveryMetrics != nil && result.RecoveryMetrics.OverallProgress.CorruptionDetected {
		return ImperfectRecoveryCorruption
	}

	return ImperfectRecoveryMigration
}
