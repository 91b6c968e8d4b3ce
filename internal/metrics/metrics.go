// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package metrics declares the Prometheus instrumentation for the progress
// core as promauto-registered package-level vars, rather than threading a
// registry through every constructor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Save Orchestrator metrics.
var (
	SaveOutcomeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "progress_save_outcome_total",
		Help: "Save cycles completed, by resulting SaveOutcome",
	}, []string{"outcome"})

	SaveStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "progress_save_stage_duration_seconds",
		Help:    "Time to complete one orchestrator stage's write-verify pair",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"stage"})

	VerifyMismatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "progress_save_verify_mismatch_total",
		Help: "Write-read-verify failures where the reloaded bytes didn't match what was written",
	}, []string{"sink"})
)

// Save Manager / session tripwire metrics.
var (
	TripwireResultTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "progress_tripwire_result_total",
		Help: "Session tripwire checks, by result",
	}, []string{"result"})

	CriticalErrorsRaisedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "progress_critical_errors_raised_total",
		Help: "Critical errors surfaced to the UI (at most one per process lifetime)",
	})
)

// Save Cleaner metrics.
var (
	CleanerDeletionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "progress_cleaner_deletions_total",
		Help: "Backup files deleted by the cleaner, by sink and reason",
	}, []string{"sink", "reason"})

	CleanerRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "progress_cleaner_run_duration_seconds",
		Help:    "Time to complete one cleaner sweep across both sinks",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})
)

// Progress Loader / recovery metrics.
var (
	RecoveryScenarioTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "progress_recovery_scenario_total",
		Help: "Load calls completed, by RecoveryScenario",
	}, []string{"scenario"})

	RecoveryQualityScore = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "progress_recovery_quality_score",
		Help:    "Computed quality score of the candidate selected by the loader",
		Buckets: []float64{0, 1, 5, 50, 500, 1000, 5000, 20000},
	}, []string{"sink"})

	MergeOccurredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "progress_recovery_merge_total",
		Help: "Load calls that merged a Pod and Local bundle",
	})
)

// Escape Hatch metrics.
var (
	EscapeHatchWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "progress_escape_hatch_writes_total",
		Help: "Forensic snapshots written by the escape hatch",
	})

	EscapeHatchRateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "progress_escape_hatch_rate_limited_total",
		Help: "Escape hatch invocations skipped due to the rate limit window",
	})
)
