// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package integrity implements Progress Integrity (§4.5): it turns
// arbitrary, possibly corrupted, possibly schema-aged bytes into a
// canonical progress.Bundle, reconciled against the Curriculum Registry and
// checked for data loss.
//
// Enforce never throws except for the one initialization-order bug named in
// §4.5: an empty parsedLessons set. Every other failure mode is absorbed
// into the returned EnforcementResult so callers (Loader, Merger's
// post-merge check) never need error handling of their own.
package integrity

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mera-learn/progress-core/internal/progress"
	"github.com/mera-learn/progress-core/internal/registry"
)

// ErrEmptyCurriculum is returned when parsedLessons is empty, the one
// condition Enforce treats as a caller bug rather than input corruption.
var ErrEmptyCurriculum = errors.New("integrity: parsedLessons is empty")

// WebIDMismatch records the expected-vs-found mismatch when a Bundle fails
// the webId precondition (I1).
type WebIDMismatch struct {
	Expected string
	Found    *string
}

// CriticalFailures holds the failure classes that make a Bundle immediately
// disqualified rather than merely partially defaulted.
type CriticalFailures struct {
	WebIDMismatch *WebIDMismatch
}

// OverallProgressMetrics is the reconciliation/corruption-detection output
// of §4.5.1.
type OverallProgressMetrics struct {
	LessonsLostToCorruption int
	DomainsLostToCorruption int
	CorruptionDetected      bool
	LessonsDroppedCount     int
	DomainsDroppedCount     int
	LessonsDroppedRatio     float64
}

// SettingsMetrics reports how many of the 11 settings fields were
// individually re-defaulted (I6).
type SettingsMetrics struct {
	DefaultedRatio float64
	DefaultedCount int
}

// ComponentMetrics reports retained-vs-defaulted counts for
// combinedComponentProgress (I4/I5).
type ComponentMetrics struct {
	Retained  int
	Defaulted int
}

// RecoveryMetrics aggregates every section's extraction metrics, the shape
// the Loader's scoring function (§4.7.1) reads from.
type RecoveryMetrics struct {
	OverallProgress      OverallProgressMetrics
	Settings              SettingsMetrics
	Components            ComponentMetrics
	NavigationDefaulted   bool
	LessonsDroppedTotal   int
}

// EnforcementResult is Enforce's complete, never-throws-further output.
type EnforcementResult struct {
	Bundle              progress.Bundle
	PerfectlyValidInput bool
	RecoveryMetrics     RecoveryMetrics
	CriticalFailures    CriticalFailures
}

// Enforce is the Progress Integrity entry point (§4.5).
func Enforce(rawJSON string, expectedWebID string, reg registry.Registry, parsedLessonsCount int) (EnforcementResult, error) {
	if parsedLessonsCount == 0 {
		return EnforcementResult{}, fmt.Errorf("integrity.Enforce: %w", ErrEmptyCurriculum)
	}

	var parsed progress.Bundle
	if err := json.Unmarshal([]byte(rawJSON), &parsed); err != nil {
		found := (*string)(nil)
		return defaultedResult(expectedWebID, reg, CriticalFailures{
			WebIDMismatch: &WebIDMismatch{Expected: expectedWebID, Found: found},
		}), nil
	}

	var result EnforcementResult
	result.Bundle.Metadata = extractMetadata(parsed.Metadata, expectedWebID, &result.CriticalFailures)

	if result.CriticalFailures.WebIDMismatch != nil {
		// Per §4.5 phase 1, a webId mismatch short-circuits to a sentinel
		// bundle; the rest of the sections are still defaulted so callers
		// always receive a structurally complete Bundle.
		rest := defaultedResult(expectedWebID, reg, result.CriticalFailures)
		rest.Bundle.Metadata = result.Bundle.Metadata
		return rest, nil
	}

	overall, opMetrics := reconcileOverallProgress(parsed.OverallProgress, reg)
	result.Bundle.OverallProgress = overall
	result.RecoveryMetrics.OverallProgress = opMetrics

	settings, setMetrics := extractSettings(parsed.Settings)
	result.Bundle.Settings = settings
	result.RecoveryMetrics.Settings = setMetrics

	nav, navDefaulted := extractNavigationState(parsed.NavigationState, reg)
	result.Bundle.NavigationState = nav
	result.RecoveryMetrics.NavigationDefaulted = navDefaulted

	comps, compMetrics := reconcileComponents(parsed.CombinedComponentProgress, reg)
	result.Bundle.CombinedComponentProgress = comps
	result.RecoveryMetrics.Components = compMetrics

	result.RecoveryMetrics.LessonsDroppedTotal = opMetrics.LessonsDroppedCount + opMetrics.DomainsDroppedCount

	result.PerfectlyValidInput = result.CriticalFailures.WebIDMismatch == nil &&
		setMetrics.DefaultedRatio == 0 &&
		!navDefaulted &&
		!opMetrics.CorruptionDetected &&
		opMetrics.LessonsDroppedCount == 0 &&
		opMetrics.DomainsDroppedCount == 0 &&
		compMetrics.Defaulted == 0

	return result, nil
}

// defaultedResult builds the fully-defaulted bundle used both for unparsable
// JSON and for webId mismatches (§4.5 phase 1/2a).
func defaultedResult(expectedWebID string, reg registry.Registry, crit CriticalFailures) EnforcementResult {
	var result EnforcementResult
	result.CriticalFailures = crit
	result.Bundle.Metadata = progress.Metadata{WebID: expectedWebID}
	result.Bundle.OverallProgress = defaultOverallProgress()
	result.Bundle.Settings = defaultSettings()
	result.Bundle.NavigationState = progress.NavigationState{}
	result.RecoveryMetrics.NavigationDefaulted = true
	result.RecoveryMetrics.Settings = SettingsMetrics{DefaultedRatio: 1, DefaultedCount: settingsFieldCount}

	comps, compMetrics := reconcileComponents(progress.CombinedComponentProgress{}, reg)
	result.Bundle.CombinedComponentProgress = comps
	result.RecoveryMetrics.Components = compMetrics

	result.PerfectlyValidInput = false
	return result
}

func extractMetadata(m progress.Metadata, expectedWebID string, crit *CriticalFailures) progress.Metadata {
	if m.WebID != expectedWebID {
		found := m.WebID
		var foundPtr *string
		if found != "" {
			foundPtr = &found
		}
		crit.WebIDMismatch = &WebIDMismatch{Expected: expectedWebID, Found: foundPtr}
		return progress.Metadata{WebID: expectedWebID}
	}
	return m
}
