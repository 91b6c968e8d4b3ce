// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package merge implements Progress Merger (§4.6): a pure, deterministic
// per-field last-writer-wins merge of two already-sanitized Bundles. Ties
// always favor the first argument.
package merge

import "github.com/mera-learn/progress-core/internal/progress"

// Merge combines a and b per the §4.6 rule table. Both inputs must already
// be the output of integrity.Enforce: Merge does no validation of its own
// and trusts the embedded timestamps.
func Merge(a, b progress.Bundle) progress.Bundle {
	out := progress.Bundle{
		Metadata: a.Metadata,
	}

	lessons, lessonsTotal := mergeCompletions(a.OverallProgress.LessonCompletions, b.OverallProgress.LessonCompletions)
	domains, domainsTotal := mergeCompletions(a.OverallProgress.DomainCompletions, b.OverallProgress.DomainCompletions)

	streak, streakCheck := mergeStreak(a.OverallProgress, b.OverallProgress)

	out.OverallProgress = progress.OverallProgress{
		LessonCompletions:     lessons,
		DomainCompletions:     domains,
		TotalLessonsCompleted: lessonsTotal,
		TotalDomainsCompleted: domainsTotal,
		CurrentStreak:         streak,
		LastStreakCheck:       streakCheck,
	}

	out.Settings = mergeSettings(a.Settings, b.Settings)
	out.NavigationState = mergeNavigationState(a.NavigationState, b.NavigationState)
	out.CombinedComponentProgress = mergeComponents(a.CombinedComponentProgress, b.CombinedComponentProgress)

	return out
}

// mergeCompletions applies per-key LWW (ties -> a) and recomputes the
// completed count from the merged map rather than merging the counters
// themselves (§4.6: "do not merge counters").
func mergeCompletions(a, b map[string]progress.CompletionEntry) (map[string]progress.CompletionEntry, int) {
	out := make(map[string]progress.CompletionEntry, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, bv := range b {
		av, ok := out[k]
		if !ok || bv.LastUpdated > av.LastUpdated {
			out[k] = bv
		}
	}

	completed := 0
	for _, e := range out {
		if e.Completed() {
			completed++
		}
	}
	return out, completed
}

func mergeStreak(a, b progress.OverallProgress) (int, int64) {
	lastStreakCheck := a.LastStreakCheck
	if b.LastStreakCheck > lastStreakCheck {
		lastStreakCheck = b.LastStreakCheck
	}

	streak := a.CurrentStreak
	if b.LastStreakCheck > a.LastStreakCheck {
		streak = b.CurrentStreak
	}
	return streak, lastStreakCheck
}

func mergeSettings(a, b progress.Settings) progress.Settings {
	return progress.Settings{
		WeekStartDay:        lwwField(a.WeekStartDay, b.WeekStartDay),
		WeekStartTimeUTC:    lwwField(a.WeekStartTimeUTC, b.WeekStartTimeUTC),
		Theme:               lwwField(a.Theme, b.Theme),
		LearningPace:        lwwField(a.LearningPace, b.LearningPace),
		OptOutAnalytics:     lwwField(a.OptOutAnalytics, b.OptOutAnalytics),
		OptOutEmails:        lwwField(a.OptOutEmails, b.OptOutEmails),
		FontSize:            lwwField(a.FontSize, b.FontSize),
		HighContrast:        lwwField(a.HighContrast, b.HighContrast),
		ReducedMotion:       lwwField(a.ReducedMotion, b.ReducedMotion),
		FocusIndicatorStyle: lwwField(a.FocusIndicatorStyle, b.FocusIndicatorStyle),
		AudioEnabled:        lwwField(a.AudioEnabled, b.AudioEnabled),
	}
}

func lwwField(a, b progress.SettingField) progress.SettingField {
	if b.LastUpdated > a.LastUpdated {
		return b
	}
	return a
}

func mergeNavigationState(a, b progress.NavigationState) progress.NavigationState {
	if b.LastUpdated > a.LastUpdated {
		return b
	}
	return a
}

// mergeComponents applies atomic whole-object LWW per component id; keys
// present in only one side are carried over untouched.
func mergeComponents(a, b progress.CombinedComponentProgress) progress.CombinedComponentProgress {
	out := make(map[string]progress.ComponentProgress, len(a.Components)+len(b.Components))
	for k, v := range a.Components {
		out[k] = v
	}
	for k, bv := range b.Components {
		av, ok := out[k]
		if !ok {
			out[k] = bv
			continue
		}
		aLU, aOk := av.LastUpdated()
		bLU, bOk := bv.LastUpdated()
		if bOk && (!aOk || bLU > aLU) {
			out[k] = bv
		}
	}
	return progress.CombinedComponentProgress{Components: out}
}
