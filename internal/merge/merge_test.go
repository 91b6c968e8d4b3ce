// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package merge_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mera-learn/progress-core/internal/merge"
	"github.com/mera-learn/progress-core/internal/progress"
)

func firstCompletedPtr(v int64) *int64 { return &v }

func baseBundle() progress.Bundle {
	return progress.Bundle{
		Metadata: progress.Metadata{WebID: "https://alice"},
		OverallProgress: progress.OverallProgress{
			LessonCompletions: map[string]progress.CompletionEntry{
				"100": {FirstCompleted: nil, LastUpdated: 900},
			},
			DomainCompletions: map[string]progress.CompletionEntry{},
			LastStreakCheck:   900,
			CurrentStreak:     1,
		},
		Settings: progress.Settings{
			Theme: progress.SettingField{Value: "light", LastUpdated: 900},
		},
		NavigationState: progress.NavigationState{CurrentEntityID: 5, CurrentPage: 0, LastUpdated: 900},
		CombinedComponentProgress: progress.CombinedComponentProgress{
			Components: map[string]progress.ComponentProgress{
				"7": {Raw: json.RawMessage(`{"lastUpdated":900,"score":1}`)},
			},
		},
	}
}

// TestMerge_OfflineWorkWinsOnNewerTimestamp mirrors scenario S2: the offline
// bundle completed lesson 100 later than the Pod bundle knew about it, and
// also changed a setting more recently.
func TestMerge_OfflineWorkWinsOnNewerTimestamp(t *testing.T) {
	podBundle := baseBundle()

	localBundle := baseBundle()
	localBundle.OverallProgress.LessonCompletions["100"] = progress.CompletionEntry{
		FirstCompleted: firstCompletedPtr(950),
		LastUpdated:    950,
	}
	localBundle.Settings.Theme = progress.SettingField{Value: "dark", LastUpdated: 950}

	merged := merge.Merge(podBundle, localBundle)

	require.True(t, merged.OverallProgress.LessonCompletions["100"].Completed())
	require.Equal(t, int64(950), merged.OverallProgress.LessonCompletions["100"].LastUpdated)
	require.Equal(t, "dark", merged.Settings.Theme.Value)
	require.Equal(t, 1, merged.OverallProgress.TotalLessonsCompleted)
}

func TestMerge_TiesGoToA(t *testing.T) {
	a := baseBundle()
	b := baseBundle()
	b.Settings.Theme = progress.SettingField{Value: "dark", LastUpdated: 900}

	merged := merge.Merge(a, b)
	require.Equal(t, "light", merged.Settings.Theme.Value)
}

func TestMerge_CountersAreRecomputedNotMerged(t *testing.T) {
	a := baseBundle()
	a.OverallProgress.TotalLessonsCompleted = 999 // deliberately wrong, must be ignored

	b := baseBundle()
	b.OverallProgress.LessonCompletions["101"] = progress.CompletionEntry{
		FirstCompleted: firstCompletedPtr(800),
		LastUpdated:    800,
	}

	merged := merge.Merge(a, b)
	completed := 0
	for _, e := range merged.OverallProgress.LessonCompletions {
		if e.Completed() {
			completed++
		}
	}
	require.Equal(t, completed, merged.OverallProgress.TotalLessonsCompleted)
}

func TestMerge_UnknownKeysCarriedOver(t *testing.T) {
	a := baseBundle()
	b := baseBundle()
	b.CombinedComponentProgress.Components["8"] = progress.ComponentProgress{Raw: json.RawMessage(`{"lastUpdated":500}`)}

	merged := merge.Merge(a, b)
	_, ok := merged.CombinedComponentProgress.Components["8"]
	require.True(t, ok)
	_, ok = merged.CombinedComponentProgress.Components["7"]
	require.True(t, ok)
}
