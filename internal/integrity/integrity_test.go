// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package integrity_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mera-learn/progress-core/internal/integrity"
	"github.com/mera-learn/progress-core/internal/progress"
	"github.com/mera-learn/progress-core/internal/registry"
)

func testRegistry() *registry.Static {
	reg := registry.NewStatic()
	reg.Lessons[100] = true
	reg.Lessons[101] = true
	reg.Domains[1] = true
	reg.Entities[5] = 3
	reg.Components[7] = "quiz"
	reg.LessonOf[7] = 100
	reg.Types["quiz"] = registry.ComponentTypeHandlers{
		ValidateSchema: func(raw progress.ComponentProgress) bool {
			_, ok := raw.LastUpdated()
			return ok
		},
		Default: func() progress.ComponentProgress {
			return progress.ComponentProgress{Raw: json.RawMessage(`{"lastUpdated":0,"score":0}`)}
		},
	}
	return reg
}

func validBundleJSON(webID string) string {
	return `{
		"metadata": {"webId": "` + webID + `"},
		"overallProgress": {
			"lessonCompletions": {"100": {"firstCompleted": 950, "lastUpdated": 950}},
			"domainCompletions": {"1": {"firstCompleted": 950, "lastUpdated": 950}},
			"totalLessonsCompleted": 1,
			"totalDomainsCompleted": 1,
			"currentStreak": 2,
			"lastStreakCheck": 950
		},
		"settings": {
			"weekStartDay": {"value": "1", "lastUpdated": 10},
			"weekStartTimeUtc": {"value": "08:00", "lastUpdated": 10},
			"theme": {"value": "dark", "lastUpdated": 10},
			"learningPace": {"value": "standard", "lastUpdated": 10},
			"optOutAnalytics": {"value": "false", "lastUpdated": 10},
			"optOutEmails": {"value": "false", "lastUpdated": 10},
			"fontSize": {"value": "medium", "lastUpdated": 10},
			"highContrast": {"value": "false", "lastUpdated": 10},
			"reducedMotion": {"value": "false", "lastUpdated": 10},
			"focusIndicatorStyle": {"value": "default", "lastUpdated": 10},
			"audioEnabled": {"value": "true", "lastUpdated": 10}
		},
		"navigationState": {"currentEntityId": 5, "currentPage": 1, "lastUpdated": 900},
		"combinedComponentProgress": {"components": {"7": {"lastUpdated": 900, "score": 3}}}
	}`
}

func TestEnforce_PerfectInputIsIdempotent(t *testing.T) {
	reg := testRegistry()
	raw := validBundleJSON("https://alice")

	first, err := integrity.Enforce(raw, "https://alice", reg, 2)
	require.NoError(t, err)
	require.True(t, first.PerfectlyValidInput)

	restringified, err := json.Marshal(first.Bundle)
	require.NoError(t, err)

	second, err := integrity.Enforce(string(restringified), "https://alice", reg, 2)
	require.NoError(t, err)
	require.True(t, second.PerfectlyValidInput)
	require.Equal(t, first.Bundle, second.Bundle)
}

func TestEnforce_CorruptionDetectionS3(t *testing.T) {
	reg := testRegistry()
	raw := `{
		"metadata": {"webId": "https://alice"},
		"overallProgress": {
			"lessonCompletions": {"100": {"firstCompleted": 900, "lastUpdated": 900}},
			"totalLessonsCompleted": 5,
			"totalDomainsCompleted": 0
		},
		"settings": {},
		"navigationState": {},
		"combinedComponentProgress": {"components": {}}
	}`

	result, err := integrity.Enforce(raw, "https://alice", reg, 2)
	require.NoError(t, err)
	require.True(t, result.RecoveryMetrics.OverallProgress.CorruptionDetected)
	require.Equal(t, 4, result.RecoveryMetrics.OverallProgress.LessonsLostToCorruption)
	require.Equal(t, 1, result.Bundle.OverallProgress.TotalLessonsCompleted)
	require.False(t, result.PerfectlyValidInput)
}

func TestEnforce_WebIDMismatchS4(t *testing.T) {
	reg := testRegistry()
	raw := validBundleJSON("https://bob")

	result, err := integrity.Enforce(raw, "https://alice", reg, 2)
	require.NoError(t, err)
	require.NotNil(t, result.CriticalFailures.WebIDMismatch)
	require.Equal(t, "https://alice", result.CriticalFailures.WebIDMismatch.Expected)
	require.Equal(t, "https://bob", *result.CriticalFailures.WebIDMismatch.Found)
	require.False(t, result.PerfectlyValidInput)
}

func TestEnforce_UnknownRegistryKeysDropped(t *testing.T) {
	reg := testRegistry()
	raw := `{
		"metadata": {"webId": "https://alice"},
		"overallProgress": {
			"lessonCompletions": {"100": {"firstCompleted": 900, "lastUpdated": 900}, "999": {"firstCompleted": 900, "lastUpdated": 900}},
			"totalLessonsCompleted": 2,
			"totalDomainsCompleted": 0
		},
		"settings": {},
		"navigationState": {},
		"combinedComponentProgress": {"components": {}}
	}`

	result, err := integrity.Enforce(raw, "https://alice", reg, 2)
	require.NoError(t, err)
	require.Equal(t, 1, result.RecoveryMetrics.OverallProgress.LessonsDroppedCount)
	_, has999 := result.Bundle.OverallProgress.LessonCompletions["999"]
	require.False(t, has999)
	require.Equal(t, 1, result.Bundle.OverallProgress.TotalLessonsCompleted)
}

func TestEnforce_EmptyCurriculumIsFatal(t *testing.T) {
	reg := testRegistry()
	_, err := integrity.Enforce(validBundleJSON("https://alice"), "https://alice", reg, 0)
	require.ErrorIs(t, err, integrity.ErrEmptyCurriculum)
}

func TestEnforce_MissingComponentsAreDefaulted(t *testing.T) {
	reg := testRegistry()
	raw := `{
		"metadata": {"webId": "https://alice"},
		"overallProgress": {"totalLessonsCompleted": 0, "totalDomainsCompleted": 0},
		"settings": {},
		"navigationState": {},
		"combinedComponentProgress": {"components": {}}
	}`

	result, err := integrity.Enforce(raw, "https://alice", reg, 2)
	require.NoError(t, err)
	require.Equal(t, 1, result.RecoveryMetrics.Components.Defaulted)
	comp, ok := result.Bundle.CombinedComponentProgress.Components["7"]
	require.True(t, ok)
	lu, ok := comp.LastUpdated()
	require.True(t, ok)
	require.Equal(t, int64(0), lu)
}
