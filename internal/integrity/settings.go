// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package integrity

import (
	"github.com/mera-learn/progress-core/internal/progress"
	"github.com/mera-learn/progress-core/pkg/validation"
)

const settingsFieldCount = 11

func defaultSettings() progress.Settings {
	get := func(name string) string {
		for _, f := range validation.Fields {
			if f.Name == name {
				return f.Default
			}
		}
		return ""
	}
	field := func(name string) progress.SettingField {
		return progress.SettingField{Value: get(name), LastUpdated: 0}
	}
	return progress.Settings{
		WeekStartDay:        field("weekStartDay"),
		WeekStartTimeUTC:    field("weekStartTimeUtc"),
		Theme:               field("theme"),
		LearningPace:        field("learningPace"),
		OptOutAnalytics:     field("optOutAnalytics"),
		OptOutEmails:        field("optOutEmails"),
		FontSize:            field("fontSize"),
		HighContrast:        field("highContrast"),
		ReducedMotion:       field("reducedMotion"),
		FocusIndicatorStyle: field("focusIndicatorStyle"),
		AudioEnabled:        field("audioEnabled"),
	}
}

// extractSettings applies I6 independently to each of the 11 fields: a
// field with an out-of-enum value or a negative lastUpdated is reset to its
// default with lastUpdated = 0; the rest of the settings object is
// unaffected.
func extractSettings(s progress.Settings) (progress.Settings, SettingsMetrics) {
	defaults := defaultSettings()
	out := progress.Settings{}
	defaultedCount := 0

	type slot struct {
		name string
		in   progress.SettingField
		def  progress.SettingField
		set  func(progress.SettingField)
	}

	slots := []slot{
		{"weekStartDay", s.WeekStartDay, defaults.WeekStartDay, func(f progress.SettingField) { out.WeekStartDay = f }},
		{"weekStartTimeUtc", s.WeekStartTimeUTC, defaults.WeekStartTimeUTC, func(f progress.SettingField) { out.WeekStartTimeUTC = f }},
		{"theme", s.Theme, defaults.Theme, func(f progress.SettingField) { out.Theme = f }},
		{"learningPace", s.LearningPace, defaults.LearningPace, func(f progress.SettingField) { out.LearningPace = f }},
		{"optOutAnalytics", s.OptOutAnalytics, defaults.OptOutAnalytics, func(f progress.SettingField) { out.OptOutAnalytics = f }},
		{"optOutEmails", s.OptOutEmails, defaults.OptOutEmails, func(f progress.SettingField) { out.OptOutEmails = f }},
		{"fontSize", s.FontSize, defaults.FontSize, func(f progress.SettingField) { out.FontSize = f }},
		{"highContrast", s.HighContrast, defaults.HighContrast, func(f progress.SettingField) { out.HighContrast = f }},
		{"reducedMotion", s.ReducedMotion, defaults.ReducedMotion, func(f progress.SettingField) { out.ReducedMotion = f }},
		{"focusIndicatorStyle", s.FocusIndicatorStyle, defaults.FocusIndicatorStyle, func(f progress.SettingField) { out.FocusIndicatorStyle = f }},
		{"audioEnabled", s.AudioEnabled, defaults.AudioEnabled, func(f progress.SettingField) { out.AudioEnabled = f }},
	}

	for _, sl := range slots {
		if sl.in.LastUpdated >= 0 && validation.ValidField(sl.name, sl.in.Value) {
			sl.set(sl.in)
			continue
		}
		defaultedCount++
		sl.set(sl.def)
	}

	return out, SettingsMetrics{
		DefaultedRatio: float64(defaultedCount) / float64(settingsFieldCount),
		DefaultedCount: defaultedCount,
	}
}
