// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package progress defines the Bundle data model (§3) shared by every
// component of the core: the unit of persistence, its sub-sections, and the
// physical backup-file naming grammar.
package progress

import (
	"bytes"
	"encoding/json"
)

// CompletionEntry is the shape shared by lessonCompletions and
// domainCompletions entries. FirstCompleted is nil until the entity is
// first completed; a non-nil FirstCompleted is what "completed" means (§3).
type CompletionEntry struct {
	FirstCompleted *int64 `json:"firstCompleted"`
	LastUpdated    int64  `json:"lastUpdated"`
}

// Completed reports whether this entry represents a completed lesson/domain.
func (c CompletionEntry) Completed() bool {
	return c.FirstCompleted != nil
}

// OverallProgress is the aggregate progress section of a Bundle (§3).
type OverallProgress struct {
	LessonCompletions     map[string]CompletionEntry `json:"lessonCompletions"`
	DomainCompletions     map[string]CompletionEntry `json:"domainCompletions"`
	TotalLessonsCompleted int                         `json:"totalLessonsCompleted"`
	TotalDomainsCompleted int                         `json:"totalDomainsCompleted"`
	CurrentStreak         int                         `json:"currentStreak"`
	LastStreakCheck        int64                      `json:"lastStreakCheck"`
}

// SettingField pairs a preference value with the timestamp it was last
// changed at, so the Merger can resolve each field independently (§3).
type SettingField struct {
	Value       string `json:"value"`
	LastUpdated int64  `json:"lastUpdated"`
}

// Settings holds the fixed set of 11 user-preference fields named in §3.
// Every field is independently timestamped and independently re-defaulted
// by Integrity (I6).
type Settings struct {
	WeekStartDay        SettingField `json:"weekStartDay"`
	WeekStartTimeUTC    SettingField `json:"weekStartTimeUtc"`
	Theme               SettingField `json:"theme"`
	LearningPace        SettingField `json:"learningPace"`
	OptOutAnalytics     SettingField `json:"optOutAnalytics"`
	OptOutEmails        SettingField `json:"optOutEmails"`
	FontSize            SettingField `json:"fontSize"`
	HighContrast        SettingField `json:"highContrast"`
	ReducedMotion       SettingField `json:"reducedMotion"`
	FocusIndicatorStyle SettingField `json:"focusIndicatorStyle"`
	AudioEnabled        SettingField `json:"audioEnabled"`
}

// NavigationState is the ephemeral "where is the user right now" section.
type NavigationState struct {
	CurrentEntityID int   `json:"currentEntityId"`
	CurrentPage     int   `json:"currentPage"`
	LastUpdated     int64 `json:"lastUpdated"`
}

// ComponentProgress is one entry of combinedComponentProgress.components: an
// opaque, type-determined payload. Every concrete schema is required to
// carry a "lastUpdated" field (§3); LastUpdated extracts it.
type ComponentProgress struct {
	Raw json.RawMessage `json:"-"`
}

// MarshalJSON emits the raw payload verbatim. The whole point of an opaque,
// per-type record is that this package never needs to know its shape.
func (c ComponentProgress) MarshalJSON() ([]byte, error) {
	if c.Raw == nil {
		return []byte("{}"), nil
	}
	return c.Raw, nil
}

// UnmarshalJSON stores the payload, compacted to the same form that
// json.Marshal emits, for later type-specific validation by the Integrity
// component. Compacting keeps a decode/encode/decode round trip stable.
func (c *ComponentProgress) UnmarshalJSON(data []byte) error {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		c.Raw = append(json.RawMessage(nil), data...)
		return nil
	}
	c.Raw = json.RawMessage(buf.Bytes())
	return nil
}

// LastUpdated extracts the required "lastUpdated" field without knowing the
// rest of the schema. Returns (0, false) if the field is missing or the
// payload is not even a JSON object.
func (c ComponentProgress) LastUpdated() (int64, bool) {
	var probe struct {
		LastUpdated *int64 `json:"lastUpdated"`
	}
	if len(c.Raw) == 0 {
		return 0, false
	}
	if err := json.Unmarshal(c.Raw, &probe); err != nil || probe.LastUpdated == nil {
		return 0, false
	}
	return *probe.LastUpdated, true
}

// CombinedComponentProgress maps component-id (stringified) to its opaque,
// type-determined progress record.
type CombinedComponentProgress struct {
	Components map[string]ComponentProgress `json:"components"`
}

// Metadata identifies the owner of a Bundle.
type Metadata struct {
	WebID string `json:"webId"`
}

// Bundle is the full progress record for one user (§3), the unit persisted
// per backup file.
type Bundle struct {
	Metadata                  Metadata                  `json:"metadata"`
	OverallProgress           OverallProgress            `json:"overallProgress"`
	Settings                  Settings                   `json:"settings"`
	NavigationState           NavigationState            `json:"navigationState"`
	CombinedComponentProgress CombinedComponentProgress  `json:"combinedComponentProgress"`
}
