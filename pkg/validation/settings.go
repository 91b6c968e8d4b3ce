// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation holds the enum and structural checks Progress
// Integrity runs against a Bundle's settings section (§3, §4.5 I6), built
// on go-playground/validator rather than a hand-rolled switch per field.
package validation

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

// settingsPayload mirrors the 11 settings fields as plain strings so a
// single struct tag set can express every field's declared enum. ValidField
// builds one of these from default values with only the checked field set to
// the candidate value.
type settingsPayload struct {
	WeekStartDay        string `validate:"oneof=0 1 2 3 4 5 6"`
	WeekStartTimeUTC     string `validate:"required"`
	Theme               string `validate:"oneof=light dark system"`
	LearningPace        string `validate:"oneof=relaxed standard accelerated"`
	OptOutAnalytics     string `validate:"oneof=true false"`
	OptOutEmails        string `validate:"oneof=true false"`
	FontSize            string `validate:"oneof=small medium large x-large"`
	HighContrast        string `validate:"oneof=true false"`
	ReducedMotion       string `validate:"oneof=true false"`
	FocusIndicatorStyle string `validate:"oneof=default high-visibility"`
	AudioEnabled        string `validate:"oneof=true false"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// FieldSpec names one settings field and its default value,
// used by Progress Integrity to re-default a field independently (I6).
type FieldSpec struct {
	Name    string
	Default string
}

// Fields is the fixed set of 11 settings fields in declaration order.
var Fields = []FieldSpec{
	{Name: "weekStartDay", Default: "0"},
	{Name: "weekStartTimeUtc", Default: "00:00"},
	{Name: "theme", Default: "system"},
	{Name: "learningPace", Default: "standard"},
	{Name: "optOutAnalytics", Default: "false"},
	{Name: "optOutEmails", Default: "false"},
	{Name: "fontSize", Default: "medium"},
	{Name: "highContrast", Default: "false"},
	{Name: "reducedMotion", Default: "false"},
	{Name: "focusIndicatorStyle", Default: "default"},
	{Name: "audioEnabled", Default: "true"},
}

// ValidField reports whether value is in the declared enum for the named
// field. Unknown field names are never valid.
func ValidField(fieldName, value string) bool {
	payload := settingsPayload{
		WeekStartDay:        "0",
		WeekStartTimeUTC:    "00:00",
		Theme:               "system",
		LearningPace:        "standard",
		OptOutAnalytics:     "false",
		OptOutEmails:        "false",
		FontSize:            "medium",
		HighContrast:        "false",
		ReducedMotion:       "false",
		FocusIndicatorStyle: "default",
		AudioEnabled:        "true",
	}

	switch fieldName {
	case "weekStartDay":
		payload.WeekStartDay = value
	case "weekStartTimeUtc":
		payload.WeekStartTimeUTC = value
	case "theme":
		payload.Theme = value
	case "learningPace":
		payload.LearningPace = value
	case "optOutAnalytics":
		payload.OptOutAnalytics = value
	case "optOutEmails":
		payload.OptOutEmails = value
	case "fontSize":
		payload.FontSize = value
	case "highContrast":
		payload.HighContrast = value
	case "reducedMotion":
		payload.ReducedMotion = value
	case "focusIndicatorStyle":
		payload.FocusIndicatorStyle = value
	case "audioEnabled":
		payload.AudioEnabled = value
	default:
		return false
	}

	err := instance().Struct(payload)
	if err == nil {
		return true
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return false
	}
	for _, fe := range verrs {
		if fieldTagName(fe.StructField()) == fieldName {
			return false
		}
	}
	return true
}

func fieldTagName(structField string) string {
	switch structField {
	case "WeekStartDay":
		return "weekStartDay"
	case "WeekStartTimeUTC":
		return "weekStartTimeUtc"
	case "Theme":
		return "theme"
	case "LearningPace":
		return "learningPace"
	case "OptOutAnalytics":
		return "optOutAnalytics"
	case "OptOutEmails":
		return "optOutEmails"
	case "FontSize":
		return "fontSize"
	case "HighContrast":
		return "highContrast"
	case "ReducedMotion":
		return "reducedMotion"
	case "FocusIndicatorStyle":
		return "focusIndicatorStyle"
	case "AudioEnabled":
		return "audioEnabled"
	default:
		return ""
	}
}
