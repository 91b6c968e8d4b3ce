// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package registry

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mera-learn/progress-core/internal/progress"
)

// fileSchema is the on-disk shape progressd reads a curriculum snapshot
// from: the small slice of the Curriculum Registry (§6) that a standalone
// deployment, one without the lesson-authoring pipeline behind it, needs
// to reconcile Bundles against.
type fileSchema struct {
	Lessons []int `yaml:"lessons"`
	Domains []int `yaml:"domains"`
	Entities []struct {
		ID         int `yaml:"id"`
		PageCount  int `yaml:"pageCount"`
	} `yaml:"entities"`
	Components []struct {
		ID       int    `yaml:"id"`
		Type     string `yaml:"type"`
		LessonID int    `yaml:"lessonId"`
	} `yaml:"components"`
}

// LoadFile parses a YAML curriculum snapshot into a Static registry. Every
// component type referenced by the file is wired to the generic handler
// table (genericHandlers), which accepts any JSON object carrying a
// "lastUpdated" field: sufficient for progressd's recover/status/clean
// tooling, which never needs a type-specific schema check the way the
// in-browser rendering engine does.
func LoadFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: reading %s: %w", path, err)
	}
	var fs fileSchema
	if err := yaml.Unmarshal(data, &fs); err != nil {
		return nil, fmt.Errorf("registry: parsing %s: %w", path, err)
	}

	reg := NewStatic()
	for _, id := range fs.Lessons {
		reg.Lessons[id] = true
	}
	for _, id := range fs.Domains {
		reg.Domains[id] = true
	}
	for _, e := range fs.Entities {
		reg.Entities[e.ID] = e.PageCount
	}
	typesSeen := map[string]bool{}
	for _, c := range fs.Components {
		reg.Components[c.ID] = c.Type
		reg.LessonOf[c.ID] = c.LessonID
		typesSeen[c.Type] = true
	}
	for t := range typesSeen {
		reg.Types[t] = genericHandlers()
	}
	return reg, nil
}

// genericHandlers is the type-handler table progressd registers for every
// component type it discovers in a curriculum file, in lieu of the
// rendering engine's real per-type validators (§1 non-goal: the rendering
// engine is out of scope).
func genericHandlers() ComponentTypeHandlers {
	return ComponentTypeHandlers{
		ValidateSchema: func(raw progress.ComponentProgress) bool {
			_, ok := raw.LastUpdated()
			return ok
		},
		Default: func() progress.ComponentProgress {
			payload, _ := json.Marshal(map[string]any{"lastUpdated": 0})
			return progress.ComponentProgress{Raw: payload}
		},
	}
}
