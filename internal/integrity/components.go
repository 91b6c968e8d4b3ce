// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package integrity

import (
	"strconv"

	"github.com/mera-learn/progress-core/internal/progress"
	"github.com/mera-learn/progress-core/internal/registry"
)

// reconcileComponents implements §4.5 phase 2e: iterate every registry
// component id (not every stored id, per I5), keep the stored payload iff it
// passes the type's schema/structure validators, otherwise substitute the
// type default.
func reconcileComponents(ccp progress.CombinedComponentProgress, reg registry.Registry) (progress.CombinedComponentProgress, ComponentMetrics) {
	stored := ccp.Components
	if stored == nil {
		stored = map[string]progress.ComponentProgress{}
	}

	out := make(map[string]progress.ComponentProgress, len(reg.GetAllComponentIDs()))
	var metrics ComponentMetrics

	for _, id := range reg.GetAllComponentIDs() {
		key := strconv.Itoa(id)
		if accepted, ok := acceptStored(id, key, stored, reg); ok {
			out[key] = accepted
			metrics.Retained++
			continue
		}
		out[key] = defaultComponent(id, reg)
		metrics.Defaulted++
	}

	return progress.CombinedComponentProgress{Components: out}, metrics
}

func acceptStored(id int, key string, stored map[string]progress.ComponentProgress, reg registry.Registry) (progress.ComponentProgress, bool) {
	raw, present := stored[key]
	if !present {
		return progress.ComponentProgress{}, false
	}

	typeTag, ok := reg.GetComponentType(id)
	if !ok {
		return progress.ComponentProgress{}, false
	}
	handlers, ok := reg.Handlers(typeTag)
	if !ok || handlers.ValidateSchema == nil {
		return progress.ComponentProgress{}, false
	}
	if !handlers.ValidateSchema(raw) {
		return progress.ComponentProgress{}, false
	}

	if handlers.ValidateAgainstConfig != nil {
		lessonID, ok := reg.GetLessonIDForComponent(id)
		if ok {
			if cfg, ok := reg.LessonConfig(lessonID); ok {
				if !handlers.ValidateAgainstConfig(raw, cfg) {
					return progress.ComponentProgress{}, false
				}
			}
		}
	}

	return raw, true
}

func defaultComponent(id int, reg registry.Registry) progress.ComponentProgress {
	typeTag, ok := reg.GetComponentType(id)
	if !ok {
		return progress.ComponentProgress{}
	}
	handlers, ok := reg.Handlers(typeTag)
	if !ok || handlers.Default == nil {
		return progress.ComponentProgress{}
	}
	return handlers.Default()
}
