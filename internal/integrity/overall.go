// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package integrity

import (
	"github.com/mera-learn/progress-core/internal/progress"
	"github.com/mera-learn/progress-core/internal/registry"
)

func defaultOverallProgress() progress.OverallProgress {
	return progress.OverallProgress{
		LessonCompletions: map[string]progress.CompletionEntry{},
		DomainCompletions: map[string]progress.CompletionEntry{},
	}
}

// reconcileOverallProgress implements §4.5.1: corruption detection via the
// claimed-vs-actual completion count, then registry-key filtering, then
// recomputation of the totals from the post-reconciliation actuals.
func reconcileOverallProgress(op progress.OverallProgress, reg registry.Registry) (progress.OverallProgress, OverallProgressMetrics) {
	lessons := op.LessonCompletions
	if lessons == nil {
		lessons = map[string]progress.CompletionEntry{}
	}
	domains := op.DomainCompletions
	if domains == nil {
		domains = map[string]progress.CompletionEntry{}
	}

	actualLessons := countCompleted(lessons)
	actualDomains := countCompleted(domains)

	lessonsLost := op.TotalLessonsCompleted - actualLessons
	if lessonsLost < 0 {
		lessonsLost = 0
	}
	domainsLost := op.TotalDomainsCompleted - actualDomains
	if domainsLost < 0 {
		domainsLost = 0
	}

	reconciledLessons, lessonsDropped := filterByRegistry(lessons, func(id int) bool { return reg.HasLesson(id) })
	reconciledDomains, domainsDropped := filterByRegistry(domains, func(id int) bool { return reg.HasDomain(id) })

	finalActualLessons := countCompleted(reconciledLessons)
	finalActualDomains := countCompleted(reconciledDomains)

	droppedRatio := 0.0
	if finalActualLessons+lessonsDropped > 0 {
		// ratio is defined against actualLessons (pre-reconciliation actual
		// completions), per §4.5.1 step 3.
		if actualLessons > 0 {
			droppedRatio = float64(lessonsDropped) / float64(actualLessons)
		}
	}

	out := progress.OverallProgress{
		LessonCompletions:     reconciledLessons,
		DomainCompletions:     reconciledDomains,
		TotalLessonsCompleted: finalActualLessons,
		TotalDomainsCompleted: finalActualDomains,
		CurrentStreak:         op.CurrentStreak,
		LastStreakCheck:       op.LastStreakCheck,
	}

	metrics := OverallProgressMetrics{
		LessonsLostToCorruption: lessonsLost,
		DomainsLostToCorruption: domainsLost,
		CorruptionDetected:      lessonsLost > 0 || domainsLost > 0,
		LessonsDroppedCount:     lessonsDropped,
		DomainsDroppedCount:     domainsDropped,
		LessonsDroppedRatio:     droppedRatio,
	}
	return out, metrics
}

func countCompleted(m map[string]progress.CompletionEntry) int {
	n := 0
	for _, e := range m {
		if e.Completed() {
			n++
		}
	}
	return n
}

// filterByRegistry drops every key not recognized by has, returning the
// filtered map and the number of keys dropped (I4).
func filterByRegistry(m map[string]progress.CompletionEntry, has func(id int) bool) (map[string]progress.CompletionEntry, int) {
	out := make(map[string]progress.CompletionEntry, len(m))
	dropped := 0
	for k, v := range m {
		id, ok := parseID(k)
		if !ok || !has(id) {
			dropped++
			continue
		}
		out[k] = v
	}
	return out, dropped
}
