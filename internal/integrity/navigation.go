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

// extractNavigationState implements the binary accept-whole-or-default-whole
// rule of §4.5 phase 2: the entity must exist in the registry (or be 0) and
// currentPage must fit within that entity's page count.
func extractNavigationState(nav progress.NavigationState, reg registry.Registry) (progress.NavigationState, bool) {
	if nav.CurrentEntityID == 0 {
		return nav, false
	}

	if !reg.HasEntity(nav.CurrentEntityID) {
		return progress.NavigationState{LastUpdated: nav.LastUpdated}, true
	}

	pageCount, ok := reg.GetEntityPageCount(nav.CurrentEntityID)
	if !ok || nav.CurrentPage < 0 || nav.CurrentPage >= pageCount {
		return progress.NavigationState{LastUpdated: nav.LastUpdated}, true
	}

	return nav, false
}
