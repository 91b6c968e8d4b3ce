// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package cleaner

// SetClockForTest overrides the cleaner's clock so tests can place files at
// precise synthetic ages instead of racing real time.
func SetClockForTest(c *Cleaner, clock func() int64) {
	c.clock = clock
}
