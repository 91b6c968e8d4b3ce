// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package root

import (
	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Run one Save Cleaner sweep immediately",
	Long: `clean runs a single Save Cleaner retention sweep (§4.4) against the
configured Pod/Local sinks instead of waiting for the 60s ticker -- useful
after a backfill or a bulk test-data load to bring a sink back under its
retention policy without starting the full daemon.`,
	RunE: runClean,
}

func runClean(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	c, err := newCleaner(s)
	if err != nil {
		return err
	}

	c.RunNow(ctx)
	return emitResult("clean", map[string]string{"status": "swept"}, nil)
}
