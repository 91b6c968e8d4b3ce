// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package root

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/mera-learn/progress-core/internal/tracing"
)

var recoverLessonsCount int

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Run the Progress Loader once and print the recovery outcome",
	Long: `recover enumerates every backup on the configured Pod and Local sinks,
scores them (§4.7.1), selects or merges a source, and reports the resulting
RecoveryScenario -- the same pipeline the browser bootstrap runs on startup.`,
	RunE: runRecover,
}

func init() {
	recoverCmd.Flags().IntVar(&recoverLessonsCount, "lessons-count", 1, "parsedLessons count passed to Integrity (must be > 0)")
}

type recoverResult struct {
	Scenario            string `json:"scenario"`
	MergeOccurred       bool   `json:"mergeOccurred"`
	PossiblyDestructive bool   `json:"possiblyDestructive"`
	HasBundle           bool   `json:"hasBundle"`
	WebID               string `json:"webId,omitempty"`
}

func runRecover(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	tp, err := tracing.Init("progressd-recover", s.log)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	l, err := newLoader(s)
	if err != nil {
		return err
	}

	result, err := l.Load(ctx, recoverLessonsCount, time.Now().UnixMilli())
	if err != nil {
		return emitResult("recover", nil, err)
	}

	out := recoverResult{
		Scenario:            result.Scenario.String(),
		MergeOccurred:       result.MergeOccurred,
		PossiblyDestructive: result.PossiblyDestructive,
		HasBundle:           result.Bundle != nil,
	}
	if result.Bundle != nil {
		out.WebID = result.Bundle.Metadata.WebID
	}
	return emitResult("recover", out, nil)
}
