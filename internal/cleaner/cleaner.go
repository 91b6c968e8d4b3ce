// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package cleaner implements the Save Cleaner (I, §4.4): a singleton,
// 60s-interval, bracket-based retention GC over the backup files each sink
// accumulates. Scheduling follows the same ticker + done-channel shape as
// savemanager; the bracket/consolidation policy adapts a calendar-day
// file-age bucketing scheme to the five in-session age brackets needed
// here.
package cleaner

import (
	"context"
	"sort"
	"time"

	"github.com/mera-learn/progress-core/internal/bridge"
	"github.com/mera-learn/progress-core/internal/metrics"
	"github.com/mera-learn/progress-core/internal/progress"
	"github.com/mera-learn/progress-core/pkg/logging"
)

// Interval is the GC tick period of §4.4.
const Interval = 60 * time.Second

// MinRetention is the minimum number of primaries a sink must keep (step 1).
const MinRetention = 4

type bracket int

const (
	bracketRecent bracket = iota // < 1 minute
	bracketTenMin                // 1-10 minutes
	bracketHour                  // 10 min - 1 hour
	bracketDay                   // 1-24 hours
	bracketAncient                // > 24 hours
)

func bracketFor(ageMS int64) bracket {
	switch {
	case ageMS < 60_000:
		return bracketRecent
	case ageMS <= 10*60_000:
		return bracketTenMin
	case ageMS <= 60*60_000:
		return bracketHour
	case ageMS <= 24*60*60_000:
		return bracketDay
	default:
		return bracketAncient
	}
}

// target describes one of the two logical sinks the cleaner sweeps: Pod
// (sp/sd) or the unified Local primaries (lofp+lonp) / duplicates
// (lofd+lond).
type target struct {
	sink           bridge.Sink
	primaryKinds   []progress.Kind
	duplicateKinds []progress.Kind
}

func targets() []target {
	return []target{
		{sink: bridge.SinkPod, primaryKinds: []progress.Kind{progress.KindPodPrimary}, duplicateKinds: []progress.Kind{progress.KindPodDuplicate}},
		{sink: bridge.SinkLocal, primaryKinds: []progress.Kind{progress.KindLocalOffPrimary, progress.KindLocalOnPrimary}, duplicateKinds: []progress.Kind{progress.KindLocalOffDup, progress.KindLocalOnDup}},
	}
}

// Cleaner runs the bracket-based retention sweep.
type Cleaner struct {
	bridge bridge.Bridge
	log    *logging.Logger
	clock  func() int64

	done    chan struct{}
	running bool
}

// New constructs a Cleaner sweeping b.
func New(b bridge.Bridge, log *logging.Logger) (*Cleaner, error) {
	if err := bridge.RequireNonNil(b); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Default()
	}
	return &Cleaner{bridge: b, log: log, clock: func() int64 { return time.Now().UnixMilli() }, done: make(chan struct{})}, nil
}

// Start begins the 60s GC loop.
func (c *Cleaner) Start(ctx context.Context) {
	if c.running {
		return
	}
	c.running = true
	c.done = make(chan struct{})
	go c.runLoop(ctx)
}

// Stop signals the GC loop to exit.
func (c *Cleaner) Stop() {
	if !c.running {
		return
	}
	close(c.done)
	c.running = false
}

func (c *Cleaner) runLoop(ctx context.Context) {
	ticker := time.NewTicker(Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			c.RunNow(ctx)
		}
	}
}

// RunNow runs one sweep cycle immediately (§4.4 steps 1-6), for tests and
// manual invocation (`progressd clean`).
func (c *Cleaner) RunNow(ctx context.Context) {
	start := time.Now()
	defer func() { metrics.CleanerRunDuration.Observe(time.Since(start).Seconds()) }()

	now := c.clock()
	for _, t := range targets() {
		c.sweepTarget(ctx, t, now)
		c.orphanSweep(ctx, t, now)
	}
}
