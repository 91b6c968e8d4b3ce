// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package cleaner_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mera-learn/progress-core/internal/bridge"
	"github.com/mera-learn/progress-core/internal/bridge/fake"
	"github.com/mera-learn/progress-core/internal/cleaner"
	"github.com/mera-learn/progress-core/internal/progress"
)

func seedPair(t *testing.T, b *fake.Bridge, sink bridge.Sink, primaryKind, dupKind progress.Kind, tsMS int64) {
	t.Helper()
	ctx := context.Background()
	version := progress.SchemaVersion{Major: 1}
	primary := progress.NewFilename(version, primaryKind, tsMS)
	dup := progress.NewFilename(version, dupKind, tsMS)
	require.NoError(t, b.Save(ctx, sink, primary.String(), []byte("{}")))
	require.NoError(t, b.Save(ctx, sink, dup.String(), []byte("{}")))
}

// TestCleaner_StratificationS5 reproduces scenario S5: files at ages
// 0s,2min,5min,9min,15min,45min,2h,12h,25h,48h. After one run, six files
// (5min, 9min, 45min, 12h, 25h, 48h) are deleted and the four at 0s, 2min,
// 15min and 2h survive.
func TestCleaner_StratificationS5(t *testing.T) {
	b := fake.New()
	const now = 100 * 60 * 60 * 1000 // arbitrary epoch far from zero
	ages := map[string]int64{
		"0s":   0,
		"2min": 2 * 60_000,
		"5min": 5 * 60_000,
		"9min": 9 * 60_000,
		"15min": 15 * 60_000,
		"45min": 45 * 60_000,
		"2h":   2 * 60 * 60_000,
		"12h":  12 * 60 * 60_000,
		"25h":  25 * 60 * 60_000,
		"48h":  48 * 60 * 60_000,
	}
	for _, age := range ages {
		seedPair(t, b, bridge.SinkPod, progress.KindPodPrimary, progress.KindPodDuplicate, now-age)
	}

	c, err := cleaner.New(b, nil)
	require.NoError(t, err)
	cleaner.SetClockForTest(c, func() int64 { return now })

	c.RunNow(context.Background())

	remainingPrimaries, err := b.List(context.Background(), bridge.SinkPod, "*.sp.*.json")
	require.NoError(t, err)

	survivorAges := map[int64]bool{}
	for _, name := range remainingPrimaries {
		f, ok := progress.ParseFilename(name)
		require.True(t, ok)
		survivorAges[now-f.TimestampMS] = true
	}

	require.Len(t, remainingPrimaries, 4)
	require.True(t, survivorAges[ages["0s"]])
	require.True(t, survivorAges[ages["2min"]])
	require.True(t, survivorAges[ages["15min"]])
	require.True(t, survivorAges[ages["2h"]])
}

func TestCleaner_MinimumRetentionGate(t *testing.T) {
	b := fake.New()
	const now = 100 * 60 * 60 * 1000
	// Only 4 primaries total: must be left entirely alone regardless of age.
	for i, age := range []int64{25 * 60 * 60_000, 26 * 60 * 60_000, 27 * 60 * 60_000, 28 * 60 * 60_000} {
		seedPair(t, b, bridge.SinkPod, progress.KindPodPrimary, progress.KindPodDuplicate, now-age-int64(i))
	}

	c, err := cleaner.New(b, nil)
	require.NoError(t, err)
	cleaner.SetClockForTest(c, func() int64 { return now })

	c.RunNow(context.Background())

	names, err := b.List(context.Background(), bridge.SinkPod, "*.sp.*.json")
	require.NoError(t, err)
	require.Len(t, names, 4, "cleaner must never reduce primaries below the minimum retention (P6)")
}

func TestCleaner_RecentFilesNeverDeleted(t *testing.T) {
	b := fake.New()
	const now = 100 * 60 * 60 * 1000
	seedPair(t, b, bridge.SinkPod, progress.KindPodPrimary, progress.KindPodDuplicate, now-30_000) // 30s old
	for i := 0; i < 6; i++ {
		seedPair(t, b, bridge.SinkPod, progress.KindPodPrimary, progress.KindPodDuplicate, now-int64(i)-25*60*60_000)
	}

	c, err := cleaner.New(b, nil)
	require.NoError(t, err)
	cleaner.SetClockForTest(c, func() int64 { return now })

	c.RunNow(context.Background())

	names, err := b.List(context.Background(), bridge.SinkPod, "*.sp.*.json")
	require.NoError(t, err)
	for _, n := range names {
		f, ok := progress.ParseFilename(n)
		require.True(t, ok)
		if now-f.TimestampMS < 30_001 {
			return // found the recent file still present
		}
	}
	t.Fatal("recent file was deleted (violates P5)")
}
