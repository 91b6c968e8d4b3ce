// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package cleaner

import (
	"context"

	"github.com/mera-learn/progress-core/internal/bridge"
	"github.com/mera-learn/progress-core/internal/metrics"
	"github.com/mera-learn/progress-core/internal/progress"
)

// sweepTarget implements §4.4 steps 1-5 for one logical sink.
func (c *Cleaner) sweepTarget(ctx context.Context, t target, now int64) {
	primaries := c.listFiles(ctx, t.sink, t.primaryKinds)
	if len(primaries) <= MinRetention {
		return
	}

	buckets := bucketByAge(primaries, now)
	toDelete := consolidationCandidates(buckets)
	if len(toDelete) == 0 {
		return
	}

	for _, f := range toDelete {
		// Re-confirm retention floor before every delete (§4.4 step 5):
		// the cleaner holds no lock and the orchestrator may be creating
		// new files concurrently.
		current := c.listFiles(ctx, t.sink, t.primaryKinds)
		if len(current) <= MinRetention {
			c.log.Debug("cleaner: stopping, retention floor reached", "sink", t.sink)
			return
		}

		c.deletePrimaryAndDuplicate(ctx, t.sink, f)
	}
}

// bucketByAge groups filenames by age bracket per §4.4 step 3, discarding
// malformed names.
func bucketByAge(names []string, now int64) map[bracket][]progress.Filename {
	buckets := make(map[bracket][]progress.Filename)
	for _, n := range names {
		f, ok := progress.ParseFilename(n)
		if !ok {
			continue
		}
		age := now - f.TimestampMS
		b := bracketFor(age)
		buckets[b] = append(buckets[b], f)
	}
	return buckets
}

// consolidationCandidates implements §4.4 step 4's conditional
// consolidation: an older bracket is only collapsed once the next-younger
// bracket is non-empty, and the newest file in a collapsed bracket always
// survives (except ancient, which is fully cleared).
func consolidationCandidates(buckets map[bracket][]progress.Filename) []progress.Filename {
	var out []progress.Filename

	if len(buckets[bracketDay]) > 0 {
		out = append(out, buckets[bracketAncient]...)
	}
	if len(buckets[bracketHour]) > 0 {
		out = append(out, allButNewest(buckets[bracketDay])...)
	}
	if len(buckets[bracketTenMin]) > 0 {
		out = append(out, allButNewest(buckets[bracketHour])...)
	}
	if len(buckets[bracketRecent]) > 0 {
		out = append(out, allButNewest(buckets[bracketTenMin])...)
	}
	// bracketRecent is never touched: inside the orchestrator's active window.

	return out
}

func allButNewest(files []progress.Filename) []progress.Filename {
	if len(files) <= 1 {
		return nil
	}
	newestIdx := 0
	for i, f := range files {
		if f.TimestampMS > files[newestIdx].TimestampMS {
			newestIdx = i
		}
	}
	out := make([]progress.Filename, 0, len(files)-1)
	for i, f := range files {
		if i != newestIdx {
			out = append(out, f)
		}
	}
	return out
}

func (c *Cleaner) deletePrimaryAndDuplicate(ctx context.Context, sink bridge.Sink, primary progress.Filename) {
	if err := c.bridge.Delete(ctx, sink, primary.String()); err != nil {
		c.log.Debug("cleaner: delete primary failed", "sink", sink, "file", primary.String(), "error", err)
	} else {
		metrics.CleanerDeletionsTotal.WithLabelValues(string(sink), "consolidation").Inc()
	}
	if dup, ok := progress.PairedDuplicate(primary); ok {
		if err := c.bridge.Delete(ctx, sink, dup.String()); err != nil {
			c.log.Debug("cleaner: delete duplicate failed", "sink", sink, "file", dup.String(), "error", err)
		} else {
			metrics.CleanerDeletionsTotal.WithLabelValues(string(sink), "consolidation").Inc()
		}
	}
}

// orphanSweep implements §4.4 step 6: a duplicate older than 24h whose
// primary fails to load is an orphan and is deleted.
func (c *Cleaner) orphanSweep(ctx context.Context, t target, now int64) {
	duplicates := c.listFiles(ctx, t.sink, t.duplicateKinds)
	for _, n := range duplicates {
		f, ok := progress.ParseFilename(n)
		if !ok {
			continue
		}
		if now-f.TimestampMS <= 24*60*60_000 {
			continue
		}

		primary, ok := primaryNameFor(f)
		if !ok {
			continue
		}
		if _, err := c.bridge.Load(ctx, t.sink, primary); err != nil {
			if derr := c.bridge.Delete(ctx, t.sink, n); derr != nil {
				c.log.Debug("cleaner: orphan delete failed", "sink", t.sink, "file", n, "error", derr)
			} else {
				metrics.CleanerDeletionsTotal.WithLabelValues(string(t.sink), "orphan").Inc()
			}
		}
	}
}

// primaryNameFor reverses PairedDuplicate for a duplicate filename.
func primaryNameFor(dup progress.Filename) (string, bool) {
	var primaryKind progress.Kind
	switch dup.Kind {
	case progress.KindPodDuplicate:
		primaryKind = progress.KindPodPrimary
	case progress.KindLocalOffDup:
		primaryKind = progress.KindLocalOffPrimary
	case progress.KindLocalOnDup:
		primaryKind = progress.KindLocalOnPrimary
	default:
		return "", false
	}
	return progress.NewFilename(dup.Version, primaryKind, dup.TimestampMS).String(), true
}

func (c *Cleaner) listFiles(ctx context.Context, sink bridge.Sink, kinds []progress.Kind) []string {
	var out []string
	for _, k := range kinds {
		names, err := c.bridge.List(ctx, sink, "*."+string(k)+".*.json")
		if err != nil {
			c.log.Warn("cleaner: list failed", "sink", sink, "kind", k, "error", err)
			continue
		}
		out = append(out, names...)
	}
	return out
}
