// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package escapehatch_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mera-learn/progress-core/internal/bridge"
	"github.com/mera-learn/progress-core/internal/bridge/fake"
	"github.com/mera-learn/progress-core/internal/escapehatch"
	"github.com/mera-learn/progress-core/internal/progress"
)

func TestHatch_WritesWhenNoneExist(t *testing.T) {
	b := fake.New()
	h := escapehatch.New(b, progress.SchemaVersion{Major: 1}, nil)

	h.Make(context.Background(), `{"raw":"bytes"}`, 10_000_000)

	names, err := b.List(context.Background(), bridge.SinkPod, "*.ehb.*.json")
	require.NoError(t, err)
	require.Len(t, names, 1)
}

func TestHatch_RateLimited(t *testing.T) {
	b := fake.New()
	h := escapehatch.New(b, progress.SchemaVersion{Major: 1}, nil)

	h.Make(context.Background(), `{"raw":"1"}`, 10_000_000)
	h.Make(context.Background(), `{"raw":"2"}`, 10_000_000+1000) // 1s later, within 1h

	names, err := b.List(context.Background(), bridge.SinkPod, "*.ehb.*.json")
	require.NoError(t, err)
	require.Len(t, names, 1)
}

func TestHatch_WritesAfterRateLimitWindow(t *testing.T) {
	b := fake.New()
	h := escapehatch.New(b, progress.SchemaVersion{Major: 1}, nil)

	h.Make(context.Background(), `{"raw":"1"}`, 10_000_000)
	h.Make(context.Background(), `{"raw":"2"}`, 10_000_000+escapehatch.RateLimitMS+1)

	names, err := b.List(context.Background(), bridge.SinkPod, "*.ehb.*.json")
	require.NoError(t, err)
	require.Len(t, names, 2)
}

func TestHatch_OverflowDeletesOldest(t *testing.T) {
	b := fake.New()
	h := escapehatch.New(b, progress.SchemaVersion{Major: 1}, nil)

	ts := int64(1_000_000)
	for i := 0; i < escapehatch.MaxBackups+1; i++ {
		ts += escapehatch.RateLimitMS + 1
		h.Make(context.Background(), `{"raw":"x"}`, ts)
	}

	names, err := b.List(context.Background(), bridge.SinkPod, "*.ehb.*.json")
	require.NoError(t, err)
	require.Len(t, names, escapehatch.MaxBackups)
}
