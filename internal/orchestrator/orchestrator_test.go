// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orchestrator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mera-learn/progress-core/internal/bridge"
	"github.com/mera-learn/progress-core/internal/bridge/fake"
	"github.com/mera-learn/progress-core/internal/orchestrator"
	"github.com/mera-learn/progress-core/internal/progress"
)

func newOrchestrator(t *testing.T, b *fake.Bridge) *orchestrator.Orchestrator {
	t.Helper()
	o, err := orchestrator.New(b, progress.SchemaVersion{Major: 1}, nil)
	require.NoError(t, err)
	return o
}

func TestOrchestrate_BothSucceeded(t *testing.T) {
	b := fake.New()
	o := newOrchestrator(t, b)

	outcome := o.Orchestrate(context.Background(), `{"ok":true}`, 1000, true)
	require.Equal(t, orchestrator.BothSucceeded, outcome)

	names, err := b.List(context.Background(), bridge.SinkLocal, "*lofp*")
	require.NoError(t, err)
	require.Empty(t, names, "offline files must be cleaned up after BothSucceeded (P7)")

	onNames, err := b.List(context.Background(), bridge.SinkLocal, "*lonp*")
	require.NoError(t, err)
	require.Len(t, onNames, 1)
}

func TestOrchestrate_PodDisallowed_OnlyLocalSucceeded(t *testing.T) {
	b := fake.New()
	o := newOrchestrator(t, b)

	outcome := o.Orchestrate(context.Background(), `{"ok":true}`, 2000, false)
	require.Equal(t, orchestrator.OnlyLocalSucceeded, outcome)

	names, err := b.List(context.Background(), bridge.SinkLocal, "*lofp*")
	require.NoError(t, err)
	require.Len(t, names, 1, "offline files must survive when pod stage was not attempted (P7)")
}

func TestOrchestrate_PodFails_OnlyLocalSucceeded(t *testing.T) {
	b := fake.New()
	b.FailSave = func(sink bridge.Sink, name string) error {
		if sink == bridge.SinkPod {
			return &bridge.Error{Sink: sink, Kind: bridge.KindNetwork}
		}
		return nil
	}
	o := newOrchestrator(t, b)

	outcome := o.Orchestrate(context.Background(), `{"ok":true}`, 3000, true)
	require.Equal(t, orchestrator.OnlyLocalSucceeded, outcome)
}

func TestOrchestrate_BothFailed(t *testing.T) {
	b := fake.New()
	b.FailSave = func(sink bridge.Sink, name string) error {
		return &bridge.Error{Sink: sink, Kind: bridge.KindStorage}
	}
	o := newOrchestrator(t, b)

	outcome := o.Orchestrate(context.Background(), `{"ok":true}`, 4000, true)
	require.Equal(t, orchestrator.BothFailed, outcome)
}

func TestOrchestrate_LocalOnlineFails_OnlySolidSucceeded(t *testing.T) {
	b := fake.New()
	calls := 0
	b.FailSave = func(sink bridge.Sink, name string) error {
		if sink != bridge.SinkLocal {
			return nil
		}
		calls++
		// Let the offline-local stage (first two local writes) succeed, fail
		// the online-local stage (last two).
		if calls > 2 {
			return &bridge.Error{Sink: sink, Kind: bridge.KindStorage}
		}
		return nil
	}
	o := newOrchestrator(t, b)

	outcome := o.Orchestrate(context.Background(), `{"ok":true}`, 5000, true)
	require.Equal(t, orchestrator.OnlySolidSucceeded, outcome)
}

func TestOrchestrate_VerifyMismatchDeletesFile(t *testing.T) {
	b := fake.New()
	b.Corrupt = func(sink bridge.Sink, name string, data []byte) []byte {
		if sink == bridge.SinkPod {
			return append(data, byte('x'))
		}
		return data
	}
	o := newOrchestrator(t, b)

	outcome := o.Orchestrate(context.Background(), `{"ok":true}`, 6000, true)
	require.Equal(t, orchestrator.OnlyLocalSucceeded, outcome)

	names, err := b.List(context.Background(), bridge.SinkPod, "*")
	require.NoError(t, err)
	require.Empty(t, names, "mismatched pod files must be deleted")
}
