// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package savemanager_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mera-learn/progress-core/internal/bridge"
	"github.com/mera-learn/progress-core/internal/bridge/fake"
	"github.com/mera-learn/progress-core/internal/orchestrator"
	"github.com/mera-learn/progress-core/internal/progress"
	"github.com/mera-learn/progress-core/internal/savemanager"
)

type recordingReporter struct {
	calls []string
}

func (r *recordingReporter) ReportCritical(kind string, err error) {
	r.calls = append(r.calls, kind)
}

func newManager(t *testing.T, b *fake.Bridge, reporter savemanager.UIErrorReporter) *savemanager.Manager {
	t.Helper()
	o, err := orchestrator.New(b, progress.SchemaVersion{Major: 1}, nil)
	require.NoError(t, err)
	return savemanager.New(o, b, reporter, nil)
}

func TestManager_QueueAndRunNow_BothSucceeded(t *testing.T) {
	b := fake.New()
	m := newManager(t, b, nil)

	m.QueueSave(`{"ok":true}`, true)
	m.RunNow(context.Background())

	require.Equal(t, orchestrator.BothSucceeded, m.LastOutcome())
	require.True(t, m.GetOnlineStatus())
}

func TestManager_NoQueuedSave_NoOp(t *testing.T) {
	b := fake.New()
	m := newManager(t, b, nil)

	m.RunNow(context.Background())
	require.Equal(t, orchestrator.BothSucceeded, m.LastOutcome())

	names, err := b.List(context.Background(), bridge.SinkPod, "*")
	require.NoError(t, err)
	require.Empty(t, names)
}

func TestManager_ConcurrentSessionDetected_RaisesCriticalOnce(t *testing.T) {
	b := fake.New()
	reporter := &recordingReporter{}
	m := newManager(t, b, reporter)

	// Simulate a concurrent writer: overwrite the session file underneath
	// the manager right after its own write.
	first := true
	b.FailLoad = func(sink bridge.Sink, name string) error {
		if sink == bridge.SinkPod && name == savemanager.SessionPath && first {
			first = false
			_ = b.Save(context.Background(), bridge.SinkPod, name, []byte(`{"sessionId":"someone-else"}`))
		}
		return nil
	}

	m.QueueSave(`{"ok":true}`, true)
	m.RunNow(context.Background())

	require.Equal(t, orchestrator.BothFailed, m.LastOutcome())
	require.False(t, m.GetOnlineStatus())
	require.Equal(t, []string{"concurrent-session"}, reporter.calls)

	m.QueueSave(`{"ok":true}`, true)
	m.RunNow(context.Background())
	require.Len(t, reporter.calls, 1, "at most one modal per process lifetime")
}

func TestManager_RetriesUntilPodConfirmed(t *testing.T) {
	b := fake.New()
	failPod := true
	b.FailSave = func(sink bridge.Sink, name string) error {
		if sink == bridge.SinkPod && name != savemanager.SessionPath && failPod {
			return &bridge.Error{Sink: sink, Kind: bridge.KindNetwork}
		}
		return nil
	}
	m := newManager(t, b, nil)

	m.QueueSave(`{"ok":true}`, true)
	m.RunNow(context.Background())
	require.Equal(t, orchestrator.OnlyLocalSucceeded, m.LastOutcome())

	// hasChanged is now false, but lastOutcome forces a retry on next tick.
	failPod = false
	m.RunNow(context.Background())
	require.Equal(t, orchestrator.BothSucceeded, m.LastOutcome())
}
