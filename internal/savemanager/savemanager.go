// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package savemanager implements the Save Manager (H, §4.3): a singleton
// poll scheduler that drives the Save Orchestrator, carries the retry/
// backoff state machine, and owns the concurrent-session tripwire. The
// scheduler loop is a ticker + done-channel pattern: Start/Stop/RunNow
// around a runLoop goroutine.
package savemanager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mera-learn/progress-core/internal/bridge"
	"github.com/mera-learn/progress-core/internal/metrics"
	"github.com/mera-learn/progress-core/internal/orchestrator"
	"github.com/mera-learn/progress-core/pkg/logging"
)

// PollInterval is the cooperative poll tick of §4.3.
const PollInterval = 50 * time.Millisecond

// UIErrorReporter is the out-of-scope UI collaborator (§6) that surfaces at
// most one modal per process lifetime for a fatal condition.
type UIErrorReporter interface {
	ReportCritical(kind string, err error)
}

type nopReporter struct{}

func (nopReporter) ReportCritical(string, error) {}

// Manager is the Save Manager singleton. Exactly one should be constructed
// per process; Start runs for the process lifetime.
type Manager struct {
	orchestrator *orchestrator.Orchestrator
	tripwire     *tripwire
	reporter     UIErrorReporter
	log          *logging.Logger
	clock        func() int64

	done    chan struct{}
	mu      sync.Mutex
	running bool

	saveInProgress bool
	lastOutcome    orchestrator.SaveOutcome
	queuedJSON     *string
	hasChanged     bool
	criticalRaised bool
}

// New constructs a Save Manager driving o with the given session bridge.
func New(o *orchestrator.Orchestrator, sessionBridge bridge.Bridge, reporter UIErrorReporter, log *logging.Logger) *Manager {
	if reporter == nil {
		reporter = nopReporter{}
	}
	if log == nil {
		log = logging.Default()
	}
	return &Manager{
		orchestrator: o,
		tripwire:     newTripwire(sessionBridge),
		reporter:     reporter,
		log:          log,
		clock:        func() int64 { return time.Now().UnixMilli() },
		lastOutcome:  orchestrator.BothSucceeded, // optimistic initial state, §4.3
		done:         make(chan struct{}),
	}
}

// QueueSave implements queueSave(json, hasChanged): non-blocking, returns
// immediately (§4.3).
func (m *Manager) QueueSave(json string, hasChanged bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queuedJSON = &json
	m.hasChanged = m.hasChanged || hasChanged
}

// GetOnlineStatus implements getOnlineStatus() (§4.3).
func (m *Manager) GetOnlineStatus() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastOutcome == orchestrator.BothSucceeded || m.lastOutcome == orchestrator.OnlySolidSucceeded
}

// LastOutcome returns the most recently recorded SaveOutcome, for status
// reporting.
func (m *Manager) LastOutcome() orchestrator.SaveOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastOutcome
}

// Start begins the 50ms poll loop. Returns an error if already running.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("savemanager: already running")
	}
	m.running = true
	m.done = make(chan struct{})
	m.mu.Unlock()

	m.log.Info("save manager starting", "poll_interval_ms", PollInterval.Milliseconds())
	go m.runLoop(ctx)
	return nil
}

// Stop signals the poll loop to exit. Safe to call multiple times.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	close(m.done)
	m.running = false
}

func (m *Manager) runLoop(ctx context.Context) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// RunNow forces one poll tick immediately, bypassing the ticker. Used by
// tests; no progressd command calls it.
func (m *Manager) RunNow(ctx context.Context) {
	m.tick(ctx)
}

// tick implements the poll-tick algorithm of §4.3.
func (m *Manager) tick(ctx context.Context) {
	m.mu.Lock()
	if m.queuedJSON == nil || m.saveInProgress {
		m.mu.Unlock()
		return
	}

	shouldTrigger := m.hasChanged ||
		m.lastOutcome == orchestrator.BothFailed ||
		m.lastOutcome == orchestrator.OnlyLocalSucceeded
	if !shouldTrigger {
		m.mu.Unlock()
		return
	}

	m.saveInProgress = true
	m.hasChanged = false
	snapshot := *m.queuedJSON
	ts := m.clock()
	m.mu.Unlock()

	check := m.tripwire.Check(ctx)

	switch check {
	case ConcurrentSessionDetected:
		m.raiseCritical("concurrent-session", fmt.Errorf("savemanager: %s", check))
		m.finishTick(orchestrator.BothFailed)
		return
	case InitializationFailed:
		m.raiseCritical("save-orchestration-init-failure", fmt.Errorf("savemanager: %s", check))
		m.finishTick(orchestrator.BothFailed)
		return
	}

	allowPod := check == Passed
	outcome := m.orchestrator.Orchestrate(ctx, snapshot, ts, allowPod)

	if outcome == orchestrator.OnlySolidSucceeded {
		m.log.Warn("save manager: local write failed, degraded offline mode", "outcome", outcome.String())
	}

	m.finishTick(outcome)
}

func (m *Manager) finishTick(outcome orchestrator.SaveOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastOutcome = outcome
	m.saveInProgress = false
}

// raiseCritical surfaces at most one modal per process lifetime (§7).
func (m *Manager) raiseCritical(kind string, err error) {
	m.mu.Lock()
	already := m.criticalRaised
	m.criticalRaised = true
	m.mu.Unlock()

	if already {
		m.log.Debug("save manager: suppressing repeat critical error", "kind", kind)
		return
	}
	metrics.CriticalErrorsRaisedTotal.Inc()
	m.reporter.ReportCritical(kind, err)
}
