// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package savemanager

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mera-learn/progress-core/internal/bridge"
	"github.com/mera-learn/progress-core/internal/metrics"
)

// SessionPath is the fixed Pod path of the session-protection file (§3).
const SessionPath = "mera.session.json"

// TripwireResult is the outcome of one concurrent-session tripwire check
// (§4.3.1).
type TripwireResult int

const (
	Passed TripwireResult = iota
	ConcurrentSessionDetected
	InitializationFailed
	NetworkError
)

func (r TripwireResult) String() string {
	switch r {
	case Passed:
		return "passed"
	case ConcurrentSessionDetected:
		return "concurrent_session_detected"
	case InitializationFailed:
		return "initialization_failed"
	case NetworkError:
		return "network_error"
	default:
		return "unknown"
	}
}

type sessionFile struct {
	SessionID string `json:"sessionId"`
}

var backoffScheduleMS = []int{50, 100, 200, 400, 800}

// generateSessionID returns 128 random bits as hex, per §4.3.1 step 1.
func generateSessionID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("savemanager: generating session id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// tripwire holds the first-call/subsequent-call state machine for §4.3.1.
// sleepFn is overridable in tests so the 50ms window doesn't slow
// the suite down and so races can be simulated deterministically.
type tripwire struct {
	bridge    bridge.Bridge
	sessionID string
	sleepFn   func(time.Duration)

	// poisoned latches true once this process has lost the race. Per P8, a
	// process that has observed a concurrent session makes no further Pod
	// writes for the remainder of its lifetime, so every later Check must
	// keep returning ConcurrentSessionDetected rather than re-initializing.
	poisoned bool
}

func newTripwire(b bridge.Bridge) *tripwire {
	return &tripwire{bridge: b, sleepFn: time.Sleep}
}

// Check runs the tripwire protocol: first call in the process lifetime
// initializes and races for the session file; every subsequent call just
// reads it back.
func (t *tripwire) Check(ctx context.Context) TripwireResult {
	if t.poisoned {
		return ConcurrentSessionDetected
	}

	var result TripwireResult
	if t.sessionID == "" {
		result = t.initialize(ctx)
	} else {
		result = t.verify(ctx)
	}
	if result == ConcurrentSessionDetected {
		t.poisoned = true
	}
	metrics.TripwireResultTotal.WithLabelValues(result.String()).Inc()
	return result
}

func (t *tripwire) initialize(ctx context.Context) TripwireResult {
	id, err := generateSessionID()
	if err != nil {
		return InitializationFailed
	}

	payload, err := json.Marshal(sessionFile{SessionID: id})
	if err != nil {
		return InitializationFailed
	}

	if !t.writeWithBackoff(ctx, payload) {
		return InitializationFailed
	}

	t.sleepFn(50 * time.Millisecond)

	raw, err := t.bridge.Load(ctx, bridge.SinkPod, SessionPath)
	if err != nil {
		return InitializationFailed
	}
	var onDisk sessionFile
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		return InitializationFailed
	}
	if onDisk.SessionID != id {
		return ConcurrentSessionDetected
	}

	t.sessionID = id
	return Passed
}

func (t *tripwire) writeWithBackoff(ctx context.Context, payload []byte) bool {
	for attempt := 0; attempt < len(backoffScheduleMS); attempt++ {
		if err := t.bridge.Save(ctx, bridge.SinkPod, SessionPath, payload); err == nil {
			return true
		}
		t.sleepFn(time.Duration(backoffScheduleMS[attempt]) * time.Millisecond)
	}
	return false
}

func (t *tripwire) verify(ctx context.Context) TripwireResult {
	raw, err := t.bridge.Load(ctx, bridge.SinkPod, SessionPath)
	if err != nil {
		return NetworkError
	}
	var onDisk sessionFile
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		return NetworkError
	}
	if onDisk.SessionID != t.sessionID {
		return ConcurrentSessionDetected
	}
	return Passed
}
