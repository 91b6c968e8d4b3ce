// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package fake provides an in-memory Storage Bridge for deterministic unit
// tests of the orchestrator, save manager, cleaner, and loader: a
// hand-written fake rather than a mocking framework.
package fake

import (
	"context"
	"sync"

	"github.com/mera-learn/progress-core/internal/bridge"
)

// Bridge is an in-memory, error-injectable implementation of bridge.Bridge.
// Safe for concurrent use; every method takes the same lock so tests can
// reason about ordering.
type Bridge struct {
	mu   sync.Mutex
	data map[bridge.Sink]map[string][]byte

	// FailSave/FailLoad/FailDelete/FailList, when non-nil, are consulted
	// before the corresponding real operation; returning a non-nil error
	// causes the operation to fail with that error instead of touching
	// the backing store. This is how tests simulate a sink being down.
	// FailLoad is called before Load takes the lock, so it may call back
	// into the bridge (e.g. Save) to simulate a concurrent writer.
	FailSave   func(sink bridge.Sink, name string) error
	FailLoad   func(sink bridge.Sink, name string) error
	FailDelete func(sink bridge.Sink, name string) error
	FailList   func(sink bridge.Sink, glob string) error

	// Corrupt, when non-nil, is applied to the bytes returned by every
	// successful Load, simulating a
	// sink that silently re-encodes or truncates content (§4.2).
	Corrupt func(sink bridge.Sink, name string, data []byte) []byte
}

// New returns an empty fake bridge with both sinks initialized.
func New() *Bridge {
	return &Bridge{
		data: map[bridge.Sink]map[string][]byte{
			bridge.SinkPod:   {},
			bridge.SinkLocal: {},
		},
	}
}

func (b *Bridge) Save(_ context.Context, sink bridge.Sink, name string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.FailSave != nil {
		if err := b.FailSave(sink, name); err != nil {
			return err
		}
	}

	stored := make([]byte, len(data))
	copy(stored, data)
	b.data[sink][name] = stored
	return nil
}

func (b *Bridge) Load(_ context.Context, sink bridge.Sink, name string) ([]byte, error) {
	if b.FailLoad != nil {
		if err := b.FailLoad(sink, name); err != nil {
			return nil, err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	stored, ok := b.data[sink][name]
	if !ok {
		return nil, &bridge.Error{Sink: sink, Op: "load", Kind: bridge.KindNotFound, Err: errNotFound(name)}
	}

	out := make([]byte, len(stored))
	copy(out, stored)
	if b.Corrupt != nil {
		out = b.Corrupt(sink, name, out)
	}
	return out, nil
}

func (b *Bridge) Delete(_ context.Context, sink bridge.Sink, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.FailDelete != nil {
		if err := b.FailDelete(sink, name); err != nil {
			return err
		}
	}

	delete(b.data[sink], name)
	return nil
}

func (b *Bridge) List(_ context.Context, sink bridge.Sink, glob string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.FailList != nil {
		if err := b.FailList(sink, glob); err != nil {
			return nil, err
		}
	}

	var names []string
	for name := range b.data[sink] {
		if bridge.MatchGlob(glob, name) {
			names = append(names, name)
		}
	}
	return names, nil
}

// Peek returns the raw bytes stored for name without going through Load's
// failure/corruption hooks. Tests use this to assert on what was actually
// persisted.
func (b *Bridge) Peek(sink bridge.Sink, name string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[sink][name]
	return v, ok
}

type notFoundError string

func (e notFoundError) Error() string { return "fake bridge: " + string(e) + " not found" }

func errNotFound(name string) error { return notFoundError(name) }

var _ bridge.Bridge = (*Bridge)(nil)
