// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package bridge

import "context"

// Router composes two single-purpose Bridge implementations, one that
// actually only ever sees SinkLocal traffic, one that only ever sees
// SinkPod traffic, into the single two-sink Bridge the rest of the core
// is written against. This is how cmd/progressd wires badgerbridge (Local)
// and gcsbridge (Pod) together: neither backend package needs to know the
// other sink exists.
type Router struct {
	Local Bridge
	Pod   Bridge
}

var _ Bridge = (*Router)(nil)

func (r *Router) backendFor(sink Sink) Bridge {
	if sink == SinkLocal {
		return r.Local
	}
	return r.Pod
}

func (r *Router) Save(ctx context.Context, sink Sink, name string, data []byte) error {
	return r.backendFor(sink).Save(ctx, sink, name, data)
}

func (r *Router) Load(ctx context.Context, sink Sink, name string) ([]byte, error) {
	return r.backendFor(sink).Load(ctx, sink, name)
}

func (r *Router) Delete(ctx context.Context, sink Sink, name string) error {
	return r.backendFor(sink).Delete(ctx, sink, name)
}

func (r *Router) List(ctx context.Context, sink Sink, glob string) ([]string, error) {
	return r.backendFor(sink).List(ctx, sink, glob)
}
