// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package gcsbridge implements the Pod sink's bridge.Bridge against Google
// Cloud Storage: one storage.Client, object names scoped under a per-user
// prefix, with an outbound rate limiter guarding against a bursty caller
// (the orchestrator's parallel primary/duplicate writes) tripping GCS's
// own throttling.
package gcsbridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"golang.org/x/time/rate"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/mera-learn/progress-core/internal/bridge"
)

// Bridge addresses one bucket, scoping every object name under a per-webId
// prefix so multiple learners' backups never collide in the same bucket.
type Bridge struct {
	client     *storage.Client
	bucketName string
	prefix     string
	limiter    *rate.Limiter
}

var _ bridge.Bridge = (*Bridge)(nil)

// settings accumulates New's options before the storage.Client is built.
type settings struct {
	credsPath         string
	requestsPerSecond float64
	burst             int
}

// Option configures New.
type Option func(*settings)

// WithCredentialsFile points the underlying storage.Client at a service
// account key.
func WithCredentialsFile(path string) Option {
	return func(s *settings) { s.credsPath = path }
}

// WithRateLimit bounds outbound calls per second with the given burst,
// guarding GCS from the orchestrator's concurrent primary/duplicate writes.
func WithRateLimit(requestsPerSecond float64, burst int) Option {
	return func(s *settings) {
		s.requestsPerSecond = requestsPerSecond
		s.burst = burst
	}
}

// New constructs a gcsbridge.Bridge for bucketName, scoping every object
// under prefix (typically the learner's webId, hashed or escaped by the
// caller).
func New(ctx context.Context, bucketName, prefix string, opts ...Option) (*Bridge, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	var clientOpts []option.ClientOption
	if s.credsPath != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(s.credsPath))
	}
	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("gcsbridge: creating storage client: %w", err)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if s.requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.requestsPerSecond), s.burst)
	}

	return &Bridge{client: client, bucketName: bucketName, prefix: prefix, limiter: limiter}, nil
}

func (b *Bridge) objectName(name string) string {
	return strings.TrimSuffix(b.prefix, "/") + "/" + name
}

func (b *Bridge) wait(ctx context.Context) error {
	return b.limiter.Wait(ctx)
}

// Save writes data under name, replacing any existing object.
func (b *Bridge) Save(ctx context.Context, sink bridge.Sink, name string, data []byte) error {
	if err := b.wait(ctx); err != nil {
		return &bridge.Error{Sink: sink, Op: "save", Kind: bridge.KindNetwork, Err: err}
	}
	obj := b.client.Bucket(b.bucketName).Object(b.objectName(name))
	w := obj.NewWriter(ctx)
	w.ContentType = "application/json"
	w.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		w.Close()
		return &bridge.Error{Sink: sink, Op: "save", Kind: bridge.KindStorage, Err: err}
	}
	if err := w.Close(); err != nil {
		return &bridge.Error{Sink: sink, Op: "save", Kind: bridge.KindStorage, Err: err}
	}
	return nil
}

// Load reads the bytes stored under name.
func (b *Bridge) Load(ctx context.Context, sink bridge.Sink, name string) ([]byte, error) {
	if err := b.wait(ctx); err != nil {
		return nil, &bridge.Error{Sink: sink, Op: "load", Kind: bridge.KindNetwork, Err: err}
	}
	r, err := b.client.Bucket(b.bucketName).Object(b.objectName(name)).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, &bridge.Error{Sink: sink, Op: "load", Kind: bridge.KindNotFound, Err: err}
		}
		return nil, &bridge.Error{Sink: sink, Op: "load", Kind: bridge.KindStorage, Err: err}
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &bridge.Error{Sink: sink, Op: "load", Kind: bridge.KindStorage, Err: err}
	}
	return data, nil
}

// Delete removes the named object. Deleting a missing name is not an error.
func (b *Bridge) Delete(ctx context.Context, sink bridge.Sink, name string) error {
	if err := b.wait(ctx); err != nil {
		return &bridge.Error{Sink: sink, Op: "delete", Kind: bridge.KindNetwork, Err: err}
	}
	err := b.client.Bucket(b.bucketName).Object(b.objectName(name)).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return &bridge.Error{Sink: sink, Op: "delete", Kind: bridge.KindStorage, Err: err}
	}
	return nil
}

// List returns every object name under the prefix matching glob.
func (b *Bridge) List(ctx context.Context, sink bridge.Sink, glob string) ([]string, error) {
	if err := b.wait(ctx); err != nil {
		return nil, &bridge.Error{Sink: sink, Op: "list", Kind: bridge.KindNetwork, Err: err}
	}
	it := b.client.Bucket(b.bucketName).Objects(ctx, &storage.Query{Prefix: b.prefix + "/"})
	var out []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, &bridge.Error{Sink: sink, Op: "list", Kind: bridge.KindStorage, Err: err}
		}
		name := strings.TrimPrefix(attrs.Name, b.prefix+"/")
		if bridge.MatchGlob(glob, name) {
			out = append(out, name)
		}
	}
	return out, nil
}

// Close releases the underlying storage client.
func (b *Bridge) Close() error {
	return b.client.Close()
}
