// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package badgerbridge implements the Local sink's bridge.Bridge on top of
// an embedded Badger key-value store: OpenInMemory/OpenWithPath
// constructors, db.Update/db.View transactions per operation.
package badgerbridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/mera-learn/progress-core/internal/bridge"
)

// Bridge stores every object as a single Badger key, with no directory
// structure: List does a prefix-free full scan and filters with
// bridge.MatchGlob, matching the flat namespace bridge.Bridge assumes.
type Bridge struct {
	db *badger.DB
}

var _ bridge.Bridge = (*Bridge)(nil)

// OpenInMemory opens a Badger database with no on-disk footprint, for tests
// and for environments (in-browser WASM, ephemeral containers) with no
// durable filesystem.
func OpenInMemory() (*Bridge, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerbridge: opening in-memory db: %w", err)
	}
	return &Bridge{db: db}, nil
}

// OpenWithPath opens (or creates) a Badger database rooted at dir.
func OpenWithPath(dir string) (*Bridge, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerbridge: opening db at %s: %w", dir, err)
	}
	return &Bridge{db: db}, nil
}

// Close releases the underlying Badger database.
func (b *Bridge) Close() error {
	return b.db.Close()
}

func key(name string) []byte { return []byte(name) }

// Save writes data under name, replacing any existing value.
func (b *Bridge) Save(_ context.Context, sink bridge.Sink, name string, data []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(name), data)
	})
	if err != nil {
		return &bridge.Error{Sink: sink, Op: "save", Kind: bridge.KindStorage, Err: err}
	}
	return nil
}

// Load reads the bytes stored under name.
func (b *Bridge) Load(_ context.Context, sink bridge.Sink, name string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte(nil), val...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, &bridge.Error{Sink: sink, Op: "load", Kind: bridge.KindNotFound, Err: err}
	}
	if err != nil {
		return nil, &bridge.Error{Sink: sink, Op: "load", Kind: bridge.KindStorage, Err: err}
	}
	return out, nil
}

// Delete removes the named key. Deleting a missing key is not an error.
func (b *Bridge) Delete(_ context.Context, sink bridge.Sink, name string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(key(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return &bridge.Error{Sink: sink, Op: "delete", Kind: bridge.KindStorage, Err: err}
	}
	return nil
}

// List returns every key matching glob via a full key-space scan.
func (b *Bridge) List(_ context.Context, sink bridge.Sink, glob string) ([]string, error) {
	var out []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			name := string(it.Item().KeyCopy(nil))
			if bridge.MatchGlob(glob, name) {
				out = append(out, name)
			}
		}
		return nil
	})
	if err != nil {
		return nil, &bridge.Error{Sink: sink, Op: "list", Kind: bridge.KindStorage, Err: err}
	}
	return out, nil
}
