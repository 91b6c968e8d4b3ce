// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package badgerbridge_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mera-learn/progress-core/internal/bridge"
	"github.com/mera-learn/progress-core/internal/bridge/badgerbridge"
)

func TestOpenInMemory_SaveLoadRoundTrip(t *testing.T) {
	b, err := badgerbridge.OpenInMemory()
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	require.NoError(t, b.Save(ctx, bridge.SinkLocal, "mera.1.0.0.sp.1000.json", []byte(`{"a":1}`)))

	data, err := b.Load(ctx, bridge.SinkLocal, "mera.1.0.0.sp.1000.json")
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, string(data))
}

func TestOpenWithPath_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	b1, err := badgerbridge.OpenWithPath(dir)
	require.NoError(t, err)
	require.NoError(t, b1.Save(context.Background(), bridge.SinkLocal, "persistent-key", []byte("persistent-value")))
	require.NoError(t, b1.Close())

	b2, err := badgerbridge.OpenWithPath(dir)
	require.NoError(t, err)
	defer b2.Close()

	data, err := b2.Load(context.Background(), bridge.SinkLocal, "persistent-key")
	require.NoError(t, err)
	require.Equal(t, "persistent-value", string(data))
}

func TestLoad_MissingKeyIsNotFound(t *testing.T) {
	b, err := badgerbridge.OpenInMemory()
	require.NoError(t, err)
	defer b.Close()

	_, err = b.Load(context.Background(), bridge.SinkLocal, "absent")
	require.Error(t, err)
	var bErr *bridge.Error
	require.ErrorAs(t, err, &bErr)
	require.Equal(t, bridge.KindNotFound, bErr.Kind)
}

func TestDelete_MissingKeyIsNotAnError(t *testing.T) {
	b, err := badgerbridge.OpenInMemory()
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Delete(context.Background(), bridge.SinkLocal, "never-existed"))
}

func TestList_MatchesGlob(t *testing.T) {
	b, err := badgerbridge.OpenInMemory()
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	require.NoError(t, b.Save(ctx, bridge.SinkLocal, "mera.1.0.0.sp.1000.json", nil))
	require.NoError(t, b.Save(ctx, bridge.SinkLocal, "mera.1.0.0.sd.1000.json", nil))
	require.NoError(t, b.Save(ctx, bridge.SinkLocal, "mera.1.0.0.lofp.2000.json", nil))

	names, err := b.List(ctx, bridge.SinkLocal, "*.sp.*.json")
	require.NoError(t, err)
	require.Equal(t, []string{"mera.1.0.0.sp.1000.json"}, names)
}
