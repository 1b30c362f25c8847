// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// openStores returns one store of each implementation, closed on cleanup.
func openStores(t *testing.T) map[string]Store {
	t.Helper()

	level, err := OpenLevelStore(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)

	stores := map[string]Store{
		"leveldb": level,
		"memory":  NewMemStore(),
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func TestGetPutRoundTrip(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(ColBodies, []byte("missing"))
			require.ErrorIs(t, err, ErrNotFound)

			batch := store.NewBatch()
			batch.Put(ColBodies, []byte("k"), []byte("body"))
			batch.Put(ColWitness, []byte("k"), []byte("witness"))
			require.NoError(t, store.Write(batch))

			value, err := store.Get(ColBodies, []byte("k"))
			require.NoError(t, err)
			require.Equal(t, []byte("body"), value)

			// Columns partition the key space.
			value, err = store.Get(ColWitness, []byte("k"))
			require.NoError(t, err)
			require.Equal(t, []byte("witness"), value)

			_, err = store.Get(ColTxMeta, []byte("k"))
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestBatchDelete(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			batch := store.NewBatch()
			batch.Put(ColExtra, []byte("a"), []byte("1"))
			require.NoError(t, store.Write(batch))

			batch = store.NewBatch()
			batch.Delete(ColExtra, []byte("a"))
			batch.Put(ColExtra, []byte("b"), []byte("2"))
			require.NoError(t, store.Write(batch))

			_, err := store.Get(ColExtra, []byte("a"))
			require.ErrorIs(t, err, ErrNotFound)

			ok, err := store.Has(ColExtra, []byte("b"))
			require.NoError(t, err)
			require.True(t, ok)
		})
	}
}

func TestInvalidColumn(t *testing.T) {
	store := NewMemStore()
	_, err := store.Get(numColumns, []byte("k"))
	require.ErrorIs(t, err, ErrInvalidColumn)
}
