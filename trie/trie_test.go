// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package trie

import (
	"fmt"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/veilchain/veil/crypto"
	"github.com/veilchain/veil/storage"
)

func key(s string) chainhash.Hash {
	return crypto.TxidHash([]byte(s))
}

func TestInsertGet(t *testing.T) {
	tr := New(storage.NewMemStore())

	root, err := tr.Insert(nil,
		[]chainhash.Hash{key("alice"), key("bob")},
		[][]byte{[]byte("1"), []byte("2")},
	)
	require.NoError(t, err)
	require.NotEqual(t, EmptyRoot, root)

	value, err := tr.Get(root, key("alice"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), value)

	value, err = tr.Get(root, key("bob"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), value)

	_, err = tr.Get(root, key("carol"))
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestOldRootRemainsReadable(t *testing.T) {
	tr := New(storage.NewMemStore())

	root1, err := tr.Insert(nil, []chainhash.Hash{key("a")}, [][]byte{[]byte("old")})
	require.NoError(t, err)

	root2, err := tr.Insert(&root1, []chainhash.Hash{key("a")}, [][]byte{[]byte("new")})
	require.NoError(t, err)
	require.NotEqual(t, root1, root2)

	value, err := tr.Get(root1, key("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("old"), value)

	value, err = tr.Get(root2, key("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("new"), value)
}

func TestEmptyBatchKeepsRoot(t *testing.T) {
	tr := New(storage.NewMemStore())

	root, err := tr.Insert(nil, nil, nil)
	require.NoError(t, err)
	require.Equal(t, EmptyRoot, root)

	root1, err := tr.Insert(nil, []chainhash.Hash{key("a")}, [][]byte{[]byte("1")})
	require.NoError(t, err)

	root2, err := tr.Insert(&root1, nil, nil)
	require.NoError(t, err)
	require.Equal(t, root1, root2)
}

func TestBatchMismatch(t *testing.T) {
	tr := New(storage.NewMemStore())
	_, err := tr.Insert(nil, []chainhash.Hash{key("a")}, nil)
	require.ErrorIs(t, err, ErrBatchMismatch)
}

func TestDeterministicRoots(t *testing.T) {
	// The same logical batch, presented in different orders, must produce
	// byte-identical roots on independent stores.
	keys := make([]chainhash.Hash, 16)
	values := make([][]byte, 16)
	for i := range keys {
		keys[i] = key(fmt.Sprintf("account-%d", i))
		values[i] = []byte(fmt.Sprintf("value-%d", i))
	}

	tr1 := New(storage.NewMemStore())
	root1, err := tr1.Insert(nil, keys, values)
	require.NoError(t, err)

	revKeys := make([]chainhash.Hash, len(keys))
	revValues := make([][]byte, len(values))
	for i := range keys {
		revKeys[len(keys)-1-i] = keys[i]
		revValues[len(values)-1-i] = values[i]
	}

	tr2 := New(storage.NewMemStore())
	root2, err := tr2.Insert(nil, revKeys, revValues)
	require.NoError(t, err)

	require.Equal(t, root1, root2)
}

// TestCommutingBatchesProperty verifies that splitting a batch of disjoint
// keys into two sequential inserts yields the same root as one insert,
// regardless of the split point.
func TestCommutingBatchesProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 24).Draw(t, "n")
		keys := make([]chainhash.Hash, n)
		values := make([][]byte, n)
		seen := make(map[chainhash.Hash]bool)
		for i := 0; i < n; i++ {
			k := key(fmt.Sprintf("k%d", rapid.IntRange(0, 1000).Draw(t, "key")))
			for seen[k] {
				k = crypto.TxidHash(k[:])
			}
			seen[k] = true
			keys[i] = k
			values[i] = []byte(fmt.Sprintf("v%d", i))
		}

		whole := New(storage.NewMemStore())
		wholeRoot, err := whole.Insert(nil, keys, values)
		require.NoError(t, err)

		split := rapid.IntRange(0, n).Draw(t, "split")
		parts := New(storage.NewMemStore())
		firstRoot, err := parts.Insert(nil, keys[:split], values[:split])
		require.NoError(t, err)
		secondRoot, err := parts.Insert(&firstRoot, keys[split:], values[split:])
		require.NoError(t, err)

		require.Equal(t, wholeRoot, secondRoot)

		for i, k := range keys {
			got, err := parts.Get(secondRoot, k)
			require.NoError(t, err)
			require.Equal(t, values[i], got)
		}
	})
}
