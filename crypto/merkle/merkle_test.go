// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package merkle

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEmptyTree(t *testing.T) {
	tree := NewTree(nil)
	require.Equal(t, chainhash.Hash{}, tree.RootHash())
	require.Nil(t, tree.GenerateProof([]byte("anything")))
}

func TestSingleLeaf(t *testing.T) {
	tree := NewTree([][]byte{[]byte("leaf")})
	require.Equal(t, LeafHash([]byte("leaf")), tree.RootHash())

	proof := tree.GenerateProof([]byte("leaf"))
	require.NotNil(t, proof)
	require.Empty(t, proof.Steps)
	require.True(t, proof.Verify(tree.RootHash()))
}

func TestOddLeafPromotion(t *testing.T) {
	// Three leaves: the third is promoted, not paired with itself, so the
	// root must differ from a four-leaf tree with a duplicated tail.
	leaves := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	tree := NewTree(leaves)

	dup := NewTree([][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("c")})
	require.NotEqual(t, dup.RootHash(), tree.RootHash())

	expected := NodeHash(
		NodeHash(LeafHash([]byte("a")), LeafHash([]byte("b"))),
		LeafHash([]byte("c")),
	)
	require.Equal(t, expected, tree.RootHash())
}

func TestProofRejectsWrongRoot(t *testing.T) {
	tree := NewTree([][]byte{[]byte("a"), []byte("b")})
	proof := tree.GenerateProof([]byte("a"))
	require.NotNil(t, proof)

	var bogus chainhash.Hash
	bogus[0] = 0xff
	require.False(t, proof.Verify(bogus))
}

func TestAbsentLeaf(t *testing.T) {
	tree := NewTree([][]byte{[]byte("a"), []byte("b")})
	require.Nil(t, tree.GenerateProof([]byte("c")))
}

func TestTreeRoundTrip(t *testing.T) {
	tree := NewTree([][]byte{[]byte("a"), []byte("bb"), []byte("ccc")})

	var buf bytes.Buffer
	require.NoError(t, tree.Serialize(&buf))

	decoded, err := Deserialize(&buf)
	require.NoError(t, err)
	require.Equal(t, tree.RootHash(), decoded.RootHash())
	require.Equal(t, tree.Len(), decoded.Len())
}

func TestProofRoundTrip(t *testing.T) {
	tree := NewTree([][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d")})
	proof := tree.GenerateProof([]byte("c"))
	require.NotNil(t, proof)

	decoded, err := DeserializeProof(bytes.NewReader(proof.Bytes()))
	require.NoError(t, err)
	require.Equal(t, proof, decoded)
	require.True(t, decoded.Verify(tree.RootHash()))
}

// TestInclusionProperty verifies that every leaf of a random tree has a
// valid proof and that values outside the leaf set have none.
func TestInclusionProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		leaves := rapid.SliceOfN(
			rapid.SliceOfN(rapid.Byte(), 1, 64), 1, 32,
		).Draw(t, "leaves")

		tree := NewTree(leaves)
		root := tree.RootHash()

		for _, leaf := range leaves {
			proof := tree.GenerateProof(leaf)
			require.NotNil(t, proof)
			require.True(t, proof.Verify(root))
		}

		outside := append([]byte{0xfe}, []byte("not a member")...)
		member := false
		for _, leaf := range leaves {
			if bytes.Equal(leaf, outside) {
				member = true
			}
		}
		if !member {
			require.Nil(t, tree.GenerateProof(outside))
		}
	})
}
