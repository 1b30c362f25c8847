// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package merkle builds binary hash trees over opaque encoded leaves and
// produces position-encoded inclusion proofs that can be verified with
// nothing but the root, the leaf, and the proof itself.
//
// Leaf and interior hashing are domain separated so a leaf can never be
// reinterpreted as an interior node. A level with an odd number of nodes
// promotes its last node unchanged instead of pairing it with itself, so a
// root uniquely determines the leaf sequence.
package merkle

import (
	"bytes"
	"errors"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/veilchain/veil/crypto"
)

const (
	leafPrefix = 0x00
	nodePrefix = 0x01
)

var (
	// ErrCorruptTree is returned when deserializing a malformed tree blob.
	ErrCorruptTree = errors.New("merkle: corrupt tree encoding")

	// ErrCorruptProof is returned when deserializing a malformed proof.
	ErrCorruptProof = errors.New("merkle: corrupt proof encoding")
)

// LeafHash hashes an encoded leaf value.
func LeafHash(leaf []byte) chainhash.Hash {
	buf := make([]byte, 0, len(leaf)+1)
	buf = append(buf, leafPrefix)
	buf = append(buf, leaf...)
	return crypto.TxidHash(buf)
}

// NodeHash hashes the concatenation of two child hashes.
func NodeHash(left, right chainhash.Hash) chainhash.Hash {
	var buf [1 + 2*chainhash.HashSize]byte
	buf[0] = nodePrefix
	copy(buf[1:], left[:])
	copy(buf[1+chainhash.HashSize:], right[:])
	return crypto.TxidHash(buf[:])
}

// Tree is a binary hash tree over a sequence of encoded leaves.
type Tree struct {
	leaves [][]byte
	levels [][]chainhash.Hash
}

// NewTree builds a tree over the given leaves. The leaf order is
// significant; identical leaf sequences produce identical roots.
func NewTree(leaves [][]byte) *Tree {
	t := &Tree{leaves: make([][]byte, len(leaves))}
	for i, leaf := range leaves {
		t.leaves[i] = append([]byte(nil), leaf...)
	}
	t.build()
	return t
}

func (t *Tree) build() {
	if len(t.leaves) == 0 {
		t.levels = nil
		return
	}

	level := make([]chainhash.Hash, len(t.leaves))
	for i, leaf := range t.leaves {
		level[i] = LeafHash(leaf)
	}
	t.levels = [][]chainhash.Hash{level}

	for len(level) > 1 {
		next := make([]chainhash.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, NodeHash(level[i], level[i+1]))
			} else {
				// Odd node is promoted unchanged.
				next = append(next, level[i])
			}
		}
		t.levels = append(t.levels, next)
		level = next
	}
}

// RootHash returns the root of the tree. The root of an empty tree is the
// zero hash.
func (t *Tree) RootHash() chainhash.Hash {
	if len(t.levels) == 0 {
		return chainhash.Hash{}
	}
	return t.levels[len(t.levels)-1][0]
}

// Len returns the number of leaves.
func (t *Tree) Len() int {
	return len(t.leaves)
}

// ProofStep is one sibling on the path from a leaf to the root. Left
// indicates the sibling sits to the left of the running hash.
type ProofStep struct {
	Hash chainhash.Hash
	Left bool
}

// Proof is a position-encoded inclusion proof for a single leaf.
type Proof struct {
	Leaf  []byte
	Steps []ProofStep
}

// GenerateProof returns an inclusion proof for the first occurrence of the
// given leaf value, or nil if the leaf is not part of the tree.
func (t *Tree) GenerateProof(leaf []byte) *Proof {
	if len(t.levels) == 0 {
		return nil
	}

	target := LeafHash(leaf)
	idx := -1
	for i, h := range t.levels[0] {
		if h == target {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil
	}

	proof := &Proof{Leaf: append([]byte(nil), leaf...)}
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := idx ^ 1
		if sibling < len(level) {
			proof.Steps = append(proof.Steps, ProofStep{
				Hash: level[sibling],
				Left: sibling < idx,
			})
		}
		idx /= 2
	}
	return proof
}

// Verify recomputes the root from the proof's leaf and path and compares it
// against the expected root.
func (p *Proof) Verify(root chainhash.Hash) bool {
	h := LeafHash(p.Leaf)
	for _, step := range p.Steps {
		if step.Left {
			h = NodeHash(step.Hash, h)
		} else {
			h = NodeHash(h, step.Hash)
		}
	}
	return h == root
}

// Serialize writes the tree's leaves in canonical form: a little-endian
// uint32 leaf count followed by length-prefixed leaf values.
func (t *Tree) Serialize(w io.Writer) error {
	if err := writeUint32(w, uint32(len(t.leaves))); err != nil {
		return err
	}
	for _, leaf := range t.leaves {
		if err := writeVarBytes(w, leaf); err != nil {
			return err
		}
	}
	return nil
}

// Bytes returns the canonical serialization of the tree.
func (t *Tree) Bytes() []byte {
	var buf bytes.Buffer
	_ = t.Serialize(&buf)
	return buf.Bytes()
}

// Deserialize reads a tree written by Serialize and rebuilds its levels.
func Deserialize(r io.Reader) (*Tree, error) {
	count, err := readUint32(r)
	if err != nil {
		return nil, ErrCorruptTree
	}
	leaves := make([][]byte, count)
	for i := range leaves {
		leaves[i], err = readVarBytes(r)
		if err != nil {
			return nil, ErrCorruptTree
		}
	}
	return NewTree(leaves), nil
}

// Serialize writes the proof in canonical form.
func (p *Proof) Serialize(w io.Writer) error {
	if err := writeVarBytes(w, p.Leaf); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(len(p.Steps))); err != nil {
		return err
	}
	for _, step := range p.Steps {
		if _, err := w.Write(step.Hash[:]); err != nil {
			return err
		}
		side := byte(0)
		if step.Left {
			side = 1
		}
		if _, err := w.Write([]byte{side}); err != nil {
			return err
		}
	}
	return nil
}

// Bytes returns the canonical serialization of the proof.
func (p *Proof) Bytes() []byte {
	var buf bytes.Buffer
	_ = p.Serialize(&buf)
	return buf.Bytes()
}

// DeserializeProof reads a proof written by Proof.Serialize.
func DeserializeProof(r io.Reader) (*Proof, error) {
	leaf, err := readVarBytes(r)
	if err != nil {
		return nil, ErrCorruptProof
	}
	count, err := readUint32(r)
	if err != nil {
		return nil, ErrCorruptProof
	}
	p := &Proof{Leaf: leaf, Steps: make([]ProofStep, count)}
	for i := range p.Steps {
		var buf [chainhash.HashSize + 1]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, ErrCorruptProof
		}
		copy(p.Steps[i].Hash[:], buf[:chainhash.HashSize])
		switch buf[chainhash.HashSize] {
		case 0:
			p.Steps[i].Left = false
		case 1:
			p.Steps[i].Left = true
		default:
			return nil, ErrCorruptProof
		}
	}
	return p, nil
}

func writeUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v >> 16)
	buf[3] = byte(v >> 24)
	_, err := w.Write(buf[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 |
		uint32(buf[3])<<24, nil
}

func writeVarBytes(w io.Writer, b []byte) error {
	if err := writeUint32(w, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readVarBytes(r io.Reader) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	const maxVarBytes = 1 << 24
	if n > maxVarBytes {
		return nil, errors.New("merkle: variable length field too large")
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
