// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package trie implements the persistent authenticated binary trie holding
// staked account state. Keys are 32-byte hashes walked MSB-first (bit 0 =
// left). Nodes are content addressed: each node is stored in the backing
// store under the hash of its encoding, so every root is an immutable
// snapshot and versions share unchanged subtrees structurally.
package trie

import (
	"bytes"
	"errors"
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/veilchain/veil/crypto"
	"github.com/veilchain/veil/storage"
)

const (
	leafTag   = 0x00
	branchTag = 0x01

	// maxDepth bounds traversal; two distinct 256-bit keys must diverge
	// before this depth.
	maxDepth = 8 * chainhash.HashSize
)

var (
	// EmptyRoot is the root of a trie with no entries.
	EmptyRoot = chainhash.Hash{}

	// ErrCorruptNode is returned when a stored node fails to decode.
	ErrCorruptNode = errors.New("trie: corrupt node encoding")

	// ErrBatchMismatch is returned when Insert is called with unequal
	// key and value counts.
	ErrBatchMismatch = errors.New("trie: key/value count mismatch")
)

// node is the in-memory form of a trie node. A leaf stores the full key for
// disambiguation; a branch stores child hashes, the zero hash marking an
// empty subtree.
type node struct {
	isLeaf bool
	key    chainhash.Hash
	value  []byte
	left   chainhash.Hash
	right  chainhash.Hash
}

func (n *node) encode() []byte {
	if n.isLeaf {
		buf := make([]byte, 0, 1+chainhash.HashSize+4+len(n.value))
		buf = append(buf, leafTag)
		buf = append(buf, n.key[:]...)
		var lenBuf [4]byte
		for i := range lenBuf {
			lenBuf[i] = byte(len(n.value) >> (8 * i))
		}
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, n.value...)
		return buf
	}
	buf := make([]byte, 0, 1+2*chainhash.HashSize)
	buf = append(buf, branchTag)
	buf = append(buf, n.left[:]...)
	buf = append(buf, n.right[:]...)
	return buf
}

func decodeNode(raw []byte) (*node, error) {
	if len(raw) == 0 {
		return nil, ErrCorruptNode
	}
	switch raw[0] {
	case leafTag:
		if len(raw) < 1+chainhash.HashSize+4 {
			return nil, ErrCorruptNode
		}
		n := &node{isLeaf: true}
		copy(n.key[:], raw[1:1+chainhash.HashSize])
		lenBytes := raw[1+chainhash.HashSize : 1+chainhash.HashSize+4]
		var valueLen int
		for i := range lenBytes {
			valueLen |= int(lenBytes[i]) << (8 * i)
		}
		rest := raw[1+chainhash.HashSize+4:]
		if len(rest) != valueLen {
			return nil, ErrCorruptNode
		}
		n.value = append([]byte(nil), rest...)
		return n, nil
	case branchTag:
		if len(raw) != 1+2*chainhash.HashSize {
			return nil, ErrCorruptNode
		}
		n := &node{}
		copy(n.left[:], raw[1:1+chainhash.HashSize])
		copy(n.right[:], raw[1+chainhash.HashSize:])
		return n, nil
	default:
		return nil, ErrCorruptNode
	}
}

// getBit returns bit depth of the key, MSB-first.
func getBit(key chainhash.Hash, depth int) byte {
	return (key[depth/8] >> (7 - uint(depth)%8)) & 1
}

// Trie reads and writes content-addressed nodes in the backing store.
type Trie struct {
	store storage.Store
}

// New returns a trie view over the given store.
func New(store storage.Store) *Trie {
	return &Trie{store: store}
}

// insertion tracks nodes created during one batch insert so they are
// readable before the final flush and written exactly once.
type insertion struct {
	trie    *Trie
	pending map[chainhash.Hash][]byte
}

func (ins *insertion) load(hash chainhash.Hash) (*node, error) {
	if raw, ok := ins.pending[hash]; ok {
		return decodeNode(raw)
	}
	raw, err := ins.trie.store.Get(storage.ColTrie, hash[:])
	if err != nil {
		return nil, err
	}
	return decodeNode(raw)
}

func (ins *insertion) save(n *node) chainhash.Hash {
	raw := n.encode()
	hash := crypto.TxidHash(raw)
	ins.pending[hash] = raw
	return hash
}

func (ins *insertion) insert(root chainhash.Hash, key chainhash.Hash, value []byte, depth int) (chainhash.Hash, error) {
	if root == EmptyRoot {
		return ins.save(&node{isLeaf: true, key: key, value: value}), nil
	}
	if depth >= maxDepth {
		return EmptyRoot, ErrCorruptNode
	}

	n, err := ins.load(root)
	if err != nil {
		return EmptyRoot, err
	}

	if n.isLeaf {
		if n.key == key {
			return ins.save(&node{isLeaf: true, key: key, value: value}), nil
		}
		return ins.split(n, key, value, depth)
	}

	branch := &node{left: n.left, right: n.right}
	if getBit(key, depth) == 0 {
		if branch.left, err = ins.insert(n.left, key, value, depth+1); err != nil {
			return EmptyRoot, err
		}
	} else {
		if branch.right, err = ins.insert(n.right, key, value, depth+1); err != nil {
			return EmptyRoot, err
		}
	}
	return ins.save(branch), nil
}

// split replaces a leaf with the chain of branches needed to separate the
// existing key from the new one.
func (ins *insertion) split(existing *node, key chainhash.Hash, value []byte, depth int) (chainhash.Hash, error) {
	if depth >= maxDepth {
		return EmptyRoot, ErrCorruptNode
	}

	existBit := getBit(existing.key, depth)
	newBit := getBit(key, depth)

	if existBit == newBit {
		childHash, err := ins.split(existing, key, value, depth+1)
		if err != nil {
			return EmptyRoot, err
		}
		branch := &node{}
		if existBit == 0 {
			branch.left = childHash
		} else {
			branch.right = childHash
		}
		return ins.save(branch), nil
	}

	existHash := ins.save(existing)
	newHash := ins.save(&node{isLeaf: true, key: key, value: value})
	branch := &node{}
	if existBit == 0 {
		branch.left = existHash
		branch.right = newHash
	} else {
		branch.left = newHash
		branch.right = existHash
	}
	return ins.save(branch), nil
}

// Insert applies a batch of key/value pairs on top of oldRoot (nil or the
// zero hash for an empty trie) and returns the new root. The batch is
// sorted by key before insertion so identical batches produce byte
// identical roots; the old root remains fully readable afterwards.
func (t *Trie) Insert(oldRoot *chainhash.Hash, keys []chainhash.Hash, values [][]byte) (chainhash.Hash, error) {
	if len(keys) != len(values) {
		return EmptyRoot, ErrBatchMismatch
	}

	root := EmptyRoot
	if oldRoot != nil {
		root = *oldRoot
	}
	if len(keys) == 0 {
		return root, nil
	}

	type pair struct {
		key   chainhash.Hash
		value []byte
	}
	pairs := make([]pair, len(keys))
	for i := range keys {
		pairs[i] = pair{key: keys[i], value: values[i]}
	}
	sort.Slice(pairs, func(i, j int) bool {
		return bytes.Compare(pairs[i].key[:], pairs[j].key[:]) < 0
	})

	ins := &insertion{trie: t, pending: make(map[chainhash.Hash][]byte)}
	var err error
	for _, p := range pairs {
		if root, err = ins.insert(root, p.key, p.value, 0); err != nil {
			return EmptyRoot, err
		}
	}

	batch := t.store.NewBatch()
	for hash, raw := range ins.pending {
		batch.Put(storage.ColTrie, hash[:], raw)
	}
	if err := t.store.Write(batch); err != nil {
		return EmptyRoot, err
	}
	return root, nil
}

// Get performs an authenticated lookup of key against a specific root.
// Missing keys yield storage.ErrNotFound.
func (t *Trie) Get(root chainhash.Hash, key chainhash.Hash) ([]byte, error) {
	current := root
	for depth := 0; depth <= maxDepth; depth++ {
		if current == EmptyRoot {
			return nil, storage.ErrNotFound
		}
		raw, err := t.store.Get(storage.ColTrie, current[:])
		if err != nil {
			return nil, err
		}
		n, err := decodeNode(raw)
		if err != nil {
			return nil, err
		}
		if n.isLeaf {
			if n.key == key {
				return n.value, nil
			}
			return nil, storage.ErrNotFound
		}
		if getBit(key, depth) == 0 {
			current = n.left
		} else {
			current = n.right
		}
	}
	return nil, ErrCorruptNode
}
