// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"bytes"
	"encoding/hex"
	"errors"
	"io"
	"sort"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/veilchain/veil/crypto/merkle"
	"github.com/veilchain/veil/storage"
	"github.com/veilchain/veil/wire"
)

const (
	// rootHashKeyspace domain-separates or-tree records.
	rootHashKeyspace = "roothash"

	// maxCosigners bounds N; the tree enumerates every M-subset, so N is
	// kept small enough that the enumeration stays cheap.
	maxCosigners = 16
)

// RootHashService builds and stores the or-trees behind M-of-N transfer
// addresses: every M-subset of the N signers, in sorted order, hashed into
// a merkle tree whose root is the address.
type RootHashService struct {
	ss *secureStore
}

// NewRootHashService returns a root-hash service over the shared wallet
// store.
func NewRootHashService(store storage.Store) *RootHashService {
	return &RootHashService{ss: newSecureStore(store, rootHashKeyspace)}
}

// rootRecord is the sealed per-address state: the cosigner threshold and
// the full tree for proof generation.
type rootRecord struct {
	m    uint16
	tree *merkle.Tree
}

func (rec *rootRecord) serialize(w io.Writer) error {
	if _, err := w.Write([]byte{byte(rec.m), byte(rec.m >> 8)}); err != nil {
		return err
	}
	return rec.tree.Serialize(w)
}

func deserializeRootRecord(r io.Reader) (*rootRecord, error) {
	var mBuf [2]byte
	if _, err := io.ReadFull(r, mBuf[:]); err != nil {
		return nil, err
	}
	tree, err := merkle.Deserialize(r)
	if err != nil {
		return nil, err
	}
	return &rootRecord{m: uint16(mBuf[0]) | uint16(mBuf[1])<<8, tree: tree}, nil
}

// sortKeys orders keys by compressed serialization.
func sortKeys(pubs []*btcec.PublicKey) []*btcec.PublicKey {
	sorted := make([]*btcec.PublicKey, len(pubs))
	copy(sorted, pubs)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(
			sorted[i].SerializeCompressed(),
			sorted[j].SerializeCompressed(),
		) < 0
	})
	return sorted
}

// combinations visits every m-subset of keys in lexicographic order.
func combinations(keys []*btcec.PublicKey, m int, visit func([]*btcec.PublicKey) error) error {
	subset := make([]*btcec.PublicKey, 0, m)
	var walk func(start int) error
	walk = func(start int) error {
		if len(subset) == m {
			return visit(subset)
		}
		for i := start; i < len(keys); i++ {
			subset = append(subset, keys[i])
			if err := walk(i + 1); err != nil {
				return err
			}
			subset = subset[:len(subset)-1]
		}
		return nil
	}
	return walk(0)
}

// NewRootHash builds, stores, and returns the or-tree root for an M-of-N
// address over the given signers. The caller's own key must be one of
// them.
func (rs *RootHashService) NewRootHash(pubs []*btcec.PublicKey, self *btcec.PublicKey,
	m, n int, passphrase []byte) (chainhash.Hash, error) {

	if n != len(pubs) || n == 0 || n > maxCosigners {
		return chainhash.Hash{}, makeError(ErrInvalidInput,
			"cosigner count %d does not match %d keys (max %d)", n, len(pubs), maxCosigners)
	}
	if m == 0 || m > n {
		return chainhash.Hash{}, makeError(ErrInvalidInput,
			"required cosigners %d out of range for %d keys", m, n)
	}
	selfFound := false
	for _, pub := range pubs {
		if pub.IsEqual(self) {
			selfFound = true
			break
		}
	}
	if !selfFound {
		return chainhash.Hash{}, makeError(ErrInvalidInput, "own key not in signer set")
	}

	// Enumerate every m-subset of the sorted signer set; each leaf is
	// the hash of the subset's sorted compressed keys.
	sorted := sortKeys(pubs)
	var leaves [][]byte
	err := combinations(sorted, m, func(subset []*btcec.PublicKey) error {
		leaves = append(leaves, wire.SubsetLeaf(subset))
		return nil
	})
	if err != nil {
		return chainhash.Hash{}, err
	}

	rec := &rootRecord{m: uint16(m), tree: merkle.NewTree(leaves)}
	root := rec.tree.RootHash()

	var buf bytes.Buffer
	if err := rec.serialize(&buf); err != nil {
		return chainhash.Hash{}, makeError(ErrStorage, "%v", err)
	}
	if err := rs.ss.Set(hex.EncodeToString(root[:]), passphrase, buf.Bytes()); err != nil {
		return chainhash.Hash{}, err
	}
	return root, nil
}

func (rs *RootHashService) load(root chainhash.Hash, passphrase []byte) (*rootRecord, error) {
	raw, err := rs.ss.Get(hex.EncodeToString(root[:]), passphrase)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, makeError(ErrNotFound, "unknown root hash %x", root[:])
		}
		return nil, err
	}
	rec, err := deserializeRootRecord(bytes.NewReader(raw))
	if err != nil {
		return nil, makeError(ErrStorage, "corrupt root hash record: %v", err)
	}
	return rec, nil
}

// GenerateProof proves that a signing subset is authorized by the address:
// the inclusion proof of the subset's leaf hash in the or-tree.
func (rs *RootHashService) GenerateProof(root chainhash.Hash, pubs []*btcec.PublicKey,
	passphrase []byte) (*merkle.Proof, error) {

	if len(pubs) == 0 {
		return nil, makeError(ErrInvalidInput, "empty signer subset")
	}
	rec, err := rs.load(root, passphrase)
	if err != nil {
		return nil, err
	}
	proof := rec.tree.GenerateProof(wire.SubsetLeaf(pubs))
	if proof == nil {
		return nil, makeError(ErrInvalidInput, "signer subset not authorized by address")
	}
	return proof, nil
}

// RequiredSigners returns M for the address.
func (rs *RootHashService) RequiredSigners(root chainhash.Hash, passphrase []byte) (int, error) {
	rec, err := rs.load(root, passphrase)
	if err != nil {
		return 0, err
	}
	return int(rec.m), nil
}
