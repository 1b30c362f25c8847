// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package app

import (
	"bytes"
	"errors"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/veilchain/veil/abci"
	"github.com/veilchain/veil/crypto"
	"github.com/veilchain/veil/crypto/merkle"
	"github.com/veilchain/veil/storage"
)

var (
	// ErrNoAppState is returned when the app hash for a requested height
	// is missing from the store.
	ErrNoAppState = errors.New("app: app state not found")
)

// witnessProofOp commits to the witness bytes by hash: a verifier holding
// the witness can check the commitment without the proof revealing it.
func witnessProofOp(witness []byte) abci.ProofOp {
	digest := crypto.TxidHash(witness)
	return abci.ProofOp{
		Type: abci.ProofOpWitness,
		Key:  append([]byte(nil), abci.TxidHashID...),
		Data: digest[:],
	}
}

// txProofOp wraps a merkle inclusion path rooted at the block's transaction
// tree.
func txProofOp(root chainhash.Hash, proof *merkle.Proof) abci.ProofOp {
	return abci.ProofOp{
		Type: abci.ProofOpTransaction,
		Key:  append([]byte(nil), root[:]...),
		Data: proof.Bytes(),
	}
}

// resolveHeight applies the height policy: zero or beyond the tip selects
// the tip; anything else is taken literally. Negative heights are rejected
// by the dispatcher before this point.
func resolveHeight(requested, tip int64) int64 {
	if requested == 0 || requested > tip {
		return tip
	}
	return requested
}

// buildProof assembles the proof-op chain tying txid to the app hash at
// height: the merkle inclusion path when the transaction is part of that
// block's tree, always followed by the witness commitment. A transaction
// absent from the tree at that height yields only the witness op.
func (a *ChainApp) buildProof(txid chainhash.Hash, height int64, witness []byte) (*abci.Proof, error) {
	hashRaw, err := a.store.Get(storage.ColAppStates, heightKey(height))
	if err != nil {
		return nil, ErrNoAppState
	}
	treeRaw, err := a.store.Get(storage.ColMerkleTrees, hashRaw)
	if err != nil {
		return nil, ErrNoAppState
	}
	tree, err := merkle.Deserialize(bytes.NewReader(treeRaw))
	if err != nil {
		return nil, err
	}

	var ops []abci.ProofOp
	if proof := tree.GenerateProof(txid[:]); proof != nil {
		ops = append(ops, txProofOp(tree.RootHash(), proof))
	}
	ops = append(ops, witnessProofOp(witness))
	return &abci.Proof{Ops: ops}, nil
}
