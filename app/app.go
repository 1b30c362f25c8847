// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package app implements the ledger node application: the committed chain
// state, the per-block transaction merkle trees, and the query dispatcher
// that serves historical data with cryptographic inclusion proofs.
package app

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/veilchain/veil/crypto"
	"github.com/veilchain/veil/crypto/merkle"
	"github.com/veilchain/veil/storage"
	"github.com/veilchain/veil/trie"
	"github.com/veilchain/veil/wire"
)

var (
	// ErrAlreadyInitialized is returned when InitChain is called on a
	// node that already has a genesis state.
	ErrAlreadyInitialized = errors.New("app: chain already initialized")

	// ErrNotInitialized is returned when committing to a node with no
	// genesis state.
	ErrNotInitialized = errors.New("app: chain not initialized")
)

// lastStateKey locates the persisted chain state in the extra column.
var lastStateKey = []byte("laststate")

// ChainState is the tip summary persisted after every commit.
type ChainState struct {
	LastBlockHeight int64
	LastAppHash     chainhash.Hash
	LastAccountRoot chainhash.Hash
}

func (s *ChainState) serialize(w io.Writer) error {
	var heightBuf [8]byte
	binary.LittleEndian.PutUint64(heightBuf[:], uint64(s.LastBlockHeight))
	if _, err := w.Write(heightBuf[:]); err != nil {
		return err
	}
	if _, err := w.Write(s.LastAppHash[:]); err != nil {
		return err
	}
	_, err := w.Write(s.LastAccountRoot[:])
	return err
}

func deserializeChainState(r io.Reader) (*ChainState, error) {
	var heightBuf [8]byte
	if _, err := io.ReadFull(r, heightBuf[:]); err != nil {
		return nil, err
	}
	s := &ChainState{LastBlockHeight: int64(binary.LittleEndian.Uint64(heightBuf[:]))}
	if _, err := io.ReadFull(r, s.LastAppHash[:]); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, s.LastAccountRoot[:]); err != nil {
		return nil, err
	}
	return s, nil
}

// BlockTx is one transaction scheduled into a block commit: the
// distributed form plus its witness.
type BlockTx struct {
	Aux     *wire.TxAux
	Witness wire.TxWitness
}

// ChainApp is the ledger node application. Queries read against the state
// snapshot captured at entry; writes happen only in the commit path and are
// applied as one atomic batch per block.
type ChainApp struct {
	store    storage.Store
	accounts *trie.Trie

	// state is nil until the chain is initialized or restored.
	state *ChainState
}

// NewChainApp opens the application over the given store, restoring the
// persisted tip state when one exists.
func NewChainApp(store storage.Store) (*ChainApp, error) {
	a := &ChainApp{store: store, accounts: trie.New(store)}

	raw, err := store.Get(storage.ColExtra, lastStateKey)
	switch {
	case err == nil:
		if a.state, err = deserializeChainState(bytes.NewReader(raw)); err != nil {
			return nil, err
		}
		log.Infof("Restored chain state at height %d", a.state.LastBlockHeight)
	case errors.Is(err, storage.ErrNotFound):
		// Fresh node; waits for InitChain.
	default:
		return nil, err
	}
	return a, nil
}

// heightKey is the varint encoding used to key app hashes by block height.
func heightKey(height int64) []byte {
	return binary.AppendVarint(nil, height)
}

// appHash summarizes the full application state: the account trie root
// combined with the block's transaction merkle root.
func appHash(accountRoot, txRoot chainhash.Hash) chainhash.Hash {
	var buf [2 * chainhash.HashSize]byte
	copy(buf[:], accountRoot[:])
	copy(buf[chainhash.HashSize:], txRoot[:])
	return crypto.TxidHash(buf[:])
}

// InitChain seeds the account trie with the genesis staked states and
// persists the height-zero app hash.
func (a *ChainApp) InitChain(genesis []wire.StakedState) error {
	if a.state != nil {
		return ErrAlreadyInitialized
	}

	keys := make([]chainhash.Hash, len(genesis))
	values := make([][]byte, len(genesis))
	for i := range genesis {
		keys[i] = genesis[i].Key()
		values[i] = genesis[i].Bytes()
	}
	accountRoot, err := a.accounts.Insert(nil, keys, values)
	if err != nil {
		return err
	}

	emptyTree := merkle.NewTree(nil)
	hash := appHash(accountRoot, emptyTree.RootHash())

	state := &ChainState{
		LastBlockHeight: 0,
		LastAppHash:     hash,
		LastAccountRoot: accountRoot,
	}

	batch := a.store.NewBatch()
	batch.Put(storage.ColAppStates, heightKey(0), hash[:])
	batch.Put(storage.ColMerkleTrees, hash[:], emptyTree.Bytes())
	var stateBuf bytes.Buffer
	if err := state.serialize(&stateBuf); err != nil {
		return err
	}
	batch.Put(storage.ColExtra, lastStateKey, stateBuf.Bytes())
	if err := a.store.Write(batch); err != nil {
		return err
	}

	a.state = state
	log.Infof("Initialized chain with %d genesis accounts", len(genesis))
	return nil
}

// CommitBlock applies one block: it stores every transaction's body,
// witness, and spent-output metadata, folds the account updates into a new
// trie version, builds the block's transaction merkle tree, and persists
// the resulting app hash — all in a single atomic batch.
func (a *ChainApp) CommitBlock(txs []BlockTx, accounts []wire.StakedState) error {
	if a.state == nil {
		return ErrNotInitialized
	}

	keys := make([]chainhash.Hash, len(accounts))
	values := make([][]byte, len(accounts))
	for i := range accounts {
		keys[i] = accounts[i].Key()
		values[i] = accounts[i].Bytes()
	}
	accountRoot, err := a.accounts.Insert(&a.state.LastAccountRoot, keys, values)
	if err != nil {
		return err
	}

	leaves := make([][]byte, len(txs))
	for i := range txs {
		id := txs[i].Aux.TxID
		leaves[i] = id[:]
	}
	tree := merkle.NewTree(leaves)

	height := a.state.LastBlockHeight + 1
	hash := appHash(accountRoot, tree.RootHash())
	state := &ChainState{
		LastBlockHeight: height,
		LastAppHash:     hash,
		LastAccountRoot: accountRoot,
	}

	batch := a.store.NewBatch()
	for i := range txs {
		id := txs[i].Aux.TxID
		batch.Put(storage.ColBodies, id[:], txs[i].Aux.Bytes())
		if len(txs[i].Witness) > 0 {
			batch.Put(storage.ColWitness, id[:], txs[i].Witness.Bytes())
		}
		batch.Put(storage.ColTxMeta, id[:], newSpentBitmap(txs[i].Aux))
	}
	batch.Put(storage.ColAppStates, heightKey(height), hash[:])
	batch.Put(storage.ColMerkleTrees, hash[:], tree.Bytes())
	var stateBuf bytes.Buffer
	if err := state.serialize(&stateBuf); err != nil {
		return err
	}
	batch.Put(storage.ColExtra, lastStateKey, stateBuf.Bytes())
	if err := a.store.Write(batch); err != nil {
		return err
	}

	a.state = state
	log.Debugf("Committed block %d with %d transactions", height, len(txs))
	return nil
}

// newSpentBitmap returns the all-unspent bitmap for a transaction's
// outputs, one bit per output.
func newSpentBitmap(aux *wire.TxAux) []byte {
	outputs := int(aux.OutputCount)
	if aux.Withdraw != nil {
		outputs = len(aux.Withdraw.Outputs)
	}
	return make([]byte, (outputs+7)/8)
}

// State returns the current tip state, or nil before initialization.
func (a *ChainApp) State() *ChainState {
	return a.state
}
