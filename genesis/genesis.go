// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package genesis builds the initial staked-state distribution the node is
// seeded with and predicts the app hash the distribution commits to, so
// operators can cross-check a genesis file against a running node.
package genesis

import (
	"bytes"
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/veilchain/veil/coin"
	"github.com/veilchain/veil/crypto"
	"github.com/veilchain/veil/crypto/merkle"
	"github.com/veilchain/veil/storage"
	"github.com/veilchain/veil/trie"
	"github.com/veilchain/veil/wire"
)

// Allocation grants one staking address its initial bonded and unbonded
// amounts.
type Allocation struct {
	Address  wire.RedeemAddress
	Bonded   coin.Coin
	Unbonded coin.Coin
}

// Config is the genesis distribution.
type Config struct {
	Allocations []Allocation
}

// StakedStates converts the distribution into the genesis account records,
// ordered by address so the result is deterministic.
func (c *Config) StakedStates() ([]wire.StakedState, error) {
	allocations := append([]Allocation(nil), c.Allocations...)
	sort.Slice(allocations, func(i, j int) bool {
		return bytes.Compare(allocations[i].Address[:], allocations[j].Address[:]) < 0
	})

	total := coin.Zero()
	states := make([]wire.StakedState, 0, len(allocations))
	for _, alloc := range allocations {
		subtotal, err := alloc.Bonded.Add(alloc.Unbonded)
		if err != nil {
			return nil, err
		}
		if total, err = total.Add(subtotal); err != nil {
			return nil, err
		}

		state := wire.NewStakedState(alloc.Address)
		state.Bonded = alloc.Bonded
		state.Unbonded = alloc.Unbonded
		states = append(states, state)
	}
	return states, nil
}

// AppHash computes the height-zero app hash the distribution commits to:
// the account trie root over the genesis states combined with the root of
// an empty transaction tree. It matches what a node derives when
// initialized with the same states.
func (c *Config) AppHash() (chainhash.Hash, error) {
	states, err := c.StakedStates()
	if err != nil {
		return chainhash.Hash{}, err
	}

	accounts := trie.New(storage.NewMemStore())
	keys := make([]chainhash.Hash, len(states))
	values := make([][]byte, len(states))
	for i := range states {
		keys[i] = states[i].Key()
		values[i] = states[i].Bytes()
	}
	accountRoot, err := accounts.Insert(nil, keys, values)
	if err != nil {
		return chainhash.Hash{}, err
	}

	txRoot := merkle.NewTree(nil).RootHash()
	var buf [2 * chainhash.HashSize]byte
	copy(buf[:], accountRoot[:])
	copy(buf[chainhash.HashSize:], txRoot[:])
	return crypto.TxidHash(buf[:]), nil
}
