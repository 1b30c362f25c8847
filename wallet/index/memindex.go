// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package index

import (
	"bytes"
	"sort"
	"sync"
	"time"

	"github.com/veilchain/veil/coin"
	"github.com/veilchain/veil/wire"
)

// MemoryIndex is an in-process Index that maintains address views by
// replaying every broadcast transaction. Broadcast expects the mock cipher
// convention: the obfuscated payload is the canonical plaintext
// serialization.
type MemoryIndex struct {
	mu      sync.RWMutex
	details map[wire.ExtendedAddr]*AddressDetails
	utxos   map[wire.TxoPointer]wire.TxOut
	height  int64
}

// NewMemoryIndex returns an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		details: make(map[wire.ExtendedAddr]*AddressDetails),
		utxos:   make(map[wire.TxoPointer]wire.TxOut),
	}
}

func (m *MemoryIndex) detailsFor(addr wire.ExtendedAddr) *AddressDetails {
	d, ok := m.details[addr]
	if !ok {
		d = newAddressDetails()
		m.details[addr] = d
	}
	return d
}

// SeedUTXO installs an unspent output directly, crediting the owning
// address as an incoming change at the given height.
func (m *MemoryIndex) SeedUTXO(ptr wire.TxoPointer, out wire.TxOut, height int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.utxos[ptr] = out
	d := m.detailsFor(out.Address)
	d.UnspentTransactions[ptr] = out

	balance, err := (BalanceChange{Direction: Incoming, Value: out.Value}).Apply(d.Balance)
	if err != nil {
		return err
	}
	d.Balance = balance
	d.TransactionHistory = append(d.TransactionHistory, TransactionChange{
		TxID:      ptr.TxID,
		Address:   out.Address,
		Change:    BalanceChange{Direction: Incoming, Value: out.Value},
		Height:    height,
		BlockTime: time.Unix(height, 0).UTC(),
	})
	if height > m.height {
		m.height = height
	}
	return nil
}

// AddressDetails returns a copy of the address view with history sorted by
// (height, position in block).
func (m *MemoryIndex) AddressDetails(addr wire.ExtendedAddr) (*AddressDetails, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.details[addr]
	if !ok {
		return newAddressDetails(), nil
	}

	out := newAddressDetails()
	out.Balance = d.Balance
	out.TransactionHistory = append(out.TransactionHistory, d.TransactionHistory...)
	sort.SliceStable(out.TransactionHistory, func(i, j int) bool {
		a, b := out.TransactionHistory[i], out.TransactionHistory[j]
		if a.Height != b.Height {
			return a.Height < b.Height
		}
		return a.Position < b.Position
	})
	for ptr, txOut := range d.UnspentTransactions {
		out.UnspentTransactions[ptr] = txOut
	}
	return out, nil
}

// Output resolves a prior transaction output among the currently unspent
// set.
func (m *MemoryIndex) Output(ptr wire.TxoPointer) (*wire.TxOut, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out, ok := m.utxos[ptr]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	return &out, nil
}

// Broadcast decodes the distributed transaction and folds it into the
// address views at the next block height.
func (m *MemoryIndex) Broadcast(rawTx []byte) error {
	aux, err := wire.DeserializeTxAux(bytes.NewReader(rawTx))
	if err != nil {
		return err
	}
	if !aux.IsTransfer() {
		return ErrNotTransfer
	}

	var tx wire.Tx
	if err := tx.Deserialize(bytes.NewReader(aux.Payload.Payload)); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Validate the whole transaction before touching any state: every
	// input must be a distinct spendable output, and every balance
	// change must stay in range when applied in order. Running the same
	// sequence against scratch balances first means the mutation pass
	// below applies all-or-nothing, like a store batch.
	balances := make(map[wire.ExtendedAddr]coin.Coin)
	balanceOf := func(addr wire.ExtendedAddr) coin.Coin {
		if b, ok := balances[addr]; ok {
			return b
		}
		return m.detailsFor(addr).Balance
	}

	seen := make(map[wire.TxoPointer]bool)
	spent := make([]wire.TxOut, len(tx.Inputs))
	for i, input := range tx.Inputs {
		out, ok := m.utxos[input]
		if !ok || seen[input] {
			return ErrTransactionNotFound
		}
		seen[input] = true
		spent[i] = out

		change := BalanceChange{Direction: Outgoing, Value: out.Value}
		balance, err := change.Apply(balanceOf(out.Address))
		if err != nil {
			return err
		}
		balances[out.Address] = balance
	}
	for _, out := range tx.Outputs {
		change := BalanceChange{Direction: Incoming, Value: out.Value}
		balance, err := change.Apply(balanceOf(out.Address))
		if err != nil {
			return err
		}
		balances[out.Address] = balance
	}

	m.height++
	height := m.height
	blockTime := time.Unix(height, 0).UTC()
	txid := tx.TxID()

	for i, input := range tx.Inputs {
		delete(m.utxos, input)

		d := m.detailsFor(spent[i].Address)
		delete(d.UnspentTransactions, input)
		change := BalanceChange{Direction: Outgoing, Value: spent[i].Value}
		balance, err := change.Apply(d.Balance)
		if err != nil {
			return err
		}
		d.Balance = balance
		d.TransactionHistory = append(d.TransactionHistory, TransactionChange{
			TxID: txid, Address: spent[i].Address, Change: change,
			Height: height, BlockTime: blockTime,
		})
	}

	for i, out := range tx.Outputs {
		ptr := wire.NewTxoPointer(txid, uint16(i))
		m.utxos[ptr] = out

		d := m.detailsFor(out.Address)
		d.UnspentTransactions[ptr] = out
		change := BalanceChange{Direction: Incoming, Value: out.Value}
		balance, err := change.Apply(d.Balance)
		if err != nil {
			return err
		}
		d.Balance = balance
		d.TransactionHistory = append(d.TransactionHistory, TransactionChange{
			TxID: txid, Address: out.Address, Change: change,
			Height: height, Position: i, BlockTime: blockTime,
		})
	}
	return nil
}
