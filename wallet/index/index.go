// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package index defines the address-indexed transaction view the wallet
// synthesizes balances and history from, plus an in-memory implementation
// that replays broadcast transactions for tests and throwaway networks.
package index

import (
	"errors"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/veilchain/veil/coin"
	"github.com/veilchain/veil/wire"
)

var (
	// ErrTransactionNotFound is returned for references to unknown
	// transactions or outputs.
	ErrTransactionNotFound = errors.New("index: transaction not found")

	// ErrNotTransfer is returned when a broadcast payload is not a
	// transfer transaction.
	ErrNotTransfer = errors.New("index: broadcast payload is not a transfer")
)

// Direction says which way value moved relative to an address.
type Direction uint8

const (
	// Incoming value was received by the address.
	Incoming Direction = iota

	// Outgoing value was spent by the address.
	Outgoing
)

// BalanceChange is a directed amount.
type BalanceChange struct {
	Direction Direction
	Value     coin.Coin
}

// Apply folds the change into a running balance with checked arithmetic.
func (bc BalanceChange) Apply(balance coin.Coin) (coin.Coin, error) {
	if bc.Direction == Incoming {
		return balance.Add(bc.Value)
	}
	return balance.Sub(bc.Value)
}

// TransactionChange records one transaction's effect on one address.
type TransactionChange struct {
	TxID      chainhash.Hash
	Address   wire.ExtendedAddr
	Change    BalanceChange
	Height    int64
	Position  int
	BlockTime time.Time
}

// AddressDetails is the synthesized view of a single address: its balance,
// its append-only history ordered by (height, position in block), and its
// spendable outputs.
type AddressDetails struct {
	Balance             coin.Coin
	TransactionHistory  []TransactionChange
	UnspentTransactions map[wire.TxoPointer]wire.TxOut
}

// newAddressDetails returns an empty view.
func newAddressDetails() *AddressDetails {
	return &AddressDetails{
		UnspentTransactions: make(map[wire.TxoPointer]wire.TxOut),
	}
}

// Index is the external collaborator serving address views and accepting
// broadcasts.
type Index interface {
	// AddressDetails returns the view of one address. Unknown addresses
	// yield an empty view, not an error.
	AddressDetails(addr wire.ExtendedAddr) (*AddressDetails, error)

	// Output resolves a prior transaction output.
	Output(ptr wire.TxoPointer) (*wire.TxOut, error)

	// Broadcast hands an encoded transaction to the network.
	Broadcast(rawTx []byte) error
}
