// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"sort"

	"github.com/veilchain/veil/coin"
	"github.com/veilchain/veil/wire"
)

// InputSelectionStrategy orders spendable outputs before the builder
// drains them front to back.
type InputSelectionStrategy uint8

const (
	// SelectLargestFirst drains the biggest outputs first, minimizing
	// input count. This is the default.
	SelectLargestFirst InputSelectionStrategy = iota

	// SelectSmallestFirst drains dust first.
	SelectSmallestFirst

	// SelectInOrder keeps the order the entries were gathered in, without
	// sorting. Entries gathered from an address's unspent map come in no
	// fixed order.
	SelectInOrder
)

// UnspentEntry pairs an output pointer with the output it references.
type UnspentEntry struct {
	Pointer wire.TxoPointer
	Output  wire.TxOut
}

// UnspentTransactions is the spendable set the builder selects inputs
// from.
type UnspentTransactions struct {
	entries []UnspentEntry
}

// NewUnspentTransactions wraps a spendable set.
func NewUnspentTransactions(entries []UnspentEntry) *UnspentTransactions {
	return &UnspentTransactions{entries: entries}
}

// Len returns the number of spendable outputs.
func (u *UnspentTransactions) Len() int {
	return len(u.entries)
}

// Apply orders the set per the strategy.
func (u *UnspentTransactions) Apply(strategy InputSelectionStrategy) {
	switch strategy {
	case SelectLargestFirst:
		sort.SliceStable(u.entries, func(i, j int) bool {
			return u.entries[i].Output.Value > u.entries[j].Output.Value
		})
	case SelectSmallestFirst:
		sort.SliceStable(u.entries, func(i, j int) bool {
			return u.entries[i].Output.Value < u.entries[j].Output.Value
		})
	case SelectInOrder:
	}
}

// Select takes entries front to back until their sum covers target,
// returning the selection and its sum. An exhausted set is an
// insufficient-balance failure.
func (u *UnspentTransactions) Select(target coin.Coin) ([]UnspentEntry, coin.Coin, error) {
	sum := coin.Zero()
	for i, entry := range u.entries {
		var err error
		if sum, err = sum.Add(entry.Output.Value); err != nil {
			return nil, 0, makeError(ErrBalanceAddition, "%v", err)
		}
		if sum >= target {
			return u.entries[:i+1], sum, nil
		}
	}
	return nil, 0, makeError(ErrInsufficientBalance,
		"have %s, need %s", sum, target)
}
