// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package index

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"

	"github.com/veilchain/veil/coin"
	"github.com/veilchain/veil/crypto"
	"github.com/veilchain/veil/wire"
)

func transferAux(t *testing.T, inputs []wire.TxoPointer, outputs []wire.TxOut) []byte {
	t.Helper()
	tx := wire.NewTx(0xab)
	tx.Inputs = inputs
	tx.Outputs = outputs
	aux := wire.NewTransferTxAux(tx.TxID(), tx.Inputs, uint16(len(tx.Outputs)),
		wire.TxObfuscated{Payload: tx.Bytes()})
	return aux.Bytes()
}

func TestBroadcastMovesValue(t *testing.T) {
	idx := NewMemoryIndex()
	from := wire.NewExtendedAddr(crypto.TxidHash([]byte("from")))
	to := wire.NewExtendedAddr(crypto.TxidHash([]byte("to")))

	ptr := wire.NewTxoPointer(chainhash.Hash{0x01}, 0)
	require.NoError(t, idx.SeedUTXO(ptr, wire.NewTxOut(from, 30), 1))

	raw := transferAux(t,
		[]wire.TxoPointer{ptr},
		[]wire.TxOut{wire.NewTxOut(to, 30)},
	)
	require.NoError(t, idx.Broadcast(raw))

	details, err := idx.AddressDetails(from)
	require.NoError(t, err)
	require.Equal(t, coin.Zero(), details.Balance)
	require.Empty(t, details.UnspentTransactions)

	details, err = idx.AddressDetails(to)
	require.NoError(t, err)
	require.Equal(t, coin.Coin(30), details.Balance)
	require.Len(t, details.UnspentTransactions, 1)
}

func TestBroadcastRejectsUnknownInputAtomically(t *testing.T) {
	idx := NewMemoryIndex()
	from := wire.NewExtendedAddr(crypto.TxidHash([]byte("from")))
	to := wire.NewExtendedAddr(crypto.TxidHash([]byte("to")))

	good := wire.NewTxoPointer(chainhash.Hash{0x01}, 0)
	missing := wire.NewTxoPointer(chainhash.Hash{0x02}, 0)
	require.NoError(t, idx.SeedUTXO(good, wire.NewTxOut(from, 30), 1))

	// The first input is spendable, the second is not: nothing may be
	// applied.
	raw := transferAux(t,
		[]wire.TxoPointer{good, missing},
		[]wire.TxOut{wire.NewTxOut(to, 30)},
	)
	require.ErrorIs(t, idx.Broadcast(raw), ErrTransactionNotFound)

	details, err := idx.AddressDetails(from)
	require.NoError(t, err)
	require.Equal(t, coin.Coin(30), details.Balance)
	require.Len(t, details.UnspentTransactions, 1)
	require.Len(t, details.TransactionHistory, 1)

	// The seed output is still spendable afterwards.
	out, err := idx.Output(good)
	require.NoError(t, err)
	require.Equal(t, coin.Coin(30), out.Value)

	raw = transferAux(t,
		[]wire.TxoPointer{good},
		[]wire.TxOut{wire.NewTxOut(to, 30)},
	)
	require.NoError(t, idx.Broadcast(raw))
}

func TestBroadcastRejectsDuplicateInput(t *testing.T) {
	idx := NewMemoryIndex()
	from := wire.NewExtendedAddr(crypto.TxidHash([]byte("from")))
	to := wire.NewExtendedAddr(crypto.TxidHash([]byte("to")))

	ptr := wire.NewTxoPointer(chainhash.Hash{0x01}, 0)
	require.NoError(t, idx.SeedUTXO(ptr, wire.NewTxOut(from, 30), 1))

	raw := transferAux(t,
		[]wire.TxoPointer{ptr, ptr},
		[]wire.TxOut{wire.NewTxOut(to, 60)},
	)
	require.ErrorIs(t, idx.Broadcast(raw), ErrTransactionNotFound)

	details, err := idx.AddressDetails(from)
	require.NoError(t, err)
	require.Equal(t, coin.Coin(30), details.Balance)
}
