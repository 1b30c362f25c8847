// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"github.com/veilchain/veil/coin"
	"github.com/veilchain/veil/wire"
)

// TransactionCipher abstracts the enclave collaborator that seals a signed
// transaction into its distributed form.
type TransactionCipher interface {
	// Encrypt seals the plaintext transaction and witness.
	Encrypt(tx *wire.Tx, witness wire.TxWitness) (*wire.TxAux, error)
}

// MockCipher "seals" a transaction by embedding its canonical plaintext
// serialization, matching the node's mock decryption path. It never leaves
// test networks.
type MockCipher struct{}

// Encrypt wraps the transaction without real encryption.
func (MockCipher) Encrypt(tx *wire.Tx, witness wire.TxWitness) (*wire.TxAux, error) {
	return wire.NewTransferTxAux(
		tx.TxID(), tx.Inputs, uint16(len(tx.Outputs)),
		wire.TxObfuscated{Payload: tx.Bytes()},
	), nil
}

// TransactionBuilder assembles, signs, and seals a transfer transaction
// from a wallet's spendable set.
type TransactionBuilder interface {
	Build(name string, passphrase []byte, outputs []wire.TxOut,
		attrs wire.TxAttributes, utxos *UnspentTransactions,
		returnAddr wire.ExtendedAddr) (*wire.TxAux, error)
}

// DefaultBuilder selects inputs until the outputs and fee are covered,
// emits a change output back to the wallet, signs every input, and hands
// the result to the cipher.
type DefaultBuilder struct {
	signer *Signer
	fee    FeeEstimator
	cipher TransactionCipher
}

// NewDefaultBuilder returns a builder over the given signer, fee policy,
// and cipher.
func NewDefaultBuilder(signer *Signer, fee FeeEstimator, cipher TransactionCipher) *DefaultBuilder {
	return &DefaultBuilder{signer: signer, fee: fee, cipher: cipher}
}

// maxFeeIterations bounds the select/estimate loop; the fee is a function
// of size, which is a function of the selection.
const maxFeeIterations = 10

// Build implements TransactionBuilder.
func (b *DefaultBuilder) Build(name string, passphrase []byte, outputs []wire.TxOut,
	attrs wire.TxAttributes, utxos *UnspentTransactions,
	returnAddr wire.ExtendedAddr) (*wire.TxAux, error) {

	values := make([]coin.Coin, len(outputs))
	for i := range outputs {
		values[i] = outputs[i].Value
	}
	outputTotal, err := coin.Sum(values)
	if err != nil {
		return nil, makeError(ErrBalanceAddition, "%v", err)
	}

	fee := coin.Zero()
	var tx *wire.Tx
	var selected []UnspentEntry
	for i := 0; i < maxFeeIterations; i++ {
		target, err := outputTotal.Add(fee)
		if err != nil {
			return nil, makeError(ErrBalanceAddition, "%v", err)
		}
		var inputTotal coin.Coin
		if selected, inputTotal, err = utxos.Select(target); err != nil {
			return nil, err
		}

		tx = &wire.Tx{Outputs: append([]wire.TxOut(nil), outputs...), Attributes: attrs}
		for _, entry := range selected {
			tx.Inputs = append(tx.Inputs, entry.Pointer)
		}
		change, err := inputTotal.Sub(target)
		if err != nil {
			return nil, makeError(ErrBalanceAddition, "%v", err)
		}
		if change > 0 {
			tx.Outputs = append(tx.Outputs, wire.NewTxOut(returnAddr, change))
		}

		newFee, err := b.fee.CalculateFee(len(tx.Bytes()))
		if err != nil {
			return nil, err
		}
		if newFee == fee {
			break
		}
		fee = newFee
	}

	txid := tx.TxID()
	witness := make(wire.TxWitness, 0, len(selected))
	for _, entry := range selected {
		wit, err := b.signer.SignInput(name, passphrase, txid, entry.Output.Address)
		if err != nil {
			return nil, err
		}
		witness = append(witness, wit)
	}

	return b.cipher.Encrypt(tx, witness)
}
