// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// TxAux kind tags.
const (
	txAuxTransfer uint8 = 0
	txAuxDeposit  uint8 = 1
	txAuxUnbond   uint8 = 2
	txAuxWithdraw uint8 = 3
)

// TxObfuscated is the sealed payload of a confidential transaction: only
// enclave-authenticated parties can recover the plaintext.
type TxObfuscated struct {
	KeyFrom uint64
	Nonce   [12]byte
	Payload []byte
}

// Serialize writes the sealed payload in canonical form.
func (o *TxObfuscated) Serialize(w io.Writer) error {
	if err := writeUint64(w, o.KeyFrom); err != nil {
		return err
	}
	if _, err := w.Write(o.Nonce[:]); err != nil {
		return err
	}
	return WriteVarBytes(w, o.Payload)
}

// Deserialize reads a sealed payload written by Serialize.
func (o *TxObfuscated) Deserialize(r io.Reader) error {
	var err error
	if o.KeyFrom, err = readUint64(r); err != nil {
		return err
	}
	if _, err := io.ReadFull(r, o.Nonce[:]); err != nil {
		return err
	}
	o.Payload, err = ReadVarBytes(r)
	return err
}

// TxAux is a transaction in its distributed form: the public shape metadata
// plus the obfuscated payload. It is what gets broadcast, stored, and
// committed to the per-block merkle tree.
type TxAux struct {
	kind uint8

	// Transfer fields.
	TxID        chainhash.Hash
	Inputs      []TxoPointer
	OutputCount uint16
	Payload     TxObfuscated

	// Deposit fields.
	Deposit *DepositStakeTx

	// Unbond fields (plain body plus witness).
	Unbond        *UnbondStakeTx
	UnbondWitness TxWitness

	// Withdraw fields.
	Withdraw *WithdrawUnbondedTx
}

// NewTransferTxAux wraps an obfuscated transfer.
func NewTransferTxAux(txid chainhash.Hash, inputs []TxoPointer, outputCount uint16, payload TxObfuscated) *TxAux {
	return &TxAux{
		kind:        txAuxTransfer,
		TxID:        txid,
		Inputs:      inputs,
		OutputCount: outputCount,
		Payload:     payload,
	}
}

// NewDepositTxAux wraps an obfuscated stake deposit.
func NewDepositTxAux(tx *DepositStakeTx, payload TxObfuscated) *TxAux {
	return &TxAux{kind: txAuxDeposit, TxID: tx.TxID(), Deposit: tx, Payload: payload}
}

// NewUnbondTxAux wraps a plain unbond with its witness.
func NewUnbondTxAux(tx *UnbondStakeTx, witness TxWitness) *TxAux {
	return &TxAux{kind: txAuxUnbond, TxID: tx.TxID(), Unbond: tx, UnbondWitness: witness}
}

// NewWithdrawTxAux wraps an obfuscated unbonded-stake withdrawal.
func NewWithdrawTxAux(tx *WithdrawUnbondedTx, payload TxObfuscated) *TxAux {
	return &TxAux{kind: txAuxWithdraw, TxID: tx.TxID(), Withdraw: tx, Payload: payload}
}

// IsTransfer reports whether the aux wraps a confidential transfer.
func (a *TxAux) IsTransfer() bool {
	return a.kind == txAuxTransfer
}

// Serialize writes the aux in canonical form.
func (a *TxAux) Serialize(w io.Writer) error {
	if err := writeUint8(w, SerializationVersion); err != nil {
		return err
	}
	if err := writeUint8(w, a.kind); err != nil {
		return err
	}
	switch a.kind {
	case txAuxTransfer:
		if err := writeHash(w, &a.TxID); err != nil {
			return err
		}
		if err := writeUint16(w, uint16(len(a.Inputs))); err != nil {
			return err
		}
		for i := range a.Inputs {
			if err := a.Inputs[i].Serialize(w); err != nil {
				return err
			}
		}
		if err := writeUint16(w, a.OutputCount); err != nil {
			return err
		}
		return a.Payload.Serialize(w)
	case txAuxDeposit:
		if err := a.Deposit.Serialize(w); err != nil {
			return err
		}
		return a.Payload.Serialize(w)
	case txAuxUnbond:
		if err := a.Unbond.Serialize(w); err != nil {
			return err
		}
		return a.UnbondWitness.Serialize(w)
	case txAuxWithdraw:
		if err := writeHash(w, &a.TxID); err != nil {
			return err
		}
		if err := a.Withdraw.Serialize(w); err != nil {
			return err
		}
		return a.Payload.Serialize(w)
	default:
		return ErrCorruptPayload
	}
}

// Bytes returns the canonical serialization of the aux.
func (a *TxAux) Bytes() []byte {
	var buf bytes.Buffer
	_ = a.Serialize(&buf)
	return buf.Bytes()
}

// DeserializeTxAux reads an aux written by Serialize.
func DeserializeTxAux(r io.Reader) (*TxAux, error) {
	version, err := readUint8(r)
	if err != nil {
		return nil, err
	}
	if version != SerializationVersion {
		return nil, ErrUnknownVersion
	}
	kind, err := readUint8(r)
	if err != nil {
		return nil, err
	}
	a := &TxAux{kind: kind}
	switch kind {
	case txAuxTransfer:
		if a.TxID, err = readHash(r); err != nil {
			return nil, err
		}
		count, err := readUint16(r)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			a.Inputs = make([]TxoPointer, count)
			for i := range a.Inputs {
				if err := a.Inputs[i].Deserialize(r); err != nil {
					return nil, err
				}
			}
		}
		if a.OutputCount, err = readUint16(r); err != nil {
			return nil, err
		}
		if err := a.Payload.Deserialize(r); err != nil {
			return nil, err
		}
	case txAuxDeposit:
		a.Deposit = &DepositStakeTx{}
		if err := a.Deposit.Deserialize(r); err != nil {
			return nil, err
		}
		a.TxID = a.Deposit.TxID()
		if err := a.Payload.Deserialize(r); err != nil {
			return nil, err
		}
	case txAuxUnbond:
		a.Unbond = &UnbondStakeTx{}
		if err := a.Unbond.Deserialize(r); err != nil {
			return nil, err
		}
		a.TxID = a.Unbond.TxID()
		if a.UnbondWitness, err = DeserializeTxWitness(r); err != nil {
			return nil, err
		}
	case txAuxWithdraw:
		if a.TxID, err = readHash(r); err != nil {
			return nil, err
		}
		a.Withdraw = &WithdrawUnbondedTx{}
		if err := a.Withdraw.Deserialize(r); err != nil {
			return nil, err
		}
		if err := a.Payload.Deserialize(r); err != nil {
			return nil, err
		}
	default:
		return nil, ErrCorruptPayload
	}
	return a, nil
}
