// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/veilchain/veil/coin"
	"github.com/veilchain/veil/crypto"
)

// StakedState is the per-address staking record. The invariants are
// enforced at mutation time: bonded + unbonded never exceeds the total
// supply, the nonce only moves forward, and UnbondedFrom is zero exactly
// when Unbonded is zero.
type StakedState struct {
	Nonce        uint64
	Bonded       coin.Coin
	Unbonded     coin.Coin
	UnbondedFrom int64
	Address      RedeemAddress
}

// NewStakedState returns a zeroed staking record for the address.
func NewStakedState(addr RedeemAddress) StakedState {
	return StakedState{Address: addr}
}

// Key returns the fixed-width trie key for the record: the BLAKE2b-256
// digest of the staking address.
func (s *StakedState) Key() chainhash.Hash {
	return crypto.TxidHash(s.Address[:])
}

// Deposit adds value to the bonded amount and bumps the nonce.
func (s *StakedState) Deposit(value coin.Coin) error {
	total, err := s.Bonded.Add(s.Unbonded)
	if err != nil {
		return err
	}
	if _, err := total.Add(value); err != nil {
		return err
	}
	bonded, err := s.Bonded.Add(value)
	if err != nil {
		return err
	}
	s.Bonded = bonded
	s.Nonce++
	return nil
}

// Unbond moves value from bonded to unbonded, recording the time the
// unbonded amount becomes withdrawable.
func (s *StakedState) Unbond(value coin.Coin, unbondedFrom int64) error {
	bonded, err := s.Bonded.Sub(value)
	if err != nil {
		return err
	}
	unbonded, err := s.Unbonded.Add(value)
	if err != nil {
		return err
	}
	s.Bonded = bonded
	s.Unbonded = unbonded
	s.UnbondedFrom = unbondedFrom
	s.Nonce++
	return nil
}

// Withdraw removes the full unbonded amount, returning it. The unbonded
// timestamp is cleared with the balance.
func (s *StakedState) Withdraw() coin.Coin {
	value := s.Unbonded
	s.Unbonded = coin.Zero()
	s.UnbondedFrom = 0
	s.Nonce++
	return value
}

// Serialize writes the record in canonical form.
func (s *StakedState) Serialize(w io.Writer) error {
	if err := writeUint8(w, SerializationVersion); err != nil {
		return err
	}
	if err := writeUint64(w, s.Nonce); err != nil {
		return err
	}
	if err := writeUint64(w, s.Bonded.Units()); err != nil {
		return err
	}
	if err := writeUint64(w, s.Unbonded.Units()); err != nil {
		return err
	}
	if err := writeInt64(w, s.UnbondedFrom); err != nil {
		return err
	}
	return s.Address.Serialize(w)
}

// Deserialize reads a record written by Serialize.
func (s *StakedState) Deserialize(r io.Reader) error {
	version, err := readUint8(r)
	if err != nil {
		return err
	}
	if version != SerializationVersion {
		return ErrUnknownVersion
	}
	if s.Nonce, err = readUint64(r); err != nil {
		return err
	}
	bonded, err := readUint64(r)
	if err != nil {
		return err
	}
	if s.Bonded, err = coin.New(bonded); err != nil {
		return ErrCorruptPayload
	}
	unbonded, err := readUint64(r)
	if err != nil {
		return err
	}
	if s.Unbonded, err = coin.New(unbonded); err != nil {
		return ErrCorruptPayload
	}
	if s.UnbondedFrom, err = readInt64(r); err != nil {
		return err
	}
	return s.Address.Deserialize(r)
}

// Bytes returns the canonical serialization of the record.
func (s *StakedState) Bytes() []byte {
	var buf bytes.Buffer
	_ = s.Serialize(&buf)
	return buf.Bytes()
}

// DepositStakeTx moves transfer outputs into a staked account's bonded
// balance.
type DepositStakeTx struct {
	Inputs     []TxoPointer
	To         RedeemAddress
	Attributes TxAttributes
}

// Serialize writes the deposit body in canonical form.
func (tx *DepositStakeTx) Serialize(w io.Writer) error {
	if err := writeUint8(w, SerializationVersion); err != nil {
		return err
	}
	if err := writeUint16(w, uint16(len(tx.Inputs))); err != nil {
		return err
	}
	for i := range tx.Inputs {
		if err := tx.Inputs[i].Serialize(w); err != nil {
			return err
		}
	}
	if err := tx.To.Serialize(w); err != nil {
		return err
	}
	return tx.Attributes.Serialize(w)
}

// Deserialize reads a deposit body written by Serialize.
func (tx *DepositStakeTx) Deserialize(r io.Reader) error {
	version, err := readUint8(r)
	if err != nil {
		return err
	}
	if version != SerializationVersion {
		return ErrUnknownVersion
	}
	count, err := readUint16(r)
	if err != nil {
		return err
	}
	tx.Inputs = nil
	if count > 0 {
		tx.Inputs = make([]TxoPointer, count)
		for i := range tx.Inputs {
			if err := tx.Inputs[i].Deserialize(r); err != nil {
				return err
			}
		}
	}
	if err := tx.To.Deserialize(r); err != nil {
		return err
	}
	return tx.Attributes.Deserialize(r)
}

// Bytes returns the canonical serialization of the deposit body.
func (tx *DepositStakeTx) Bytes() []byte {
	var buf bytes.Buffer
	_ = tx.Serialize(&buf)
	return buf.Bytes()
}

// TxID is the content address of the deposit body.
func (tx *DepositStakeTx) TxID() chainhash.Hash {
	return crypto.TxidHash(tx.Bytes())
}

// UnbondStakeTx moves part of a staked account's bonded balance into its
// unbonded balance.
type UnbondStakeTx struct {
	From       RedeemAddress
	Nonce      uint64
	Value      coin.Coin
	Attributes TxAttributes
}

// Serialize writes the unbond body in canonical form.
func (tx *UnbondStakeTx) Serialize(w io.Writer) error {
	if err := writeUint8(w, SerializationVersion); err != nil {
		return err
	}
	if err := tx.From.Serialize(w); err != nil {
		return err
	}
	if err := writeUint64(w, tx.Nonce); err != nil {
		return err
	}
	if err := writeUint64(w, tx.Value.Units()); err != nil {
		return err
	}
	return tx.Attributes.Serialize(w)
}

// Deserialize reads an unbond body written by Serialize.
func (tx *UnbondStakeTx) Deserialize(r io.Reader) error {
	version, err := readUint8(r)
	if err != nil {
		return err
	}
	if version != SerializationVersion {
		return ErrUnknownVersion
	}
	if err := tx.From.Deserialize(r); err != nil {
		return err
	}
	if tx.Nonce, err = readUint64(r); err != nil {
		return err
	}
	units, err := readUint64(r)
	if err != nil {
		return err
	}
	if tx.Value, err = coin.New(units); err != nil {
		return ErrCorruptPayload
	}
	return tx.Attributes.Deserialize(r)
}

// Bytes returns the canonical serialization of the unbond body.
func (tx *UnbondStakeTx) Bytes() []byte {
	var buf bytes.Buffer
	_ = tx.Serialize(&buf)
	return buf.Bytes()
}

// TxID is the content address of the unbond body.
func (tx *UnbondStakeTx) TxID() chainhash.Hash {
	return crypto.TxidHash(tx.Bytes())
}

// WithdrawUnbondedTx pays a staked account's matured unbonded balance out to
// transfer outputs.
type WithdrawUnbondedTx struct {
	Nonce      uint64
	Outputs    []TxOut
	Attributes TxAttributes
}

// Serialize writes the withdraw body in canonical form.
func (tx *WithdrawUnbondedTx) Serialize(w io.Writer) error {
	if err := writeUint8(w, SerializationVersion); err != nil {
		return err
	}
	if err := writeUint64(w, tx.Nonce); err != nil {
		return err
	}
	if err := writeUint16(w, uint16(len(tx.Outputs))); err != nil {
		return err
	}
	for i := range tx.Outputs {
		if err := tx.Outputs[i].Serialize(w); err != nil {
			return err
		}
	}
	return tx.Attributes.Serialize(w)
}

// Deserialize reads a withdraw body written by Serialize.
func (tx *WithdrawUnbondedTx) Deserialize(r io.Reader) error {
	version, err := readUint8(r)
	if err != nil {
		return err
	}
	if version != SerializationVersion {
		return ErrUnknownVersion
	}
	if tx.Nonce, err = readUint64(r); err != nil {
		return err
	}
	count, err := readUint16(r)
	if err != nil {
		return err
	}
	tx.Outputs = nil
	if count > 0 {
		tx.Outputs = make([]TxOut, count)
		for i := range tx.Outputs {
			if err := tx.Outputs[i].Deserialize(r); err != nil {
				return err
			}
		}
	}
	return tx.Attributes.Deserialize(r)
}

// Bytes returns the canonical serialization of the withdraw body.
func (tx *WithdrawUnbondedTx) Bytes() []byte {
	var buf bytes.Buffer
	_ = tx.Serialize(&buf)
	return buf.Bytes()
}

// TxID is the content address of the withdraw body.
func (tx *WithdrawUnbondedTx) TxID() chainhash.Hash {
	return crypto.TxidHash(tx.Bytes())
}
