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

// TxAccess enumerates what a view key is allowed to see of a transaction.
type TxAccess uint8

const (
	// AccessAllData grants the view key visibility of the full
	// transaction.
	AccessAllData TxAccess = 0
)

// TxAccessPolicy grants a single view key access to transaction data.
type TxAccessPolicy struct {
	ViewKey [33]byte
	Access  TxAccess
}

// Serialize writes the policy in canonical form.
func (p *TxAccessPolicy) Serialize(w io.Writer) error {
	if _, err := w.Write(p.ViewKey[:]); err != nil {
		return err
	}
	return writeUint8(w, uint8(p.Access))
}

// Deserialize reads a policy written by Serialize.
func (p *TxAccessPolicy) Deserialize(r io.Reader) error {
	if _, err := io.ReadFull(r, p.ViewKey[:]); err != nil {
		return err
	}
	access, err := readUint8(r)
	if err != nil {
		return err
	}
	p.Access = TxAccess(access)
	return nil
}

// TxAttributes carries chain binding and view access for a transaction.
type TxAttributes struct {
	// ChainHexID binds the transaction to one network.
	ChainHexID byte

	// AllowedView lists the view keys permitted to decrypt the
	// transaction.
	AllowedView []TxAccessPolicy
}

// NewTxAttributes returns attributes bound to the given chain id with no
// view access grants.
func NewTxAttributes(chainHexID byte) TxAttributes {
	return TxAttributes{ChainHexID: chainHexID}
}

// Serialize writes the attributes in canonical form.
func (a *TxAttributes) Serialize(w io.Writer) error {
	if err := writeUint8(w, a.ChainHexID); err != nil {
		return err
	}
	if err := writeUint16(w, uint16(len(a.AllowedView))); err != nil {
		return err
	}
	for i := range a.AllowedView {
		if err := a.AllowedView[i].Serialize(w); err != nil {
			return err
		}
	}
	return nil
}

// Deserialize reads attributes written by Serialize.
func (a *TxAttributes) Deserialize(r io.Reader) error {
	var err error
	if a.ChainHexID, err = readUint8(r); err != nil {
		return err
	}
	count, err := readUint16(r)
	if err != nil {
		return err
	}
	a.AllowedView = nil
	if count > 0 {
		a.AllowedView = make([]TxAccessPolicy, count)
		for i := range a.AllowedView {
			if err := a.AllowedView[i].Deserialize(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// TxoPointer references a prior transaction output by id and index.
type TxoPointer struct {
	TxID  chainhash.Hash
	Index uint16
}

// NewTxoPointer builds a pointer to output idx of transaction id.
func NewTxoPointer(id chainhash.Hash, idx uint16) TxoPointer {
	return TxoPointer{TxID: id, Index: idx}
}

// Serialize writes the pointer in canonical form.
func (p *TxoPointer) Serialize(w io.Writer) error {
	if err := writeHash(w, &p.TxID); err != nil {
		return err
	}
	return writeUint16(w, p.Index)
}

// Deserialize reads a pointer written by Serialize.
func (p *TxoPointer) Deserialize(r io.Reader) error {
	var err error
	if p.TxID, err = readHash(r); err != nil {
		return err
	}
	p.Index, err = readUint16(r)
	return err
}

// TxOut is a transfer output: a destination, a value, and an optional
// timelock before which it may not be spent.
type TxOut struct {
	Address   ExtendedAddr
	Value     coin.Coin
	ValidFrom *int64
}

// NewTxOut builds an output with no timelock.
func NewTxOut(addr ExtendedAddr, value coin.Coin) TxOut {
	return TxOut{Address: addr, Value: value}
}

// Serialize writes the output in canonical form.
func (o *TxOut) Serialize(w io.Writer) error {
	if err := o.Address.Serialize(w); err != nil {
		return err
	}
	if err := writeUint64(w, o.Value.Units()); err != nil {
		return err
	}
	if o.ValidFrom == nil {
		return writeUint8(w, 0)
	}
	if err := writeUint8(w, 1); err != nil {
		return err
	}
	return writeInt64(w, *o.ValidFrom)
}

// Deserialize reads an output written by Serialize.
func (o *TxOut) Deserialize(r io.Reader) error {
	if err := o.Address.Deserialize(r); err != nil {
		return err
	}
	units, err := readUint64(r)
	if err != nil {
		return err
	}
	if o.Value, err = coin.New(units); err != nil {
		return ErrCorruptPayload
	}
	present, err := readUint8(r)
	if err != nil {
		return err
	}
	switch present {
	case 0:
		o.ValidFrom = nil
	case 1:
		ts, err := readInt64(r)
		if err != nil {
			return err
		}
		o.ValidFrom = &ts
	default:
		return ErrCorruptPayload
	}
	return nil
}

// Tx is a plaintext transfer transaction: inputs spending prior outputs and
// fresh outputs carrying value forward.
type Tx struct {
	Inputs     []TxoPointer
	Outputs    []TxOut
	Attributes TxAttributes
}

// NewTx returns an empty transfer transaction bound to the given chain id.
func NewTx(chainHexID byte) *Tx {
	return &Tx{Attributes: NewTxAttributes(chainHexID)}
}

// Serialize writes the transaction in canonical form.
func (tx *Tx) Serialize(w io.Writer) error {
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

// Deserialize reads a transaction written by Serialize.
func (tx *Tx) Deserialize(r io.Reader) error {
	version, err := readUint8(r)
	if err != nil {
		return err
	}
	if version != SerializationVersion {
		return ErrUnknownVersion
	}
	inCount, err := readUint16(r)
	if err != nil {
		return err
	}
	tx.Inputs = nil
	if inCount > 0 {
		tx.Inputs = make([]TxoPointer, inCount)
		for i := range tx.Inputs {
			if err := tx.Inputs[i].Deserialize(r); err != nil {
				return err
			}
		}
	}
	outCount, err := readUint16(r)
	if err != nil {
		return err
	}
	tx.Outputs = nil
	if outCount > 0 {
		tx.Outputs = make([]TxOut, outCount)
		for i := range tx.Outputs {
			if err := tx.Outputs[i].Deserialize(r); err != nil {
				return err
			}
		}
	}
	return tx.Attributes.Deserialize(r)
}

// Bytes returns the canonical serialization of the transaction.
func (tx *Tx) Bytes() []byte {
	var buf bytes.Buffer
	_ = tx.Serialize(&buf)
	return buf.Bytes()
}

// TxID is the content address of the transaction: the BLAKE2b-256 digest of
// its canonical serialization. Identical logical transactions hash to
// identical ids.
func (tx *Tx) TxID() chainhash.Hash {
	return crypto.TxidHash(tx.Bytes())
}
