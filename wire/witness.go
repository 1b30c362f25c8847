// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/veilchain/veil/crypto"
	"github.com/veilchain/veil/crypto/merkle"
)

// Witness kind tags.
const (
	witnessKindRedeem  uint8 = 0
	witnessKindTreeSig uint8 = 1
)

// SchnorrSigSize is the width of a serialized BIP340 signature.
const SchnorrSigSize = 64

// TxInWitness authorizes spending one transaction input.
type TxInWitness interface {
	// Serialize writes the witness, including its kind tag.
	Serialize(w io.Writer) error

	witnessKind() uint8
}

// RedeemWitness authorizes a staking operation with a single Schnorr
// signature by the account key.
type RedeemWitness struct {
	Sig [SchnorrSigSize]byte
}

func (rw *RedeemWitness) witnessKind() uint8 { return witnessKindRedeem }

// Serialize writes the witness in canonical form.
func (rw *RedeemWitness) Serialize(w io.Writer) error {
	if err := writeUint8(w, witnessKindRedeem); err != nil {
		return err
	}
	_, err := w.Write(rw.Sig[:])
	return err
}

// TreeSigWitness authorizes a transfer input: a Schnorr signature by an
// aggregated signing subset, the subset's compressed public keys, and the
// inclusion proof tying the subset's leaf hash to the or-tree root the
// output was paid to. The leaf commits to the keys by hash only, so the
// witness carries the keys themselves for verification.
type TreeSigWitness struct {
	Sig     [SchnorrSigSize]byte
	Pubkeys [][33]byte
	Proof   *merkle.Proof
}

// NewTreeSigWitness pairs a signature and proof with the signing subset.
func NewTreeSigWitness(sig []byte, pubs []*btcec.PublicKey, proof *merkle.Proof) *TreeSigWitness {
	tw := &TreeSigWitness{Proof: proof, Pubkeys: make([][33]byte, len(pubs))}
	copy(tw.Sig[:], sig)
	for i, pub := range pubs {
		copy(tw.Pubkeys[i][:], pub.SerializeCompressed())
	}
	return tw
}

func (tw *TreeSigWitness) witnessKind() uint8 { return witnessKindTreeSig }

// Serialize writes the witness in canonical form.
func (tw *TreeSigWitness) Serialize(w io.Writer) error {
	if err := writeUint8(w, witnessKindTreeSig); err != nil {
		return err
	}
	if _, err := w.Write(tw.Sig[:]); err != nil {
		return err
	}
	if err := writeUint16(w, uint16(len(tw.Pubkeys))); err != nil {
		return err
	}
	for i := range tw.Pubkeys {
		if _, err := w.Write(tw.Pubkeys[i][:]); err != nil {
			return err
		}
	}
	return tw.Proof.Serialize(w)
}

// subsetKeys parses the witness's compressed keys.
func (tw *TreeSigWitness) subsetKeys() ([]*btcec.PublicKey, error) {
	pubs := make([]*btcec.PublicKey, len(tw.Pubkeys))
	for i := range tw.Pubkeys {
		pub, err := btcec.ParsePubKey(tw.Pubkeys[i][:])
		if err != nil {
			return nil, err
		}
		pubs[i] = pub
	}
	return pubs, nil
}

// Verify checks the witness against a message digest and the or-tree
// address the spent output was paid to: the proof leaf must be the hash of
// the carried subset, the proof must commit to the address root, and the
// signature must verify under the subset's aggregated key.
func (tw *TreeSigWitness) Verify(msg *chainhash.Hash, addr ExtendedAddr) bool {
	if tw.Proof == nil || len(tw.Pubkeys) == 0 {
		return false
	}
	pubs, err := tw.subsetKeys()
	if err != nil {
		return false
	}
	if !bytes.Equal(SubsetLeaf(pubs), tw.Proof.Leaf) {
		return false
	}
	if !tw.Proof.Verify(addr.Root) {
		return false
	}
	aggKey, err := crypto.AggregateKeys(pubs)
	if err != nil {
		return false
	}
	sig, err := schnorr.ParseSignature(tw.Sig[:])
	if err != nil {
		return false
	}
	return crypto.SchnorrVerify(aggKey, msg, sig)
}

// DeserializeTxInWitness reads one witness of any kind.
func DeserializeTxInWitness(r io.Reader) (TxInWitness, error) {
	kind, err := readUint8(r)
	if err != nil {
		return nil, err
	}
	switch kind {
	case witnessKindRedeem:
		rw := &RedeemWitness{}
		if _, err := io.ReadFull(r, rw.Sig[:]); err != nil {
			return nil, err
		}
		return rw, nil
	case witnessKindTreeSig:
		tw := &TreeSigWitness{}
		if _, err := io.ReadFull(r, tw.Sig[:]); err != nil {
			return nil, err
		}
		count, err := readUint16(r)
		if err != nil {
			return nil, err
		}
		tw.Pubkeys = make([][33]byte, count)
		for i := range tw.Pubkeys {
			if _, err := io.ReadFull(r, tw.Pubkeys[i][:]); err != nil {
				return nil, err
			}
		}
		if tw.Proof, err = merkle.DeserializeProof(r); err != nil {
			return nil, err
		}
		return tw, nil
	default:
		return nil, ErrCorruptPayload
	}
}

// TxWitness is the ordered witness list for a transaction, one entry per
// input.
type TxWitness []TxInWitness

// Serialize writes the witness list in canonical form.
func (tw TxWitness) Serialize(w io.Writer) error {
	if err := writeUint16(w, uint16(len(tw))); err != nil {
		return err
	}
	for _, wit := range tw {
		if err := wit.Serialize(w); err != nil {
			return err
		}
	}
	return nil
}

// Bytes returns the canonical serialization of the witness list.
func (tw TxWitness) Bytes() []byte {
	var buf bytes.Buffer
	_ = tw.Serialize(&buf)
	return buf.Bytes()
}

// DeserializeTxWitness reads a witness list written by Serialize.
func DeserializeTxWitness(r io.Reader) (TxWitness, error) {
	count, err := readUint16(r)
	if err != nil {
		return nil, err
	}
	tw := make(TxWitness, count)
	for i := range tw {
		if tw[i], err = DeserializeTxInWitness(r); err != nil {
			return nil, err
		}
	}
	return tw, nil
}
