// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"encoding/hex"
	"errors"
	"io"
	"sort"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/veilchain/veil/crypto"
)

const (
	// RedeemAddressSize is the width of a staking identity hash.
	RedeemAddressSize = 20

	// TransferHRP is the human-readable part of bech32 transfer addresses.
	TransferHRP = "veil"

	// stakingAddrVersion is the base58check version byte for staking
	// addresses.
	stakingAddrVersion = 0x1c
)

var (
	// ErrInvalidAddress is returned when an address string or payload is
	// malformed.
	ErrInvalidAddress = errors.New("wire: invalid address")
)

// RedeemAddress is the 20-byte hash of a single compressed public key. It
// identifies a staked account.
type RedeemAddress [RedeemAddressSize]byte

// NewRedeemAddress derives the staking identity of a public key:
// RIPEMD160(SHA256(compressed pubkey)).
func NewRedeemAddress(pub *btcec.PublicKey) RedeemAddress {
	var addr RedeemAddress
	copy(addr[:], btcutil.Hash160(pub.SerializeCompressed()))
	return addr
}

// RedeemAddressFromBytes converts a 20-byte slice into a RedeemAddress.
func RedeemAddressFromBytes(b []byte) (RedeemAddress, error) {
	var addr RedeemAddress
	if len(b) != RedeemAddressSize {
		return addr, ErrInvalidAddress
	}
	copy(addr[:], b)
	return addr, nil
}

// String renders the staking address as base58check.
func (a RedeemAddress) String() string {
	payload := make([]byte, 1+RedeemAddressSize)
	payload[0] = stakingAddrVersion
	copy(payload[1:], a[:])
	checksum := chainhash.DoubleHashB(payload)[:4]
	return base58.Encode(append(payload, checksum...))
}

// DecodeRedeemAddress parses a base58check staking address string.
func DecodeRedeemAddress(s string) (RedeemAddress, error) {
	var addr RedeemAddress
	decoded := base58.Decode(s)
	if len(decoded) != 1+RedeemAddressSize+4 {
		return addr, ErrInvalidAddress
	}
	payload := decoded[:1+RedeemAddressSize]
	if payload[0] != stakingAddrVersion {
		return addr, ErrInvalidAddress
	}
	if !bytes.Equal(chainhash.DoubleHashB(payload)[:4], decoded[1+RedeemAddressSize:]) {
		return addr, ErrInvalidAddress
	}
	copy(addr[:], payload[1:])
	return addr, nil
}

// Serialize writes the raw 20 bytes.
func (a *RedeemAddress) Serialize(w io.Writer) error {
	_, err := w.Write(a[:])
	return err
}

// Deserialize reads the raw 20 bytes.
func (a *RedeemAddress) Deserialize(r io.Reader) error {
	_, err := io.ReadFull(r, a[:])
	return err
}

// ExtendedAddr is a transfer destination: the root hash of a merkle tree
// enumerating the authorized M-of-N public-key subsets.
type ExtendedAddr struct {
	Root chainhash.Hash
}

// SubsetLeaf computes the or-tree leaf for a signing subset: the hash of
// the concatenation of the subset's compressed public keys in sorted
// order.
func SubsetLeaf(pubs []*btcec.PublicKey) []byte {
	serialized := make([][]byte, len(pubs))
	for i, pub := range pubs {
		serialized[i] = pub.SerializeCompressed()
	}
	sort.Slice(serialized, func(i, j int) bool {
		return bytes.Compare(serialized[i], serialized[j]) < 0
	})

	var concat []byte
	for _, raw := range serialized {
		concat = append(concat, raw...)
	}
	leaf := crypto.TxidHash(concat)
	return leaf[:]
}

// NewExtendedAddr wraps an or-tree root hash.
func NewExtendedAddr(root chainhash.Hash) ExtendedAddr {
	return ExtendedAddr{Root: root}
}

// String renders the transfer address as bech32 with the "veil" prefix.
func (a ExtendedAddr) String() string {
	conv, err := bech32.ConvertBits(a.Root[:], 8, 5, true)
	if err != nil {
		return ""
	}
	encoded, err := bech32.Encode(TransferHRP, conv)
	if err != nil {
		return ""
	}
	return encoded
}

// DecodeExtendedAddr parses a bech32 transfer address string.
func DecodeExtendedAddr(s string) (ExtendedAddr, error) {
	hrp, data, err := bech32.Decode(s)
	if err != nil || hrp != TransferHRP {
		return ExtendedAddr{}, ErrInvalidAddress
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil || len(raw) != chainhash.HashSize {
		return ExtendedAddr{}, ErrInvalidAddress
	}
	var addr ExtendedAddr
	copy(addr.Root[:], raw)
	return addr, nil
}

// Hex returns the root hash as lowercase hex, useful for store keys.
func (a ExtendedAddr) Hex() string {
	return hex.EncodeToString(a.Root[:])
}

// Serialize writes the raw 32-byte root.
func (a *ExtendedAddr) Serialize(w io.Writer) error {
	return writeHash(w, &a.Root)
}

// Deserialize reads the raw 32-byte root.
func (a *ExtendedAddr) Deserialize(r io.Reader) error {
	var err error
	a.Root, err = readHash(r)
	return err
}
