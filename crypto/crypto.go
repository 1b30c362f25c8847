// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package crypto adapts the primitives the Veil ledger is built on: BLAKE2b
// content hashing, secp256k1 key pairs, and BIP340 Schnorr signatures.
package crypto

import (
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	secp "github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/blake2b"
)

// ErrEmptyKeySet is returned when aggregating zero public keys.
var ErrEmptyKeySet = errors.New("crypto: empty key set")

// TxidHash computes the 32-byte BLAKE2b-256 digest of b. Transaction ids,
// merkle nodes, and trie nodes are all addressed by this hash.
func TxidHash(b []byte) chainhash.Hash {
	return chainhash.Hash(blake2b.Sum256(b))
}

// NewKeyPair generates a fresh secp256k1 key pair.
func NewKeyPair() (*btcec.PrivateKey, *btcec.PublicKey, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, nil, err
	}
	return priv, priv.PubKey(), nil
}

// SchnorrSign produces a BIP340 Schnorr signature over the 32-byte message
// digest.
func SchnorrSign(priv *btcec.PrivateKey, msg *chainhash.Hash) (*schnorr.Signature, error) {
	return schnorr.Sign(priv, msg[:])
}

// SchnorrVerify reports whether sig is a valid BIP340 Schnorr signature over
// msg by the given public key.
func SchnorrVerify(pub *btcec.PublicKey, msg *chainhash.Hash, sig *schnorr.Signature) bool {
	return sig.Verify(msg[:], pub)
}

// AggregateKeys sums a set of public keys and returns the x-only form the
// set's aggregated Schnorr signature verifies against.
func AggregateKeys(pubs []*btcec.PublicKey) (*btcec.PublicKey, error) {
	if len(pubs) == 0 {
		return nil, ErrEmptyKeySet
	}
	var agg secp.JacobianPoint
	for _, pub := range pubs {
		var p secp.JacobianPoint
		pub.AsJacobian(&p)
		secp.AddNonConst(&agg, &p, &agg)
	}
	agg.ToAffine()
	xBytes := agg.X.Bytes()
	return schnorr.ParsePubKey(xBytes[:])
}
