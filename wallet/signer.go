// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/veilchain/veil/crypto"
	"github.com/veilchain/veil/wire"
)

// Signer produces input witnesses for transfer addresses the wallet can
// sign for on its own: addresses whose or-tree authorizes a single wallet
// key. Thresholds above one go through a multisig session instead.
type Signer struct {
	keys    *KeyService
	wallets *WalletService
	roots   *RootHashService
}

// NewSigner returns a signer over the wallet's services.
func NewSigner(keys *KeyService, wallets *WalletService, roots *RootHashService) *Signer {
	return &Signer{keys: keys, wallets: wallets, roots: roots}
}

// SignInput builds the tree witness for one input owned by addr: a Schnorr
// signature over the transaction digest by a wallet key the address
// authorizes alone, plus that key's inclusion proof.
func (sg *Signer) SignInput(name string, passphrase []byte, message chainhash.Hash,
	addr wire.ExtendedAddr) (wire.TxInWitness, error) {

	pubs, err := sg.wallets.PublicKeys(name, passphrase)
	if err != nil {
		return nil, err
	}

	for _, pub := range pubs {
		proof, err := sg.roots.GenerateProof(addr.Root, []*btcec.PublicKey{pub}, passphrase)
		if err != nil {
			// Not a sole authorized signer for this address; keep
			// looking.
			continue
		}

		priv, err := sg.keys.PrivateKey(pub, passphrase)
		if err != nil {
			return nil, err
		}
		sig, err := crypto.SchnorrSign(priv, &message)
		if err != nil {
			return nil, makeError(ErrStorage, "signing failed: %v", err)
		}

		subset := []*btcec.PublicKey{pub}
		return wire.NewTreeSigWitness(sig.Serialize(), subset, proof), nil
	}
	return nil, makeError(ErrInvalidInput,
		"no wallet key can sign alone for address %s", addr)
}
