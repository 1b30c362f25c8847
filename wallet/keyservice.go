// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"encoding/hex"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/veilchain/veil/storage"
)

const (
	// keyKeyspace domain-separates key material from the other wallet
	// services.
	keyKeyspace = "key"

	// masterSeedName locates the sealed HD master seed.
	masterSeedName = "masterseed"

	// hdPurpose is the BIP43 purpose field of the derivation path
	// m / purpose' / 0' / account' / 0 / index.
	hdPurpose = 1815
)

// KeyService generates and guards key pairs. Private keys are sealed under
// the owner's passphrase and never leave the service in clear form except
// through PrivateKey.
type KeyService struct {
	ss *secureStore
}

// NewKeyService returns a key service over the shared wallet store.
func NewKeyService(store storage.Store) *KeyService {
	return &KeyService{ss: newSecureStore(store, keyKeyspace)}
}

func pubName(pub *btcec.PublicKey) string {
	return hex.EncodeToString(pub.SerializeCompressed())
}

// GenerateKeyPair creates a fresh random key pair, seals the private key
// under the passphrase, and returns the public key.
func (ks *KeyService) GenerateKeyPair(passphrase []byte) (*btcec.PublicKey, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	defer zeroBytes(priv.Serialize())

	pub := priv.PubKey()
	if err := ks.ss.Set(pubName(pub), passphrase, priv.Serialize()); err != nil {
		return nil, err
	}
	return pub, nil
}

// DeriveKeyPair deterministically derives the key pair at the given account
// and index from the wallet's HD master seed, creating and sealing the seed
// on first use. The derived private key is sealed like a random one, so
// PrivateKey serves both.
func (ks *KeyService) DeriveKeyPair(passphrase []byte, account, index uint32) (*btcec.PublicKey, error) {
	seed, err := ks.masterSeed(passphrase)
	if err != nil {
		return nil, err
	}
	defer zeroBytes(seed)

	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}
	path := []uint32{
		hdkeychain.HardenedKeyStart + hdPurpose,
		hdkeychain.HardenedKeyStart + 0,
		hdkeychain.HardenedKeyStart + account,
		0,
		index,
	}
	key := master
	for _, child := range path {
		if key, err = key.Derive(child); err != nil {
			return nil, err
		}
	}

	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, err
	}
	pub := priv.PubKey()
	if err := ks.ss.Set(pubName(pub), passphrase, priv.Serialize()); err != nil {
		return nil, err
	}
	return pub, nil
}

// masterSeed unseals the HD seed, generating one on first use.
func (ks *KeyService) masterSeed(passphrase []byte) ([]byte, error) {
	seed, err := ks.ss.Get(masterSeedName, passphrase)
	if err == nil {
		return seed, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	seed, err = hdkeychain.GenerateSeed(hdkeychain.RecommendedSeedLen)
	if err != nil {
		return nil, err
	}
	if err := ks.ss.Set(masterSeedName, passphrase, seed); err != nil {
		return nil, err
	}
	return seed, nil
}

// PrivateKey unseals the private key belonging to pub, or fails with
// ErrPrivateKeyNotFound when none is stored.
func (ks *KeyService) PrivateKey(pub *btcec.PublicKey, passphrase []byte) (*btcec.PrivateKey, error) {
	raw, err := ks.ss.Get(pubName(pub), passphrase)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, makeError(ErrPrivateKeyNotFound, "no key stored for %s", pubName(pub))
		}
		return nil, err
	}
	defer zeroBytes(raw)

	priv, _ := btcec.PrivKeyFromBytes(raw)
	return priv, nil
}
