// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"bytes"
	"encoding/hex"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/veilchain/veil/crypto/multisig"
	"github.com/veilchain/veil/storage"
)

// sessionKeyspace domain-separates multisig session records.
const sessionKeyspace = "multisigsession"

// MultiSigSessionService persists multisig sessions sealed under the
// wallet passphrase, loading, advancing, and re-sealing them per
// operation. Sessions stay stored — including failed ones — until
// explicitly discarded.
type MultiSigSessionService struct {
	ss *secureStore
}

// NewMultiSigSessionService returns a session service over the shared
// wallet store.
func NewMultiSigSessionService(store storage.Store) *MultiSigSessionService {
	return &MultiSigSessionService{ss: newSecureStore(store, sessionKeyspace)}
}

func sessionName(id chainhash.Hash) string {
	return hex.EncodeToString(id[:])
}

// NewSession creates and stores a session for signing message among the
// given subset, owning the caller's private key for its duration.
func (ms *MultiSigSessionService) NewSession(message chainhash.Hash,
	signers []*btcec.PublicKey, selfPub *btcec.PublicKey,
	selfPriv *btcec.PrivateKey, passphrase []byte) (chainhash.Hash, error) {

	session, err := multisig.NewSession(message, signers, selfPub, selfPriv)
	if err != nil {
		return chainhash.Hash{}, makeError(ErrInvalidInput, "%v", err)
	}
	if err := ms.save(session, passphrase); err != nil {
		return chainhash.Hash{}, err
	}
	return session.ID(), nil
}

func (ms *MultiSigSessionService) save(session *multisig.Session, passphrase []byte) error {
	return ms.ss.Set(sessionName(session.ID()), passphrase, session.Bytes())
}

func (ms *MultiSigSessionService) load(id chainhash.Hash, passphrase []byte) (*multisig.Session, error) {
	raw, err := ms.ss.Get(sessionName(id), passphrase)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, makeError(ErrNotFound, "unknown session %x", id[:])
		}
		return nil, err
	}
	session, err := multisig.Deserialize(bytes.NewReader(raw))
	if err != nil {
		return nil, makeError(ErrStorage, "corrupt session record: %v", err)
	}
	return session, nil
}

// Discard removes a session.
func (ms *MultiSigSessionService) Discard(id chainhash.Hash) error {
	return ms.ss.Delete(sessionName(id))
}

// step loads a session, applies op, and re-seals the session whether or
// not op succeeded, so aborts persist too.
func (ms *MultiSigSessionService) step(id chainhash.Hash, passphrase []byte,
	op func(*multisig.Session) error) error {

	session, err := ms.load(id, passphrase)
	if err != nil {
		return err
	}
	opErr := op(session)
	if saveErr := ms.save(session, passphrase); saveErr != nil {
		return saveErr
	}
	return opErr
}

// NonceCommitment returns this signer's nonce commitment for the session.
func (ms *MultiSigSessionService) NonceCommitment(id chainhash.Hash, passphrase []byte) (chainhash.Hash, error) {
	var commitment chainhash.Hash
	err := ms.step(id, passphrase, func(s *multisig.Session) error {
		var err error
		commitment, err = s.NonceCommitment()
		return err
	})
	return commitment, err
}

// AddNonceCommitment absorbs a cosigner's nonce commitment.
func (ms *MultiSigSessionService) AddNonceCommitment(id chainhash.Hash, passphrase []byte,
	commitment chainhash.Hash, pub *btcec.PublicKey) error {

	return ms.step(id, passphrase, func(s *multisig.Session) error {
		return s.AddNonceCommitment(pub, commitment)
	})
}

// Nonce reveals this signer's public nonce.
func (ms *MultiSigSessionService) Nonce(id chainhash.Hash, passphrase []byte) (*btcec.PublicKey, error) {
	var nonce *btcec.PublicKey
	err := ms.step(id, passphrase, func(s *multisig.Session) error {
		var err error
		nonce, err = s.Nonce()
		return err
	})
	return nonce, err
}

// AddNonce absorbs a cosigner's revealed nonce.
func (ms *MultiSigSessionService) AddNonce(id chainhash.Hash, passphrase []byte,
	nonce, pub *btcec.PublicKey) error {

	return ms.step(id, passphrase, func(s *multisig.Session) error {
		return s.AddNonce(pub, nonce)
	})
}

// PartialSignature computes this signer's partial signature.
func (ms *MultiSigSessionService) PartialSignature(id chainhash.Hash, passphrase []byte) ([32]byte, error) {
	var partial [32]byte
	err := ms.step(id, passphrase, func(s *multisig.Session) error {
		var err error
		partial, err = s.PartialSignature()
		return err
	})
	return partial, err
}

// AddPartialSignature absorbs and verifies a cosigner's partial signature.
func (ms *MultiSigSessionService) AddPartialSignature(id chainhash.Hash, passphrase []byte,
	partial [32]byte, pub *btcec.PublicKey) error {

	return ms.step(id, passphrase, func(s *multisig.Session) error {
		return s.AddPartialSignature(pub, partial)
	})
}

// Signature aggregates the completed session into its final Schnorr
// signature.
func (ms *MultiSigSessionService) Signature(id chainhash.Hash, passphrase []byte) (*schnorr.Signature, error) {
	var sig *schnorr.Signature
	err := ms.step(id, passphrase, func(s *multisig.Session) error {
		var err error
		sig, err = s.Signature()
		return err
	})
	return sig, err
}
