// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package multisig

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"

	"github.com/veilchain/veil/crypto"
)

// newParticipants generates n key pairs and a session for each.
func newParticipants(t *testing.T, n int) ([]*btcec.PrivateKey, []*btcec.PublicKey, []*Session) {
	t.Helper()

	privs := make([]*btcec.PrivateKey, n)
	pubs := make([]*btcec.PublicKey, n)
	for i := 0; i < n; i++ {
		priv, pub, err := crypto.NewKeyPair()
		require.NoError(t, err)
		privs[i] = priv
		pubs[i] = pub
	}

	message := crypto.TxidHash([]byte("spend it"))
	sessions := make([]*Session, n)
	for i := 0; i < n; i++ {
		session, err := NewSession(message, pubs, pubs[i], privs[i])
		require.NoError(t, err)
		sessions[i] = session
	}
	return privs, pubs, sessions
}

// runToCompletion drives every session through the three rounds.
func runToCompletion(t *testing.T, pubs []*btcec.PublicKey, sessions []*Session) {
	t.Helper()
	n := len(sessions)

	commitments := make([]chainhash.Hash, n)
	for i, s := range sessions {
		c, err := s.NonceCommitment()
		require.NoError(t, err)
		commitments[i] = c
	}
	for i, s := range sessions {
		for j := range sessions {
			if i == j {
				continue
			}
			require.NoError(t, s.AddNonceCommitment(pubs[j], commitments[j]))
		}
		require.Equal(t, StateCommitsCollected, s.State())
	}

	nonces := make([]*btcec.PublicKey, n)
	for i, s := range sessions {
		nonce, err := s.Nonce()
		require.NoError(t, err)
		nonces[i] = nonce
	}
	for i, s := range sessions {
		for j := range sessions {
			if i == j {
				continue
			}
			require.NoError(t, s.AddNonce(pubs[j], nonces[j]))
		}
		require.Equal(t, StateNoncesCollected, s.State())
	}

	partials := make([][32]byte, n)
	for i, s := range sessions {
		partial, err := s.PartialSignature()
		require.NoError(t, err)
		partials[i] = partial
	}
	for i, s := range sessions {
		for j := range sessions {
			if i == j {
				continue
			}
			require.NoError(t, s.AddPartialSignature(pubs[j], partials[j]))
		}
		require.Equal(t, StatePartialsCollected, s.State())
	}
}

func TestTwoPartyCompletion(t *testing.T) {
	_, pubs, sessions := newParticipants(t, 2)
	runToCompletion(t, pubs, sessions)

	sig0, err := sessions[0].Signature()
	require.NoError(t, err)
	require.Equal(t, StateDone, sessions[0].State())

	sig1, err := sessions[1].Signature()
	require.NoError(t, err)
	require.Equal(t, sig0.Serialize(), sig1.Serialize())

	aggKey, err := sessions[0].AggregatedPublicKey()
	require.NoError(t, err)
	message := sessions[0].Message()
	require.True(t, sig0.Verify(message[:], aggKey))
}

func TestThreePartyCompletion(t *testing.T) {
	_, pubs, sessions := newParticipants(t, 3)
	runToCompletion(t, pubs, sessions)

	sig, err := sessions[2].Signature()
	require.NoError(t, err)

	aggKey, err := sessions[2].AggregatedPublicKey()
	require.NoError(t, err)
	message := sessions[2].Message()
	require.True(t, sig.Verify(message[:], aggKey))
}

func TestSessionIDsPerSigner(t *testing.T) {
	// The id is a local handle committing to the owner's key, so
	// cosigners sharing one store keep distinct records.
	_, _, sessions := newParticipants(t, 3)
	require.NotEqual(t, sessions[0].ID(), sessions[1].ID())
	require.NotEqual(t, sessions[1].ID(), sessions[2].ID())
}

func TestSelfMustBeSigner(t *testing.T) {
	priv, _, err := crypto.NewKeyPair()
	require.NoError(t, err)
	_, otherPub, err := crypto.NewKeyPair()
	require.NoError(t, err)

	_, err = NewSession(crypto.TxidHash([]byte("m")), []*btcec.PublicKey{otherPub},
		priv.PubKey(), priv)
	require.ErrorIs(t, err, ErrSelfNotSigner)
}

func TestOutOfRoundRejected(t *testing.T) {
	_, pubs, sessions := newParticipants(t, 2)

	// Nonce reveal before all commitments are in.
	_, err := sessions[0].Nonce()
	require.ErrorIs(t, err, ErrNonceNotReady)

	// Partial before nonces.
	_, err = sessions[0].PartialSignature()
	require.ErrorIs(t, err, ErrPartialNotReady)
	err = sessions[0].AddPartialSignature(pubs[1], [32]byte{1})
	require.ErrorIs(t, err, ErrPartialNotReady)

	// Signature before partials.
	_, err = sessions[0].Signature()
	require.ErrorIs(t, err, ErrSignatureNotReady)
}

func TestUnknownSignerRejected(t *testing.T) {
	_, _, sessions := newParticipants(t, 2)
	_, stranger, err := crypto.NewKeyPair()
	require.NoError(t, err)

	err = sessions[0].AddNonceCommitment(stranger, chainhash.Hash{1})
	require.ErrorIs(t, err, ErrSignerNotFound)
}

func TestInvalidNonceAborts(t *testing.T) {
	_, pubs, sessions := newParticipants(t, 2)

	_, err := sessions[0].NonceCommitment()
	require.NoError(t, err)
	c1, err := sessions[1].NonceCommitment()
	require.NoError(t, err)
	require.NoError(t, sessions[0].AddNonceCommitment(pubs[1], c1))

	// Reveal a nonce that does not match the commitment.
	_, bogusPub, err := crypto.NewKeyPair()
	require.NoError(t, err)
	err = sessions[0].AddNonce(pubs[1], bogusPub)
	require.ErrorIs(t, err, ErrInvalidNonce)
	require.Equal(t, StateFailed, sessions[0].State())

	// The session is dead afterwards.
	_, err = sessions[0].Nonce()
	require.ErrorIs(t, err, ErrSessionFailed)
}

func TestIdempotentAndConflictingResubmission(t *testing.T) {
	_, pubs, sessions := newParticipants(t, 2)

	c0, err := sessions[0].NonceCommitment()
	require.NoError(t, err)
	c1, err := sessions[1].NonceCommitment()
	require.NoError(t, err)

	require.NoError(t, sessions[0].AddNonceCommitment(pubs[1], c1))
	// Identical resubmission is a no-op.
	require.NoError(t, sessions[0].AddNonceCommitment(pubs[1], c1))

	// A differing resubmission aborts.
	require.ErrorIs(t, sessions[0].AddNonceCommitment(pubs[1], c0), ErrConflict)
	require.Equal(t, StateFailed, sessions[0].State())
}

func TestInvalidPartialAborts(t *testing.T) {
	_, pubs, sessions := newParticipants(t, 2)

	c0, err := sessions[0].NonceCommitment()
	require.NoError(t, err)
	c1, err := sessions[1].NonceCommitment()
	require.NoError(t, err)
	require.NoError(t, sessions[0].AddNonceCommitment(pubs[1], c1))
	require.NoError(t, sessions[1].AddNonceCommitment(pubs[0], c0))

	n0, err := sessions[0].Nonce()
	require.NoError(t, err)
	n1, err := sessions[1].Nonce()
	require.NoError(t, err)
	require.NoError(t, sessions[0].AddNonce(pubs[1], n1))
	require.NoError(t, sessions[1].AddNonce(pubs[0], n0))

	err = sessions[0].AddPartialSignature(pubs[1], [32]byte{0x42})
	require.ErrorIs(t, err, ErrInvalidPartialSig)
	require.Equal(t, StateFailed, sessions[0].State())
}

func TestSerializeRoundTripMidProtocol(t *testing.T) {
	_, pubs, sessions := newParticipants(t, 2)

	c0, err := sessions[0].NonceCommitment()
	require.NoError(t, err)
	c1, err := sessions[1].NonceCommitment()
	require.NoError(t, err)
	require.NoError(t, sessions[0].AddNonceCommitment(pubs[1], c1))
	require.NoError(t, sessions[1].AddNonceCommitment(pubs[0], c0))

	restored, err := Deserialize(bytes.NewReader(sessions[0].Bytes()))
	require.NoError(t, err)
	require.Equal(t, sessions[0].ID(), restored.ID())
	require.Equal(t, sessions[0].State(), restored.State())
	require.Equal(t, sessions[0].Bytes(), restored.Bytes())

	// The restored session continues where it left off.
	n1, err := sessions[1].Nonce()
	require.NoError(t, err)
	require.NoError(t, restored.AddNonce(pubs[1], n1))
}
