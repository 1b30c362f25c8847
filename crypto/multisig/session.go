// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package multisig drives the interactive three-round Schnorr aggregation
// protocol: commit to a nonce, reveal it, exchange partial signatures. A
// completed session yields a single BIP340 signature verifiable against the
// sum of the signer public keys.
//
// A round may only advance when every expected contribution is present;
// contributions arriving out of round are rejected. Re-submitting identical
// material is idempotent, while conflicting material — like any failed
// verification — is fatal to the session.
package multisig

import (
	"bytes"
	"errors"
	"io"
	"sort"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	secp "github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/veilchain/veil/crypto"
)

// State is the session's progress through the protocol.
type State uint8

const (
	// StateInit collects nonce commitments.
	StateInit State = iota

	// StateCommitsCollected has every commitment; nonces are revealed.
	StateCommitsCollected

	// StateNoncesCollected has every verified nonce; partials are
	// exchanged.
	StateNoncesCollected

	// StatePartialsCollected has every verified partial; the signature
	// can be aggregated.
	StatePartialsCollected

	// StateDone has produced a verified aggregated signature.
	StateDone

	// StateFailed is terminal: a verification failed or conflicting
	// material arrived.
	StateFailed
)

var (
	// ErrSignerNotFound is returned for contributions from a key outside
	// the signing subset.
	ErrSignerNotFound = errors.New("multisig: signer not in session")

	// ErrSelfNotSigner is returned when the session owner's key is not
	// part of the signing subset.
	ErrSelfNotSigner = errors.New("multisig: own key not in signer set")

	// ErrNonceNotReady is returned when a nonce operation arrives before
	// the commitment round is complete.
	ErrNonceNotReady = errors.New("multisig: nonce commitments not complete")

	// ErrPartialNotReady is returned when a partial-signature operation
	// arrives before the nonce round is complete.
	ErrPartialNotReady = errors.New("multisig: revealed nonces not complete")

	// ErrSignatureNotReady is returned when the aggregated signature is
	// requested before every partial is in.
	ErrSignatureNotReady = errors.New("multisig: partial signatures not complete")

	// ErrInvalidNonce is returned when a revealed nonce does not match
	// its commitment.
	ErrInvalidNonce = errors.New("multisig: nonce does not match commitment")

	// ErrInvalidPartialSig is returned when a partial signature fails
	// verification.
	ErrInvalidPartialSig = errors.New("multisig: invalid partial signature")

	// ErrInvalidSignature is returned when the aggregated signature does
	// not verify.
	ErrInvalidSignature = errors.New("multisig: aggregated signature invalid")

	// ErrConflict is returned when a signer re-submits differing
	// material; the session is aborted.
	ErrConflict = errors.New("multisig: conflicting contribution")

	// ErrSessionFailed is returned for any operation on an aborted
	// session.
	ErrSessionFailed = errors.New("multisig: session failed")

	// ErrCorruptSession is returned when deserializing a malformed
	// session blob.
	ErrCorruptSession = errors.New("multisig: corrupt session encoding")
)

// signer tracks one participant's contributions.
type signer struct {
	pub        *btcec.PublicKey
	commitment *chainhash.Hash
	nonce      *btcec.PublicKey
	partial    *secp.ModNScalar
}

// Session is one signer's local view of an aggregation run. A session is
// mutated by at most one goroutine at a time.
type Session struct {
	id      chainhash.Hash
	message chainhash.Hash

	selfPub   *btcec.PublicKey
	selfPriv  *btcec.PrivateKey
	selfNonce *btcec.PrivateKey

	signers []*signer
	state   State
}

// NewSession starts a session for the given message among the signer
// subset. The id is a local handle: it commits to the message, the ordered
// subset, and the owner's key, so cosigners sharing one store keep
// distinct records.
func NewSession(message chainhash.Hash, signerPubs []*btcec.PublicKey,
	selfPub *btcec.PublicKey, selfPriv *btcec.PrivateKey) (*Session, error) {

	sorted := make([]*btcec.PublicKey, len(signerPubs))
	copy(sorted, signerPubs)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(
			sorted[i].SerializeCompressed(),
			sorted[j].SerializeCompressed(),
		) < 0
	})

	s := &Session{message: message, selfPub: selfPub, selfPriv: selfPriv}
	selfFound := false
	idPreimage := message[:]
	for _, pub := range sorted {
		s.signers = append(s.signers, &signer{pub: pub})
		idPreimage = append(idPreimage, pub.SerializeCompressed()...)
		if pub.IsEqual(selfPub) {
			selfFound = true
		}
	}
	if !selfFound {
		return nil, ErrSelfNotSigner
	}
	idPreimage = append(idPreimage, selfPub.SerializeCompressed()...)
	s.id = crypto.TxidHash(idPreimage)
	return s, nil
}

// ID returns the deterministic session id.
func (s *Session) ID() chainhash.Hash {
	return s.id
}

// Message returns the message digest being signed.
func (s *Session) Message() chainhash.Hash {
	return s.message
}

// State returns the session's current state.
func (s *Session) State() State {
	return s.state
}

// PublicKeys returns the ordered signing subset.
func (s *Session) PublicKeys() []*btcec.PublicKey {
	pubs := make([]*btcec.PublicKey, len(s.signers))
	for i, sg := range s.signers {
		pubs[i] = sg.pub
	}
	return pubs
}

func (s *Session) findSigner(pub *btcec.PublicKey) *signer {
	for _, sg := range s.signers {
		if sg.pub.IsEqual(pub) {
			return sg
		}
	}
	return nil
}

func (s *Session) fail() {
	s.state = StateFailed
}

// NonceCommitment generates this signer's nonce on first use and returns
// the commitment H(R) to be shared with the other participants.
func (s *Session) NonceCommitment() (chainhash.Hash, error) {
	if s.state == StateFailed {
		return chainhash.Hash{}, ErrSessionFailed
	}
	if s.selfNonce == nil {
		nonce, err := btcec.NewPrivateKey()
		if err != nil {
			return chainhash.Hash{}, err
		}
		s.selfNonce = nonce
	}
	commitment := nonceCommitment(s.selfNonce.PubKey())
	if err := s.addCommitment(s.selfPub, commitment); err != nil {
		return chainhash.Hash{}, err
	}
	return commitment, nil
}

// AddNonceCommitment absorbs a remote participant's nonce commitment.
func (s *Session) AddNonceCommitment(pub *btcec.PublicKey, commitment chainhash.Hash) error {
	return s.addCommitment(pub, commitment)
}

func (s *Session) addCommitment(pub *btcec.PublicKey, commitment chainhash.Hash) error {
	if s.state == StateFailed {
		return ErrSessionFailed
	}
	sg := s.findSigner(pub)
	if sg == nil {
		return ErrSignerNotFound
	}
	if sg.commitment != nil {
		if *sg.commitment == commitment {
			return nil
		}
		s.fail()
		return ErrConflict
	}
	sg.commitment = &commitment

	if s.state == StateInit && s.allCommitted() {
		s.state = StateCommitsCollected
	}
	return nil
}

func (s *Session) allCommitted() bool {
	for _, sg := range s.signers {
		if sg.commitment == nil {
			return false
		}
	}
	return true
}

// Nonce reveals this signer's public nonce. It is only available once
// every commitment is in.
func (s *Session) Nonce() (*btcec.PublicKey, error) {
	if s.state == StateFailed {
		return nil, ErrSessionFailed
	}
	if s.state < StateCommitsCollected {
		return nil, ErrNonceNotReady
	}
	nonce := s.selfNonce.PubKey()
	if err := s.addNonce(s.selfPub, nonce); err != nil {
		return nil, err
	}
	return nonce, nil
}

// AddNonce absorbs a remote participant's revealed nonce, verifying it
// against the earlier commitment. A mismatch aborts the session.
func (s *Session) AddNonce(pub, nonce *btcec.PublicKey) error {
	if s.state == StateFailed {
		return ErrSessionFailed
	}
	if s.state < StateCommitsCollected {
		return ErrNonceNotReady
	}
	return s.addNonce(pub, nonce)
}

func (s *Session) addNonce(pub, nonce *btcec.PublicKey) error {
	sg := s.findSigner(pub)
	if sg == nil {
		return ErrSignerNotFound
	}
	if sg.nonce != nil {
		if sg.nonce.IsEqual(nonce) {
			return nil
		}
		s.fail()
		return ErrConflict
	}
	if nonceCommitment(nonce) != *sg.commitment {
		s.fail()
		return ErrInvalidNonce
	}
	sg.nonce = nonce

	if s.state == StateCommitsCollected && s.allNoncesRevealed() {
		s.state = StateNoncesCollected
	}
	return nil
}

func (s *Session) allNoncesRevealed() bool {
	for _, sg := range s.signers {
		if sg.nonce == nil {
			return false
		}
	}
	return true
}

// PartialSignature computes this signer's partial signature over the
// session message. It is only available once every nonce is revealed.
func (s *Session) PartialSignature() ([32]byte, error) {
	if s.state == StateFailed {
		return [32]byte{}, ErrSessionFailed
	}
	if s.state < StateNoncesCollected {
		return [32]byte{}, ErrPartialNotReady
	}

	challenge, negR, negX := s.challenge()

	// s_i = r_i + c*x_i, with r_i and x_i negated as needed to normalize
	// the aggregate points to even Y.
	r := s.selfNonce.Key
	if negR {
		r.Negate()
	}
	x := s.selfPriv.Key
	if negX {
		x.Negate()
	}
	partial := new(secp.ModNScalar).Mul2(&challenge, &x).Add(&r)

	var out [32]byte
	partial.PutBytes(&out)
	if err := s.addPartial(s.selfPub, *partial); err != nil {
		return [32]byte{}, err
	}
	return out, nil
}

// AddPartialSignature absorbs and verifies a remote participant's partial
// signature. A failed verification aborts the session.
func (s *Session) AddPartialSignature(pub *btcec.PublicKey, partial [32]byte) error {
	if s.state == StateFailed {
		return ErrSessionFailed
	}
	if s.state < StateNoncesCollected {
		return ErrPartialNotReady
	}

	var scalar secp.ModNScalar
	if overflow := scalar.SetBytes(&partial); overflow != 0 {
		s.fail()
		return ErrInvalidPartialSig
	}
	return s.addPartial(pub, scalar)
}

func (s *Session) addPartial(pub *btcec.PublicKey, partial secp.ModNScalar) error {
	sg := s.findSigner(pub)
	if sg == nil {
		return ErrSignerNotFound
	}
	if sg.partial != nil {
		if sg.partial.Equals(&partial) {
			return nil
		}
		s.fail()
		return ErrConflict
	}

	// Verify s_i*G == R_i + c*P_i against the normalized points.
	challenge, negR, negX := s.challenge()

	var lhs secp.JacobianPoint
	secp.ScalarBaseMultNonConst(&partial, &lhs)
	lhs.ToAffine()

	var ri, pi, cpi, rhs secp.JacobianPoint
	sg.nonce.AsJacobian(&ri)
	if negR {
		negatePoint(&ri)
	}
	sg.pub.AsJacobian(&pi)
	if negX {
		negatePoint(&pi)
	}
	secp.ScalarMultNonConst(&challenge, &pi, &cpi)
	secp.AddNonConst(&ri, &cpi, &rhs)
	rhs.ToAffine()

	if !lhs.X.Equals(&rhs.X) || !lhs.Y.Equals(&rhs.Y) {
		s.fail()
		return ErrInvalidPartialSig
	}
	sg.partial = &partial

	if s.state == StateNoncesCollected && s.allPartialsPresent() {
		s.state = StatePartialsCollected
	}
	return nil
}

func (s *Session) allPartialsPresent() bool {
	for _, sg := range s.signers {
		if sg.partial == nil {
			return false
		}
	}
	return true
}

// Signature aggregates the partial signatures into the final Schnorr
// signature and verifies it against the aggregated public key; a failed
// verification aborts the session.
func (s *Session) Signature() (*schnorr.Signature, error) {
	if s.state == StateFailed {
		return nil, ErrSessionFailed
	}
	if s.state < StatePartialsCollected {
		return nil, ErrSignatureNotReady
	}

	total := new(secp.ModNScalar)
	for _, sg := range s.signers {
		total.Add(sg.partial)
	}

	aggNonce := s.aggregateNonces()
	aggNonce.ToAffine()
	sig := schnorr.NewSignature(&aggNonce.X, total)

	aggKey, err := s.AggregatedPublicKey()
	if err != nil {
		s.fail()
		return nil, err
	}
	if !sig.Verify(s.message[:], aggKey) {
		s.fail()
		return nil, ErrInvalidSignature
	}
	s.state = StateDone
	return sig, nil
}

// AggregatedPublicKey returns the sum of the signer public keys in the
// x-only form the final signature verifies against.
func (s *Session) AggregatedPublicKey() (*btcec.PublicKey, error) {
	agg := s.aggregateKeys()
	agg.ToAffine()
	xBytes := agg.X.Bytes()
	return schnorr.ParsePubKey(xBytes[:])
}

// aggregateKeys sums the signer public keys.
func (s *Session) aggregateKeys() secp.JacobianPoint {
	var agg secp.JacobianPoint
	for _, sg := range s.signers {
		var p secp.JacobianPoint
		sg.pub.AsJacobian(&p)
		secp.AddNonConst(&agg, &p, &agg)
	}
	return agg
}

// aggregateNonces sums the revealed nonces.
func (s *Session) aggregateNonces() secp.JacobianPoint {
	var agg secp.JacobianPoint
	for _, sg := range s.signers {
		var p secp.JacobianPoint
		sg.nonce.AsJacobian(&p)
		secp.AddNonConst(&agg, &p, &agg)
	}
	return agg
}

// challenge computes the BIP340 challenge over the normalized aggregate
// nonce and key, and reports whether the nonce or key sum needed negating
// to reach even Y.
func (s *Session) challenge() (secp.ModNScalar, bool, bool) {
	aggNonce := s.aggregateNonces()
	aggNonce.ToAffine()
	negR := aggNonce.Y.IsOdd()

	aggKey := s.aggregateKeys()
	aggKey.ToAffine()
	negX := aggKey.Y.IsOdd()

	rBytes := aggNonce.X.Bytes()
	xBytes := aggKey.X.Bytes()
	digest := chainhash.TaggedHash(
		chainhash.TagBIP0340Challenge, rBytes[:], xBytes[:], s.message[:],
	)

	var challenge secp.ModNScalar
	challenge.SetByteSlice(digest[:])
	return challenge, negR, negX
}

// nonceCommitment hashes a public nonce for the commit round.
func nonceCommitment(nonce *btcec.PublicKey) chainhash.Hash {
	return crypto.TxidHash(nonce.SerializeCompressed())
}

// negatePoint negates a Jacobian point in place.
func negatePoint(p *secp.JacobianPoint) {
	p.Y.Negate(1)
	p.Y.Normalize()
}

// Serialize writes the session, including its private key material, so the
// owning wallet can seal it at rest.
func (s *Session) Serialize(w io.Writer) error {
	if _, err := w.Write(s.id[:]); err != nil {
		return err
	}
	if _, err := w.Write(s.message[:]); err != nil {
		return err
	}
	if _, err := w.Write(s.selfPub.SerializeCompressed()); err != nil {
		return err
	}
	if _, err := w.Write(s.selfPriv.Serialize()); err != nil {
		return err
	}
	if err := writeOptBytes(w, serializeOptPriv(s.selfNonce)); err != nil {
		return err
	}
	if _, err := w.Write([]byte{byte(s.state), byte(len(s.signers))}); err != nil {
		return err
	}
	for _, sg := range s.signers {
		if _, err := w.Write(sg.pub.SerializeCompressed()); err != nil {
			return err
		}
		var commitment []byte
		if sg.commitment != nil {
			commitment = sg.commitment[:]
		}
		if err := writeOptBytes(w, commitment); err != nil {
			return err
		}
		var nonce []byte
		if sg.nonce != nil {
			nonce = sg.nonce.SerializeCompressed()
		}
		if err := writeOptBytes(w, nonce); err != nil {
			return err
		}
		var partial []byte
		if sg.partial != nil {
			var buf [32]byte
			sg.partial.PutBytes(&buf)
			partial = buf[:]
		}
		if err := writeOptBytes(w, partial); err != nil {
			return err
		}
	}
	return nil
}

// Bytes returns the serialized session.
func (s *Session) Bytes() []byte {
	var buf bytes.Buffer
	_ = s.Serialize(&buf)
	return buf.Bytes()
}

// Deserialize reads a session written by Serialize.
func Deserialize(r io.Reader) (*Session, error) {
	s := &Session{}
	if _, err := io.ReadFull(r, s.id[:]); err != nil {
		return nil, ErrCorruptSession
	}
	if _, err := io.ReadFull(r, s.message[:]); err != nil {
		return nil, ErrCorruptSession
	}

	var pubBuf [33]byte
	if _, err := io.ReadFull(r, pubBuf[:]); err != nil {
		return nil, ErrCorruptSession
	}
	selfPub, err := btcec.ParsePubKey(pubBuf[:])
	if err != nil {
		return nil, ErrCorruptSession
	}
	s.selfPub = selfPub

	var privBuf [32]byte
	if _, err := io.ReadFull(r, privBuf[:]); err != nil {
		return nil, ErrCorruptSession
	}
	s.selfPriv, _ = btcec.PrivKeyFromBytes(privBuf[:])

	nonceRaw, err := readOptBytes(r)
	if err != nil {
		return nil, ErrCorruptSession
	}
	if nonceRaw != nil {
		if len(nonceRaw) != 32 {
			return nil, ErrCorruptSession
		}
		s.selfNonce, _ = btcec.PrivKeyFromBytes(nonceRaw)
	}

	var header [2]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, ErrCorruptSession
	}
	s.state = State(header[0])
	count := int(header[1])

	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(r, pubBuf[:]); err != nil {
			return nil, ErrCorruptSession
		}
		pub, err := btcec.ParsePubKey(pubBuf[:])
		if err != nil {
			return nil, ErrCorruptSession
		}
		sg := &signer{pub: pub}

		commitment, err := readOptBytes(r)
		if err != nil {
			return nil, ErrCorruptSession
		}
		if commitment != nil {
			if len(commitment) != chainhash.HashSize {
				return nil, ErrCorruptSession
			}
			var h chainhash.Hash
			copy(h[:], commitment)
			sg.commitment = &h
		}

		nonce, err := readOptBytes(r)
		if err != nil {
			return nil, ErrCorruptSession
		}
		if nonce != nil {
			if sg.nonce, err = btcec.ParsePubKey(nonce); err != nil {
				return nil, ErrCorruptSession
			}
		}

		partial, err := readOptBytes(r)
		if err != nil {
			return nil, ErrCorruptSession
		}
		if partial != nil {
			if len(partial) != 32 {
				return nil, ErrCorruptSession
			}
			var buf [32]byte
			copy(buf[:], partial)
			scalar := new(secp.ModNScalar)
			if overflow := scalar.SetBytes(&buf); overflow != 0 {
				return nil, ErrCorruptSession
			}
			sg.partial = scalar
		}
		s.signers = append(s.signers, sg)
	}
	return s, nil
}

func serializeOptPriv(priv *btcec.PrivateKey) []byte {
	if priv == nil {
		return nil
	}
	return priv.Serialize()
}

func writeOptBytes(w io.Writer, b []byte) error {
	if b == nil {
		_, err := w.Write([]byte{0})
		return err
	}
	if _, err := w.Write([]byte{1, byte(len(b))}); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readOptBytes(r io.Reader) ([]byte, error) {
	var flag [1]byte
	if _, err := io.ReadFull(r, flag[:]); err != nil {
		return nil, err
	}
	if flag[0] == 0 {
		return nil, nil
	}
	var length [1]byte
	if _, err := io.ReadFull(r, length[:]); err != nil {
		return nil, err
	}
	b := make([]byte, length[0])
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
