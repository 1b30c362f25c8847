// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"

	"github.com/veilchain/veil/coin"
	"github.com/veilchain/veil/crypto"
	"github.com/veilchain/veil/storage"
	"github.com/veilchain/veil/wallet/index"
	"github.com/veilchain/veil/wire"
)

var passphrase = []byte("passphrase")

// newStorageClient builds a storage-only client over a fresh memory store.
func newStorageClient(t *testing.T) (*DefaultClient, storage.Store) {
	t.Helper()
	store := storage.NewMemStore()
	client, err := NewClientBuilder().WithStorage(store).Build()
	require.NoError(t, err)
	return client, store
}

// newFullClient builds a storage+index+write client sharing the store.
func newFullClient(t *testing.T, store storage.Store, idx index.Index) *DefaultClient {
	t.Helper()
	readOnly, err := NewClientBuilder().WithStorage(store).Build()
	require.NoError(t, err)

	keys, wallets, roots := readOnly.Services()
	signer := NewSigner(keys, wallets, roots)
	builder := NewDefaultBuilder(signer, ZeroFee{}, MockCipher{})

	client, err := NewClientBuilder().
		WithStorage(store).
		WithIndex(idx).
		WithBuilder(builder).
		Build()
	require.NoError(t, err)
	return client
}

func TestWalletFlow(t *testing.T) {
	client, _ := newStorageClient(t)

	// Reads before creation fail with wallet-not-found.
	_, err := client.TransferAddresses("w1", passphrase)
	require.ErrorIs(t, err, ErrWalletNotFound)

	require.NoError(t, client.NewWallet("w1", passphrase))

	addrs, err := client.TransferAddresses("w1", passphrase)
	require.NoError(t, err)
	require.Empty(t, addrs)

	names, err := client.Wallets()
	require.NoError(t, err)
	require.Equal(t, []string{"w1"}, names)

	addr, err := client.NewTransferAddress("w1", passphrase)
	require.NoError(t, err)

	addrs, err = client.TransferAddresses("w1", passphrase)
	require.NoError(t, err)
	require.Equal(t, []wire.ExtendedAddr{addr}, addrs)

	root, err := client.FindRootHash("w1", passphrase, addr)
	require.NoError(t, err)
	require.NotNil(t, root)
	require.Equal(t, addr.Root, *root)
}

func TestWrongPassphraseDenied(t *testing.T) {
	client, _ := newStorageClient(t)
	require.NoError(t, client.NewWallet("w1", passphrase))

	_, err := client.TransferAddresses("w1", []byte("wrong"))
	require.ErrorIs(t, err, ErrPermissionDenied)

	_, err = client.PublicKeys("w1", []byte("wrong"))
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestDuplicateWalletRejected(t *testing.T) {
	client, _ := newStorageClient(t)
	require.NoError(t, client.NewWallet("w1", passphrase))
	require.ErrorIs(t, client.NewWallet("w1", passphrase), ErrInvalidInput)
}

func TestUnauthorizedClient(t *testing.T) {
	client, err := NewClientBuilder().Build()
	require.NoError(t, err)

	_, err = client.Wallets()
	require.ErrorIs(t, err, ErrPermissionDenied)
	require.ErrorIs(t, client.NewWallet("w1", passphrase), ErrPermissionDenied)
	_, err = client.Balance("w1", passphrase)
	require.ErrorIs(t, err, ErrPermissionDenied)
	err = client.BroadcastTransaction(&wire.TxAux{})
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestWriteRequiresIndex(t *testing.T) {
	store := storage.NewMemStore()
	readOnly, err := NewClientBuilder().WithStorage(store).Build()
	require.NoError(t, err)
	keys, wallets, roots := readOnly.Services()
	builder := NewDefaultBuilder(NewSigner(keys, wallets, roots), ZeroFee{}, MockCipher{})

	_, err = NewClientBuilder().WithStorage(store).WithBuilder(builder).Build()
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewClientBuilder().WithBuilder(builder).Build()
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestReadOnlyClientCannotSpend(t *testing.T) {
	client, _ := newStorageClient(t)
	require.NoError(t, client.NewWallet("w1", passphrase))

	_, err := client.Balance("w1", passphrase)
	require.ErrorIs(t, err, ErrPermissionDenied)

	_, err = client.CreateTransaction("w1", passphrase, nil,
		wire.NewTxAttributes(0xab), SelectLargestFirst, wire.ExtendedAddr{})
	require.ErrorIs(t, err, ErrPermissionDenied)
}

// setupTransferScenario creates three wallets with one transfer address
// each and an index holding a single 30-coin UTXO at wallet_2's address.
func setupTransferScenario(t *testing.T) (*DefaultClient, *index.MemoryIndex, [3]wire.ExtendedAddr) {
	t.Helper()

	store := storage.NewMemStore()
	idx := index.NewMemoryIndex()
	client := newFullClient(t, store, idx)

	var addrs [3]wire.ExtendedAddr
	for i, name := range []string{"wallet_1", "wallet_2", "wallet_3"} {
		require.NoError(t, client.NewWallet(name, passphrase))
		addr, err := client.NewTransferAddress(name, passphrase)
		require.NoError(t, err)
		addrs[i] = addr
	}

	var seedTxID chainhash.Hash
	for i := range seedTxID {
		seedTxID[i] = 0x01
	}
	require.NoError(t, idx.SeedUTXO(
		wire.NewTxoPointer(seedTxID, 0),
		wire.NewTxOut(addrs[1], 30),
		1,
	))
	return client, idx, addrs
}

func TestTransferFlow(t *testing.T) {
	client, _, addrs := setupTransferScenario(t)

	balance, err := client.Balance("wallet_2", passphrase)
	require.NoError(t, err)
	require.Equal(t, coin.Coin(30), balance)

	balance, err = client.Balance("wallet_3", passphrase)
	require.NoError(t, err)
	require.Equal(t, coin.Zero(), balance)

	aux, err := client.CreateTransaction("wallet_2", passphrase,
		[]wire.TxOut{wire.NewTxOut(addrs[2], 30)},
		wire.NewTxAttributes(0xab), SelectLargestFirst, addrs[0])
	require.NoError(t, err)
	require.True(t, aux.IsTransfer())

	require.NoError(t, client.BroadcastTransaction(aux))

	balance, err = client.Balance("wallet_2", passphrase)
	require.NoError(t, err)
	require.Equal(t, coin.Zero(), balance)

	balance, err = client.Balance("wallet_3", passphrase)
	require.NoError(t, err)
	require.Equal(t, coin.Coin(30), balance)

	// The spend shows up in both histories.
	history, err := client.History("wallet_2", passphrase)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, index.Incoming, history[0].Change.Direction)
	require.Equal(t, index.Outgoing, history[1].Change.Direction)

	history, err = client.History("wallet_3", passphrase)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, index.Incoming, history[0].Change.Direction)
}

func TestTransferInsufficientBalance(t *testing.T) {
	client, _, addrs := setupTransferScenario(t)

	_, err := client.CreateTransaction("wallet_2", passphrase,
		[]wire.TxOut{wire.NewTxOut(addrs[2], 31)},
		wire.NewTxAttributes(0xab), SelectLargestFirst, addrs[0])
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestTransferWithChange(t *testing.T) {
	client, idx, addrs := setupTransferScenario(t)

	aux, err := client.CreateTransaction("wallet_2", passphrase,
		[]wire.TxOut{wire.NewTxOut(addrs[2], 20)},
		wire.NewTxAttributes(0xab), SelectLargestFirst, addrs[0])
	require.NoError(t, err)
	require.NoError(t, client.BroadcastTransaction(aux))

	// 20 to wallet_3, 10 back to wallet_1 as change.
	balance, err := client.Balance("wallet_3", passphrase)
	require.NoError(t, err)
	require.Equal(t, coin.Coin(20), balance)

	balance, err = client.Balance("wallet_1", passphrase)
	require.NoError(t, err)
	require.Equal(t, coin.Coin(10), balance)

	// The change output is resolvable through the index.
	details, err := idx.AddressDetails(addrs[0])
	require.NoError(t, err)
	require.Len(t, details.UnspentTransactions, 1)
}

func TestMultiSigAddressGeneration(t *testing.T) {
	client, _ := newStorageClient(t)
	require.NoError(t, client.NewWallet("name", passphrase))

	pub1, err := client.NewPublicKey("name", passphrase)
	require.NoError(t, err)
	pub2, err := client.NewPublicKey("name", passphrase)
	require.NoError(t, err)
	pub3, err := client.NewPublicKey("name", passphrase)
	require.NoError(t, err)
	pubs := []*btcec.PublicKey{pub1, pub2, pub3}

	addr, err := client.NewMultiSigTransferAddress("name", passphrase, pubs, pub1, 2, 3)
	require.NoError(t, err)

	addrs, err := client.TransferAddresses("name", passphrase)
	require.NoError(t, err)
	require.Len(t, addrs, 1)

	root, err := client.FindRootHash("name", passphrase, addr)
	require.NoError(t, err)
	require.NotNil(t, root)

	required, err := client.RequiredCosigners("name", passphrase, *root)
	require.NoError(t, err)
	require.Equal(t, 2, required)
}

func TestMultiSigInvalidParameters(t *testing.T) {
	client, _ := newStorageClient(t)
	require.NoError(t, client.NewWallet("name", passphrase))

	pub1, err := client.NewPublicKey("name", passphrase)
	require.NoError(t, err)
	pub2, err := client.NewPublicKey("name", passphrase)
	require.NoError(t, err)
	_, strangerPub, err := crypto.NewKeyPair()
	require.NoError(t, err)

	pubs := []*btcec.PublicKey{pub1, pub2}

	// m > n.
	_, err = client.NewMultiSigTransferAddress("name", passphrase, pubs, pub1, 3, 2)
	require.ErrorIs(t, err, ErrInvalidInput)

	// n does not match the key count.
	_, err = client.NewMultiSigTransferAddress("name", passphrase, pubs, pub1, 1, 3)
	require.ErrorIs(t, err, ErrInvalidInput)

	// Self not among the signers.
	_, err = client.NewMultiSigTransferAddress("name", passphrase, pubs, strangerPub, 1, 2)
	require.ErrorIs(t, err, ErrInvalidInput)
}

// TestMultiSigSigning runs the full 2-of-3 protocol between two cosigners
// and verifies the aggregated signature plus inclusion proof against the
// address.
func TestMultiSigSigning(t *testing.T) {
	client, _ := newStorageClient(t)
	require.NoError(t, client.NewWallet("name", passphrase))

	pub1, err := client.NewPublicKey("name", passphrase)
	require.NoError(t, err)
	pub2, err := client.NewPublicKey("name", passphrase)
	require.NoError(t, err)
	pub3, err := client.NewPublicKey("name", passphrase)
	require.NoError(t, err)
	pubs := []*btcec.PublicKey{pub1, pub2, pub3}

	addr, err := client.NewMultiSigTransferAddress("name", passphrase, pubs, pub1, 2, 3)
	require.NoError(t, err)

	message := crypto.TxidHash([]byte("transfer body"))
	signers := []*btcec.PublicKey{pub1, pub2}

	// One local session per cosigner; both live in the same store under
	// distinct ids.
	session1, err := client.NewMultiSigSession("name", passphrase, message, signers, pub1)
	require.NoError(t, err)
	session2, err := client.NewMultiSigSession("name", passphrase, message, signers, pub2)
	require.NoError(t, err)
	require.NotEqual(t, session1, session2)

	commitment1, err := client.NonceCommitment(session1, passphrase)
	require.NoError(t, err)
	commitment2, err := client.NonceCommitment(session2, passphrase)
	require.NoError(t, err)
	require.NoError(t, client.AddNonceCommitment(session1, passphrase, commitment2, pub2))
	require.NoError(t, client.AddNonceCommitment(session2, passphrase, commitment1, pub1))

	nonce1, err := client.Nonce(session1, passphrase)
	require.NoError(t, err)
	nonce2, err := client.Nonce(session2, passphrase)
	require.NoError(t, err)
	require.NoError(t, client.AddNonce(session1, passphrase, nonce2, pub2))
	require.NoError(t, client.AddNonce(session2, passphrase, nonce1, pub1))

	partial1, err := client.PartialSignature(session1, passphrase)
	require.NoError(t, err)
	partial2, err := client.PartialSignature(session2, passphrase)
	require.NoError(t, err)
	require.NoError(t, client.AddPartialSignature(session1, passphrase, partial2, pub2))
	require.NoError(t, client.AddPartialSignature(session2, passphrase, partial1, pub1))

	sig, err := client.Signature(session1, passphrase)
	require.NoError(t, err)

	proof, err := client.GenerateProof("name", passphrase, addr, signers)
	require.NoError(t, err)

	// The aggregated signature plus the subset's inclusion proof
	// authorize the spend from the or-tree address.
	witness := wire.NewTreeSigWitness(sig.Serialize(), signers, proof)
	require.True(t, witness.Verify(&message, addr))
}

func TestSchnorrSignatureWithProof(t *testing.T) {
	client, _ := newStorageClient(t)
	require.NoError(t, client.NewWallet("name", passphrase))

	pub1, err := client.NewPublicKey("name", passphrase)
	require.NoError(t, err)
	pub2, err := client.NewPublicKey("name", passphrase)
	require.NoError(t, err)
	pub3, err := client.NewPublicKey("name", passphrase)
	require.NoError(t, err)
	pubs := []*btcec.PublicKey{pub1, pub2, pub3}

	addr, err := client.NewMultiSigTransferAddress("name", passphrase, pubs, pub1, 1, 3)
	require.NoError(t, err)

	message := crypto.TxidHash([]byte("spend"))
	sig, err := client.SchnorrSignature("name", passphrase, message, pub1)
	require.NoError(t, err)

	proof, err := client.GenerateProof("name", passphrase, addr, []*btcec.PublicKey{pub1})
	require.NoError(t, err)

	witness := wire.NewTreeSigWitness(sig.Serialize(), []*btcec.PublicKey{pub1}, proof)
	require.True(t, witness.Verify(&message, addr))
}

func TestKeyServicePrivateKey(t *testing.T) {
	store := storage.NewMemStore()
	keys := NewKeyService(store)

	pub, err := keys.GenerateKeyPair(passphrase)
	require.NoError(t, err)

	priv, err := keys.PrivateKey(pub, passphrase)
	require.NoError(t, err)
	require.True(t, priv.PubKey().IsEqual(pub))

	_, err = keys.PrivateKey(pub, []byte("wrong"))
	require.ErrorIs(t, err, ErrPermissionDenied)

	_, stranger, err := crypto.NewKeyPair()
	require.NoError(t, err)
	_, err = keys.PrivateKey(stranger, passphrase)
	require.ErrorIs(t, err, ErrPrivateKeyNotFound)
}

func TestKeyServiceDerivation(t *testing.T) {
	store := storage.NewMemStore()
	keys := NewKeyService(store)

	pub1, err := keys.DeriveKeyPair(passphrase, 0, 0)
	require.NoError(t, err)
	pub2, err := keys.DeriveKeyPair(passphrase, 0, 0)
	require.NoError(t, err)
	require.True(t, pub1.IsEqual(pub2))

	pub3, err := keys.DeriveKeyPair(passphrase, 0, 1)
	require.NoError(t, err)
	require.False(t, pub1.IsEqual(pub3))

	// Derived keys are sealed like generated ones.
	priv, err := keys.PrivateKey(pub1, passphrase)
	require.NoError(t, err)
	require.True(t, priv.PubKey().IsEqual(pub1))
}

func TestSessionNotFound(t *testing.T) {
	client, _ := newStorageClient(t)
	_, err := client.NonceCommitment(crypto.TxidHash([]byte("bogus")), passphrase)
	require.ErrorIs(t, err, ErrNotFound)
}
