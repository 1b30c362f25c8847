// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"sort"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/veilchain/veil/coin"
	"github.com/veilchain/veil/crypto"
	"github.com/veilchain/veil/crypto/merkle"
	"github.com/veilchain/veil/storage"
	"github.com/veilchain/veil/wallet/index"
	"github.com/veilchain/veil/wire"
)

// Client is the composite wallet surface: key custody, addresses, multisig
// sessions, and the balance/history/UTXO views synthesized from the Index
// collaborator.
type Client interface {
	// Wallets lists the created wallet names.
	Wallets() ([]string, error)

	// NewWallet creates a wallet, generating and pinning its view key.
	NewWallet(name string, passphrase []byte) error

	// ViewKey returns the wallet's view key.
	ViewKey(name string, passphrase []byte) (*btcec.PublicKey, error)

	// PublicKeys returns the wallet's public keys.
	PublicKeys(name string, passphrase []byte) ([]*btcec.PublicKey, error)

	// RootHashes returns the wallet's transfer-address roots.
	RootHashes(name string, passphrase []byte) ([]chainhash.Hash, error)

	// StakingAddresses returns the wallet's staking addresses.
	StakingAddresses(name string, passphrase []byte) ([]wire.RedeemAddress, error)

	// TransferAddresses returns the wallet's transfer addresses.
	TransferAddresses(name string, passphrase []byte) ([]wire.ExtendedAddr, error)

	// FindPublicKey finds the wallet key behind a staking address.
	FindPublicKey(name string, passphrase []byte, addr wire.RedeemAddress) (*btcec.PublicKey, error)

	// FindRootHash finds the root behind a transfer address the wallet
	// owns.
	FindRootHash(name string, passphrase []byte, addr wire.ExtendedAddr) (*chainhash.Hash, error)

	// PrivateKey releases the private key for one of the wallet's public
	// keys.
	PrivateKey(passphrase []byte, pub *btcec.PublicKey) (*btcec.PrivateKey, error)

	// NewPublicKey generates a key pair and registers it with the
	// wallet.
	NewPublicKey(name string, passphrase []byte) (*btcec.PublicKey, error)

	// NewStakingAddress generates a key and returns its staking
	// address.
	NewStakingAddress(name string, passphrase []byte) (wire.RedeemAddress, error)

	// NewTransferAddress generates a key and wraps it in a 1-of-1
	// transfer address.
	NewTransferAddress(name string, passphrase []byte) (wire.ExtendedAddr, error)

	// NewMultiSigTransferAddress builds an M-of-N transfer address over
	// the given signers, of which self must be one.
	NewMultiSigTransferAddress(name string, passphrase []byte,
		pubs []*btcec.PublicKey, self *btcec.PublicKey, m, n int) (wire.ExtendedAddr, error)

	// GenerateProof proves a signer subset is authorized by a transfer
	// address.
	GenerateProof(name string, passphrase []byte, addr wire.ExtendedAddr,
		pubs []*btcec.PublicKey) (*merkle.Proof, error)

	// RequiredCosigners returns M for a transfer address root.
	RequiredCosigners(name string, passphrase []byte, root chainhash.Hash) (int, error)

	// Balance sums the wallet's balances across its transfer addresses.
	Balance(name string, passphrase []byte) (coin.Coin, error)

	// History merges the wallet's transaction history across its
	// transfer addresses.
	History(name string, passphrase []byte) ([]index.TransactionChange, error)

	// UnspentTransactions gathers the wallet's spendable outputs.
	UnspentTransactions(name string, passphrase []byte) (*UnspentTransactions, error)

	// Output resolves a prior transaction output.
	Output(ptr wire.TxoPointer) (*wire.TxOut, error)

	// CreateTransaction selects inputs, builds, signs, and seals a
	// transfer paying outputs, with change returned to returnAddr.
	CreateTransaction(name string, passphrase []byte, outputs []wire.TxOut,
		attrs wire.TxAttributes, strategy InputSelectionStrategy,
		returnAddr wire.ExtendedAddr) (*wire.TxAux, error)

	// BroadcastTransaction hands a sealed transaction to the network.
	BroadcastTransaction(aux *wire.TxAux) error

	// SchnorrSignature signs a message directly with one wallet key.
	SchnorrSignature(name string, passphrase []byte, message chainhash.Hash,
		pub *btcec.PublicKey) (*schnorr.Signature, error)

	// MultiSig session operations; see MultiSigSessionService.
	NewMultiSigSession(name string, passphrase []byte, message chainhash.Hash,
		signers []*btcec.PublicKey, self *btcec.PublicKey) (chainhash.Hash, error)
	NonceCommitment(id chainhash.Hash, passphrase []byte) (chainhash.Hash, error)
	AddNonceCommitment(id chainhash.Hash, passphrase []byte, commitment chainhash.Hash, pub *btcec.PublicKey) error
	Nonce(id chainhash.Hash, passphrase []byte) (*btcec.PublicKey, error)
	AddNonce(id chainhash.Hash, passphrase []byte, nonce, pub *btcec.PublicKey) error
	PartialSignature(id chainhash.Hash, passphrase []byte) ([32]byte, error)
	AddPartialSignature(id chainhash.Hash, passphrase []byte, partial [32]byte, pub *btcec.PublicKey) error
	Signature(id chainhash.Hash, passphrase []byte) (*schnorr.Signature, error)
}

// DefaultClient ties the wallet services together with the optional Index
// and TransactionBuilder capabilities. A missing capability fails the
// operations needing it with permission-denied.
type DefaultClient struct {
	keys     *KeyService
	wallets  *WalletService
	roots    *RootHashService
	sessions *MultiSigSessionService

	index   index.Index
	builder TransactionBuilder
}

// ClientBuilder assembles a DefaultClient from capabilities. Valid
// combinations are: nothing, storage only, storage+index, and
// storage+index+builder — write implies index.
type ClientBuilder struct {
	store      storage.Store
	index      index.Index
	builder    TransactionBuilder
	storageSet bool
	indexSet   bool
	builderSet bool
}

// NewClientBuilder starts an empty builder.
func NewClientBuilder() *ClientBuilder {
	return &ClientBuilder{}
}

// WithStorage adds wallet storage: address generation and key custody.
func (b *ClientBuilder) WithStorage(store storage.Store) *ClientBuilder {
	b.store = store
	b.storageSet = true
	return b
}

// WithIndex adds balance tracking and transaction history.
func (b *ClientBuilder) WithIndex(idx index.Index) *ClientBuilder {
	b.index = idx
	b.indexSet = true
	return b
}

// WithBuilder adds transaction creation. Broadcasting needs only the index.
func (b *ClientBuilder) WithBuilder(tb TransactionBuilder) *ClientBuilder {
	b.builder = tb
	b.builderSet = true
	return b
}

// Build validates the capability combination and returns the client.
func (b *ClientBuilder) Build() (*DefaultClient, error) {
	valid := (!b.indexSet && !b.builderSet) || (b.storageSet && b.indexSet)
	if !valid {
		return nil, makeError(ErrInvalidInput,
			"transaction write requires wallet storage and an index")
	}

	c := &DefaultClient{index: b.index, builder: b.builder}
	if b.storageSet {
		c.keys = NewKeyService(b.store)
		c.wallets = NewWalletService(b.store)
		c.roots = NewRootHashService(b.store)
		c.sessions = NewMultiSigSessionService(b.store)
	}
	return c, nil
}

// Services exposes the underlying services for composing a Signer; nil
// without storage.
func (c *DefaultClient) Services() (*KeyService, *WalletService, *RootHashService) {
	return c.keys, c.wallets, c.roots
}

func (c *DefaultClient) requireStorage() error {
	if c.wallets == nil {
		return makeError(ErrPermissionDenied, "client built without wallet storage")
	}
	return nil
}

func (c *DefaultClient) requireIndex() error {
	if c.index == nil {
		return makeError(ErrPermissionDenied, "client built without an index")
	}
	return nil
}

func (c *DefaultClient) requireBuilder() error {
	if c.builder == nil {
		return makeError(ErrPermissionDenied, "client built without transaction write")
	}
	return nil
}

// Wallets implements Client.
func (c *DefaultClient) Wallets() ([]string, error) {
	if err := c.requireStorage(); err != nil {
		return nil, err
	}
	return c.wallets.Names()
}

// NewWallet implements Client.
func (c *DefaultClient) NewWallet(name string, passphrase []byte) error {
	if err := c.requireStorage(); err != nil {
		return err
	}
	viewKey, err := c.keys.GenerateKeyPair(passphrase)
	if err != nil {
		return err
	}
	return c.wallets.Create(name, passphrase, viewKey)
}

// ViewKey implements Client.
func (c *DefaultClient) ViewKey(name string, passphrase []byte) (*btcec.PublicKey, error) {
	if err := c.requireStorage(); err != nil {
		return nil, err
	}
	return c.wallets.ViewKey(name, passphrase)
}

// PublicKeys implements Client.
func (c *DefaultClient) PublicKeys(name string, passphrase []byte) ([]*btcec.PublicKey, error) {
	if err := c.requireStorage(); err != nil {
		return nil, err
	}
	return c.wallets.PublicKeys(name, passphrase)
}

// RootHashes implements Client.
func (c *DefaultClient) RootHashes(name string, passphrase []byte) ([]chainhash.Hash, error) {
	if err := c.requireStorage(); err != nil {
		return nil, err
	}
	return c.wallets.RootHashes(name, passphrase)
}

// StakingAddresses implements Client.
func (c *DefaultClient) StakingAddresses(name string, passphrase []byte) ([]wire.RedeemAddress, error) {
	if err := c.requireStorage(); err != nil {
		return nil, err
	}
	return c.wallets.StakingAddresses(name, passphrase)
}

// TransferAddresses implements Client.
func (c *DefaultClient) TransferAddresses(name string, passphrase []byte) ([]wire.ExtendedAddr, error) {
	if err := c.requireStorage(); err != nil {
		return nil, err
	}
	return c.wallets.TransferAddresses(name, passphrase)
}

// FindPublicKey implements Client.
func (c *DefaultClient) FindPublicKey(name string, passphrase []byte, addr wire.RedeemAddress) (*btcec.PublicKey, error) {
	if err := c.requireStorage(); err != nil {
		return nil, err
	}
	return c.wallets.FindPublicKey(name, passphrase, addr)
}

// FindRootHash implements Client.
func (c *DefaultClient) FindRootHash(name string, passphrase []byte, addr wire.ExtendedAddr) (*chainhash.Hash, error) {
	if err := c.requireStorage(); err != nil {
		return nil, err
	}
	return c.wallets.FindRootHash(name, passphrase, addr)
}

// PrivateKey implements Client.
func (c *DefaultClient) PrivateKey(passphrase []byte, pub *btcec.PublicKey) (*btcec.PrivateKey, error) {
	if err := c.requireStorage(); err != nil {
		return nil, err
	}
	return c.keys.PrivateKey(pub, passphrase)
}

// NewPublicKey implements Client.
func (c *DefaultClient) NewPublicKey(name string, passphrase []byte) (*btcec.PublicKey, error) {
	if err := c.requireStorage(); err != nil {
		return nil, err
	}
	// Verify the wallet exists and the passphrase is right before
	// minting a key.
	if _, err := c.wallets.load(name, passphrase); err != nil {
		return nil, err
	}
	pub, err := c.keys.GenerateKeyPair(passphrase)
	if err != nil {
		return nil, err
	}
	if err := c.wallets.AddPublicKey(name, passphrase, pub); err != nil {
		return nil, err
	}
	return pub, nil
}

// NewStakingAddress implements Client.
func (c *DefaultClient) NewStakingAddress(name string, passphrase []byte) (wire.RedeemAddress, error) {
	pub, err := c.NewPublicKey(name, passphrase)
	if err != nil {
		return wire.RedeemAddress{}, err
	}
	addr := wire.NewRedeemAddress(pub)
	if err := c.wallets.AddStakingAddress(name, passphrase, addr); err != nil {
		return wire.RedeemAddress{}, err
	}
	return addr, nil
}

// NewTransferAddress implements Client.
func (c *DefaultClient) NewTransferAddress(name string, passphrase []byte) (wire.ExtendedAddr, error) {
	pub, err := c.NewPublicKey(name, passphrase)
	if err != nil {
		return wire.ExtendedAddr{}, err
	}
	return c.NewMultiSigTransferAddress(name, passphrase,
		[]*btcec.PublicKey{pub}, pub, 1, 1)
}

// NewMultiSigTransferAddress implements Client.
func (c *DefaultClient) NewMultiSigTransferAddress(name string, passphrase []byte,
	pubs []*btcec.PublicKey, self *btcec.PublicKey, m, n int) (wire.ExtendedAddr, error) {

	if err := c.requireStorage(); err != nil {
		return wire.ExtendedAddr{}, err
	}
	// Verifies the wallet exists and the passphrase is right.
	if _, err := c.wallets.load(name, passphrase); err != nil {
		return wire.ExtendedAddr{}, err
	}

	root, err := c.roots.NewRootHash(pubs, self, m, n, passphrase)
	if err != nil {
		return wire.ExtendedAddr{}, err
	}
	if err := c.wallets.AddRootHash(name, passphrase, root); err != nil {
		return wire.ExtendedAddr{}, err
	}
	return wire.NewExtendedAddr(root), nil
}

// GenerateProof implements Client.
func (c *DefaultClient) GenerateProof(name string, passphrase []byte,
	addr wire.ExtendedAddr, pubs []*btcec.PublicKey) (*merkle.Proof, error) {

	if err := c.requireStorage(); err != nil {
		return nil, err
	}
	if _, err := c.wallets.load(name, passphrase); err != nil {
		return nil, err
	}
	return c.roots.GenerateProof(addr.Root, pubs, passphrase)
}

// RequiredCosigners implements Client.
func (c *DefaultClient) RequiredCosigners(name string, passphrase []byte, root chainhash.Hash) (int, error) {
	if err := c.requireStorage(); err != nil {
		return 0, err
	}
	if _, err := c.wallets.load(name, passphrase); err != nil {
		return 0, err
	}
	return c.roots.RequiredSigners(root, passphrase)
}

// Balance implements Client.
func (c *DefaultClient) Balance(name string, passphrase []byte) (coin.Coin, error) {
	if err := c.requireIndex(); err != nil {
		return 0, err
	}
	addrs, err := c.TransferAddresses(name, passphrase)
	if err != nil {
		return 0, err
	}

	total := coin.Zero()
	for _, addr := range addrs {
		details, err := c.index.AddressDetails(addr)
		if err != nil {
			return 0, makeError(ErrStorage, "%v", err)
		}
		if total, err = total.Add(details.Balance); err != nil {
			return 0, makeError(ErrBalanceAddition, "%v", err)
		}
	}
	return total, nil
}

// History implements Client.
func (c *DefaultClient) History(name string, passphrase []byte) ([]index.TransactionChange, error) {
	if err := c.requireIndex(); err != nil {
		return nil, err
	}
	addrs, err := c.TransferAddresses(name, passphrase)
	if err != nil {
		return nil, err
	}

	var history []index.TransactionChange
	for _, addr := range addrs {
		details, err := c.index.AddressDetails(addr)
		if err != nil {
			return nil, makeError(ErrStorage, "%v", err)
		}
		history = append(history, details.TransactionHistory...)
	}
	sort.SliceStable(history, func(i, j int) bool {
		if history[i].Height != history[j].Height {
			return history[i].Height < history[j].Height
		}
		return history[i].Position < history[j].Position
	})
	return history, nil
}

// UnspentTransactions implements Client.
func (c *DefaultClient) UnspentTransactions(name string, passphrase []byte) (*UnspentTransactions, error) {
	if err := c.requireIndex(); err != nil {
		return nil, err
	}
	addrs, err := c.TransferAddresses(name, passphrase)
	if err != nil {
		return nil, err
	}

	var entries []UnspentEntry
	for _, addr := range addrs {
		details, err := c.index.AddressDetails(addr)
		if err != nil {
			return nil, makeError(ErrStorage, "%v", err)
		}
		for ptr, out := range details.UnspentTransactions {
			entries = append(entries, UnspentEntry{Pointer: ptr, Output: out})
		}
	}
	return NewUnspentTransactions(entries), nil
}

// Output implements Client.
func (c *DefaultClient) Output(ptr wire.TxoPointer) (*wire.TxOut, error) {
	if err := c.requireIndex(); err != nil {
		return nil, err
	}
	out, err := c.index.Output(ptr)
	if err != nil {
		return nil, makeError(ErrTransactionNotFound, "%v", err)
	}
	return out, nil
}

// CreateTransaction implements Client.
func (c *DefaultClient) CreateTransaction(name string, passphrase []byte,
	outputs []wire.TxOut, attrs wire.TxAttributes,
	strategy InputSelectionStrategy, returnAddr wire.ExtendedAddr) (*wire.TxAux, error) {

	if err := c.requireBuilder(); err != nil {
		return nil, err
	}
	utxos, err := c.UnspentTransactions(name, passphrase)
	if err != nil {
		return nil, err
	}
	utxos.Apply(strategy)
	return c.builder.Build(name, passphrase, outputs, attrs, utxos, returnAddr)
}

// BroadcastTransaction implements Client.
func (c *DefaultClient) BroadcastTransaction(aux *wire.TxAux) error {
	if err := c.requireIndex(); err != nil {
		return err
	}
	if err := c.index.Broadcast(aux.Bytes()); err != nil {
		return makeError(ErrStorage, "broadcast failed: %v", err)
	}
	log.Debugf("Broadcast transaction %s", aux.TxID)
	return nil
}

// SchnorrSignature implements Client.
func (c *DefaultClient) SchnorrSignature(name string, passphrase []byte,
	message chainhash.Hash, pub *btcec.PublicKey) (*schnorr.Signature, error) {

	if err := c.requireStorage(); err != nil {
		return nil, err
	}
	if _, err := c.wallets.load(name, passphrase); err != nil {
		return nil, err
	}
	priv, err := c.keys.PrivateKey(pub, passphrase)
	if err != nil {
		return nil, err
	}
	return crypto.SchnorrSign(priv, &message)
}

// NewMultiSigSession implements Client.
func (c *DefaultClient) NewMultiSigSession(name string, passphrase []byte,
	message chainhash.Hash, signers []*btcec.PublicKey,
	self *btcec.PublicKey) (chainhash.Hash, error) {

	if err := c.requireStorage(); err != nil {
		return chainhash.Hash{}, err
	}
	if _, err := c.wallets.load(name, passphrase); err != nil {
		return chainhash.Hash{}, err
	}
	selfPriv, err := c.keys.PrivateKey(self, passphrase)
	if err != nil {
		return chainhash.Hash{}, err
	}
	return c.sessions.NewSession(message, signers, self, selfPriv, passphrase)
}

// NonceCommitment implements Client.
func (c *DefaultClient) NonceCommitment(id chainhash.Hash, passphrase []byte) (chainhash.Hash, error) {
	if err := c.requireStorage(); err != nil {
		return chainhash.Hash{}, err
	}
	return c.sessions.NonceCommitment(id, passphrase)
}

// AddNonceCommitment implements Client.
func (c *DefaultClient) AddNonceCommitment(id chainhash.Hash, passphrase []byte,
	commitment chainhash.Hash, pub *btcec.PublicKey) error {

	if err := c.requireStorage(); err != nil {
		return err
	}
	return c.sessions.AddNonceCommitment(id, passphrase, commitment, pub)
}

// Nonce implements Client.
func (c *DefaultClient) Nonce(id chainhash.Hash, passphrase []byte) (*btcec.PublicKey, error) {
	if err := c.requireStorage(); err != nil {
		return nil, err
	}
	return c.sessions.Nonce(id, passphrase)
}

// AddNonce implements Client.
func (c *DefaultClient) AddNonce(id chainhash.Hash, passphrase []byte, nonce, pub *btcec.PublicKey) error {
	if err := c.requireStorage(); err != nil {
		return err
	}
	return c.sessions.AddNonce(id, passphrase, nonce, pub)
}

// PartialSignature implements Client.
func (c *DefaultClient) PartialSignature(id chainhash.Hash, passphrase []byte) ([32]byte, error) {
	if err := c.requireStorage(); err != nil {
		return [32]byte{}, err
	}
	return c.sessions.PartialSignature(id, passphrase)
}

// AddPartialSignature implements Client.
func (c *DefaultClient) AddPartialSignature(id chainhash.Hash, passphrase []byte,
	partial [32]byte, pub *btcec.PublicKey) error {

	if err := c.requireStorage(); err != nil {
		return err
	}
	return c.sessions.AddPartialSignature(id, passphrase, partial, pub)
}

// Signature implements Client.
func (c *DefaultClient) Signature(id chainhash.Hash, passphrase []byte) (*schnorr.Signature, error) {
	if err := c.requireStorage(); err != nil {
		return nil, err
	}
	return c.sessions.Signature(id, passphrase)
}

// Compile-time interface check.
var _ Client = (*DefaultClient)(nil)
