// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"bytes"
	"errors"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/veilchain/veil/storage"
	"github.com/veilchain/veil/wire"
)

// walletKeyspace domain-separates wallet records.
const walletKeyspace = "wallet"

// record is the sealed per-wallet state: the pinned view key plus the
// monotonically growing key, root-hash, and staking-address sets.
type record struct {
	ViewKey          [33]byte
	PublicKeys       [][33]byte
	RootHashes       []chainhash.Hash
	StakingAddresses []wire.RedeemAddress
}

func (rec *record) serialize(w io.Writer) error {
	if _, err := w.Write(rec.ViewKey[:]); err != nil {
		return err
	}
	counts := []int{len(rec.PublicKeys), len(rec.RootHashes), len(rec.StakingAddresses)}
	for _, count := range counts {
		if _, err := w.Write([]byte{byte(count), byte(count >> 8)}); err != nil {
			return err
		}
	}
	for i := range rec.PublicKeys {
		if _, err := w.Write(rec.PublicKeys[i][:]); err != nil {
			return err
		}
	}
	for i := range rec.RootHashes {
		if _, err := w.Write(rec.RootHashes[i][:]); err != nil {
			return err
		}
	}
	for i := range rec.StakingAddresses {
		if _, err := w.Write(rec.StakingAddresses[i][:]); err != nil {
			return err
		}
	}
	return nil
}

func deserializeRecord(r io.Reader) (*record, error) {
	rec := &record{}
	if _, err := io.ReadFull(r, rec.ViewKey[:]); err != nil {
		return nil, err
	}
	var countBuf [6]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return nil, err
	}
	pubCount := int(countBuf[0]) | int(countBuf[1])<<8
	rootCount := int(countBuf[2]) | int(countBuf[3])<<8
	stakingCount := int(countBuf[4]) | int(countBuf[5])<<8

	rec.PublicKeys = make([][33]byte, pubCount)
	for i := range rec.PublicKeys {
		if _, err := io.ReadFull(r, rec.PublicKeys[i][:]); err != nil {
			return nil, err
		}
	}
	rec.RootHashes = make([]chainhash.Hash, rootCount)
	for i := range rec.RootHashes {
		if _, err := io.ReadFull(r, rec.RootHashes[i][:]); err != nil {
			return nil, err
		}
	}
	rec.StakingAddresses = make([]wire.RedeemAddress, stakingCount)
	for i := range rec.StakingAddresses {
		if _, err := io.ReadFull(r, rec.StakingAddresses[i][:]); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// WalletService persists named wallet records sealed under their
// passphrase. A wallet is created once and only ever grows.
type WalletService struct {
	ss *secureStore
}

// NewWalletService returns a wallet service over the shared wallet store.
func NewWalletService(store storage.Store) *WalletService {
	return &WalletService{ss: newSecureStore(store, walletKeyspace)}
}

// Create registers a new wallet pinned to the given view key. Creating a
// name twice is an invalid-input failure.
func (ws *WalletService) Create(name string, passphrase []byte, viewKey *btcec.PublicKey) error {
	exists, err := ws.ss.Has(name)
	if err != nil {
		return err
	}
	if exists {
		return makeError(ErrInvalidInput, "wallet %q already exists", name)
	}

	rec := &record{}
	copy(rec.ViewKey[:], viewKey.SerializeCompressed())
	return ws.save(name, passphrase, rec)
}

func (ws *WalletService) save(name string, passphrase []byte, rec *record) error {
	var buf bytes.Buffer
	if err := rec.serialize(&buf); err != nil {
		return makeError(ErrStorage, "%v", err)
	}
	return ws.ss.Set(name, passphrase, buf.Bytes())
}

// load unseals a wallet record: a missing name is wallet-not-found, a
// wrong passphrase is permission-denied, never an empty record.
func (ws *WalletService) load(name string, passphrase []byte) (*record, error) {
	raw, err := ws.ss.Get(name, passphrase)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, makeError(ErrWalletNotFound, "wallet %q does not exist", name)
		}
		return nil, err
	}
	rec, err := deserializeRecord(bytes.NewReader(raw))
	if err != nil {
		return nil, makeError(ErrStorage, "corrupt wallet record: %v", err)
	}
	return rec, nil
}

// Names lists the created wallet names.
func (ws *WalletService) Names() ([]string, error) {
	return ws.ss.Names()
}

// ViewKey returns the wallet's pinned view key.
func (ws *WalletService) ViewKey(name string, passphrase []byte) (*btcec.PublicKey, error) {
	rec, err := ws.load(name, passphrase)
	if err != nil {
		return nil, err
	}
	return btcec.ParsePubKey(rec.ViewKey[:])
}

// AddPublicKey appends a public key to the wallet.
func (ws *WalletService) AddPublicKey(name string, passphrase []byte, pub *btcec.PublicKey) error {
	rec, err := ws.load(name, passphrase)
	if err != nil {
		return err
	}
	var entry [33]byte
	copy(entry[:], pub.SerializeCompressed())
	rec.PublicKeys = append(rec.PublicKeys, entry)
	return ws.save(name, passphrase, rec)
}

// PublicKeys returns the wallet's public keys.
func (ws *WalletService) PublicKeys(name string, passphrase []byte) ([]*btcec.PublicKey, error) {
	rec, err := ws.load(name, passphrase)
	if err != nil {
		return nil, err
	}
	pubs := make([]*btcec.PublicKey, 0, len(rec.PublicKeys))
	for i := range rec.PublicKeys {
		pub, err := btcec.ParsePubKey(rec.PublicKeys[i][:])
		if err != nil {
			return nil, makeError(ErrStorage, "corrupt public key: %v", err)
		}
		pubs = append(pubs, pub)
	}
	return pubs, nil
}

// AddRootHash appends a transfer-address root hash to the wallet.
func (ws *WalletService) AddRootHash(name string, passphrase []byte, root chainhash.Hash) error {
	rec, err := ws.load(name, passphrase)
	if err != nil {
		return err
	}
	rec.RootHashes = append(rec.RootHashes, root)
	return ws.save(name, passphrase, rec)
}

// RootHashes returns the wallet's transfer-address root hashes.
func (ws *WalletService) RootHashes(name string, passphrase []byte) ([]chainhash.Hash, error) {
	rec, err := ws.load(name, passphrase)
	if err != nil {
		return nil, err
	}
	return append([]chainhash.Hash(nil), rec.RootHashes...), nil
}

// TransferAddresses returns the wallet's root hashes as transfer addresses.
func (ws *WalletService) TransferAddresses(name string, passphrase []byte) ([]wire.ExtendedAddr, error) {
	roots, err := ws.RootHashes(name, passphrase)
	if err != nil {
		return nil, err
	}
	addrs := make([]wire.ExtendedAddr, len(roots))
	for i, root := range roots {
		addrs[i] = wire.NewExtendedAddr(root)
	}
	return addrs, nil
}

// AddStakingAddress appends a staking address to the wallet's ordered set.
func (ws *WalletService) AddStakingAddress(name string, passphrase []byte, addr wire.RedeemAddress) error {
	rec, err := ws.load(name, passphrase)
	if err != nil {
		return err
	}
	rec.StakingAddresses = append(rec.StakingAddresses, addr)
	return ws.save(name, passphrase, rec)
}

// StakingAddresses returns the wallet's staking addresses in insertion
// order.
func (ws *WalletService) StakingAddresses(name string, passphrase []byte) ([]wire.RedeemAddress, error) {
	rec, err := ws.load(name, passphrase)
	if err != nil {
		return nil, err
	}
	return append([]wire.RedeemAddress(nil), rec.StakingAddresses...), nil
}

// FindPublicKey returns the wallet public key hashing to the given staking
// address, or nil when the wallet holds none.
func (ws *WalletService) FindPublicKey(name string, passphrase []byte, addr wire.RedeemAddress) (*btcec.PublicKey, error) {
	pubs, err := ws.PublicKeys(name, passphrase)
	if err != nil {
		return nil, err
	}
	for _, pub := range pubs {
		if wire.NewRedeemAddress(pub) == addr {
			return pub, nil
		}
	}
	return nil, nil
}

// FindRootHash returns the root hash behind a transfer address if the
// wallet owns it, or nil.
func (ws *WalletService) FindRootHash(name string, passphrase []byte, addr wire.ExtendedAddr) (*chainhash.Hash, error) {
	roots, err := ws.RootHashes(name, passphrase)
	if err != nil {
		return nil, err
	}
	for i := range roots {
		if roots[i] == addr.Root {
			return &roots[i], nil
		}
	}
	return nil, nil
}
