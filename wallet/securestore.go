// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"crypto/rand"
	"errors"
	"sort"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/veilchain/veil/storage"
)

// Argon2id parameters for the passphrase KDF.
const (
	kdfTime    = 1
	kdfMemory  = 64 * 1024
	kdfThreads = 4
	saltSize   = 16
)

// secureStore seals service blobs under a passphrase-derived key inside one
// domain-separated keyspace of the shared store. Every record is
// independently salted, so a wrong passphrase fails authentication without
// revealing anything about the contents.
type secureStore struct {
	store    storage.Store
	keyspace string
}

func newSecureStore(store storage.Store, keyspace string) *secureStore {
	return &secureStore{store: store, keyspace: keyspace}
}

// recordKey domain-separates a record name: service || name.
func (s *secureStore) recordKey(name string) []byte {
	return append([]byte(s.keyspace+"/"), []byte(name)...)
}

// namesKey locates the plaintext name list of the keyspace.
func (s *secureStore) namesKey() []byte {
	return []byte(s.keyspace + "!names")
}

// zeroBytes clears secret material once an operation is done with it;
// passphrase-derived keys never outlive a single call.
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// deriveKey runs the passphrase through Argon2id with the record's salt.
func deriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, kdfTime, kdfMemory, kdfThreads,
		chacha20poly1305.KeySize)
}

// seal encrypts plaintext under the passphrase with a fresh salt and nonce.
func seal(passphrase, plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	key := deriveKey(passphrase, salt)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	blob := make([]byte, 0, saltSize+len(nonce)+len(plaintext)+aead.Overhead())
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	return aead.Seal(blob, nonce, plaintext, nil), nil
}

// open decrypts a sealed blob; an authentication failure means a wrong
// passphrase.
func open(passphrase, blob []byte) ([]byte, error) {
	if len(blob) < saltSize+chacha20poly1305.NonceSizeX {
		return nil, makeError(ErrStorage, "sealed blob truncated")
	}
	salt := blob[:saltSize]
	nonce := blob[saltSize : saltSize+chacha20poly1305.NonceSizeX]
	ciphertext := blob[saltSize+chacha20poly1305.NonceSizeX:]

	key := deriveKey(passphrase, salt)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, makeError(ErrPermissionDenied, "passphrase mismatch")
	}
	return plaintext, nil
}

// Get returns the unsealed record, storage.ErrNotFound when absent, or an
// ErrPermissionDenied error under a wrong passphrase.
func (s *secureStore) Get(name string, passphrase []byte) ([]byte, error) {
	blob, err := s.store.Get(storage.ColExtra, s.recordKey(name))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, makeError(ErrStorage, "%v", err)
	}
	return open(passphrase, blob)
}

// Has reports whether a record exists, without touching the passphrase.
func (s *secureStore) Has(name string) (bool, error) {
	ok, err := s.store.Has(storage.ColExtra, s.recordKey(name))
	if err != nil {
		return false, makeError(ErrStorage, "%v", err)
	}
	return ok, nil
}

// Set seals plaintext under the passphrase and writes it, recording the
// name in the keyspace's plaintext name list.
func (s *secureStore) Set(name string, passphrase, plaintext []byte) error {
	blob, err := seal(passphrase, plaintext)
	if err != nil {
		return makeError(ErrStorage, "%v", err)
	}

	names, err := s.Names()
	if err != nil {
		return err
	}
	found := false
	for _, existing := range names {
		if existing == name {
			found = true
			break
		}
	}
	if !found {
		names = append(names, name)
		sort.Strings(names)
	}

	batch := s.store.NewBatch()
	batch.Put(storage.ColExtra, s.recordKey(name), blob)
	batch.Put(storage.ColExtra, s.namesKey(), encodeNames(names))
	if err := s.store.Write(batch); err != nil {
		return makeError(ErrStorage, "%v", err)
	}
	return nil
}

// Delete removes a record and its name-list entry.
func (s *secureStore) Delete(name string) error {
	names, err := s.Names()
	if err != nil {
		return err
	}
	kept := names[:0]
	for _, existing := range names {
		if existing != name {
			kept = append(kept, existing)
		}
	}

	batch := s.store.NewBatch()
	batch.Delete(storage.ColExtra, s.recordKey(name))
	batch.Put(storage.ColExtra, s.namesKey(), encodeNames(kept))
	if err := s.store.Write(batch); err != nil {
		return makeError(ErrStorage, "%v", err)
	}
	return nil
}

// Names lists the record names in the keyspace. Names are not secret; only
// record contents are sealed.
func (s *secureStore) Names() ([]string, error) {
	raw, err := s.store.Get(storage.ColExtra, s.namesKey())
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, makeError(ErrStorage, "%v", err)
	}
	return decodeNames(raw), nil
}

// encodeNames joins names with NUL separators; names never contain NUL.
func encodeNames(names []string) []byte {
	var out []byte
	for i, name := range names {
		if i > 0 {
			out = append(out, 0)
		}
		out = append(out, []byte(name)...)
	}
	return out
}

func decodeNames(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var names []string
	start := 0
	for i, b := range raw {
		if b == 0 {
			names = append(names, string(raw[start:i]))
			start = i + 1
		}
	}
	return append(names, string(raw[start:]))
}
