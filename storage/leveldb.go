// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// LevelStore is a Store backed by a single LevelDB database. Columns are
// mapped to one-byte key prefixes; batches use LevelDB's native write batch
// for atomicity.
type LevelStore struct {
	db *leveldb.DB
}

// OpenLevelStore opens (or creates) a LevelDB database at path.
func OpenLevelStore(path string) (*LevelStore, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{})
	if err != nil {
		return nil, err
	}
	return &LevelStore{db: db}, nil
}

// Get returns the value at (col, key), or ErrNotFound.
func (s *LevelStore) Get(col Column, key []byte) ([]byte, error) {
	if col >= numColumns {
		return nil, ErrInvalidColumn
	}
	value, err := s.db.Get(colKey(col, key), nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Has reports whether (col, key) exists.
func (s *LevelStore) Has(col Column, key []byte) (bool, error) {
	if col >= numColumns {
		return false, ErrInvalidColumn
	}
	return s.db.Has(colKey(col, key), nil)
}

// levelBatch wraps a native LevelDB batch.
type levelBatch struct {
	batch *leveldb.Batch
}

func (b *levelBatch) Put(col Column, key, value []byte) {
	b.batch.Put(colKey(col, key), value)
}

func (b *levelBatch) Delete(col Column, key []byte) {
	b.batch.Delete(colKey(col, key))
}

func (b *levelBatch) Len() int {
	return b.batch.Len()
}

// NewBatch returns an empty write batch.
func (s *LevelStore) NewBatch() Batch {
	return &levelBatch{batch: new(leveldb.Batch)}
}

// Write applies the batch atomically, synced to disk.
func (s *LevelStore) Write(b Batch) error {
	lb, ok := b.(*levelBatch)
	if !ok {
		return ErrForeignBatch
	}
	return s.db.Write(lb.batch, &opt.WriteOptions{Sync: true})
}

// Close closes the underlying database.
func (s *LevelStore) Close() error {
	return s.db.Close()
}
