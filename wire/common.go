// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wire implements the canonical binary encoding of the Veil ledger
// domain model: transactions, outputs, witnesses, staked account state, and
// addresses. Integers are fixed-width little-endian and variable fields are
// length prefixed; encoding is deterministic and round-trip exact.
package wire

import (
	"errors"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// SerializationVersion is the version tag leading every top-level encoding.
const SerializationVersion uint8 = 1

// maxVarBytes bounds a single variable-length field to keep a corrupt
// length prefix from allocating unbounded memory.
const maxVarBytes = 1 << 24

var (
	// ErrUnknownVersion is returned when decoding a blob with an
	// unsupported serialization version.
	ErrUnknownVersion = errors.New("wire: unknown serialization version")

	// ErrCorruptPayload is returned for structurally invalid encodings.
	ErrCorruptPayload = errors.New("wire: corrupt payload")

	// ErrFieldTooLarge is returned when a length prefix exceeds the
	// per-field limit.
	ErrFieldTooLarge = errors.New("wire: variable length field too large")
)

func writeUint8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

func readUint8(r io.Reader) (uint8, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func writeUint16(w io.Writer, v uint16) error {
	var buf [2]byte
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	_, err := w.Write(buf[:])
	return err
}

func readUint16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return uint16(buf[0]) | uint16(buf[1])<<8, nil
}

func writeUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	for i := range buf {
		buf[i] = byte(v >> (8 * i))
	}
	_, err := w.Write(buf[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	var v uint32
	for i := range buf {
		v |= uint32(buf[i]) << (8 * i)
	}
	return v, nil
}

func writeUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(v >> (8 * i))
	}
	_, err := w.Write(buf[:])
	return err
}

func readUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	var v uint64
	for i := range buf {
		v |= uint64(buf[i]) << (8 * i)
	}
	return v, nil
}

func writeInt64(w io.Writer, v int64) error {
	return writeUint64(w, uint64(v))
}

func readInt64(r io.Reader) (int64, error) {
	v, err := readUint64(r)
	return int64(v), err
}

// WriteVarBytes writes a little-endian uint32 length prefix followed by the
// raw bytes.
func WriteVarBytes(w io.Writer, b []byte) error {
	if len(b) > maxVarBytes {
		return ErrFieldTooLarge
	}
	if err := writeUint32(w, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// ReadVarBytes reads a field written by WriteVarBytes.
func ReadVarBytes(r io.Reader) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	if n > maxVarBytes {
		return nil, ErrFieldTooLarge
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func writeHash(w io.Writer, h *chainhash.Hash) error {
	_, err := w.Write(h[:])
	return err
}

func readHash(r io.Reader) (chainhash.Hash, error) {
	var h chainhash.Hash
	_, err := io.ReadFull(r, h[:])
	return h, err
}
