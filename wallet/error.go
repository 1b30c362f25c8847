// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"errors"
	"fmt"
)

// Error kinds. Callers match these with errors.Is; every Error returned by
// the wallet cluster wraps exactly one kind.
var (
	// ErrNotFound covers generically missing records, like an unknown
	// multisig session id.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput covers malformed or contradictory arguments.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPermissionDenied covers wrong passphrases and capability
	// violations like asking a read-only client to broadcast.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInsufficientBalance is returned when input selection cannot
	// cover the requested outputs plus fee.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrBalanceAddition is returned when aggregating balances
	// overflows.
	ErrBalanceAddition = errors.New("balance addition error")

	// ErrTransactionNotFound is returned for references to unknown
	// transactions or outputs.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrWalletNotFound is returned for operations on a wallet name that
	// was never created.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrPrivateKeyNotFound is returned when no private key is stored
	// for a public key.
	ErrPrivateKeyNotFound = errors.New("private key not found")

	// ErrStorage wraps failures of the underlying store; they propagate
	// unchanged, with no local retry.
	ErrStorage = errors.New("storage error")
)

// Error couples an error kind with a description of the failing operation.
type Error struct {
	Kind error
	Desc string
}

// Error implements the error interface.
func (e Error) Error() string {
	if e.Desc == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Desc)
}

// Unwrap exposes the kind for errors.Is matching.
func (e Error) Unwrap() error {
	return e.Kind
}

// makeError wraps kind with a formatted description.
func makeError(kind error, format string, args ...interface{}) Error {
	return Error{Kind: kind, Desc: fmt.Sprintf(format, args...)}
}
