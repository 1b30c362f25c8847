// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wallet implements the client-side wallet cluster: passphrase
// sealed key custody, named wallet records, M-of-N or-tree transfer
// addresses, interactive multisig signing sessions, and the composite
// client that synthesizes balances, history, and transfers from an
// address-indexed view of the chain.
//
// All services share one storage.Store, each under its own
// domain-separated keyspace. Every record is sealed with a key derived
// from the owning passphrase; a wrong passphrase yields permission-denied
// and reveals nothing about the contents.
package wallet
