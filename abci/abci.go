// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package abci holds the query surface shared with the consensus engine
// driving the node: request/response pairs and the ordered proof-op chain
// attached to provable responses.
package abci

// Response codes. Zero is success; any non-zero code is a failure whose
// cause is named in the response log.
const (
	// CodeOK denotes success.
	CodeOK uint32 = 0

	// CodeNotFound covers missing data and unrecognized query paths.
	CodeNotFound uint32 = 1

	// CodeProofError covers failures while assembling a requested proof.
	CodeProofError uint32 = 2

	// CodeNotReady denotes a node that has not been initialized with a
	// genesis state.
	CodeNotReady uint32 = 3
)

// Proof op types.
const (
	// ProofOpTransaction carries a merkle inclusion path; its key is the
	// tree root.
	ProofOpTransaction = "transaction"

	// ProofOpWitness commits to the transaction witness by hash; its key
	// is the TxidHashID sentinel.
	ProofOpWitness = "witness"
)

// TxidHashID is the sentinel key identifying the hash function committing
// to witness bytes in a witness proof op.
var TxidHashID = []byte("txid.blake2b-256")

// RequestQuery asks the application for data at a path, optionally proven
// against a historical state root.
type RequestQuery struct {
	Data   []byte
	Path   string
	Height int64
	Prove  bool
}

// ResponseQuery carries the answer: a code, a human-readable log naming the
// failure cause for non-zero codes, the value, and an optional proof.
type ResponseQuery struct {
	Code  uint32
	Log   string
	Value []byte
	Proof *Proof
}

// ProofOp is a single verification step: an op type, a key (root hash or
// sentinel), and opaque proof data.
type ProofOp struct {
	Type string
	Key  []byte
	Data []byte
}

// Proof is an ordered op chain, verified front to back by an external
// verifier.
type Proof struct {
	Ops []ProofOp
}
