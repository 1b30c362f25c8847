// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package app

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/veilchain/veil/abci"
	"github.com/veilchain/veil/storage"
	"github.com/veilchain/veil/wire"
)

// lookup finds a key under a column, or records the failure in the
// response.
func (a *ChainApp) lookup(resp *abci.ResponseQuery, col storage.Column, key []byte, logMessage string) {
	value, err := a.store.Get(col, key)
	if err != nil {
		resp.Log += logMessage
		resp.Code = abci.CodeNotFound
		return
	}
	resp.Value = value
}

// Query serves the consensus engine's query surface. It reads against the
// state snapshot captured at entry and never aborts on a malformed request;
// every recoverable failure maps to a non-zero code with a descriptive log.
func (a *ChainApp) Query(req *abci.RequestQuery) *abci.ResponseQuery {
	resp := &abci.ResponseQuery{}
	state := a.state

	// The consensus engine probes peer acceptance with /p2p paths before
	// connecting; a zero code accepts the peer.
	if strings.HasPrefix(req.Path, "/p2p") || strings.HasPrefix(req.Path, "p2p") {
		return resp
	}

	switch req.Path {
	case "mockencrypt", "mockdecrypt":
		a.handleEncDec(req, resp)

	case "store":
		if req.Height < 0 {
			resp.Log += "invalid height"
			resp.Code = abci.CodeNotFound
			break
		}
		a.lookup(resp, storage.ColBodies, req.Data, "tx not found")
		if req.Prove && resp.Code == abci.CodeOK {
			a.proveStore(req, resp, state)
		}

	case "meta":
		a.lookup(resp, storage.ColTxMeta, req.Data, "tx not found")

	case "witness":
		a.lookup(resp, storage.ColWitness, req.Data, "tx not found")

	case "merkle":
		a.lookup(resp, storage.ColMerkleTrees, req.Data, "app state not found")

	case "account":
		a.queryAccount(req, resp, state)

	default:
		resp.Log += "invalid path"
		resp.Code = abci.CodeNotFound
	}
	return resp
}

// proveStore attaches the proof-op chain for a store query whose body
// lookup already succeeded.
func (a *ChainApp) proveStore(req *abci.RequestQuery, resp *abci.ResponseQuery, state *ChainState) {
	witness, err := a.store.Get(storage.ColWitness, req.Data)
	if err != nil {
		resp.Log += "proof error: witness not found"
		resp.Code = abci.CodeProofError
		return
	}

	var tip int64
	if state != nil {
		tip = state.LastBlockHeight
	}
	height := resolveHeight(req.Height, tip)

	if len(req.Data) != chainhash.HashSize {
		resp.Log += "proof error: malformed txid"
		resp.Code = abci.CodeProofError
		return
	}
	var txid chainhash.Hash
	copy(txid[:], req.Data)

	proof, err := a.buildProof(txid, height, witness)
	if err != nil {
		resp.Log += fmt.Sprintf("proof error: %v", err)
		resp.Code = abci.CodeProofError
		return
	}
	resp.Proof = proof
}

// queryAccount serves the current staked state of an address against the
// tip account root.
func (a *ChainApp) queryAccount(req *abci.RequestQuery, resp *abci.ResponseQuery, state *ChainState) {
	address, err := wire.RedeemAddressFromBytes(req.Data)
	if state == nil || err != nil {
		resp.Log += "account lookup failed (either invalid address or node not correctly restored / initialized)"
		resp.Code = abci.CodeNotReady
		return
	}

	lookupKey := (&wire.StakedState{Address: address}).Key()
	value, err := a.accounts.Get(state.LastAccountRoot, lookupKey)
	if err != nil {
		resp.Log += fmt.Sprintf("account lookup failed: %v", err)
		resp.Code = abci.CodeNotFound
		return
	}
	resp.Value = value
}
