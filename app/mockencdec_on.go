// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

//go:build mockencdec

package app

import (
	"bytes"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/veilchain/veil/abci"
	"github.com/veilchain/veil/storage"
	"github.com/veilchain/veil/wire"
)

// handleEncDec serves the development-only mock encryption/decryption
// paths. The "ciphertext" is simply the canonical plaintext serialization,
// so test networks can run without the enclave service.
func (a *ChainApp) handleEncDec(req *abci.RequestQuery, resp *abci.ResponseQuery) {
	log.Warnf("received a temporary *mock* encryption/decryption query")

	switch req.Path {
	case "mockencrypt":
		var tx wire.Tx
		if err := tx.Deserialize(bytes.NewReader(req.Data)); err != nil {
			resp.Log += "invalid request"
			resp.Code = abci.CodeNotFound
			return
		}
		aux := wire.NewTransferTxAux(
			tx.TxID(),
			tx.Inputs,
			uint16(len(tx.Outputs)),
			wire.TxObfuscated{Payload: req.Data},
		)
		resp.Value = aux.Bytes()

	case "mockdecrypt":
		// The request is a concatenation of 32-byte transaction ids;
		// the response concatenates the stored bodies of those found.
		if len(req.Data)%chainhash.HashSize != 0 {
			resp.Log += "invalid request"
			resp.Code = abci.CodeNotFound
			return
		}
		var out bytes.Buffer
		for off := 0; off < len(req.Data); off += chainhash.HashSize {
			body, err := a.store.Get(storage.ColBodies, req.Data[off:off+chainhash.HashSize])
			if err != nil {
				continue
			}
			if err := wire.WriteVarBytes(&out, body); err != nil {
				resp.Log += "invalid request"
				resp.Code = abci.CodeNotFound
				return
			}
		}
		resp.Value = out.Bytes()

	default:
		resp.Log += "invalid path"
		resp.Code = abci.CodeNotFound
	}
}
