// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

//go:build !mockencdec

package app

import (
	"github.com/veilchain/veil/abci"
)

// handleEncDec rejects the mock encryption/decryption paths in production
// builds; the dedicated enclave service owns those operations.
func (a *ChainApp) handleEncDec(_ *abci.RequestQuery, resp *abci.ResponseQuery) {
	const msg = "received a temporary *mock* encryption/decryption query " +
		"(use the dedicated enclave service instead)"
	log.Warnf(msg)
	resp.Log += msg
	resp.Code = abci.CodeNotFound
}
