// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

//go:build !mockencdec

package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veilchain/veil/abci"
)

func TestMockEncDecDisabledInProduction(t *testing.T) {
	a, _ := newInitializedApp(t)

	for _, path := range []string{"mockencrypt", "mockdecrypt"} {
		resp := a.Query(&abci.RequestQuery{Path: path})
		require.Equal(t, abci.CodeNotFound, resp.Code)
		require.Contains(t, resp.Log, "mock")
	}
}
