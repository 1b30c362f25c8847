// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package genesis

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veilchain/veil/app"
	"github.com/veilchain/veil/coin"
	"github.com/veilchain/veil/crypto"
	"github.com/veilchain/veil/storage"
	"github.com/veilchain/veil/wire"
)

func newAllocation(t *testing.T, bonded, unbonded coin.Coin) Allocation {
	t.Helper()
	_, pub, err := crypto.NewKeyPair()
	require.NoError(t, err)
	return Allocation{
		Address:  wire.NewRedeemAddress(pub),
		Bonded:   bonded,
		Unbonded: unbonded,
	}
}

func TestStakedStatesDeterministic(t *testing.T) {
	a := newAllocation(t, 100, 0)
	b := newAllocation(t, 0, 50)

	cfg1 := &Config{Allocations: []Allocation{a, b}}
	cfg2 := &Config{Allocations: []Allocation{b, a}}

	states1, err := cfg1.StakedStates()
	require.NoError(t, err)
	states2, err := cfg2.StakedStates()
	require.NoError(t, err)
	require.Equal(t, states1, states2)
}

func TestTotalSupplyChecked(t *testing.T) {
	cfg := &Config{Allocations: []Allocation{
		newAllocation(t, coin.MaxCoin, 0),
		newAllocation(t, 1, 0),
	}}
	_, err := cfg.StakedStates()
	require.ErrorIs(t, err, coin.ErrAdditionOverflow)
}

func TestAppHashMatchesNode(t *testing.T) {
	cfg := &Config{Allocations: []Allocation{
		newAllocation(t, 1000, 0),
		newAllocation(t, 500, 25),
	}}

	expected, err := cfg.AppHash()
	require.NoError(t, err)

	states, err := cfg.StakedStates()
	require.NoError(t, err)

	node, err := app.NewChainApp(storage.NewMemStore())
	require.NoError(t, err)
	require.NoError(t, node.InitChain(states))
	require.Equal(t, expected, node.State().LastAppHash)
}
