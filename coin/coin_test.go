// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coin

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNewRange(t *testing.T) {
	c, err := New(30)
	require.NoError(t, err)
	require.Equal(t, uint64(30), c.Units())

	_, err = New(uint64(MaxCoin))
	require.NoError(t, err)

	_, err = New(uint64(MaxCoin) + 1)
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestAddOverflow(t *testing.T) {
	_, err := MaxCoin.Add(1)
	require.ErrorIs(t, err, ErrAdditionOverflow)

	c, err := Coin(40).Add(2)
	require.NoError(t, err)
	require.Equal(t, Coin(42), c)
}

func TestSubUnderflow(t *testing.T) {
	_, err := Zero().Sub(1)
	require.ErrorIs(t, err, ErrSubtractionUnderflow)

	c, err := Coin(40).Sub(30)
	require.NoError(t, err)
	require.Equal(t, Coin(10), c)
}

func TestSum(t *testing.T) {
	total, err := Sum([]Coin{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, Coin(6), total)

	_, err = Sum([]Coin{MaxCoin, 1})
	require.ErrorIs(t, err, ErrAdditionOverflow)
}

// TestArithmeticProperties checks that checked addition and subtraction are
// exact inverses inside the valid range and always fail outside it.
func TestArithmeticProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := Coin(rapid.Uint64Range(0, uint64(MaxCoin)).Draw(t, "a"))
		b := Coin(rapid.Uint64Range(0, uint64(MaxCoin)).Draw(t, "b"))

		sum, err := a.Add(b)
		if uint64(a)+uint64(b) > uint64(MaxCoin) {
			require.ErrorIs(t, err, ErrAdditionOverflow)
			return
		}
		require.NoError(t, err)

		back, err := sum.Sub(b)
		require.NoError(t, err)
		require.Equal(t, a, back)
	})
}
