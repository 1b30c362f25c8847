// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"github.com/veilchain/veil/coin"
)

// FeeEstimator prices a transaction by its serialized size. The policy is
// pluggable; the builder only requires that estimates are deterministic for
// a given size.
type FeeEstimator interface {
	// CalculateFee returns the fee for a transaction of numBytes.
	CalculateFee(numBytes int) (coin.Coin, error)
}

// ZeroFee charges nothing; test networks run with it.
type ZeroFee struct{}

// CalculateFee returns zero.
func (ZeroFee) CalculateFee(int) (coin.Coin, error) {
	return coin.Zero(), nil
}

// LinearFee charges a flat base plus a per-byte rate.
type LinearFee struct {
	Base    coin.Coin
	PerByte coin.Coin
}

// CalculateFee returns base + perByte*numBytes with checked arithmetic.
func (f LinearFee) CalculateFee(numBytes int) (coin.Coin, error) {
	n := uint64(numBytes)
	if n != 0 && f.PerByte.Units() > uint64(coin.MaxCoin)/n {
		return 0, makeError(ErrBalanceAddition, "fee overflow")
	}
	variable, err := coin.New(f.PerByte.Units() * n)
	if err != nil {
		return 0, makeError(ErrBalanceAddition, "fee overflow")
	}
	total, err := f.Base.Add(variable)
	if err != nil {
		return 0, makeError(ErrBalanceAddition, "fee overflow")
	}
	return total, nil
}
