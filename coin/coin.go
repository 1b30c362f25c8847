// Copyright (c) 2025 The Veil developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package coin implements the fixed-supply value type used throughout the
// Veil ledger. All arithmetic is checked: a sum that would exceed MaxCoin or
// a difference that would drop below zero is an error, never a wrap or a
// silent saturation.
package coin

import (
	"errors"
	"fmt"
)

const (
	// UnitsPerVeil is the number of base units in one whole coin.
	UnitsPerVeil = 1e8

	// MaxCoin is the total supply of the ledger in base units:
	// ten billion whole coins.
	MaxCoin Coin = 10_000_000_000 * UnitsPerVeil
)

var (
	// ErrOutOfRange is returned when constructing a coin value above
	// MaxCoin.
	ErrOutOfRange = errors.New("coin value out of range")

	// ErrAdditionOverflow is returned when the sum of two coin values
	// exceeds MaxCoin.
	ErrAdditionOverflow = errors.New("coin addition exceeds total supply")

	// ErrSubtractionUnderflow is returned when a subtraction would produce
	// a negative amount.
	ErrSubtractionUnderflow = errors.New("coin subtraction below zero")
)

// Coin is a non-negative amount of base units in [0, MaxCoin].
type Coin uint64

// New returns a coin of the given number of base units, or ErrOutOfRange if
// the amount exceeds MaxCoin.
func New(units uint64) (Coin, error) {
	if Coin(units) > MaxCoin {
		return 0, ErrOutOfRange
	}
	return Coin(units), nil
}

// Zero is the zero coin value.
func Zero() Coin {
	return 0
}

// Add returns c + other, or ErrAdditionOverflow if the result exceeds
// MaxCoin.
func (c Coin) Add(other Coin) (Coin, error) {
	sum := c + other
	if sum < c || sum > MaxCoin {
		return 0, ErrAdditionOverflow
	}
	return sum, nil
}

// Sub returns c - other, or ErrSubtractionUnderflow if other is greater
// than c.
func (c Coin) Sub(other Coin) (Coin, error) {
	if other > c {
		return 0, ErrSubtractionUnderflow
	}
	return c - other, nil
}

// Units returns the raw number of base units.
func (c Coin) Units() uint64 {
	return uint64(c)
}

// String renders the amount as whole coins with a fractional part, e.g.
// "1.50000000".
func (c Coin) String() string {
	return fmt.Sprintf("%d.%08d", uint64(c)/UnitsPerVeil, uint64(c)%UnitsPerVeil)
}

// Sum adds a sequence of coin values with overflow checking.
func Sum(coins []Coin) (Coin, error) {
	total := Zero()
	for _, c := range coins {
		var err error
		total, err = total.Add(c)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
