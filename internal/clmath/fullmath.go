// Package clmath implements the fixed-point arithmetic of concentrated-liquidity pools on 256-bit integers.
//
// Square-root prices are Q64.96 (value = raw / 2^96), prices exposed to accounting code are unsigned
// 64.64 (value = raw / 2^64). All divisions floor unless the function name says otherwise.
package clmath

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	// ErrOverflow reports a result that does not fit in 256 bits (or in the documented width).
	ErrOverflow = errors.New("clmath: overflow")
	// ErrDivisionByZero reports a zero denominator.
	ErrDivisionByZero = errors.New("clmath: division by zero")
)

var (
	q64        = new(uint256.Int).Lsh(uint256.NewInt(1), 64)
	q96        = new(uint256.Int).Lsh(uint256.NewInt(1), 96)
	q128       = new(uint256.Int).Lsh(uint256.NewInt(1), 128)
	maxUint160 = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 160), uint256.NewInt(1))
	maxUint256 = new(uint256.Int).SetAllOne()
)

// Q96 returns 2^96.
func Q96() *uint256.Int { return q96.Clone() }

// MulDiv returns floor(a*b/d) using a 512-bit intermediate product.
func MulDiv(a, b, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrDivisionByZero
	}
	z, overflow := new(uint256.Int).MulDivOverflow(a, b, d)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// MulDivRoundingUp returns ceil(a*b/d).
func MulDivRoundingUp(a, b, d *uint256.Int) (*uint256.Int, error) {
	z, err := MulDiv(a, b, d)
	if err != nil {
		return nil, err
	}
	if new(uint256.Int).MulMod(a, b, d).IsZero() {
		return z, nil
	}
	if z.Eq(maxUint256) {
		return nil, ErrOverflow
	}
	return z.AddUint64(z, 1), nil
}

// DivRoundingUp returns ceil(a/d).
func DivRoundingUp(a, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrDivisionByZero
	}
	z := new(uint256.Int).Div(a, d)
	if !new(uint256.Int).Mod(a, d).IsZero() {
		z.AddUint64(z, 1)
	}
	return z, nil
}

// Min returns a copy of the smaller operand.
func Min(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return a.Clone()
	}
	return b.Clone()
}

// SubFloor returns a-b, or zero when b > a.
func SubFloor(a, b *uint256.Int) *uint256.Int {
	if b.Gt(a) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(a, b)
}

// AbsDiff returns |a-b|.
func AbsDiff(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return new(uint256.Int).Sub(b, a)
	}
	return new(uint256.Int).Sub(a, b)
}

// Add returns a+b or ErrOverflow.
func Add(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}
