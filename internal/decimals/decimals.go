// Package decimals converts raw token amounts between native precision and the 18-decimal accounting precision.
package decimals

import (
	"errors"

	"github.com/holiman/uint256"
)

// Canonical is the accounting precision shared by every asset.
const Canonical uint8 = 18

// ErrOverflow reports an amount that cannot be scaled up without exceeding 256 bits.
var ErrOverflow = errors.New("decimals: overflow")

// ToCanonical scales a native amount to 18 decimals. Scaling down (native > 18) floors.
func ToCanonical(amount *uint256.Int, native uint8) (*uint256.Int, error) {
	switch {
	case native == Canonical:
		return amount.Clone(), nil
	case native < Canonical:
		z, overflow := new(uint256.Int).MulOverflow(amount, scale(Canonical-native))
		if overflow {
			return nil, ErrOverflow
		}
		return z, nil
	default:
		return new(uint256.Int).Div(amount, scale(native-Canonical)), nil
	}
}

// FromCanonical scales an 18-decimal amount back to native precision, flooring when scaling down.
func FromCanonical(amount *uint256.Int, native uint8) (*uint256.Int, error) {
	switch {
	case native == Canonical:
		return amount.Clone(), nil
	case native < Canonical:
		return new(uint256.Int).Div(amount, scale(Canonical-native)), nil
	default:
		z, overflow := new(uint256.Int).MulOverflow(amount, scale(native-Canonical))
		if overflow {
			return nil, ErrOverflow
		}
		return z, nil
	}
}

func scale(exp uint8) *uint256.Int {
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(exp)))
}
