package clmath

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Price is an unsigned 64.64 fixed-point number: the represented value is raw / 2^64.
type Price struct {
	raw uint256.Int
}

// NewPrice wraps a raw 64.64 value.
func NewPrice(raw *uint256.Int) Price {
	var p Price
	p.raw.Set(raw)
	return p
}

// OnePrice returns 1.0.
func OnePrice() Price { return NewPrice(q64) }

// Raw returns a copy of the raw 64.64 integer.
func (p Price) Raw() *uint256.Int { return p.raw.Clone() }

func (p Price) IsZero() bool { return p.raw.IsZero() }

func (p Price) Cmp(other Price) int { return p.raw.Cmp(&other.raw) }

// MulU returns floor(p * x) for an unsigned integer x.
func (p Price) MulU(x *uint256.Int) (*uint256.Int, error) {
	return MulDiv(&p.raw, x, q64)
}

// Decimal renders the price for logs and CLI output.
func (p Price) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(p.raw.ToBig(), 0).Div(decimal.NewFromBigInt(q64.ToBig(), 0))
}

func (p Price) String() string { return p.Decimal().String() }

// PricesAtSqrtRatio converts a square-root price into the 64.64 price of asset0 in asset1 terms and its
// inverse. Both are scaled by the decimal difference so they apply to amounts normalized to a common precision.
func PricesAtSqrtRatio(sqrtPriceX96 *uint256.Int, decimals0, decimals1 uint8) (Price, Price, error) {
	if sqrtPriceX96.IsZero() {
		return Price{}, Price{}, ErrDivisionByZero
	}

	sqrt := sqrtPriceX96.ToBig()
	squared := new(big.Int).Mul(sqrt, sqrt)
	scale0 := pow10(decimals0)
	scale1 := pow10(decimals1)

	// asset0: sqrt^2 * 10^d0 / (2^128 * 10^d1)
	num := new(big.Int).Mul(squared, scale0)
	den := new(big.Int).Lsh(scale1, 128)
	price0, err := bigToUint256(num.Quo(num, den))
	if err != nil {
		return Price{}, Price{}, err
	}

	// asset1: 2^256 * 10^d1 / (sqrt^2 * 10^d0)
	num = new(big.Int).Lsh(scale1, 256)
	den = new(big.Int).Mul(squared, scale0)
	price1, err := bigToUint256(num.Quo(num, den))
	if err != nil {
		return Price{}, Price{}, err
	}

	return NewPrice(price0), NewPrice(price1), nil
}

// Quote0To1 converts a raw token0 amount to token1 at sqrtPriceX96, rounding down.
func Quote0To1(amount0, sqrtPriceX96 *uint256.Int) (*uint256.Int, error) {
	partial, err := MulDiv(amount0, sqrtPriceX96, q96)
	if err != nil {
		return nil, err
	}
	return MulDiv(partial, sqrtPriceX96, q96)
}

// Quote1To0 converts a raw token1 amount to token0 at sqrtPriceX96, rounding down.
func Quote1To0(amount1, sqrtPriceX96 *uint256.Int) (*uint256.Int, error) {
	partial, err := MulDiv(amount1, q96, sqrtPriceX96)
	if err != nil {
		return nil, err
	}
	return MulDiv(partial, q96, sqrtPriceX96)
}

// SqrtRatioAtPrice returns floor(sqrt(num/den) * 2^96) for a raw token1-per-token0 price num/den.
func SqrtRatioAtPrice(num, den *big.Int) (*uint256.Int, error) {
	if den.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	ratioX192 := new(big.Int).Lsh(num, 192)
	ratioX192.Quo(ratioX192, den)
	sqrt, err := bigToUint256(ratioX192.Sqrt(ratioX192))
	if err != nil {
		return nil, err
	}
	if sqrt.Lt(minSqrtRatio) || !sqrt.Lt(maxSqrtRatio) {
		return nil, ErrSqrtRatioOutOfRange
	}
	return sqrt, nil
}

func pow10(exp uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil)
}

func bigToUint256(v *big.Int) (*uint256.Int, error) {
	if v.Sign() < 0 {
		return nil, ErrOverflow
	}
	z, overflow := uint256.FromBig(v)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}
