package clmath

import (
	"github.com/holiman/uint256"
)

func sortRatios(a, b *uint256.Int) (*uint256.Int, *uint256.Int) {
	if a.Gt(b) {
		return b, a
	}
	return a, b
}

// GetAmount0Delta returns the token0 amount between two square-root prices for a liquidity amount:
// L * 2^96 * (sqrtB - sqrtA) / (sqrtA * sqrtB).
func GetAmount0Delta(sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	lower, upper := sortRatios(sqrtA, sqrtB)
	if lower.IsZero() {
		return nil, ErrDivisionByZero
	}
	if liquidity.BitLen() > 160 {
		return nil, ErrOverflow
	}

	numerator1 := new(uint256.Int).Lsh(liquidity, 96)
	numerator2 := new(uint256.Int).Sub(upper, lower)

	if roundUp {
		inner, err := MulDivRoundingUp(numerator1, numerator2, upper)
		if err != nil {
			return nil, err
		}
		return DivRoundingUp(inner, lower)
	}
	inner, err := MulDiv(numerator1, numerator2, upper)
	if err != nil {
		return nil, err
	}
	return inner.Div(inner, lower), nil
}

// GetAmount1Delta returns the token1 amount between two square-root prices: L * (sqrtB - sqrtA) / 2^96.
func GetAmount1Delta(sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	lower, upper := sortRatios(sqrtA, sqrtB)
	diff := new(uint256.Int).Sub(upper, lower)
	if roundUp {
		return MulDivRoundingUp(liquidity, diff, q96)
	}
	return MulDiv(liquidity, diff, q96)
}

// GetNextSqrtPriceFromInput returns the square-root price after adding amountIn of the input token.
func GetNextSqrtPriceFromInput(sqrtPriceX96, liquidity, amountIn *uint256.Int, zeroForOne bool) (*uint256.Int, error) {
	if sqrtPriceX96.IsZero() || liquidity.IsZero() {
		return nil, ErrDivisionByZero
	}
	if zeroForOne {
		return nextSqrtPriceFromAmount0(sqrtPriceX96, liquidity, amountIn)
	}
	return nextSqrtPriceFromAmount1(sqrtPriceX96, liquidity, amountIn)
}

// nextSqrtPriceFromAmount0 rounds up so the price never moves further than the input pays for.
func nextSqrtPriceFromAmount0(sqrtPriceX96, liquidity, amount *uint256.Int) (*uint256.Int, error) {
	if amount.IsZero() {
		return sqrtPriceX96.Clone(), nil
	}
	if liquidity.BitLen() > 160 {
		return nil, ErrOverflow
	}
	numerator1 := new(uint256.Int).Lsh(liquidity, 96)

	if product, overflow := new(uint256.Int).MulOverflow(amount, sqrtPriceX96); !overflow {
		if denominator, overflow := new(uint256.Int).AddOverflow(numerator1, product); !overflow {
			return MulDivRoundingUp(numerator1, sqrtPriceX96, denominator)
		}
	}

	denominator, err := Add(new(uint256.Int).Div(numerator1, sqrtPriceX96), amount)
	if err != nil {
		return nil, err
	}
	return DivRoundingUp(numerator1, denominator)
}

func nextSqrtPriceFromAmount1(sqrtPriceX96, liquidity, amount *uint256.Int) (*uint256.Int, error) {
	var quotient *uint256.Int
	if !amount.Gt(maxUint160) {
		quotient = new(uint256.Int).Lsh(amount, 96)
		quotient.Div(quotient, liquidity)
	} else {
		var err error
		quotient, err = MulDiv(amount, q96, liquidity)
		if err != nil {
			return nil, err
		}
	}

	next, err := Add(sqrtPriceX96, quotient)
	if err != nil {
		return nil, err
	}
	if next.Gt(maxUint160) {
		return nil, ErrOverflow
	}
	return next, nil
}
