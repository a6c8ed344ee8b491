package clmath

import (
	"github.com/holiman/uint256"
)

// LiquidityForAmount0 returns the liquidity that amount0 provides over [sqrtA, sqrtB].
func LiquidityForAmount0(sqrtA, sqrtB, amount0 *uint256.Int) (*uint256.Int, error) {
	lower, upper := sortRatios(sqrtA, sqrtB)
	intermediate, err := MulDiv(lower, upper, q96)
	if err != nil {
		return nil, err
	}
	return MulDiv(amount0, intermediate, new(uint256.Int).Sub(upper, lower))
}

// LiquidityForAmount1 returns the liquidity that amount1 provides over [sqrtA, sqrtB].
func LiquidityForAmount1(sqrtA, sqrtB, amount1 *uint256.Int) (*uint256.Int, error) {
	lower, upper := sortRatios(sqrtA, sqrtB)
	return MulDiv(amount1, q96, new(uint256.Int).Sub(upper, lower))
}

// LiquidityForAmounts returns the maximum liquidity mintable from the given amounts at the current price.
func LiquidityForAmounts(sqrtPriceX96, sqrtA, sqrtB, amount0, amount1 *uint256.Int) (*uint256.Int, error) {
	lower, upper := sortRatios(sqrtA, sqrtB)

	switch {
	case sqrtPriceX96.Cmp(lower) <= 0:
		return LiquidityForAmount0(lower, upper, amount0)
	case sqrtPriceX96.Lt(upper):
		liquidity0, err := LiquidityForAmount0(sqrtPriceX96, upper, amount0)
		if err != nil {
			return nil, err
		}
		liquidity1, err := LiquidityForAmount1(lower, sqrtPriceX96, amount1)
		if err != nil {
			return nil, err
		}
		return Min(liquidity0, liquidity1), nil
	default:
		return LiquidityForAmount1(lower, upper, amount1)
	}
}

// AmountsForLiquidity returns the token amounts a liquidity amount is worth at the current price, rounded down.
func AmountsForLiquidity(sqrtPriceX96, sqrtA, sqrtB, liquidity *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	return amountsForLiquidity(sqrtPriceX96, sqrtA, sqrtB, liquidity, false)
}

// AmountsForLiquidityRoundingUp returns the amounts a pool charges to mint liquidity.
func AmountsForLiquidityRoundingUp(sqrtPriceX96, sqrtA, sqrtB, liquidity *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	return amountsForLiquidity(sqrtPriceX96, sqrtA, sqrtB, liquidity, true)
}

func amountsForLiquidity(sqrtPriceX96, sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) (*uint256.Int, *uint256.Int, error) {
	lower, upper := sortRatios(sqrtA, sqrtB)
	amount0, amount1 := new(uint256.Int), new(uint256.Int)
	var err error

	switch {
	case sqrtPriceX96.Cmp(lower) <= 0:
		amount0, err = GetAmount0Delta(lower, upper, liquidity, roundUp)
	case sqrtPriceX96.Lt(upper):
		amount0, err = GetAmount0Delta(sqrtPriceX96, upper, liquidity, roundUp)
		if err == nil {
			amount1, err = GetAmount1Delta(lower, sqrtPriceX96, liquidity, roundUp)
		}
	default:
		amount1, err = GetAmount1Delta(lower, upper, liquidity, roundUp)
	}
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}
