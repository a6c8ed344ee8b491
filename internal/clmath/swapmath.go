package clmath

import (
	"github.com/holiman/uint256"
)

// FeeDenominator is the denominator of pool fee tiers expressed in hundredths of a bip.
const FeeDenominator = 1_000_000

// SwapStep is the outcome of swapping within a single liquidity segment.
type SwapStep struct {
	SqrtRatioNextX96 *uint256.Int
	AmountIn         *uint256.Int
	AmountOut        *uint256.Int
	FeeAmount        *uint256.Int
}

// ComputeSwapStep computes an exact-input swap from sqrtCurrent toward sqrtTarget with constant liquidity.
// The direction is implied by the target: a lower target sells token0.
func ComputeSwapStep(sqrtCurrent, sqrtTarget, liquidity, amountRemaining *uint256.Int, feePips uint32) (SwapStep, error) {
	zeroForOne := sqrtCurrent.Cmp(sqrtTarget) >= 0
	feeComplement := uint256.NewInt(uint64(FeeDenominator - feePips))
	denominator := uint256.NewInt(FeeDenominator)

	remainingLessFee, err := MulDiv(amountRemaining, feeComplement, denominator)
	if err != nil {
		return SwapStep{}, err
	}

	var amountIn *uint256.Int
	if zeroForOne {
		amountIn, err = GetAmount0Delta(sqrtTarget, sqrtCurrent, liquidity, true)
	} else {
		amountIn, err = GetAmount1Delta(sqrtCurrent, sqrtTarget, liquidity, true)
	}
	if err != nil {
		return SwapStep{}, err
	}

	var next *uint256.Int
	if !remainingLessFee.Lt(amountIn) {
		next = sqrtTarget.Clone()
	} else {
		next, err = GetNextSqrtPriceFromInput(sqrtCurrent, liquidity, remainingLessFee, zeroForOne)
		if err != nil {
			return SwapStep{}, err
		}
	}
	reachedTarget := next.Eq(sqrtTarget)

	var amountOut *uint256.Int
	if zeroForOne {
		if !reachedTarget {
			if amountIn, err = GetAmount0Delta(next, sqrtCurrent, liquidity, true); err != nil {
				return SwapStep{}, err
			}
		}
		amountOut, err = GetAmount1Delta(next, sqrtCurrent, liquidity, false)
	} else {
		if !reachedTarget {
			if amountIn, err = GetAmount1Delta(sqrtCurrent, next, liquidity, true); err != nil {
				return SwapStep{}, err
			}
		}
		amountOut, err = GetAmount0Delta(sqrtCurrent, next, liquidity, false)
	}
	if err != nil {
		return SwapStep{}, err
	}

	var fee *uint256.Int
	if !reachedTarget {
		fee = SubFloor(amountRemaining, amountIn)
	} else {
		fee, err = MulDivRoundingUp(amountIn, uint256.NewInt(uint64(feePips)), feeComplement)
		if err != nil {
			return SwapStep{}, err
		}
	}

	return SwapStep{
		SqrtRatioNextX96: next,
		AmountIn:         amountIn,
		AmountOut:        amountOut,
		FeeAmount:        fee,
	}, nil
}
