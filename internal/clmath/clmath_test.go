package clmath

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestGetSqrtRatioAtTickBounds(t *testing.T) {
	got, err := GetSqrtRatioAtTick(MinTick)
	require.NoError(t, err)
	require.Equal(t, "4295128739", got.Dec())

	got, err = GetSqrtRatioAtTick(MaxTick)
	require.NoError(t, err)
	require.Equal(t, "1461446703485210103287273052203988822378723970342", got.Dec())

	got, err = GetSqrtRatioAtTick(0)
	require.NoError(t, err)
	require.True(t, got.Eq(Q96()))

	_, err = GetSqrtRatioAtTick(MinTick - 1)
	require.ErrorIs(t, err, ErrTickOutOfRange)
	_, err = GetSqrtRatioAtTick(MaxTick + 1)
	require.ErrorIs(t, err, ErrTickOutOfRange)
}

func TestGetTickAtSqrtRatioRoundTrip(t *testing.T) {
	for _, tick := range []int32{MinTick, -276325, -887, -60, -1, 0, 1, 30, 10000, MaxTick - 1} {
		ratio, err := GetSqrtRatioAtTick(tick)
		require.NoError(t, err)

		got, err := GetTickAtSqrtRatio(ratio)
		require.NoError(t, err)
		require.Equal(t, tick, got, "exact ratio")

		next, err := GetSqrtRatioAtTick(tick + 1)
		require.NoError(t, err)
		require.True(t, ratio.Lt(next), "ratio must increase with tick")

		got, err = GetTickAtSqrtRatio(new(uint256.Int).AddUint64(ratio, 1))
		require.NoError(t, err)
		require.Equal(t, tick, got, "ratio just above tick")
	}

	_, err := GetTickAtSqrtRatio(MaxSqrtRatio())
	require.ErrorIs(t, err, ErrSqrtRatioOutOfRange)
}

func TestLiquidityAmountsRoundTrip(t *testing.T) {
	sqrtP, err := GetSqrtRatioAtTick(0)
	require.NoError(t, err)
	sqrtA, err := GetSqrtRatioAtTick(-60)
	require.NoError(t, err)
	sqrtB, err := GetSqrtRatioAtTick(60)
	require.NoError(t, err)

	amount := uint256.MustFromDecimal("1000000000000000000000000")
	liquidity, err := LiquidityForAmounts(sqrtP, sqrtA, sqrtB, amount, amount)
	require.NoError(t, err)
	require.False(t, liquidity.IsZero())

	amount0, amount1, err := AmountsForLiquidity(sqrtP, sqrtA, sqrtB, liquidity)
	require.NoError(t, err)
	require.False(t, amount0.Gt(amount))
	require.False(t, amount1.Gt(amount))

	binding := amount0
	if amount1.Gt(binding) {
		binding = amount1
	}
	require.True(t, new(uint256.Int).Sub(amount, binding).LtUint64(10), "binding side uses the full amount")

	up0, up1, err := AmountsForLiquidityRoundingUp(sqrtP, sqrtA, sqrtB, liquidity)
	require.NoError(t, err)
	require.False(t, up0.Lt(amount0))
	require.False(t, up1.Lt(amount1))
}

func TestAmountsOutsideRange(t *testing.T) {
	sqrtA, _ := GetSqrtRatioAtTick(-60)
	sqrtB, _ := GetSqrtRatioAtTick(60)
	below, _ := GetSqrtRatioAtTick(-120)
	above, _ := GetSqrtRatioAtTick(120)
	liquidity := uint256.NewInt(1_000_000_000_000)

	amount0, amount1, err := AmountsForLiquidity(below, sqrtA, sqrtB, liquidity)
	require.NoError(t, err)
	require.False(t, amount0.IsZero())
	require.True(t, amount1.IsZero())

	amount0, amount1, err = AmountsForLiquidity(above, sqrtA, sqrtB, liquidity)
	require.NoError(t, err)
	require.True(t, amount0.IsZero())
	require.False(t, amount1.IsZero())
}

func TestPricesAtSqrtRatio(t *testing.T) {
	price0, price1, err := PricesAtSqrtRatio(Q96(), 18, 18)
	require.NoError(t, err)
	require.Equal(t, 0, price0.Cmp(OnePrice()))
	require.Equal(t, 0, price1.Cmp(OnePrice()))

	// one whole 18-decimal token0 per whole 6-decimal token1
	sqrtP, err := SqrtRatioAtPrice(big.NewInt(1), big.NewInt(1_000_000_000_000))
	require.NoError(t, err)
	price0, price1, err = PricesAtSqrtRatio(sqrtP, 18, 6)
	require.NoError(t, err)
	require.InDelta(t, 1.0, price0.Decimal().InexactFloat64(), 1e-9)
	require.InDelta(t, 1.0, price1.Decimal().InexactFloat64(), 1e-9)

	_, _, err = PricesAtSqrtRatio(new(uint256.Int), 18, 18)
	require.ErrorIs(t, err, ErrDivisionByZero)
}

func TestPriceMulU(t *testing.T) {
	half := NewPrice(new(uint256.Int).Rsh(Q96(), 33))
	got, err := half.MulU(uint256.NewInt(1001))
	require.NoError(t, err)
	require.Equal(t, uint64(500), got.Uint64())
}

func TestQuoteIdentityAtParity(t *testing.T) {
	amount := uint256.NewInt(123456789)
	out, err := Quote0To1(amount, Q96())
	require.NoError(t, err)
	require.True(t, out.Eq(amount))
	out, err = Quote1To0(amount, Q96())
	require.NoError(t, err)
	require.True(t, out.Eq(amount))
}

func TestComputeSwapStepPartialFill(t *testing.T) {
	current := Q96()
	target, _ := GetSqrtRatioAtTick(-600)
	liquidity := uint256.MustFromDecimal("1000000000000000000000")
	amount := uint256.MustFromDecimal("1000000000000000000")

	step, err := ComputeSwapStep(current, target, liquidity, amount, 500)
	require.NoError(t, err)
	require.True(t, step.SqrtRatioNextX96.Lt(current))
	require.True(t, step.SqrtRatioNextX96.Gt(target))
	sum := new(uint256.Int).Add(step.AmountIn, step.FeeAmount)
	require.True(t, sum.Eq(amount), "partial step consumes the whole input")
	require.True(t, step.AmountOut.Lt(amount))
	require.False(t, step.AmountOut.IsZero())
}

func TestComputeSwapStepReachesTarget(t *testing.T) {
	current := Q96()
	target, _ := GetSqrtRatioAtTick(10)
	liquidity := uint256.NewInt(1_000_000)
	amount := uint256.MustFromDecimal("1000000000000000000")

	step, err := ComputeSwapStep(current, target, liquidity, amount, 3000)
	require.NoError(t, err)
	require.True(t, step.SqrtRatioNextX96.Eq(target))
	require.True(t, new(uint256.Int).Add(step.AmountIn, step.FeeAmount).Lt(amount))
}

func TestMulDivErrors(t *testing.T) {
	_, err := MulDiv(uint256.NewInt(1), uint256.NewInt(1), new(uint256.Int))
	require.ErrorIs(t, err, ErrDivisionByZero)

	max := new(uint256.Int).SetAllOne()
	_, err = MulDiv(max, max, uint256.NewInt(1))
	require.ErrorIs(t, err, ErrOverflow)

	got, err := MulDivRoundingUp(uint256.NewInt(7), uint256.NewInt(3), uint256.NewInt(2))
	require.NoError(t, err)
	require.Equal(t, uint64(11), got.Uint64())
}
