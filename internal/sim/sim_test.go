package sim

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"liquidityVault/internal/amm"
	"liquidityVault/internal/clmath"
)

var (
	lp     = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	trader = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

func e18(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1e18))
}

func newSeededWorld(t *testing.T) (*World, uint64) {
	t.Helper()
	ctx := context.Background()
	w := NewWorld(Config{Decimals0: 18, Decimals1: 18})
	require.NoError(t, w.Pool.InitializeIfNecessary(ctx, Token0Address, Token1Address, 500, clmath.Q96()))
	require.NoError(t, w.Pool.IncreaseObservationCardinality(ctx, 100))

	w.Token0.Mint(lp, e18(1_000_000))
	w.Token1.Mint(lp, e18(1_000_000))
	unlimited := new(uint256.Int).SetAllOne()
	require.NoError(t, w.Token0.Approve(ctx, lp, RegistrarAddress, unlimited))
	require.NoError(t, w.Token1.Approve(ctx, lp, RegistrarAddress, unlimited))

	res, err := w.Registrar.Mint(ctx, lp, amm.MintParams{
		Token0: Token0Address, Token1: Token1Address, Fee: 500,
		TickLower: -600, TickUpper: 600,
		Amount0Desired: e18(1_000_000), Amount1Desired: e18(1_000_000),
		Recipient: lp,
	})
	require.NoError(t, err)
	require.False(t, res.Liquidity.IsZero())
	return w, res.Handle
}

func TestInitializeOnlyOnce(t *testing.T) {
	w, _ := newSeededWorld(t)
	sqrt, err := clmath.GetSqrtRatioAtTick(100)
	require.NoError(t, err)
	require.NoError(t, w.Pool.InitializeIfNecessary(context.Background(), Token0Address, Token1Address, 500, sqrt))

	slot, err := w.Pool.Slot0(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(0), slot.Tick)
}

func TestMintAboveRangeTakesOnlyToken0(t *testing.T) {
	ctx := context.Background()
	w, _ := newSeededWorld(t)
	poolBefore, err := w.Token0.BalanceOf(ctx, PoolAddress)
	require.NoError(t, err)

	res, err := w.Registrar.Mint(ctx, lp, amm.MintParams{
		Token0: Token0Address, Token1: Token1Address, Fee: 500,
		TickLower: 0, TickUpper: 600,
		Amount0Desired: e18(10), Amount1Desired: e18(10),
		Recipient: lp,
	})
	require.NoError(t, err)
	require.True(t, res.Amount1.IsZero())
	if res.Amount0.Gt(e18(10)) {
		t.Fatalf("charged %s token0, desired %s", res.Amount0.Dec(), e18(10).Dec())
	}

	poolAfter, err := w.Token0.BalanceOf(ctx, PoolAddress)
	require.NoError(t, err)
	require.True(t, new(uint256.Int).Sub(poolAfter, poolBefore).Eq(res.Amount0))

	_, err = w.Registrar.Mint(ctx, lp, amm.MintParams{
		Token0: Token0Address, Token1: Token1Address, Fee: 500,
		TickLower: 5, TickUpper: 600,
		Amount0Desired: e18(10), Amount1Desired: e18(10),
		Recipient: lp,
	})
	require.ErrorIs(t, err, ErrInvalidTicks)
}

func TestSwapMovesPriceAndAccruesFees(t *testing.T) {
	ctx := context.Background()
	w, handle := newSeededWorld(t)

	out, err := w.SwapExactInput(ctx, trader, true, e18(1000))
	require.NoError(t, err)
	require.False(t, out.IsZero())
	require.True(t, out.Lt(e18(1000)))

	slot, err := w.Pool.Slot0(ctx)
	require.NoError(t, err)
	require.Less(t, slot.Tick, int32(0))
	require.True(t, slot.SqrtPriceX96.Lt(clmath.Q96()))

	got, err := w.Token1.BalanceOf(ctx, trader)
	require.NoError(t, err)
	require.True(t, got.Eq(out))

	fee0, fee1, err := w.Registrar.Collect(ctx, lp, handle, lp)
	require.NoError(t, err)
	require.True(t, fee1.IsZero())
	require.False(t, fee0.IsZero())
	require.True(t, fee0.Cmp(uint256.NewInt(501_000_000_000_000_000)) < 0, "fee %s", fee0.Dec())
	require.True(t, fee0.Cmp(uint256.NewInt(499_000_000_000_000_000)) > 0, "fee %s", fee0.Dec())
}

func TestSwapStopsAtPriceLimit(t *testing.T) {
	ctx := context.Background()
	w, _ := newSeededWorld(t)
	limit, err := clmath.GetSqrtRatioAtTick(50)
	require.NoError(t, err)

	w.Token1.Mint(trader, e18(100_000))
	require.NoError(t, w.Token1.Approve(ctx, trader, RouterAddress, e18(100_000)))
	_, err = w.Router.ExactInputSingle(ctx, trader, amm.ExactInputParams{
		TokenIn: Token1Address, TokenOut: Token0Address, Fee: 500,
		Recipient: trader, AmountIn: e18(100_000), SqrtPriceLimitX96: limit,
	})
	require.NoError(t, err)

	slot, err := w.Pool.Slot0(ctx)
	require.NoError(t, err)
	require.True(t, slot.SqrtPriceX96.Eq(limit))
	require.Equal(t, int32(50), slot.Tick)

	left, err := w.Token1.BalanceOf(ctx, trader)
	require.NoError(t, err)
	require.False(t, left.IsZero(), "unspent input stays with the trader")
}

func TestRouterMinimumOutRollsBack(t *testing.T) {
	ctx := context.Background()
	w, _ := newSeededWorld(t)
	before, err := w.Pool.Slot0(ctx)
	require.NoError(t, err)

	w.Token0.Mint(trader, e18(10))
	require.NoError(t, w.Token0.Approve(ctx, trader, RouterAddress, e18(10)))
	_, err = w.Router.ExactInputSingle(ctx, trader, amm.ExactInputParams{
		TokenIn: Token0Address, TokenOut: Token1Address, Fee: 500,
		Recipient: trader, AmountIn: e18(10), AmountOutMinimum: e18(10),
	})
	require.ErrorIs(t, err, amm.ErrTooLittleReceived)

	after, err := w.Pool.Slot0(ctx)
	require.NoError(t, err)
	require.True(t, before.SqrtPriceX96.Eq(after.SqrtPriceX96))
	bal, err := w.Token0.BalanceOf(ctx, trader)
	require.NoError(t, err)
	require.True(t, bal.Eq(e18(10)))
}

func TestObserveTracksTickCumulative(t *testing.T) {
	ctx := context.Background()
	w, _ := newSeededWorld(t)

	w.Mine(100)
	cumulatives, err := w.Pool.Observe(ctx, []uint32{100, 0})
	require.NoError(t, err)
	require.Equal(t, []int64{0, 0}, cumulatives)

	_, err = w.SwapExactInput(ctx, trader, true, e18(5000))
	require.NoError(t, err)
	slot, err := w.Pool.Slot0(ctx)
	require.NoError(t, err)

	w.Mine(60)
	cumulatives, err = w.Pool.Observe(ctx, []uint32{60, 0})
	require.NoError(t, err)
	require.Equal(t, int64(slot.Tick)*60, cumulatives[1]-cumulatives[0])

	cumulatives, err = w.Pool.Observe(ctx, []uint32{160, 0})
	require.NoError(t, err)
	require.Equal(t, int64(slot.Tick)*60, cumulatives[1]-cumulatives[0])

	_, err = w.Pool.Observe(ctx, []uint32{161})
	require.ErrorIs(t, err, amm.ErrObservationTooOld)
}

func TestBurnRequiresClearedPosition(t *testing.T) {
	ctx := context.Background()
	w, handle := newSeededWorld(t)

	require.ErrorIs(t, w.Registrar.Burn(ctx, lp, handle), ErrNotCleared)
	_, _, err := w.Registrar.DecreaseLiquidity(ctx, trader, handle, uint256.NewInt(1))
	require.ErrorIs(t, err, ErrNotOwner)

	liq, _ := w.Registrar.PositionLiquidity(handle)
	_, _, err = w.Registrar.DecreaseLiquidity(ctx, lp, handle, liq)
	require.NoError(t, err)
	require.ErrorIs(t, w.Registrar.Burn(ctx, lp, handle), ErrNotCleared)

	_, _, err = w.Registrar.Collect(ctx, lp, handle, lp)
	require.NoError(t, err)
	require.NoError(t, w.Registrar.Burn(ctx, lp, handle))

	_, ok := w.Registrar.PositionLiquidity(handle)
	require.False(t, ok)
}

func TestCheckpointRestoresEverything(t *testing.T) {
	ctx := context.Background()
	w, _ := newSeededWorld(t)
	rollback := w.Checkpoint()

	_, err := w.SwapExactInput(ctx, trader, false, e18(50))
	require.NoError(t, err)
	require.NoError(t, w.Shares.Mint(ctx, trader, e18(1)))

	rollback()
	slot, err := w.Pool.Slot0(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(0), slot.Tick)
	supply, err := w.Shares.TotalSupply(ctx)
	require.NoError(t, err)
	require.True(t, supply.IsZero())
	bal, err := w.Token1.BalanceOf(ctx, trader)
	require.NoError(t, err)
	require.True(t, bal.IsZero())
}
