package position

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"liquidityVault/internal/clmath"
	"liquidityVault/internal/sim"
)

var holder = common.HexToAddress("0x00000000000000000000000000000000000000f1")

func e18(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1e18))
}

func newManager(t *testing.T) (*sim.World, *Manager) {
	t.Helper()
	ctx := context.Background()
	w := sim.NewWorld(sim.Config{Decimals0: 18, Decimals1: 18})
	require.NoError(t, w.Pool.InitializeIfNecessary(ctx, sim.Token0Address, sim.Token1Address, 500, clmath.Q96()))

	w.Token0.Mint(holder, e18(1000))
	w.Token1.Mint(holder, e18(1000))
	unlimited := new(uint256.Int).SetAllOne()
	require.NoError(t, w.Token0.Approve(ctx, holder, sim.RegistrarAddress, unlimited))
	require.NoError(t, w.Token1.Approve(ctx, holder, sim.RegistrarAddress, unlimited))

	return w, NewManager(Config{Pool: w.Pool, Registrar: w.Registrar, Owner: holder})
}

func TestValidateTicks(t *testing.T) {
	_, m := newManager(t)
	cases := []struct {
		name         string
		lower, upper int32
		ok           bool
	}{
		{name: "valid", lower: -100, upper: 100, ok: true},
		{name: "inverted", lower: 100, upper: -100},
		{name: "equal", lower: 10, upper: 10},
		{name: "off spacing", lower: -105, upper: 100},
		{name: "below min", lower: clmath.MinTick - 8, upper: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := m.ValidateTicks(tc.lower, tc.upper)
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidTicks)
		})
	}
}

func TestMintOnce(t *testing.T) {
	ctx := context.Background()
	_, m := newManager(t)
	var pos Position

	_, err := m.Mint(ctx, &pos, -100, 100, new(uint256.Int), new(uint256.Int))
	require.ErrorIs(t, err, ErrZeroAmounts)

	res, err := m.Mint(ctx, &pos, -100, 100, e18(10), e18(10))
	require.NoError(t, err)
	require.True(t, pos.Active)
	require.Equal(t, res.Handle, pos.Handle)
	require.True(t, pos.Liquidity.Eq(res.Liquidity))
	lower, upper := pos.Ticks()
	require.Equal(t, int32(-100), lower)
	require.Equal(t, int32(100), upper)

	_, err = m.Mint(ctx, &pos, -100, 100, e18(10), e18(10))
	require.ErrorIs(t, err, ErrPositionActive)
}

func TestPoolMintedAmountsMatchesMint(t *testing.T) {
	ctx := context.Background()
	_, m := newManager(t)

	liquidity, used0, used1, err := m.PoolMintedAmounts(ctx, -200, 400, e18(7), e18(3))
	require.NoError(t, err)

	var pos Position
	res, err := m.Mint(ctx, &pos, -200, 400, used0, used1)
	require.NoError(t, err)
	if res.Amount0.Gt(used0) || res.Amount1.Gt(used1) {
		t.Fatalf("minted %s/%s, quoted %s/%s", res.Amount0.Dec(), res.Amount1.Dec(), used0.Dec(), used1.Dec())
	}
	floor := new(uint256.Int).AddUint64(res.Liquidity, 2)
	require.True(t, floor.Cmp(liquidity) >= 0, "liquidity %s vs quoted %s", res.Liquidity.Dec(), liquidity.Dec())
}

func TestStakedBalanceTracksLiquidity(t *testing.T) {
	ctx := context.Background()
	_, m := newManager(t)
	var pos Position

	zero0, zero1, err := m.StakedTokenBalance(ctx, &pos)
	require.NoError(t, err)
	require.True(t, zero0.IsZero() && zero1.IsZero())

	_, err = m.Mint(ctx, &pos, -100, 100, e18(10), e18(10))
	require.NoError(t, err)
	staked0, staked1, err := m.StakedTokenBalance(ctx, &pos)
	require.NoError(t, err)
	require.True(t, staked0.Cmp(e18(10)) <= 0)
	require.True(t, staked1.Cmp(e18(10)) <= 0)

	half := new(uint256.Int).Rsh(&pos.Liquidity, 1)
	got0, got1, err := m.RemoveLiquidity(ctx, &pos, half)
	require.NoError(t, err)
	require.False(t, got0.IsZero())
	require.False(t, got1.IsZero())

	after0, _, err := m.StakedTokenBalance(ctx, &pos)
	require.NoError(t, err)
	require.True(t, after0.Lt(staked0))

	_, _, err = m.RemoveLiquidity(ctx, &pos, e18(1_000_000_000))
	require.ErrorIs(t, err, ErrExcessLiquidity)
}

func TestAddLiquidity(t *testing.T) {
	ctx := context.Background()
	w, m := newManager(t)
	var pos Position

	_, _, _, err := m.AddLiquidity(ctx, &pos, e18(1), e18(1))
	require.ErrorIs(t, err, ErrPositionInactive)

	_, err = m.Mint(ctx, &pos, -100, 100, e18(10), e18(10))
	require.NoError(t, err)
	before := pos.Liquidity.Clone()

	added, _, _, err := m.AddLiquidity(ctx, &pos, e18(5), e18(5))
	require.NoError(t, err)
	require.False(t, added.IsZero())
	require.True(t, pos.Liquidity.Eq(new(uint256.Int).Add(before, added)))

	onChain, ok := w.Registrar.PositionLiquidity(pos.Handle)
	require.True(t, ok)
	require.True(t, onChain.Eq(&pos.Liquidity))
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	w, m := newManager(t)
	var pos Position

	_, err := m.Mint(ctx, &pos, -100, 100, e18(10), e18(10))
	require.NoError(t, err)

	_, err = m.Migrate(ctx, &pos, -100, 100, nil)
	require.ErrorIs(t, err, ErrSameTicks)

	oldHandle := pos.Handle
	balances := func(ctx context.Context) (*uint256.Int, *uint256.Int, error) {
		b0, err := w.Token0.BalanceOf(ctx, holder)
		if err != nil {
			return nil, nil, err
		}
		b1, err := w.Token1.BalanceOf(ctx, holder)
		return b0, b1, err
	}
	res, err := m.Migrate(ctx, &pos, -200, 200, balances)
	require.NoError(t, err)
	require.Equal(t, oldHandle, res.OldHandle)
	require.NotEqual(t, oldHandle, pos.Handle)
	require.Equal(t, int32(-200), pos.LowerTick)
	require.Equal(t, int32(200), pos.UpperTick)

	_, ok := w.Registrar.PositionLiquidity(oldHandle)
	require.False(t, ok, "old handle must be burned")
}

func TestRetireResetsRecord(t *testing.T) {
	ctx := context.Background()
	_, m := newManager(t)
	var pos Position

	_, err := m.Mint(ctx, &pos, -100, 100, e18(10), e18(10))
	require.NoError(t, err)
	_, _, err = m.Retire(ctx, &pos)
	require.NoError(t, err)
	require.Equal(t, Position{}, pos)
}
