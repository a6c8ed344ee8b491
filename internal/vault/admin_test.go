package vault

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"liquidityVault/internal/amm"
	"liquidityVault/internal/model"
)

func TestSetFeeDivisors(t *testing.T) {
	e := newEnv(t, envConfig{})
	e.mintInitial(1_000_000)

	err := e.v.SetFeeDivisors(e.ctx, manager, FeeDivisors{Mint: 100, Burn: 100, Claim: 10})
	require.ErrorIs(t, err, ErrUnauthorized)
	err = e.v.SetFeeDivisors(e.ctx, owner, FeeDivisors{Mint: 0, Burn: 100, Claim: 10})
	require.ErrorIs(t, err, ErrInvalidFeeDivisor)
	require.Equal(t, FeeDivisors{Mint: DefaultMintFee, Burn: DefaultBurnFee, Claim: DefaultClaimFee}, e.v.FeeDivisors())

	require.NoError(t, e.v.SetFeeDivisors(e.ctx, owner, FeeDivisors{Mint: 100, Burn: 200, Claim: 10}))
	require.Equal(t, FeeDivisors{Mint: 100, Burn: 200, Claim: 10}, e.v.FeeDivisors())

	last := e.sink.events[len(e.sink.events)-1]
	require.Equal(t, model.EventFeeDivisorsSet, last.EventName)
	require.Equal(t, model.FeeDivisorsSetData{MintFee: 100, BurnFee: 200, ClaimFee: 10}, last.Decoded)

	amount := e.units(0, 1000)
	e.deposit(alice, Asset0, amount)
	fees0, _ := e.v.WithdrawableFees()
	require.Equal(t, e.units(0, 10).Dec(), fees0.Dec())
}

func TestMigratePosition(t *testing.T) {
	e := newEnv(t, envConfig{})
	e.mintInitial(1_000_000)
	e.deposit(alice, Asset0, e.units(0, 1000))
	oldHandle := e.v.TokenID()
	navBefore := e.nav()

	require.ErrorIs(t, e.v.MigratePosition(e.ctx, alice, -1200, 1200), ErrUnauthorized)
	require.ErrorIs(t, e.v.MigratePosition(e.ctx, manager, -600, 600), ErrSameTicks)
	require.ErrorIs(t, e.v.MigratePosition(e.ctx, manager, -1205, 1200), ErrInvalidTicks)
	require.ErrorIs(t, e.v.MigratePosition(e.ctx, manager, 1200, -1200), ErrInvalidTicks)
	require.Equal(t, oldHandle, e.v.TokenID())

	require.NoError(t, e.v.MigratePosition(e.ctx, manager, -1200, 1200))
	require.NotEqual(t, oldHandle, e.v.TokenID())
	lower, upper := e.v.Ticks()
	require.Equal(t, int32(-1200), lower)
	require.Equal(t, int32(1200), upper)
	require.False(t, e.v.Liquidity().IsZero())
	requireNear(t, navBefore, e.nav(), 1_000_000_000_000, 10, "nav across migration")

	last := e.sink.events[len(e.sink.events)-1]
	require.Equal(t, model.EventPositionMigrated, last.EventName)
	data, ok := last.Decoded.(model.PositionMigratedData)
	require.True(t, ok)
	require.Equal(t, oldHandle, data.OldHandle)
	require.Equal(t, e.v.TokenID(), data.NewHandle)

	_, ok = e.w.Registrar.PositionLiquidity(oldHandle)
	require.False(t, ok, "old position should be burned")
}

func TestPricesFollowPool(t *testing.T) {
	e := newEnv(t, envConfig{})
	e.mintInitial(1_000_000)

	p0, err := e.v.Asset0Price(e.ctx)
	require.NoError(t, err)
	p1, err := e.v.Asset1Price(e.ctx)
	require.NoError(t, err)
	require.Zero(t, p0.Cmp(p1), "tick 0 prices both assets at 1")

	_, err = e.w.SwapExactInput(e.ctx, trader, true, e.units(0, 10_000_000))
	require.NoError(t, err)
	e.w.Mine(testTwapPeriod)

	q0, err := e.v.Asset0Price(e.ctx)
	require.NoError(t, err)
	q1, err := e.v.Asset1Price(e.ctx)
	require.NoError(t, err)
	require.Equal(t, -1, q0.Cmp(p0))
	require.Equal(t, 1, q1.Cmp(p1))
}

func TestTwapDeviationGuard(t *testing.T) {
	e := newEnv(t, envConfig{})
	e.mintInitial(1_000_000)

	_, err := e.w.SwapExactInput(e.ctx, trader, false, e.units(1, 200_000_000))
	require.NoError(t, err)
	e.w.Mine(testTwapPeriod)

	amount := e.units(0, 1000)
	e.fund(alice, amount, new(uint256.Int))
	_, err = e.v.MintWithToken(e.ctx, alice, Asset0, amount)
	require.ErrorIs(t, err, ErrTwapDeviation)

	require.ErrorIs(t, e.v.ResetTwap(e.ctx, alice), ErrUnauthorized)
	require.NoError(t, e.v.ResetTwap(e.ctx, manager))
	_, err = e.v.MintWithToken(e.ctx, alice, Asset0, amount)
	require.NoError(t, err)
}

func TestTwapDeviationCanBeDisabled(t *testing.T) {
	e := newEnv(t, envConfig{cfg: Config{DisableTwapDeviation: true}})
	e.mintInitial(1_000_000)

	_, err := e.w.SwapExactInput(e.ctx, trader, false, e.units(1, 200_000_000))
	require.NoError(t, err)
	e.w.Mine(testTwapPeriod)
	e.deposit(alice, Asset0, e.units(0, 1000))
}

func TestSetTwapPeriod(t *testing.T) {
	e := newEnv(t, envConfig{})

	require.ErrorIs(t, e.v.SetTwapPeriod(e.ctx, owner, 0), ErrInvalidTwapPeriod)
	err := e.v.SetTwapPeriod(e.ctx, owner, 3600)
	require.ErrorIs(t, err, ErrInvalidTwapPeriod)
	require.ErrorIs(t, err, ErrInsufficientObservations)
	require.ErrorIs(t, e.v.SetTwapPeriod(e.ctx, manager, 30), ErrUnauthorized)

	require.NoError(t, e.v.SetTwapPeriod(e.ctx, owner, 30))
	require.Equal(t, uint32(30), e.v.TwapPeriod())
}

type hookToken struct {
	amm.Token
	hook func()
}

func (h *hookToken) TransferFrom(ctx context.Context, spender, from, to common.Address, amount *uint256.Int) error {
	if hook := h.hook; hook != nil {
		h.hook = nil
		hook()
	}
	return h.Token.TransferFrom(ctx, spender, from, to, amount)
}

func TestReentryIsRejected(t *testing.T) {
	var hooked *hookToken
	e := newEnv(t, envConfig{wrap0: func(tok amm.Token) amm.Token {
		hooked = &hookToken{Token: tok}
		return hooked
	}})
	e.mintInitial(1_000_000)

	var inner error
	e.fund(bob, new(uint256.Int), e.units(1, 10))
	hooked.hook = func() {
		_, inner = e.v.MintWithToken(e.ctx, bob, Asset1, e.units(1, 10))
	}
	e.deposit(alice, Asset0, e.units(0, 1000))
	require.ErrorIs(t, inner, ErrReentrant)
	require.True(t, e.shareBalance(bob).IsZero())
}

func TestFailedPublishRollsBack(t *testing.T) {
	e := newEnv(t, envConfig{})
	e.mintInitial(1_000_000)
	e.deposit(alice, Asset0, e.units(0, 1000))

	fees0, _ := e.v.WithdrawableFees()
	held, err := e.w.Token0.BalanceOf(e.ctx, manager)
	require.NoError(t, err)
	published := len(e.sink.events)

	e.sink.fail = errors.New("sink down")
	_, _, err = e.v.WithdrawFees(e.ctx, manager)
	require.ErrorContains(t, err, "sink down")
	require.Error(t, e.v.SetFeeDivisors(e.ctx, owner, FeeDivisors{Mint: 1, Burn: 1, Claim: 1}))

	after0, _ := e.v.WithdrawableFees()
	require.True(t, after0.Eq(fees0))
	heldAfter, err := e.w.Token0.BalanceOf(e.ctx, manager)
	require.NoError(t, err)
	require.True(t, heldAfter.Eq(held))
	require.Equal(t, DefaultMintFee, int(e.v.FeeDivisors().Mint))

	e.sink.fail = nil
	require.NoError(t, e.v.SetFeeDivisors(e.ctx, owner, FeeDivisors{Mint: 1000, Burn: 1000, Claim: 10}))
	require.Len(t, e.sink.events, published+1)
	require.Equal(t, e.sink.events[published-1].Sequence+1, e.sink.events[published].Sequence)
}

func TestSnapshotRestore(t *testing.T) {
	e := newEnv(t, envConfig{})
	e.mintInitial(1_000_000)
	e.deposit(alice, Asset0, e.units(0, 1000))

	snap := e.v.Snapshot()
	require.Equal(t, model.SnapshotVersion, snap.Version)
	require.True(t, snap.Position.Active)
	require.Equal(t, e.v.TokenID(), snap.Position.Handle)
	require.Contains(t, snap.LockedUntil, alice.Hex())

	require.NoError(t, e.v.SetFeeDivisors(e.ctx, owner, FeeDivisors{Mint: 10, Burn: 10, Claim: 10}))
	require.NoError(t, e.v.Restore(snap))
	require.Equal(t, FeeDivisors{Mint: DefaultMintFee, Burn: DefaultBurnFee, Claim: DefaultClaimFee}, e.v.FeeDivisors())
	require.Equal(t, snap, e.v.Snapshot())

	_, err := e.v.Burn(e.ctx, alice, Asset0, uint256.NewInt(1))
	require.ErrorIs(t, err, ErrBlockLocked)

	bad := snap
	bad.MintFee = 0
	require.ErrorIs(t, e.v.Restore(bad), ErrInvalidFeeDivisor)
	bad = snap
	bad.Version = model.SnapshotVersion + 1
	require.ErrorIs(t, e.v.Restore(bad), model.ErrUnsupportedSnapshot)
}
