package vault

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"liquidityVault/internal/access"
	"liquidityVault/internal/amm"
	"liquidityVault/internal/clmath"
	"liquidityVault/internal/model"
	"liquidityVault/internal/sim"
)

var (
	vaultAddr = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	owner     = common.HexToAddress("0x0000000000000000000000000000000000000001")
	manager   = common.HexToAddress("0x0000000000000000000000000000000000000002")
	alice     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob       = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	lp        = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	trader    = common.HexToAddress("0x00000000000000000000000000000000000000d4")
)

const testTwapPeriod = 60

type recordingSink struct {
	events []model.VaultEvent
	fail   error
}

func (s *recordingSink) PutEvents(_ context.Context, events []model.VaultEvent) error {
	if s.fail != nil {
		return s.fail
	}
	s.events = append(s.events, events...)
	return nil
}

func (s *recordingSink) names() []string {
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.EventName)
	}
	return out
}

type envConfig struct {
	decimals0 uint8
	decimals1 uint8
	center    int32
	cfg       Config
	wrap0     func(amm.Token) amm.Token
}

type env struct {
	t     *testing.T
	ctx   context.Context
	w     *sim.World
	v     *Vault
	roles *access.Roles
	sink  *recordingSink
	dec   [2]uint8
}

func newEnv(t *testing.T, ec envConfig) *env {
	t.Helper()
	if ec.decimals0 == 0 {
		ec.decimals0 = 18
	}
	if ec.decimals1 == 0 {
		ec.decimals1 = 18
	}
	ctx := context.Background()
	w := sim.NewWorld(sim.Config{Decimals0: ec.decimals0, Decimals1: ec.decimals1})

	sqrt, err := clmath.GetSqrtRatioAtTick(ec.center)
	require.NoError(t, err)
	cfg := ec.cfg
	cfg.LowerTick = ec.center - 600
	cfg.UpperTick = ec.center + 600
	cfg.InitialSqrtPriceX96 = sqrt
	if cfg.TwapPeriod == 0 {
		cfg.TwapPeriod = testTwapPeriod
	}

	var token0 amm.Token = w.Token0
	if ec.wrap0 != nil {
		token0 = ec.wrap0(w.Token0)
	}
	roles := access.NewRoles(owner, manager)
	sink := &recordingSink{}
	v, err := New(ctx, cfg, Deps{
		Address:   vaultAddr,
		Pool:      w.Pool,
		Registrar: w.Registrar,
		Router:    w.Router,
		Token0:    token0,
		Token1:    w.Token1,
		Shares:    w.Shares,
		Access:    roles,
		Chain:     w,
		Journal:   w,
		Events:    sink,
	})
	require.NoError(t, err)

	e := &env{t: t, ctx: ctx, w: w, v: v, roles: roles, sink: sink, dec: [2]uint8{ec.decimals0, ec.decimals1}}

	// Deep outside liquidity keeps vault swaps close to the TWAP.
	ext0, ext1 := e.units(0, 1_000_000_000), e.units(1, 1_000_000_000)
	w.Token0.Mint(lp, ext0)
	w.Token1.Mint(lp, ext1)
	require.NoError(t, w.Token0.Approve(ctx, lp, sim.RegistrarAddress, ext0))
	require.NoError(t, w.Token1.Approve(ctx, lp, sim.RegistrarAddress, ext1))
	_, err = w.Registrar.Mint(ctx, lp, amm.MintParams{
		Token0: sim.Token0Address, Token1: sim.Token1Address, Fee: w.Pool.Fee(),
		TickLower: ec.center - 1200, TickUpper: ec.center + 1200,
		Amount0Desired: ext0, Amount1Desired: ext1,
		Recipient: lp,
	})
	require.NoError(t, err)

	w.Mine(testTwapPeriod)
	return e
}

// units returns n whole tokens of asset a.
func (e *env) units(a Asset, n uint64) *uint256.Int {
	scale := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(e.dec[a])))
	return scale.Mul(scale, uint256.NewInt(n))
}

func (e *env) fund(addr common.Address, amount0, amount1 *uint256.Int) {
	e.t.Helper()
	e.w.Token0.Mint(addr, amount0)
	e.w.Token1.Mint(addr, amount1)
	unlimited := new(uint256.Int).SetAllOne()
	require.NoError(e.t, e.w.Token0.Approve(e.ctx, addr, vaultAddr, unlimited))
	require.NoError(e.t, e.w.Token1.Approve(e.ctx, addr, vaultAddr, unlimited))
}

func (e *env) mintInitial(n uint64) *uint256.Int {
	e.t.Helper()
	a0, a1 := e.units(0, n), e.units(1, n)
	e.fund(manager, a0, a1)
	shares, err := e.v.MintInitial(e.ctx, manager, a0, a1)
	require.NoError(e.t, err)
	return shares
}

func (e *env) deposit(addr common.Address, a Asset, amount *uint256.Int) *uint256.Int {
	e.t.Helper()
	if a == Asset0 {
		e.fund(addr, amount, new(uint256.Int))
	} else {
		e.fund(addr, new(uint256.Int), amount)
	}
	shares, err := e.v.MintWithToken(e.ctx, addr, a, amount)
	require.NoError(e.t, err)
	return shares
}

func (e *env) shareBalance(addr common.Address) *uint256.Int {
	e.t.Helper()
	bal, err := e.w.Shares.BalanceOf(e.ctx, addr)
	require.NoError(e.t, err)
	return bal
}

func (e *env) supply() *uint256.Int {
	e.t.Helper()
	s, err := e.w.Shares.TotalSupply(e.ctx)
	require.NoError(e.t, err)
	return s
}

func (e *env) nav() *uint256.Int {
	e.t.Helper()
	nav, err := e.v.Nav(e.ctx)
	require.NoError(e.t, err)
	return nav
}

// requireNear asserts |got-want| <= want/relative + slack.
func requireNear(t *testing.T, want, got *uint256.Int, relative, slack uint64, msg string) {
	t.Helper()
	bound := new(uint256.Int).Div(want, uint256.NewInt(relative))
	bound.AddUint64(bound, slack)
	diff := clmath.AbsDiff(want, got)
	if diff.Gt(bound) {
		t.Fatalf("%s: want %s, got %s (diff %s > %s)", msg, want.Dec(), got.Dec(), diff.Dec(), bound.Dec())
	}
}
