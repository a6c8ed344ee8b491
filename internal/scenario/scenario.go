// Package scenario drives a vault through deposits, market trades, rebalances, burns and an optional range
// migration on the in-memory chain, reporting the vault's books after every round.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquidityVault/internal/access"
	"liquidityVault/internal/amm"
	"liquidityVault/internal/clmath"
	"liquidityVault/internal/model"
	"liquidityVault/internal/sim"
	"liquidityVault/internal/storage"
	"liquidityVault/internal/vault"
)

var (
	VaultAddress   = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	OwnerAddress   = common.HexToAddress("0x0000000000000000000000000000000000000001")
	ManagerAddress = common.HexToAddress("0x0000000000000000000000000000000000000002")
	AliceAddress   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	BobAddress     = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	LPAddress      = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	TraderAddress  = common.HexToAddress("0x00000000000000000000000000000000000000d4")
)

// Config controls a simulation run. Amount pairs are raw token units of asset0 and asset1.
type Config struct {
	Vault               vault.Config
	Decimals0           uint8
	Decimals1           uint8
	InitialSqrtPriceX96 *uint256.Int
	RangeWidth          int32
	// MigrateWidth, when positive, moves the position to the spot tick ± MigrateWidth halfway through.
	MigrateWidth int32

	PoolLiquidity [2]*uint256.Int
	Seed          [2]*uint256.Int
	Deposit       [2]*uint256.Int
	// TradeVolume is the asset0 amount swapped into the pool and back each round.
	TradeVolume *uint256.Int
	Rounds      int
	BurnDivisor uint64

	Events storage.EventSink
}

// RoundReport is the vault's state after one round.
type RoundReport struct {
	Round         int             `json:"round"`
	BlockNumber   uint64          `json:"block_number"`
	Minted        [2]string       `json:"minted"`
	Redeemed      [2]string       `json:"redeemed"`
	Swaps         int             `json:"rebalance_swaps"`
	Buffer        [2]string       `json:"buffer"`
	Staked        [2]string       `json:"staked"`
	Nav           string          `json:"nav"`
	Supply        string          `json:"supply"`
	PricePerShare decimal.Decimal `json:"price_per_share"`
	Asset0Price   decimal.Decimal `json:"asset0_price"`
	TickLower     int32           `json:"tick_lower"`
	TickUpper     int32           `json:"tick_upper"`
	Skipped       []string        `json:"skipped,omitempty"`
}

// Report is the outcome of a run.
type Report struct {
	Rounds        []RoundReport       `json:"rounds"`
	FeesWithdrawn [2]string           `json:"fees_withdrawn"`
	Events        int                 `json:"events"`
	Snapshot      model.VaultSnapshot `json:"snapshot"`
}

// Runner owns one simulated world and the vault deployed on it.
type Runner struct {
	cfg    Config
	logger *zap.Logger
	sink   *countingSink

	w *sim.World
	v *vault.Vault
}

type countingSink struct {
	next  storage.EventSink
	count int
}

func (s *countingSink) PutEvents(ctx context.Context, events []model.VaultEvent) error {
	if s.next != nil {
		if err := s.next.PutEvents(ctx, events); err != nil {
			return err
		}
	}
	s.count += len(events)
	return nil
}

// NewRunner returns a Runner for cfg. A nil logger discards output.
func NewRunner(cfg Config, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, logger: logger, sink: &countingSink{next: cfg.Events}}
}

// Vault returns the deployed vault once Run has set it up.
func (r *Runner) Vault() *vault.Vault { return r.v }

// World returns the simulated chain once Run has set it up.
func (r *Runner) World() *sim.World { return r.w }

// Run deploys the vault, seeds it and plays the configured rounds.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	if r.cfg.InitialSqrtPriceX96 == nil {
		return Report{}, fmt.Errorf("initial sqrt price is nil")
	}
	if r.cfg.RangeWidth <= 0 {
		return Report{}, fmt.Errorf("range width must be > 0")
	}
	if r.cfg.BurnDivisor == 0 {
		r.cfg.BurnDivisor = 4
	}
	for _, pair := range [][2]*uint256.Int{r.cfg.PoolLiquidity, r.cfg.Seed, r.cfg.Deposit} {
		if pair[0] == nil || pair[1] == nil {
			return Report{}, fmt.Errorf("amount pairs must be set")
		}
	}
	if r.cfg.TradeVolume == nil {
		r.cfg.TradeVolume = new(uint256.Int)
	}

	if err := r.setup(ctx); err != nil {
		return Report{}, err
	}

	report := Report{Rounds: make([]RoundReport, 0, r.cfg.Rounds)}
	for i := 1; i <= r.cfg.Rounds; i++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		round, err := r.round(ctx, i)
		if err != nil {
			return report, fmt.Errorf("round %d: %w", i, err)
		}
		report.Rounds = append(report.Rounds, round)
		r.logger.Info("round complete",
			zap.Int("round", i),
			zap.Uint64("block", round.BlockNumber),
			zap.String("nav", round.Nav),
			zap.String("price_per_share", round.PricePerShare.StringFixed(6)),
			zap.Int("rebalance_swaps", round.Swaps),
		)
	}

	fee0, fee1, err := r.v.WithdrawFees(ctx, OwnerAddress)
	if err != nil {
		return report, fmt.Errorf("withdraw fees: %w", err)
	}
	report.FeesWithdrawn = [2]string{fee0.Dec(), fee1.Dec()}
	report.Events = r.sink.count
	report.Snapshot = r.v.Snapshot()
	return report, nil
}

func (r *Runner) setup(ctx context.Context) error {
	r.w = sim.NewWorld(sim.Config{Decimals0: r.cfg.Decimals0, Decimals1: r.cfg.Decimals1})
	spacing := r.w.Pool.TickSpacing()

	tick, err := clmath.GetTickAtSqrtRatio(r.cfg.InitialSqrtPriceX96)
	if err != nil {
		return fmt.Errorf("initial tick: %w", err)
	}
	center := floorToSpacing(tick, spacing)
	width := ceilToSpacing(r.cfg.RangeWidth, spacing)

	vcfg := r.cfg.Vault
	vcfg.LowerTick = center - width
	vcfg.UpperTick = center + width
	vcfg.InitialSqrtPriceX96 = r.cfg.InitialSqrtPriceX96
	if vcfg.Logger == nil {
		vcfg.Logger = r.logger.Named("vault")
	}

	r.v, err = vault.New(ctx, vcfg, vault.Deps{
		Address:   VaultAddress,
		Pool:      r.w.Pool,
		Registrar: r.w.Registrar,
		Router:    r.w.Router,
		Token0:    r.w.Token0,
		Token1:    r.w.Token1,
		Shares:    r.w.Shares,
		Access:    access.NewRoles(OwnerAddress, ManagerAddress),
		Chain:     r.w,
		Journal:   r.w,
		Events:    r.sink,
	})
	if err != nil {
		return fmt.Errorf("deploy vault: %w", err)
	}

	if err := r.addOutsideLiquidity(ctx, center-4*width, center+4*width); err != nil {
		return err
	}
	r.w.Mine(uint64(r.v.TwapPeriod()))

	r.fund(ManagerAddress, r.cfg.Seed[0], r.cfg.Seed[1])
	shares, err := r.v.MintInitial(ctx, ManagerAddress, r.cfg.Seed[0], r.cfg.Seed[1])
	if err != nil {
		return fmt.Errorf("mint initial: %w", err)
	}
	r.logger.Info("vault seeded",
		zap.Int32("tick_lower", vcfg.LowerTick),
		zap.Int32("tick_upper", vcfg.UpperTick),
		zap.String("shares", shares.Dec()),
	)
	return nil
}

func (r *Runner) addOutsideLiquidity(ctx context.Context, lower, upper int32) error {
	amount0, amount1 := r.cfg.PoolLiquidity[0], r.cfg.PoolLiquidity[1]
	if amount0.IsZero() && amount1.IsZero() {
		return nil
	}
	r.w.Token0.Mint(LPAddress, amount0)
	r.w.Token1.Mint(LPAddress, amount1)
	unlimited := new(uint256.Int).SetAllOne()
	if err := r.w.Token0.Approve(ctx, LPAddress, sim.RegistrarAddress, unlimited); err != nil {
		return err
	}
	if err := r.w.Token1.Approve(ctx, LPAddress, sim.RegistrarAddress, unlimited); err != nil {
		return err
	}
	if _, err := r.w.Registrar.Mint(ctx, LPAddress, amm.MintParams{
		Token0: sim.Token0Address, Token1: sim.Token1Address, Fee: r.w.Pool.Fee(),
		TickLower: lower, TickUpper: upper,
		Amount0Desired: amount0, Amount1Desired: amount1,
		Recipient: LPAddress,
	}); err != nil {
		return fmt.Errorf("outside liquidity: %w", err)
	}
	return nil
}

func (r *Runner) fund(addr common.Address, amount0, amount1 *uint256.Int) {
	r.w.Token0.Mint(addr, amount0)
	r.w.Token1.Mint(addr, amount1)
	unlimited := new(uint256.Int).SetAllOne()
	// Approvals on the simulated tokens cannot fail.
	_ = r.w.Token0.Approve(context.Background(), addr, VaultAddress, unlimited)
	_ = r.w.Token1.Approve(context.Background(), addr, VaultAddress, unlimited)
}

func (r *Runner) round(ctx context.Context, n int) (RoundReport, error) {
	out := RoundReport{Round: n}
	minted := [2]*uint256.Int{new(uint256.Int), new(uint256.Int)}
	redeemed := [2]*uint256.Int{new(uint256.Int), new(uint256.Int)}

	depositors := [2]common.Address{AliceAddress, BobAddress}
	for i, addr := range depositors {
		amount := r.cfg.Deposit[i]
		if amount.IsZero() {
			continue
		}
		if i == 0 {
			r.fund(addr, amount, new(uint256.Int))
		} else {
			r.fund(addr, new(uint256.Int), amount)
		}
		shares, err := r.v.MintWithToken(ctx, addr, vault.Asset(i), amount)
		if err != nil {
			return out, fmt.Errorf("mint asset%d: %w", i, err)
		}
		minted[i] = shares
	}

	if err := r.trade(ctx); err != nil {
		return out, err
	}
	r.w.Mine(r.settleBlocks())

	res, err := r.v.Rebalance(ctx, ManagerAddress)
	if err != nil {
		return out, fmt.Errorf("rebalance: %w", err)
	}
	out.Swaps = res.Swaps

	if r.cfg.MigrateWidth > 0 && n == (r.cfg.Rounds+1)/2 {
		if err := r.migrate(ctx); err != nil {
			if !errors.Is(err, vault.ErrSameTicks) {
				return out, fmt.Errorf("migrate: %w", err)
			}
			out.Skipped = append(out.Skipped, "migrate: "+err.Error())
		}
	}

	for i, addr := range depositors {
		held, err := r.w.Shares.BalanceOf(ctx, addr)
		if err != nil {
			return out, err
		}
		amount := new(uint256.Int).Div(held, uint256.NewInt(r.cfg.BurnDivisor))
		if amount.IsZero() {
			continue
		}
		paid, err := r.v.Burn(ctx, addr, vault.Asset(i), amount)
		if errors.Is(err, vault.ErrInsufficientExitLiquidity) {
			r.logger.Warn("burn skipped", zap.Int("round", n), zap.String("account", addr.Hex()), zap.Error(err))
			out.Skipped = append(out.Skipped, fmt.Sprintf("burn asset%d: %v", i, err))
			continue
		}
		if err != nil {
			return out, fmt.Errorf("burn asset%d: %w", i, err)
		}
		redeemed[i] = paid
	}

	if err := r.fill(ctx, &out); err != nil {
		return out, err
	}
	out.Minted = [2]string{minted[0].Dec(), minted[1].Dec()}
	out.Redeemed = [2]string{redeemed[0].Dec(), redeemed[1].Dec()}

	r.w.Mine(r.lockBlocks() + 1)
	return out, nil
}

// trade swaps TradeVolume of asset0 in and the proceeds back out, leaving fees in the pool and the price
// close to where it started.
func (r *Runner) trade(ctx context.Context) error {
	if r.cfg.TradeVolume.IsZero() {
		return nil
	}
	out1, err := r.w.SwapExactInput(ctx, TraderAddress, true, r.cfg.TradeVolume)
	if err != nil {
		return fmt.Errorf("trade 0->1: %w", err)
	}
	if _, err := r.w.SwapExactInput(ctx, TraderAddress, false, out1); err != nil {
		return fmt.Errorf("trade 1->0: %w", err)
	}
	return nil
}

func (r *Runner) migrate(ctx context.Context) error {
	slot, err := r.w.Pool.Slot0(ctx)
	if err != nil {
		return err
	}
	spacing := r.w.Pool.TickSpacing()
	center := floorToSpacing(slot.Tick, spacing)
	width := ceilToSpacing(r.cfg.MigrateWidth, spacing)
	return r.v.MigratePosition(ctx, ManagerAddress, center-width, center+width)
}

// settleBlocks is long enough for the TWAP to catch up with the last trades and for deposit locks to expire.
func (r *Runner) settleBlocks() uint64 {
	blocks := uint64(r.v.TwapPeriod())
	if lock := r.lockBlocks() + 1; lock > blocks {
		blocks = lock
	}
	return blocks
}

func (r *Runner) lockBlocks() uint64 {
	if r.cfg.Vault.BlockLockDuration == 0 {
		return vault.DefaultBlockLockDuration
	}
	return r.cfg.Vault.BlockLockDuration
}

func (r *Runner) fill(ctx context.Context, out *RoundReport) error {
	out.BlockNumber = r.w.BlockNumber()
	out.TickLower, out.TickUpper = r.v.Ticks()

	buf0, err := r.w.Token0.BalanceOf(ctx, VaultAddress)
	if err != nil {
		return err
	}
	buf1, err := r.w.Token1.BalanceOf(ctx, VaultAddress)
	if err != nil {
		return err
	}
	fees0, fees1 := r.v.WithdrawableFees()
	buf0 = clmath.SubFloor(buf0, fees0)
	buf1 = clmath.SubFloor(buf1, fees1)
	staked0, staked1, err := r.v.AmountsForLiquidity(ctx, r.v.Liquidity())
	if err != nil {
		return err
	}
	out.Buffer = [2]string{buf0.Dec(), buf1.Dec()}
	out.Staked = [2]string{staked0.Dec(), staked1.Dec()}

	nav, err := r.v.Nav(ctx)
	if err != nil {
		return err
	}
	supply, err := r.w.Shares.TotalSupply(ctx)
	if err != nil {
		return err
	}
	out.Nav = nav.Dec()
	out.Supply = supply.Dec()
	if !supply.IsZero() {
		out.PricePerShare = decimal.NewFromBigInt(nav.ToBig(), 0).Div(decimal.NewFromBigInt(supply.ToBig(), 0))
	}

	price, err := r.v.Asset0Price(ctx)
	if err != nil {
		return err
	}
	out.Asset0Price = price.Decimal()
	return nil
}

// SqrtPriceX96 converts a human price of asset0 in asset1 into a pool sqrt price for the given decimals.
func SqrtPriceX96(price decimal.Decimal, decimals0, decimals1 uint8) (*uint256.Int, error) {
	if !price.IsPositive() {
		return nil, fmt.Errorf("price must be positive, got %s", price)
	}
	num := new(big.Int).Set(price.Coefficient())
	den := big.NewInt(1)
	exp := int64(price.Exponent()) + int64(decimals1) - int64(decimals0)
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(abs64(exp)), nil)
	if exp >= 0 {
		num.Mul(num, scale)
	} else {
		den.Mul(den, scale)
	}
	return clmath.SqrtRatioAtPrice(num, den)
}

func floorToSpacing(tick, spacing int32) int32 {
	q := tick / spacing
	if tick%spacing != 0 && tick < 0 {
		q--
	}
	return q * spacing
}

func ceilToSpacing(width, spacing int32) int32 {
	return ((width + spacing - 1) / spacing) * spacing
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
