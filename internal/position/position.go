// Package position manages the lifecycle of the vault's single concentrated-liquidity position.
package position

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityVault/internal/amm"
	"liquidityVault/internal/clmath"
)

var (
	ErrPositionActive   = errors.New("position already initialized")
	ErrPositionInactive = errors.New("position not initialized")
	ErrInvalidTicks     = errors.New("invalid position ticks")
	ErrSameTicks        = errors.New("position may only be migrated with different ticks")
	ErrZeroAmounts      = errors.New("cannot mint without sending tokens")
	ErrExcessLiquidity  = errors.New("liquidity exceeds position")
)

// Position is the singleton position record. The zero value is an uninitialized position.
type Position struct {
	LowerTick int32
	UpperTick int32
	Liquidity uint256.Int
	Handle    uint64
	Active    bool
}

// Ticks returns the position's range.
func (p *Position) Ticks() (int32, int32) { return p.LowerTick, p.UpperTick }

// BalanceFunc reports the token amounts available for a new position.
type BalanceFunc func(ctx context.Context) (*uint256.Int, *uint256.Int, error)

// Config wires a Manager to its pool. Owner is the account that holds the position and pays for it.
type Config struct {
	Pool      amm.Pool
	Registrar amm.PositionRegistrar
	Owner     common.Address
	Logger    *zap.Logger
}

// Manager performs position operations on a caller-owned Position record.
type Manager struct {
	pool      amm.Pool
	registrar amm.PositionRegistrar
	owner     common.Address
	logger    *zap.Logger
}

// MintResult describes a freshly minted position.
type MintResult struct {
	Handle    uint64
	Liquidity *uint256.Int
	Amount0   *uint256.Int
	Amount1   *uint256.Int
}

// MigrateResult describes a completed migration.
type MigrateResult struct {
	OldHandle uint64
	Removed0  *uint256.Int
	Removed1  *uint256.Int
	Minted    MintResult
}

// NewManager returns a Manager over cfg's registrar.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		pool:      cfg.Pool,
		registrar: cfg.Registrar,
		owner:     cfg.Owner,
		logger:    logger,
	}
}

// ValidateTicks checks ordering, bounds and tick spacing.
func (m *Manager) ValidateTicks(lower, upper int32) error {
	if lower >= upper {
		return fmt.Errorf("%w: lower %d >= upper %d", ErrInvalidTicks, lower, upper)
	}
	if lower < clmath.MinTick || upper > clmath.MaxTick {
		return fmt.Errorf("%w: [%d, %d] outside tick bounds", ErrInvalidTicks, lower, upper)
	}
	spacing := m.pool.TickSpacing()
	if spacing <= 0 || lower%spacing != 0 || upper%spacing != 0 {
		return fmt.Errorf("%w: [%d, %d] not multiples of spacing %d", ErrInvalidTicks, lower, upper, spacing)
	}
	return nil
}

// AmountsForLiquidity converts liquidity over [lower, upper] into token amounts at the current pool price.
func (m *Manager) AmountsForLiquidity(ctx context.Context, lower, upper int32, liquidity *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	slot, err := m.pool.Slot0(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read slot0: %w", err)
	}
	sqrtA, sqrtB, err := rangeRatios(lower, upper)
	if err != nil {
		return nil, nil, err
	}
	return clmath.AmountsForLiquidity(slot.SqrtPriceX96, sqrtA, sqrtB, liquidity)
}

// StakedTokenBalance returns the token amounts the position is worth at the current price.
func (m *Manager) StakedTokenBalance(ctx context.Context, pos *Position) (*uint256.Int, *uint256.Int, error) {
	if !pos.Active || pos.Liquidity.IsZero() {
		return new(uint256.Int), new(uint256.Int), nil
	}
	return m.AmountsForLiquidity(ctx, pos.LowerTick, pos.UpperTick, &pos.Liquidity)
}

// PoolMintedAmounts quotes how much of each token the pool would consume for the desired amounts.
func (m *Manager) PoolMintedAmounts(ctx context.Context, lower, upper int32, amount0, amount1 *uint256.Int) (liquidity, used0, used1 *uint256.Int, err error) {
	slot, err := m.pool.Slot0(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read slot0: %w", err)
	}
	sqrtA, sqrtB, err := rangeRatios(lower, upper)
	if err != nil {
		return nil, nil, nil, err
	}
	liquidity, err = clmath.LiquidityForAmounts(slot.SqrtPriceX96, sqrtA, sqrtB, amount0, amount1)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("liquidity for amounts: %w", err)
	}
	used0, used1, err = clmath.AmountsForLiquidityRoundingUp(slot.SqrtPriceX96, sqrtA, sqrtB, liquidity)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("amounts for liquidity: %w", err)
	}
	return liquidity, used0, used1, nil
}

// LiquidityForAmounts returns the liquidity the given amounts represent in the position's range.
func (m *Manager) LiquidityForAmounts(ctx context.Context, pos *Position, amount0, amount1 *uint256.Int) (*uint256.Int, error) {
	liquidity, _, _, err := m.PoolMintedAmounts(ctx, pos.LowerTick, pos.UpperTick, amount0, amount1)
	return liquidity, err
}

// Mint creates the position. It fails when one is already active or no tokens are offered.
func (m *Manager) Mint(ctx context.Context, pos *Position, lower, upper int32, amount0, amount1 *uint256.Int) (MintResult, error) {
	if pos.Active {
		return MintResult{}, ErrPositionActive
	}
	if amount0.IsZero() && amount1.IsZero() {
		return MintResult{}, ErrZeroAmounts
	}
	if err := m.ValidateTicks(lower, upper); err != nil {
		return MintResult{}, err
	}

	res, err := m.registrar.Mint(ctx, m.owner, amm.MintParams{
		Token0:         m.pool.Token0(),
		Token1:         m.pool.Token1(),
		Fee:            m.pool.Fee(),
		TickLower:      lower,
		TickUpper:      upper,
		Amount0Desired: amount0,
		Amount1Desired: amount1,
		Recipient:      m.owner,
	})
	if err != nil {
		return MintResult{}, fmt.Errorf("mint position: %w", err)
	}

	pos.LowerTick = lower
	pos.UpperTick = upper
	pos.Liquidity.Set(res.Liquidity)
	pos.Handle = res.Handle
	pos.Active = true

	m.logger.Debug("position minted",
		zap.Uint64("handle", res.Handle),
		zap.Int32("tick_lower", lower),
		zap.Int32("tick_upper", upper),
		zap.String("liquidity", res.Liquidity.Dec()),
	)

	return MintResult{
		Handle:    res.Handle,
		Liquidity: res.Liquidity,
		Amount0:   res.Amount0,
		Amount1:   res.Amount1,
	}, nil
}

// AddLiquidity stakes up to the given amounts. Zero amounts are a no-op.
func (m *Manager) AddLiquidity(ctx context.Context, pos *Position, amount0, amount1 *uint256.Int) (liquidity, used0, used1 *uint256.Int, err error) {
	if !pos.Active {
		return nil, nil, nil, ErrPositionInactive
	}
	if amount0.IsZero() && amount1.IsZero() {
		return new(uint256.Int), new(uint256.Int), new(uint256.Int), nil
	}
	quoted, err := m.LiquidityForAmounts(ctx, pos, amount0, amount1)
	if err != nil {
		return nil, nil, nil, err
	}
	if quoted.IsZero() {
		return new(uint256.Int), new(uint256.Int), new(uint256.Int), nil
	}

	liquidity, used0, used1, err = m.registrar.IncreaseLiquidity(ctx, m.owner, pos.Handle, amount0, amount1)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("increase liquidity: %w", err)
	}
	total, err := clmath.Add(&pos.Liquidity, liquidity)
	if err != nil {
		return nil, nil, nil, err
	}
	pos.Liquidity.Set(total)
	return liquidity, used0, used1, nil
}

// RemoveLiquidity unstakes liquidity and collects everything owed back to the owner.
func (m *Manager) RemoveLiquidity(ctx context.Context, pos *Position, liquidity *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	if !pos.Active {
		return nil, nil, ErrPositionInactive
	}
	if liquidity.Gt(&pos.Liquidity) {
		return nil, nil, fmt.Errorf("%w: %s > %s", ErrExcessLiquidity, liquidity.Dec(), pos.Liquidity.Dec())
	}
	if liquidity.IsZero() {
		return new(uint256.Int), new(uint256.Int), nil
	}

	if _, _, err := m.registrar.DecreaseLiquidity(ctx, m.owner, pos.Handle, liquidity); err != nil {
		return nil, nil, fmt.Errorf("decrease liquidity: %w", err)
	}
	pos.Liquidity.Sub(&pos.Liquidity, liquidity)

	amount0, amount1, err := m.registrar.Collect(ctx, m.owner, pos.Handle, m.owner)
	if err != nil {
		return nil, nil, fmt.Errorf("collect: %w", err)
	}
	return amount0, amount1, nil
}

// CollectFees claims trading fees owed to the position without touching its liquidity.
func (m *Manager) CollectFees(ctx context.Context, pos *Position) (*uint256.Int, *uint256.Int, error) {
	if !pos.Active {
		return new(uint256.Int), new(uint256.Int), nil
	}
	amount0, amount1, err := m.registrar.Collect(ctx, m.owner, pos.Handle, m.owner)
	if err != nil {
		return nil, nil, fmt.Errorf("collect fees: %w", err)
	}
	return amount0, amount1, nil
}

// Retire removes all liquidity, collects it and burns the handle, leaving the record inactive.
func (m *Manager) Retire(ctx context.Context, pos *Position) (*uint256.Int, *uint256.Int, error) {
	amount0, amount1, err := m.RemoveLiquidity(ctx, pos, pos.Liquidity.Clone())
	if err != nil {
		return nil, nil, err
	}
	// Anything still owed (fees accrued since the last collect) has to leave before burn.
	extra0, extra1, err := m.registrar.Collect(ctx, m.owner, pos.Handle, m.owner)
	if err != nil {
		return nil, nil, fmt.Errorf("collect: %w", err)
	}
	amount0.Add(amount0, extra0)
	amount1.Add(amount1, extra1)

	if err := m.registrar.Burn(ctx, m.owner, pos.Handle); err != nil {
		return nil, nil, fmt.Errorf("burn position %d: %w", pos.Handle, err)
	}
	*pos = Position{}
	return amount0, amount1, nil
}

// Migrate replaces the active position with one over [lower, upper], funded with everything available reports.
func (m *Manager) Migrate(ctx context.Context, pos *Position, lower, upper int32, available BalanceFunc) (MigrateResult, error) {
	if !pos.Active {
		return MigrateResult{}, ErrPositionInactive
	}
	if pos.LowerTick == lower && pos.UpperTick == upper {
		return MigrateResult{}, ErrSameTicks
	}
	if err := m.ValidateTicks(lower, upper); err != nil {
		return MigrateResult{}, err
	}

	oldHandle := pos.Handle
	removed0, removed1, err := m.Retire(ctx, pos)
	if err != nil {
		return MigrateResult{}, err
	}

	amount0, amount1, err := available(ctx)
	if err != nil {
		return MigrateResult{}, fmt.Errorf("available balances: %w", err)
	}
	minted, err := m.Mint(ctx, pos, lower, upper, amount0, amount1)
	if err != nil {
		return MigrateResult{}, err
	}

	return MigrateResult{
		OldHandle: oldHandle,
		Removed0:  removed0,
		Removed1:  removed1,
		Minted:    minted,
	}, nil
}

func rangeRatios(lower, upper int32) (*uint256.Int, *uint256.Int, error) {
	sqrtA, err := clmath.GetSqrtRatioAtTick(lower)
	if err != nil {
		return nil, nil, fmt.Errorf("sqrt ratio at tick %d: %w", lower, err)
	}
	sqrtB, err := clmath.GetSqrtRatioAtTick(upper)
	if err != nil {
		return nil, nil, fmt.Errorf("sqrt ratio at tick %d: %w", upper, err)
	}
	return sqrtA, sqrtB, nil
}

// RangeRatios returns the square-root ratios at the position's bounds.
func (p *Position) RangeRatios() (*uint256.Int, *uint256.Int, error) {
	return rangeRatios(p.LowerTick, p.UpperTick)
}
