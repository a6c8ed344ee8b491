package sim

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityVault/internal/amm"
	"liquidityVault/internal/clmath"
)

type positionState struct {
	owner     common.Address
	lower     int32
	upper     int32
	liquidity uint256.Int
	owed0     uint256.Int
	owed1     uint256.Int
}

func (p positionState) ratios() (*uint256.Int, *uint256.Int, error) {
	sqrtA, err := clmath.GetSqrtRatioAtTick(p.lower)
	if err != nil {
		return nil, nil, err
	}
	sqrtB, err := clmath.GetSqrtRatioAtTick(p.upper)
	if err != nil {
		return nil, nil, err
	}
	return sqrtA, sqrtB, nil
}

// Registrar issues position handles against the simulated pool.
type Registrar struct {
	w *World
}

func (r *Registrar) Address() common.Address { return RegistrarAddress }

func (r *Registrar) Mint(ctx context.Context, from common.Address, params amm.MintParams) (amm.MintResult, error) {
	if params.Token0 != Token0Address || params.Token1 != Token1Address || params.Fee != r.w.Pool.fee {
		return amm.MintResult{}, ErrTokenMismatch
	}
	spacing := r.w.Pool.tickSpacing
	if params.TickLower >= params.TickUpper || params.TickLower < clmath.MinTick || params.TickUpper > clmath.MaxTick ||
		params.TickLower%spacing != 0 || params.TickUpper%spacing != 0 {
		return amm.MintResult{}, fmt.Errorf("%w: [%d, %d]", ErrInvalidTicks, params.TickLower, params.TickUpper)
	}

	pos := positionState{owner: params.Recipient, lower: params.TickLower, upper: params.TickUpper}
	liquidity, used0, used1, err := r.add(ctx, from, pos, params.Amount0Desired, params.Amount1Desired)
	if err != nil {
		return amm.MintResult{}, err
	}
	pos.liquidity.Set(liquidity)

	handle := r.w.st.nextHandle
	r.w.st.nextHandle++
	r.w.st.positions[handle] = pos

	return amm.MintResult{Handle: handle, Liquidity: liquidity, Amount0: used0, Amount1: used1}, nil
}

func (r *Registrar) IncreaseLiquidity(ctx context.Context, from common.Address, handle uint64, amount0, amount1 *uint256.Int) (*uint256.Int, *uint256.Int, *uint256.Int, error) {
	pos, ok := r.w.st.positions[handle]
	if !ok {
		return nil, nil, nil, fmt.Errorf("%w: %d", ErrUnknownPosition, handle)
	}
	liquidity, used0, used1, err := r.add(ctx, from, pos, amount0, amount1)
	if err != nil {
		return nil, nil, nil, err
	}
	pos.liquidity.Add(&pos.liquidity, liquidity)
	r.w.st.positions[handle] = pos
	return liquidity, used0, used1, nil
}

// add prices the largest liquidity the amounts cover and pulls the rounded-up cost from the payer.
func (r *Registrar) add(ctx context.Context, from common.Address, pos positionState, amount0, amount1 *uint256.Int) (*uint256.Int, *uint256.Int, *uint256.Int, error) {
	st := &r.w.st.pool
	if !st.initialized {
		return nil, nil, nil, ErrPoolNotInitialized
	}
	sqrtA, sqrtB, err := pos.ratios()
	if err != nil {
		return nil, nil, nil, err
	}
	liquidity, err := clmath.LiquidityForAmounts(&st.sqrtPriceX96, sqrtA, sqrtB, amount0, amount1)
	if err != nil {
		return nil, nil, nil, err
	}

	var used0, used1 *uint256.Int
	for {
		if liquidity.IsZero() {
			return nil, nil, nil, ErrZeroLiquidity
		}
		used0, used1, err = clmath.AmountsForLiquidityRoundingUp(&st.sqrtPriceX96, sqrtA, sqrtB, liquidity)
		if err != nil {
			return nil, nil, nil, err
		}
		if !used0.Gt(amount0) && !used1.Gt(amount1) {
			break
		}
		liquidity.SubUint64(liquidity, 1)
	}

	if !used0.IsZero() {
		if err := r.w.Token0.TransferFrom(ctx, RegistrarAddress, from, PoolAddress, used0); err != nil {
			return nil, nil, nil, err
		}
	}
	if !used1.IsZero() {
		if err := r.w.Token1.TransferFrom(ctx, RegistrarAddress, from, PoolAddress, used1); err != nil {
			return nil, nil, nil, err
		}
	}
	return liquidity, used0, used1, nil
}

func (r *Registrar) DecreaseLiquidity(_ context.Context, from common.Address, handle uint64, liquidity *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	pos, err := r.owned(from, handle)
	if err != nil {
		return nil, nil, err
	}
	if liquidity.Gt(&pos.liquidity) {
		return nil, nil, fmt.Errorf("%w: removing %s of %s", ErrZeroLiquidity, liquidity.Dec(), pos.liquidity.Dec())
	}
	sqrtA, sqrtB, err := pos.ratios()
	if err != nil {
		return nil, nil, err
	}
	amount0, amount1, err := clmath.AmountsForLiquidity(&r.w.st.pool.sqrtPriceX96, sqrtA, sqrtB, liquidity)
	if err != nil {
		return nil, nil, err
	}
	pos.liquidity.Sub(&pos.liquidity, liquidity)
	pos.owed0.Add(&pos.owed0, amount0)
	pos.owed1.Add(&pos.owed1, amount1)
	r.w.st.positions[handle] = pos
	return amount0, amount1, nil
}

func (r *Registrar) Collect(ctx context.Context, from common.Address, handle uint64, recipient common.Address) (*uint256.Int, *uint256.Int, error) {
	pos, err := r.owned(from, handle)
	if err != nil {
		return nil, nil, err
	}
	amount0, amount1 := pos.owed0.Clone(), pos.owed1.Clone()
	if !amount0.IsZero() {
		if err := r.w.Token0.Transfer(ctx, PoolAddress, recipient, amount0); err != nil {
			return nil, nil, err
		}
	}
	if !amount1.IsZero() {
		if err := r.w.Token1.Transfer(ctx, PoolAddress, recipient, amount1); err != nil {
			return nil, nil, err
		}
	}
	pos.owed0.Clear()
	pos.owed1.Clear()
	r.w.st.positions[handle] = pos
	return amount0, amount1, nil
}

func (r *Registrar) Burn(_ context.Context, from common.Address, handle uint64) error {
	pos, err := r.owned(from, handle)
	if err != nil {
		return err
	}
	if !pos.liquidity.IsZero() || !pos.owed0.IsZero() || !pos.owed1.IsZero() {
		return fmt.Errorf("%w: %d", ErrNotCleared, handle)
	}
	delete(r.w.st.positions, handle)
	return nil
}

// PositionLiquidity returns the liquidity held by handle.
func (r *Registrar) PositionLiquidity(handle uint64) (*uint256.Int, bool) {
	pos, ok := r.w.st.positions[handle]
	if !ok {
		return nil, false
	}
	return pos.liquidity.Clone(), true
}

func (r *Registrar) owned(from common.Address, handle uint64) (positionState, error) {
	pos, ok := r.w.st.positions[handle]
	if !ok {
		return positionState{}, fmt.Errorf("%w: %d", ErrUnknownPosition, handle)
	}
	if pos.owner != from {
		return positionState{}, fmt.Errorf("%w: %d held by %s", ErrNotOwner, handle, pos.owner.Hex())
	}
	return pos, nil
}
