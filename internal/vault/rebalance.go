package vault

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityVault/internal/clmath"
	"liquidityVault/internal/model"
	"liquidityVault/internal/oracle"
)

const (
	// a swap smaller than total/minSwapFraction of the sold asset counts as converged
	minSwapFraction = 1_000_000_000
	minSwapAmount   = 1000
)

var q192 = new(big.Int).Lsh(big.NewInt(1), 192)

// RebalanceResult summarizes a rebalance.
type RebalanceResult struct {
	Swaps   int
	Buffer0 *uint256.Int
	Buffer1 *uint256.Int
	Staked0 *uint256.Int
	Staked1 *uint256.Int
}

// Rebalance brings each asset's buffer to BufferPercentage of that asset's total holdings. Pool fees are
// claimed first. If the assets are not in the proportion the position takes at the current price, the
// excess asset is swapped across in bounded rounds sized at the TWAP price. Nothing to do is not an error.
func (v *Vault) Rebalance(ctx context.Context, caller common.Address) (RebalanceResult, error) {
	var res RebalanceResult
	err := v.run(ctx, "rebalance", func() error {
		if err := v.requireManager(caller); err != nil {
			return err
		}
		if err := v.requireUnpaused(); err != nil {
			return err
		}
		if !v.st.Position.Active {
			return ErrPositionInactive
		}
		if _, _, err := v.claimPoolFees(ctx); err != nil {
			return err
		}
		q, err := v.quote(ctx)
		if err != nil {
			return err
		}

		for res.Swaps < v.cfg.RebalanceRounds {
			swapped, err := v.rebalanceSwapRound(ctx, q)
			if err != nil {
				return err
			}
			if !swapped {
				break
			}
			res.Swaps++
		}
		if err := v.settleLiquidity(ctx); err != nil {
			return err
		}

		if res.Buffer0, res.Buffer1, err = v.BufferTokenBalance(ctx); err != nil {
			return err
		}
		if res.Staked0, res.Staked1, err = v.StakedTokenBalance(ctx); err != nil {
			return err
		}
		v.st.AdminActiveTimestamp = v.chain.Timestamp()
		v.emit(model.EventRebalance, model.RebalanceData{
			Buffer0:   res.Buffer0.Dec(),
			Buffer1:   res.Buffer1.Dec(),
			Staked0:   res.Staked0.Dec(),
			Staked1:   res.Staked1.Dec(),
			Swaps:     res.Swaps,
			Timestamp: v.st.AdminActiveTimestamp,
		})
		return nil
	})
	if err != nil {
		return RebalanceResult{}, err
	}

	v.logger.Info("rebalance",
		zap.Int("swaps", res.Swaps),
		zap.String("buffer0", res.Buffer0.Dec()),
		zap.String("buffer1", res.Buffer1.Dec()),
		zap.String("staked0", res.Staked0.Dec()),
		zap.String("staked1", res.Staked1.Dec()),
	)
	return res, nil
}

// rebalanceSwapRound performs at most one corrective swap and reports whether it did.
func (v *Vault) rebalanceSwapRound(ctx context.Context, q oracle.Quote) (bool, error) {
	b0, b1, err := v.BufferTokenBalance(ctx)
	if err != nil {
		return false, err
	}
	s0, s1, err := v.StakedTokenBalance(ctx)
	if err != nil {
		return false, err
	}
	w0 := new(uint256.Int).Add(b0, s0)
	w1 := new(uint256.Int).Add(b1, s1)

	slot, err := v.pool.Slot0(ctx)
	if err != nil {
		return false, fmt.Errorf("read slot0: %w", err)
	}
	sqrtA, sqrtB, err := v.st.Position.RangeRatios()
	if err != nil {
		return false, err
	}
	r0, r1 := perLiquidityAmounts(slot.SqrtPriceX96.ToBig(), sqrtA.ToBig(), sqrtB.ToBig())

	zeroForOne, amount := rebalanceSwapSize(w0.ToBig(), w1.ToBig(), r0, r1, q.SqrtPriceX96.ToBig())
	sold, buffer, staked, total := Asset1, b1, s1, w1
	if zeroForOne {
		sold, buffer, staked, total = Asset0, b0, s0, w0
	}
	if amount.Sign() == 0 || amount.Cmp(big.NewInt(minSwapAmount)) < 0 {
		return false, nil
	}
	if new(big.Int).Mul(amount, big.NewInt(minSwapFraction)).Cmp(total.ToBig()) <= 0 {
		return false, nil
	}
	amountIn, overflow := uint256.FromBig(amount)
	if overflow {
		return false, clmath.ErrOverflow
	}

	if amountIn.Gt(buffer) && !staked.IsZero() {
		shortfall := new(uint256.Int).Sub(amountIn, buffer)
		liquidity, err := clmath.MulDivRoundingUp(shortfall, &v.st.Position.Liquidity, staked)
		if err != nil {
			return false, err
		}
		liquidity = clmath.Min(liquidity, &v.st.Position.Liquidity)
		if _, _, err := v.positions.RemoveLiquidity(ctx, &v.st.Position, liquidity); err != nil {
			return false, err
		}
		if buffer, err = v.balanceOf(ctx, sold); err != nil {
			return false, err
		}
		amountIn = clmath.Min(amountIn, buffer)
	}
	if amountIn.IsZero() {
		return false, nil
	}

	v.logger.Debug("rebalance swap round",
		zap.Bool("zero_for_one", zeroForOne),
		zap.String("amount_in", amountIn.Dec()),
		zap.String("total0", w0.Dec()),
		zap.String("total1", w1.Dec()),
	)
	got, err := v.swap(ctx, q, zeroForOne, amountIn)
	if err != nil {
		return false, err
	}
	return !got.IsZero(), nil
}

// settleLiquidity stakes or unstakes so each buffer lands on its target.
func (v *Vault) settleLiquidity(ctx context.Context) error {
	pos := &v.st.Position
	b0, b1, err := v.BufferTokenBalance(ctx)
	if err != nil {
		return err
	}
	s0, s1, err := v.StakedTokenBalance(ctx)
	if err != nil {
		return err
	}
	t0, t1 := v.targetOf(b0, s0), v.targetOf(b1, s1)
	stake0 := new(uint256.Int).Sub(new(uint256.Int).Add(b0, s0), t0)
	stake1 := new(uint256.Int).Sub(new(uint256.Int).Add(b1, s1), t1)

	want, err := v.positions.LiquidityForAmounts(ctx, pos, stake0, stake1)
	if err != nil {
		return err
	}
	switch want.Cmp(&pos.Liquidity) {
	case 1:
		_, _, _, err = v.positions.AddLiquidity(ctx, pos, clmath.SubFloor(b0, t0), clmath.SubFloor(b1, t1))
	case -1:
		_, _, err = v.positions.RemoveLiquidity(ctx, pos, new(uint256.Int).Sub(&pos.Liquidity, want))
	}
	return err
}

// perLiquidityAmounts returns the token0 and token1 amounts one unit of liquidity holds at sqrtP, both
// scaled by 2^96 so they compare directly.
func perLiquidityAmounts(sqrtP, sqrtA, sqrtB *big.Int) (*big.Int, *big.Int) {
	q96sq := new(big.Int).Lsh(big.NewInt(1), 192)
	amount0 := func(lo, hi *big.Int) *big.Int {
		num := new(big.Int).Sub(hi, lo)
		num.Mul(num, q96sq)
		return num.Quo(num, new(big.Int).Mul(lo, hi))
	}
	switch {
	case sqrtP.Cmp(sqrtA) <= 0:
		return amount0(sqrtA, sqrtB), new(big.Int)
	case sqrtP.Cmp(sqrtB) >= 0:
		return new(big.Int), new(big.Int).Sub(sqrtB, sqrtA)
	default:
		return amount0(sqrtP, sqrtB), new(big.Int).Sub(sqrtP, sqrtA)
	}
}

// rebalanceSwapSize solves for the swap that leaves holdings w0:w1 in the ratio r0:r1, valuing the
// swap at the TWAP square-root price t. Selling x of token0 yields x*t^2/2^192 of token1.
func rebalanceSwapSize(w0, w1, r0, r1, t *big.Int) (bool, *big.Int) {
	t2 := new(big.Int).Mul(t, t)
	excess := new(big.Int).Sub(new(big.Int).Mul(w0, r1), new(big.Int).Mul(w1, r0))

	switch excess.Sign() {
	case 1:
		den := new(big.Int).Add(new(big.Int).Mul(r1, q192), new(big.Int).Mul(t2, r0))
		if den.Sign() == 0 {
			return true, new(big.Int)
		}
		num := excess.Mul(excess, q192)
		return true, num.Quo(num, den)
	case -1:
		den := new(big.Int).Add(new(big.Int).Mul(r0, t2), new(big.Int).Mul(r1, q192))
		if den.Sign() == 0 {
			return false, new(big.Int)
		}
		num := excess.Neg(excess)
		num.Mul(num, t2)
		return false, num.Quo(num, den)
	default:
		return false, new(big.Int)
	}
}

// AdminStake moves buffer amounts into the position.
func (v *Vault) AdminStake(ctx context.Context, caller common.Address, amount0, amount1 *uint256.Int) error {
	var added *uint256.Int
	err := v.run(ctx, "admin stake", func() error {
		if err := v.requireManager(caller); err != nil {
			return err
		}
		if !v.st.Position.Active {
			return ErrPositionInactive
		}
		b0, b1, err := v.BufferTokenBalance(ctx)
		if err != nil {
			return err
		}
		if amount0.Gt(b0) || amount1.Gt(b1) {
			return fmt.Errorf("%w: staking %s/%s from %s/%s", ErrInsufficientBuffer, amount0.Dec(), amount1.Dec(), b0.Dec(), b1.Dec())
		}
		added, _, _, err = v.positions.AddLiquidity(ctx, &v.st.Position, amount0, amount1)
		return err
	})
	if err != nil {
		return err
	}
	v.logger.Info("admin stake", zap.String("liquidity", added.Dec()))
	return nil
}

// AdminUnstake claims pool fees, then removes the liquidity the given amounts represent, capped at the whole
// position.
func (v *Vault) AdminUnstake(ctx context.Context, caller common.Address, amount0, amount1 *uint256.Int) error {
	var removed *uint256.Int
	err := v.run(ctx, "admin unstake", func() error {
		if err := v.requireManager(caller); err != nil {
			return err
		}
		if !v.st.Position.Active {
			return ErrPositionInactive
		}
		// Removing liquidity collects the pool fees too, so take the claim cut first.
		if _, _, err := v.claimPoolFees(ctx); err != nil {
			return err
		}
		liquidity, err := v.unstakeLiquidity(ctx, amount0, amount1)
		if err != nil {
			return err
		}
		removed = clmath.Min(liquidity, &v.st.Position.Liquidity)
		_, _, err = v.positions.RemoveLiquidity(ctx, &v.st.Position, removed)
		return err
	})
	if err != nil {
		return err
	}
	v.logger.Info("admin unstake", zap.String("liquidity", removed.Dec()))
	return nil
}

// unstakeLiquidity is the liquidity needed to release at least the requested amounts. A zero amount places
// no requirement on that side.
func (v *Vault) unstakeLiquidity(ctx context.Context, amount0, amount1 *uint256.Int) (*uint256.Int, error) {
	s0, s1, err := v.StakedTokenBalance(ctx)
	if err != nil {
		return nil, err
	}
	liquidity := &v.st.Position.Liquidity
	need := new(uint256.Int)
	for _, side := range [][2]*uint256.Int{{amount0, s0}, {amount1, s1}} {
		amount, staked := side[0], side[1]
		if amount.IsZero() {
			continue
		}
		if staked.IsZero() {
			return liquidity.Clone(), nil
		}
		l, err := clmath.MulDivRoundingUp(amount, liquidity, staked)
		if err != nil {
			return nil, err
		}
		if l.Gt(need) {
			need = l
		}
	}
	return need, nil
}
