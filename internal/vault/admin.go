package vault

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityVault/internal/model"
	"liquidityVault/internal/position"
)

// FeeDivisors are the mint, burn and claim divisors; each fee is amount / divisor.
type FeeDivisors struct {
	Mint  uint64
	Burn  uint64
	Claim uint64
}

// SetFeeDivisors replaces all three divisors. Owner only.
func (v *Vault) SetFeeDivisors(ctx context.Context, caller common.Address, divisors FeeDivisors) error {
	err := v.run(ctx, "set fee divisors", func() error {
		if err := v.requireOwner(caller); err != nil {
			return err
		}
		if divisors.Mint == 0 || divisors.Burn == 0 || divisors.Claim == 0 {
			return fmt.Errorf("%w: %d/%d/%d", ErrInvalidFeeDivisor, divisors.Mint, divisors.Burn, divisors.Claim)
		}
		v.st.MintFee, v.st.BurnFee, v.st.ClaimFee = divisors.Mint, divisors.Burn, divisors.Claim
		v.emit(model.EventFeeDivisorsSet, model.FeeDivisorsSetData{
			MintFee:  divisors.Mint,
			BurnFee:  divisors.Burn,
			ClaimFee: divisors.Claim,
		})
		return nil
	})
	if err != nil {
		return err
	}
	v.logger.Info("fee divisors set",
		zap.Uint64("mint", divisors.Mint),
		zap.Uint64("burn", divisors.Burn),
		zap.Uint64("claim", divisors.Claim),
	)
	return nil
}

// WithdrawFees pays all accrued fees to the caller and zeroes them.
func (v *Vault) WithdrawFees(ctx context.Context, caller common.Address) (*uint256.Int, *uint256.Int, error) {
	var amount0, amount1 *uint256.Int
	err := v.run(ctx, "withdraw fees", func() error {
		if err := v.requireManager(caller); err != nil {
			return err
		}
		amount0, amount1 = v.st.WithdrawableFees0.Clone(), v.st.WithdrawableFees1.Clone()
		v.st.WithdrawableFees0.Clear()
		v.st.WithdrawableFees1.Clear()
		for i, amount := range []*uint256.Int{amount0, amount1} {
			if amount.IsZero() {
				continue
			}
			if err := v.tokens[i].Transfer(ctx, v.addr, caller, amount); err != nil {
				return fmt.Errorf("transfer fees%d: %w", i, err)
			}
		}
		v.emit(model.EventFeeWithdraw, model.FeeWithdrawData{
			Recipient: caller.Hex(),
			Amount0:   amount0.Dec(),
			Amount1:   amount1.Dec(),
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	v.logger.Info("fees withdrawn",
		zap.String("recipient", caller.Hex()),
		zap.String("amount0", amount0.Dec()),
		zap.String("amount1", amount1.Dec()),
	)
	return amount0, amount1, nil
}

// SetTwapPeriod changes the oracle window. The pool must already hold enough history to serve it.
func (v *Vault) SetTwapPeriod(ctx context.Context, caller common.Address, period uint32) error {
	return v.run(ctx, "set twap period", func() error {
		if err := v.requireOwner(caller); err != nil {
			return err
		}
		if period == 0 {
			return fmt.Errorf("%w: must be positive", ErrInvalidTwapPeriod)
		}
		if _, err := v.oracle.MeanTick(ctx, period); err != nil {
			return fmt.Errorf("%w: %d: %w", ErrInvalidTwapPeriod, period, err)
		}
		v.st.TwapPeriod = period
		return nil
	})
}

// ResetTwap records the current TWAP as the deviation reference, typically after a manual swap.
func (v *Vault) ResetTwap(ctx context.Context, caller common.Address) error {
	return v.run(ctx, "reset twap", func() error {
		if err := v.requireManager(caller); err != nil {
			return err
		}
		q, err := v.quote(ctx)
		if err != nil {
			return err
		}
		v.st.LastTwap = q.Asset0
		return nil
	})
}

// MigratePosition replaces the position with one over [lower, upper], funded with the whole buffer.
// Pool fees are claimed before the old position is retired.
func (v *Vault) MigratePosition(ctx context.Context, caller common.Address, lower, upper int32) error {
	var res position.MigrateResult
	err := v.run(ctx, "migrate position", func() error {
		if err := v.requireManager(caller); err != nil {
			return err
		}
		if !v.st.Position.Active {
			return ErrPositionInactive
		}
		oldLower, oldUpper := v.st.Position.Ticks()
		if oldLower == lower && oldUpper == upper {
			return ErrSameTicks
		}
		if _, _, err := v.claimPoolFees(ctx); err != nil {
			return err
		}

		var err error
		res, err = v.positions.Migrate(ctx, &v.st.Position, lower, upper, v.BufferTokenBalance)
		if err != nil {
			return err
		}
		v.emit(model.EventPositionMigrated, model.PositionMigratedData{
			OldHandle:    res.OldHandle,
			NewHandle:    res.Minted.Handle,
			OldTickLower: oldLower,
			OldTickUpper: oldUpper,
			NewTickLower: lower,
			NewTickUpper: upper,
			Liquidity:    res.Minted.Liquidity.Dec(),
		})
		return nil
	})
	if err != nil {
		return err
	}
	v.logger.Info("position migrated",
		zap.Uint64("old_handle", res.OldHandle),
		zap.Uint64("new_handle", res.Minted.Handle),
		zap.Int32("tick_lower", lower),
		zap.Int32("tick_upper", upper),
	)
	return nil
}

// Ticks returns the position's range.
func (v *Vault) Ticks() (int32, int32) { return v.st.Position.Ticks() }

// TokenID is the registrar handle of the active position, zero when there is none.
func (v *Vault) TokenID() uint64 { return v.st.Position.Handle }

// Liquidity is the active position's liquidity.
func (v *Vault) Liquidity() *uint256.Int { return v.st.Position.Liquidity.Clone() }

// FeeDivisors returns the mint, burn and claim fee divisors.
func (v *Vault) FeeDivisors() FeeDivisors {
	return FeeDivisors{Mint: v.st.MintFee, Burn: v.st.BurnFee, Claim: v.st.ClaimFee}
}

// WithdrawableFees returns the accrued fees in each asset's native units.
func (v *Vault) WithdrawableFees() (*uint256.Int, *uint256.Int) {
	return v.st.WithdrawableFees0.Clone(), v.st.WithdrawableFees1.Clone()
}

// TwapPeriod is the oracle window in seconds.
func (v *Vault) TwapPeriod() uint32 { return v.st.TwapPeriod }

// AdminActiveTimestamp is when the manager last acted.
func (v *Vault) AdminActiveTimestamp() uint64 { return v.st.AdminActiveTimestamp }

// AmountsForLiquidity converts liquidity in the position's range at the current price.
func (v *Vault) AmountsForLiquidity(ctx context.Context, liquidity *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	lower, upper := v.Ticks()
	if !v.st.Position.Active {
		lower, upper = v.cfg.LowerTick, v.cfg.UpperTick
	}
	return v.positions.AmountsForLiquidity(ctx, lower, upper, liquidity)
}

// PoolMintedAmounts quotes how much of each amount the position's range would take at the current price.
func (v *Vault) PoolMintedAmounts(ctx context.Context, amount0, amount1 *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	lower, upper := v.Ticks()
	if !v.st.Position.Active {
		lower, upper = v.cfg.LowerTick, v.cfg.UpperTick
	}
	_, used0, used1, err := v.positions.PoolMintedAmounts(ctx, lower, upper, amount0, amount1)
	return used0, used1, err
}
