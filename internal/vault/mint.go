package vault

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityVault/internal/clmath"
	"liquidityVault/internal/model"
	"liquidityVault/internal/position"
)

// MintInitial creates the position from the caller's tokens and mints shares for their value. The pool
// decides how much of each amount the configured range consumes; only that much is pulled.
func (v *Vault) MintInitial(ctx context.Context, caller common.Address, amount0, amount1 *uint256.Int) (*uint256.Int, error) {
	var minted *uint256.Int
	var res position.MintResult
	err := v.run(ctx, "mint initial", func() error {
		if err := v.requireUnpaused(); err != nil {
			return err
		}
		if err := v.requireManager(caller); err != nil {
			return err
		}
		if v.st.Position.Active {
			return ErrPositionActive
		}
		if amount0.IsZero() && amount1.IsZero() {
			return position.ErrZeroAmounts
		}

		q, err := v.quote(ctx)
		if err != nil {
			return err
		}
		supply, err := v.shares.TotalSupply(ctx)
		if err != nil {
			return fmt.Errorf("total supply: %w", err)
		}
		var nav *uint256.Int
		if !supply.IsZero() {
			if nav, err = v.navAt(ctx, q.Asset0); err != nil {
				return err
			}
		}

		_, used0, used1, err := v.positions.PoolMintedAmounts(ctx, v.cfg.LowerTick, v.cfg.UpperTick, amount0, amount1)
		if err != nil {
			return err
		}
		if used0.IsZero() && used1.IsZero() {
			return position.ErrZeroAmounts
		}
		for i, used := range []*uint256.Int{used0, used1} {
			if used.IsZero() {
				continue
			}
			if err := v.tokens[i].TransferFrom(ctx, v.addr, caller, v.addr, used); err != nil {
				return fmt.Errorf("pull asset%d: %w", i, err)
			}
		}

		res, err = v.positions.Mint(ctx, &v.st.Position, v.cfg.LowerTick, v.cfg.UpperTick, used0, used1)
		if err != nil {
			return err
		}

		value, err := v.valueOf(q.Asset0, used0, used1)
		if err != nil {
			return err
		}
		if minted, err = sharesFor(value, supply, nav); err != nil {
			return err
		}
		if err := v.shares.Mint(ctx, caller, minted); err != nil {
			return fmt.Errorf("mint shares: %w", err)
		}
		v.st.LastTwap = q.Asset0

		v.emit(model.EventPositionInitialized, model.PositionInitializedData{
			Handle:    res.Handle,
			TickLower: v.cfg.LowerTick,
			TickUpper: v.cfg.UpperTick,
			Liquidity: res.Liquidity.Dec(),
			Amount0:   res.Amount0.Dec(),
			Amount1:   res.Amount1.Dec(),
			Shares:    minted.Dec(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	v.logger.Info("position initialized",
		zap.Uint64("handle", res.Handle),
		zap.String("liquidity", res.Liquidity.Dec()),
		zap.String("shares", minted.Dec()),
	)
	return minted, nil
}

// MintWithToken deposits amount of one asset and mints shares for its value net of the mint fee.
func (v *Vault) MintWithToken(ctx context.Context, caller common.Address, asset Asset, amount *uint256.Int) (*uint256.Int, error) {
	var minted *uint256.Int
	err := v.run(ctx, "mint", func() error {
		if err := v.requireUnpaused(); err != nil {
			return err
		}
		if err := validAsset(asset); err != nil {
			return err
		}
		if amount.IsZero() {
			return ErrZeroAmount
		}
		if !v.st.Position.Active {
			return ErrPositionInactive
		}
		if err := v.checkLock(caller); err != nil {
			return err
		}

		q, err := v.quote(ctx)
		if err != nil {
			return err
		}
		if err := v.checkTwap(q.Asset0); err != nil {
			return err
		}
		nav, err := v.navAt(ctx, q.Asset0)
		if err != nil {
			return err
		}
		supply, err := v.shares.TotalSupply(ctx)
		if err != nil {
			return fmt.Errorf("total supply: %w", err)
		}

		fee := new(uint256.Int).Div(amount, uint256.NewInt(v.st.MintFee))
		net := new(uint256.Int).Sub(amount, fee)
		var value *uint256.Int
		if asset == Asset0 {
			value, err = v.valueOf(q.Asset0, net, new(uint256.Int))
		} else {
			value, err = v.valueOf(q.Asset0, new(uint256.Int), net)
		}
		if err != nil {
			return err
		}
		if minted, err = sharesFor(value, supply, nav); err != nil {
			return err
		}
		if minted.IsZero() {
			return fmt.Errorf("%w: deposit too small to mint shares", ErrZeroAmount)
		}

		v.accrueFee(asset, fee)
		v.lock(caller)
		if err := v.tokens[asset].TransferFrom(ctx, v.addr, caller, v.addr, amount); err != nil {
			return fmt.Errorf("pull deposit: %w", err)
		}
		if err := v.shares.Mint(ctx, caller, minted); err != nil {
			return fmt.Errorf("mint shares: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	v.logger.Info("mint",
		zap.String("account", caller.Hex()),
		zap.Uint8("asset", uint8(asset)),
		zap.String("amount", amount.Dec()),
		zap.String("shares", minted.Dec()),
	)
	return minted, nil
}

// Burn redeems shares for one asset. The pro-rata value must be covered by the buffer; staked liquidity
// is never unwound here. When the requested asset's buffer is short the other asset is swapped across.
func (v *Vault) Burn(ctx context.Context, caller common.Address, asset Asset, amount *uint256.Int) (*uint256.Int, error) {
	var out *uint256.Int
	err := v.run(ctx, "burn", func() error {
		if err := v.requireUnpaused(); err != nil {
			return err
		}
		if err := validAsset(asset); err != nil {
			return err
		}
		if amount.IsZero() {
			return ErrZeroAmount
		}
		if !v.st.Position.Active {
			return ErrPositionInactive
		}
		if err := v.checkLock(caller); err != nil {
			return err
		}
		held, err := v.shares.BalanceOf(ctx, caller)
		if err != nil {
			return fmt.Errorf("share balance: %w", err)
		}
		if held.Lt(amount) {
			return fmt.Errorf("%w: holds %s, burning %s", ErrInsufficientShares, held.Dec(), amount.Dec())
		}

		q, err := v.quote(ctx)
		if err != nil {
			return err
		}
		if err := v.checkTwap(q.Asset0); err != nil {
			return err
		}
		nav, err := v.navAt(ctx, q.Asset0)
		if err != nil {
			return err
		}
		supply, err := v.shares.TotalSupply(ctx)
		if err != nil {
			return fmt.Errorf("total supply: %w", err)
		}
		proRata, err := clmath.MulDiv(amount, nav, supply)
		if err != nil {
			return fmt.Errorf("pro rata value: %w", err)
		}

		b0, b1, err := v.BufferTokenBalance(ctx)
		if err != nil {
			return err
		}
		bufferValue, err := v.valueOf(q.Asset0, b0, b1)
		if err != nil {
			return err
		}
		if proRata.Gt(bufferValue) {
			return fmt.Errorf("%w: need %s, buffer holds %s", ErrInsufficientExitLiquidity, proRata.Dec(), bufferValue.Dec())
		}

		canonical := proRata
		if asset == Asset0 {
			if canonical, err = q.Asset1.MulU(proRata); err != nil {
				return err
			}
		}
		gross, err := v.native(asset, canonical)
		if err != nil {
			return err
		}
		fee := new(uint256.Int).Div(gross, uint256.NewInt(v.st.BurnFee))
		out = new(uint256.Int).Sub(gross, fee)

		available, err := v.balanceOf(ctx, asset)
		if err != nil {
			return err
		}
		if gross.Gt(available) {
			if err := v.coverShortfall(ctx, q, asset, new(uint256.Int).Sub(gross, available)); err != nil {
				return err
			}
			if available, err = v.balanceOf(ctx, asset); err != nil {
				return err
			}
			if gross.Gt(available) {
				return fmt.Errorf("%w: need %s of asset%d, have %s after swap", ErrInsufficientExitLiquidity, gross.Dec(), asset, available.Dec())
			}
		}

		v.accrueFee(asset, fee)
		v.lock(caller)
		if err := v.shares.Burn(ctx, caller, amount); err != nil {
			return fmt.Errorf("burn shares: %w", err)
		}
		if err := v.tokens[asset].Transfer(ctx, v.addr, caller, out); err != nil {
			return fmt.Errorf("pay out: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	v.logger.Info("burn",
		zap.String("account", caller.Hex()),
		zap.Uint8("asset", uint8(asset)),
		zap.String("shares", amount.Dec()),
		zap.String("amount", out.Dec()),
	)
	return out, nil
}

// Transfer moves shares between holders. The sender is block locked like a mint or burn.
func (v *Vault) Transfer(ctx context.Context, from, to common.Address, amount *uint256.Int) error {
	return v.run(ctx, "transfer", func() error {
		if err := v.checkLock(from); err != nil {
			return err
		}
		v.lock(from)
		if err := v.shares.Transfer(ctx, from, to, amount); err != nil {
			return fmt.Errorf("transfer shares: %w", err)
		}
		return nil
	})
}

// sharesFor converts a canonical value into shares: 1:1 for the first mint, otherwise value*supply/nav.
func sharesFor(value, supply, nav *uint256.Int) (*uint256.Int, error) {
	if supply.IsZero() {
		return value.Clone(), nil
	}
	if nav == nil || nav.IsZero() {
		return nil, ErrZeroNav
	}
	shares, err := clmath.MulDiv(value, supply, nav)
	if err != nil {
		return nil, fmt.Errorf("shares for value: %w", err)
	}
	return shares, nil
}
