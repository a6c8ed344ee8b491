package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityVault/internal/amm"
	"liquidityVault/internal/clmath"
	"liquidityVault/internal/oracle"
)

// swap sells amountIn through the router. The minimum output is the TWAP quote less the pool fee and
// 1/SlippageDivisor, and the price may not move more than PriceLimitTicks past the TWAP tick.
func (v *Vault) swap(ctx context.Context, q oracle.Quote, zeroForOne bool, amountIn *uint256.Int) (*uint256.Int, error) {
	in, out := v.tokens[0], v.tokens[1]
	var expected *uint256.Int
	var err error
	limitTick := q.MeanTick
	if zeroForOne {
		expected, err = clmath.Quote0To1(amountIn, q.SqrtPriceX96)
		limitTick -= v.cfg.PriceLimitTicks
		if limitTick <= clmath.MinTick {
			limitTick = clmath.MinTick + 1
		}
	} else {
		in, out = out, in
		expected, err = clmath.Quote1To0(amountIn, q.SqrtPriceX96)
		limitTick += v.cfg.PriceLimitTicks
		if limitTick >= clmath.MaxTick {
			limitTick = clmath.MaxTick - 1
		}
	}
	if err != nil {
		return nil, fmt.Errorf("quote swap: %w", err)
	}
	limit, err := clmath.GetSqrtRatioAtTick(limitTick)
	if err != nil {
		return nil, err
	}

	poolFee, err := clmath.MulDiv(expected, uint256.NewInt(uint64(v.pool.Fee())), uint256.NewInt(clmath.FeeDenominator))
	if err != nil {
		return nil, err
	}
	minOut := clmath.SubFloor(expected, poolFee)
	minOut = clmath.SubFloor(minOut, new(uint256.Int).Div(expected, uint256.NewInt(v.cfg.SlippageDivisor)))
	minOut = clmath.SubFloor(minOut, uint256.NewInt(1))

	got, err := v.router.ExactInputSingle(ctx, v.addr, amm.ExactInputParams{
		TokenIn:           in.Address(),
		TokenOut:          out.Address(),
		Fee:               v.pool.Fee(),
		Recipient:         v.addr,
		AmountIn:          amountIn,
		AmountOutMinimum:  minOut,
		SqrtPriceLimitX96: limit,
	})
	if err != nil {
		if errors.Is(err, amm.ErrTooLittleReceived) || errors.Is(err, amm.ErrPriceLimit) {
			return nil, fmt.Errorf("%w: %w", ErrSlippage, err)
		}
		return nil, fmt.Errorf("swap: %w", err)
	}

	v.logger.Debug("swap",
		zap.Bool("zero_for_one", zeroForOne),
		zap.String("amount_in", amountIn.Dec()),
		zap.String("amount_out", got.Dec()),
		zap.String("min_out", minOut.Dec()),
	)
	return got, nil
}

// coverShortfall swaps enough of the other asset's buffer to add shortfall of asset to the buffer.
func (v *Vault) coverShortfall(ctx context.Context, q oracle.Quote, asset Asset, shortfall *uint256.Int) error {
	other := Asset1
	if asset == Asset1 {
		other = Asset0
	}
	// Selling asset0 produces asset1 and vice versa.
	zeroForOne := asset == Asset1

	var needed *uint256.Int
	var err error
	if zeroForOne {
		needed, err = clmath.Quote1To0(shortfall, q.SqrtPriceX96)
	} else {
		needed, err = clmath.Quote0To1(shortfall, q.SqrtPriceX96)
	}
	if err != nil {
		return fmt.Errorf("quote shortfall: %w", err)
	}
	fee := uint64(v.pool.Fee())
	gross, err := clmath.MulDivRoundingUp(needed, uint256.NewInt(clmath.FeeDenominator), uint256.NewInt(clmath.FeeDenominator-fee))
	if err != nil {
		return err
	}
	gross.Add(gross, new(uint256.Int).Div(gross, uint256.NewInt(v.cfg.SlippageDivisor)))
	gross.AddUint64(gross, 1)

	available, err := v.balanceOf(ctx, other)
	if err != nil {
		return err
	}
	amountIn := clmath.Min(gross, available)
	if amountIn.IsZero() {
		return fmt.Errorf("%w: no asset%d to swap", ErrInsufficientExitLiquidity, other)
	}
	if _, err := v.swap(ctx, q, zeroForOne, amountIn); err != nil {
		return err
	}
	return nil
}

// AdminSwap sells amountIn of the buffer's asset0 (zeroForOne) or asset1 through the pool.
func (v *Vault) AdminSwap(ctx context.Context, caller common.Address, zeroForOne bool, amountIn *uint256.Int) (*uint256.Int, error) {
	var got *uint256.Int
	err := v.run(ctx, "admin swap", func() error {
		if err := v.requireManager(caller); err != nil {
			return err
		}
		if amountIn.IsZero() {
			return ErrZeroAmount
		}
		sell := Asset1
		if zeroForOne {
			sell = Asset0
		}
		available, err := v.balanceOf(ctx, sell)
		if err != nil {
			return err
		}
		if amountIn.Gt(available) {
			return fmt.Errorf("%w: selling %s, buffer holds %s", ErrInsufficientBuffer, amountIn.Dec(), available.Dec())
		}
		q, err := v.quote(ctx)
		if err != nil {
			return err
		}
		got, err = v.swap(ctx, q, zeroForOne, amountIn)
		return err
	})
	if err != nil {
		return nil, err
	}
	v.logger.Info("admin swap",
		zap.Bool("zero_for_one", zeroForOne),
		zap.String("amount_in", amountIn.Dec()),
		zap.String("amount_out", got.Dec()),
	)
	return got, nil
}
