package sim

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityVault/internal/amm"
	"liquidityVault/internal/clmath"
)

// Router swaps against the simulated pool. A failed swap leaves the world untouched.
type Router struct {
	w *World
}

func (r *Router) Address() common.Address { return RouterAddress }

func (r *Router) ExactInputSingle(ctx context.Context, from common.Address, params amm.ExactInputParams) (*uint256.Int, error) {
	var zeroForOne bool
	switch {
	case params.TokenIn == Token0Address && params.TokenOut == Token1Address:
		zeroForOne = true
	case params.TokenIn == Token1Address && params.TokenOut == Token0Address:
	default:
		return nil, ErrTokenMismatch
	}
	if params.Fee != r.w.Pool.fee {
		return nil, ErrTokenMismatch
	}

	limit := params.SqrtPriceLimitX96
	if limit == nil || limit.IsZero() {
		if zeroForOne {
			limit = new(uint256.Int).AddUint64(clmath.MinSqrtRatio(), 1)
		} else {
			limit = new(uint256.Int).SubUint64(clmath.MaxSqrtRatio(), 1)
		}
	}

	rollback := r.w.Checkpoint()
	amountIn, amountOut, err := r.w.Pool.swap(zeroForOne, params.AmountIn, limit)
	if err != nil {
		rollback()
		return nil, err
	}
	if params.AmountOutMinimum != nil && amountOut.Lt(params.AmountOutMinimum) {
		rollback()
		return nil, fmt.Errorf("%w: got %s, want at least %s", amm.ErrTooLittleReceived, amountOut.Dec(), params.AmountOutMinimum.Dec())
	}

	tokenIn, _ := r.w.token(params.TokenIn)
	tokenOut, _ := r.w.token(params.TokenOut)
	if err := tokenIn.TransferFrom(ctx, RouterAddress, from, PoolAddress, amountIn); err != nil {
		rollback()
		return nil, err
	}
	if err := tokenOut.Transfer(ctx, PoolAddress, params.Recipient, amountOut); err != nil {
		rollback()
		return nil, err
	}
	return amountOut, nil
}

// SwapExactInput funds trader with amountIn of the input token and swaps it through the router.
func (w *World) SwapExactInput(ctx context.Context, trader common.Address, zeroForOne bool, amountIn *uint256.Int) (*uint256.Int, error) {
	in, out := w.Token0, w.Token1
	if !zeroForOne {
		in, out = w.Token1, w.Token0
	}
	in.Mint(trader, amountIn)
	if err := in.Approve(ctx, trader, RouterAddress, amountIn); err != nil {
		return nil, err
	}
	return w.Router.ExactInputSingle(ctx, trader, amm.ExactInputParams{
		TokenIn:   in.Address(),
		TokenOut:  out.Address(),
		Fee:       w.Pool.fee,
		Recipient: trader,
		AmountIn:  amountIn,
	})
}
