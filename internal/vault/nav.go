package vault

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"liquidityVault/internal/clmath"
	"liquidityVault/internal/oracle"
)

// Asset0Price is the TWAP price of asset0 in asset1 terms, as 64.64 for 18-decimal amounts.
func (v *Vault) Asset0Price(ctx context.Context) (clmath.Price, error) {
	return v.oracle.AssetPrice(ctx, v.st.TwapPeriod, true)
}

// Asset1Price is the inverse of Asset0Price.
func (v *Vault) Asset1Price(ctx context.Context) (clmath.Price, error) {
	return v.oracle.AssetPrice(ctx, v.st.TwapPeriod, false)
}

func (v *Vault) quote(ctx context.Context) (oracle.Quote, error) {
	q, err := v.oracle.Quote(ctx, v.st.TwapPeriod)
	if err != nil {
		return oracle.Quote{}, fmt.Errorf("read twap: %w", err)
	}
	return q, nil
}

// valueOf prices native amounts of both assets in asset1-terms canonical units.
func (v *Vault) valueOf(price0 clmath.Price, amount0, amount1 *uint256.Int) (*uint256.Int, error) {
	c0, err := v.canonical(Asset0, amount0)
	if err != nil {
		return nil, err
	}
	c1, err := v.canonical(Asset1, amount1)
	if err != nil {
		return nil, err
	}
	in1, err := price0.MulU(c0)
	if err != nil {
		return nil, err
	}
	return clmath.Add(in1, c1)
}

// BufferBalance is the buffer's value in asset1-terms canonical units.
func (v *Vault) BufferBalance(ctx context.Context) (*uint256.Int, error) {
	q, err := v.quote(ctx)
	if err != nil {
		return nil, err
	}
	b0, b1, err := v.BufferTokenBalance(ctx)
	if err != nil {
		return nil, err
	}
	return v.valueOf(q.Asset0, b0, b1)
}

// StakedBalance is the position's value in asset1-terms canonical units.
func (v *Vault) StakedBalance(ctx context.Context) (*uint256.Int, error) {
	q, err := v.quote(ctx)
	if err != nil {
		return nil, err
	}
	s0, s1, err := v.StakedTokenBalance(ctx)
	if err != nil {
		return nil, err
	}
	return v.valueOf(q.Asset0, s0, s1)
}

// Nav is buffer plus staked value in asset1-terms canonical units. Withdrawable fees are excluded.
func (v *Vault) Nav(ctx context.Context) (*uint256.Int, error) {
	q, err := v.quote(ctx)
	if err != nil {
		return nil, err
	}
	return v.navAt(ctx, q.Asset0)
}

func (v *Vault) navAt(ctx context.Context, price0 clmath.Price) (*uint256.Int, error) {
	b0, b1, err := v.BufferTokenBalance(ctx)
	if err != nil {
		return nil, err
	}
	s0, s1, err := v.StakedTokenBalance(ctx)
	if err != nil {
		return nil, err
	}
	buffer, err := v.valueOf(price0, b0, b1)
	if err != nil {
		return nil, fmt.Errorf("buffer value: %w", err)
	}
	staked, err := v.valueOf(price0, s0, s1)
	if err != nil {
		return nil, fmt.Errorf("staked value: %w", err)
	}
	return clmath.Add(buffer, staked)
}

// checkTwap enforces the deviation bound against the last recorded TWAP, then records the new one.
func (v *Vault) checkTwap(price0 clmath.Price) error {
	last := v.st.LastTwap
	if div := v.cfg.MaxTwapDeviationDivisor; div != 0 && !last.IsZero() {
		bound := new(uint256.Int).Div(last.Raw(), uint256.NewInt(div))
		if diff := clmath.AbsDiff(price0.Raw(), last.Raw()); diff.Gt(bound) {
			return fmt.Errorf("%w: %s vs %s", ErrTwapDeviation, price0, last)
		}
	}
	v.st.LastTwap = price0
	return nil
}
