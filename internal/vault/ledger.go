package vault

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"liquidityVault/internal/clmath"
	"liquidityVault/internal/decimals"
)

// BufferTokenBalance returns the vault's token balances minus withdrawable fees.
func (v *Vault) BufferTokenBalance(ctx context.Context) (*uint256.Int, *uint256.Int, error) {
	raw0, err := v.tokens[0].BalanceOf(ctx, v.addr)
	if err != nil {
		return nil, nil, fmt.Errorf("balance of asset0: %w", err)
	}
	raw1, err := v.tokens[1].BalanceOf(ctx, v.addr)
	if err != nil {
		return nil, nil, fmt.Errorf("balance of asset1: %w", err)
	}
	return clmath.SubFloor(raw0, &v.st.WithdrawableFees0), clmath.SubFloor(raw1, &v.st.WithdrawableFees1), nil
}

// StakedTokenBalance returns what the position is worth in each token at the current pool price.
func (v *Vault) StakedTokenBalance(ctx context.Context) (*uint256.Int, *uint256.Int, error) {
	return v.positions.StakedTokenBalance(ctx, &v.st.Position)
}

// TargetBufferTokenBalance returns BufferPercentage of each asset's buffer plus staked amount.
func (v *Vault) TargetBufferTokenBalance(ctx context.Context) (*uint256.Int, *uint256.Int, error) {
	b0, b1, err := v.BufferTokenBalance(ctx)
	if err != nil {
		return nil, nil, err
	}
	s0, s1, err := v.StakedTokenBalance(ctx)
	if err != nil {
		return nil, nil, err
	}
	return v.targetOf(b0, s0), v.targetOf(b1, s1), nil
}

func (v *Vault) targetOf(buffer, staked *uint256.Int) *uint256.Int {
	total := new(uint256.Int).Add(buffer, staked)
	total.Mul(total, uint256.NewInt(v.cfg.BufferPercentage))
	return total.Div(total, uint256.NewInt(100))
}

func (v *Vault) balanceOf(ctx context.Context, a Asset) (*uint256.Int, error) {
	b0, b1, err := v.BufferTokenBalance(ctx)
	if err != nil {
		return nil, err
	}
	if a == Asset0 {
		return b0, nil
	}
	return b1, nil
}

func (v *Vault) accrueFee(a Asset, amount *uint256.Int) {
	if a == Asset0 {
		v.st.WithdrawableFees0.Add(&v.st.WithdrawableFees0, amount)
		return
	}
	v.st.WithdrawableFees1.Add(&v.st.WithdrawableFees1, amount)
}

// claimPoolFees collects trading fees owed to the position and earmarks 1/ClaimFee of them.
func (v *Vault) claimPoolFees(ctx context.Context) (*uint256.Int, *uint256.Int, error) {
	c0, c1, err := v.positions.CollectFees(ctx, &v.st.Position)
	if err != nil {
		return nil, nil, err
	}
	divisor := uint256.NewInt(v.st.ClaimFee)
	v.accrueFee(Asset0, new(uint256.Int).Div(c0, divisor))
	v.accrueFee(Asset1, new(uint256.Int).Div(c1, divisor))
	return c0, c1, nil
}

// canonical converts a native amount of asset a to 18 decimals.
func (v *Vault) canonical(a Asset, amount *uint256.Int) (*uint256.Int, error) {
	return decimals.ToCanonical(amount, v.decimals[a])
}

func (v *Vault) native(a Asset, amount *uint256.Int) (*uint256.Int, error) {
	return decimals.FromCanonical(amount, v.decimals[a])
}
