package sim

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityVault/internal/amm"
)

// Token is an ERC20-style balance sheet. An allowance of 2^256-1 is never decremented.
type Token struct {
	w        *World
	addr     common.Address
	decimals uint8
}

func (t *Token) Address() common.Address { return t.addr }

func (t *Token) Decimals() uint8 { return t.decimals }

func (t *Token) BalanceOf(_ context.Context, owner common.Address) (*uint256.Int, error) {
	return t.balance(owner), nil
}

// Mint credits new tokens; it stands in for a faucet.
func (t *Token) Mint(to common.Address, amount *uint256.Int) {
	bal := t.w.st.balances[holding{t.addr, to}]
	bal.Add(&bal, amount)
	t.w.st.balances[holding{t.addr, to}] = bal
}

func (t *Token) Transfer(_ context.Context, from, to common.Address, amount *uint256.Int) error {
	return t.move(from, to, amount)
}

func (t *Token) TransferFrom(_ context.Context, spender, from, to common.Address, amount *uint256.Int) error {
	key := allowanceKey{token: t.addr, owner: from, spender: spender}
	allowed := t.w.st.allowances[key]
	if allowed.Lt(amount) {
		return fmt.Errorf("%w: %s allowed %s, need %s", amm.ErrInsufficientAllowance, spender.Hex(), allowed.Dec(), amount.Dec())
	}
	if err := t.move(from, to, amount); err != nil {
		return err
	}
	if !allowed.Eq(new(uint256.Int).SetAllOne()) {
		allowed.Sub(&allowed, amount)
		t.w.st.allowances[key] = allowed
	}
	return nil
}

func (t *Token) Approve(_ context.Context, owner, spender common.Address, amount *uint256.Int) error {
	var v uint256.Int
	v.Set(amount)
	t.w.st.allowances[allowanceKey{token: t.addr, owner: owner, spender: spender}] = v
	return nil
}

func (t *Token) balance(owner common.Address) *uint256.Int {
	bal := t.w.st.balances[holding{t.addr, owner}]
	return bal.Clone()
}

func (t *Token) move(from, to common.Address, amount *uint256.Int) error {
	src := t.w.st.balances[holding{t.addr, from}]
	if src.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s, need %s", amm.ErrInsufficientBalance, from.Hex(), src.Dec(), amount.Dec())
	}
	src.Sub(&src, amount)
	t.w.st.balances[holding{t.addr, from}] = src

	dst := t.w.st.balances[holding{t.addr, to}]
	dst.Add(&dst, amount)
	t.w.st.balances[holding{t.addr, to}] = dst
	return nil
}
