package sim

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityVault/internal/amm"
)

// ShareLedger is the vault's share token.
type ShareLedger struct {
	w *World
}

func (l *ShareLedger) TotalSupply(context.Context) (*uint256.Int, error) {
	return l.w.st.shareSupply.Clone(), nil
}

func (l *ShareLedger) BalanceOf(_ context.Context, owner common.Address) (*uint256.Int, error) {
	bal := l.w.st.shares[owner]
	return bal.Clone(), nil
}

func (l *ShareLedger) Mint(_ context.Context, to common.Address, amount *uint256.Int) error {
	bal := l.w.st.shares[to]
	bal.Add(&bal, amount)
	l.w.st.shares[to] = bal
	l.w.st.shareSupply.Add(&l.w.st.shareSupply, amount)
	return nil
}

func (l *ShareLedger) Burn(_ context.Context, from common.Address, amount *uint256.Int) error {
	bal := l.w.st.shares[from]
	if bal.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s shares, burning %s", amm.ErrInsufficientBalance, from.Hex(), bal.Dec(), amount.Dec())
	}
	bal.Sub(&bal, amount)
	l.w.st.shares[from] = bal
	l.w.st.shareSupply.Sub(&l.w.st.shareSupply, amount)
	return nil
}

func (l *ShareLedger) Transfer(_ context.Context, from, to common.Address, amount *uint256.Int) error {
	src := l.w.st.shares[from]
	if src.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s shares, sending %s", amm.ErrInsufficientBalance, from.Hex(), src.Dec(), amount.Dec())
	}
	src.Sub(&src, amount)
	l.w.st.shares[from] = src
	dst := l.w.st.shares[to]
	dst.Add(&dst, amount)
	l.w.st.shares[to] = dst
	return nil
}
