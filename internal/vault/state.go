package vault

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityVault/internal/clmath"
	"liquidityVault/internal/model"
	"liquidityVault/internal/position"
)

// ProtocolState is everything the vault owns besides token balances, which live with the collaborators.
type ProtocolState struct {
	Position position.Position

	MintFee  uint64
	BurnFee  uint64
	ClaimFee uint64

	WithdrawableFees0 uint256.Int
	WithdrawableFees1 uint256.Int

	TwapPeriod uint32
	// LastTwap is the asset0 TWAP recorded by the last mint, burn or resetTwap.
	LastTwap clmath.Price

	AdminActiveTimestamp uint64
	LockedUntil          map[common.Address]uint64

	EventSequence uint64
}

func (s *ProtocolState) clone() *ProtocolState {
	out := *s
	out.LockedUntil = make(map[common.Address]uint64, len(s.LockedUntil))
	for k, v := range s.LockedUntil {
		out.LockedUntil[k] = v
	}
	return &out
}

func (s *ProtocolState) snapshot(vault common.Address, block uint64) model.VaultSnapshot {
	locks := make(map[string]uint64, len(s.LockedUntil))
	for addr, until := range s.LockedUntil {
		if until >= block {
			locks[addr.Hex()] = until
		}
	}
	return model.VaultSnapshot{
		Version:     model.SnapshotVersion,
		Vault:       vault.Hex(),
		BlockNumber: block,
		Position: model.PositionSnapshot{
			Handle:    s.Position.Handle,
			TickLower: s.Position.LowerTick,
			TickUpper: s.Position.UpperTick,
			Liquidity: s.Position.Liquidity.Dec(),
			Active:    s.Position.Active,
		},
		MintFee:              s.MintFee,
		BurnFee:              s.BurnFee,
		ClaimFee:             s.ClaimFee,
		WithdrawableFees0:    s.WithdrawableFees0.Dec(),
		WithdrawableFees1:    s.WithdrawableFees1.Dec(),
		TwapPeriod:           s.TwapPeriod,
		LastTwap:             s.LastTwap.Raw().Dec(),
		AdminActiveTimestamp: s.AdminActiveTimestamp,
		LockedUntil:          locks,
		EventSequence:        s.EventSequence,
	}
}

func stateFromSnapshot(snap model.VaultSnapshot) (*ProtocolState, error) {
	if snap.Version != model.SnapshotVersion {
		return nil, fmt.Errorf("%w: %d", model.ErrUnsupportedSnapshot, snap.Version)
	}
	if snap.MintFee == 0 || snap.BurnFee == 0 || snap.ClaimFee == 0 {
		return nil, ErrInvalidFeeDivisor
	}
	if snap.TwapPeriod == 0 {
		return nil, ErrInvalidTwapPeriod
	}

	st := &ProtocolState{
		MintFee:              snap.MintFee,
		BurnFee:              snap.BurnFee,
		ClaimFee:             snap.ClaimFee,
		TwapPeriod:           snap.TwapPeriod,
		AdminActiveTimestamp: snap.AdminActiveTimestamp,
		EventSequence:        snap.EventSequence,
		LockedUntil:          make(map[common.Address]uint64, len(snap.LockedUntil)),
	}
	st.Position = position.Position{
		LowerTick: snap.Position.TickLower,
		UpperTick: snap.Position.TickUpper,
		Handle:    snap.Position.Handle,
		Active:    snap.Position.Active,
	}

	fields := []struct {
		name string
		raw  string
		dst  *uint256.Int
	}{
		{"position liquidity", snap.Position.Liquidity, &st.Position.Liquidity},
		{"withdrawable fees0", snap.WithdrawableFees0, &st.WithdrawableFees0},
		{"withdrawable fees1", snap.WithdrawableFees1, &st.WithdrawableFees1},
	}
	for _, f := range fields {
		v, err := uint256.FromDecimal(f.raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s %q: %w", f.name, f.raw, err)
		}
		f.dst.Set(v)
	}
	lastTwap, err := uint256.FromDecimal(snap.LastTwap)
	if err != nil {
		return nil, fmt.Errorf("parse last twap %q: %w", snap.LastTwap, err)
	}
	st.LastTwap = clmath.NewPrice(lastTwap)

	for hex, until := range snap.LockedUntil {
		if !common.IsHexAddress(hex) {
			return nil, fmt.Errorf("parse lock address %q", hex)
		}
		st.LockedUntil[common.HexToAddress(hex)] = until
	}
	return st, nil
}
