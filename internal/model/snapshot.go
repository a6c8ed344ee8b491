package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// SnapshotVersion is the current VaultSnapshot layout.
const SnapshotVersion = 1

var ErrUnsupportedSnapshot = errors.New("unsupported snapshot version")

// VaultSnapshot is the persisted form of the vault's protocol state. Integers wider than 64 bits are decimal strings.
type VaultSnapshot struct {
	Version              int               `json:"version"`
	Vault                string            `json:"vault"`
	BlockNumber          uint64            `json:"block_number"`
	Position             PositionSnapshot  `json:"position"`
	MintFee              uint64            `json:"mint_fee"`
	BurnFee              uint64            `json:"burn_fee"`
	ClaimFee             uint64            `json:"claim_fee"`
	WithdrawableFees0    string            `json:"withdrawable_fees0"`
	WithdrawableFees1    string            `json:"withdrawable_fees1"`
	TwapPeriod           uint32            `json:"twap_period"`
	LastTwap             string            `json:"last_twap"`
	AdminActiveTimestamp uint64            `json:"admin_active_timestamp"`
	LockedUntil          map[string]uint64 `json:"locked_until,omitempty"`
	EventSequence        uint64            `json:"event_sequence"`
}

// PositionSnapshot is the persisted position record.
type PositionSnapshot struct {
	Handle    uint64 `json:"handle"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Liquidity string `json:"liquidity"`
	Active    bool   `json:"active"`
}

// legacySnapshot is the unversioned layout: a flat record keyed by token id with fees as a pair.
type legacySnapshot struct {
	Vault            string    `json:"vault"`
	TokenID          uint64    `json:"token_id"`
	LowerTick        int32     `json:"lower_tick"`
	UpperTick        int32     `json:"upper_tick"`
	Liquidity        string    `json:"liquidity"`
	FeeDivisors      [3]uint64 `json:"fee_divisors"`
	WithdrawableFees [2]string `json:"withdrawable_fees"`
	TwapPeriod       uint32    `json:"twap_period"`
}

// MigrateSnapshot decodes a stored snapshot of any known version into the current layout.
func MigrateSnapshot(data []byte) (VaultSnapshot, error) {
	var probe struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return VaultSnapshot{}, fmt.Errorf("parse snapshot version: %w", err)
	}

	switch probe.Version {
	case 0:
		var legacy legacySnapshot
		if err := json.Unmarshal(data, &legacy); err != nil {
			return VaultSnapshot{}, fmt.Errorf("parse legacy snapshot: %w", err)
		}
		liquidity := legacy.Liquidity
		if liquidity == "" {
			liquidity = "0"
		}
		return VaultSnapshot{
			Version: SnapshotVersion,
			Vault:   legacy.Vault,
			Position: PositionSnapshot{
				Handle:    legacy.TokenID,
				TickLower: legacy.LowerTick,
				TickUpper: legacy.UpperTick,
				Liquidity: liquidity,
				Active:    legacy.TokenID != 0,
			},
			MintFee:           legacy.FeeDivisors[0],
			BurnFee:           legacy.FeeDivisors[1],
			ClaimFee:          legacy.FeeDivisors[2],
			WithdrawableFees0: orZero(legacy.WithdrawableFees[0]),
			WithdrawableFees1: orZero(legacy.WithdrawableFees[1]),
			TwapPeriod:        legacy.TwapPeriod,
			LastTwap:          "0",
		}, nil
	case SnapshotVersion:
		var snap VaultSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return VaultSnapshot{}, fmt.Errorf("parse snapshot: %w", err)
		}
		return snap, nil
	default:
		return VaultSnapshot{}, fmt.Errorf("%w: %d", ErrUnsupportedSnapshot, probe.Version)
	}
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
