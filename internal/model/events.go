package model

// Vault event names.
const (
	EventPositionInitialized = "PositionInitialized"
	EventPositionMigrated    = "PositionMigrated"
	EventRebalance           = "Rebalance"
	EventFeeDivisorsSet      = "FeeDivisorsSet"
	EventFeeWithdraw         = "FeeWithdraw"
)

// PositionInitializedData is emitted once, when the first position is minted.
type PositionInitializedData struct {
	Handle    uint64 `json:"handle"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Liquidity string `json:"liquidity"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
	Shares    string `json:"shares"`
}

// PositionMigratedData describes a position replaced by one over a new range.
type PositionMigratedData struct {
	OldHandle    uint64 `json:"old_handle"`
	NewHandle    uint64 `json:"new_handle"`
	OldTickLower int32  `json:"old_tick_lower"`
	OldTickUpper int32  `json:"old_tick_upper"`
	NewTickLower int32  `json:"new_tick_lower"`
	NewTickUpper int32  `json:"new_tick_upper"`
	Liquidity    string `json:"liquidity"`
}

// RebalanceData reports balances after a rebalance.
type RebalanceData struct {
	Buffer0   string `json:"buffer0"`
	Buffer1   string `json:"buffer1"`
	Staked0   string `json:"staked0"`
	Staked1   string `json:"staked1"`
	Swaps     int    `json:"swaps"`
	Timestamp uint64 `json:"timestamp"`
}

// FeeDivisorsSetData carries the new divisors.
type FeeDivisorsSetData struct {
	MintFee  uint64 `json:"mint_fee"`
	BurnFee  uint64 `json:"burn_fee"`
	ClaimFee uint64 `json:"claim_fee"`
}

// FeeWithdrawData is the amount of accrued fees paid out.
type FeeWithdrawData struct {
	Recipient string `json:"recipient"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}
