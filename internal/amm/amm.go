// Package amm declares the external collaborators the vault consumes: the concentrated-liquidity pool,
// its position registrar and swap router, the two underlying tokens, the share ledger and the access gate.
//
// Every mutating call names the account acting on it explicitly; there is no implicit sender.
package amm

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	// ErrObservationTooOld is returned by Pool.Observe when a requested point predates the oldest observation.
	ErrObservationTooOld = errors.New("amm: observation too old")
	// ErrTooLittleReceived is returned by SwapRouter when the output is below the minimum.
	ErrTooLittleReceived = errors.New("amm: too little received")
	// ErrPriceLimit is returned by SwapRouter when the price limit is already crossed or out of bounds.
	ErrPriceLimit = errors.New("amm: invalid price limit")
	// ErrInsufficientBalance is returned by Token and ShareLedger transfers.
	ErrInsufficientBalance = errors.New("amm: insufficient balance")
	// ErrInsufficientAllowance is returned by Token.TransferFrom.
	ErrInsufficientAllowance = errors.New("amm: insufficient allowance")
)

// Slot0 is the pool's current price state.
type Slot0 struct {
	SqrtPriceX96 *uint256.Int
	Tick         int32
}

// Pool is the AMM pool the position lives in.
type Pool interface {
	Address() common.Address
	Token0() common.Address
	Token1() common.Address
	Fee() uint32
	TickSpacing() int32
	// InitializeIfNecessary sets the starting price when the pool has none yet.
	InitializeIfNecessary(ctx context.Context, token0, token1 common.Address, fee uint32, sqrtPriceX96 *uint256.Int) error
	Slot0(ctx context.Context) (Slot0, error)
	// Observe returns tick cumulatives at each secondsAgo offset from the current block time.
	Observe(ctx context.Context, secondsAgos []uint32) ([]int64, error)
	IncreaseObservationCardinality(ctx context.Context, next uint16) error
}

// MintParams describes a new position.
type MintParams struct {
	Token0         common.Address
	Token1         common.Address
	Fee            uint32
	TickLower      int32
	TickUpper      int32
	Amount0Desired *uint256.Int
	Amount1Desired *uint256.Int
	Recipient      common.Address
}

// MintResult is what the registrar actually minted.
type MintResult struct {
	Handle    uint64
	Liquidity *uint256.Int
	Amount0   *uint256.Int
	Amount1   *uint256.Int
}

// PositionRegistrar owns position handles. Tokens are pulled from the acting account.
type PositionRegistrar interface {
	Address() common.Address
	Mint(ctx context.Context, from common.Address, params MintParams) (MintResult, error)
	IncreaseLiquidity(ctx context.Context, from common.Address, handle uint64, amount0, amount1 *uint256.Int) (liquidity, used0, used1 *uint256.Int, err error)
	// DecreaseLiquidity credits the released tokens to the position; Collect moves them out.
	DecreaseLiquidity(ctx context.Context, from common.Address, handle uint64, liquidity *uint256.Int) (amount0, amount1 *uint256.Int, err error)
	Collect(ctx context.Context, from common.Address, handle uint64, recipient common.Address) (amount0, amount1 *uint256.Int, err error)
	Burn(ctx context.Context, from common.Address, handle uint64) error
}

// ExactInputParams describes a single-pool exact-input swap.
type ExactInputParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               uint32
	Recipient         common.Address
	AmountIn          *uint256.Int
	AmountOutMinimum  *uint256.Int
	SqrtPriceLimitX96 *uint256.Int
}

// SwapRouter executes swaps, pulling the consumed input from the acting account.
type SwapRouter interface {
	Address() common.Address
	ExactInputSingle(ctx context.Context, from common.Address, params ExactInputParams) (*uint256.Int, error)
}

// Token is a fungible underlying asset.
type Token interface {
	Address() common.Address
	Decimals() uint8
	BalanceOf(ctx context.Context, owner common.Address) (*uint256.Int, error)
	Transfer(ctx context.Context, from, to common.Address, amount *uint256.Int) error
	TransferFrom(ctx context.Context, spender, from, to common.Address, amount *uint256.Int) error
	Approve(ctx context.Context, owner, spender common.Address, amount *uint256.Int) error
}

// ShareLedger is the fungible share token.
type ShareLedger interface {
	TotalSupply(ctx context.Context) (*uint256.Int, error)
	BalanceOf(ctx context.Context, owner common.Address) (*uint256.Int, error)
	Mint(ctx context.Context, to common.Address, amount *uint256.Int) error
	Burn(ctx context.Context, from common.Address, amount *uint256.Int) error
	Transfer(ctx context.Context, from, to common.Address, amount *uint256.Int) error
}

// AccessPolicy answers role and pause questions.
type AccessPolicy interface {
	IsOwner(addr common.Address) bool
	IsManager(addr common.Address) bool
	IsPaused() bool
}

// Chain exposes the current block.
type Chain interface {
	BlockNumber() uint64
	Timestamp() uint64
}

// Journal checkpoints collaborator state so a failed operation can be undone.
type Journal interface {
	Checkpoint() (rollback func())
}
