// Package sim is an in-memory chain: a clock, ERC20-style tokens, one concentrated-liquidity pool with
// oracle observations, its position registrar and router, and a share ledger. It implements every
// collaborator interface in package amm and checkpoints its whole state for rollback.
package sim

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityVault/internal/amm"
)

var (
	ErrPoolNotInitialized = errors.New("sim: pool not initialized")
	ErrPriceLimit         = fmt.Errorf("sim: %w", amm.ErrPriceLimit)
	ErrTokenMismatch      = errors.New("sim: token does not belong to pool")
	ErrNotOwner           = errors.New("sim: not position owner")
	ErrUnknownPosition    = errors.New("sim: unknown position")
	ErrZeroLiquidity      = errors.New("sim: zero liquidity")
	ErrNotCleared         = errors.New("sim: position not cleared")
	ErrInvalidTicks       = errors.New("sim: invalid ticks")
)

var (
	Token0Address    = common.HexToAddress("0x1000000000000000000000000000000000000001")
	Token1Address    = common.HexToAddress("0x2000000000000000000000000000000000000002")
	PoolAddress      = common.HexToAddress("0xa0000000000000000000000000000000000000a0")
	RegistrarAddress = common.HexToAddress("0xb0000000000000000000000000000000000000b0")
	RouterAddress    = common.HexToAddress("0xc0000000000000000000000000000000000000c0")
)

// Config describes the simulated pool.
type Config struct {
	Decimals0   uint8
	Decimals1   uint8
	Fee         uint32
	TickSpacing int32
	StartBlock  uint64
	StartTime   uint64
}

// World owns all simulated state.
type World struct {
	st *state

	Token0    *Token
	Token1    *Token
	Pool      *Pool
	Registrar *Registrar
	Router    *Router
	Shares    *ShareLedger
}

type holding struct {
	token common.Address
	owner common.Address
}

type allowanceKey struct {
	token   common.Address
	owner   common.Address
	spender common.Address
}

type state struct {
	block     uint64
	timestamp uint64

	balances   map[holding]uint256.Int
	allowances map[allowanceKey]uint256.Int

	pool       poolState
	positions  map[uint64]positionState
	nextHandle uint64

	shares      map[common.Address]uint256.Int
	shareSupply uint256.Int
}

func (s *state) clone() *state {
	out := *s
	out.balances = make(map[holding]uint256.Int, len(s.balances))
	for k, v := range s.balances {
		out.balances[k] = v
	}
	out.allowances = make(map[allowanceKey]uint256.Int, len(s.allowances))
	for k, v := range s.allowances {
		out.allowances[k] = v
	}
	out.positions = make(map[uint64]positionState, len(s.positions))
	for k, v := range s.positions {
		out.positions[k] = v
	}
	out.shares = make(map[common.Address]uint256.Int, len(s.shares))
	for k, v := range s.shares {
		out.shares[k] = v
	}
	out.pool.observations = append([]observation(nil), s.pool.observations...)
	return &out
}

// NewWorld creates an empty chain with an uninitialized pool.
func NewWorld(cfg Config) *World {
	if cfg.Fee == 0 {
		cfg.Fee = 500
	}
	if cfg.TickSpacing == 0 {
		cfg.TickSpacing = 10
	}
	if cfg.StartBlock == 0 {
		cfg.StartBlock = 1
	}
	if cfg.StartTime == 0 {
		cfg.StartTime = 1_700_000_000
	}

	w := &World{
		st: &state{
			block:      cfg.StartBlock,
			timestamp:  cfg.StartTime,
			balances:   make(map[holding]uint256.Int),
			allowances: make(map[allowanceKey]uint256.Int),
			positions:  make(map[uint64]positionState),
			nextHandle: 1,
			shares:     make(map[common.Address]uint256.Int),
		},
	}
	w.Token0 = &Token{w: w, addr: Token0Address, decimals: cfg.Decimals0}
	w.Token1 = &Token{w: w, addr: Token1Address, decimals: cfg.Decimals1}
	w.Pool = &Pool{w: w, fee: cfg.Fee, tickSpacing: cfg.TickSpacing}
	w.Registrar = &Registrar{w: w}
	w.Router = &Router{w: w}
	w.Shares = &ShareLedger{w: w}
	return w
}

// BlockNumber returns the current block.
func (w *World) BlockNumber() uint64 { return w.st.block }

// Timestamp returns the current block time in seconds.
func (w *World) Timestamp() uint64 { return w.st.timestamp }

// Mine advances n blocks, one second apart.
func (w *World) Mine(n uint64) {
	w.st.block += n
	w.st.timestamp += n
}

// IncreaseTime moves the clock forward without mining.
func (w *World) IncreaseTime(seconds uint64) {
	w.st.timestamp += seconds
}

// Checkpoint snapshots the whole world; calling the returned func restores it.
func (w *World) Checkpoint() func() {
	saved := w.st.clone()
	return func() { w.st = saved }
}

func (w *World) token(addr common.Address) (*Token, error) {
	switch addr {
	case Token0Address:
		return w.Token0, nil
	case Token1Address:
		return w.Token1, nil
	default:
		return nil, ErrTokenMismatch
	}
}
