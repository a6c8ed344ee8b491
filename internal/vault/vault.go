// Package vault runs a pooled concentrated-liquidity position behind a share token.
//
// Depositors mint shares against the vault's NAV with either asset and burn them for either asset. A small
// buffer of each asset stays outside the position to serve exits; Rebalance moves value between the
// buffer and the position and swaps across when the two assets are out of proportion. Every mutating
// operation is atomic: on error the collaborator journal and the vault's own state are rolled back.
//
// Oracle reads are TWAPs. Callers must let at least one block pass between a price-moving swap and a
// read that is expected to reflect it; nothing here enforces that.
package vault

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityVault/internal/amm"
	"liquidityVault/internal/model"
	"liquidityVault/internal/oracle"
	"liquidityVault/internal/position"
)

// Asset selects one of the two underlying assets.
type Asset uint8

const (
	Asset0 Asset = iota
	Asset1
)

const (
	DefaultMintFee                 = 1250
	DefaultBurnFee                 = 1250
	DefaultClaimFee                = 50
	DefaultTwapPeriod              = 3600
	DefaultBufferPercentage        = 5
	DefaultBlockLockDuration       = 5
	DefaultMaxTwapDeviationDivisor = 100
	DefaultSlippageDivisor         = 100
	DefaultPriceLimitTicks         = 500
	DefaultRebalanceRounds         = 8
	DefaultObservationCardinality  = 100
)

// Config holds the vault's tunables. Zero values take the defaults above, except MaxTwapDeviationDivisor
// where DisableTwapDeviation turns the guard off.
type Config struct {
	LowerTick int32
	UpperTick int32

	MintFee  uint64
	BurnFee  uint64
	ClaimFee uint64

	TwapPeriod              uint32
	BufferPercentage        uint64
	BlockLockDuration       uint64
	MaxTwapDeviationDivisor uint64
	DisableTwapDeviation    bool
	SlippageDivisor         uint64
	PriceLimitTicks         int32
	RebalanceRounds         int
	ObservationCardinality  uint16

	// InitialSqrtPriceX96 initializes the pool when set and the pool has no price yet.
	InitialSqrtPriceX96 *uint256.Int

	Logger *zap.Logger
}

func (c *Config) applyDefaults() {
	if c.MintFee == 0 {
		c.MintFee = DefaultMintFee
	}
	if c.BurnFee == 0 {
		c.BurnFee = DefaultBurnFee
	}
	if c.ClaimFee == 0 {
		c.ClaimFee = DefaultClaimFee
	}
	if c.TwapPeriod == 0 {
		c.TwapPeriod = DefaultTwapPeriod
	}
	if c.BufferPercentage == 0 {
		c.BufferPercentage = DefaultBufferPercentage
	}
	if c.BlockLockDuration == 0 {
		c.BlockLockDuration = DefaultBlockLockDuration
	}
	if c.DisableTwapDeviation {
		c.MaxTwapDeviationDivisor = 0
	} else if c.MaxTwapDeviationDivisor == 0 {
		c.MaxTwapDeviationDivisor = DefaultMaxTwapDeviationDivisor
	}
	if c.SlippageDivisor == 0 {
		c.SlippageDivisor = DefaultSlippageDivisor
	}
	if c.PriceLimitTicks == 0 {
		c.PriceLimitTicks = DefaultPriceLimitTicks
	}
	if c.RebalanceRounds == 0 {
		c.RebalanceRounds = DefaultRebalanceRounds
	}
	if c.ObservationCardinality == 0 {
		c.ObservationCardinality = DefaultObservationCardinality
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// EventSink receives the events of each committed operation.
type EventSink interface {
	PutEvents(ctx context.Context, events []model.VaultEvent) error
}

// Deps are the vault's collaborators. Address is the account that holds the vault's tokens and position.
type Deps struct {
	Address   common.Address
	Pool      amm.Pool
	Registrar amm.PositionRegistrar
	Router    amm.SwapRouter
	Token0    amm.Token
	Token1    amm.Token
	Shares    amm.ShareLedger
	Access    amm.AccessPolicy
	Chain     amm.Chain
	// Journal and Events are optional.
	Journal amm.Journal
	Events  EventSink
}

// Vault is the top-level service. It is not safe for concurrent use; operations are meant to be serialized
// like transactions.
type Vault struct {
	cfg    Config
	logger *zap.Logger

	addr      common.Address
	pool      amm.Pool
	registrar amm.PositionRegistrar
	router    amm.SwapRouter
	tokens    [2]amm.Token
	decimals  [2]uint8
	shares    amm.ShareLedger
	access    amm.AccessPolicy
	chain     amm.Chain
	journal   amm.Journal
	sink      EventSink

	oracle    *oracle.Oracle
	positions *position.Manager

	st      *ProtocolState
	busy    bool
	pending []model.VaultEvent
}

// New validates the collaborators, prepares the pool and approves the registrar and router to pull vault tokens.
func New(ctx context.Context, cfg Config, deps Deps) (*Vault, error) {
	cfg.applyDefaults()
	if deps.Pool == nil || deps.Registrar == nil || deps.Router == nil || deps.Token0 == nil ||
		deps.Token1 == nil || deps.Shares == nil || deps.Access == nil || deps.Chain == nil {
		return nil, errors.New("vault: missing collaborator")
	}
	if cfg.BufferPercentage >= 100 {
		return nil, fmt.Errorf("buffer percentage %d must be below 100", cfg.BufferPercentage)
	}

	t0, t1 := deps.Token0.Address(), deps.Token1.Address()
	if bytes.Compare(t0.Bytes(), t1.Bytes()) >= 0 || t0 != deps.Pool.Token0() || t1 != deps.Pool.Token1() {
		return nil, fmt.Errorf("%w: %s / %s", ErrAssetOrder, t0.Hex(), t1.Hex())
	}

	v := &Vault{
		cfg:       cfg,
		logger:    cfg.Logger,
		addr:      deps.Address,
		pool:      deps.Pool,
		registrar: deps.Registrar,
		router:    deps.Router,
		tokens:    [2]amm.Token{deps.Token0, deps.Token1},
		decimals:  [2]uint8{deps.Token0.Decimals(), deps.Token1.Decimals()},
		shares:    deps.Shares,
		access:    deps.Access,
		chain:     deps.Chain,
		journal:   deps.Journal,
		sink:      deps.Events,
		st: &ProtocolState{
			MintFee:     cfg.MintFee,
			BurnFee:     cfg.BurnFee,
			ClaimFee:    cfg.ClaimFee,
			TwapPeriod:  cfg.TwapPeriod,
			LockedUntil: make(map[common.Address]uint64),
		},
	}
	v.oracle = oracle.New(deps.Pool, v.decimals[0], v.decimals[1])
	v.positions = position.NewManager(position.Config{
		Pool:      deps.Pool,
		Registrar: deps.Registrar,
		Owner:     deps.Address,
		Logger:    cfg.Logger.Named("position"),
	})

	if err := v.positions.ValidateTicks(cfg.LowerTick, cfg.UpperTick); err != nil {
		return nil, err
	}
	if cfg.InitialSqrtPriceX96 != nil {
		if err := deps.Pool.InitializeIfNecessary(ctx, t0, t1, deps.Pool.Fee(), cfg.InitialSqrtPriceX96); err != nil {
			return nil, fmt.Errorf("initialize pool: %w", err)
		}
	}
	if err := deps.Pool.IncreaseObservationCardinality(ctx, cfg.ObservationCardinality); err != nil {
		return nil, fmt.Errorf("increase observation cardinality: %w", err)
	}

	unlimited := new(uint256.Int).SetAllOne()
	for _, token := range v.tokens {
		for _, spender := range []common.Address{deps.Registrar.Address(), deps.Router.Address()} {
			if err := token.Approve(ctx, deps.Address, spender, unlimited); err != nil {
				return nil, fmt.Errorf("approve %s for %s: %w", spender.Hex(), token.Address().Hex(), err)
			}
		}
	}

	v.logger.Info("vault ready",
		zap.String("vault", deps.Address.Hex()),
		zap.String("pool", deps.Pool.Address().Hex()),
		zap.Int32("tick_lower", cfg.LowerTick),
		zap.Int32("tick_upper", cfg.UpperTick),
		zap.Uint32("twap_period", cfg.TwapPeriod),
	)
	return v, nil
}

// Address returns the vault account.
func (v *Vault) Address() common.Address { return v.addr }

// Snapshot exports the protocol state.
func (v *Vault) Snapshot() model.VaultSnapshot {
	return v.st.snapshot(v.addr, v.chain.BlockNumber())
}

// Restore replaces the protocol state with a stored snapshot.
func (v *Vault) Restore(snap model.VaultSnapshot) error {
	if v.busy {
		return ErrReentrant
	}
	st, err := stateFromSnapshot(snap)
	if err != nil {
		return err
	}
	v.st = st
	return nil
}

// run executes fn atomically. Events emitted by fn are published after it succeeds; if fn or the
// publication fails, every effect is undone.
func (v *Vault) run(ctx context.Context, op string, fn func() error) error {
	if v.busy {
		return fmt.Errorf("%s: %w", op, ErrReentrant)
	}
	v.busy = true
	defer func() { v.busy = false }()

	saved := v.st.clone()
	var rollback func()
	if v.journal != nil {
		rollback = v.journal.Checkpoint()
	}
	v.pending = v.pending[:0]

	err := fn()
	if err == nil && len(v.pending) > 0 && v.sink != nil {
		if perr := v.sink.PutEvents(ctx, v.pending); perr != nil {
			err = fmt.Errorf("publish events: %w", perr)
		}
	}
	v.pending = v.pending[:0]

	if err != nil {
		v.st = saved
		if rollback != nil {
			rollback()
		}
		v.logger.Debug("operation rolled back", zap.String("op", op), zap.Error(err))
		return err
	}
	return nil
}

func (v *Vault) emit(name string, payload interface{}) {
	v.st.EventSequence++
	v.pending = append(v.pending, model.VaultEvent{
		Sequence:    v.st.EventSequence,
		BlockNumber: v.chain.BlockNumber(),
		Timestamp:   v.chain.Timestamp(),
		Vault:       v.addr.Hex(),
		EventName:   name,
		Decoded:     payload,
	})
}

func (v *Vault) requireOwner(caller common.Address) error {
	if !v.access.IsOwner(caller) {
		return fmt.Errorf("%w: %s is not the owner", ErrUnauthorized, caller.Hex())
	}
	return nil
}

func (v *Vault) requireManager(caller common.Address) error {
	if !v.access.IsOwner(caller) && !v.access.IsManager(caller) {
		return fmt.Errorf("%w: %s is not a manager", ErrUnauthorized, caller.Hex())
	}
	return nil
}

func (v *Vault) requireUnpaused() error {
	if v.access.IsPaused() {
		return ErrPaused
	}
	return nil
}

func validAsset(a Asset) error {
	if a != Asset0 && a != Asset1 {
		return fmt.Errorf("%w: %d", ErrInvalidAsset, a)
	}
	return nil
}

// checkLock fails while the address is inside its lock window: from the locking block through
// BlockLockDuration blocks after it.
func (v *Vault) checkLock(addr common.Address) error {
	until, ok := v.st.LockedUntil[addr]
	if ok && v.chain.BlockNumber() <= until {
		return fmt.Errorf("%w: %s until block %d", ErrBlockLocked, addr.Hex(), until)
	}
	return nil
}

func (v *Vault) lock(addr common.Address) {
	v.st.LockedUntil[addr] = v.chain.BlockNumber() + v.cfg.BlockLockDuration
}
