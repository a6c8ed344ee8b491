package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityVault/internal/amm"
	"liquidityVault/internal/dex"
	"liquidityVault/internal/model"
)

// ErrReadOnly is returned by PoolReader methods that would send a transaction.
var ErrReadOnly = errors.New("chain: pool reader is read-only")

// PoolReaderConfig configures a PoolReader. Cache and Tokens are optional and may be shared between
// readers.
type PoolReaderConfig struct {
	Caller       dex.Caller
	Pool         common.Address
	MaxRetries   int
	RetryBackoff time.Duration
	Logger       *zap.Logger
	Cache        *dex.PoolMetaCache
	Tokens       *dex.TokenMetaCache
}

// PoolReader serves the read side of amm.Pool from a deployed V3 pool, so the TWAP oracle can run against
// live observations. Immutables are loaded once by NewPoolReader.
type PoolReader struct {
	caller       dex.Caller
	address      common.Address
	meta         model.PoolMeta
	maxRetries   int
	retryBackoff time.Duration
	logger       *zap.Logger
}

var _ amm.Pool = (*PoolReader)(nil)

// NewPoolReader fetches the pool's immutables, or takes them from the cache, and returns a reader for it.
func NewPoolReader(ctx context.Context, cfg PoolReaderConfig) (*PoolReader, error) {
	if cfg.Caller == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &PoolReader{
		caller:       cfg.Caller,
		address:      cfg.Pool,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		logger:       logger,
	}
	if cfg.Cache != nil {
		if meta, ok := cfg.Cache.Get(cfg.Pool); ok {
			r.meta = meta
			return r, nil
		}
	}
	err := Retry(ctx, r.maxRetries, r.retryBackoff, func(ctx context.Context) error {
		meta, err := dex.FetchPoolMeta(ctx, r.caller, r.address, cfg.Tokens, r.logger)
		if err != nil {
			return err
		}
		r.meta = meta
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch pool meta: %w", err)
	}
	if cfg.Cache != nil {
		cfg.Cache.Set(cfg.Pool, r.meta)
	}
	return r, nil
}

// Meta returns the pool's immutables.
func (r *PoolReader) Meta() model.PoolMeta { return r.meta }

// Address is the pool contract.
func (r *PoolReader) Address() common.Address { return r.address }

// Token0 is the pool's first token.
func (r *PoolReader) Token0() common.Address { return common.HexToAddress(r.meta.Token0) }

// Token1 is the pool's second token.
func (r *PoolReader) Token1() common.Address { return common.HexToAddress(r.meta.Token1) }

// Fee is the pool fee in hundredths of a bip.
func (r *PoolReader) Fee() uint32 { return r.meta.Fee }

// TickSpacing is the pool's tick spacing.
func (r *PoolReader) TickSpacing() int32 { return r.meta.TickSpacing }

// Slot0 reads the current price.
func (r *PoolReader) Slot0(ctx context.Context) (amm.Slot0, error) {
	var out amm.Slot0
	err := Retry(ctx, r.maxRetries, r.retryBackoff, func(ctx context.Context) error {
		sqrt, tick, err := dex.ReadSlot0(ctx, r.caller, r.address, nil)
		if err != nil {
			return err
		}
		price, overflow := uint256.FromBig(sqrt)
		if overflow {
			return Permanent(fmt.Errorf("sqrt price %s overflows", sqrt.String()))
		}
		out = amm.Slot0{SqrtPriceX96: price, Tick: tick}
		return nil
	})
	return out, err
}

// Observe reads tick cumulatives. A pool revert of "OLD" maps to amm.ErrObservationTooOld and is not retried.
func (r *PoolReader) Observe(ctx context.Context, secondsAgos []uint32) ([]int64, error) {
	var out []int64
	err := Retry(ctx, r.maxRetries, r.retryBackoff, func(ctx context.Context) error {
		cumulatives, err := dex.ReadObserve(ctx, r.caller, r.address, secondsAgos)
		if err != nil {
			if isObservationTooOld(err) {
				return Permanent(fmt.Errorf("%w: %v", amm.ErrObservationTooOld, err))
			}
			r.logger.Debug("observe failed", zap.String("pool", r.address.Hex()), zap.Error(err))
			return err
		}
		out = cumulatives
		return nil
	})
	return out, err
}

// InitializeIfNecessary always fails with ErrReadOnly.
func (r *PoolReader) InitializeIfNecessary(context.Context, common.Address, common.Address, uint32, *uint256.Int) error {
	return ErrReadOnly
}

// IncreaseObservationCardinality always fails with ErrReadOnly.
func (r *PoolReader) IncreaseObservationCardinality(context.Context, uint16) error {
	return ErrReadOnly
}

func isObservationTooOld(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "reverted: OLD") || strings.HasSuffix(msg, ": OLD")
}
