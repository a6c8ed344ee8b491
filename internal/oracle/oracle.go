// Package oracle turns pool tick-cumulative observations into time-weighted 64.64 asset prices.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"liquidityVault/internal/amm"
	"liquidityVault/internal/clmath"
)

var (
	// ErrInsufficientObservations means the pool cannot cover the requested window. There is no spot fallback.
	ErrInsufficientObservations = errors.New("oracle: insufficient observation history")
	// ErrInvalidPeriod rejects a zero-length window.
	ErrInvalidPeriod = errors.New("oracle: twap period must be positive")
)

// Source reports tick cumulatives for offsets back from the current block time.
type Source interface {
	Observe(ctx context.Context, secondsAgos []uint32) ([]int64, error)
}

// Oracle prices the pool's two assets against each other.
type Oracle struct {
	source    Source
	decimals0 uint8
	decimals1 uint8
}

// Quote is one TWAP reading.
type Quote struct {
	Period       uint32
	MeanTick     int32
	SqrtPriceX96 *uint256.Int
	// Asset0 is the price of asset0 in asset1 terms, Asset1 the inverse. Both apply to 18-decimal amounts.
	Asset0 clmath.Price
	Asset1 clmath.Price
}

// New returns an Oracle reading source for a pair with the given decimals.
func New(source Source, decimals0, decimals1 uint8) *Oracle {
	return &Oracle{source: source, decimals0: decimals0, decimals1: decimals1}
}

// MeanTick returns the arithmetic mean tick over the last period seconds, rounded toward negative infinity.
func (o *Oracle) MeanTick(ctx context.Context, period uint32) (int32, error) {
	if period == 0 {
		return 0, ErrInvalidPeriod
	}

	cumulatives, err := o.source.Observe(ctx, []uint32{period, 0})
	if err != nil {
		if errors.Is(err, amm.ErrObservationTooOld) {
			return 0, fmt.Errorf("%w for %ds window: %w", ErrInsufficientObservations, period, err)
		}
		return 0, fmt.Errorf("observe: %w", err)
	}
	if len(cumulatives) != 2 {
		return 0, fmt.Errorf("observe returned %d cumulatives", len(cumulatives))
	}

	delta := cumulatives[1] - cumulatives[0]
	mean := delta / int64(period)
	if delta < 0 && delta%int64(period) != 0 {
		mean--
	}
	if mean < int64(clmath.MinTick) || mean > int64(clmath.MaxTick) {
		return 0, fmt.Errorf("mean tick %d: %w", mean, clmath.ErrTickOutOfRange)
	}
	return int32(mean), nil
}

// Quote reads the TWAP over period and converts it into prices for both assets.
func (o *Oracle) Quote(ctx context.Context, period uint32) (Quote, error) {
	tick, err := o.MeanTick(ctx, period)
	if err != nil {
		return Quote{}, err
	}
	sqrtPrice, err := clmath.GetSqrtRatioAtTick(tick)
	if err != nil {
		return Quote{}, fmt.Errorf("sqrt ratio at tick %d: %w", tick, err)
	}
	price0, price1, err := clmath.PricesAtSqrtRatio(sqrtPrice, o.decimals0, o.decimals1)
	if err != nil {
		return Quote{}, fmt.Errorf("prices at tick %d: %w", tick, err)
	}

	return Quote{
		Period:       period,
		MeanTick:     tick,
		SqrtPriceX96: sqrtPrice,
		Asset0:       price0,
		Asset1:       price1,
	}, nil
}

// AssetPrice returns the TWAP price of one asset in terms of the other.
func (o *Oracle) AssetPrice(ctx context.Context, period uint32, forAsset0 bool) (clmath.Price, error) {
	q, err := o.Quote(ctx, period)
	if err != nil {
		return clmath.Price{}, err
	}
	if forAsset0 {
		return q.Asset0, nil
	}
	return q.Asset1, nil
}
