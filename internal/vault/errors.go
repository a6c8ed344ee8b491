package vault

import (
	"errors"

	"liquidityVault/internal/oracle"
	"liquidityVault/internal/position"
)

var (
	ErrZeroAmount                = errors.New("amount must be greater than zero")
	ErrPaused                    = errors.New("vault is paused")
	ErrUnauthorized              = errors.New("caller is not authorized")
	ErrInvalidAsset              = errors.New("asset index must be 0 or 1")
	ErrInvalidFeeDivisor         = errors.New("fee divisors must be positive")
	ErrInvalidTwapPeriod         = errors.New("invalid twap period")
	ErrInsufficientShares        = errors.New("insufficient share balance")
	ErrInsufficientExitLiquidity = errors.New("insufficient exit liquidity")
	ErrInsufficientBuffer        = errors.New("amount exceeds buffer balance")
	ErrBlockLocked               = errors.New("address is block locked")
	ErrReentrant                 = errors.New("reentrant call")
	ErrTwapDeviation             = errors.New("twap deviates from last recorded value")
	ErrSlippage                  = errors.New("swap exceeded slippage bound")
	ErrZeroNav                   = errors.New("nav is zero with outstanding shares")
	ErrAssetOrder                = errors.New("asset0 must sort before asset1 and match the pool")
)

// Position and oracle failures surface unchanged so callers can match them from one package.
var (
	ErrPositionActive           = position.ErrPositionActive
	ErrPositionInactive         = position.ErrPositionInactive
	ErrInvalidTicks             = position.ErrInvalidTicks
	ErrSameTicks                = position.ErrSameTicks
	ErrInsufficientObservations = oracle.ErrInsufficientObservations
)
