package sim

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityVault/internal/amm"
	"liquidityVault/internal/clmath"
)

const maxSwapSteps = 1000

type observation struct {
	timestamp      uint64
	tickCumulative int64
	initialized    bool
}

type poolState struct {
	initialized     bool
	sqrtPriceX96    uint256.Int
	tick            int32
	observations    []observation
	index           uint16
	cardinality     uint16
	cardinalityNext uint16
}

// Pool is the simulated concentrated-liquidity pool for Token0/Token1.
type Pool struct {
	w           *World
	fee         uint32
	tickSpacing int32
}

func (p *Pool) Address() common.Address { return PoolAddress }
func (p *Pool) Token0() common.Address  { return Token0Address }
func (p *Pool) Token1() common.Address  { return Token1Address }
func (p *Pool) Fee() uint32             { return p.fee }
func (p *Pool) TickSpacing() int32      { return p.tickSpacing }

func (p *Pool) InitializeIfNecessary(_ context.Context, token0, token1 common.Address, fee uint32, sqrtPriceX96 *uint256.Int) error {
	if token0 != Token0Address || token1 != Token1Address || fee != p.fee {
		return ErrTokenMismatch
	}
	st := &p.w.st.pool
	if st.initialized {
		return nil
	}
	tick, err := clmath.GetTickAtSqrtRatio(sqrtPriceX96)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	st.initialized = true
	st.sqrtPriceX96.Set(sqrtPriceX96)
	st.tick = tick
	st.observations = []observation{{timestamp: p.w.st.timestamp, initialized: true}}
	st.index = 0
	st.cardinality = 1
	st.cardinalityNext = 1
	return nil
}

func (p *Pool) Slot0(context.Context) (amm.Slot0, error) {
	st := &p.w.st.pool
	if !st.initialized {
		return amm.Slot0{}, ErrPoolNotInitialized
	}
	return amm.Slot0{SqrtPriceX96: st.sqrtPriceX96.Clone(), Tick: st.tick}, nil
}

func (p *Pool) IncreaseObservationCardinality(_ context.Context, next uint16) error {
	st := &p.w.st.pool
	if !st.initialized {
		return ErrPoolNotInitialized
	}
	if next <= st.cardinalityNext {
		return nil
	}
	for len(st.observations) < int(next) {
		st.observations = append(st.observations, observation{})
	}
	st.cardinalityNext = next
	return nil
}

// Observe returns tick cumulatives, interpolating between stored observations.
func (p *Pool) Observe(_ context.Context, secondsAgos []uint32) ([]int64, error) {
	st := &p.w.st.pool
	if !st.initialized {
		return nil, ErrPoolNotInitialized
	}
	out := make([]int64, len(secondsAgos))
	for i, ago := range secondsAgos {
		cumulative, err := p.observeSingle(ago)
		if err != nil {
			return nil, err
		}
		out[i] = cumulative
	}
	return out, nil
}

func (p *Pool) observeSingle(secondsAgo uint32) (int64, error) {
	st := &p.w.st.pool
	now := p.w.st.timestamp
	last := st.observations[st.index]

	if uint64(secondsAgo) > now {
		return 0, fmt.Errorf("%w: %ds ago", amm.ErrObservationTooOld, secondsAgo)
	}
	target := now - uint64(secondsAgo)

	if last.timestamp <= target {
		return last.tickCumulative + int64(st.tick)*int64(target-last.timestamp), nil
	}

	ordered := p.orderedObservations()
	if target < ordered[0].timestamp {
		return 0, fmt.Errorf("%w: %ds ago, oldest at %d", amm.ErrObservationTooOld, secondsAgo, ordered[0].timestamp)
	}
	for i := len(ordered) - 1; i > 0; i-- {
		before, after := ordered[i-1], ordered[i]
		if before.timestamp > target {
			continue
		}
		if before.timestamp == target {
			return before.tickCumulative, nil
		}
		span := int64(after.timestamp - before.timestamp)
		perSecond := (after.tickCumulative - before.tickCumulative) / span
		return before.tickCumulative + perSecond*int64(target-before.timestamp), nil
	}
	return ordered[0].tickCumulative, nil
}

func (p *Pool) orderedObservations() []observation {
	st := &p.w.st.pool
	out := make([]observation, 0, st.cardinality)
	for k := uint16(1); k <= st.cardinality; k++ {
		obs := st.observations[(st.index+k)%st.cardinality]
		if obs.initialized {
			out = append(out, obs)
		}
	}
	return out
}

// writeObservation records the cumulative up to now with the tick that held since the last write.
func (p *Pool) writeObservation() {
	st := &p.w.st.pool
	now := p.w.st.timestamp
	last := st.observations[st.index]
	if last.timestamp == now {
		return
	}
	if st.cardinalityNext > st.cardinality && st.index == st.cardinality-1 {
		st.cardinality = st.cardinalityNext
	}
	st.index = (st.index + 1) % st.cardinality
	st.observations[st.index] = observation{
		timestamp:      now,
		tickCumulative: last.tickCumulative + int64(st.tick)*int64(now-last.timestamp),
		initialized:    true,
	}
}

type activePosition struct {
	handle    uint64
	liquidity *uint256.Int
}

// swap moves the price toward limit until amountIn is consumed. Fees accrue to positions active in each step.
func (p *Pool) swap(zeroForOne bool, amountIn, limit *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	st := &p.w.st.pool
	if !st.initialized {
		return nil, nil, ErrPoolNotInitialized
	}
	current := st.sqrtPriceX96.Clone()
	if zeroForOne {
		if !limit.Lt(current) || !limit.Gt(clmath.MinSqrtRatio()) {
			return nil, nil, ErrPriceLimit
		}
	} else {
		if !limit.Gt(current) || !limit.Lt(clmath.MaxSqrtRatio()) {
			return nil, nil, ErrPriceLimit
		}
	}

	p.writeObservation()

	remaining := amountIn.Clone()
	amountOut := new(uint256.Int)
	for steps := 0; !remaining.IsZero() && !current.Eq(limit); steps++ {
		if steps >= maxSwapSteps {
			return nil, nil, fmt.Errorf("swap exceeded %d steps", maxSwapSteps)
		}
		target, err := p.nextBoundary(current, zeroForOne)
		if err != nil {
			return nil, nil, err
		}
		if (zeroForOne && target.Lt(limit)) || (!zeroForOne && target.Gt(limit)) {
			target = limit
		}

		active, liquidity, err := p.activeLiquidity(current, target)
		if err != nil {
			return nil, nil, err
		}
		step, err := clmath.ComputeSwapStep(current, target, liquidity, remaining, p.fee)
		if err != nil {
			return nil, nil, fmt.Errorf("swap step: %w", err)
		}

		remaining = clmath.SubFloor(remaining, new(uint256.Int).Add(step.AmountIn, step.FeeAmount))
		amountOut.Add(amountOut, step.AmountOut)
		if err := p.accrueFees(active, liquidity, step.FeeAmount, zeroForOne); err != nil {
			return nil, nil, err
		}
		current = step.SqrtRatioNextX96
	}

	tick, err := clmath.GetTickAtSqrtRatio(current)
	if err != nil {
		return nil, nil, err
	}
	if zeroForOne {
		if atTick, err := clmath.GetSqrtRatioAtTick(tick); err == nil && atTick.Eq(current) && !current.Eq(&st.sqrtPriceX96) {
			tick--
		}
	}
	st.sqrtPriceX96.Set(current)
	st.tick = tick

	return new(uint256.Int).Sub(amountIn, remaining), amountOut, nil
}

// nextBoundary returns the nearest position bound strictly beyond current in the swap direction.
func (p *Pool) nextBoundary(current *uint256.Int, zeroForOne bool) (*uint256.Int, error) {
	var best *uint256.Int
	if zeroForOne {
		best = clmath.MinSqrtRatio()
	} else {
		best = clmath.MaxSqrtRatio()
	}
	for _, pos := range p.w.st.positions {
		if pos.liquidity.IsZero() {
			continue
		}
		for _, tick := range []int32{pos.lower, pos.upper} {
			ratio, err := clmath.GetSqrtRatioAtTick(tick)
			if err != nil {
				return nil, err
			}
			if zeroForOne && ratio.Lt(current) && ratio.Gt(best) {
				best = ratio
			}
			if !zeroForOne && ratio.Gt(current) && ratio.Lt(best) {
				best = ratio
			}
		}
	}
	return best, nil
}

// activeLiquidity sums positions spanning the whole segment between a and b.
func (p *Pool) activeLiquidity(a, b *uint256.Int) ([]activePosition, *uint256.Int, error) {
	low, high := a, b
	if low.Gt(high) {
		low, high = high, low
	}
	total := new(uint256.Int)
	var active []activePosition
	for handle, pos := range p.w.st.positions {
		if pos.liquidity.IsZero() {
			continue
		}
		sqrtA, sqrtB, err := pos.ratios()
		if err != nil {
			return nil, nil, err
		}
		if sqrtA.Cmp(low) <= 0 && high.Cmp(sqrtB) <= 0 {
			active = append(active, activePosition{handle: handle, liquidity: pos.liquidity.Clone()})
			total.Add(total, &pos.liquidity)
		}
	}
	return active, total, nil
}

func (p *Pool) accrueFees(active []activePosition, liquidity, fee *uint256.Int, zeroForOne bool) error {
	if fee.IsZero() || liquidity.IsZero() {
		return nil
	}
	for _, a := range active {
		share, err := clmath.MulDiv(fee, a.liquidity, liquidity)
		if err != nil {
			return err
		}
		pos := p.w.st.positions[a.handle]
		if zeroForOne {
			pos.owed0.Add(&pos.owed0, share)
		} else {
			pos.owed1.Add(&pos.owed1, share)
		}
		p.w.st.positions[a.handle] = pos
	}
	return nil
}
