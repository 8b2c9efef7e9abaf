package dca

import (
	"math"
	"math/big"
)

// PositionDetails is the read-only projection of one position, with its
// swapped and unswapped balances reconstructed from the accumulated-ratio
// series.
type PositionDetails struct {
	ID            uint64
	Owner         string
	From          string
	To            string
	Interval      uint64 // seconds
	Rate          *big.Int
	SwapsExecuted uint64
	SwapsLeft     uint64
	Swapped       *big.Int
	Unswapped     *big.Int
}

// GetPositionDetails returns the current projection of position id.
func (e *Engine) GetPositionDetails(id uint64) (*PositionDetails, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	pos, ok, err := e.state.GetPosition(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidPosition
	}
	state, err := e.state.GetTriple(pos.Triple())
	if err != nil {
		return nil, err
	}
	carry, err := e.state.GetCarry(id)
	if err != nil {
		return nil, err
	}
	interval, _ := e.params.Registry().MaskToInterval(pos.Mask)
	total := pos.FinalSwap - pos.StartingSwap
	left := remainingSwaps(pos, state.PerformedSwaps)
	return &PositionDetails{
		ID:            pos.ID,
		Owner:         pos.Owner.String(),
		From:          pos.From.String(),
		To:            pos.To.String(),
		Interval:      interval,
		Rate:          cloneAmount(pos.Rate),
		SwapsExecuted: total - left,
		SwapsLeft:     left,
		Swapped:       swappedBalance(pos, state, carry, e.params.Magnitude(pos.From)),
		Unswapped:     unswappedBalance(pos, state.PerformedSwaps),
	}, nil
}

// SecondsUntilNextSwap reports how long until the pair has a swap worth
// executing: 0 when some interval with pending amount already has an open
// window, the earliest wait otherwise, and MaxUint64 when nothing is
// pending at all. Blank advances do not move last_swapped_at, so after a
// deferred-only stretch the result is computed against the last real swap.
func (e *Engine) SecondsUntilNextSwap(pair PairKey) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	activeMask, err := e.state.GetActiveMask(pair)
	if err != nil {
		return 0, err
	}
	registry := e.params.Registry()
	now := e.now()
	soonest := uint64(math.MaxUint64)
	for _, m := range registry.Bits() {
		if activeMask&m == 0 {
			continue
		}
		interval, ok := registry.MaskToInterval(m)
		if !ok {
			continue
		}
		state, err := e.state.GetTriple(TripleKey{From: pair.From, To: pair.To, Mask: m})
		if err != nil {
			return 0, err
		}
		if state.NextAmount.Sign() == 0 {
			continue
		}
		nextOpen := (state.LastSwappedAt/interval + 1) * interval
		if state.LastSwappedAt == 0 {
			nextOpen = (now / interval) * interval
		}
		if nextOpen <= now {
			return 0, nil
		}
		if wait := nextOpen - now; wait < soonest {
			soonest = wait
		}
	}
	return soonest, nil
}

// SwapPreview is the aggregate a swap of the pair would trade right now,
// computed without executing anything.
type SwapPreview struct {
	TotalInput      *big.Int
	IntervalsInSwap uint8
	OperatorReward  *big.Int
	PlatformFee     *big.Int
}

// NextSwapInfo previews the aggregate the swap engine would compute for the
// pair at the current instant.
func (e *Engine) NextSwapInfo(pair PairKey) (*SwapPreview, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	plan, err := e.aggregate(pair, e.now())
	if err != nil {
		return nil, err
	}
	return &SwapPreview{
		TotalInput:      plan.TotalInput,
		IntervalsInSwap: plan.IntervalsInSwap,
		OperatorReward:  plan.OperatorReward,
		PlatformFee:     plan.PlatformFee,
	}, nil
}
