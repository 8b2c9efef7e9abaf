package dca

import (
	"math"
	"math/big"
)

// windowDecision is the window classifier's verdict for one triple at one
// instant: whether the triple's own interval currently sits inside a live
// swap window, and the earliest live window's end time minus the threshold
// guard.
type windowDecision struct {
	partOfNext bool
	threshold  uint64
}

// timeUntilThreshold classifies the (pair, selfMask) triple against every
// interval currently active for the pair, plus selfMask itself even when no
// position holds it yet. A window is "live" when now lies strictly inside
// (next_swap_start, next_swap_start + interval) and the interval either has
// pending amount or is selfMask.
// selfState is the caller's working copy of the selfMask triple, consulted
// instead of the store so that mutations staged earlier in the same call
// (remove-from-delta during a modification) are visible.
func (e *Engine) timeUntilThreshold(pair PairKey, activeMask, selfMask uint8, selfState *TripleState, now uint64) (windowDecision, error) {
	registry := e.params.Registry()
	inSwap := uint8(0)
	boundary := uint64(math.MaxUint64)
	scan := activeMask | selfMask
	for _, m := range registry.Bits() {
		if scan&m == 0 {
			continue
		}
		interval, ok := registry.MaskToInterval(m)
		if !ok {
			continue
		}
		state := selfState
		if m != selfMask {
			var err error
			state, err = e.state.GetTriple(TripleKey{From: pair.From, To: pair.To, Mask: m})
			if err != nil {
				return windowDecision{}, err
			}
		}
		windowStart := (now / interval) * interval
		nextStart := windowStart
		if state.LastSwappedAt != 0 {
			nextStart = (state.LastSwappedAt/interval + 1) * interval
		}
		if nextStart < windowStart {
			nextStart = windowStart
		}
		windowEnd := nextStart + interval
		if now > nextStart && now < windowEnd && (state.NextAmount.Sign() > 0 || m == selfMask) {
			inSwap |= m
			if windowEnd < boundary {
				boundary = windowEnd
			}
		}
	}
	dec := windowDecision{partOfNext: inSwap&selfMask != 0, threshold: boundary}
	if guard := e.params.ThresholdGuard(); boundary != math.MaxUint64 && boundary > guard {
		dec.threshold = boundary - guard
	}
	return dec, nil
}

// addToDelta registers a new rate stream against the triple's rolling
// aggregates. A position created while its own swap window is live and past
// the threshold guard is deferred one swap: it joins next_to_next instead
// of next, and its index range shifts up by one, so an imminent swap whose
// aggregation may already be computed off-chain cannot dilute it. Returns
// the final (start, end) range. delta[end+1] always records the rate so the
// rolling next_amount drops once the position's last swap has completed.
func (e *Engine) addToDelta(key TripleKey, state *TripleState, activeMask uint8, rate *big.Int, start, end uint64) (uint64, uint64, error) {
	dec, err := e.timeUntilThreshold(key.Pair(), activeMask, key.Mask, state, e.now())
	if err != nil {
		return 0, 0, err
	}
	deferred := dec.partOfNext && e.now() > dec.threshold
	if deferred {
		start++
		end++
		state.NextToNextAmount.Add(state.NextToNextAmount, rate)
	} else {
		state.NextAmount.Add(state.NextAmount, rate)
	}
	slot := end + 1
	state.Delta[slot] = new(big.Int).Add(state.DeltaAt(slot), rate)
	return start, end, nil
}

// removeFromDelta undoes a position's contribution to the triple's rolling
// aggregates. Positions whose final swap has already completed contribute
// nothing and are left untouched.
func removeFromDelta(state *TripleState, pos *Position) {
	if state == nil || pos == nil || pos.FinalSwap <= state.PerformedSwaps {
		return
	}
	if pos.StartingSwap > state.PerformedSwaps {
		state.NextToNextAmount.Sub(state.NextToNextAmount, pos.Rate)
		if state.NextToNextAmount.Sign() < 0 {
			state.NextToNextAmount.SetInt64(0)
		}
	} else {
		state.NextAmount.Sub(state.NextAmount, pos.Rate)
		if state.NextAmount.Sign() < 0 {
			state.NextAmount.SetInt64(0)
		}
	}
	slot := pos.FinalSwap + 1
	left := new(big.Int).Sub(state.DeltaAt(slot), pos.Rate)
	if left.Sign() <= 0 {
		delete(state.Delta, slot)
		return
	}
	state.Delta[slot] = left
}
