package dca

import "math/big"

// remainingSwaps returns how many installments of p are still ahead of the
// triple's performed-swap counter.
func remainingSwaps(p *Position, performedSwaps uint64) uint64 {
	if p == nil {
		return 0
	}
	total := p.FinalSwap - p.StartingSwap
	var executed uint64
	if performedSwaps > p.StartingSwap {
		executed = performedSwaps - p.StartingSwap
	}
	if executed >= total {
		return 0
	}
	return total - executed
}

// unswappedBalance returns the principal still waiting to be traded:
// remaining installments times the per-swap rate.
func unswappedBalance(p *Position, performedSwaps uint64) *big.Int {
	if p == nil || p.Rate == nil {
		return big.NewInt(0)
	}
	left := remainingSwaps(p, performedSwaps)
	if left == 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(left), p.Rate)
}

// swappedBalance reconstructs the destination-token entitlement earned by p
// since its last update, from the triple's accumulated-ratio series alone:
//
//	(accum[min(performed, final)] - accum[max(last_updated, starting)]) * rate / magnitude
//
// plus the carry frozen at the last modification. The lookup is O(1); no
// per-swap history is consulted.
func swappedBalance(p *Position, s *TripleState, carry, magnitude *big.Int) *big.Int {
	if p == nil || s == nil {
		return big.NewInt(0)
	}
	final := p.FinalSwap
	if s.PerformedSwaps < final {
		final = s.PerformedSwaps
	}
	if p.LastUpdatedSwap > final {
		return big.NewInt(0)
	}
	if p.LastUpdatedSwap == final {
		return cloneAmount(carry)
	}
	start := p.LastUpdatedSwap
	if p.StartingSwap > start {
		start = p.StartingSwap
	}
	earned := new(big.Int).Sub(s.AccumAt(final), s.AccumAt(start))
	if earned.Sign() < 0 {
		earned.SetInt64(0)
	}
	earned.Mul(earned, p.Rate)
	if magnitude == nil || magnitude.Sign() <= 0 {
		return cloneAmount(carry)
	}
	earned.Quo(earned, magnitude)
	if carry != nil {
		earned.Add(earned, carry)
	}
	return earned
}
