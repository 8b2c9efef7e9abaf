package dca

import (
	"math/big"

	"dcaengine/crypto"
)

// TripleKey identifies one aggregated swap stream: a source token, a
// destination token, and a single interval bit. Mask must be a single set
// bit within the interval registry's allowed set.
type TripleKey struct {
	From crypto.Address
	To   crypto.Address
	Mask uint8
}

// PairKey identifies the (from, to) side of a triple, ignoring interval.
type PairKey struct {
	From crypto.Address
	To   crypto.Address
}

func (k TripleKey) Pair() PairKey { return PairKey{From: k.From, To: k.To} }

// TripleState is the rolling aggregate for one (from, to, mask) stream.
// Amounts are never nil once returned by a store implementation.
type TripleState struct {
	PerformedSwaps   uint64
	NextAmount       *big.Int
	NextToNextAmount *big.Int
	LastSwappedAt    uint64
	Delta            map[uint64]*big.Int
	Accum            map[uint64]*big.Int
}

// newTripleState returns the zero-value state a triple starts in the first
// time a position references it.
func newTripleState() *TripleState {
	return &TripleState{
		NextAmount:       big.NewInt(0),
		NextToNextAmount: big.NewInt(0),
		Delta:            make(map[uint64]*big.Int),
		Accum:            map[uint64]*big.Int{0: big.NewInt(0)},
	}
}

// Clone returns a deep copy so callers can stage mutations without
// touching the stored value.
func (s *TripleState) Clone() *TripleState {
	if s == nil {
		return newTripleState()
	}
	clone := &TripleState{
		PerformedSwaps: s.PerformedSwaps,
		LastSwappedAt:  s.LastSwappedAt,
		Delta:          make(map[uint64]*big.Int, len(s.Delta)),
		Accum:          make(map[uint64]*big.Int, len(s.Accum)),
	}
	clone.NextAmount = cloneAmount(s.NextAmount)
	clone.NextToNextAmount = cloneAmount(s.NextToNextAmount)
	for k, v := range s.Delta {
		clone.Delta[k] = cloneAmount(v)
	}
	for k, v := range s.Accum {
		clone.Accum[k] = cloneAmount(v)
	}
	return clone
}

// AccumAt returns accum[n], defaulting to zero for n == 0 and for any n not
// yet recorded.
func (s *TripleState) AccumAt(n uint64) *big.Int {
	if s == nil || s.Accum == nil {
		return big.NewInt(0)
	}
	if v, ok := s.Accum[n]; ok {
		return v
	}
	return big.NewInt(0)
}

// DeltaAt returns delta[n], defaulting to zero.
func (s *TripleState) DeltaAt(n uint64) *big.Int {
	if s == nil || s.Delta == nil {
		return big.NewInt(0)
	}
	if v, ok := s.Delta[n]; ok {
		return v
	}
	return big.NewInt(0)
}

// Position is one user's standing order: Rate of From traded into To at
// every swap number in [StartingSwap, FinalSwap).
type Position struct {
	ID              uint64
	Owner           crypto.Address
	From            crypto.Address
	To              crypto.Address
	Mask            uint8
	Rate            *big.Int
	StartingSwap    uint64
	FinalSwap       uint64
	LastUpdatedSwap uint64
	// Residual is the pulled-but-uncommitted remainder left by floor
	// division when translating an amount into rate * installments. It sits
	// in custody untouched by swaps and is paid back at termination.
	Residual *big.Int
}

func (p *Position) Triple() TripleKey {
	return TripleKey{From: p.From, To: p.To, Mask: p.Mask}
}

func (p *Position) Pair() PairKey {
	return PairKey{From: p.From, To: p.To}
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Rate = cloneAmount(p.Rate)
	clone.Residual = cloneAmount(p.Residual)
	return &clone
}

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
