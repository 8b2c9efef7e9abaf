package dca

import "math/big"

// TripleStore persists per-(from,to,mask) aggregate state and the per-pair
// active-mask bitset. A triple's state is created lazily on first reference
// and is never deleted: the swap counter must survive empty periods so the
// accumulated-ratio series stays continuous.
type TripleStore interface {
	// GetTriple returns the current state for key, or a fresh zero state if
	// the triple has never been referenced.
	GetTriple(key TripleKey) (*TripleState, error)
	PutTriple(key TripleKey, state *TripleState) error

	// GetActiveMask returns the bitwise OR of every mask with at least one
	// active or deferred position for pair.
	GetActiveMask(pair PairKey) (uint8, error)
	PutActiveMask(pair PairKey, mask uint8) error
}

// PositionStore persists positions, their ownership, and the swapped-before-
// modification carry sidecar, plus the monotonic position-id counter.
type PositionStore interface {
	NextPositionID() (uint64, error)

	GetPosition(id uint64) (*Position, bool, error)
	PutPosition(p *Position) error
	DeletePosition(id uint64) error

	// GetCarry defaults to zero for a position with no recorded carry.
	GetCarry(id uint64) (*big.Int, error)
	PutCarry(id uint64, amount *big.Int) error
	DeleteCarry(id uint64) error
}

// EngineState groups the two stores the engine needs. Implementations may
// back it with anything from an in-memory map (native/dca/memstore.go) to a
// transactional KV store; the engine never assumes more than this shape.
type EngineState interface {
	TripleStore
	PositionStore
}
