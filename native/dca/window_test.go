package dca

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

// A position created inside a live swap window but before the threshold
// guard joins the imminent swap; one created past the guard defers to the
// swap after it.
func TestWindowClassifierDeferral(t *testing.T) {
	env := newTestEnv(t)
	mask := env.maskFor(hourSecs)

	// Seed the triple and give it a swap history at t0.
	env.create(env.alice, 1000, 10, hourSecs) // rate 100
	env.swapPair()
	t0 := env.now

	// Five minutes into the live window [t0+1h, t0+2h): ahead of the
	// ten-minute guard before the window end, so the position still joins
	// the next swap.
	env.now = t0 + hourSecs + 5*60
	early := env.create(env.bob, 500, 5, hourSecs) // rate 100
	require.Equal(t, uint64(1), early.StartingSwap)
	require.Equal(t, uint64(6), early.FinalSwap)

	state := env.triple(mask)
	require.Equal(t, big.NewInt(200), state.NextAmount)
	require.Zero(t, state.NextToNextAmount.Sign())

	// 55 minutes in: past the guard, so the swap after next picks it up.
	env.now = t0 + hourSecs + 55*60
	late := env.create(env.bob, 500, 5, hourSecs)
	require.Equal(t, uint64(2), late.StartingSwap)
	require.Equal(t, uint64(7), late.FinalSwap)

	state = env.triple(mask)
	require.Equal(t, big.NewInt(200), state.NextAmount)
	require.Equal(t, big.NewInt(100), state.NextToNextAmount)
	require.Equal(t, big.NewInt(100), state.DeltaAt(8))

	// The deferred rate only enters the pool at the following swap: the
	// next registration promotes next_to_next into next.
	env.now = t0 + 2*hourSecs
	env.swapPair()
	state = env.triple(mask)
	require.Equal(t, uint64(2), state.PerformedSwaps)
	require.Equal(t, big.NewInt(300), state.NextAmount)
	require.Zero(t, state.NextToNextAmount.Sign())
}

// The classifier considers the triple's own mask even when no position
// holds it yet, so the very first position on a fresh triple can defer when
// created within the guard of its own aligned window.
func TestWindowClassifierFreshTriple(t *testing.T) {
	env := newTestEnv(t)

	// Mid-window, before the guard: joins next.
	env.now = 10*daySecs + 30*60
	first := env.create(env.alice, 500, 5, hourSecs)
	require.Equal(t, uint64(0), first.StartingSwap)

	// A fresh engine whose first-ever position arrives three minutes
	// before its aligned window end: defers.
	env2 := newTestEnv(t)
	env2.now = 10*daySecs + hourSecs - 3*60
	deferred := env2.create(env2.alice, 500, 5, hourSecs)
	require.Equal(t, uint64(1), deferred.StartingSwap)

	state := env2.triple(env2.maskFor(hourSecs))
	require.Zero(t, state.NextAmount.Sign())
	require.Equal(t, big.NewInt(100), state.NextToNextAmount)
}

// Windows align to the wall clock: after a swap, creating a position in the
// gap before the next window opens is never a deferral.
func TestWindowClassifierClosedWindow(t *testing.T) {
	env := newTestEnv(t)
	env.create(env.alice, 1000, 10, hourSecs)
	env.swapPair()

	// Still inside the window that was just swapped; the next window has
	// not opened, so there is nothing live to defer behind.
	env.advance(55 * 60)
	pos := env.create(env.bob, 500, 5, hourSecs)
	require.Equal(t, uint64(1), pos.StartingSwap)

	state := env.triple(env.maskFor(hourSecs))
	require.Equal(t, big.NewInt(200), state.NextAmount)
	require.Zero(t, state.NextToNextAmount.Sign())
}
